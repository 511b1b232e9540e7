// Package growthledger reconciles revenue events found by a discovery layer
// into an append-only growth ledger.
//
// Every real-world transaction is recorded exactly once. The idempotency key
// is the event's gateway order id, or a synthetic "discovery_<id>" when the
// event carries none. Replaying a sync against the same events adds no rows.
//
// # Quick Start
//
// Open a source and a ledger store and hand both to an engine:
//
//	import (
//	    "github.com/xraph/growthledger"
//	    "github.com/xraph/growthledger/store/sqlite"
//	)
//
//	source, err := sqlite.OpenSource(ctx, "discovery.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ledger, err := sqlite.OpenLedger(ctx, "ledger.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := growthledger.New(source, ledger)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	report, err := engine.Sync(ctx)
//
// # Sync
//
// A sync reads every non-simulated event in source order, resolves its
// transaction id, skips ids already in the ledger, classifies the rest into
// a revenue stream, converts the amount to integer minor units with
// round-half-up, and commits all new entries in one atomic append.
//
// A uniqueness conflict at commit time means a concurrent sync recorded the
// same transaction first. It is reported as skipped, never as a failure.
//
// # Failure policy
//
// By default any error aborts the batch and nothing is committed. With
// WithFailurePolicy(SkipInvalid) a malformed event is rejected on its own and
// the rest of the batch commits; storage errors still abort.
//
// # Streams
//
// Known event kinds map to a stream exactly. Unknown kinds containing
// "fiverr" go to CONTENT, those containing "affiliate" to AFFILIATE, and
// everything else to POD. Operator rules loaded with classify.LoadRules run
// before the substring rules.
//
// # TypeID
//
// Ledger rows use TypeID for globally unique, type-safe identifiers:
//
//	gle_01h2xcejqtf2nbrexx3vqjhp41   // Entry ID
//	gpay_01h2xcejqtf2nbrexx3vqjhp41  // Payout ID
//	sync_01h455vb4pex5vsknk084sn02q  // Sync run ID
package growthledger
