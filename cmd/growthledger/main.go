// Command growthledger reconciles discovery revenue events into the growth
// ledger and audits the result.
//
//	growthledger sync     commit new events; exit 0 ok, 1 aborted, 2 usage
//	growthledger monitor  print a read-only audit report; exit 0
//
// Both commands print JSON to stdout and log to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/classify"
	"github.com/xraph/growthledger/config"
	"github.com/xraph/growthledger/lock"
	"github.com/xraph/growthledger/monitor"
	"github.com/xraph/growthledger/observability"
	"github.com/xraph/growthledger/store"
	"github.com/xraph/growthledger/telemetry"
)

const (
	exitOK      = 0
	exitAborted = 1
	exitUsage   = 2
)

const usage = `usage: growthledger <command> [flags]

commands:
  sync      reconcile discovery events into the ledger
  monitor   print a read-only audit report

Run "growthledger <command> -h" for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "sync", "monitor":
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}

	fs := flag.NewFlagSet("growthledger "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	load := config.Load
	if cmd == "monitor" {
		load = config.Parse
	}
	cfg, err := load(fs, rest)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := cfg.Logger(stderr)

	shutdown, err := telemetry.Setup(ctx, "growthledger", cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	if cmd == "sync" {
		return runSync(ctx, cfg, logger, stdout)
	}
	return runMonitor(ctx, cfg, logger, stdout)
}

func runSync(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer) int {
	opts := []growthledger.Option{
		growthledger.WithLogger(logger),
		growthledger.WithFailurePolicy(cfg.FailurePolicy),
		growthledger.WithAutoMigrate(cfg.Migrate),
	}

	if cfg.ClassifierRules != "" {
		rules, err := classify.LoadRules(cfg.ClassifierRules)
		if err != nil {
			logger.Error("loading classifier rules", "path", cfg.ClassifierRules, "error", err)
			return exitAborted
		}
		opts = append(opts, growthledger.WithClassifier(classify.New(rules...)))
	}

	var metrics *observability.PrometheusFactory
	if cfg.MetricsTextfile != "" {
		metrics = observability.NewPrometheusFactory()
		opts = append(opts, growthledger.WithPlugin(observability.NewMetricsExtension(metrics)))
		defer func() {
			if err := metrics.WriteToTextfile(cfg.MetricsTextfile); err != nil {
				logger.Warn("writing metrics textfile", "path", cfg.MetricsTextfile, "error", err)
			}
		}()
	}

	if cfg.RedisURL != "" {
		runLock, err := lock.Dial(ctx, cfg.RedisURL, lock.WithTTL(cfg.LockTTL), lock.WithLogger(logger))
		if err != nil {
			logger.Error("connecting run lock", "error", err)
			return exitAborted
		}
		defer runLock.Close()
		opts = append(opts, growthledger.WithRunLock(runLock))
	}

	source, err := openSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("opening source store", "driver", cfg.SourceDriver, "error", err)
		return exitAborted
	}
	ledger, err := openLedger(ctx, cfg, logger, true)
	if err != nil {
		_ = source.Close()
		logger.Error("opening ledger store", "driver", cfg.LedgerDriver, "error", err)
		return exitAborted
	}

	engine := growthledger.New(source, ledger, opts...)
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Warn("closing stores", "error", err)
		}
	}()

	if err := engine.Start(ctx); err != nil {
		logger.Error("starting engine", "error", err)
		return exitAborted
	}
	report, err := engine.Sync(ctx)
	if err != nil {
		return exitAborted
	}

	if err := writeJSON(stdout, report); err != nil {
		logger.Error("writing report", "error", err)
		return exitAborted
	}
	return exitOK
}

// runMonitor never fails: unreachable stores show up in the report.
func runMonitor(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer) int {
	var opts []monitor.Option
	opts = append(opts, monitor.WithLogger(logger))
	if cfg.StoreTimeout > 0 {
		opts = append(opts, monitor.WithTimeout(cfg.StoreTimeout))
	}

	var source store.Source
	if err := cfg.ValidateSource(); err != nil {
		logger.Warn("source store not configured", "error", err)
	} else if s, err := openSource(ctx, cfg, logger); err != nil {
		logger.Warn("source store unavailable", "driver", cfg.SourceDriver, "error", err)
	} else {
		source = s
		defer source.Close()
	}

	var ledger store.Ledger
	if err := cfg.ValidateLedger(); err != nil {
		logger.Warn("ledger store not configured", "error", err)
	} else if l, err := openLedger(ctx, cfg, logger, false); err != nil {
		if !errors.Is(err, errAbsent) {
			logger.Warn("ledger store unavailable", "driver", cfg.LedgerDriver, "error", err)
		}
	} else {
		ledger = l
		defer ledger.Close()
	}

	report := monitor.New(source, ledger, opts...).Snapshot(ctx)
	if err := writeJSON(stdout, report); err != nil {
		logger.Error("writing report", "error", err)
	}
	return exitOK
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
