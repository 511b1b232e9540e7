// Package mongo implements the growth ledger stores on MongoDB. The source
// role reads the revenue_events collection; the ledger role owns
// growth_ledger_entries and reads growth_payouts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/store"
)

// Collection name constants.
const (
	colEvents  = "revenue_events"
	colEntries = "growth_ledger_entries"
	colPayouts = "growth_payouts"
)

// compile-time interface checks
var (
	_ store.Source = (*Store)(nil)
	_ store.Ledger = (*Store)(nil)
)

// Store implements store.Source and store.Ledger on one database.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	retry    store.RetryPolicy
	logger   *slog.Logger
	owned    bool
	readOnly bool
}

// Option configures a Store.
type Option func(*Store)

// WithRetryPolicy overrides the per-operation timeout and retry policy. The
// policy's Transient predicate is always IsTransient.
func WithRetryPolicy(p store.RetryPolicy) Option {
	return func(s *Store) {
		p.Transient = IsTransient
		s.retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New wraps a database handle owned by the caller. Close does not
// disconnect its client.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{
		client: db.Client(),
		db:     db,
		retry:  store.DefaultRetryPolicy(IsTransient),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSource connects to the discovery database. The returned store never
// writes and rejects Migrate.
func OpenSource(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	s, err := open(ctx, uri, database, opts...)
	if err != nil {
		return nil, err
	}
	s.readOnly = true
	return s, nil
}

// OpenLedger connects to the ledger database. Call Migrate before first use.
func OpenLedger(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	return open(ctx, uri, database, opts...)
}

func open(_ context.Context, uri, database string, opts ...Option) (*Store, error) {
	if database == "" {
		return nil, errors.New("growthledger/mongo: database name is required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("growthledger/mongo: connect: %w", err)
	}
	s := New(client.Database(database), opts...)
	s.owned = true
	return s, nil
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates the ledger indexes. The unique transaction_id index is
// what makes concurrent writers safe.
func (s *Store) Migrate(ctx context.Context) error {
	if s.readOnly {
		return fmt.Errorf("growthledger/mongo: %w: source store is read-only", growthledger.ErrMigrationFailed)
	}
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("growthledger/mongo: %w: %s indexes: %w", growthledger.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks connectivity. A source store also checks revenue_events exists.
func (s *Store) Ping(ctx context.Context) error {
	return store.Exec(ctx, s.retry, func(ctx context.Context) error {
		if err := s.client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("growthledger/mongo: ping: %w", err)
		}
		if !s.readOnly {
			return nil
		}
		names, err := s.db.ListCollectionNames(ctx, bson.M{"name": colEvents})
		if err != nil {
			return fmt.Errorf("growthledger/mongo: ping source: %w", err)
		}
		if len(names) == 0 {
			return fmt.Errorf("growthledger/mongo: %s collection not found", colEvents)
		}
		return nil
	})
}

// Close disconnects the client when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// IsTransient reports whether err is a network or timeout failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func query[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := store.Do(ctx, s.retry, fn)
	if err != nil {
		return v, fmt.Errorf("growthledger/mongo: %s: %w", op, err)
	}
	return v, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEntries: {
			{
				Keys:    bson.D{{Key: "transaction_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "stream", Value: 1}, {Key: "status", Value: 1}}},
		},
		colPayouts: {
			{Keys: bson.D{{Key: "cycle_end", Value: -1}}},
			{Keys: bson.D{{Key: "stream", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
}
