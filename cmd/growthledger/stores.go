package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xraph/growthledger/config"
	"github.com/xraph/growthledger/store"
	"github.com/xraph/growthledger/store/mongo"
	"github.com/xraph/growthledger/store/postgres"
	"github.com/xraph/growthledger/store/sqlite"
)

// errAbsent marks a sqlite ledger file that does not exist yet.
var errAbsent = errors.New("store does not exist")

func openSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Source, error) {
	switch cfg.SourceDriver {
	case config.DriverSQLite:
		s, err := sqlite.OpenSource(ctx, cfg.SourceDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.OpenSource(ctx, cfg.SourceDSN,
			postgres.WithRetryPolicy(cfg.RetryPolicy()), postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongo.OpenSource(ctx, cfg.SourceDSN, cfg.SourceDatabase,
			mongo.WithRetryPolicy(cfg.RetryPolicy()), mongo.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown source driver %q", cfg.SourceDriver)
}

// openLedger opens the ledger store. With create unset a missing sqlite
// file is reported as errAbsent instead of being created.
func openLedger(ctx context.Context, cfg config.Config, logger *slog.Logger, create bool) (store.Ledger, error) {
	switch cfg.LedgerDriver {
	case config.DriverSQLite:
		if !strings.HasPrefix(cfg.LedgerDSN, "file:") {
			if create {
				if err := os.MkdirAll(filepath.Dir(cfg.LedgerDSN), 0o755); err != nil {
					return nil, fmt.Errorf("create ledger directory: %w", err)
				}
			} else if _, err := os.Stat(cfg.LedgerDSN); errors.Is(err, os.ErrNotExist) {
				return nil, errAbsent
			}
		}
		l, err := sqlite.OpenLedger(ctx, cfg.LedgerDSN)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.DriverPostgres:
		l, err := postgres.OpenLedger(ctx, cfg.LedgerDSN,
			postgres.WithRetryPolicy(cfg.RetryPolicy()), postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.DriverMongo:
		l, err := mongo.OpenLedger(ctx, cfg.LedgerDSN, cfg.LedgerDatabase,
			mongo.WithRetryPolicy(cfg.RetryPolicy()), mongo.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
}
