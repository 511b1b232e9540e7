package growthledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// Configuration errors
	ErrConfiguration  = errors.New("growthledger: configuration error")
	ErrSourceMissing  = errors.New("growthledger: source store not configured")
	ErrLedgerMissing  = errors.New("growthledger: ledger store not configured")
	ErrSyncInProgress = errors.New("growthledger: another sync holds the run lock")

	// Reconciliation outcomes
	ErrDuplicateTransaction = errors.New("growthledger: transaction already recorded")
	ErrConversion           = errors.New("growthledger: event conversion failed")

	// Store errors
	ErrStorage         = errors.New("growthledger: storage error")
	ErrEntryNotFound   = errors.New("growthledger: entry not found")
	ErrPayoutNotFound  = errors.New("growthledger: payout not found")
	ErrStoreClosed     = errors.New("growthledger: store is closed")
	ErrMigrationFailed = errors.New("growthledger: migration failed")
	ErrSchemaMissing   = errors.New("growthledger: store schema not found")
)

// ConfigurationError reports a store that is missing or unreachable. It is
// raised before any event is read.
type ConfigurationError struct {
	Store string // "source" or "ledger"
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("growthledger: %s store: %v", e.Store, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is makes every ConfigurationError match ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ConversionError reports a single event that could not be turned into a
// ledger entry.
type ConversionError struct {
	EventID string
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("growthledger: convert event %s: %v", e.EventID, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is makes every ConversionError match ErrConversion.
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// StorageError reports a failed read or commit. The batch it belongs to has
// been aborted and nothing was committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("growthledger: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// IsConfiguration returns true if the error is a pre-flight configuration failure.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsConversion returns true if the error is a per-event data quality failure.
func IsConversion(err error) bool {
	return errors.Is(err, ErrConversion)
}

// IsStorage returns true if the error aborted a batch in a store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrPayoutNotFound)
}

// IsRetryable returns true if re-running the whole sync may succeed. Storage
// failures and a held run lock are retryable; configuration and conversion
// failures are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrSyncInProgress)
}
