package growthledger

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what a ConversionError does to the batch it occurs in.
type FailurePolicy int

const (
	// AbortBatch aborts the whole sync on any error. Nothing is committed.
	AbortBatch FailurePolicy = iota

	// SkipInvalid rejects only the malformed event, logs it, and commits the
	// rest. Storage errors still abort the batch.
	SkipInvalid
)

func (p FailurePolicy) String() string {
	switch p {
	case AbortBatch:
		return "abort"
	case SkipInvalid:
		return "skip_invalid"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy accepts "abort" (or empty) and "skip_invalid".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort", "abort_batch":
		return AbortBatch, nil
	case "skip_invalid", "skip":
		return SkipInvalid, nil
	}
	return AbortBatch, fmt.Errorf("growthledger: unknown failure policy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p FailurePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *FailurePolicy) UnmarshalText(b []byte) error {
	v, err := ParseFailurePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
