package shopifysync

import (
	"errors"
	"fmt"
)

var (
	ErrLedgerNotFound  = errors.New("failed webhook not found")
	ErrAlreadyResolved = errors.New("failed webhook already resolved")
)

// IngestionError is returned when the atomic ingestion unit failed and the
// payload was recorded in the failed-webhook ledger. LedgerID is zero if
// recording itself failed.
type IngestionError struct {
	LedgerID  int
	Retryable bool
	Err       error
}

func (e *IngestionError) Error() string {
	if e.LedgerID == 0 {
		return fmt.Sprintf("ingestion failed: %v", e.Err)
	}
	return fmt.Sprintf("ingestion failed (ledger %d): %v", e.LedgerID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }
