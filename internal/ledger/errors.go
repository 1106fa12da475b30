package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidTransaction is matched by every *InvalidTransactionError.
var ErrInvalidTransaction = errors.New("invalid transaction")

// InvalidTransactionError describes a transaction the ledger refuses to replay.
type InvalidTransactionError struct {
	ID     string
	Reason string
}

func (e *InvalidTransactionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid transaction: %s", e.Reason)
	}
	return fmt.Sprintf("invalid transaction %s: %s", e.ID, e.Reason)
}

func (e *InvalidTransactionError) Is(target error) bool { return target == ErrInvalidTransaction }
