// Package remote defines the capability interface the sync layer consumes
// to reach the authoritative store, plus the error type its backends share.
package remote

import (
	"context"
	"fmt"

	"loantrack/internal/core"
)

// Snapshot is the full remote record: the entire loan and user collections.
// Pull and push both operate at this wholesale granularity; there is no
// per-record merge.
type Snapshot struct {
	Loans []core.Loan        `json:"loans"`
	Users []core.UserAccount `json:"users"`
}

// Store is the outbound port to the authoritative remote store. Pushes are
// advisory: callers persist locally first and treat push errors as status,
// never as a reason to revert.
type Store interface {
	Pull(ctx context.Context) (Snapshot, error)
	PushLoans(ctx context.Context, loans []core.Loan) error
	PushUsers(ctx context.Context, users []core.UserAccount) error
	DeleteLoan(ctx context.Context, id string) error
}

// Error wraps a failed remote call with the HTTP status when one was
// received; Status is 0 for transport-level failures.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
