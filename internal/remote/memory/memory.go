// Package memory is an in-process remote store. It is the development
// default when no jsonbin credentials are configured, and the test double
// for the sync layer: Fail lets tests inject remote outages.
package memory

import (
	"context"
	"sync"

	"loantrack/internal/core"
	"loantrack/internal/remote"
)

type Store struct {
	mu    sync.Mutex
	loans []core.Loan
	users []core.UserAccount

	// Pulls/PushCalls count operations for assertions.
	Pulls     int
	PushCalls int

	// Fail, when set, makes every operation return it.
	Fail error
}

func New() *Store {
	return &Store{}
}

// Seed replaces the stored collections, bypassing failure injection.
func (s *Store) Seed(loans []core.Loan, users []core.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans = append([]core.Loan(nil), loans...)
	s.users = append([]core.UserAccount(nil), users...)
}

func (s *Store) Pull(_ context.Context) (remote.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pulls++
	if s.Fail != nil {
		return remote.Snapshot{}, s.Fail
	}
	return remote.Snapshot{
		Loans: append([]core.Loan(nil), s.loans...),
		Users: append([]core.UserAccount(nil), s.users...),
	}, nil
}

func (s *Store) PushLoans(_ context.Context, loans []core.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PushCalls++
	if s.Fail != nil {
		return s.Fail
	}
	s.loans = append([]core.Loan(nil), loans...)
	return nil
}

func (s *Store) PushUsers(_ context.Context, users []core.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PushCalls++
	if s.Fail != nil {
		return s.Fail
	}
	s.users = append([]core.UserAccount(nil), users...)
	return nil
}

func (s *Store) DeleteLoan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	kept := s.loans[:0]
	for _, l := range s.loans {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	s.loans = kept
	return nil
}

// Loans returns a copy of the stored loan collection.
func (s *Store) Loans() []core.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Loan(nil), s.loans...)
}

// Users returns a copy of the stored user collection.
func (s *Store) Users() []core.UserAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.UserAccount(nil), s.users...)
}
