// Package session is the sync/reconciliation layer. A Session owns the
// in-memory application state for one device, keeps the local cache and the
// remote store consistent under an offline-first single-writer-push model,
// and enforces the admin-only mutation boundary.
//
// Every mutation commits to the local cache synchronously before the
// advisory remote push starts, so a crash mid-push never loses the local
// copy of an edit. Push failures surface only through the sync status flag.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"loantrack/internal/core"
	"loantrack/internal/remote"
	"loantrack/internal/storage"
)

const (
	SyncNone    SyncResult = "none"
	SyncSuccess SyncResult = "success"
	SyncError   SyncResult = "error"
)

type (
	SyncResult string

	// SyncStatus is the advisory view of the last remote interaction.
	SyncStatus struct {
		Syncing  bool       `json:"syncing"`
		Result   SyncResult `json:"result"`
		Message  string     `json:"message,omitempty"`
		LastSync time.Time  `json:"lastSync"`
	}
)

var (
	ErrNotAuthorized      = errors.New("admin role required")
	ErrSyncInProgress     = errors.New("a pull is already in progress")
	ErrInvalidCredentials = errors.New("invalid name or pin")
	ErrNotFirstRun        = errors.New("an admin account already exists")
	ErrUserExists         = errors.New("a user with that name already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrSelfDelete         = errors.New("cannot delete the authenticated account")
	ErrNoRemote           = errors.New("no remote store configured")
)

// Session holds one device's application state. All state lives behind the
// mutex; mutations are synchronous, remote pushes run on goroutines.
type Session struct {
	cache  *storage.Cache
	remote remote.Store // nil when running offline-only

	mu       sync.Mutex
	loans    []core.Loan
	users    []core.UserAccount
	current  *core.UserAccount
	firstRun bool
	pulling  bool
	status   SyncStatus

	pushes sync.WaitGroup
}

func New(cache *storage.Cache, store remote.Store) *Session {
	return &Session{
		cache:  cache,
		remote: store,
		status: SyncStatus{Result: SyncNone},
	}
}

// Load hydrates the session from the local cache. It must run before any
// other operation; first-run mode is entered when no users exist locally.
func (s *Session) Load(ctx context.Context) error {
	loans, err := s.cache.LoadLoans(ctx)
	if err != nil {
		return fmt.Errorf("load loans: %w", err)
	}
	users, err := s.cache.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans = loans
	s.users = users
	s.firstRun = len(users) == 0

	slog.InfoContext(ctx, "Session loaded from local cache",
		"loans", len(loans),
		"users", len(users),
		"first_run", s.firstRun)

	return nil
}

// Pull fetches the authoritative snapshot and replaces the in-memory and
// cached collections wholesale. Re-entrant pulls are rejected while one is
// outstanding. Pull needs no authentication so a fresh device can hydrate
// itself before any local identity exists.
func (s *Session) Pull(ctx context.Context) error {
	s.mu.Lock()
	store := s.remote
	if store == nil {
		s.mu.Unlock()
		return ErrNoRemote
	}
	if s.pulling {
		s.mu.Unlock()
		return ErrSyncInProgress
	}
	s.pulling = true
	s.status.Syncing = true
	s.mu.Unlock()

	snap, err := store.Pull(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulling = false
	s.status.Syncing = false

	if err != nil {
		s.status.Result = SyncError
		s.status.Message = err.Error()
		slog.WarnContext(ctx, "Pull from remote failed", "error", err)
		return fmt.Errorf("pull: %w", err)
	}

	if snap.Loans == nil {
		snap.Loans = []core.Loan{}
	}
	if snap.Users == nil {
		snap.Users = []core.UserAccount{}
	}

	// No field-level merge on pull: the fetched record wins outright.
	if err := s.cache.SaveLoans(ctx, snap.Loans); err != nil {
		return fmt.Errorf("cache loans after pull: %w", err)
	}
	if err := s.cache.SaveUsers(ctx, snap.Users); err != nil {
		return fmt.Errorf("cache users after pull: %w", err)
	}
	s.loans = snap.Loans
	s.users = snap.Users
	if len(snap.Users) > 0 {
		s.firstRun = false
	}
	s.status.Result = SyncSuccess
	s.status.Message = ""
	s.status.LastSync = time.Now()

	slog.InfoContext(ctx, "Pulled remote snapshot",
		"loans", len(snap.Loans),
		"users", len(snap.Users))

	return nil
}

// Restore is the forced pull a new device uses to hydrate itself; it is
// just Pull under a name matching the user-facing action.
func (s *Session) Restore(ctx context.Context) error {
	return s.Pull(ctx)
}

// SetupAdmin establishes the single admin identity during first run and
// performs the initial cache write and remote push.
func (s *Session) SetupAdmin(ctx context.Context, name, pin string) (core.UserAccount, error) {
	admin := core.UserAccount{
		Name: strings.TrimSpace(name),
		PIN:  pin,
		Role: core.RoleAdmin,
	}
	if admin.Name == "" {
		admin.Name = "Admin"
	}
	if err := admin.Validate(); err != nil {
		return core.UserAccount{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.firstRun {
		return core.UserAccount{}, ErrNotFirstRun
	}

	users := []core.UserAccount{admin}
	loans := []core.Loan{}
	if err := s.persistLocked(ctx, loans, users); err != nil {
		return core.UserAccount{}, err
	}
	s.loans = loans
	s.users = users
	s.current = &admin
	s.firstRun = false
	s.pushLocked(ctx, "")

	slog.InfoContext(ctx, "First-run admin created", "name", admin.Name)

	return admin, nil
}

// Login authenticates by case-insensitive name and PIN. Unknown names and
// wrong PINs both yield the same generic error so user names cannot be
// enumerated.
func (s *Session) Login(name, pin string) (core.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	for i := range s.users {
		if strings.EqualFold(s.users[i].Name, name) {
			if s.users[i].PIN != pin {
				return core.UserAccount{}, ErrInvalidCredentials
			}
			u := s.users[i]
			s.current = &u
			return u, nil
		}
	}
	return core.UserAccount{}, ErrInvalidCredentials
}

func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// CurrentUser returns the authenticated account, if any.
func (s *Session) CurrentUser() (core.UserAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return core.UserAccount{}, false
	}
	return *s.current, true
}

func (s *Session) FirstRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstRun
}

func (s *Session) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Loans returns a copy of the full loan collection.
func (s *Session) Loans() []core.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Loan(nil), s.loans...)
}

// VisibleLoans filters the collection to what the authenticated account may
// see: everything for the admin, their own loans for a regular user,
// nothing when unauthenticated.
func (s *Session) VisibleLoans() []core.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	if s.current.Role == core.RoleAdmin {
		return append([]core.Loan(nil), s.loans...)
	}
	var own []core.Loan
	for _, l := range s.loans {
		if strings.EqualFold(l.UserName, s.current.Name) {
			own = append(own, l)
		}
	}
	return own
}

// Users returns a copy of the user collection.
func (s *Session) Users() []core.UserAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.UserAccount(nil), s.users...)
}

// Stats aggregates the dashboard totals, optionally filtered to one
// borrower ("" or "All" means everyone).
func (s *Session) Stats(filterUser string) core.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filterUser == "" || filterUser == "All" {
		return core.ComputeStats(s.loans)
	}
	var filtered []core.Loan
	for _, l := range s.loans {
		if strings.EqualFold(l.UserName, filterUser) {
			filtered = append(filtered, l)
		}
	}
	return core.ComputeStats(filtered)
}

// AddLoan runs the engine and prepends the new loan. Admin only.
func (s *Session) AddLoan(ctx context.Context, in core.LoanInput) (core.Loan, error) {
	loan, err := core.NewLoan(in)
	if err != nil {
		return core.Loan{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAdminLocked(); err != nil {
		return core.Loan{}, err
	}

	loans := append([]core.Loan{loan}, s.loans...)
	if err := s.persistLocked(ctx, loans, s.users); err != nil {
		return core.Loan{}, err
	}
	s.loans = loans
	s.pushLocked(ctx, "")

	slog.InfoContext(ctx, "Loan added",
		"loan_id", loan.DisplayID,
		"user", loan.UserName,
		"principal", loan.Principal.String(),
		"term", loan.TotalInstallments)

	return loan, nil
}

// UpdateLoan re-runs the engine on an edited loan, preserving installment
// identifiers and statuses positionally. Admin only.
func (s *Session) UpdateLoan(ctx context.Context, id string, in core.LoanInput) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAdminLocked(); err != nil {
		return core.Loan{}, err
	}

	idx := s.loanIndexLocked(id)
	if idx < 0 {
		return core.Loan{}, ErrLoanNotFound
	}

	rebuilt, err := core.RebuildLoan(s.loans[idx], in)
	if err != nil {
		return core.Loan{}, err
	}

	loans := append([]core.Loan(nil), s.loans...)
	loans[idx] = rebuilt
	if err := s.persistLocked(ctx, loans, s.users); err != nil {
		return core.Loan{}, err
	}
	s.loans = loans
	s.pushLocked(ctx, "")

	slog.InfoContext(ctx, "Loan updated", "loan_id", rebuilt.DisplayID)

	return rebuilt, nil
}

// DeleteLoan removes a loan locally and issues the remote delete alongside
// the collection push. Admin only.
func (s *Session) DeleteLoan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAdminLocked(); err != nil {
		return err
	}

	idx := s.loanIndexLocked(id)
	if idx < 0 {
		return ErrLoanNotFound
	}

	loans := append([]core.Loan(nil), s.loans[:idx]...)
	loans = append(loans, s.loans[idx+1:]...)
	if err := s.persistLocked(ctx, loans, s.users); err != nil {
		return err
	}
	s.loans = loans
	s.pushLocked(ctx, id)

	slog.InfoContext(ctx, "Loan deleted", "id", id)

	return nil
}

// ToggleInstallment flips one installment's paid status. Admin only.
func (s *Session) ToggleInstallment(ctx context.Context, loanID, installmentID string) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAdminLocked(); err != nil {
		return core.Loan{}, err
	}

	idx := s.loanIndexLocked(loanID)
	if idx < 0 {
		return core.Loan{}, ErrLoanNotFound
	}

	loans := append([]core.Loan(nil), s.loans...)
	loan := loans[idx]
	loan.Installments = append([]core.Installment(nil), loan.Installments...)
	if err := loan.Toggle(installmentID); err != nil {
		return core.Loan{}, err
	}
	loans[idx] = loan

	if err := s.persistLocked(ctx, loans, s.users); err != nil {
		return core.Loan{}, err
	}
	s.loans = loans
	s.pushLocked(ctx, "")

	slog.InfoContext(ctx, "Installment toggled",
		"loan_id", loan.DisplayID,
		"installment_id", installmentID,
		"paid", loan.PaidInstallments,
		"status", string(loan.Status))

	return loan, nil
}

// AddUser registers a borrower account. Admin only; names are unique
// case-insensitively.
func (s *Session) AddUser(ctx context.Context, user core.UserAccount) error {
	if user.Role == "" {
		user.Role = core.RoleUser
	}
	user.Name = strings.TrimSpace(user.Name)
	user.Phone = strings.TrimSpace(user.Phone)
	if err := user.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAdminLocked(); err != nil {
		return err
	}

	for _, u := range s.users {
		if strings.EqualFold(u.Name, user.Name) {
			return ErrUserExists
		}
	}

	users := append(append([]core.UserAccount(nil), s.users...), user)
	if err := s.persistLocked(ctx, s.loans, users); err != nil {
		return err
	}
	s.users = users
	s.pushLocked(ctx, "")

	slog.InfoContext(ctx, "User added", "name", user.Name, "role", string(user.Role))

	return nil
}

// DeleteUser removes an account; the authenticated account may not delete
// itself. Admin only.
func (s *Session) DeleteUser(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAdminLocked(); err != nil {
		return err
	}
	if strings.EqualFold(s.current.Name, name) {
		return ErrSelfDelete
	}

	users := make([]core.UserAccount, 0, len(s.users))
	found := false
	for _, u := range s.users {
		if strings.EqualFold(u.Name, name) {
			found = true
			continue
		}
		users = append(users, u)
	}
	if !found {
		return ErrUserNotFound
	}

	if err := s.persistLocked(ctx, s.loans, users); err != nil {
		return err
	}
	s.users = users
	s.pushLocked(ctx, "")

	slog.InfoContext(ctx, "User deleted", "name", name)

	return nil
}

// ConfigureRemote persists the remote connection settings to the local cache
// and swaps the live remote store, so new credentials take effect without a
// restart. Admin only.
func (s *Session) ConfigureRemote(ctx context.Context, cfg storage.RemoteConfig, store remote.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAdminLocked(); err != nil {
		return err
	}

	if err := s.cache.SaveRemoteConfig(ctx, cfg); err != nil {
		return fmt.Errorf("cache remote config: %w", err)
	}
	s.remote = store
	s.status = SyncStatus{Result: SyncNone}

	slog.InfoContext(ctx, "Remote store reconfigured", "bin_id", cfg.BinID)

	return nil
}

// RemoteConfig returns the persisted remote connection settings, if any.
func (s *Session) RemoteConfig(ctx context.Context) (storage.RemoteConfig, bool, error) {
	return s.cache.LoadRemoteConfig(ctx)
}

// ResetLocal wipes the local cache and in-memory state. The remote store is
// untouched; a later pull re-hydrates the device.
func (s *Session) ResetLocal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.Reset(ctx); err != nil {
		return err
	}
	s.loans = nil
	s.users = nil
	s.current = nil
	s.firstRun = true
	s.status = SyncStatus{Result: SyncNone}

	slog.InfoContext(ctx, "Local data reset")

	return nil
}

// Flush blocks until every outstanding remote push has finished. Mainly for
// tests and shutdown.
func (s *Session) Flush() {
	s.pushes.Wait()
}

func (s *Session) requireAdminLocked() error {
	if s.current == nil || s.current.Role != core.RoleAdmin {
		return ErrNotAuthorized
	}
	return nil
}

func (s *Session) loanIndexLocked(id string) int {
	for i := range s.loans {
		if s.loans[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the candidate collections to the local cache. The
// in-memory state is only committed by the caller after this succeeds, so a
// failed cache write leaves the session unchanged.
func (s *Session) persistLocked(ctx context.Context, loans []core.Loan, users []core.UserAccount) error {
	if loans == nil {
		loans = []core.Loan{}
	}
	if users == nil {
		users = []core.UserAccount{}
	}
	if err := s.cache.SaveLoans(ctx, loans); err != nil {
		return fmt.Errorf("cache loans: %w", err)
	}
	if err := s.cache.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("cache users: %w", err)
	}
	return nil
}

// pushLocked starts the best-effort push of the entire current collections.
// The caller holds the mutex; the remote calls run on their own goroutine
// with a detached context so cancelled requests don't abort them. Failures
// only move the status flag.
func (s *Session) pushLocked(ctx context.Context, deleteLoanID string) {
	if s.remote == nil {
		return
	}

	store := s.remote
	loans := append([]core.Loan(nil), s.loans...)
	users := append([]core.UserAccount(nil), s.users...)
	pushCtx := context.WithoutCancel(ctx)

	s.pushes.Add(1)
	go func() {
		defer s.pushes.Done()

		var err error
		if deleteLoanID != "" {
			// The remote delete goes first so a row-oriented backend
			// drops the record before the collections are upserted.
			err = store.DeleteLoan(pushCtx, deleteLoanID)
		}
		if err == nil {
			g, gctx := errgroup.WithContext(pushCtx)
			g.Go(func() error { return store.PushLoans(gctx, loans) })
			g.Go(func() error { return store.PushUsers(gctx, users) })
			err = g.Wait()
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.status.Result = SyncError
			s.status.Message = err.Error()
			slog.WarnContext(pushCtx, "Push to remote failed", "error", err)
			return
		}
		s.status.Result = SyncSuccess
		s.status.Message = ""
		s.status.LastSync = time.Now()
	}()
}
