// Package jsonbin implements the remote store on the jsonbin.io key-value
// blob API. The whole application record ({loans, users}) lives in a single
// bin; pushes read the latest blob, substitute one collection and write the
// blob back.
package jsonbin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"loantrack/internal/core"
	"loantrack/internal/remote"
)

const DefaultBaseURL = "https://api.jsonbin.io/v3"

type Client struct {
	baseURL string
	apiKey  string
	binID   string
	http    *http.Client
}

// New builds a client for one bin. baseURL may be empty to use the public
// API endpoint. The HTTP client carries no timeout: remote calls fail only
// through their own error signal and are re-triggered manually.
func New(baseURL, apiKey, binID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		binID:   binID,
		http:    &http.Client{},
	}
}

// record is the jsonbin read envelope; writes send the bare snapshot.
type record struct {
	Record remote.Snapshot `json:"record"`
}

// Pull fetches the latest blob.
func (c *Client) Pull(ctx context.Context) (remote.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/b/%s/latest", c.baseURL, c.binID), nil)
	if err != nil {
		return remote.Snapshot{}, &remote.Error{Op: "pull", Err: err}
	}
	req.Header.Set("X-Master-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return remote.Snapshot{}, &remote.Error{Op: "pull", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remote.Snapshot{}, &remote.Error{Op: "pull", Status: resp.StatusCode}
	}

	var rec record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return remote.Snapshot{}, &remote.Error{Op: "pull", Err: fmt.Errorf("decode record: %w", err)}
	}

	slog.DebugContext(ctx, "Pulled remote snapshot",
		"loans", len(rec.Record.Loans),
		"users", len(rec.Record.Users))

	return rec.Record, nil
}

// PushLoans replaces the loan collection inside the blob.
func (c *Client) PushLoans(ctx context.Context, loans []core.Loan) error {
	snap, err := c.pullForUpdate(ctx, "push loans")
	if err != nil {
		return err
	}
	snap.Loans = loans
	return c.put(ctx, "push loans", snap)
}

// PushUsers replaces the user collection inside the blob.
func (c *Client) PushUsers(ctx context.Context, users []core.UserAccount) error {
	snap, err := c.pullForUpdate(ctx, "push users")
	if err != nil {
		return err
	}
	snap.Users = users
	return c.put(ctx, "push users", snap)
}

// DeleteLoan removes one loan from the blob by its stable identifier.
func (c *Client) DeleteLoan(ctx context.Context, id string) error {
	snap, err := c.pullForUpdate(ctx, "delete loan")
	if err != nil {
		return err
	}
	kept := snap.Loans[:0]
	for _, l := range snap.Loans {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	snap.Loans = kept
	return c.put(ctx, "delete loan", snap)
}

// pullForUpdate reads the current blob so a push rewrites only its own
// collection. A bin that has never been written yields an empty snapshot.
func (c *Client) pullForUpdate(ctx context.Context, op string) (remote.Snapshot, error) {
	snap, err := c.Pull(ctx)
	if err != nil {
		var rerr *remote.Error
		if errors.As(err, &rerr) && rerr.Status == http.StatusNotFound {
			return remote.Snapshot{}, nil
		}
		return remote.Snapshot{}, &remote.Error{Op: op, Err: err}
	}
	return snap, nil
}

func (c *Client) put(ctx context.Context, op string, snap remote.Snapshot) error {
	if snap.Loans == nil {
		snap.Loans = []core.Loan{}
	}
	if snap.Users == nil {
		snap.Users = []core.UserAccount{}
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return &remote.Error{Op: op, Err: fmt.Errorf("encode record: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/b/%s", c.baseURL, c.binID), bytes.NewReader(body))
	if err != nil {
		return &remote.Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &remote.Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &remote.Error{Op: op, Status: resp.StatusCode}
	}

	slog.DebugContext(ctx, "Pushed remote snapshot",
		"op", op,
		"loans", len(snap.Loans),
		"users", len(snap.Users))

	return nil
}
