// Package identity resolves who a request acts for.
//
// Every cart-affecting call is scoped by an anonymous session
// identifier and, once someone has logged in, additionally by the
// user identifier. Exactly one of the two scopes is authoritative
// server-side at any time; the migration trigger moves items from the
// session scope to the user scope on login.
//
// The resolver is injected wherever identity is needed rather than
// having components read persisted state ad hoc, which keeps tests
// deterministic.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/store"
)

// Resolver derives the current identity from persisted client state.
type Resolver struct {
	st *store.Store
}

// NewResolver creates a Resolver over the local store.
func NewResolver(st *store.Store) *Resolver {
	return &Resolver{st: st}
}

// SessionID returns the persisted anonymous session identifier,
// generating and persisting one on first call.
func (r *Resolver) SessionID(ctx context.Context) (string, error) {
	id, err := r.st.SessionID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve session id: %w", err)
	}
	if id != "" {
		return id, nil
	}

	id = "session_" + uuid.NewString()
	if err := r.st.SetSessionID(ctx, id); err != nil {
		return "", fmt.Errorf("persist session id: %w", err)
	}
	return id, nil
}

// UserID returns the authenticated user's id, or ok=false when
// browsing anonymously.
func (r *Resolver) UserID(ctx context.Context) (int64, bool, error) {
	acct, err := r.st.Account(ctx)
	if errors.Is(err, store.ErrNoAccount) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve user id: %w", err)
	}
	return acct.UserID, true, nil
}

// CurrentUser returns the persisted login record, or nil when
// browsing anonymously.
func (r *Resolver) CurrentUser(ctx context.Context) (*store.Account, error) {
	acct, err := r.st.Account(ctx)
	if errors.Is(err, store.ErrNoAccount) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	return acct, nil
}

// SetCurrentUser persists the login record returned by the backend.
func (r *Resolver) SetCurrentUser(ctx context.Context, u api.User) error {
	return r.st.SaveAccount(ctx, store.Account{
		UserID:     u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		LoggedInAt: time.Now(),
	})
}

// ClearCurrentUser removes the login record. The session identifier
// is kept; the anonymous cart belongs to it.
func (r *Resolver) ClearCurrentUser(ctx context.Context) error {
	return r.st.ClearAccount(ctx)
}

// Headers returns the identity headers for a cart-affecting request:
// the session header always, the user header when authenticated.
func (r *Resolver) Headers(ctx context.Context) (map[string]string, error) {
	sid, err := r.SessionID(ctx)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{api.HeaderSessionID: sid}

	uid, ok, err := r.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		headers[api.HeaderUserID] = strconv.FormatInt(uid, 10)
	}
	return headers, nil
}
