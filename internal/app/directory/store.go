/*
Package directory implements the client side of the external credential store
(the "directory service") and the backends it talks to.

This file defines the logical request/response contract: the opaque persisted
profile blob, the log-on result, and the Store interface implemented by the
file-backed and PostgreSQL-backed credential stores.
*/
package directory

import (
	"context"
	"errors"
)

// Sentinel errors reported by Store implementations.
var (
	// ErrAccountExists indicates an attempt to create an account whose user name is taken.
	ErrAccountExists = errors.New("directory: account already exists")

	// ErrAccountNotFound indicates that the named account does not exist.
	ErrAccountNotFound = errors.New("directory: account not found")
)

// Profile is the opaque per-user key/value bag round-tripped through the
// directory service. The chat layer owns the meaning of its keys; the
// directory stores and returns it verbatim.
type Profile map[string]string

// Clone returns an independent copy of the profile. A nil profile clones to
// an empty, non-nil one so callers can assign keys without a nil check.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// LogOnResult carries the asynchronous outcome of a log-on request back to
// the originating session, correlated by Tag.
type LogOnResult struct {
	// Tag is the caller-supplied correlation tag of the originating request.
	Tag string

	// Authorized reports whether the directory accepted the credentials.
	Authorized bool

	// UserName is the account name the request was made for.
	UserName string

	// Domain is the directory domain the account belongs to.
	Domain string

	// Password echoes the password supplied with the request.
	Password string

	// Profile is the persisted profile held by the directory for this
	// account, merged with any profile data supplied on the request.
	Profile Profile
}

// Store is the abstract credential store behind the directory service.
// Implementations must be safe for use from a single worker goroutine;
// they are never called from more than one at a time.
type Store interface {
	// LogOn checks the supplied credentials. A credential mismatch is not an
	// error: it yields a result with Authorized set to false. The supplied
	// profile, when non-empty, is persisted for the account; the returned
	// result carries the store's (post-merge) profile.
	LogOn(ctx context.Context, userName, password string, profile Profile) (LogOnResult, error)

	// LogOff records that the named account left. Unknown accounts are a no-op.
	LogOff(ctx context.Context, userName string) error

	// Create adds a new account. When hasPassword is false the account is
	// created open: it accepts any password on log-on until one is set.
	Create(ctx context.Context, userName, password string, hasPassword bool) error

	// Update replaces the password of an existing account.
	Update(ctx context.Context, userName, newPassword string) error

	// Delete removes an existing account.
	Delete(ctx context.Context, userName string) error

	// Close releases backend resources.
	Close()
}
