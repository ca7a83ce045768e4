package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrUnknownRole       = errors.New("unknown role")

	// ErrRefreshConflict reports a failed compare-and-swap during rotation:
	// another request already rotated the token this caller read.
	ErrRefreshConflict = errors.New("refresh token was rotated concurrently")
)

// CredentialPolicyError carries the store's password validation messages back
// to the registration flow.
type CredentialPolicyError struct {
	Reasons []string
}

func (e CredentialPolicyError) Error() string {
	return "password rejected: " + strings.Join(e.Reasons, "; ")
}

// CredentialStore is the boundary to the external credential system. It owns
// password hashing and storage; this package only ever sees the opaque hash.
//
// The refresh-token mutators carry the store's ordering guarantee:
// SetRefreshToken overwrites unconditionally (a fresh login), while
// RotateRefreshToken only commits when the stored token still equals the
// previous value the caller validated against, so concurrent refresh attempts
// with the same stale token have at most one winner.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByID(ctx context.Context, id int64) (Identity, error)
	CreateIdentity(ctx context.Context, input NewIdentity, password string) (Identity, error)
	VerifyPassword(ctx context.Context, identity Identity, password string) (bool, error)
	AssignRole(ctx context.Context, identityID int64, role string) error
	SetRefreshToken(ctx context.Context, identityID int64, token string, expiry time.Time) error
	RotateRefreshToken(ctx context.Context, identityID int64, previous, next string, expiry time.Time) error
	ClearRefreshToken(ctx context.Context, identityID int64) (bool, error)
}
