package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-platform/internal/apperror"
	"payment-platform/internal/observability"
)

// Service orchestrates the session lifecycle of an identity:
// Anonymous -> Authenticated -> (Refreshed)* -> Revoked or expired refresh.
// It holds no durable state of its own; every transition is a read or write
// through the CredentialStore.
type Service struct {
	store      CredentialStore
	codec      *TokenCodec
	refreshTTL time.Duration
	logger     *observability.Logger
	now        func() time.Time
}

func NewService(store CredentialStore, codec *TokenCodec, refreshTTL time.Duration, logger *observability.Logger) *Service {
	return &Service{
		store:      store,
		codec:      codec,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new identity with the default User role and returns a
// session holding an access token only. Registration is not an implicit
// login, so no refresh token is issued and IsLoggedIn stays false.
func (s *Service) Register(ctx context.Context, input NewIdentity, password string) (Session, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return Session{}, apperror.Validation("email is required")
	}

	// Checked up front so a duplicate registration performs no mutation.
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return Session{}, apperror.Duplicate(fmt.Sprintf("identity with email=%s already exists", email))
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return Session{}, apperror.Store(err)
	}

	input.Email = email
	identity, err := s.store.CreateIdentity(ctx, input, password)
	if err != nil {
		var policyErr CredentialPolicyError
		switch {
		case errors.As(err, &policyErr):
			return Session{}, apperror.Registration(strings.Join(policyErr.Reasons, "; "))
		case errors.Is(err, ErrDuplicateIdentity):
			return Session{}, apperror.Duplicate(fmt.Sprintf("identity with email=%s already exists", email))
		default:
			return Session{}, apperror.Store(err)
		}
	}

	if err := s.store.AssignRole(ctx, identity.ID, RoleUser); err != nil {
		return Session{}, apperror.Store(err)
	}
	identity.Roles = []string{RoleUser}

	accessToken, err := s.mintAccessToken(identity)
	if err != nil {
		return Session{}, err
	}

	s.logger.Info("identity_registered", map[string]any{"identity_id": identity.ID, "email": identity.Email})

	return sessionFor(identity, accessToken, "", false), nil
}

// Login authenticates the password and starts a fresh session: a new refresh
// token replaces whatever was stored before, and both token and expiry are
// persisted in one update.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	identity, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Session{}, apperror.NotFound(fmt.Sprintf("identity with email=%s not found", email))
		}
		return Session{}, apperror.Store(err)
	}

	ok, err := s.store.VerifyPassword(ctx, identity, password)
	if err != nil {
		return Session{}, apperror.Store(err)
	}
	if !ok {
		s.logger.Warn("login_failed", map[string]any{"email": email})
		return Session{}, apperror.Authentication("incorrect password")
	}

	refreshToken, err := NewRefreshToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.store.SetRefreshToken(ctx, identity.ID, refreshToken, s.now().Add(s.refreshTTL)); err != nil {
		return Session{}, apperror.Store(err)
	}

	accessToken, err := s.mintAccessToken(identity)
	if err != nil {
		return Session{}, err
	}

	s.logger.Info("login_succeeded", map[string]any{"identity_id": identity.ID, "email": identity.Email})

	return sessionFor(identity, accessToken, refreshToken, true), nil
}

// Refresh mints a new token pair from an expired-but-authentic access token
// and the currently stored refresh token. The presented refresh token becomes
// permanently invalid the instant the rotation commits.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (Session, error) {
	claims, err := s.codec.Verify(accessToken, s.now(), false)
	if err != nil {
		return Session{}, apperror.Authentication("invalid token")
	}

	id, err := claims.SubjectID()
	if err != nil {
		return Session{}, apperror.Authentication("invalid token")
	}

	identity, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Session{}, apperror.NotFound(fmt.Sprintf("identity with id=%d not found", id))
		}
		return Session{}, apperror.Store(err)
	}

	if identity.RefreshToken == "" ||
		identity.RefreshToken != refreshToken ||
		!s.now().Before(identity.RefreshTokenExpiry) {
		s.logger.Warn("refresh_rejected", map[string]any{"identity_id": identity.ID})
		return Session{}, apperror.Authentication("invalid refresh token")
	}

	nextToken, err := NewRefreshToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}

	err = s.store.RotateRefreshToken(ctx, identity.ID, refreshToken, nextToken, s.now().Add(s.refreshTTL))
	if err != nil {
		if errors.Is(err, ErrRefreshConflict) {
			return Session{}, apperror.Authentication("invalid refresh token")
		}
		return Session{}, apperror.Store(err)
	}

	newAccessToken, err := s.mintAccessToken(identity)
	if err != nil {
		return Session{}, err
	}

	return sessionFor(identity, newAccessToken, nextToken, true), nil
}

// Revoke clears the target identity's refresh token. Revoking an identity
// with no active token, or one that does not exist, is a no-op reported by
// the boolean, never an error. Only administrators may target another
// identity.
func (s *Service) Revoke(ctx context.Context, caller Principal, targetID int64) (bool, error) {
	id := caller.ID
	if targetID != 0 && targetID != caller.ID {
		if !caller.HasRole(RoleAdmin) {
			return false, apperror.Authorization("only administrators may revoke another identity's session")
		}
		id = targetID
	}

	cleared, err := s.store.ClearRefreshToken(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return false, nil
		}
		return false, apperror.Store(err)
	}

	if cleared {
		s.logger.Info("session_revoked", map[string]any{"identity_id": id, "revoked_by": caller.ID})
	}

	return cleared, nil
}

func (s *Service) mintAccessToken(identity Identity) (string, error) {
	claims, err := BuildClaims(identity)
	if err != nil {
		return "", fmt.Errorf("build claims: %w", err)
	}

	return s.codec.Mint(claims, s.now())
}

func sessionFor(identity Identity, accessToken, refreshToken string, loggedIn bool) Session {
	return Session{
		ID:           identity.ID,
		Email:        identity.Email,
		Username:     identity.Username,
		Phone:        identity.Phone,
		Roles:        identity.Roles,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IsLoggedIn:   loggedIn,
	}
}
