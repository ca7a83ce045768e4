package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const pgUniqueViolation = "23505"

// Repository is the Postgres-backed CredentialStore. Identity rows are the
// source of truth for the single active refresh token per user.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ CredentialStore = (*Repository)(nil)

func (r *Repository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	return r.findOne(ctx, `
		SELECT id, email, username, phone, password_hash, refresh_token, refresh_token_expiry, created_at, updated_at
		FROM identities
		WHERE LOWER(email) = LOWER($1)
	`, email)
}

func (r *Repository) FindByID(ctx context.Context, id int64) (Identity, error) {
	return r.findOne(ctx, `
		SELECT id, email, username, phone, password_hash, refresh_token, refresh_token_expiry, created_at, updated_at
		FROM identities
		WHERE id = $1
	`, id)
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (Identity, error) {
	var identity Identity
	var refreshToken sql.NullString
	var refreshExpiry sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.Username,
		&identity.Phone,
		&identity.PasswordHash,
		&refreshToken,
		&refreshExpiry,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("query identity: %w", err)
	}

	if refreshToken.Valid {
		identity.RefreshToken = refreshToken.String
	}
	if refreshExpiry.Valid {
		identity.RefreshTokenExpiry = refreshExpiry.Time.UTC()
	}

	roles, err := r.loadRoles(ctx, identity.ID)
	if err != nil {
		return Identity{}, err
	}
	identity.Roles = roles

	return identity, nil
}

func (r *Repository) loadRoles(ctx context.Context, identityID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name
		FROM roles r
		JOIN identity_roles ir ON ir.role_id = r.id
		WHERE ir.identity_id = $1
		ORDER BY r.name
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("query identity roles: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0, 1)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

func (r *Repository) CreateIdentity(ctx context.Context, input NewIdentity, password string) (Identity, error) {
	if reasons := validatePassword(password); len(reasons) > 0 {
		return Identity{}, CredentialPolicyError{Reasons: reasons}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := Identity{
		Email:        strings.TrimSpace(strings.ToLower(input.Email)),
		Username:     strings.TrimSpace(input.Username),
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO identities (email, username, phone, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, identity.Email, identity.Username, identity.Phone, identity.PasswordHash, now).Scan(&identity.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Identity{}, ErrDuplicateIdentity
		}
		return Identity{}, fmt.Errorf("insert identity: %w", err)
	}

	return identity, nil
}

func (r *Repository) VerifyPassword(ctx context.Context, identity Identity, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("compare password: %w", err)
	}

	return true, nil
}

func (r *Repository) AssignRole(ctx context.Context, identityID int64, role string) error {
	var roleID int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, role).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		return fmt.Errorf("query role: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO identity_roles (identity_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (identity_id, role_id) DO NOTHING
	`, identityID, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

func (r *Repository) SetRefreshToken(ctx context.Context, identityID int64, token string, expiry time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET refresh_token = $2, refresh_token_expiry = $3, updated_at = $4
		WHERE id = $1
	`, identityID, token, expiry.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set refresh token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

// RotateRefreshToken commits only when the stored token still matches the
// previous value. The single-statement compare-and-swap rides on row-level
// locking, so concurrent rotations of the same stale token leave exactly one
// winner.
func (r *Repository) RotateRefreshToken(ctx context.Context, identityID int64, previous, next string, expiry time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET refresh_token = $3, refresh_token_expiry = $4, updated_at = $5
		WHERE id = $1 AND refresh_token = $2
	`, identityID, previous, next, expiry.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate refresh token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRefreshConflict
	}

	return nil
}

func (r *Repository) ClearRefreshToken(ctx context.Context, identityID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET refresh_token = NULL, refresh_token_expiry = NULL, updated_at = $2
		WHERE id = $1 AND refresh_token IS NOT NULL
	`, identityID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("clear refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear refresh token rows affected: %w", err)
	}

	return affected > 0, nil
}

func validatePassword(password string) []string {
	var reasons []string

	if len(password) < 8 {
		reasons = append(reasons, "password must be at least 8 characters")
	}
	if len(password) > 200 {
		reasons = append(reasons, "password must be at most 200 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		reasons = append(reasons, "password must contain a letter")
	}
	if !hasDigit {
		reasons = append(reasons, "password must contain a digit")
	}

	return reasons
}
