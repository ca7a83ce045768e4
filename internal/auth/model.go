package auth

import "time"

const (
	RoleAdmin    = "Admin"
	RoleMerchant = "Merchant"
	RoleUser     = "User"
)

// Identity is the credential record for one platform user. RefreshToken and
// RefreshTokenExpiry are written together or not at all; the orchestrator is
// the only mutator and goes through the CredentialStore update operations.
type Identity struct {
	ID                 int64
	Email              string
	Username           string
	Phone              string
	PasswordHash       string
	Roles              []string
	RefreshToken       string
	RefreshTokenExpiry time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewIdentity carries the caller-supplied registration attributes. The
// password travels separately so it never sits on a struct that gets logged.
type NewIdentity struct {
	Email    string
	Username string
	Phone    string
}

// Session is the response contract toward HTTP and CLI adapters; they map it
// to their transport verbatim. It is built fresh per call and never persisted.
type Session struct {
	ID           int64    `json:"id"`
	Email        string   `json:"email"`
	Username     string   `json:"username"`
	Phone        string   `json:"phone"`
	Roles        []string `json:"roles"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	IsLoggedIn   bool     `json:"isLoggedIn"`
}

// Principal identifies the already-authenticated caller of a protected
// operation, as extracted from a verified access token.
type Principal struct {
	ID    int64
	Roles []string
}

func (p Principal) HasRole(name string) bool {
	for _, role := range p.Roles {
		if role == name {
			return true
		}
	}
	return false
}
