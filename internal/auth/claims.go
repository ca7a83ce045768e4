package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ClaimSet is the identity portion of an access token: who the token is for
// and what they may do. Time bounds, issuer and audience are added by the
// codec at mint time.
type ClaimSet struct {
	Name    string
	Subject string
	Roles   []string
}

var ErrInvalidIdentity = errors.New("identity cannot be mapped to claims")

// BuildClaims maps an identity record to the claim set embedded in an access
// token. Pure; the returned role slice does not alias the identity's.
func BuildClaims(identity Identity) (ClaimSet, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return ClaimSet{}, fmt.Errorf("%w: email is required", ErrInvalidIdentity)
	}
	if len(identity.Roles) == 0 {
		return ClaimSet{}, fmt.Errorf("%w: at least one role is required", ErrInvalidIdentity)
	}

	roles := make([]string, len(identity.Roles))
	copy(roles, identity.Roles)

	return ClaimSet{
		Name:    identity.Email,
		Subject: strconv.FormatInt(identity.ID, 10),
		Roles:   roles,
	}, nil
}

// SubjectID parses the subject claim back into the numeric identity id.
func (c ClaimSet) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject claim %q: %w", c.Subject, err)
	}
	return id, nil
}
