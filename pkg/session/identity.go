package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the subset of access-token claims the dashboard displays.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Identity describes who is signed in, for display in the navigation bar.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Label returns the best human-readable name available.
func (i Identity) Label() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	default:
		return i.Subject
	}
}

// ParseIdentity decodes the access token's claims WITHOUT verifying the signature.
// The result is for display only and must never drive an authorization decision.
// Opaque (non-JWT) tokens return an error; callers should fall back to a generic label.
func ParseIdentity(accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, errors.New("no access token")
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(accessToken, &IdentityClaims{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims type")
	}

	return Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
