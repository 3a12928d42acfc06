// Package utils issues and verifies the HS256 access tokens the API
// accepts.  Member authentication itself lives outside this service; the
// tokens only carry who the caller is and which role they act in.
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the "role" claim.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// ErrInvalidToken is returned by ParseAccessToken for any token that is
// malformed, expired, signed with another key or missing claims.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Identity is what a verified access token says about the caller.
type Identity struct {
	MemberID uint64
	Role     string
}

// NewAccessToken builds and signs an HS256 JWT.  The subject is the
// decimal member id.
func NewAccessToken(secret string, memberID uint64, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(memberID, 10),
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw and extracts the caller identity.
func ParseAccessToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, fmt.Errorf("%w: subject %q", ErrInvalidToken, sub)
	}
	role, _ := claims["role"].(string)
	if role != RoleMember && role != RoleAdmin {
		return Identity{}, fmt.Errorf("%w: role %q", ErrInvalidToken, role)
	}
	return Identity{MemberID: id, Role: role}, nil
}
