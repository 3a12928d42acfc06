package utils

import (
	"errors"
	"testing"
	"time"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()
	tok, err := NewAccessToken("secret", 42, RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.MemberID != 42 || id.Role != RoleAdmin {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestParseAccessToken_Rejects(t *testing.T) {
	t.Parallel()
	good, _ := NewAccessToken("secret", 1, RoleMember, time.Minute)
	expired, _ := NewAccessToken("secret", 1, RoleMember, -time.Minute)
	badRole, _ := NewAccessToken("secret", 1, "OWNER", time.Minute)
	noMember, _ := NewAccessToken("secret", 0, RoleMember, time.Minute)

	cases := []struct {
		name, secret, raw string
	}{
		{"wrong key", "other", good.Token},
		{"expired", "secret", expired.Token},
		{"unknown role", "secret", badRole.Token},
		{"zero subject", "secret", noMember.Token},
		{"garbage", "secret", "not-a-token"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseAccessToken(tc.secret, tc.raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
