package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/config"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/logging"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/utils"
)

func protected(secret string, roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("", JWTAuth(secret), RequireRole(roles...))
	g.GET("/me", func(c echo.Context) error {
		id, _ := MemberID(c)
		return c.JSON(http.StatusOK, echo.Map{"member_id": id, "role": Role(c)})
	})
	return e
}

func TestJWTAuth_RequireRole(t *testing.T) {
	t.Parallel()
	member, _ := utils.NewAccessToken("k", 7, utils.RoleMember, time.Minute)
	admin, _ := utils.NewAccessToken("k", 1, utils.RoleAdmin, time.Minute)

	cases := []struct {
		name   string
		header string
		roles  []string
		want   int
	}{
		{"no header", "", []string{utils.RoleMember}, http.StatusUnauthorized},
		{"bad token", "Bearer nope", []string{utils.RoleMember}, http.StatusUnauthorized},
		{"member allowed", "Bearer " + member.Token, []string{utils.RoleMember}, http.StatusOK},
		{"member on admin route", "Bearer " + member.Token, []string{utils.RoleAdmin}, http.StatusForbidden},
		{"admin allowed", "Bearer " + admin.Token, []string{utils.RoleAdmin}, http.StatusOK},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			protected("k", tc.roles...).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRateKey_Strategies(t *testing.T) {
	t.Parallel()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/3/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/sessions/:id/bookings")
	c.Set(ctxMemberID, uint64(9))

	cases := map[string]string{
		"ip":      "rl:ip:10.0.0.1",
		"user":    "rl:user:9",
		"ip_user": "rl:ip:10.0.0.1:user:9",
		"":        "rl:ip:10.0.0.1:user:9:route:POST /api/v1/sessions/:id/bookings",
	}
	for strategy, want := range cases {
		got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		if got != want {
			t.Fatalf("strategy %q: expected %q, got %q", strategy, want, got)
		}
	}
}

func TestCachePayload_RoundTrip(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	status, hdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || hdr.Get(echo.HeaderContentType) != echo.MIMEApplicationJSON || string(body) != `{"ok":true}` {
		t.Fatalf("unexpected decode %d %v %q %v", status, hdr, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:6]); ok {
		t.Fatal("expected short payload to be rejected")
	}
}

func TestDisabledMiddleware_PassesThrough(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil))
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "x") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("expected untouched response, got %d %v", rec.Code, rec.Header())
	}
}

func TestRequestLogger_AttachesLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	e.GET("/x", func(c echo.Context) error {
		if logging.FromContext(c.Request().Context()) == nil {
			t.Error("expected a request logger on the context")
		}
		return c.NoContent(http.StatusNoContent)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if !strings.Contains(buf.String(), "status=204") {
		t.Fatalf("expected the request line to carry the status, got %q", buf.String())
	}
}
