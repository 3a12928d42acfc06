package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxMemberID = "member_id"
	ctxRole     = "role"
)

// MemberID returns the authenticated member id, or false for anonymous
// requests.
func MemberID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxMemberID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated caller's role, or "" for anonymous
// requests.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// callerKey identifies the caller for rate limiting; anonymous callers
// share "anon".
func callerKey(c echo.Context) string {
	if id, ok := MemberID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
