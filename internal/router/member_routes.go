package router

import (
	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/handler"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/middleware"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/utils"
)

// RegisterMember registers the booking endpoints of authenticated members.
// Administrators may call them too, acting as themselves.
func RegisterMember(e *echo.Echo, m *handler.MemberHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleMember, utils.RoleAdmin),
		limit,
	)
	g.POST("/sessions/:id/bookings", m.RequestBooking)
	g.PUT("/sessions/:id/rating", m.RateSession)
	g.GET("/bookings/:id", m.GetBooking)
	g.POST("/bookings/:id/cancel", m.CancelBooking)
	g.GET("/me/bookings", m.MyBookings)
	g.GET("/me/packages", m.MyPackages)
}
