package router

import (
	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/handler"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/middleware"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/utils"
)

// RegisterAdmin registers studio management and front desk endpoints
// under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(utils.RoleAdmin))

	g.GET("/catalog", a.ListCatalog)
	g.POST("/catalog", a.CreateCatalogEntry)
	g.PUT("/catalog/:id", a.UpdateCatalogEntry)

	g.POST("/sessions", a.CreateSession)
	g.POST("/sessions/:id/cancel", a.CancelSession)
	g.PATCH("/sessions/:id/capacity", a.ResizeSession)
	g.GET("/sessions/:id/waitlist", a.GetWaitlist)
	g.POST("/sessions/:id/promote", a.PromoteWaitlist)
	g.POST("/sessions/:id/no-shows", a.SweepNoShows)
	g.POST("/sessions/:id/reconcile", a.Reconcile)

	g.POST("/bookings/:id/check-in", a.CheckIn)
	g.POST("/bookings/:id/cancel", a.CancelBooking)

	g.POST("/packages", a.CreatePackage)
	g.PUT("/members/:id", a.PutMember)
	g.POST("/members/:id/packages", a.GrantPackage)
	g.POST("/members/:id/wallet", a.TopUpWallet)
}
