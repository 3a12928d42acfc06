// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/handler"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, pingers ...handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(pingers...))
}

// RegisterPublic registers the browse endpoints.  cache wraps only these
// routes; personal data is never cached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", cache)
	g.GET("/sessions", p.ListSessions)
	g.GET("/sessions/:id", p.GetSession)
	g.GET("/sessions/:id/ratings", p.SessionRatings)
	g.GET("/catalog", p.ListCatalog)
	g.GET("/catalog/:id", p.GetCatalogEntry)
	g.GET("/packages", p.ListPackages)
}
