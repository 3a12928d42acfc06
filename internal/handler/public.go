package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/service"
)

// PublicHandler serves the schedule, the catalog and package offers to
// anyone.  Responses are safe to cache.
type PublicHandler struct {
	Ledger   *service.Ledger
	Catalog  *service.Catalog
	Packages *service.PackageLedger
}

// NewPublicHandler panics if any dependency is nil.
func NewPublicHandler(ledger *service.Ledger, catalog *service.Catalog, packages *service.PackageLedger) *PublicHandler {
	if ledger == nil || catalog == nil || packages == nil {
		panic("nil service passed to NewPublicHandler")
	}
	return &PublicHandler{Ledger: ledger, Catalog: catalog, Packages: packages}
}

type scheduleQuery struct {
	From      string `query:"from"`
	To        string `query:"to"`
	CatalogID uint64 `query:"catalog_id"`
	Room      string `query:"room"`
	Status    string `query:"status" validate:"omitempty,oneof=scheduled in_progress completed cancelling cancelled"`
	Limit     int    `query:"limit" validate:"gte=0,lte=500"`
}

// ListSessions handles GET /v1/sessions.  from and to are RFC 3339
// instants; without them the next seven days are listed.
func (h *PublicHandler) ListSessions(c echo.Context) error {
	var q scheduleQuery
	if err := bindValid(c, &q); err != nil {
		return respondError(c, err)
	}
	now := time.Now().UTC()
	query := service.SessionQuery{
		From:      now,
		To:        now.Add(7 * 24 * time.Hour),
		CatalogID: q.CatalogID,
		Room:      q.Room,
		Status:    model.SessionStatus(q.Status),
		Limit:     q.Limit,
	}
	var err error
	if q.From != "" {
		if query.From, err = time.Parse(time.RFC3339, q.From); err != nil {
			return badRequest(c, "from must be an RFC 3339 time")
		}
	}
	if q.To != "" {
		if query.To, err = time.Parse(time.RFC3339, q.To); err != nil {
			return badRequest(c, "to must be an RFC 3339 time")
		}
	}
	states, err := h.Ledger.ListSessions(c.Request().Context(), query)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]sessionResponse, 0, len(states))
	for _, st := range states {
		out = append(out, toSession(st))
	}
	return c.JSON(http.StatusOK, out)
}

// GetSession handles GET /v1/sessions/:id.
func (h *PublicHandler) GetSession(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	st, err := h.Ledger.GetSessionState(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSession(*st))
}

// SessionRatings handles GET /v1/sessions/:id/ratings.
func (h *PublicHandler) SessionRatings(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	ratings, err := h.Ledger.SessionRatings(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]ratingResponse, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, toRating(r))
	}
	return c.JSON(http.StatusOK, out)
}

// ListCatalog handles GET /v1/catalog.  Only active entries are listed.
func (h *PublicHandler) ListCatalog(c echo.Context) error {
	entries, err := h.Catalog.List(c.Request().Context(), true)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]catalogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toCatalog(e))
	}
	return c.JSON(http.StatusOK, out)
}

// GetCatalogEntry handles GET /v1/catalog/:id.
func (h *PublicHandler) GetCatalogEntry(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	e, err := h.Catalog.Get(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCatalog(*e))
}

// ListPackages handles GET /v1/packages.
func (h *PublicHandler) ListPackages(c echo.Context) error {
	pkgs, err := h.Packages.ListPackages(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]packageResponse, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, toPackage(p))
	}
	return c.JSON(http.StatusOK, out)
}
