package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/service"
)

// MemberWriter mirrors member standing from the member directory.
type MemberWriter interface {
	SaveMember(ctx context.Context, m model.Member) error
}

// WalletAdmin credits drop-in wallets.
type WalletAdmin interface {
	TopUp(ctx context.Context, memberID uint64, amountCents int64) error
	Balance(ctx context.Context, memberID uint64) (int64, error)
}

// AdminHandler serves front desk and studio management operations.
type AdminHandler struct {
	Ledger   *service.Ledger
	Catalog  *service.Catalog
	Packages *service.PackageLedger
	Members  MemberWriter
	Wallets  WalletAdmin
}

// NewAdminHandler panics if any dependency is nil.
func NewAdminHandler(ledger *service.Ledger, catalog *service.Catalog, packages *service.PackageLedger, members MemberWriter, wallets WalletAdmin) *AdminHandler {
	if ledger == nil || catalog == nil || packages == nil || members == nil || wallets == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Ledger: ledger, Catalog: catalog, Packages: packages, Members: members, Wallets: wallets}
}

// CreateCatalogEntry handles POST /v1/admin/catalog.
func (h *AdminHandler) CreateCatalogEntry(c echo.Context) error {
	var req catalogRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	e, err := h.Catalog.Create(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toCatalog(*e))
}

// UpdateCatalogEntry handles PUT /v1/admin/catalog/:id.  Existing
// sessions keep the price and duration they were created with.
func (h *AdminHandler) UpdateCatalogEntry(c echo.Context) error {
	var req catalogRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.ID == 0 {
		return badRequest(c, "id is required")
	}
	e, err := h.Catalog.Update(c.Request().Context(), req.ID, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCatalog(*e))
}

// ListCatalog handles GET /v1/admin/catalog, inactive entries included.
func (h *AdminHandler) ListCatalog(c echo.Context) error {
	entries, err := h.Catalog.List(c.Request().Context(), false)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]catalogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toCatalog(e))
	}
	return c.JSON(http.StatusOK, out)
}

// CreateSession handles POST /v1/admin/sessions.
func (h *AdminHandler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	sess, err := h.Ledger.CreateSession(c.Request().Context(), service.SessionInput{
		CatalogID:    req.CatalogID,
		InstructorID: req.InstructorID,
		Room:         req.Room,
		StartsAt:     req.StartsAt,
		Duration:     time.Duration(req.DurationMinutes) * time.Minute,
		Capacity:     req.Capacity,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toSession(service.SessionState{
		Session:   *sess,
		Status:    sess.Status,
		SeatsLeft: sess.SeatsLeft(),
	}))
}

// CancelSession handles POST /v1/admin/sessions/:id/cancel.  A cascade
// that stopped part-way answers with the error; the session stays
// cancelling until the sweeper completes it.
func (h *AdminHandler) CancelSession(c echo.Context) error {
	var req cancelSessionRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.Ledger.CancelSession(c.Request().Context(), req.ID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":         res.Session.ID,
		"status":             res.Session.Status,
		"bookings_cancelled": res.BookingsCancelled,
		"already_cancelled":  res.AlreadyCancelled,
	})
}

// ResizeSession handles PATCH /v1/admin/sessions/:id/capacity.
func (h *AdminHandler) ResizeSession(c echo.Context) error {
	var req resizeRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	st, promoted, err := h.Ledger.ResizeSession(c.Request().Context(), req.ID, req.Capacity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session":  toSession(*st),
		"promoted": toBookings(promoted),
	})
}

// GetWaitlist handles GET /v1/admin/sessions/:id/waitlist.
func (h *AdminHandler) GetWaitlist(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	entries, err := h.Ledger.GetWaitlist(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]bookingResponse, 0, len(entries))
	for _, e := range entries {
		b := toBooking(e.Booking)
		b.WaitlistPosition = e.Position
		out = append(out, b)
	}
	return c.JSON(http.StatusOK, out)
}

// PromoteWaitlist handles POST /v1/admin/sessions/:id/promote.
func (h *AdminHandler) PromoteWaitlist(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	promoted, err := h.Ledger.PromoteWaitlist(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookings(promoted))
}

// SweepNoShows handles POST /v1/admin/sessions/:id/no-shows.
func (h *AdminHandler) SweepNoShows(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	res, err := h.Ledger.SweepNoShows(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":         res.SessionID,
		"no_shows":           res.NoShows,
		"waitlist_cancelled": res.WaitlistCancelled,
	})
}

// Reconcile handles POST /v1/admin/sessions/:id/reconcile.
func (h *AdminHandler) Reconcile(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	res, err := h.Ledger.Reconcile(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":        res.SessionID,
		"cached_confirmed":  res.CachedConfirmed,
		"cached_waitlisted": res.CachedWaitlisted,
		"actual_confirmed":  res.ActualConfirmed,
		"actual_waitlisted": res.ActualWaitlisted,
		"drifted":           res.Drifted(),
		"repaired":          res.Repaired,
	})
}

// CheckIn handles POST /v1/admin/bookings/:id/check-in.
func (h *AdminHandler) CheckIn(c echo.Context) error {
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	b, err := h.Ledger.CheckIn(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBooking(*b))
}

// CancelBooking handles POST /v1/admin/bookings/:id/cancel.  Unlike the
// member route it may approve a refund after the cutoff.
func (h *AdminHandler) CancelBooking(c echo.Context) error {
	var req cancelBookingRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.Ledger.CancelBooking(c.Request().Context(), service.CancelRequest{
		BookingID:       req.ID,
		Reason:          req.Reason,
		RefundRequested: req.RefundRequested || req.RefundApproved,
		RefundApproved:  req.RefundApproved,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCancelResponse(res))
}

// CreatePackage handles POST /v1/admin/packages.
func (h *AdminHandler) CreatePackage(c echo.Context) error {
	var req packageRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	p, err := h.Packages.CreatePackage(c.Request().Context(), service.PackageInput{
		Name:         req.Name,
		Credits:      req.Credits,
		ValidityDays: req.ValidityDays,
		PriceCents:   req.PriceCents,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toPackage(*p))
}

// GrantPackage handles POST /v1/admin/members/:id/packages.
func (h *AdminHandler) GrantPackage(c echo.Context) error {
	var req grantRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	up, err := h.Packages.GrantPackage(c.Request().Context(), req.MemberID, req.PackageID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserPackage(*up))
}

type memberRequest struct {
	ID          uint64 `param:"id" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=active suspended inactive"`
	DisplayName string `json:"display_name" validate:"max=120"`
}

// PutMember handles PUT /v1/admin/members/:id, mirroring the member's
// standing from the member directory.
func (h *AdminHandler) PutMember(c echo.Context) error {
	var req memberRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	m := model.Member{ID: req.ID, Status: model.MemberStatus(req.Status), DisplayName: req.DisplayName}
	if err := h.Members.SaveMember(c.Request().Context(), m); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": m.ID, "status": m.Status, "display_name": m.DisplayName})
}

type topUpRequest struct {
	ID          uint64 `param:"id" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
}

// TopUpWallet handles POST /v1/admin/members/:id/wallet.
func (h *AdminHandler) TopUpWallet(c echo.Context) error {
	var req topUpRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	if err := h.Wallets.TopUp(ctx, req.ID, req.AmountCents); err != nil {
		return respondError(c, err)
	}
	bal, err := h.Wallets.Balance(ctx, req.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"member_id": req.ID, "balance_cents": bal})
}
