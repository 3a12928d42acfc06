package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/middleware"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/service"
)

// MemberHandler serves booking, cancellation and rating requests on
// behalf of the authenticated member.  JWTAuth and RequireRole run first;
// every operation is scoped to the member id in the token.
type MemberHandler struct {
	Ledger   *service.Ledger
	Packages *service.PackageLedger
}

// NewMemberHandler panics if any dependency is nil.
func NewMemberHandler(ledger *service.Ledger, packages *service.PackageLedger) *MemberHandler {
	if ledger == nil || packages == nil {
		panic("nil service passed to NewMemberHandler")
	}
	return &MemberHandler{Ledger: ledger, Packages: packages}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing member identity"})
}

// RequestBooking handles POST /v1/sessions/:id/bookings.  A confirmed
// booking answers 201, a waitlisted one 202.
func (h *MemberHandler) RequestBooking(c echo.Context) error {
	memberID, ok := middleware.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	var req bookingRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.Ledger.RequestBooking(c.Request().Context(), service.BookingRequest{
		SessionID:      req.SessionID,
		MemberID:       memberID,
		PayWith:        model.PaymentMethod(req.PayWith),
		UserPackageID:  req.UserPackageID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return respondError(c, err)
	}
	out := toBooking(res.Booking)
	out.WaitlistPosition = res.WaitlistPosition
	status := http.StatusCreated
	if res.Booking.State == model.BookingWaitlisted {
		status = http.StatusAccepted
	}
	return c.JSON(status, out)
}

// CancelBooking handles POST /v1/bookings/:id/cancel.  refund_approved is
// ignored for members.
func (h *MemberHandler) CancelBooking(c echo.Context) error {
	memberID, ok := middleware.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	var req cancelBookingRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	res, err := h.Ledger.CancelBooking(c.Request().Context(), service.CancelRequest{
		BookingID:       req.ID,
		MemberID:        memberID,
		Reason:          req.Reason,
		RefundRequested: req.RefundRequested,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCancelResponse(res))
}

func toCancelResponse(res *service.CancelResult) cancelResponse {
	out := cancelResponse{
		Booking:          toBooking(res.Booking),
		AlreadyCancelled: res.AlreadyCancelled,
		Late:             res.Late,
		CreditConsumed:   res.CreditConsumed,
	}
	if res.Promoted != nil {
		p := toBooking(*res.Promoted)
		out.Promoted = &p
	}
	return out
}

// MyBookings handles GET /v1/me/bookings.
func (h *MemberHandler) MyBookings(c echo.Context) error {
	memberID, ok := middleware.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	bs, err := h.Ledger.MemberBookings(c.Request().Context(), memberID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookings(bs))
}

// GetBooking handles GET /v1/bookings/:id.  Bookings of other members
// answer 404.
func (h *MemberHandler) GetBooking(c echo.Context) error {
	memberID, ok := middleware.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	var p idParam
	if err := bindValid(c, &p); err != nil {
		return respondError(c, err)
	}
	b, err := h.Ledger.GetBooking(c.Request().Context(), p.ID, memberID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBooking(*b))
}

// MyPackages handles GET /v1/me/packages.
func (h *MemberHandler) MyPackages(c echo.Context) error {
	memberID, ok := middleware.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	pkgs, err := h.Packages.MemberPackages(c.Request().Context(), memberID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]userPackageResponse, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, toUserPackage(p))
	}
	return c.JSON(http.StatusOK, out)
}

// RateSession handles PUT /v1/sessions/:id/rating.  Repeating the call
// edits the member's rating while the edit window is open.
func (h *MemberHandler) RateSession(c echo.Context) error {
	memberID, ok := middleware.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	var req ratingRequest
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	r, err := h.Ledger.RateSession(c.Request().Context(), service.RatingInput{
		SessionID: req.SessionID,
		MemberID:  memberID,
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toRating(*r))
}
