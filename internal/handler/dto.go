package handler

import (
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/service"
)

// Requests.

type idParam struct {
	ID uint64 `param:"id" json:"-" validate:"required"`
}

type catalogRequest struct {
	ID              uint64 `param:"id" json:"-"`
	Name            string `json:"name" validate:"required,max=120"`
	Category        string `json:"category" validate:"max=60"`
	Difficulty      string `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0,lte=600"`
	BasePriceCents  uint32 `json:"base_price_cents"`
	Active          *bool  `json:"active"`
}

func (r catalogRequest) input() service.CatalogInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return service.CatalogInput{
		Name:            r.Name,
		Category:        r.Category,
		Difficulty:      model.Difficulty(r.Difficulty),
		DefaultDuration: time.Duration(r.DurationMinutes) * time.Minute,
		BasePriceCents:  r.BasePriceCents,
		Active:          active,
	}
}

type createSessionRequest struct {
	CatalogID       uint64    `json:"catalog_id" validate:"required"`
	InstructorID    uint64    `json:"instructor_id" validate:"required"`
	Room            string    `json:"room" validate:"required,max=60"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gte=0,lte=600"`
	Capacity        int       `json:"capacity" validate:"required,gt=0"`
}

type resizeRequest struct {
	ID       uint64 `param:"id" json:"-" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
}

type cancelSessionRequest struct {
	ID     uint64 `param:"id" json:"-" validate:"required"`
	Reason string `json:"reason" validate:"required,max=255"`
}

type bookingRequest struct {
	SessionID      uint64 `param:"id" json:"-" validate:"required"`
	PayWith        string `json:"pay_with" validate:"required,oneof=package dropin"`
	UserPackageID  uint64 `json:"user_package_id"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=64"`
}

type cancelBookingRequest struct {
	ID              uint64 `param:"id" json:"-" validate:"required"`
	Reason          string `json:"reason" validate:"max=255"`
	RefundRequested bool   `json:"refund_requested"`
	RefundApproved  bool   `json:"refund_approved"`
}

type ratingRequest struct {
	SessionID uint64 `param:"id" json:"-" validate:"required"`
	Score     int    `json:"score" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type packageRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Credits      int    `json:"credits" validate:"required,gt=0"`
	ValidityDays int    `json:"validity_days" validate:"required,gt=0"`
	PriceCents   uint32 `json:"price_cents"`
}

type grantRequest struct {
	MemberID  uint64 `param:"id" json:"-" validate:"required"`
	PackageID uint64 `json:"package_id" validate:"required"`
}

// Responses.

type catalogResponse struct {
	ID              uint64  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Difficulty      string  `json:"difficulty"`
	DurationMinutes int     `json:"duration_minutes"`
	BasePriceCents  uint32  `json:"base_price_cents"`
	Active          bool    `json:"active"`
	AverageRating   float64 `json:"average_rating"`
	RatingCount     int64   `json:"rating_count"`
}

func toCatalog(e model.CatalogEntry) catalogResponse {
	return catalogResponse{
		ID:              e.ID,
		Name:            e.Name,
		Category:        e.Category,
		Difficulty:      string(e.Difficulty),
		DurationMinutes: int(e.DefaultDuration / time.Minute),
		BasePriceCents:  e.BasePriceCents,
		Active:          e.Active,
		AverageRating:   e.AverageRating(),
		RatingCount:     e.RatingCount,
	}
}

type sessionResponse struct {
	ID              uint64    `json:"id"`
	CatalogID       uint64    `json:"catalog_id"`
	InstructorID    uint64    `json:"instructor_id"`
	Room            string    `json:"room"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Capacity        int       `json:"capacity"`
	ConfirmedCount  int       `json:"confirmed_count"`
	WaitlistCount   int       `json:"waitlist_count"`
	SeatsLeft       int       `json:"seats_left"`
	Status          string    `json:"status"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	PriceCents      uint32    `json:"price_cents"`
	AverageRating   float64   `json:"average_rating"`
	RatingCount     int64     `json:"rating_count"`
}

func toSession(st service.SessionState) sessionResponse {
	s := st.Session
	return sessionResponse{
		ID:              s.ID,
		CatalogID:       s.CatalogID,
		InstructorID:    s.InstructorID,
		Room:            s.Room,
		StartsAt:        s.StartsAt.UTC(),
		EndsAt:          s.EndsAt().UTC(),
		DurationMinutes: int(s.Duration / time.Minute),
		Capacity:        s.Capacity,
		ConfirmedCount:  s.ConfirmedCount,
		WaitlistCount:   s.WaitlistCount,
		SeatsLeft:       st.SeatsLeft,
		Status:          string(st.Status),
		CancelReason:    s.CancelReason,
		PriceCents:      s.PriceCents,
		AverageRating:   st.AverageRating,
		RatingCount:     s.RatingCount,
	}
}

type bookingResponse struct {
	ID               uint64     `json:"id"`
	SessionID        uint64     `json:"session_id"`
	MemberID         uint64     `json:"member_id"`
	State            string     `json:"state"`
	Sequence         uint64     `json:"sequence"`
	PayWith          string     `json:"pay_with"`
	UserPackageID    uint64     `json:"user_package_id,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	RefundRequested  bool       `json:"refund_requested"`
	WaitlistPosition int        `json:"waitlist_position,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

func toBooking(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		SessionID:       b.SessionID,
		MemberID:        b.MemberID,
		State:           string(b.State),
		Sequence:        b.Sequence,
		PayWith:         string(b.PayWith),
		UserPackageID:   b.UserPackageID,
		CancelReason:    b.CancelReason,
		RefundRequested: b.RefundRequested,
		CreatedAt:       b.CreatedAt.UTC(),
		CancelledAt:     b.CancelledAt,
	}
}

func toBookings(bs []model.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBooking(b))
	}
	return out
}

type cancelResponse struct {
	Booking          bookingResponse  `json:"booking"`
	AlreadyCancelled bool             `json:"already_cancelled"`
	Late             bool             `json:"late"`
	CreditConsumed   bool             `json:"credit_consumed"`
	Promoted         *bookingResponse `json:"promoted,omitempty"`
}

type ratingResponse struct {
	ID        uint64    `json:"id"`
	SessionID uint64    `json:"session_id"`
	MemberID  uint64    `json:"member_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRating(r model.Rating) ratingResponse {
	return ratingResponse{
		ID:        r.ID,
		SessionID: r.SessionID,
		MemberID:  r.MemberID,
		Score:     r.Score,
		Comment:   r.Comment,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userPackageResponse struct {
	ID               uint64    `json:"id"`
	PackageID        uint64    `json:"package_id"`
	MemberID         uint64    `json:"member_id"`
	CreditsTotal     int       `json:"credits_total"`
	CreditsRemaining int       `json:"credits_remaining"`
	CreditsReserved  int       `json:"credits_reserved"`
	CreditsConsumed  int       `json:"credits_consumed"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func toUserPackage(p model.UserPackage) userPackageResponse {
	return userPackageResponse{
		ID:               p.ID,
		PackageID:        p.PackageID,
		MemberID:         p.MemberID,
		CreditsTotal:     p.CreditsTotal,
		CreditsRemaining: p.CreditsRemaining,
		CreditsReserved:  p.CreditsReserved,
		CreditsConsumed:  p.CreditsConsumed,
		ExpiresAt:        p.ExpiresAt.UTC(),
	}
}

type packageResponse struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Credits      int    `json:"credits"`
	ValidityDays int    `json:"validity_days"`
	PriceCents   uint32 `json:"price_cents"`
}

func toPackage(p model.Package) packageResponse {
	return packageResponse{
		ID:           p.ID,
		Name:         p.Name,
		Credits:      p.Credits,
		ValidityDays: p.ValidityDays,
		PriceCents:   p.PriceCents,
	}
}
