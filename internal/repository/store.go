package repository

import (
	"context"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

// Store runs units of work against the scheduling data.  Every write
// performed through the Tx passed to fn commits together when fn returns
// nil, and none of it is visible when fn returns an error or ctx is
// cancelled before commit.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	CatalogTx
	SessionTx
	BookingTx
	PackageTx
	AttendanceTx
	RatingTx
}

// CatalogTx reads and writes class templates.
type CatalogTx interface {
	InsertCatalogEntry(ctx context.Context, e *model.CatalogEntry) error
	UpdateCatalogEntry(ctx context.Context, e *model.CatalogEntry) error
	GetCatalogEntry(ctx context.Context, id uint64) (*model.CatalogEntry, error)
	ListCatalogEntries(ctx context.Context, activeOnly bool) ([]model.CatalogEntry, error)
	AddCatalogRating(ctx context.Context, id uint64, sumDelta, countDelta int64) error
}

// SessionFilter narrows ListSessions.  Zero values disable a condition.
type SessionFilter struct {
	Statuses     []model.SessionStatus
	CatalogID    uint64
	Room         string
	StartsFrom   time.Time // starts_at >= StartsFrom
	StartsBy     time.Time // starts_at <= StartsBy
	StartsBefore time.Time // starts_at < StartsBefore
	EndsAfter    time.Time // starts_at + duration > EndsAfter
	Limit        int
}

// SessionTx owns the seat accounting of sessions.  Counter updates are
// conditional single-row statements so a caller can never push
// confirmed_count past capacity or below zero.
type SessionTx interface {
	InsertSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id uint64) (*model.Session, error)
	// LockSession reads the session and serialises every later writer of
	// the same session until the unit of work ends.
	LockSession(ctx context.Context, id uint64) (*model.Session, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]model.Session, error)
	// ReserveSeat increments confirmed_count only when it is below
	// capacity and reports whether the seat was taken.
	ReserveSeat(ctx context.Context, id uint64) (bool, error)
	ReleaseSeat(ctx context.Context, id uint64) error
	AdjustWaitlist(ctx context.Context, id uint64, delta int) error
	NextSequence(ctx context.Context, id uint64) (uint64, error)
	UpdateSessionStatus(ctx context.Context, id uint64, status model.SessionStatus, reason string) error
	UpdateSessionCapacity(ctx context.Context, id uint64, capacity int) error
	// SetSessionCounters overwrites the cached counters.  Only the
	// reconciliation pass uses it.
	SetSessionCounters(ctx context.Context, id uint64, confirmed, waitlisted int) error
	AddSessionRating(ctx context.Context, id uint64, sumDelta, countDelta int64) error
}

// BookingTx stores bookings.  Bookings are never deleted.
type BookingTx interface {
	InsertBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBooking(ctx context.Context, b *model.Booking) error
	// ListSessionBookings returns the session's bookings in the given
	// states (all when none) ordered by sequence ascending.
	ListSessionBookings(ctx context.Context, sessionID uint64, states ...model.BookingState) ([]model.Booking, error)
	// FindMemberBooking returns the member's booking for the session in
	// one of the given states, or ErrNotFound.
	FindMemberBooking(ctx context.Context, sessionID, memberID uint64, states ...model.BookingState) (*model.Booking, error)
	ListMemberBookings(ctx context.Context, memberID uint64) ([]model.Booking, error)
}

// PackageTx stores package definitions, member packages and the credit
// holds tying bookings to package credits.
type PackageTx interface {
	InsertPackage(ctx context.Context, p *model.Package) error
	GetPackage(ctx context.Context, id uint64) (*model.Package, error)
	ListPackages(ctx context.Context) ([]model.Package, error)
	InsertUserPackage(ctx context.Context, up *model.UserPackage) error
	GetUserPackage(ctx context.Context, id uint64) (*model.UserPackage, error)
	// LockUserPackage serialises credit mutations of one member package.
	LockUserPackage(ctx context.Context, id uint64) (*model.UserPackage, error)
	UpdateUserPackageCredits(ctx context.Context, up *model.UserPackage) error
	// ListUserPackages returns the member's packages ordered by expiry.
	ListUserPackages(ctx context.Context, memberID uint64) ([]model.UserPackage, error)
	GetCreditHold(ctx context.Context, bookingID uint64) (*model.CreditHold, error)
	SaveCreditHold(ctx context.Context, h *model.CreditHold) error
}

// AttendanceTx stores attendance records.  InsertAttendance returns
// ErrConflict when the booking already has one.
type AttendanceTx interface {
	InsertAttendance(ctx context.Context, a *model.Attendance) error
	GetAttendance(ctx context.Context, bookingID uint64) (*model.Attendance, error)
}

// RatingTx stores ratings, one per (session, member).
type RatingTx interface {
	GetRating(ctx context.Context, sessionID, memberID uint64) (*model.Rating, error)
	InsertRating(ctx context.Context, r *model.Rating) error
	UpdateRating(ctx context.Context, r *model.Rating) error
	ListSessionRatings(ctx context.Context, sessionID uint64) ([]model.Rating, error)
}
