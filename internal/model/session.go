package model

import "time"

// SessionStatus is the lifecycle state of a scheduled class.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	// SessionCancelling marks a session whose cascade cancellation has
	// started but not yet reached every booking.
	SessionCancelling SessionStatus = "cancelling"
	SessionCancelled  SessionStatus = "cancelled"
)

// Terminal reports whether no further status change can happen.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Session represents one scheduled occurrence of a catalog entry.  It
// owns the seat accounting for the class: ConfirmedCount is the number
// of bookings holding a seat and WaitlistCount the number of waitlisted
// bookings.  Both counters are a cached projection of the booking set
// and are maintained incrementally; they are never recomputed on the
// request path.
//
// Fields:
//  ID             – primary key identifier.
//  CatalogID      – catalog entry the session was created from.
//  InstructorID   – instructor leading the class.
//  Room           – room or studio label.
//  StartsAt       – start of the class (UTC).
//  Duration       – length of the class.
//  Capacity       – maximum number of seat-holding bookings.
//  ConfirmedCount – bookings currently holding a seat.
//  WaitlistCount  – bookings currently waitlisted.
//  NextSequence   – last sequence number handed to a booking.
//  Status         – scheduled, in_progress, completed, cancelling or cancelled.
//  CancelReason   – reason recorded when the session was cancelled.
//  PriceCents     – drop-in price snapshotted from the catalog entry.
//  RatingSum      – running sum of rating scores.
//  RatingCount    – number of ratings.
type Session struct {
	ID             uint64        // class_sessions.id
	CatalogID      uint64        // class_sessions.catalog_id
	InstructorID   uint64        // class_sessions.instructor_id
	Room           string        // class_sessions.room
	StartsAt       time.Time     // class_sessions.starts_at
	Duration       time.Duration // class_sessions.duration_ms
	Capacity       int           // class_sessions.capacity
	ConfirmedCount int           // class_sessions.confirmed_count
	WaitlistCount  int           // class_sessions.waitlist_count
	NextSequence   uint64        // class_sessions.next_sequence
	Status         SessionStatus // class_sessions.status
	CancelReason   string        // class_sessions.cancel_reason
	PriceCents     uint32        // class_sessions.price_cents
	RatingSum      int64         // class_sessions.rating_sum
	RatingCount    int64         // class_sessions.rating_count
	CreatedAt      time.Time     // class_sessions.created_at
	UpdatedAt      time.Time     // class_sessions.updated_at
}

// EndsAt returns the end of the session's time window.
func (s Session) EndsAt() time.Time { return s.StartsAt.Add(s.Duration) }

// SeatsLeft returns how many seats can still be admitted.
func (s Session) SeatsLeft() int {
	if left := s.Capacity - s.ConfirmedCount; left > 0 {
		return left
	}
	return 0
}

// CountersValid reports whether the cached counters respect the seat
// invariants.  A false result is a consistency fault, never a user error.
func (s Session) CountersValid() bool {
	return s.ConfirmedCount >= 0 && s.WaitlistCount >= 0 && s.ConfirmedCount <= s.Capacity
}

// StatusAt returns the status the session should have at now, based on
// its time window.  Sessions that are cancelling, cancelled or
// completed are returned unchanged.
func (s Session) StatusAt(now time.Time) SessionStatus {
	switch s.Status {
	case SessionScheduled, SessionInProgress:
		if !now.Before(s.EndsAt()) {
			return SessionCompleted
		}
		if !now.Before(s.StartsAt) {
			return SessionInProgress
		}
		return SessionScheduled
	}
	return s.Status
}

// AverageRating returns the mean score of the session's ratings.
func (s Session) AverageRating() float64 { return average(s.RatingSum, s.RatingCount) }
