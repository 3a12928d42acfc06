package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// SessionInput schedules a new session of a catalog entry.
type SessionInput struct {
	CatalogID    uint64
	InstructorID uint64
	Room         string
	StartsAt     time.Time
	// Duration overrides the catalog default when positive.
	Duration time.Duration
	Capacity int
}

func (in SessionInput) validate(now time.Time) error {
	v := &ValidationError{}
	if in.CatalogID == 0 {
		v.add("catalog_id", "is required")
	}
	if in.InstructorID == 0 {
		v.add("instructor_id", "is required")
	}
	if strings.TrimSpace(in.Room) == "" {
		v.add("room", "is required")
	}
	if in.StartsAt.IsZero() {
		v.add("starts_at", "is required")
	} else if !in.StartsAt.After(now) {
		v.add("starts_at", "must be in the future")
	}
	if in.Duration < 0 {
		v.add("duration", "must not be negative")
	}
	if in.Capacity <= 0 {
		v.add("capacity", "must be positive")
	}
	return v.orNil()
}

// CreateSession schedules a session.  Price and duration are copied from
// the catalog entry, so later catalog edits never change it.  The room
// must be free for the whole time window.
func (l *Ledger) CreateSession(ctx context.Context, in SessionInput) (sess *model.Session, err error) {
	ctx, span := l.startSpan(ctx, "create_session", idAttr("catalog.id", in.CatalogID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "sessions", "create_session", "catalog_id", in.CatalogID, "room", in.Room)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "create session failed", err)
		}
	}()

	now := l.clock()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		entry, err := tx.GetCatalogEntry(ctx, in.CatalogID)
		if err != nil {
			return storeErr(err, "catalog entry", in.CatalogID)
		}
		if !entry.Active {
			return fmt.Errorf("%w: %d", ErrCatalogInactive, entry.ID)
		}
		dur := in.Duration
		if dur == 0 {
			dur = entry.DefaultDuration
		}
		if dur <= 0 {
			return &ValidationError{FieldErrors: map[string]string{"duration": "is required when the catalog entry has no default"}}
		}
		startsAt := in.StartsAt.UTC()

		clash, err := tx.ListSessions(ctx, repository.SessionFilter{
			Statuses:     []model.SessionStatus{model.SessionScheduled, model.SessionInProgress, model.SessionCancelling},
			Room:         strings.TrimSpace(in.Room),
			StartsBefore: startsAt.Add(dur),
			EndsAfter:    startsAt,
			Limit:        1,
		})
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return fmt.Errorf("%w: room %q overlaps session %d", ErrRoomOccupied, in.Room, clash[0].ID)
		}

		sess = &model.Session{
			CatalogID:    entry.ID,
			InstructorID: in.InstructorID,
			Room:         strings.TrimSpace(in.Room),
			StartsAt:     startsAt,
			Duration:     dur,
			Capacity:     in.Capacity,
			Status:       model.SessionScheduled,
			PriceCents:   entry.BasePriceCents,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.InsertSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("session created", "session_id", sess.ID, "starts_at", sess.StartsAt, "capacity", sess.Capacity)
	return sess, nil
}

// SessionState is the read model of a session.
type SessionState struct {
	Session model.Session
	// Status is the time-derived status, which may run ahead of the
	// stored one until the sweeper catches up.
	Status        model.SessionStatus
	SeatsLeft     int
	AverageRating float64
}

// GetSessionState returns a session with its derived status.
func (l *Ledger) GetSessionState(ctx context.Context, sessionID uint64) (*SessionState, error) {
	var state *SessionState
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session", sessionID)
		}
		state = newSessionState(*sess, l.clock())
		return nil
	})
	return state, err
}

func newSessionState(sess model.Session, now time.Time) *SessionState {
	return &SessionState{
		Session:       sess,
		Status:        sess.StatusAt(now),
		SeatsLeft:     sess.SeatsLeft(),
		AverageRating: sess.AverageRating(),
	}
}

// SessionQuery filters ListSessions.
type SessionQuery struct {
	From      time.Time
	To        time.Time
	CatalogID uint64
	Room      string
	Status    model.SessionStatus
	Limit     int
}

// ListSessions returns sessions starting in [From, To], ordered by start.
func (l *Ledger) ListSessions(ctx context.Context, q SessionQuery) ([]SessionState, error) {
	f := repository.SessionFilter{
		CatalogID:  q.CatalogID,
		Room:       q.Room,
		StartsFrom: q.From,
		StartsBy:   q.To,
		Limit:      q.Limit,
	}
	if q.Status != "" {
		f.Statuses = []model.SessionStatus{q.Status}
	}
	var out []SessionState
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		sessions, err := tx.ListSessions(ctx, f)
		if err != nil {
			return err
		}
		now := l.clock()
		out = make([]SessionState, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, *newSessionState(s, now))
		}
		return nil
	})
	return out, err
}

// WaitlistEntry is one waitlisted booking with its 1-based position.
type WaitlistEntry struct {
	Position int
	Booking  model.Booking
}

// GetWaitlist derives the waitlist of a session: its waitlisted bookings
// in sequence order.
func (l *Ledger) GetWaitlist(ctx context.Context, sessionID uint64) ([]WaitlistEntry, error) {
	var out []WaitlistEntry
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetSession(ctx, sessionID); err != nil {
			return storeErr(err, "session", sessionID)
		}
		waiting, err := tx.ListSessionBookings(ctx, sessionID, model.BookingWaitlisted)
		if err != nil {
			return err
		}
		out = make([]WaitlistEntry, 0, len(waiting))
		for i, b := range waiting {
			out = append(out, WaitlistEntry{Position: i + 1, Booking: b})
		}
		return nil
	})
	return out, err
}

// ResizeSession changes the capacity of a scheduled session.  Growing it
// promotes waitlisted bookings into the new seats; shrinking below the
// seats already taken is a conflict.
func (l *Ledger) ResizeSession(ctx context.Context, sessionID uint64, capacity int) (state *SessionState, promoted []model.Booking, err error) {
	ctx, span := l.startSpan(ctx, "resize_session", idAttr("session.id", sessionID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "sessions", "resize_session", "session_id", sessionID, "capacity", capacity)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "resize session failed", err)
		}
	}()

	if capacity <= 0 {
		return nil, nil, &ValidationError{FieldErrors: map[string]string{"capacity": "must be positive"}}
	}

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		promoted = nil
		sess, err := l.lockSession(ctx, tx, logger, sessionID)
		if err != nil {
			return err
		}
		now := l.clock()
		if sess.Status != model.SessionScheduled || sess.StatusAt(now) != model.SessionScheduled {
			return fmt.Errorf("%w: session %d is %s", ErrSessionNotOpen, sess.ID, sess.StatusAt(now))
		}
		if capacity < sess.ConfirmedCount {
			return fmt.Errorf("%w: capacity %d below %d seats taken", ErrConflict, capacity, sess.ConfirmedCount)
		}
		if err := tx.UpdateSessionCapacity(ctx, sess.ID, capacity); err != nil {
			return storeErr(err, "session", sess.ID)
		}
		grew := capacity - sess.Capacity
		sess.Capacity = capacity
		if grew > 0 {
			if promoted, err = l.promoteUpTo(ctx, tx, sess, logger, now, fx, grew); err != nil {
				return err
			}
		}
		state = newSessionState(*sess, now)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("session resized", "promoted", len(promoted))
	return state, promoted, nil
}

// CancelSessionResult reports a session cancellation.
type CancelSessionResult struct {
	Session           model.Session
	BookingsCancelled int
	AlreadyCancelled  bool
}

// CancelSession cancels a session and every active booking in it,
// releasing credits and refunding drop-in fees.  The session is first
// marked cancelling; each booking is then cancelled in its own unit of
// work; the session becomes cancelled only when none is left.  A failure
// part-way leaves the session cancelling for the sweeper to finish.
func (l *Ledger) CancelSession(ctx context.Context, sessionID uint64, reason string) (res *CancelSessionResult, err error) {
	ctx, span := l.startSpan(ctx, "cancel_session", idAttr("session.id", sessionID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "sessions", "cancel_session", "session_id", sessionID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "cancel session failed", err)
		}
	}()

	already := false
	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session", sessionID)
		}
		switch sess.Status {
		case model.SessionCancelled:
			already = true
			return nil
		case model.SessionCancelling:
			return nil
		case model.SessionCompleted:
			return fmt.Errorf("%w: session %d already completed", ErrConflict, sess.ID)
		}
		if sess.StatusAt(l.clock()) == model.SessionCompleted {
			return fmt.Errorf("%w: session %d already ended", ErrConflict, sess.ID)
		}
		return tx.UpdateSessionStatus(ctx, sess.ID, model.SessionCancelling, reason)
	})
	if err != nil {
		return nil, err
	}
	if already {
		st, err := l.GetSessionState(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &CancelSessionResult{Session: st.Session, AlreadyCancelled: true}, nil
	}

	return l.finishCancellation(ctx, sessionID)
}

// finishCancellation drives a cancelling session to cancelled.
func (l *Ledger) finishCancellation(ctx context.Context, sessionID uint64) (*CancelSessionResult, error) {
	logger := serviceLogger(ctx, l.logger, "sessions", "finish_cancellation", "session_id", sessionID)
	res := &CancelSessionResult{}

	var active []model.Booking
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		active, err = tx.ListSessionBookings(ctx, sessionID, model.BookingConfirmed, model.BookingWaitlisted)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, b := range active {
		cancelled, err := l.cascadeCancel(ctx, logger, sessionID, b.ID)
		if err != nil {
			logger.Warn("cascade cancellation interrupted, session left cancelling",
				"booking_id", b.ID, "error", err, "error_kind", Kind(err))
			return nil, err
		}
		if cancelled {
			res.BookingsCancelled++
		}
	}

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session", sessionID)
		}
		if sess.Status == model.SessionCancelled {
			res.Session = *sess
			return nil
		}
		if sess.Status != model.SessionCancelling {
			return fmt.Errorf("%w: session %d is %s", ErrConflict, sess.ID, sess.Status)
		}
		left, err := tx.ListSessionBookings(ctx, sess.ID, model.BookingConfirmed, model.BookingWaitlisted)
		if err != nil {
			return err
		}
		if len(left) > 0 {
			return fmt.Errorf("%w: session %d still has %d active bookings", ErrConflict, sess.ID, len(left))
		}
		if err := tx.UpdateSessionStatus(ctx, sess.ID, model.SessionCancelled, sess.CancelReason); err != nil {
			return err
		}
		sess.Status = model.SessionCancelled
		res.Session = *sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("session cancelled", "bookings_cancelled", res.BookingsCancelled)
	return res, nil
}

// cascadeCancel cancels one booking of a cancelling session.
func (l *Ledger) cascadeCancel(ctx context.Context, logger *slog.Logger, sessionID, bookingID uint64) (bool, error) {
	cancelled := false
	err := l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session", sessionID)
		}
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return storeErr(err, "booking", bookingID)
		}
		if !b.State.Active() {
			return nil
		}
		now := l.clock()
		reason := "session_cancelled"
		if sess.CancelReason != "" {
			reason += ": " + sess.CancelReason
		}
		if _, _, err := l.cancelOne(ctx, tx, sess, b, cancelOptions{reason: reason, sessionCancelled: true}, now, fx); err != nil {
			return err
		}
		ev := sessionEvent(queue.SessionCancelled, sess, b, now)
		ev.Reason = sess.CancelReason
		fx.events = append(fx.events, ev)
		cancelled = true
		return nil
	})
	return cancelled, err
}

// ReconcileResult compares the cached counters with the booking set.
type ReconcileResult struct {
	SessionID        uint64
	CachedConfirmed  int
	CachedWaitlisted int
	ActualConfirmed  int
	ActualWaitlisted int
	Repaired         bool
}

// Drifted reports whether the counters disagreed with the bookings.
func (r ReconcileResult) Drifted() bool {
	return r.CachedConfirmed != r.ActualConfirmed || r.CachedWaitlisted != r.ActualWaitlisted
}

// Reconcile recounts the bookings of a session and repairs the cached
// counters when they drifted.  A booking set holding more seats than the
// capacity is a capacity fault and is not repaired.
func (l *Ledger) Reconcile(ctx context.Context, sessionID uint64) (res *ReconcileResult, err error) {
	ctx, span := l.startSpan(ctx, "reconcile", idAttr("session.id", sessionID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "sessions", "reconcile", "session_id", sessionID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "reconcile failed", err)
		}
	}()

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return storeErr(err, "session", sessionID)
		}
		bookings, err := tx.ListSessionBookings(ctx, sess.ID)
		if err != nil {
			return err
		}
		res = &ReconcileResult{
			SessionID:        sess.ID,
			CachedConfirmed:  sess.ConfirmedCount,
			CachedWaitlisted: sess.WaitlistCount,
		}
		for _, b := range bookings {
			switch {
			case b.State.HoldsSeat():
				res.ActualConfirmed++
			case b.State == model.BookingWaitlisted:
				res.ActualWaitlisted++
			}
		}
		if res.ActualConfirmed > sess.Capacity {
			logger.Error("bookings exceed session capacity",
				"capacity", sess.Capacity, "seat_holding_bookings", res.ActualConfirmed)
			return fmt.Errorf("%w: session %d has %d seat-holding bookings for %d seats",
				ErrCapacityFault, sess.ID, res.ActualConfirmed, sess.Capacity)
		}
		if !res.Drifted() {
			return nil
		}
		logger.Warn("session counters drifted, repairing",
			"cached_confirmed", res.CachedConfirmed, "actual_confirmed", res.ActualConfirmed,
			"cached_waitlisted", res.CachedWaitlisted, "actual_waitlisted", res.ActualWaitlisted)
		if err := tx.SetSessionCounters(ctx, sess.ID, res.ActualConfirmed, res.ActualWaitlisted); err != nil {
			return err
		}
		res.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AdvanceResult summarises one sweeper pass.
type AdvanceResult struct {
	Started   int
	Completed int
	NoShows   int
	Resumed   int
}

// AdvanceSessions moves sessions along scheduled, in_progress and
// completed as time passes, running the no-show sweep in the same unit of
// work as completion, and finishes cascades left in cancelling.  Each
// session is handled on its own; failures are joined and returned after
// the pass.
func (l *Ledger) AdvanceSessions(ctx context.Context) (res *AdvanceResult, err error) {
	ctx, span := l.startSpan(ctx, "advance_sessions")
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "sessions", "advance_sessions")

	now := l.clock()
	var due, stuck []model.Session
	err = l.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		due, err = tx.ListSessions(ctx, repository.SessionFilter{
			Statuses: []model.SessionStatus{model.SessionScheduled, model.SessionInProgress},
			StartsBy: now,
		})
		if err != nil {
			return err
		}
		stuck, err = tx.ListSessions(ctx, repository.SessionFilter{
			Statuses: []model.SessionStatus{model.SessionCancelling},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	res = &AdvanceResult{}
	var errs []error
	for _, s := range due {
		if ctx.Err() != nil {
			break
		}
		err := l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
			sess, err := l.lockSession(ctx, tx, logger, s.ID)
			if err != nil {
				return err
			}
			now := l.clock()
			next := sess.StatusAt(now)
			if next == sess.Status {
				return nil
			}
			switch next {
			case model.SessionInProgress:
				res.Started++
				return tx.UpdateSessionStatus(ctx, sess.ID, next, "")
			case model.SessionCompleted:
				sweep, err := l.completeSession(ctx, tx, sess, logger, now)
				if err != nil {
					return err
				}
				res.Completed++
				res.NoShows += sweep.NoShows
			}
			return nil
		})
		if err != nil {
			logFailure(ctx, logger.With("session_id", s.ID), "advance session failed", err)
			errs = append(errs, fmt.Errorf("session %d: %w", s.ID, err))
		}
	}

	for _, s := range stuck {
		if ctx.Err() != nil {
			break
		}
		if _, err := l.finishCancellation(ctx, s.ID); err != nil {
			errs = append(errs, fmt.Errorf("resume cancellation of session %d: %w", s.ID, err))
			continue
		}
		res.Resumed++
	}

	if res.Started+res.Completed+res.Resumed > 0 {
		logger.Info("sessions advanced", "started", res.Started, "completed", res.Completed,
			"no_shows", res.NoShows, "resumed_cancellations", res.Resumed)
	}
	return res, errors.Join(errs...)
}

// ReconcileOpen reconciles every session that can still change.
func (l *Ledger) ReconcileOpen(ctx context.Context) ([]ReconcileResult, error) {
	var sessions []model.Session
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		sessions, err = tx.ListSessions(ctx, repository.SessionFilter{
			Statuses: []model.SessionStatus{model.SessionScheduled, model.SessionInProgress, model.SessionCancelling},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	var (
		out  []ReconcileResult
		errs []error
	)
	for _, s := range sessions {
		r, err := l.Reconcile(ctx, s.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %d: %w", s.ID, err))
			continue
		}
		if r.Drifted() {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}
