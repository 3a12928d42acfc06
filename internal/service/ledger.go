package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// MemberDirectory resolves the members allowed to book.
type MemberDirectory interface {
	GetMember(ctx context.Context, id uint64) (*model.Member, error)
}

// PaymentService charges and refunds drop-in fees.  ChargeDropinFee must
// return the same reference for a repeated key and
// repository.ErrInsufficientFunds when the charge is declined.
type PaymentService interface {
	ChargeDropinFee(ctx context.Context, memberID uint64, amountCents uint32, key string) (string, error)
	RefundDropinFee(ctx context.Context, ref string) error
}

// Notifier delivers events asynchronously.  Notify must not block.
type Notifier interface {
	Notify(ev queue.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(queue.Event) {}

// DefaultLockTimeout applies when Policy.LockTimeout is not set.
const DefaultLockTimeout = 5 * time.Second

// Policy holds the time rules of the reservation ledger.
type Policy struct {
	// CancelCutoff is how long before start a confirmed booking can still
	// be cancelled with its credit released.
	CancelCutoff time.Duration
	// LatestBookingOffset closes booking this long before start.
	LatestBookingOffset time.Duration
	// BookingOpensBefore, when positive, rejects requests earlier than
	// this long before start.
	BookingOpensBefore time.Duration
	// CheckInOpensBefore is when doors open relative to start.
	CheckInOpensBefore time.Duration
	// LockTimeout bounds how long one unit of work may wait for locks.
	// Zero selects DefaultLockTimeout.
	LockTimeout time.Duration
	// RatingEditWindow is how long after the session end ratings stay editable.
	RatingEditWindow time.Duration
}

// Validate rejects negative durations and a non-positive lock timeout.
func (p Policy) Validate() error {
	v := &ValidationError{}
	for name, d := range map[string]time.Duration{
		"cancel_cutoff":         p.CancelCutoff,
		"latest_booking_offset": p.LatestBookingOffset,
		"booking_opens_before":  p.BookingOpensBefore,
		"checkin_opens_before":  p.CheckInOpensBefore,
		"lock_timeout":          p.LockTimeout,
		"rating_edit_window":    p.RatingEditWindow,
	} {
		if d < 0 {
			v.add(name, "must not be negative")
		}
	}
	if p.LockTimeout == 0 {
		v.add("lock_timeout", "must be positive")
	}
	return v.orNil()
}

// Ledger is the reservation ledger: it owns the booking state machine,
// seat accounting, waitlist promotion, attendance and ratings of every
// session.
type Ledger struct {
	store    repository.Store
	members  MemberDirectory
	payments PaymentService
	notifier Notifier
	policy   Policy
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option { return func(l *Ledger) { l.logger = logger } }

func WithNotifier(n Notifier) Option { return func(l *Ledger) { l.notifier = n } }

func WithTracer(t trace.Tracer) Option { return func(l *Ledger) { l.tracer = t } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// NewLedger builds a Ledger.  store, members and payments are required.
func NewLedger(store repository.Store, members MemberDirectory, payments PaymentService, policy Policy, opts ...Option) *Ledger {
	if store == nil || members == nil || payments == nil {
		panic("service: NewLedger requires store, members and payments")
	}
	l := &Ledger{
		store:    store,
		members:  members,
		payments: payments,
		policy:   policy,
		now:      time.Now,
	}
	if l.policy.LockTimeout <= 0 {
		l.policy.LockTimeout = DefaultLockTimeout
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = defaultLogger(l.logger)
	if l.notifier == nil {
		l.notifier = nopNotifier{}
	}
	if l.tracer == nil {
		l.tracer = noop.NewTracerProvider().Tracer("")
	}
	return l
}

// Policy returns the active time rules.
func (l *Ledger) Policy() Policy { return l.policy }

func (l *Ledger) clock() time.Time { return l.now().UTC() }

// effects collects what must happen outside the unit of work: events
// after commit, refunds after commit, and compensation of charges taken
// inside a unit of work that failed.
type effects struct {
	events  []queue.Event
	refunds []string
	charges []string
}

// atomic runs fn in one unit of work bounded by the lock timeout, then
// settles fx.  A timeout while the caller is still waiting is reported as
// ErrBusy.
func (l *Ledger) atomic(ctx context.Context, logger *slog.Logger, fn func(ctx context.Context, tx repository.Tx, fx *effects) error) error {
	fx := &effects{}
	wctx, cancel := context.WithTimeout(ctx, l.policy.LockTimeout)
	defer cancel()

	err := l.store.Atomic(wctx, func(tx repository.Tx) error {
		return fn(wctx, tx, fx)
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: lock wait exceeded %s", ErrBusy, l.policy.LockTimeout)
		}
		if errors.Is(err, repository.ErrBusy) && !errors.Is(err, ErrBusy) {
			err = fmt.Errorf("%w: %w", ErrBusy, err)
		}
		l.compensate(logger, fx.charges)
		return err
	}

	l.compensate(logger, fx.refunds)
	for _, ev := range fx.events {
		l.notifier.Notify(ev)
	}
	return nil
}

// compensate refunds drop-in charges.  It runs detached from the request
// context so a client disconnect cannot leave a member charged.
func (l *Ledger) compensate(logger *slog.Logger, refs []string) {
	for _, ref := range refs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := l.payments.RefundDropinFee(ctx, ref); err != nil {
			logger.Error("drop-in refund failed", "charge_ref", ref, "error", err)
		}
		cancel()
	}
}

func (l *Ledger) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, "ledger."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
	}
	span.End()
}

func idAttr(key string, id uint64) attribute.KeyValue {
	return attribute.Int64(key, int64(id))
}

// lockSession takes the session lock and refuses to go on when the
// cached counters are already inconsistent.
func (l *Ledger) lockSession(ctx context.Context, tx repository.Tx, logger *slog.Logger, id uint64) (*model.Session, error) {
	sess, err := tx.LockSession(ctx, id)
	if err != nil {
		return nil, storeErr(err, "session", id)
	}
	if !sess.CountersValid() {
		logger.Error("session counters inconsistent, refusing mutation",
			"session_id", sess.ID, "capacity", sess.Capacity,
			"confirmed_count", sess.ConfirmedCount, "waitlist_count", sess.WaitlistCount)
		return nil, fmt.Errorf("%w: session %d confirmed=%d capacity=%d waitlist=%d",
			ErrCapacityFault, sess.ID, sess.ConfirmedCount, sess.Capacity, sess.WaitlistCount)
	}
	return sess, nil
}

// activeMember checks the member directory.
func (l *Ledger) activeMember(ctx context.Context, id uint64) error {
	m, err := l.members.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: member %d", ErrNotFound, id)
		}
		return fmt.Errorf("member directory: %w", err)
	}
	if !m.CanBook() {
		return fmt.Errorf("%w: member %d is %s", ErrMemberInactive, id, m.Status)
	}
	return nil
}

func sessionEvent(typ queue.EventType, sess *model.Session, b *model.Booking, at time.Time) queue.Event {
	ev := queue.NewEvent(typ, at)
	ev.SessionID = sess.ID
	ev.Room = sess.Room
	ev.StartsAt = sess.StartsAt.UTC().Format(time.RFC3339)
	if b != nil {
		ev.BookingID = b.ID
		ev.MemberID = b.MemberID
	}
	return ev
}

// transition applies ev to b, mapping state machine refusals.
func transition(b *model.Booking, ev model.BookingEvent, at time.Time) error {
	from := b.State
	if err := b.Apply(ev, at); err != nil {
		return fmt.Errorf("%w: booking %d is %s, cannot %s", ErrInvalidTransition, b.ID, from, ev)
	}
	return nil
}
