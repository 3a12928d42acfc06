package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

const maxCommentLen = 2000

// RatingInput rates a session the member attended.
type RatingInput struct {
	SessionID uint64
	MemberID  uint64
	Score     int
	Comment   string
}

func (in RatingInput) validate() error {
	v := &ValidationError{}
	if in.SessionID == 0 {
		v.add("session_id", "is required")
	}
	if in.MemberID == 0 {
		v.add("member_id", "is required")
	}
	if in.Score < model.MinRatingScore || in.Score > model.MaxRatingScore {
		v.add("score", fmt.Sprintf("must be between %d and %d", model.MinRatingScore, model.MaxRatingScore))
	}
	if len(in.Comment) > maxCommentLen {
		v.add("comment", fmt.Sprintf("must be at most %d bytes", maxCommentLen))
	}
	return v.orNil()
}

// RateSession creates or edits the member's rating of a session.  Only
// members whose booking reached checked_in may rate, and only until the
// edit window after the session end closes.  The running sums of the
// session and its catalog entry move by the difference.
func (l *Ledger) RateSession(ctx context.Context, in RatingInput) (rating *model.Rating, err error) {
	ctx, span := l.startSpan(ctx, "rate_session", idAttr("session.id", in.SessionID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "ratings", "rate_session", "session_id", in.SessionID, "member_id", in.MemberID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "rate session failed", err)
		}
	}()

	if err := in.validate(); err != nil {
		return nil, err
	}

	created := false
	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		created = false
		sess, err := tx.LockSession(ctx, in.SessionID)
		if err != nil {
			return storeErr(err, "session", in.SessionID)
		}
		if _, err := tx.FindMemberBooking(ctx, sess.ID, in.MemberID, model.BookingCheckedIn); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: member %d in session %d", ErrNotAttended, in.MemberID, sess.ID)
			}
			return err
		}
		now := l.clock()
		if !now.Before(sess.EndsAt().Add(l.policy.RatingEditWindow)) {
			return fmt.Errorf("%w: session %d", ErrRatingLocked, sess.ID)
		}

		comment := strings.TrimSpace(in.Comment)
		existing, err := tx.GetRating(ctx, sess.ID, in.MemberID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			rating = &model.Rating{
				SessionID: sess.ID,
				CatalogID: sess.CatalogID,
				MemberID:  in.MemberID,
				Score:     in.Score,
				Comment:   comment,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.InsertRating(ctx, rating); err != nil {
				return storeErr(err, "rating", sess.ID)
			}
			created = true
			return addRating(ctx, tx, sess, int64(in.Score), 1)
		case err != nil:
			return err
		}

		delta := int64(in.Score - existing.Score)
		existing.Score = in.Score
		existing.Comment = comment
		existing.UpdatedAt = now
		if err := tx.UpdateRating(ctx, existing); err != nil {
			return err
		}
		rating = existing
		if delta == 0 {
			return nil
		}
		return addRating(ctx, tx, sess, delta, 0)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("session rated", "score", rating.Score, "created", created)
	return rating, nil
}

func addRating(ctx context.Context, tx repository.Tx, sess *model.Session, sum, count int64) error {
	if err := tx.AddSessionRating(ctx, sess.ID, sum, count); err != nil {
		return err
	}
	return tx.AddCatalogRating(ctx, sess.CatalogID, sum, count)
}

// SessionRatings lists the ratings of a session.
func (l *Ledger) SessionRatings(ctx context.Context, sessionID uint64) ([]model.Rating, error) {
	var out []model.Rating
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetSession(ctx, sessionID); err != nil {
			return storeErr(err, "session", sessionID)
		}
		var err error
		out, err = tx.ListSessionRatings(ctx, sessionID)
		return err
	})
	return out, err
}
