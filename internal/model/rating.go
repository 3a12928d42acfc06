package model

import "time"

// Rating score bounds.
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating is a member's feedback on a session they attended.  There is at
// most one rating per (session, member) pair.
type Rating struct {
	ID        uint64    // ratings.id
	SessionID uint64    // ratings.session_id
	CatalogID uint64    // ratings.catalog_id
	MemberID  uint64    // ratings.member_id
	Score     int       // ratings.score
	Comment   string    // ratings.comment
	CreatedAt time.Time // ratings.created_at
	UpdatedAt time.Time // ratings.updated_at
}
