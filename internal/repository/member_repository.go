package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

// MemberRepo is the read side of the member directory the scheduling
// service consults before booking.  The directory itself is owned by
// another system; this table is its local replica.
type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

// GetMember fetches a member by id.
func (r *MemberRepo) GetMember(ctx context.Context, id uint64) (*model.Member, error) {
	var m model.Member
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,status,display_name FROM members WHERE id=? LIMIT 1",
		id).Scan(&m.ID, &m.Status, &m.DisplayName)
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// SaveMember inserts the member or refreshes its status and name.
func (r *MemberRepo) SaveMember(ctx context.Context, m model.Member) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE members SET status=?, display_name=? WHERE id=?",
		string(m.Status), m.DisplayName, m.ID)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO members (id, status, display_name, created_at) VALUES (?,?,?,?)",
		m.ID, string(m.Status), m.DisplayName, toMS(time.Now()))
	if err = translate(err); errors.Is(err, ErrConflict) {
		// inserted concurrently; the caller's values win on the next save
		return nil
	}
	return err
}
