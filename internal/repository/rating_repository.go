package repository

import (
	"context"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

const ratingColumns = `id, session_id, catalog_id, member_id, score, comment, created_at, updated_at`

func scanRating(row rowScanner) (*model.Rating, error) {
	var (
		r            model.Rating
		created, upd int64
	)
	if err := row.Scan(&r.ID, &r.SessionID, &r.CatalogID, &r.MemberID, &r.Score, &r.Comment, &created, &upd); err != nil {
		return nil, translate(err)
	}
	r.CreatedAt = fromMS(created)
	r.UpdatedAt = fromMS(upd)
	return &r, nil
}

func (t *sqlTx) GetRating(ctx context.Context, sessionID, memberID uint64) (*model.Rating, error) {
	q := `SELECT ` + ratingColumns + ` FROM ratings WHERE session_id = ? AND member_id = ?`
	return scanRating(t.tx.QueryRowContext(ctx, q, sessionID, memberID))
}

func (t *sqlTx) InsertRating(ctx context.Context, r *model.Rating) error {
	const q = `INSERT INTO ratings (session_id, catalog_id, member_id, score, comment, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	id, err := t.insert(ctx, q, r.SessionID, r.CatalogID, r.MemberID, r.Score, r.Comment, toMS(r.CreatedAt), toMS(r.UpdatedAt))
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (t *sqlTx) UpdateRating(ctx context.Context, r *model.Rating) error {
	const q = `UPDATE ratings SET score = ?, comment = ?, updated_at = ? WHERE id = ?`
	return t.execOne(ctx, q, r.Score, r.Comment, toMS(r.UpdatedAt), r.ID)
}

func (t *sqlTx) ListSessionRatings(ctx context.Context, sessionID uint64) ([]model.Rating, error) {
	q := `SELECT ` + ratingColumns + ` FROM ratings WHERE session_id = ? ORDER BY id`
	rows, err := t.tx.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []model.Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, translate(rows.Err())
}
