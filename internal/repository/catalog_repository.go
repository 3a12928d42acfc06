package repository

import (
	"context"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

const catalogColumns = `id, name, category, difficulty, default_duration_ms, base_price_cents, active, rating_sum, rating_count, created_at, updated_at`

func scanCatalogEntry(row rowScanner) (*model.CatalogEntry, error) {
	var (
		e                   model.CatalogEntry
		durMS, created, upd int64
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Category, &e.Difficulty, &durMS, &e.BasePriceCents,
		&e.Active, &e.RatingSum, &e.RatingCount, &created, &upd); err != nil {
		return nil, translate(err)
	}
	e.DefaultDuration = time.Duration(durMS) * time.Millisecond
	e.CreatedAt = fromMS(created)
	e.UpdatedAt = fromMS(upd)
	return &e, nil
}

func (t *sqlTx) InsertCatalogEntry(ctx context.Context, e *model.CatalogEntry) error {
	const q = `INSERT INTO catalog_entries (name, category, difficulty, default_duration_ms, base_price_cents, active, rating_sum, rating_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`
	id, err := t.insert(ctx, q, e.Name, e.Category, string(e.Difficulty), e.DefaultDuration.Milliseconds(),
		e.BasePriceCents, e.Active, toMS(e.CreatedAt), toMS(e.UpdatedAt))
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// UpdateCatalogEntry rewrites the editable fields.  Rating totals are
// owned by AddCatalogRating.
func (t *sqlTx) UpdateCatalogEntry(ctx context.Context, e *model.CatalogEntry) error {
	const q = `UPDATE catalog_entries SET name = ?, category = ?, difficulty = ?, default_duration_ms = ?, base_price_cents = ?, active = ?, updated_at = ? WHERE id = ?`
	return t.execOne(ctx, q, e.Name, e.Category, string(e.Difficulty), e.DefaultDuration.Milliseconds(),
		e.BasePriceCents, e.Active, toMS(e.UpdatedAt), e.ID)
}

func (t *sqlTx) GetCatalogEntry(ctx context.Context, id uint64) (*model.CatalogEntry, error) {
	q := `SELECT ` + catalogColumns + ` FROM catalog_entries WHERE id = ?`
	return scanCatalogEntry(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) ListCatalogEntries(ctx context.Context, activeOnly bool) ([]model.CatalogEntry, error) {
	q := `SELECT ` + catalogColumns + ` FROM catalog_entries`
	if activeOnly {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY name, id`
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []model.CatalogEntry
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, translate(rows.Err())
}

func (t *sqlTx) AddCatalogRating(ctx context.Context, id uint64, sumDelta, countDelta int64) error {
	const q = `UPDATE catalog_entries SET rating_sum = rating_sum + ?, rating_count = rating_count + ? WHERE id = ?`
	return t.execOne(ctx, q, sumDelta, countDelta, id)
}
