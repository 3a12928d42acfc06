package service

import (
	"context"
	"strings"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// Catalog administers the class templates sessions are scheduled from.
type Catalog struct {
	store repository.Store
	now   func() time.Time
}

// NewCatalog returns a Catalog.  now defaults to time.Now.
func NewCatalog(store repository.Store, now func() time.Time) *Catalog {
	if store == nil {
		panic("service: NewCatalog requires a store")
	}
	if now == nil {
		now = time.Now
	}
	return &Catalog{store: store, now: now}
}

// CatalogInput carries the editable fields of a catalog entry.
type CatalogInput struct {
	Name            string
	Category        string
	Difficulty      model.Difficulty
	DefaultDuration time.Duration
	BasePriceCents  uint32
	Active          bool
}

func (in CatalogInput) validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.add("name", "is required")
	}
	if !in.Difficulty.Valid() {
		v.add("difficulty", "must be beginner, intermediate or advanced")
	}
	if in.DefaultDuration <= 0 {
		v.add("default_duration", "must be positive")
	}
	return v.orNil()
}

// Create stores a new catalog entry.
func (c *Catalog) Create(ctx context.Context, in CatalogInput) (*model.CatalogEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	e := &model.CatalogEntry{
		Name:            strings.TrimSpace(in.Name),
		Category:        strings.TrimSpace(in.Category),
		Difficulty:      in.Difficulty,
		DefaultDuration: in.DefaultDuration,
		BasePriceCents:  in.BasePriceCents,
		Active:          in.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := c.store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.InsertCatalogEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Update edits a catalog entry.  Sessions already scheduled keep the
// price and duration they were created with.
func (c *Catalog) Update(ctx context.Context, id uint64, in CatalogInput) (*model.CatalogEntry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var e *model.CatalogEntry
	err := c.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		if e, err = tx.GetCatalogEntry(ctx, id); err != nil {
			return storeErr(err, "catalog entry", id)
		}
		e.Name = strings.TrimSpace(in.Name)
		e.Category = strings.TrimSpace(in.Category)
		e.Difficulty = in.Difficulty
		e.DefaultDuration = in.DefaultDuration
		e.BasePriceCents = in.BasePriceCents
		e.Active = in.Active
		e.UpdatedAt = c.now().UTC()
		return tx.UpdateCatalogEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns one catalog entry.
func (c *Catalog) Get(ctx context.Context, id uint64) (*model.CatalogEntry, error) {
	var e *model.CatalogEntry
	err := c.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		e, err = tx.GetCatalogEntry(ctx, id)
		return storeErr(err, "catalog entry", id)
	})
	return e, err
}

// List returns catalog entries, optionally only the active ones.
func (c *Catalog) List(ctx context.Context, activeOnly bool) ([]model.CatalogEntry, error) {
	var out []model.CatalogEntry
	err := c.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.ListCatalogEntries(ctx, activeOnly)
		return err
	})
	return out, err
}
