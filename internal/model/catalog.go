package model

import "time"

// Difficulty grades how demanding a class is.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// CatalogEntry is a class template that sessions are scheduled from.
// Administrative edits to an entry never change sessions that were
// already created from it: a session snapshots price and duration.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name of the class (e.g. "Morning Yoga").
//  Category        – free-form grouping such as yoga, spinning, strength.
//  Difficulty      – beginner, intermediate or advanced.
//  DefaultDuration – duration used when a session does not override it.
//  BasePriceCents  – drop-in price copied into new sessions.
//  Active          – inactive entries cannot be scheduled.
//  RatingSum       – running sum of all rating scores for the entry.
//  RatingCount     – number of ratings folded into RatingSum.
type CatalogEntry struct {
	ID              uint64        // catalog_entries.id
	Name            string        // catalog_entries.name
	Category        string        // catalog_entries.category
	Difficulty      Difficulty    // catalog_entries.difficulty
	DefaultDuration time.Duration // catalog_entries.default_duration_ms
	BasePriceCents  uint32        // catalog_entries.base_price_cents
	Active          bool          // catalog_entries.active
	RatingSum       int64         // catalog_entries.rating_sum
	RatingCount     int64         // catalog_entries.rating_count
	CreatedAt       time.Time     // catalog_entries.created_at
	UpdatedAt       time.Time     // catalog_entries.updated_at
}

// AverageRating returns the arithmetic mean of all scores, or zero when
// the entry has not been rated yet.
func (c CatalogEntry) AverageRating() float64 {
	return average(c.RatingSum, c.RatingCount)
}

func average(sum, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return float64(sum) / float64(count)
}
