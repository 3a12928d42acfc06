package model

import "time"

// Package defines a prepaid bundle of session credits.
type Package struct {
	ID           uint64    // packages.id
	Name         string    // packages.name
	Credits      int       // packages.credits
	ValidityDays int       // packages.validity_days
	PriceCents   uint32    // packages.price_cents
	CreatedAt    time.Time // packages.created_at
}

// UserPackage is a package instance owned by a member.  Its credits are
// split in three buckets whose sum always equals CreditsTotal:
// available (CreditsRemaining), reserved by confirmed bookings, and
// permanently consumed.
//
// Fields:
//  ID               – primary key identifier.
//  MemberID         – owner of the package.
//  PackageID        – package definition the instance was granted from.
//  CreditsTotal     – credits granted.
//  CreditsRemaining – credits free to reserve.
//  CreditsReserved  – credits held by confirmed bookings.
//  CreditsConsumed  – credits spent.
//  ExpiresAt        – after this instant no credit can be reserved.
type UserPackage struct {
	ID               uint64    // user_packages.id
	MemberID         uint64    // user_packages.member_id
	PackageID        uint64    // user_packages.package_id
	CreditsTotal     int       // user_packages.credits_total
	CreditsRemaining int       // user_packages.credits_remaining
	CreditsReserved  int       // user_packages.credits_reserved
	CreditsConsumed  int       // user_packages.credits_consumed
	ExpiresAt        time.Time // user_packages.expires_at
	CreatedAt        time.Time // user_packages.created_at
}

// Balanced reports whether the three credit buckets add up to the total.
func (p UserPackage) Balanced() bool {
	return p.CreditsRemaining >= 0 && p.CreditsReserved >= 0 && p.CreditsConsumed >= 0 &&
		p.CreditsRemaining+p.CreditsReserved+p.CreditsConsumed == p.CreditsTotal
}

// UsableFor reports whether a credit of p can pay for a session starting
// at startsAt when booked at now.
func (p UserPackage) UsableFor(now, startsAt time.Time) bool {
	return p.CreditsRemaining > 0 && p.ExpiresAt.After(now) && p.ExpiresAt.After(startsAt)
}

// HoldState is the status of the credit a booking drew from a package.
type HoldState string

const (
	HoldReserved HoldState = "reserved"
	HoldReleased HoldState = "released"
	HoldConsumed HoldState = "consumed"
)

// CreditHold ties one booking to the credit it reserved.  Keying holds by
// booking makes reserve, release and consume idempotent under retries.
type CreditHold struct {
	BookingID     uint64    // credit_holds.booking_id
	UserPackageID uint64    // credit_holds.user_package_id
	State         HoldState // credit_holds.state
	UpdatedAt     time.Time // credit_holds.updated_at
}
