package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// The credit helpers below run inside a caller's unit of work.  Each one
// is keyed by booking through the credit hold, so repeating a call for the
// same booking changes nothing.

// reserveCredit moves one credit of the package from available to
// reserved on behalf of the booking.
func reserveCredit(ctx context.Context, tx repository.Tx, userPackageID, bookingID uint64, now time.Time) error {
	hold, err := tx.GetCreditHold(ctx, bookingID)
	switch {
	case err == nil:
		if hold.State == model.HoldReserved && hold.UserPackageID == userPackageID {
			return nil
		}
		if hold.State != model.HoldReleased {
			return fmt.Errorf("%w: booking %d already holds a %s credit of package %d",
				ErrConflict, bookingID, hold.State, hold.UserPackageID)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	up, err := tx.LockUserPackage(ctx, userPackageID)
	if err != nil {
		return storeErr(err, "package", userPackageID)
	}
	if up.CreditsRemaining <= 0 {
		return fmt.Errorf("%w: package %d has no credits left", ErrInsufficientCredit, up.ID)
	}
	up.CreditsRemaining--
	up.CreditsReserved++
	if err := tx.UpdateUserPackageCredits(ctx, up); err != nil {
		return storeErr(err, "package", up.ID)
	}
	return tx.SaveCreditHold(ctx, &model.CreditHold{
		BookingID:     bookingID,
		UserPackageID: up.ID,
		State:         model.HoldReserved,
		UpdatedAt:     now,
	})
}

// releaseReservation gives a reserved credit back.  It is a no-op unless
// the booking currently holds a reserved credit.
func releaseReservation(ctx context.Context, tx repository.Tx, bookingID uint64, now time.Time) error {
	return settleHold(ctx, tx, 0, bookingID, model.HoldReleased, now)
}

// consumeReservation spends a reserved credit permanently.  It is a no-op
// unless the booking currently holds a reserved credit.
func consumeReservation(ctx context.Context, tx repository.Tx, bookingID uint64, now time.Time) error {
	return settleHold(ctx, tx, 0, bookingID, model.HoldConsumed, now)
}

// settleHold moves a reserved credit to released or consumed.  A non-zero
// userPackageID must match the package the hold was taken from.
func settleHold(ctx context.Context, tx repository.Tx, userPackageID, bookingID uint64, to model.HoldState, now time.Time) error {
	hold, err := tx.GetCreditHold(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if userPackageID != 0 && hold.UserPackageID != userPackageID {
		return fmt.Errorf("%w: booking %d holds a credit of package %d, not %d",
			ErrConflict, bookingID, hold.UserPackageID, userPackageID)
	}
	if hold.State != model.HoldReserved {
		return nil
	}

	up, err := tx.LockUserPackage(ctx, hold.UserPackageID)
	if err != nil {
		return storeErr(err, "package", hold.UserPackageID)
	}
	if up.CreditsReserved <= 0 {
		return fmt.Errorf("%w: package %d has a hold for booking %d but no reserved credits",
			ErrCapacityFault, up.ID, bookingID)
	}
	up.CreditsReserved--
	if to == model.HoldConsumed {
		up.CreditsConsumed++
	} else {
		up.CreditsRemaining++
	}
	if err := tx.UpdateUserPackageCredits(ctx, up); err != nil {
		return storeErr(err, "package", up.ID)
	}
	hold.State = to
	hold.UpdatedAt = now
	return tx.SaveCreditHold(ctx, hold)
}

// pickPackage chooses the member package that pays for a seat: the
// requested one when given, otherwise the usable package expiring first.
// The chosen package is locked.
func pickPackage(ctx context.Context, tx repository.Tx, memberID, requested uint64, sess *model.Session, now time.Time) (*model.UserPackage, error) {
	if requested != 0 {
		up, err := tx.LockUserPackage(ctx, requested)
		if err != nil {
			return nil, storeErr(err, "package", requested)
		}
		if up.MemberID != memberID {
			return nil, fmt.Errorf("%w: package %d", ErrForbidden, requested)
		}
		if !up.UsableFor(now, sess.StartsAt) {
			return nil, fmt.Errorf("%w: package %d cannot pay for session %d", ErrInsufficientCredit, up.ID, sess.ID)
		}
		return up, nil
	}

	candidates, err := tx.ListUserPackages(ctx, memberID)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if !c.UsableFor(now, sess.StartsAt) {
			continue
		}
		up, err := tx.LockUserPackage(ctx, c.ID)
		if err != nil {
			return nil, storeErr(err, "package", c.ID)
		}
		// re-check under the lock; a concurrent booking may have taken the last credit
		if up.UsableFor(now, sess.StartsAt) {
			return up, nil
		}
	}
	return nil, fmt.Errorf("%w: member %d has no usable package for session %d", ErrInsufficientCredit, memberID, sess.ID)
}

// PackageLedger administers packages and exposes the credit operations
// directly, for callers outside the booking flow.
type PackageLedger struct {
	store repository.Store
	now   func() time.Time
}

// NewPackageLedger returns a PackageLedger.  now defaults to time.Now.
func NewPackageLedger(store repository.Store, now func() time.Time) *PackageLedger {
	if store == nil {
		panic("service: NewPackageLedger requires a store")
	}
	if now == nil {
		now = time.Now
	}
	return &PackageLedger{store: store, now: now}
}

// PackageInput defines a new package.
type PackageInput struct {
	Name         string
	Credits      int
	ValidityDays int
	PriceCents   uint32
}

func (in PackageInput) validate() error {
	v := &ValidationError{}
	if in.Name == "" {
		v.add("name", "is required")
	}
	if in.Credits <= 0 {
		v.add("credits", "must be positive")
	}
	if in.ValidityDays <= 0 {
		v.add("validity_days", "must be positive")
	}
	return v.orNil()
}

// CreatePackage stores a package definition.
func (p *PackageLedger) CreatePackage(ctx context.Context, in PackageInput) (*model.Package, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	pkg := &model.Package{
		Name:         in.Name,
		Credits:      in.Credits,
		ValidityDays: in.ValidityDays,
		PriceCents:   in.PriceCents,
		CreatedAt:    p.now().UTC(),
	}
	err := p.store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.InsertPackage(ctx, pkg)
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// ListPackages returns every package definition.
func (p *PackageLedger) ListPackages(ctx context.Context) ([]model.Package, error) {
	var out []model.Package
	err := p.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.ListPackages(ctx)
		return err
	})
	return out, err
}

// GrantPackage gives the member a fresh instance of the package, valid
// for the package's validity window from now.  Purchase happens elsewhere.
func (p *PackageLedger) GrantPackage(ctx context.Context, memberID, packageID uint64) (*model.UserPackage, error) {
	if memberID == 0 {
		return nil, &ValidationError{FieldErrors: map[string]string{"member_id": "is required"}}
	}
	var up *model.UserPackage
	err := p.store.Atomic(ctx, func(tx repository.Tx) error {
		pkg, err := tx.GetPackage(ctx, packageID)
		if err != nil {
			return storeErr(err, "package definition", packageID)
		}
		now := p.now().UTC()
		up = &model.UserPackage{
			MemberID:         memberID,
			PackageID:        pkg.ID,
			CreditsTotal:     pkg.Credits,
			CreditsRemaining: pkg.Credits,
			ExpiresAt:        now.Add(time.Duration(pkg.ValidityDays) * 24 * time.Hour),
			CreatedAt:        now,
		}
		return tx.InsertUserPackage(ctx, up)
	})
	if err != nil {
		return nil, err
	}
	return up, nil
}

// MemberPackages lists the member's packages, soonest expiry first.
func (p *PackageLedger) MemberPackages(ctx context.Context, memberID uint64) ([]model.UserPackage, error) {
	var out []model.UserPackage
	err := p.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.ListUserPackages(ctx, memberID)
		return err
	})
	return out, err
}

// GetUserPackage returns one member package.
func (p *PackageLedger) GetUserPackage(ctx context.Context, id uint64) (*model.UserPackage, error) {
	var up *model.UserPackage
	err := p.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		up, err = tx.GetUserPackage(ctx, id)
		return storeErr(err, "package", id)
	})
	return up, err
}

// ReserveCredit reserves one credit of the package for the booking.
func (p *PackageLedger) ReserveCredit(ctx context.Context, userPackageID, bookingID uint64) error {
	return p.store.Atomic(ctx, func(tx repository.Tx) error {
		return reserveCredit(ctx, tx, userPackageID, bookingID, p.now().UTC())
	})
}

// ReleaseReservation returns the credit the booking reserved on the package.
func (p *PackageLedger) ReleaseReservation(ctx context.Context, userPackageID, bookingID uint64) error {
	return p.store.Atomic(ctx, func(tx repository.Tx) error {
		return settleHold(ctx, tx, userPackageID, bookingID, model.HoldReleased, p.now().UTC())
	})
}

// ConsumeReservation spends the credit the booking reserved on the package.
func (p *PackageLedger) ConsumeReservation(ctx context.Context, userPackageID, bookingID uint64) error {
	return p.store.Atomic(ctx, func(tx repository.Tx) error {
		return settleHold(ctx, tx, userPackageID, bookingID, model.HoldConsumed, p.now().UTC())
	})
}
