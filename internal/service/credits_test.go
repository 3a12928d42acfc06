package service

import (
	"errors"
	"testing"
	"time"
)

func TestPackageLedger_CreditOperationsAreIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, up := f.packageMember(1, 2)

	for i := 0; i < 2; i++ {
		if err := f.packages.ReserveCredit(f.ctx, up.ID, 100); err != nil {
			t.Fatalf("reserve #%d: %v", i+1, err)
		}
	}
	if got := f.userPackage(up.ID); got.CreditsReserved != 1 || got.CreditsRemaining != 1 {
		t.Fatalf("expected one reservation, got %+v", got)
	}

	for i := 0; i < 2; i++ {
		if err := f.packages.ReleaseReservation(f.ctx, up.ID, 100); err != nil {
			t.Fatalf("release #%d: %v", i+1, err)
		}
	}
	if got := f.userPackage(up.ID); got.CreditsReserved != 0 || got.CreditsRemaining != 2 {
		t.Fatalf("expected one release, got %+v", got)
	}

	if err := f.packages.ReserveCredit(f.ctx, up.ID, 101); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.packages.ConsumeReservation(f.ctx, up.ID, 101); err != nil {
			t.Fatalf("consume #%d: %v", i+1, err)
		}
	}
	got := f.userPackage(up.ID)
	if got.CreditsConsumed != 1 || got.CreditsRemaining != 1 || !got.Balanced() {
		t.Fatalf("expected one consumption, got %+v", got)
	}

	// a consumed credit can no longer be released
	if err := f.packages.ReleaseReservation(f.ctx, up.ID, 101); err != nil {
		t.Fatalf("release after consume: %v", err)
	}
	if got := f.userPackage(up.ID); got.CreditsConsumed != 1 {
		t.Fatalf("consumed credit came back: %+v", got)
	}
}

func TestPackageLedger_ReserveCredit_Exhausted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, up := f.packageMember(1, 1)
	if err := f.packages.ReserveCredit(f.ctx, up.ID, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err := f.packages.ReserveCredit(f.ctx, up.ID, 2)

	if !errors.Is(err, ErrInsufficientCredit) {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
	if got := f.userPackage(up.ID); got.CreditsRemaining != 0 || got.CreditsReserved != 1 {
		t.Fatalf("unexpected credits %+v", got)
	}
}

func TestPackageLedger_ReleaseReservation_WrongPackage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, up := f.packageMember(1, 1)
	other := f.grant(1, 1)
	if err := f.packages.ReserveCredit(f.ctx, up.ID, 7); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err := f.packages.ReleaseReservation(f.ctx, other.ID, 7)

	if Kind(err) != "conflict" {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPackageLedger_Administration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.packages.CreatePackage(f.ctx, PackageInput{Name: "", Credits: 0, ValidityDays: 0})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || len(vErr.FieldErrors) != 3 {
		t.Fatalf("expected three field errors, got %v", err)
	}

	pkg, err := f.packages.CreatePackage(f.ctx, PackageInput{Name: "10 classes", Credits: 10, ValidityDays: 60, PriceCents: 9000})
	if err != nil {
		t.Fatalf("create package: %v", err)
	}
	up, err := f.packages.GrantPackage(f.ctx, 4, pkg.ID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if up.CreditsRemaining != 10 || !up.ExpiresAt.Equal(f.clock.Now().Add(60*24*time.Hour)) {
		t.Fatalf("unexpected member package %+v", up)
	}
	if _, err := f.packages.GrantPackage(f.ctx, 4, 999); Kind(err) != "not_found" {
		t.Fatalf("expected not_found for unknown package, got %v", err)
	}
	mine, err := f.packages.MemberPackages(f.ctx, 4)
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected one package, got %v (%v)", mine, err)
	}
	all, err := f.packages.ListPackages(f.ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected one definition, got %v (%v)", all, err)
	}
}
