// README: Derivation tests: effective status, mileage, service-due, expiry.
package fleet

import (
	"testing"
	"time"

	"fleetops/internal/modules/trip"
	"fleetops/internal/types"
)

func idp(v string) *types.ID { id := types.ID(v); return &id }
func fp(v float64) *float64  { return &v }
func sp(v string) *string    { return &v }

func TestResolveMaintenanceWins(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	v := Vehicle{ID: "v1", Plate: "CAB-1", Status: DocInMaintenance}
	trips := []trip.Trip{
		{VehicleID: idp("v1"), Status: trip.StatusInProgress},
	}
	if got := Resolve(v, trips, now); got != InMaintenance {
		t.Fatalf("Resolve = %s, want in-maintenance", got)
	}
}

func TestResolveInUse(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)
	tomorrow := now.AddDate(0, 0, 1)
	v := Vehicle{ID: "v1", Plate: "CAB-1", Status: DocAvailable}

	cases := []struct {
		name string
		tr   trip.Trip
		want EffectiveStatus
	}{
		{"in-progress any day", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusInProgress, ScheduledAt: tomorrow}, InUse},
		{"approved today", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusApproved, ScheduledAt: today}, InUse},
		{"reassigned today", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusReassigned, ScheduledAt: today}, InUse},
		{"merge-approved today", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusMergeApproved, ScheduledAt: today}, InUse},
		{"approved tomorrow", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusApproved, ScheduledAt: tomorrow}, Available},
		{"pending today", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusPending, ScheduledAt: today}, Available},
		{"completed today", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusCompleted, ScheduledAt: today}, Available},
		{"broken-down ignored", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusBrokenDown, ScheduledAt: today}, Available},
		{"cancelled ignored", trip.Trip{VehicleID: idp("v1"), Status: trip.StatusCancelled, ScheduledAt: today}, Available},
		{"other vehicle", trip.Trip{VehicleID: idp("v2"), Status: trip.StatusInProgress, ScheduledAt: today}, Available},
		{"plate match", trip.Trip{VehiclePlate: sp("CAB-1"), Status: trip.StatusInProgress, ScheduledAt: today}, InUse},
	}
	for _, tc := range cases {
		if got := Resolve(v, []trip.Trip{tc.tr}, now); got != tc.want {
			t.Errorf("%s: Resolve = %s, want %s", tc.name, got, tc.want)
		}
	}
}

// Resolve is a pure function: running it twice over the same snapshot gives
// the same answer, and it never mutates its inputs.
func TestResolveIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	v := Vehicle{ID: "v1", Plate: "CAB-1", Status: DocAvailable}
	trips := []trip.Trip{
		{VehicleID: idp("v1"), Status: trip.StatusApproved, ScheduledAt: now},
		{VehicleID: idp("v1"), Status: trip.StatusCompleted, ScheduledAt: now},
	}
	first := Resolve(v, trips, now)
	second := Resolve(v, trips, now)
	if first != second || first != InUse {
		t.Fatalf("Resolve not stable: %s then %s", first, second)
	}
}

func TestTotalMileage(t *testing.T) {
	v := Vehicle{ID: "v1", Plate: "CAB-1", InitialOdometer: 5000}
	finished := []trip.Trip{
		// km_run wins over odometer delta
		{VehicleID: idp("v1"), Status: trip.StatusCompleted, KmRun: fp(100), OdometerStart: fp(0), OdometerEnd: fp(999)},
		// odometer delta
		{VehicleID: idp("v1"), Status: trip.StatusCompleted, OdometerStart: fp(1000), OdometerEnd: fp(1200)},
		// breakdown-point delta via plate match
		{VehiclePlate: sp("CAB-1"), Status: trip.StatusBrokenDown, OdometerStart: fp(2000), Breakdown: &trip.BreakdownReport{Odometer: 2050}},
		// other vehicle ignored
		{VehicleID: idp("v2"), Status: trip.StatusCompleted, KmRun: fp(999)},
		// negative distances ignored
		{VehicleID: idp("v1"), Status: trip.StatusCompleted, KmRun: fp(-10)},
	}
	if got := TotalMileage(v, finished); got != 5350 {
		t.Fatalf("TotalMileage = %v, want 5350", got)
	}
}

func TestServiceDue(t *testing.T) {
	v := Vehicle{ServiceInterval: 5000, LastServiceKm: 10000}
	if ServiceDue(v, 14999) {
		t.Error("due before interval elapsed")
	}
	if !ServiceDue(v, 15000) {
		t.Error("not due at interval boundary")
	}
	if ServiceDue(Vehicle{ServiceInterval: 0}, 1e9) {
		t.Error("due with no interval configured")
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	day := func(offset int) *time.Time {
		d := now.AddDate(0, 0, offset)
		return &d
	}

	if got := Expiry(nil, now, 90); got.State != ExpiryOK {
		t.Fatalf("nil expiry = %s, want ok", got.State)
	}
	if got := Expiry(day(-1), now, 90); got.State != ExpiryExpired {
		t.Fatalf("yesterday = %s, want expired", got.State)
	}
	if got := Expiry(day(0), now, 90); got.State != ExpiryWarning || got.DaysToExpiry != 0 {
		t.Fatalf("today = %+v, want warning/0", got)
	}
	// 45 days out is inside the default 90-day window
	if got := Expiry(day(45), now, 90); got.State != ExpiryWarning || got.DaysToExpiry != 45 {
		t.Fatalf("45 days = %+v, want warning/45", got)
	}
	if got := Expiry(day(90), now, 90); got.State != ExpiryWarning {
		t.Fatalf("90 days = %s, want warning", got.State)
	}
	if got := Expiry(day(91), now, 90); got.State != ExpiryOK {
		t.Fatalf("91 days = %s, want ok", got.State)
	}
}
