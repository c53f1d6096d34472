// README: Boundary normalization tests for legacy trip payloads.
package trip

import (
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		{"pending", StatusPending},
		{"In-Progress", StatusInProgress},
		{"in_progress", StatusInProgress},
		{"inprogress", StatusInProgress},
		{"broken_down", StatusBrokenDown},
		{"brokendown", StatusBrokenDown},
		{"  completed ", StatusCompleted},
		{"awaiting", StatusAwaitingMerge},
		{"awaiting_merge_approval", StatusAwaitingMerge},
		{"approved_merge_request", StatusMergeApproved},
		{"mergerejected", StatusMergeRejected},
		{"merge_rejected", StatusMergeRejected},
	}
	for _, tc := range cases {
		if got := NormalizeStatus(tc.raw); got != tc.want {
			t.Errorf("NormalizeStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeVehicleReference(t *testing.T) {
	// explicit document id plus a plate: both kept
	got := Normalize(RawTrip{ID: "t1", RequesterID: "u1", VehicleID: "v1", VehicleNumber: "CAB-1234"})
	if got.VehicleID == nil || *got.VehicleID != "v1" {
		t.Fatalf("VehicleID = %v, want v1", got.VehicleID)
	}
	if got.VehiclePlate == nil || *got.VehiclePlate != "CAB-1234" {
		t.Fatalf("VehiclePlate = %v, want CAB-1234", got.VehiclePlate)
	}

	// legacy "vehicle" field used as fallback for the plate
	got = Normalize(RawTrip{ID: "t2", Vehicle: "VAN-9"})
	if got.VehicleID != nil {
		t.Fatalf("VehicleID = %v, want nil", got.VehicleID)
	}
	if got.VehiclePlate == nil || *got.VehiclePlate != "VAN-9" {
		t.Fatalf("VehiclePlate = %v, want VAN-9", got.VehiclePlate)
	}

	// vehicleNumber wins over vehicle when both are present
	got = Normalize(RawTrip{ID: "t3", Vehicle: "old", VehicleNumber: "new"})
	if got.VehiclePlate == nil || *got.VehiclePlate != "new" {
		t.Fatalf("VehiclePlate = %v, want new", got.VehiclePlate)
	}
}

func TestNormalizeDateAndPassengers(t *testing.T) {
	got := Normalize(RawTrip{ID: "t1", Date: "2026-03-15"})
	if got.ScheduledAt.IsZero() {
		t.Fatal("plain date not parsed")
	}
	if y, m, d := got.ScheduledAt.Date(); y != 2026 || int(m) != 3 || d != 15 {
		t.Fatalf("ScheduledAt = %v", got.ScheduledAt)
	}

	got = Normalize(RawTrip{ID: "t2", Date: "2026-03-15T08:30:00Z"})
	if got.ScheduledAt.IsZero() {
		t.Fatal("RFC3339 date not parsed")
	}

	got = Normalize(RawTrip{ID: "t3", Date: "not a date"})
	if !got.ScheduledAt.IsZero() {
		t.Fatalf("garbage date parsed to %v", got.ScheduledAt)
	}

	if got := Normalize(RawTrip{ID: "t4"}); got.PassengerCount != 1 {
		t.Fatalf("PassengerCount default = %d, want 1", got.PassengerCount)
	}
	if got := Normalize(RawTrip{ID: "t5", Passengers: 4}); got.PassengerCount != 4 {
		t.Fatalf("PassengerCount = %d, want 4", got.PassengerCount)
	}
}
