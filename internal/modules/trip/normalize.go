// README: Store-boundary normalization of legacy trip payloads.
package trip

import (
	"strings"
	"time"

	"fleetops/internal/types"
)

// RawTrip is the wire shape of an exported legacy trip document. Old records
// named the vehicle reference three different ways and spelled some statuses
// with underscores, so everything funnels through Normalize before any
// business logic sees it.
type RawTrip struct {
	ID            string   `json:"id"`
	Serial        string   `json:"serial"`
	RequesterID   string   `json:"requesterId"`
	Pickup        string   `json:"pickup"`
	Destination   string   `json:"destination"`
	Stops         []string `json:"stops"`
	Date          string   `json:"date"`
	Status        string   `json:"status"`
	Vehicle       string   `json:"vehicle"`
	VehicleNumber string   `json:"vehicleNumber"`
	VehicleID     string   `json:"vehicleId"`
	DriverID      string   `json:"driverId"`
	DriverName    string   `json:"driverName"`
	OdometerStart *float64 `json:"odometerStart"`
	OdometerEnd   *float64 `json:"odometerEnd"`
	KmRun         *float64 `json:"kmRun"`
	Passengers    int      `json:"passengers"`
}

// statusAliases maps legacy spellings onto the canonical enumeration.
var statusAliases = map[string]Status{
	"in_progress":   StatusInProgress,
	"inprogress":    StatusInProgress,
	"broken_down":   StatusBrokenDown,
	"brokendown":    StatusBrokenDown,
	"awaiting":      StatusAwaitingMerge,
	"mergerejected": StatusMergeRejected,
}

func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := statusAliases[s]; ok {
		return alias
	}
	return Status(s)
}

// Normalize maps a legacy record into the canonical Trip shape. The vehicle
// reference is reconciled in priority order: explicit document id, then the
// plate-number fields. A plate that arrives in the id field (legacy joins did
// this) is kept as a plate so References can still match it.
func Normalize(raw RawTrip) Trip {
	t := Trip{
		ID:             types.ID(raw.ID),
		Serial:         raw.Serial,
		RequesterID:    types.ID(raw.RequesterID),
		Pickup:         raw.Pickup,
		Destination:    raw.Destination,
		Stops:          raw.Stops,
		Status:         NormalizeStatus(raw.Status),
		OdometerStart:  raw.OdometerStart,
		OdometerEnd:    raw.OdometerEnd,
		KmRun:          raw.KmRun,
		PassengerCount: raw.Passengers,
	}
	if t.PassengerCount == 0 {
		t.PassengerCount = 1
	}
	if raw.Date != "" {
		if ts, err := time.Parse("2006-01-02", raw.Date); err == nil {
			t.ScheduledAt = ts
		} else if ts, err := time.Parse(time.RFC3339, raw.Date); err == nil {
			t.ScheduledAt = ts
		}
	}
	if raw.VehicleID != "" {
		id := types.ID(raw.VehicleID)
		t.VehicleID = &id
	}
	plate := raw.VehicleNumber
	if plate == "" {
		plate = raw.Vehicle
	}
	if plate != "" {
		t.VehiclePlate = &plate
	}
	if raw.DriverID != "" {
		id := types.ID(raw.DriverID)
		t.DriverID = &id
	}
	return t
}
