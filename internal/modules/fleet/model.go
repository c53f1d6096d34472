// README: Vehicle aggregate and fleet status definitions.
package fleet

import (
	"time"

	"fleetops/internal/types"
)

// DocStatus is the stored status flag on the vehicle record. It can go stale
// relative to trip state, which is why display status is always derived.
type DocStatus string

const (
	DocAvailable     DocStatus = "available"
	DocAssigned      DocStatus = "assigned"
	DocInMaintenance DocStatus = "in-maintenance"
)

// EffectiveStatus is what screens show: the stored flag cross-referenced
// with live trip state.
type EffectiveStatus string

const (
	Available     EffectiveStatus = "available"
	InUse         EffectiveStatus = "in-use"
	InMaintenance EffectiveStatus = "in-maintenance"
)

type ExpiryState string

const (
	ExpiryOK      ExpiryState = "ok"
	ExpiryWarning ExpiryState = "warning"
	ExpiryExpired ExpiryState = "expired"
)

// ExpiryRisk classifies a license or insurance expiry date.
type ExpiryRisk struct {
	State        ExpiryState `json:"state"`
	DaysToExpiry int         `json:"days_to_expiry"`
}

type Vehicle struct {
	ID               types.ID
	Plate            string
	Status           DocStatus
	StatusVersion    int
	AssignedDriverID *types.ID
	InitialOdometer  float64
	LastServiceKm    float64
	ServiceInterval  float64
	LicenseExpiry    *time.Time
	InsuranceExpiry  *time.Time
	CreatedAt        time.Time
}

// Health is the per-vehicle derivation bundle served to the fleet screens.
type Health struct {
	VehicleID    types.ID        `json:"vehicle_id"`
	Plate        string          `json:"plate"`
	Effective    EffectiveStatus `json:"effective_status"`
	TotalMileage float64         `json:"total_mileage"`
	ServiceDue   bool            `json:"service_due"`
	License      ExpiryRisk      `json:"license"`
	Insurance    ExpiryRisk      `json:"insurance"`
}
