// README: Driver record; mirrors trip occupation and the standing vehicle assignment.
package driver

import (
	"time"

	"fleetops/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusInUse     Status = "in-use"
)

type Driver struct {
	ID            types.ID
	Name          string
	Email         string
	VehicleID     *types.ID
	Status        Status
	CurrentTripID *types.ID
	CreatedAt     time.Time
}
