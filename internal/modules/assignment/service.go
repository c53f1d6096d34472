// README: Assignment manager; keeps vehicle-driver pairing consistent.
package assignment

import (
	"context"
	"errors"
	"time"

	"fleetops/internal/logger"
	"fleetops/internal/metrics"
	"fleetops/internal/modules/driver"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/notify"
	"fleetops/internal/types"
)

var (
	ErrConfirmRequired = errors.New("vehicle already assigned; confirmation required")
	ErrBadRequest      = errors.New("bad request")
)

type log interface {
	Append(ctx context.Context, e *LogEntry) error
	ListByVehicle(ctx context.Context, vehicleID types.ID) ([]LogEntry, error)
}

// Drivers is the slice of the driver store the manager needs.
type Drivers interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	GetByVehicle(ctx context.Context, vehicleID types.ID) (*driver.Driver, error)
	AttachVehicle(ctx context.Context, id, vehicleID types.ID) error
	DetachVehicle(ctx context.Context, id types.ID) error
}

// Vehicles is the slice of the fleet store the manager needs.
type Vehicles interface {
	Get(ctx context.Context, id types.ID) (*fleet.Vehicle, error)
	SetAssignedDriver(ctx context.Context, id types.ID, driverID *types.ID) error
}

type Service struct {
	logStore log
	drivers  Drivers
	vehicles Vehicles
	mailer   notify.Notifier
	metrics  *metrics.Metrics
	logger   logger.Logger
	now      func() time.Time
}

func NewService(logStore log, drivers Drivers, vehicles Vehicles, mailer notify.Notifier, m *metrics.Metrics, lg logger.Logger) *Service {
	if lg == nil {
		lg = logger.Nop{}
	}
	if mailer == nil {
		mailer = notify.Nop{}
	}
	return &Service{
		logStore: logStore,
		drivers:  drivers,
		vehicles: vehicles,
		mailer:   mailer,
		metrics:  m,
		logger:   lg,
		now:      time.Now,
	}
}

type AssignCommand struct {
	VehicleID types.ID
	DriverID  types.ID
	ActorID   types.ID
	// Confirm acknowledges displacing the current holder. Without it an
	// assignment against a held vehicle is refused so the admin sees who
	// they are about to bump.
	Confirm bool
}

type UnassignCommand struct {
	VehicleID types.ID
	ActorID   types.ID
}

// Assign attaches the vehicle to the driver. If another driver currently
// holds it, the previous assignment is cleared first: the displaced driver
// reverts to available, both movements are logged, and the displaced driver
// is emailed. The email is fire-and-forget.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	if cmd.VehicleID == "" || cmd.DriverID == "" {
		return ErrBadRequest
	}
	v, err := s.vehicles.Get(ctx, cmd.VehicleID)
	if err != nil {
		return err
	}
	newDriver, err := s.drivers.Get(ctx, cmd.DriverID)
	if err != nil {
		return err
	}

	prev, err := s.drivers.GetByVehicle(ctx, cmd.VehicleID)
	if err != nil && !errors.Is(err, driver.ErrNotFound) {
		return err
	}
	if prev != nil && prev.ID == cmd.DriverID {
		return nil // already assigned; nothing to do
	}
	if prev != nil {
		if !cmd.Confirm {
			return ErrConfirmRequired
		}
		if err := s.drivers.DetachVehicle(ctx, prev.ID); err != nil {
			return err
		}
		s.appendLog(ctx, v, prev, ActionReassigned, "displaced by assignment to "+newDriver.Name)
		s.send(ctx, prev.Email, "Vehicle unassigned",
			"Vehicle "+v.Plate+" has been re-assigned to another driver.")
	}

	if err := s.drivers.AttachVehicle(ctx, cmd.DriverID, cmd.VehicleID); err != nil {
		// Put the previous holder back rather than leaving the vehicle
		// attached to nobody.
		if prev != nil {
			if rerr := s.drivers.AttachVehicle(ctx, prev.ID, cmd.VehicleID); rerr != nil {
				s.logger.Error("restore previous assignment", "vehicle", cmd.VehicleID, "driver", prev.ID, "error", rerr)
			}
		}
		return err
	}
	if err := s.vehicles.SetAssignedDriver(ctx, cmd.VehicleID, &cmd.DriverID); err != nil {
		return err
	}

	s.appendLog(ctx, v, newDriver, ActionAssigned, "assigned by "+string(cmd.ActorID))
	s.send(ctx, newDriver.Email, "Vehicle assigned",
		"Vehicle "+v.Plate+" has been assigned to you.")
	return nil
}

// Unassign clears the standing assignment without a replacement.
func (s *Service) Unassign(ctx context.Context, cmd UnassignCommand) error {
	v, err := s.vehicles.Get(ctx, cmd.VehicleID)
	if err != nil {
		return err
	}
	holder, err := s.drivers.GetByVehicle(ctx, cmd.VehicleID)
	if err != nil {
		return err
	}
	if err := s.drivers.DetachVehicle(ctx, holder.ID); err != nil {
		return err
	}
	if err := s.vehicles.SetAssignedDriver(ctx, cmd.VehicleID, nil); err != nil {
		return err
	}
	s.appendLog(ctx, v, holder, ActionUnassigned, "unassigned by "+string(cmd.ActorID))
	s.send(ctx, holder.Email, "Vehicle unassigned",
		"Vehicle "+v.Plate+" has been unassigned from you.")
	return nil
}

func (s *Service) History(ctx context.Context, vehicleID types.ID) ([]LogEntry, error) {
	return s.logStore.ListByVehicle(ctx, vehicleID)
}

func (s *Service) appendLog(ctx context.Context, v *fleet.Vehicle, d *driver.Driver, action, detail string) {
	err := s.logStore.Append(ctx, &LogEntry{
		VehicleID:    v.ID,
		VehiclePlate: v.Plate,
		DriverID:     d.ID,
		DriverName:   d.Name,
		Action:       action,
		Detail:       detail,
		CreatedAt:    s.now(),
	})
	if err != nil {
		s.logger.Warn("append assignment log", "vehicle", v.ID, "action", action, "error", err)
	}
}

func (s *Service) send(ctx context.Context, to, subject, body string) {
	outcome := "sent"
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		outcome = "failed"
	}
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
	}
}
