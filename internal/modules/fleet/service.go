// README: Fleet service; vehicle registry, claims and derived health reports.
package fleet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"fleetops/internal/events"
	"fleetops/internal/logger"
	"fleetops/internal/modules/trip"
	"fleetops/internal/types"
)

var (
	ErrNotFound         = errors.New("vehicle not found")
	ErrNotAvailable     = errors.New("vehicle not available")
	ErrNotInMaintenance = errors.New("vehicle not in maintenance")
	ErrBadRequest       = errors.New("bad request")
)

type store interface {
	Create(ctx context.Context, v *Vehicle) error
	Get(ctx context.Context, id types.ID) (*Vehicle, error)
	GetByPlate(ctx context.Context, plate string) (*Vehicle, error)
	List(ctx context.Context) ([]Vehicle, error)
	Claim(ctx context.Context, id types.ID) (string, error)
	Release(ctx context.Context, id types.ID) error
	SetMaintenance(ctx context.Context, id types.ID) error
	CompleteRepair(ctx context.Context, id types.ID, serviceKm float64) error
	SetAssignedDriver(ctx context.Context, id types.ID, driverID *types.ID) error
}

// TripSource feeds the resolver; *trip.Store satisfies it.
type TripSource interface {
	ListActive(ctx context.Context) ([]trip.Trip, error)
	ListFinished(ctx context.Context) ([]trip.Trip, error)
}

type Service struct {
	store             store
	trips             TripSource
	events            events.Publisher
	log               logger.Logger
	expiryWarningDays int
	now               func() time.Time
}

func NewService(st store, trips TripSource, pub events.Publisher, log logger.Logger, expiryWarningDays int) *Service {
	if log == nil {
		log = logger.Nop{}
	}
	if expiryWarningDays <= 0 {
		expiryWarningDays = 90
	}
	return &Service{
		store:             st,
		trips:             trips,
		events:            pub,
		log:               log,
		expiryWarningDays: expiryWarningDays,
		now:               time.Now,
	}
}

type RegisterCommand struct {
	Plate           string
	InitialOdometer float64
	ServiceInterval float64
	LicenseExpiry   *time.Time
	InsuranceExpiry *time.Time
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (types.ID, error) {
	if cmd.Plate == "" {
		return "", ErrBadRequest
	}
	v := &Vehicle{
		ID:              newID(),
		Plate:           cmd.Plate,
		Status:          DocAvailable,
		InitialOdometer: cmd.InitialOdometer,
		LastServiceKm:   cmd.InitialOdometer,
		ServiceInterval: cmd.ServiceInterval,
		LicenseExpiry:   cmd.LicenseExpiry,
		InsuranceExpiry: cmd.InsuranceExpiry,
		CreatedAt:       s.now(),
	}
	if err := s.store.Create(ctx, v); err != nil {
		return "", err
	}
	s.published(ctx, v.ID, DocAvailable)
	return v.ID, nil
}

// Claim, Release and MarkInMaintenance make the service the trip module's
// VehicleGate.

func (s *Service) Claim(ctx context.Context, id types.ID) (string, error) {
	plate, err := s.store.Claim(ctx, id)
	if err != nil {
		return "", err
	}
	s.published(ctx, id, DocAssigned)
	return plate, nil
}

func (s *Service) Release(ctx context.Context, id types.ID) error {
	if err := s.store.Release(ctx, id); err != nil {
		return err
	}
	s.published(ctx, id, DocAvailable)
	return nil
}

func (s *Service) MarkInMaintenance(ctx context.Context, id types.ID) error {
	if err := s.store.SetMaintenance(ctx, id); err != nil {
		return err
	}
	s.published(ctx, id, DocInMaintenance)
	return nil
}

// CompleteRepair is the workshop's hand-back after a breakdown or service.
func (s *Service) CompleteRepair(ctx context.Context, id types.ID, serviceKm float64) error {
	if err := s.store.CompleteRepair(ctx, id, serviceKm); err != nil {
		return err
	}
	s.published(ctx, id, DocAvailable)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Vehicle, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Vehicle, error) {
	return s.store.List(ctx)
}

// EffectiveStatus derives one vehicle's display status from the live trip
// snapshot.
func (s *Service) EffectiveStatus(ctx context.Context, id types.ID) (EffectiveStatus, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	active, err := s.trips.ListActive(ctx)
	if err != nil {
		return "", err
	}
	return Resolve(*v, active, s.now()), nil
}

// HealthReport runs the full derivation pass over the fleet: effective
// status, lifetime mileage, service-due and document expiry risk.
func (s *Service) HealthReport(ctx context.Context) ([]Health, error) {
	vehicles, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.trips.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	finished, err := s.trips.ListFinished(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Health, 0, len(vehicles))
	for _, v := range vehicles {
		total := TotalMileage(v, finished)
		out = append(out, Health{
			VehicleID:    v.ID,
			Plate:        v.Plate,
			Effective:    Resolve(v, active, now),
			TotalMileage: total,
			ServiceDue:   ServiceDue(v, total),
			License:      Expiry(v.LicenseExpiry, now, s.expiryWarningDays),
			Insurance:    Expiry(v.InsuranceExpiry, now, s.expiryWarningDays),
		})
	}
	return out, nil
}

func (s *Service) published(ctx context.Context, id types.ID, status DocStatus) {
	if s.events != nil {
		s.events.VehicleChanged(ctx, id, string(status))
	}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
