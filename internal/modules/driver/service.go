// README: Driver service; registry plus the trip module's roster hooks.
package driver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"fleetops/internal/types"
)

var (
	ErrNotFound   = errors.New("driver not found")
	ErrBadRequest = errors.New("bad request")
)

type store interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	GetByVehicle(ctx context.Context, vehicleID types.ID) (*Driver, error)
	List(ctx context.Context) ([]Driver, error)
	SetOnTrip(ctx context.Context, id, tripID types.ID) error
	ReleaseFromTrip(ctx context.Context, id types.ID) error
}

type Service struct {
	store store
	now   func() time.Time
}

func NewService(st store) *Service {
	return &Service{store: st, now: time.Now}
}

type RegisterCommand struct {
	Name  string
	Email string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (types.ID, error) {
	if cmd.Name == "" || cmd.Email == "" {
		return "", ErrBadRequest
	}
	d := &Driver{
		ID:        newID(),
		Name:      cmd.Name,
		Email:     cmd.Email,
		Status:    StatusAvailable,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, d); err != nil {
		return "", err
	}
	return d.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Driver, error) {
	return s.store.List(ctx)
}

// SetOnTrip and ReleaseFromTrip make the service the trip module's
// DriverRoster.

func (s *Service) SetOnTrip(ctx context.Context, driverID, tripID types.ID) error {
	return s.store.SetOnTrip(ctx, driverID, tripID)
}

func (s *Service) ReleaseFromTrip(ctx context.Context, driverID types.ID) error {
	return s.store.ReleaseFromTrip(ctx, driverID)
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
