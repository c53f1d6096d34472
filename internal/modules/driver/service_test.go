// README: Driver service tests over an in-memory store.
package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fleetops/internal/types"
)

type memStore struct {
	mu      sync.Mutex
	drivers map[types.ID]*Driver
}

func newMemStore() *memStore {
	return &memStore{drivers: map[types.ID]*Driver{}}
}

func (m *memStore) Create(_ context.Context, d *Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.drivers[d.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) GetByVehicle(_ context.Context, vehicleID types.ID) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.VehicleID != nil && *d.VehicleID == vehicleID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) List(_ context.Context) ([]Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, *d)
	}
	return out, nil
}

func (m *memStore) SetOnTrip(_ context.Context, id, tripID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = StatusInUse
	d.CurrentTripID = &tripID
	return nil
}

func (m *memStore) ReleaseFromTrip(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drivers[id]; ok {
		d.Status = StatusAvailable
		d.CurrentTripID = nil
	}
	return nil
}

func TestRegister(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterCommand{Name: "Amal", Email: "amal@example.com"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	d, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Name != "Amal" || d.Status != StatusAvailable {
		t.Fatalf("driver = %+v", d)
	}
	if d.CreatedAt.IsZero() || d.CreatedAt.After(time.Now()) {
		t.Fatalf("CreatedAt = %v", d.CreatedAt)
	}

	if _, err := svc.Register(ctx, RegisterCommand{Name: "NoMail"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing email: err = %v, want ErrBadRequest", err)
	}
}

func TestRosterHooks(t *testing.T) {
	st := newMemStore()
	svc := NewService(st)
	ctx := context.Background()

	id, _ := svc.Register(ctx, RegisterCommand{Name: "Amal", Email: "amal@example.com"})

	if err := svc.SetOnTrip(ctx, id, "trip-1"); err != nil {
		t.Fatalf("set on trip: %v", err)
	}
	d, _ := svc.Get(ctx, id)
	if d.Status != StatusInUse || d.CurrentTripID == nil || *d.CurrentTripID != "trip-1" {
		t.Fatalf("after SetOnTrip: %+v", d)
	}

	if err := svc.ReleaseFromTrip(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	d, _ = svc.Get(ctx, id)
	if d.Status != StatusAvailable || d.CurrentTripID != nil {
		t.Fatalf("after ReleaseFromTrip: %+v", d)
	}

	if err := svc.SetOnTrip(ctx, "ghost", "trip-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown driver: err = %v, want ErrNotFound", err)
	}
}
