// README: Assignment manager tests (displacement flow, logging, notification).
package assignment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetops/internal/modules/driver"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/types"
)

type memLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (m *memLog) Append(_ context.Context, e *LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLog) ListByVehicle(_ context.Context, vehicleID types.ID) ([]LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].VehicleID == vehicleID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

type fakeDrivers struct {
	mu      sync.Mutex
	drivers map[types.ID]*driver.Driver
}

func (f *fakeDrivers) Get(_ context.Context, id types.ID) (*driver.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[id]
	if !ok {
		return nil, driver.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDrivers) GetByVehicle(_ context.Context, vehicleID types.ID) (*driver.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.drivers {
		if d.VehicleID != nil && *d.VehicleID == vehicleID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, driver.ErrNotFound
}

func (f *fakeDrivers) AttachVehicle(_ context.Context, id, vehicleID types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[id]
	if !ok {
		return driver.ErrNotFound
	}
	d.VehicleID = &vehicleID
	return nil
}

func (f *fakeDrivers) DetachVehicle(_ context.Context, id types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drivers[id]; ok {
		d.VehicleID = nil
		d.Status = driver.StatusAvailable
	}
	return nil
}

type fakeVehicles struct {
	mu       sync.Mutex
	vehicles map[types.ID]*fleet.Vehicle
}

func (f *fakeVehicles) Get(_ context.Context, id types.ID) (*fleet.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[id]
	if !ok {
		return nil, fleet.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVehicles) SetAssignedDriver(_ context.Context, id types.ID, driverID *types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.vehicles[id]; ok {
		v.AssignedDriverID = driverID
	}
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string // recipient addresses in order
}

func (r *recordingMailer) Send(_ context.Context, to, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	return nil
}

func setup(t *testing.T) (*Service, *memLog, *fakeDrivers, *fakeVehicles, *recordingMailer) {
	t.Helper()
	logStore := &memLog{}
	drivers := &fakeDrivers{drivers: map[types.ID]*driver.Driver{
		"d1": {ID: "d1", Name: "Amal", Email: "amal@example.com", Status: driver.StatusAvailable},
		"d2": {ID: "d2", Name: "Nimal", Email: "nimal@example.com", Status: driver.StatusAvailable},
	}}
	vehicles := &fakeVehicles{vehicles: map[types.ID]*fleet.Vehicle{
		"v1": {ID: "v1", Plate: "CAB-1", Status: fleet.DocAvailable},
	}}
	mailer := &recordingMailer{}
	svc := NewService(logStore, drivers, vehicles, mailer, nil, nil)
	return svc, logStore, drivers, vehicles, mailer
}

func TestAssignFresh(t *testing.T) {
	svc, logStore, drivers, vehicles, mailer := setup(t)
	ctx := context.Background()

	err := svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d1", ActorID: "admin"})
	require.NoError(t, err)

	d1, _ := drivers.Get(ctx, "d1")
	require.NotNil(t, d1.VehicleID)
	assert.Equal(t, types.ID("v1"), *d1.VehicleID)

	v1, _ := vehicles.Get(ctx, "v1")
	require.NotNil(t, v1.AssignedDriverID)
	assert.Equal(t, types.ID("d1"), *v1.AssignedDriverID)

	require.Len(t, logStore.entries, 1)
	assert.Equal(t, ActionAssigned, logStore.entries[0].Action)
	assert.Equal(t, "CAB-1", logStore.entries[0].VehiclePlate)
	assert.Equal(t, []string{"amal@example.com"}, mailer.sent)
}

func TestAssignIdempotent(t *testing.T) {
	svc, logStore, _, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d1"}))
	require.NoError(t, svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d1"}))
	assert.Len(t, logStore.entries, 1, "re-assigning the same driver must not log again")
}

func TestAssignDisplacementNeedsConfirm(t *testing.T) {
	svc, logStore, drivers, _, mailer := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d1"}))

	// without confirm the current holder stays put
	err := svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d2"})
	assert.ErrorIs(t, err, ErrConfirmRequired)
	d1, _ := drivers.Get(ctx, "d1")
	require.NotNil(t, d1.VehicleID)

	// with confirm the holder is displaced, both movements logged, both mailed
	require.NoError(t, svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d2", Confirm: true}))

	d1, _ = drivers.Get(ctx, "d1")
	assert.Nil(t, d1.VehicleID, "displaced driver keeps vehicle")
	d2, _ := drivers.Get(ctx, "d2")
	require.NotNil(t, d2.VehicleID)
	assert.Equal(t, types.ID("v1"), *d2.VehicleID)

	require.Len(t, logStore.entries, 3)
	assert.Equal(t, ActionAssigned, logStore.entries[0].Action)
	assert.Equal(t, ActionReassigned, logStore.entries[1].Action)
	assert.Equal(t, "Amal", logStore.entries[1].DriverName)
	assert.Equal(t, ActionAssigned, logStore.entries[2].Action)
	assert.Equal(t, "Nimal", logStore.entries[2].DriverName)

	assert.Equal(t, []string{"amal@example.com", "amal@example.com", "nimal@example.com"}, mailer.sent)
}

func TestUnassign(t *testing.T) {
	svc, logStore, drivers, vehicles, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d1"}))
	require.NoError(t, svc.Unassign(ctx, UnassignCommand{VehicleID: "v1", ActorID: "admin"}))

	d1, _ := drivers.Get(ctx, "d1")
	assert.Nil(t, d1.VehicleID)
	v1, _ := vehicles.Get(ctx, "v1")
	assert.Nil(t, v1.AssignedDriverID)

	require.Len(t, logStore.entries, 2)
	assert.Equal(t, ActionUnassigned, logStore.entries[1].Action)
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, _, _, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d1"}))
	require.NoError(t, svc.Assign(ctx, AssignCommand{VehicleID: "v1", DriverID: "d2", Confirm: true}))

	history, err := svc.History(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ActionAssigned, history[0].Action)
	assert.Equal(t, "Nimal", history[0].DriverName)
}

func TestAssignUnknownDriver(t *testing.T) {
	svc, _, _, _, _ := setup(t)
	err := svc.Assign(context.Background(), AssignCommand{VehicleID: "v1", DriverID: "ghost"})
	assert.ErrorIs(t, err, driver.ErrNotFound)
}
