// README: Driver store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetops/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const driverColumns = `id, name, email, vehicle_id, status, current_trip_id, created_at`

func (s *Store) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (id, name, email, vehicle_id, status, current_trip_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(d.ID), d.Name, d.Email, idPtr(d.VehicleID), string(d.Status), idPtr(d.CurrentTripID), d.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.one(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
}

// GetByVehicle finds the driver currently holding the vehicle, if any.
func (s *Store) GetByVehicle(ctx context.Context, vehicleID types.ID) (*Driver, error) {
	return s.one(ctx, `SELECT `+driverColumns+` FROM drivers WHERE vehicle_id = $1`, string(vehicleID))
}

func (s *Store) List(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) SetOnTrip(ctx context.Context, id, tripID types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET status = 'in-use', current_trip_id = $2 WHERE id = $1`,
		string(id), string(tripID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ReleaseFromTrip(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drivers SET status = 'available', current_trip_id = NULL WHERE id = $1`,
		string(id))
	return err
}

// AttachVehicle records the standing vehicle assignment on the driver.
func (s *Store) AttachVehicle(ctx context.Context, id, vehicleID types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET vehicle_id = $2 WHERE id = $1`,
		string(id), string(vehicleID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DetachVehicle clears the standing assignment and reverts the driver to
// available.
func (s *Store) DetachVehicle(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drivers SET vehicle_id = NULL, status = 'available' WHERE id = $1`,
		string(id))
	return err
}

func (s *Store) one(ctx context.Context, sql string, args ...any) (*Driver, error) {
	d, err := scanDriver(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var vehicleID, tripID *string
	err := row.Scan(&d.ID, &d.Name, &d.Email, &vehicleID, &d.Status, &tripID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if vehicleID != nil {
		id := types.ID(*vehicleID)
		d.VehicleID = &id
	}
	if tripID != nil {
		id := types.ID(*tripID)
		d.CurrentTripID = &id
	}
	return &d, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
