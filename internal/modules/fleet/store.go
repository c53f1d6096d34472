// README: Vehicle store backed by PostgreSQL with conditional claim writes.
package fleet

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

const vehicleColumns = `
	id, plate, status, status_version, assigned_driver_id,
	initial_odometer, last_service_km, service_interval,
	license_expiry, insurance_expiry, created_at`

func (s *Store) Create(ctx context.Context, v *Vehicle) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicles (
			id, plate, status, status_version, assigned_driver_id,
			initial_odometer, last_service_km, service_interval,
			license_expiry, insurance_expiry, created_at
		) VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8, $9, $10)`,
		string(v.ID),
		v.Plate,
		string(v.Status),
		driverPtr(v.AssignedDriverID),
		v.InitialOdometer,
		v.LastServiceKm,
		v.ServiceInterval,
		v.LicenseExpiry,
		v.InsuranceExpiry,
		v.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Vehicle, error) {
	return s.one(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, string(id))
}

func (s *Store) GetByPlate(ctx context.Context, plate string) (*Vehicle, error) {
	return s.one(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE plate = $1`, plate)
}

func (s *Store) List(ctx context.Context) ([]Vehicle, error) {
	rows, err := s.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY plate`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Claim flips available → assigned with a conditional write; exactly one of
// two racing admins wins. Returns the plate for denormalizing onto the trip.
func (s *Store) Claim(ctx context.Context, id types.ID) (string, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE vehicles
		SET status = 'assigned', status_version = status_version + 1
		WHERE id = $1 AND status = 'available'
		RETURNING plate`, string(id))
	var plate string
	err := row.Scan(&plate)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.Get(ctx, id); err != nil {
			return "", err
		}
		return "", ErrNotAvailable
	}
	return plate, err
}

// Release hands the vehicle back to the pool. Releasing an already-available
// vehicle is a no-op so compensations stay idempotent.
func (s *Store) Release(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE vehicles
		SET status = 'available', status_version = status_version + 1
		WHERE id = $1 AND status = 'assigned'`, string(id))
	return err
}

func (s *Store) SetMaintenance(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE vehicles
		SET status = 'in-maintenance', status_version = status_version + 1
		WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteRepair returns a vehicle from maintenance and records the service
// mileage so the service-due counter restarts.
func (s *Store) CompleteRepair(ctx context.Context, id types.ID, serviceKm float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE vehicles
		SET status = 'available',
		    status_version = status_version + 1,
		    last_service_km = GREATEST(last_service_km, $2)
		WHERE id = $1 AND status = 'in-maintenance'`, string(id), serviceKm)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInMaintenance
	}
	return nil
}

func (s *Store) SetAssignedDriver(ctx context.Context, id types.ID, driverID *types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE vehicles SET assigned_driver_id = $2 WHERE id = $1`,
		string(id), driverPtr(driverID))
	return err
}

func (s *Store) one(ctx context.Context, sql string, args ...any) (*Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	var driverID *string
	err := row.Scan(
		&v.ID, &v.Plate, &v.Status, &v.StatusVersion, &driverID,
		&v.InitialOdometer, &v.LastServiceKm, &v.ServiceInterval,
		&v.LicenseExpiry, &v.InsuranceExpiry, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		id := types.ID(*driverID)
		v.AssignedDriverID = &id
	}
	return &v, nil
}

func driverPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
