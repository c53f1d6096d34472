// README: Assignment log store backed by PostgreSQL.
package assignment

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleetops/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e *LogEntry) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO assignment_log (vehicle_id, vehicle_plate, driver_id, driver_name, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		string(e.VehicleID), e.VehiclePlate, string(e.DriverID), e.DriverName, e.Action, e.Detail, e.CreatedAt,
	)
	return row.Scan(&e.ID)
}

func (s *Store) ListByVehicle(ctx context.Context, vehicleID types.ID) ([]LogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, vehicle_id, vehicle_plate, driver_id, driver_name, action, detail, created_at
		FROM assignment_log
		WHERE vehicle_id = $1
		ORDER BY created_at DESC`, string(vehicleID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.VehiclePlate, &e.DriverID, &e.DriverName, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete is the admin escape hatch; nothing in the manager calls it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM assignment_log WHERE id = $1`, id)
	return err
}
