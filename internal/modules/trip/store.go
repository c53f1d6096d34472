// README: Trip store backed by PostgreSQL with compare-and-swap status writes.
package trip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

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

const tripColumns = `
	id, serial, requester_id, pickup, destination, stops, scheduled_at,
	vehicle_id, vehicle_plate, driver_id, status, status_version,
	distance_km, cost_amount, cost_currency,
	odometer_start, odometer_end, km_run,
	breakdown, needs_reassignment, origin_trip_id,
	merge_proposal, master_trip_id, linked_proposal_trip_id, pre_proposal_status,
	passenger_count, cancel_reason, created_at, started_at, completed_at`

// Create inserts the trip and assigns its human-facing serial from a
// sequence, so concurrent bookings cannot mint duplicate TRP numbers.
// Imported legacy records arrive with a serial already set and keep it.
func (s *Store) Create(ctx context.Context, t *Trip) error {
	stops, err := json.Marshal(t.Stops)
	if err != nil {
		return err
	}
	var costAmount *int64
	var costCurrency *string
	if t.Cost != nil {
		costAmount = &t.Cost.Amount
		costCurrency = &t.Cost.Currency
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (
			id, serial, requester_id, pickup, destination, stops, scheduled_at,
			status, status_version, distance_km, cost_amount, cost_currency,
			vehicle_id, vehicle_plate, driver_id, origin_trip_id,
			odometer_start, odometer_end, km_run,
			passenger_count, created_at
		) VALUES (
			$1,
			COALESCE(NULLIF($2, ''), 'TRP-' || lpad(nextval('trip_serial_seq')::text, 3, '0')),
			$3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		RETURNING serial`,
		string(t.ID),
		t.Serial,
		string(t.RequesterID),
		t.Pickup,
		t.Destination,
		stops,
		t.ScheduledAt,
		string(t.Status),
		t.DistanceKm,
		costAmount,
		costCurrency,
		idPtr(t.VehicleID),
		t.VehiclePlate,
		idPtr(t.DriverID),
		idPtr(t.OriginTripID),
		t.OdometerStart,
		t.OdometerEnd,
		t.KmRun,
		t.PassengerCount,
		t.CreatedAt,
	)
	return row.Scan(&t.Serial)
}

// ClearReassignmentFlag drops the admin flag once a replacement dispatch has
// been created. The breakdown record itself is never touched.
func (s *Store) ClearReassignmentFlag(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `UPDATE trips SET needs_reassignment = false WHERE id = $1`, string(id))
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// Patch carries the optional field updates that ride along with a status
// transition. Nil fields are left untouched.
type Patch struct {
	VehicleID            *types.ID
	VehiclePlate         *string
	DriverID             *types.ID
	OdometerStart        *float64
	OdometerEnd          *float64
	KmRun                *float64
	Breakdown            *BreakdownReport
	NeedsReassignment    *bool
	OriginTripID         *types.ID
	Merge                *MergeProposal
	MasterTripID         *types.ID
	LinkedProposalTripID *types.ID
	PreProposalStatus    *Status
	PassengerCount       *int
	CancelReason         *string
	StartedAt            *time.Time
	CompletedAt          *time.Time
}

// UpdateStatus applies from→to with optimistic concurrency on both the
// current status and the status version. Returns false when another writer
// won the race; the caller surfaces that as a conflict, never a silent
// last-write-wins.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, p Patch) (bool, error) {
	var breakdown, merge []byte
	var err error
	if p.Breakdown != nil {
		if breakdown, err = json.Marshal(p.Breakdown); err != nil {
			return false, err
		}
	}
	if p.Merge != nil {
		if merge, err = json.Marshal(p.Merge); err != nil {
			return false, err
		}
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1,
		    vehicle_id = COALESCE($4, vehicle_id),
		    vehicle_plate = COALESCE($5, vehicle_plate),
		    driver_id = COALESCE($6, driver_id),
		    odometer_start = COALESCE($7, odometer_start),
		    odometer_end = COALESCE($8, odometer_end),
		    km_run = COALESCE($9, km_run),
		    breakdown = COALESCE($10, breakdown),
		    needs_reassignment = COALESCE($11, needs_reassignment),
		    origin_trip_id = COALESCE($12, origin_trip_id),
		    merge_proposal = COALESCE($13, merge_proposal),
		    master_trip_id = COALESCE($14, master_trip_id),
		    linked_proposal_trip_id = COALESCE($15, linked_proposal_trip_id),
		    pre_proposal_status = COALESCE($16, pre_proposal_status),
		    passenger_count = COALESCE($17, passenger_count),
		    cancel_reason = COALESCE($18, cancel_reason),
		    started_at = COALESCE($19, started_at),
		    completed_at = COALESCE($20, completed_at)
		WHERE id = $2 AND status = $3 AND status_version = $21`,
		string(to),
		string(id),
		string(from),
		idPtr(p.VehicleID),
		p.VehiclePlate,
		idPtr(p.DriverID),
		p.OdometerStart,
		p.OdometerEnd,
		p.KmRun,
		breakdown,
		p.NeedsReassignment,
		idPtr(p.OriginTripID),
		merge,
		idPtr(p.MasterTripID),
		idPtr(p.LinkedProposalTripID),
		statusPtr(p.PreProposalStatus),
		p.PassengerCount,
		p.CancelReason,
		p.StartedAt,
		p.CompletedAt,
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListActive returns every trip that still participates in availability
// derivation (see CountsForAvailability).
func (s *Store) ListActive(ctx context.Context) ([]Trip, error) {
	return s.list(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE status NOT IN ('completed','cancelled','rejected','broken-down','merged','merge_rejected')
		ORDER BY created_at`)
}

// ListFinished returns trips that contribute run distance to lifetime
// mileage: completed, broken-down and reassigned ones.
func (s *Store) ListFinished(ctx context.Context) ([]Trip, error) {
	return s.list(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE status IN ('completed','broken-down','reassigned')
		ORDER BY created_at`)
}

func (s *Store) ListByRequester(ctx context.Context, requesterID types.ID) ([]Trip, error) {
	return s.list(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE requester_id = $1
		ORDER BY created_at DESC`, string(requesterID))
}

// ListNeedingReassignment returns broken-down trips flagged for the admin.
func (s *Store) ListNeedingReassignment(ctx context.Context) ([]Trip, error) {
	return s.list(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE needs_reassignment AND status = 'broken-down'
		ORDER BY created_at`)
}

// HasActiveByDriver reports whether the driver is already attached to a trip
// that occupies them.
func (s *Store) HasActiveByDriver(ctx context.Context, driverID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE driver_id = $1
			  AND status IN ('approved','reassigned','in-progress','approved_merge_request')
		)`, string(driverID))
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// SetConsent writes a single consent slot on the master's proposal via a
// jsonb field path, so two requesters answering at the same moment update
// disjoint fields instead of overwriting the whole sub-object.
func (s *Store) SetConsent(ctx context.Context, masterID types.ID, party string, consent Consent, reason string) error {
	field := "consent_a"
	if party == "b" {
		field = "consent_b"
	}
	consentJSON, err := json.Marshal(string(consent))
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET merge_proposal = jsonb_set(
			CASE WHEN $4 = '' THEN merge_proposal
			     ELSE jsonb_set(merge_proposal, '{reject_reason}', to_jsonb($4::text)) END,
			$2::text[], $3::jsonb)
		WHERE id = $1 AND merge_proposal IS NOT NULL`,
		string(masterID), []string{field}, consentJSON, reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_state_events (
			trip_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.TripID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) list(ctx context.Context, sql string, args ...any) ([]Trip, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var stops, breakdown, merge []byte
	var vehicleID, vehiclePlate, driverID, originTripID, masterTripID, linkedTripID *string
	var preProposal, cancelReason, costCurrency *string
	var costAmount *int64

	err := row.Scan(
		&t.ID, &t.Serial, &t.RequesterID, &t.Pickup, &t.Destination, &stops, &t.ScheduledAt,
		&vehicleID, &vehiclePlate, &driverID, &t.Status, &t.StatusVersion,
		&t.DistanceKm, &costAmount, &costCurrency,
		&t.OdometerStart, &t.OdometerEnd, &t.KmRun,
		&breakdown, &t.NeedsReassignment, &originTripID,
		&merge, &masterTripID, &linkedTripID, &preProposal,
		&t.PassengerCount, &cancelReason, &t.CreatedAt, &t.StartedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(stops) > 0 {
		if err := json.Unmarshal(stops, &t.Stops); err != nil {
			return nil, err
		}
	}
	if len(breakdown) > 0 {
		t.Breakdown = &BreakdownReport{}
		if err := json.Unmarshal(breakdown, t.Breakdown); err != nil {
			return nil, err
		}
	}
	if len(merge) > 0 {
		t.Merge = &MergeProposal{}
		if err := json.Unmarshal(merge, t.Merge); err != nil {
			return nil, err
		}
	}
	t.VehicleID = toID(vehicleID)
	t.VehiclePlate = vehiclePlate
	t.DriverID = toID(driverID)
	t.OriginTripID = toID(originTripID)
	t.MasterTripID = toID(masterTripID)
	t.LinkedProposalTripID = toID(linkedTripID)
	t.CancelReason = cancelReason
	if preProposal != nil {
		ps := Status(*preProposal)
		t.PreProposalStatus = &ps
	}
	if costAmount != nil {
		cur := "LKR"
		if costCurrency != nil {
			cur = *costCurrency
		}
		t.Cost = &types.Money{Amount: *costAmount, Currency: cur}
	}
	return &t, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func statusPtr(v *Status) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toID(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
