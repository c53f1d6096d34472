// README: Trip service; every status mutation in the system goes through here.
package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"fleetops/internal/audit"
	"fleetops/internal/events"
	"fleetops/internal/logger"
	"fleetops/internal/metrics"
	"fleetops/internal/types"
)

var (
	ErrNotFound     = errors.New("trip not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("trip state conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrDriverBusy   = errors.New("driver already on an active trip")
	ErrFutureTrip   = errors.New("trip is scheduled for a future date")
)

type store interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, p Patch) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	HasActiveByDriver(ctx context.Context, driverID types.ID) (bool, error)
	ClearReassignmentFlag(ctx context.Context, id types.ID) error
	ListNeedingReassignment(ctx context.Context) ([]Trip, error)
	ListByRequester(ctx context.Context, requesterID types.ID) ([]Trip, error)
}

// VehicleGate claims and releases the vehicle's stored status flag. Claim is
// a conditional write: two admins approving against the same vehicle race on
// it and exactly one wins.
type VehicleGate interface {
	Claim(ctx context.Context, id types.ID) (plate string, err error)
	Release(ctx context.Context, id types.ID) error
	MarkInMaintenance(ctx context.Context, id types.ID) error
}

// DriverRoster mirrors trip occupation onto the driver record.
type DriverRoster interface {
	SetOnTrip(ctx context.Context, driverID, tripID types.ID) error
	ReleaseFromTrip(ctx context.Context, driverID types.ID) error
}

type RouteEstimator interface {
	Estimate(ctx context.Context, pickup, destination string, stops []string) (float64, types.Money, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type Service struct {
	store     store
	vehicles  VehicleGate
	drivers   DriverRoster
	estimator RouteEstimator
	geocoder  Geocoder
	audit     audit.Recorder
	events    events.Publisher
	metrics   *metrics.Metrics
	log       logger.Logger
	now       func() time.Time
}

type ServiceDeps struct {
	Vehicles  VehicleGate
	Drivers   DriverRoster
	Estimator RouteEstimator
	Geocoder  Geocoder
	Audit     audit.Recorder
	Events    events.Publisher
	Metrics   *metrics.Metrics
	Log       logger.Logger
}

func NewService(st store, deps ServiceDeps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop{}
	}
	return &Service{
		store:     st,
		vehicles:  deps.Vehicles,
		drivers:   deps.Drivers,
		estimator: deps.Estimator,
		geocoder:  deps.Geocoder,
		audit:     deps.Audit,
		events:    deps.Events,
		metrics:   deps.Metrics,
		log:       log,
		now:       time.Now,
	}
}

type CreateCommand struct {
	RequesterID types.ID
	Pickup      string
	Destination string
	Stops       []string
	ScheduledAt time.Time
	Passengers  int
}

type ApproveCommand struct {
	TripID    types.ID
	VehicleID types.ID
	DriverID  types.ID
	ActorID   types.ID
}

type StartCommand struct {
	TripID        types.ID
	OdometerStart float64
}

type CompleteCommand struct {
	TripID      types.ID
	OdometerEnd float64
}

type BreakdownCommand struct {
	TripID   types.ID
	Odometer float64
	Reason   BreakdownReason
	LastStop string
	Address  string
	Location *types.Point
}

type CancelCommand struct {
	TripID  types.ID
	ActorID types.ID
	Reason  string
}

type RejectCommand struct {
	TripID  types.ID
	ActorID types.ID
	Reason  string
}

type ReassignCommand struct {
	TripID    types.ID
	VehicleID types.ID
	DriverID  types.ID
	ActorID   types.ID
}

// Create books a new trip in pending state. The route estimate is
// best-effort: an unreachable maps backend never blocks a booking.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.RequesterID == "" || cmd.Pickup == "" || cmd.Destination == "" {
		return "", ErrBadRequest
	}
	if cmd.ScheduledAt.IsZero() {
		return "", ErrBadRequest
	}
	if cmd.Passengers <= 0 {
		cmd.Passengers = 1
	}

	t := &Trip{
		ID:             newID(),
		RequesterID:    cmd.RequesterID,
		Pickup:         cmd.Pickup,
		Destination:    cmd.Destination,
		Stops:          cmd.Stops,
		ScheduledAt:    cmd.ScheduledAt,
		Status:         StatusPending,
		PassengerCount: cmd.Passengers,
		CreatedAt:      s.now(),
	}
	if s.estimator != nil {
		if km, cost, err := s.estimator.Estimate(ctx, cmd.Pickup, cmd.Destination, cmd.Stops); err == nil {
			t.DistanceKm = &km
			t.Cost = &cost
		} else {
			s.log.Warn("route estimate failed", "trip", t.ID, "error", err)
		}
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", err
	}
	s.recordEvent(ctx, t.ID, "", StatusPending, "requester", &cmd.RequesterID)
	s.published(ctx, t.ID, StatusPending)
	s.audited(ctx, string(cmd.RequesterID), "Trip Booked", "booked "+t.Serial, t.ID)
	return t.ID, nil
}

// Approve attaches a vehicle/driver pair and moves pending → approved. The
// vehicle is claimed with a conditional write first; if the trip write then
// loses its own race, the claim is compensated.
func (s *Service) Approve(ctx context.Context, cmd ApproveCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, StatusApproved) {
		return s.invalid(StatusApproved)
	}
	busy, err := s.store.HasActiveByDriver(ctx, cmd.DriverID)
	if err != nil {
		return err
	}
	if busy {
		return ErrDriverBusy
	}

	var plate string
	err = runSaga(ctx, s.log, []sagaStep{
		{
			name: "claim vehicle",
			run: func(ctx context.Context) error {
				p, err := s.vehicles.Claim(ctx, cmd.VehicleID)
				plate = p
				return err
			},
			compensate: func(ctx context.Context) {
				if err := s.vehicles.Release(ctx, cmd.VehicleID); err != nil {
					s.log.Error("release vehicle after failed approval", "vehicle", cmd.VehicleID, "error", err)
				}
			},
		},
		{
			name: "approve trip",
			run: func(ctx context.Context) error {
				ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, StatusApproved, t.StatusVersion, Patch{
					VehicleID:    &cmd.VehicleID,
					VehiclePlate: &plate,
					DriverID:     &cmd.DriverID,
				})
				if err != nil {
					return err
				}
				if !ok {
					return s.conflict()
				}
				return nil
			},
		},
	})
	if err != nil {
		return err
	}

	s.transitioned(ctx, t, StatusApproved, "admin", &cmd.ActorID)
	s.audited(ctx, string(cmd.ActorID), "Trip Approved", "assigned vehicle "+plate, t.ID)
	return nil
}

// Start moves approved/reassigned → in-progress once the driver records the
// odometer. Future-dated trips cannot be started early.
func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, StatusInProgress) {
		return s.invalid(StatusInProgress)
	}
	if cmd.OdometerStart <= 0 {
		return ErrBadRequest
	}
	if t.DriverID == nil {
		return ErrBadRequest
	}
	if startOfDay(t.ScheduledAt).After(startOfDay(s.now())) {
		return ErrFutureTrip
	}

	driverID := *t.DriverID
	startedAt := s.now()
	err = runSaga(ctx, s.log, []sagaStep{
		{
			name: "mark driver on trip",
			run: func(ctx context.Context) error {
				return s.drivers.SetOnTrip(ctx, driverID, t.ID)
			},
			compensate: func(ctx context.Context) {
				if err := s.drivers.ReleaseFromTrip(ctx, driverID); err != nil {
					s.log.Error("release driver after failed start", "driver", driverID, "error", err)
				}
			},
		},
		{
			name: "start trip",
			run: func(ctx context.Context) error {
				ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, StatusInProgress, t.StatusVersion, Patch{
					OdometerStart: &cmd.OdometerStart,
					StartedAt:     &startedAt,
				})
				if err != nil {
					return err
				}
				if !ok {
					return s.conflict()
				}
				return nil
			},
		},
	})
	if err != nil {
		return err
	}

	s.transitioned(ctx, t, StatusInProgress, "driver", &driverID)
	return nil
}

// Complete closes the trip, persists the run distance and hands the vehicle
// and driver back to the availability pool.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, StatusCompleted) {
		return s.invalid(StatusCompleted)
	}
	if t.OdometerStart == nil || cmd.OdometerEnd < *t.OdometerStart {
		return ErrBadRequest
	}

	kmRun := cmd.OdometerEnd - *t.OdometerStart
	completedAt := s.now()
	steps := []sagaStep{
		{
			name: "complete trip",
			run: func(ctx context.Context) error {
				ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, StatusCompleted, t.StatusVersion, Patch{
					OdometerEnd: &cmd.OdometerEnd,
					KmRun:       &kmRun,
					CompletedAt: &completedAt,
				})
				if err != nil {
					return err
				}
				if !ok {
					return s.conflict()
				}
				return nil
			},
			compensate: func(ctx context.Context) {
				if _, err := s.store.UpdateStatus(ctx, t.ID, StatusCompleted, StatusInProgress, t.StatusVersion+1, Patch{}); err != nil {
					s.log.Error("revert completion", "trip", t.ID, "error", err)
				}
			},
		},
	}
	if t.VehicleID != nil {
		vehicleID := *t.VehicleID
		steps = append(steps, sagaStep{
			name: "release vehicle",
			run: func(ctx context.Context) error {
				return s.vehicles.Release(ctx, vehicleID)
			},
			compensate: func(ctx context.Context) {
				if _, err := s.vehicles.Claim(ctx, vehicleID); err != nil {
					s.log.Error("re-claim vehicle", "vehicle", vehicleID, "error", err)
				}
			},
		})
	}
	if t.DriverID != nil {
		driverID := *t.DriverID
		steps = append(steps, sagaStep{
			name: "release driver",
			run: func(ctx context.Context) error {
				return s.drivers.ReleaseFromTrip(ctx, driverID)
			},
		})
	}
	if err := runSaga(ctx, s.log, steps); err != nil {
		return err
	}

	s.transitioned(ctx, t, StatusCompleted, "driver", t.DriverID)
	s.audited(ctx, actorOf(t.DriverID), "Trip Completed", t.Serial, t.ID)
	return nil
}

// Breakdown records the driver's report, parks the vehicle in maintenance,
// frees the driver and raises the admin reassignment flag. Reassignment
// itself is a separate admin action.
func (s *Service) Breakdown(ctx context.Context, cmd BreakdownCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, StatusBrokenDown) {
		return s.invalid(StatusBrokenDown)
	}
	if !ValidBreakdownReason(cmd.Reason) {
		return ErrBadRequest
	}
	if cmd.LastStop == "" || !t.HasStop(cmd.LastStop) {
		return ErrBadRequest
	}
	if t.OdometerStart != nil && cmd.Odometer < *t.OdometerStart {
		return ErrBadRequest
	}

	address := cmd.Address
	if address == "" && cmd.Location != nil && s.geocoder != nil {
		if resolved, err := s.geocoder.ReverseGeocode(ctx, *cmd.Location); err == nil {
			address = resolved
		} else {
			s.log.Warn("breakdown geocode failed", "trip", t.ID, "error", err)
		}
	}
	if address == "" {
		return ErrBadRequest
	}

	report := &BreakdownReport{
		Odometer:   cmd.Odometer,
		Reason:     cmd.Reason,
		LastStop:   cmd.LastStop,
		Address:    address,
		Location:   cmd.Location,
		ReportedAt: s.now(),
	}
	flag := true
	steps := []sagaStep{
		{
			name: "record breakdown",
			run: func(ctx context.Context) error {
				ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, StatusBrokenDown, t.StatusVersion, Patch{
					Breakdown:         report,
					NeedsReassignment: &flag,
				})
				if err != nil {
					return err
				}
				if !ok {
					return s.conflict()
				}
				return nil
			},
			compensate: func(ctx context.Context) {
				if _, err := s.store.UpdateStatus(ctx, t.ID, StatusBrokenDown, StatusInProgress, t.StatusVersion+1, Patch{}); err != nil {
					s.log.Error("revert breakdown", "trip", t.ID, "error", err)
				}
			},
		},
	}
	if t.VehicleID != nil {
		vehicleID := *t.VehicleID
		steps = append(steps, sagaStep{
			name: "park vehicle in maintenance",
			run: func(ctx context.Context) error {
				return s.vehicles.MarkInMaintenance(ctx, vehicleID)
			},
		})
	}
	if t.DriverID != nil {
		driverID := *t.DriverID
		steps = append(steps, sagaStep{
			name: "release driver",
			run: func(ctx context.Context) error {
				return s.drivers.ReleaseFromTrip(ctx, driverID)
			},
		})
	}
	if err := runSaga(ctx, s.log, steps); err != nil {
		return err
	}

	s.transitioned(ctx, t, StatusBrokenDown, "driver", t.DriverID)
	s.audited(ctx, actorOf(t.DriverID), "Breakdown Reported", string(cmd.Reason)+" at "+address, t.ID)
	return nil
}

// Reassign recovers a broken-down trip by dispatching a derived trip on a
// fresh vehicle/driver pair. The original keeps its breakdown record for the
// mileage ledger; only the admin flag is cleared.
func (s *Service) Reassign(ctx context.Context, cmd ReassignCommand) (types.ID, error) {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return "", err
	}
	if !CanTransition(t.Status, StatusReassigned) {
		return "", s.invalid(StatusReassigned)
	}
	busy, err := s.store.HasActiveByDriver(ctx, cmd.DriverID)
	if err != nil {
		return "", err
	}
	if busy {
		return "", ErrDriverBusy
	}

	originID := t.ID
	derived := &Trip{
		ID:             newID(),
		RequesterID:    t.RequesterID,
		Pickup:         t.Pickup,
		Destination:    t.Destination,
		Stops:          t.Stops,
		ScheduledAt:    t.ScheduledAt,
		Status:         StatusReassigned,
		DistanceKm:     t.DistanceKm,
		Cost:           t.Cost,
		OriginTripID:   &originID,
		PassengerCount: t.PassengerCount,
		CreatedAt:      s.now(),
	}
	err = runSaga(ctx, s.log, []sagaStep{
		{
			name: "claim replacement vehicle",
			run: func(ctx context.Context) error {
				plate, err := s.vehicles.Claim(ctx, cmd.VehicleID)
				if err != nil {
					return err
				}
				derived.VehicleID = &cmd.VehicleID
				derived.VehiclePlate = &plate
				derived.DriverID = &cmd.DriverID
				return nil
			},
			compensate: func(ctx context.Context) {
				if err := s.vehicles.Release(ctx, cmd.VehicleID); err != nil {
					s.log.Error("release vehicle after failed reassignment", "vehicle", cmd.VehicleID, "error", err)
				}
			},
		},
		{
			name: "create derived trip",
			run: func(ctx context.Context) error {
				return s.store.Create(ctx, derived)
			},
		},
		{
			name: "clear reassignment flag",
			run: func(ctx context.Context) error {
				return s.store.ClearReassignmentFlag(ctx, originID)
			},
		},
	})
	if err != nil {
		return "", err
	}

	s.recordEvent(ctx, derived.ID, "", StatusReassigned, "admin", &cmd.ActorID)
	s.published(ctx, derived.ID, StatusReassigned)
	s.audited(ctx, string(cmd.ActorID), "Trip Reassigned", "derived from "+t.Serial, derived.ID)
	return derived.ID, nil
}

// Cancel is the requester's exit from any pre-execution state. An attached
// vehicle claim is handed back, including when the trip sits in a merge; a
// cancelled merge party also reverts its counterpart to the pre-proposal
// status so no trip is left waiting on a dead proposal.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, StatusCancelled) {
		return s.invalid(StatusCancelled)
	}

	reason := cmd.Reason
	steps := []sagaStep{
		{
			name: "cancel trip",
			run: func(ctx context.Context) error {
				ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, StatusCancelled, t.StatusVersion, Patch{
					CancelReason: &reason,
				})
				if err != nil {
					return err
				}
				if !ok {
					return s.conflict()
				}
				return nil
			},
			compensate: func(ctx context.Context) {
				if _, err := s.store.UpdateStatus(ctx, t.ID, StatusCancelled, t.Status, t.StatusVersion+1, Patch{}); err != nil {
					s.log.Error("revert cancellation", "trip", t.ID, "error", err)
				}
			},
		},
	}
	if t.VehicleID != nil && HoldsClaim(t.Status) {
		vehicleID := *t.VehicleID
		steps = append(steps, sagaStep{
			name: "release vehicle",
			run: func(ctx context.Context) error {
				return s.vehicles.Release(ctx, vehicleID)
			},
		})
	}
	if other := mergeCounterpart(t); other != "" {
		steps = append(steps, sagaStep{
			name: "unwind merge counterpart",
			run: func(ctx context.Context) error {
				return s.revertMergeParty(ctx, other)
			},
		})
	}
	if err := runSaga(ctx, s.log, steps); err != nil {
		return err
	}

	s.transitioned(ctx, t, StatusCancelled, "requester", &cmd.ActorID)
	return nil
}

// mergeCounterpart resolves the other party of an in-flight merge: the
// candidate when the cancelled trip is the master, the master otherwise.
func mergeCounterpart(t *Trip) types.ID {
	if t.Status != StatusAwaitingMerge && t.Status != StatusMergeApproved {
		return ""
	}
	if t.Merge != nil {
		return t.Merge.CandidateTripID
	}
	if t.MasterTripID != nil {
		return *t.MasterTripID
	}
	return ""
}

// revertMergeParty puts a merge participant back to its captured pre-proposal
// status once the other side dropped out.
func (s *Service) revertMergeParty(ctx context.Context, id types.ID) error {
	other, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if other.Status != StatusAwaitingMerge && other.Status != StatusMergeApproved {
		return nil
	}
	pre := StatusApproved
	if other.PreProposalStatus != nil {
		pre = *other.PreProposalStatus
	}
	ok, err := s.store.UpdateStatus(ctx, other.ID, other.Status, pre, other.StatusVersion, Patch{})
	if err != nil {
		return err
	}
	if !ok {
		return s.conflict()
	}
	s.recordEvent(ctx, other.ID, other.Status, pre, "system", nil)
	s.published(ctx, other.ID, pre)
	return nil
}

// Reject is the admin's refusal of a pending booking.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.Status != StatusPending || !CanTransition(t.Status, StatusRejected) {
		return s.invalid(StatusRejected)
	}
	reason := cmd.Reason
	ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, StatusRejected, t.StatusVersion, Patch{
		CancelReason: &reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return s.conflict()
	}
	s.transitioned(ctx, t, StatusRejected, "admin", &cmd.ActorID)
	return nil
}

// Import accepts an exported legacy record, normalizes it at the boundary
// and stores it verbatim otherwise. No transition validation applies: the
// record's status is history, not a request.
func (s *Service) Import(ctx context.Context, raw RawTrip) (types.ID, error) {
	t := Normalize(raw)
	if t.RequesterID == "" || t.Pickup == "" || t.Destination == "" {
		return "", ErrBadRequest
	}
	if !knownStatus(t.Status) {
		return "", ErrBadRequest
	}
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = s.now()
	if t.ScheduledAt.IsZero() {
		t.ScheduledAt = t.CreatedAt
	}
	if err := s.store.Create(ctx, &t); err != nil {
		return "", err
	}
	s.recordEvent(ctx, t.ID, "", t.Status, "import", nil)
	s.audited(ctx, "system", "Trip Imported", t.Serial, t.ID)
	return t.ID, nil
}

func knownStatus(st Status) bool {
	if _, ok := AllowedTransitions[st]; ok {
		return true
	}
	return IsTerminal(st)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID types.ID) ([]Trip, error) {
	return s.store.ListByRequester(ctx, requesterID)
}

func (s *Service) ListNeedingReassignment(ctx context.Context) ([]Trip, error) {
	return s.store.ListNeedingReassignment(ctx)
}

func (s *Service) transitioned(ctx context.Context, t *Trip, to Status, actorType string, actorID *types.ID) {
	s.recordEvent(ctx, t.ID, t.Status, to, actorType, actorID)
	s.published(ctx, t.ID, to)
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(to)).Inc()
	}
}

func (s *Service) recordEvent(ctx context.Context, tripID types.ID, from, to Status, actorType string, actorID *types.ID) {
	_ = s.store.AppendEvent(ctx, &Event{
		TripID:     tripID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
}

func (s *Service) published(ctx context.Context, tripID types.ID, status Status) {
	if s.events != nil {
		s.events.TripChanged(ctx, tripID, string(status))
	}
}

func (s *Service) audited(ctx context.Context, actor, action, detail string, target types.ID) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Entry{
		Actor:     actor,
		Section:   "trips",
		Action:    action,
		Detail:    detail,
		TargetID:  &target,
		CreatedAt: s.now(),
	}); err != nil {
		s.log.Warn("audit record failed", "action", action, "error", err)
	}
}

func (s *Service) invalid(to Status) error {
	if s.metrics != nil {
		s.metrics.TransitionFailures.WithLabelValues("invalid_state", string(to)).Inc()
	}
	return ErrInvalidState
}

func (s *Service) conflict() error {
	if s.metrics != nil {
		s.metrics.ConflictsTotal.Inc()
	}
	return ErrConflict
}

func actorOf(id *types.ID) string {
	if id == nil {
		return "system"
	}
	return string(*id)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
