// README: Trip aggregate, status enumeration and the transition table.
package trip

import (
	"time"

	"fleetops/internal/types"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusReassigned    Status = "reassigned"
	StatusInProgress    Status = "in-progress"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusRejected      Status = "rejected"
	StatusBrokenDown    Status = "broken-down"
	StatusAwaitingMerge Status = "awaiting_merge_approval"
	StatusMergeApproved Status = "approved_merge_request"
	StatusMerged        Status = "merged"
	StatusMergeRejected Status = "merge_rejected"
)

type BreakdownReason string

const (
	ReasonMechanical  BreakdownReason = "mechanical"
	ReasonTire        BreakdownReason = "tire"
	ReasonOverheating BreakdownReason = "overheating"
	ReasonAccident    BreakdownReason = "accident"
	ReasonOther       BreakdownReason = "other"
)

func ValidBreakdownReason(r BreakdownReason) bool {
	switch r {
	case ReasonMechanical, ReasonTire, ReasonOverheating, ReasonAccident, ReasonOther:
		return true
	}
	return false
}

// BreakdownReport captures what the driver submits when a trip breaks down.
type BreakdownReport struct {
	Odometer   float64         `json:"odometer"`
	Reason     BreakdownReason `json:"reason"`
	LastStop   string          `json:"last_stop"`
	Address    string          `json:"address"`
	Location   *types.Point    `json:"location,omitempty"`
	ReportedAt time.Time       `json:"reported_at"`
}

type Consent string

const (
	ConsentNone     Consent = ""
	ConsentAccepted Consent = "accepted"
	ConsentRejected Consent = "rejected"
)

// MergeProposal lives on the master trip while a merge is pending.
type MergeProposal struct {
	CandidateTripID types.ID `json:"candidate_trip_id"`
	ConsentA        Consent  `json:"consent_a"`
	ConsentB        Consent  `json:"consent_b"`
	VehicleNumber   string   `json:"vehicle_number"`
	DriverName      string   `json:"driver_name"`
	Message         string   `json:"message"`
	RejectReason    string   `json:"reject_reason,omitempty"`
}

type Trip struct {
	ID            types.ID
	Serial        string
	RequesterID   types.ID
	Pickup        string
	Destination   string
	Stops         []string
	ScheduledAt   time.Time
	VehicleID     *types.ID
	VehiclePlate  *string
	DriverID      *types.ID
	Status        Status
	StatusVersion int

	DistanceKm    *float64
	Cost          *types.Money
	OdometerStart *float64
	OdometerEnd   *float64
	KmRun         *float64

	Breakdown         *BreakdownReport
	NeedsReassignment bool
	OriginTripID      *types.ID

	// Merge bookkeeping. The proposal sub-object sits on the master; the
	// candidate carries MasterTripID, the master carries LinkedProposalTripID.
	Merge                *MergeProposal
	MasterTripID         *types.ID
	LinkedProposalTripID *types.ID
	PreProposalStatus    *Status

	PassengerCount int
	CancelReason   *string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Event is one row of the append-only trip state history.
type Event struct {
	ID         int64
	TripID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions is the trip state flow as data. Every mutation path
// (admin, driver, merge protocol) validates against this table, so transition
// legality does not depend on which screen issued the write.
var AllowedTransitions = map[Status][]Status{
	StatusPending:       {StatusApproved, StatusRejected, StatusCancelled, StatusAwaitingMerge},
	StatusApproved:      {StatusInProgress, StatusCancelled, StatusReassigned, StatusAwaitingMerge},
	StatusReassigned:    {StatusInProgress, StatusCancelled},
	StatusInProgress:    {StatusCompleted, StatusBrokenDown},
	StatusBrokenDown:    {StatusReassigned},
	StatusAwaitingMerge: {StatusApproved, StatusPending, StatusMergeApproved, StatusRejected, StatusMergeRejected, StatusCancelled},
	StatusMergeApproved: {StatusMerged, StatusApproved, StatusPending, StatusRejected, StatusMergeRejected},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a trip may never be mutated again.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusMerged, StatusMergeRejected:
		return true
	}
	return false
}

// CountsForAvailability reports whether a trip participates in the vehicle
// availability scan. Broken-down trips are out: the vehicle is already in
// maintenance and the stored flag wins.
func CountsForAvailability(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusBrokenDown, StatusMerged, StatusMergeRejected:
		return false
	}
	return true
}

// Occupies reports whether the trip currently claims its vehicle/driver pair.
func Occupies(s Status) bool {
	switch s {
	case StatusApproved, StatusReassigned, StatusInProgress, StatusMergeApproved:
		return true
	}
	return false
}

// HoldsClaim reports whether a trip in this status still holds its vehicle's
// stored flag. A merge awaiting consent keeps the claim alive even though the
// trip no longer occupies the pair for dispatch purposes.
func HoldsClaim(s Status) bool {
	return Occupies(s) || s == StatusAwaitingMerge
}

// References reports whether the trip points at the given vehicle, matched
// defensively against both the document id and the plate number since legacy
// records used either one.
func (t *Trip) References(vehicleID types.ID, plate string) bool {
	if t.VehicleID != nil && *t.VehicleID == vehicleID {
		return true
	}
	if t.VehiclePlate != nil && plate != "" && *t.VehiclePlate == plate {
		return true
	}
	return false
}

// RunDistance returns the trip's contribution to lifetime vehicle mileage.
// Priority: explicit KmRun, then odometer delta, then breakdown-point delta.
func (t *Trip) RunDistance() *float64 {
	if t.KmRun != nil {
		return t.KmRun
	}
	if t.OdometerStart != nil && t.OdometerEnd != nil {
		d := *t.OdometerEnd - *t.OdometerStart
		return &d
	}
	if t.OdometerStart != nil && t.Breakdown != nil {
		d := t.Breakdown.Odometer - *t.OdometerStart
		return &d
	}
	return nil
}

// HasStop reports whether name is one of the trip's own intermediate stops,
// the pickup, or the destination.
func (t *Trip) HasStop(name string) bool {
	if name == t.Pickup || name == t.Destination {
		return true
	}
	for _, s := range t.Stops {
		if s == name {
			return true
		}
	}
	return false
}
