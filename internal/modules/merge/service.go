// README: Two-party merge-consent protocol over trip records.
package merge

import (
	"context"
	"errors"
	"time"

	"fleetops/internal/audit"
	"fleetops/internal/events"
	"fleetops/internal/logger"
	"fleetops/internal/modules/trip"
	"fleetops/internal/notify"
	"fleetops/internal/types"
)

var (
	ErrNotParticipant = errors.New("requester is not a party to this proposal")
	ErrReasonRequired = errors.New("rejection reason is required")
	ErrNotProposed    = errors.New("trip has no merge proposal")
	ErrConsentMissing = errors.New("both consents are required before finalization")
)

// Trips is the slice of the trip store the protocol needs. Every status move
// still goes through the CAS transition write.
type Trips interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to trip.Status, version int, p trip.Patch) (bool, error)
	SetConsent(ctx context.Context, masterID types.ID, party string, consent trip.Consent, reason string) error
	AppendEvent(ctx context.Context, e *trip.Event) error
}

// Directory resolves a requester to a notification address.
type Directory interface {
	RequesterEmail(ctx context.Context, id types.ID) (string, error)
}

type Service struct {
	trips     Trips
	directory Directory
	mailer    notify.Notifier
	audit     audit.Recorder
	events    events.Publisher
	log       logger.Logger
	now       func() time.Time
}

func NewService(trips Trips, directory Directory, mailer notify.Notifier, rec audit.Recorder, pub events.Publisher, lg logger.Logger) *Service {
	if lg == nil {
		lg = logger.Nop{}
	}
	if mailer == nil {
		mailer = notify.Nop{}
	}
	return &Service{
		trips:     trips,
		directory: directory,
		mailer:    mailer,
		audit:     rec,
		events:    pub,
		log:       lg,
		now:       time.Now,
	}
}

type ProposeCommand struct {
	MasterTripID    types.ID
	CandidateTripID types.ID
	VehicleNumber   string
	DriverName      string
	Message         string
	ActorID         types.ID
}

type ConsentCommand struct {
	MasterTripID types.ID
	RequesterID  types.ID
	Reason       string // required for Reject
}

type FinalizeCommand struct {
	MasterTripID types.ID
	ActorID      types.ID
}

// Propose puts both trips into awaiting_merge_approval and attaches the
// proposal sub-object to the master, with a bidirectional link between the
// two records. The pre-proposal status of each trip is captured so a later
// rejection can revert exactly.
func (s *Service) Propose(ctx context.Context, cmd ProposeCommand) error {
	if cmd.MasterTripID == cmd.CandidateTripID {
		return trip.ErrBadRequest
	}
	master, err := s.trips.Get(ctx, cmd.MasterTripID)
	if err != nil {
		return err
	}
	candidate, err := s.trips.Get(ctx, cmd.CandidateTripID)
	if err != nil {
		return err
	}
	if !trip.CanTransition(master.Status, trip.StatusAwaitingMerge) ||
		!trip.CanTransition(candidate.Status, trip.StatusAwaitingMerge) {
		return trip.ErrInvalidState
	}
	if master.Merge != nil || candidate.MasterTripID != nil {
		return trip.ErrInvalidState
	}

	proposal := &trip.MergeProposal{
		CandidateTripID: candidate.ID,
		VehicleNumber:   cmd.VehicleNumber,
		DriverName:      cmd.DriverName,
		Message:         cmd.Message,
	}
	masterPre := master.Status
	candidatePre := candidate.Status

	ok, err := s.trips.UpdateStatus(ctx, master.ID, master.Status, trip.StatusAwaitingMerge, master.StatusVersion, trip.Patch{
		Merge:                proposal,
		LinkedProposalTripID: &candidate.ID,
		PreProposalStatus:    &masterPre,
	})
	if err != nil {
		return err
	}
	if !ok {
		return trip.ErrConflict
	}
	ok, err = s.trips.UpdateStatus(ctx, candidate.ID, candidate.Status, trip.StatusAwaitingMerge, candidate.StatusVersion, trip.Patch{
		MasterTripID:      &master.ID,
		PreProposalStatus: &candidatePre,
	})
	if err == nil && !ok {
		err = trip.ErrConflict
	}
	if err != nil {
		// Undo the master so a half-linked proposal never survives.
		if _, rerr := s.trips.UpdateStatus(ctx, master.ID, trip.StatusAwaitingMerge, masterPre, master.StatusVersion+1, trip.Patch{}); rerr != nil {
			s.log.Error("revert master after failed proposal", "trip", master.ID, "error", rerr)
		}
		return err
	}

	s.recordEvent(ctx, master.ID, masterPre, trip.StatusAwaitingMerge, &cmd.ActorID)
	s.recordEvent(ctx, candidate.ID, candidatePre, trip.StatusAwaitingMerge, &cmd.ActorID)
	s.published(ctx, master.ID, trip.StatusAwaitingMerge)
	s.published(ctx, candidate.ID, trip.StatusAwaitingMerge)
	s.audited(ctx, string(cmd.ActorID), "Merge Proposed", "candidate "+candidate.Serial, master.ID)
	return nil
}

// Accept records the calling requester's consent on the master's proposal.
// Accept is one-way: once recorded it cannot be withdrawn, only a rejection
// can still stop the merge. When both consents are in, both trips advance to
// approved_merge_request awaiting the admin's finalization.
func (s *Service) Accept(ctx context.Context, cmd ConsentCommand) error {
	master, candidate, party, err := s.resolveParty(ctx, cmd.MasterTripID, cmd.RequesterID)
	if err != nil {
		return err
	}
	if master.Status != trip.StatusAwaitingMerge {
		return trip.ErrInvalidState
	}
	if consentOf(master.Merge, party) == trip.ConsentAccepted {
		return nil // already accepted; nothing to change
	}
	if err := s.trips.SetConsent(ctx, master.ID, party, trip.ConsentAccepted, ""); err != nil {
		return err
	}

	// Re-read and check for the second consent. The check is deliberately
	// not joined to the consent write; the admin finalization is the
	// authoritative gate.
	master, err = s.trips.Get(ctx, master.ID)
	if err != nil {
		return err
	}
	if master.Merge == nil ||
		master.Merge.ConsentA != trip.ConsentAccepted ||
		master.Merge.ConsentB != trip.ConsentAccepted {
		return nil
	}
	ok, err := s.trips.UpdateStatus(ctx, master.ID, trip.StatusAwaitingMerge, trip.StatusMergeApproved, master.StatusVersion, trip.Patch{})
	if err != nil {
		return err
	}
	if !ok {
		return trip.ErrConflict
	}
	candidate, err = s.trips.Get(ctx, candidate.ID)
	if err != nil {
		return err
	}
	ok, err = s.trips.UpdateStatus(ctx, candidate.ID, trip.StatusAwaitingMerge, trip.StatusMergeApproved, candidate.StatusVersion, trip.Patch{})
	if err != nil {
		return err
	}
	if !ok {
		return trip.ErrConflict
	}
	s.published(ctx, master.ID, trip.StatusMergeApproved)
	s.published(ctx, candidate.ID, trip.StatusMergeApproved)
	return nil
}

// Reject reverts both trips: the master to its captured pre-proposal status,
// the candidate to rejected with the stated reason. The counterpart
// requester is notified.
func (s *Service) Reject(ctx context.Context, cmd ConsentCommand) error {
	if cmd.Reason == "" {
		return ErrReasonRequired
	}
	master, candidate, party, err := s.resolveParty(ctx, cmd.MasterTripID, cmd.RequesterID)
	if err != nil {
		return err
	}
	if master.Status != trip.StatusAwaitingMerge && master.Status != trip.StatusMergeApproved {
		return trip.ErrInvalidState
	}

	if err := s.trips.SetConsent(ctx, master.ID, party, trip.ConsentRejected, cmd.Reason); err != nil {
		return err
	}

	masterPre := trip.StatusApproved
	if master.PreProposalStatus != nil {
		masterPre = *master.PreProposalStatus
	}
	ok, err := s.trips.UpdateStatus(ctx, master.ID, master.Status, masterPre, master.StatusVersion, trip.Patch{})
	if err != nil {
		return err
	}
	if !ok {
		return trip.ErrConflict
	}
	reason := cmd.Reason
	ok, err = s.trips.UpdateStatus(ctx, candidate.ID, candidate.Status, trip.StatusRejected, candidate.StatusVersion, trip.Patch{
		CancelReason: &reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return trip.ErrConflict
	}

	s.recordEvent(ctx, master.ID, master.Status, masterPre, &cmd.RequesterID)
	s.recordEvent(ctx, candidate.ID, candidate.Status, trip.StatusRejected, &cmd.RequesterID)
	s.published(ctx, master.ID, masterPre)
	s.published(ctx, candidate.ID, trip.StatusRejected)
	s.audited(ctx, string(cmd.RequesterID), "Merge Rejected", cmd.Reason, master.ID)

	// Notify the other party that the merge fell through.
	counterpart := master.RequesterID
	if party == "a" {
		counterpart = candidate.RequesterID
	}
	if email, err := s.directory.RequesterEmail(ctx, counterpart); err == nil {
		_ = s.mailer.Send(ctx, email, "Trip merge rejected",
			"The proposed trip merge was rejected: "+cmd.Reason)
	} else {
		s.log.Warn("resolve counterpart email", "requester", counterpart, "error", err)
	}
	return nil
}

// Finalize is the admin's confirmation once both consents are in. Both trips
// become merged; the master carries the combined passenger count and the
// candidate permanently references the master with no assignment of its own.
func (s *Service) Finalize(ctx context.Context, cmd FinalizeCommand) error {
	master, err := s.trips.Get(ctx, cmd.MasterTripID)
	if err != nil {
		return err
	}
	if master.Merge == nil {
		return ErrNotProposed
	}
	if master.Status != trip.StatusMergeApproved {
		return trip.ErrInvalidState
	}
	if master.Merge.ConsentA != trip.ConsentAccepted || master.Merge.ConsentB != trip.ConsentAccepted {
		return ErrConsentMissing
	}
	candidate, err := s.trips.Get(ctx, master.Merge.CandidateTripID)
	if err != nil {
		return err
	}

	combined := master.PassengerCount + candidate.PassengerCount
	ok, err := s.trips.UpdateStatus(ctx, master.ID, master.Status, trip.StatusMerged, master.StatusVersion, trip.Patch{
		PassengerCount: &combined,
	})
	if err != nil {
		return err
	}
	if !ok {
		return trip.ErrConflict
	}
	ok, err = s.trips.UpdateStatus(ctx, candidate.ID, candidate.Status, trip.StatusMerged, candidate.StatusVersion, trip.Patch{})
	if err != nil {
		return err
	}
	if !ok {
		return trip.ErrConflict
	}

	s.recordEvent(ctx, master.ID, trip.StatusMergeApproved, trip.StatusMerged, &cmd.ActorID)
	s.recordEvent(ctx, candidate.ID, trip.StatusMergeApproved, trip.StatusMerged, &cmd.ActorID)
	s.published(ctx, master.ID, trip.StatusMerged)
	s.published(ctx, candidate.ID, trip.StatusMerged)
	s.audited(ctx, string(cmd.ActorID), "Merge Finalized", "with "+candidate.Serial, master.ID)
	return nil
}

// resolveParty maps the requester onto consent slot "a" (master's requester)
// or "b" (candidate's requester).
func (s *Service) resolveParty(ctx context.Context, masterID, requesterID types.ID) (*trip.Trip, *trip.Trip, string, error) {
	master, err := s.trips.Get(ctx, masterID)
	if err != nil {
		return nil, nil, "", err
	}
	if master.Merge == nil {
		return nil, nil, "", ErrNotProposed
	}
	candidate, err := s.trips.Get(ctx, master.Merge.CandidateTripID)
	if err != nil {
		return nil, nil, "", err
	}
	switch requesterID {
	case master.RequesterID:
		return master, candidate, "a", nil
	case candidate.RequesterID:
		return master, candidate, "b", nil
	}
	return nil, nil, "", ErrNotParticipant
}

func consentOf(p *trip.MergeProposal, party string) trip.Consent {
	if p == nil {
		return trip.ConsentNone
	}
	if party == "a" {
		return p.ConsentA
	}
	return p.ConsentB
}

func (s *Service) recordEvent(ctx context.Context, tripID types.ID, from, to trip.Status, actorID *types.ID) {
	_ = s.trips.AppendEvent(ctx, &trip.Event{
		TripID:     tripID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  "merge",
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
}

func (s *Service) published(ctx context.Context, tripID types.ID, status trip.Status) {
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
		Section:   "merge",
		Action:    action,
		Detail:    detail,
		TargetID:  &target,
		CreatedAt: s.now(),
	}); err != nil {
		s.log.Warn("audit record failed", "action", action, "error", err)
	}
}
