// README: Pure derivations: effective vehicle status, mileage, expiry risk.
package fleet

import (
	"time"

	"fleetops/internal/modules/trip"
)

// Resolve computes the vehicle's effective display status from the stored
// flag plus the live trip set. It is a pure function of its inputs and is
// recomputed on every snapshot; no derived status is ever stored as truth.
//
// Maintenance wins unconditionally: a vehicle that is physically unavailable
// overrides any trip claim. Otherwise a trip makes the vehicle in-use when it
// is running right now, or is cleared to run today.
func Resolve(v Vehicle, trips []trip.Trip, now time.Time) EffectiveStatus {
	if v.Status == DocInMaintenance {
		return InMaintenance
	}
	today := startOfDay(now)
	for i := range trips {
		t := &trips[i]
		if !trip.CountsForAvailability(t.Status) {
			continue
		}
		if !t.References(v.ID, v.Plate) {
			continue
		}
		if t.Status == trip.StatusInProgress {
			return InUse
		}
		switch t.Status {
		case trip.StatusApproved, trip.StatusReassigned, trip.StatusMergeApproved:
			if startOfDay(t.ScheduledAt).Equal(today) {
				return InUse
			}
		}
	}
	return Available
}

// TotalMileage is the vehicle's recorded initial odometer plus the run
// distance of every finished trip against it. Per-trip distance priority is
// handled by trip.RunDistance.
func TotalMileage(v Vehicle, finished []trip.Trip) float64 {
	total := v.InitialOdometer
	for i := range finished {
		t := &finished[i]
		if !t.References(v.ID, v.Plate) {
			continue
		}
		if d := t.RunDistance(); d != nil && *d > 0 {
			total += *d
		}
	}
	return total
}

// ServiceDue reports whether the vehicle has run past its service interval.
func ServiceDue(v Vehicle, totalMileage float64) bool {
	if v.ServiceInterval <= 0 {
		return false
	}
	return totalMileage-v.LastServiceKm >= v.ServiceInterval
}

// Expiry classifies a license/insurance expiry date: expired when past,
// warning when within warningDays of now.
func Expiry(expiry *time.Time, now time.Time, warningDays int) ExpiryRisk {
	if expiry == nil {
		return ExpiryRisk{State: ExpiryOK}
	}
	days := int(startOfDay(*expiry).Sub(startOfDay(now)).Hours() / 24)
	switch {
	case days < 0:
		return ExpiryRisk{State: ExpiryExpired, DaysToExpiry: days}
	case days <= warningDays:
		return ExpiryRisk{State: ExpiryWarning, DaysToExpiry: days}
	default:
		return ExpiryRisk{State: ExpiryOK, DaysToExpiry: days}
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
