package ratelimit

import "time"

// refill recomputes an RPM or TPM bucket's available tokens after continuous
// refill at capacity/60 per second, mirroring golang.org/x/time/rate's
// Limiter.AllowN arithmetic. x/time/rate keeps this state in unexported
// fields that can't be serialized for a cross-process CAS, so the
// distributed form reimplements the same math over an exported State.
func refill(s *State, now time.Time) {
	if s.LastRefillAt.IsZero() {
		s.Available = s.Capacity
		s.LastRefillAt = now
		return
	}
	elapsed := now.Sub(s.LastRefillAt).Seconds()
	if elapsed <= 0 {
		return
	}
	perSecond := s.Capacity / 60.0
	s.Available = min(s.Capacity, s.Available+elapsed*perSecond)
	s.LastRefillAt = now
}

// resetIfDayBoundaryCrossed implements the RPD reset rule:
// "when now >= dayBoundaryAt, set countForDay = 0 and advance
// dayBoundaryAt to the next local midnight in the configured timezone."
func resetIfDayBoundaryCrossed(s *State, now time.Time, loc *time.Location) {
	if s.DayBoundaryAt.IsZero() {
		s.DayBoundaryAt = nextMidnight(now, loc)
		return
	}
	for !now.Before(s.DayBoundaryAt) {
		s.CountForDay = 0
		s.DayBoundaryAt = nextMidnight(s.DayBoundaryAt, loc)
	}
}

// nextMidnight returns the next local-midnight instant strictly after t,
// in loc. Plain time.Date/time.LoadLocation: no example repo in the pack
// carries a civil-time/calendar library, so the day-boundary computation
// is the one piece of this package built on the standard library alone.
func nextMidnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if !midnight.After(local) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight
}
