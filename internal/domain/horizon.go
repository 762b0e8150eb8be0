package domain

import "time"

// TimeHorizon steps offset business days from start, skipping weekends:
// every 5 business days traversed add 2 calendar days. Offset may be
// negative. The bit-exact formula, with weekday 0=Sunday..6=Saturday:
//
//	delta_days = offset + floor((offset + weekday - 1) / 5) * 2
func TimeHorizon(start time.Time, offset int) time.Time {
	weekday := int(start.Weekday()) // time.Sunday == 0
	delta := offset + floorDiv(offset+weekday-1, 5)*2
	return start.AddDate(0, 0, delta)
}

// floorDiv is integer division rounding toward negative infinity, matching
// Python's // operator for negative numerators.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
