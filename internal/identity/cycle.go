package identity

import "time"

// Calendar carries the jurisdiction's election-calendar rules. The cycle
// inference below is configuration-driven, not a law of nature: other
// jurisdictions cut over in different months.
type Calendar struct {
	// CutoverMonth is the month in an election year at which a newly
	// formed committee belongs to the following cycle.
	CutoverMonth time.Month
}

// DefaultCalendar cuts over in November of the election year.
func DefaultCalendar() Calendar {
	return Calendar{CutoverMonth: time.November}
}

// InferCycle computes the expected election cycle for a committee formed on
// the given date: odd-year formation belongs to the next even year;
// even-year formation at or after the cutover month belongs to the
// following cycle, not the current one.
func (c Calendar) InferCycle(formed time.Time) int {
	year := formed.Year()
	if year%2 != 0 {
		return year + 1
	}
	if formed.Month() >= c.CutoverMonth {
		return year + 2
	}
	return year
}
