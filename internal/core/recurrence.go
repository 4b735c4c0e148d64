package core

import "time"

// recurrenceSteps maps each frequency to its date-advance function. Month
// and year steps use AddDate, so month-end overflow follows the standard
// library's normalization (Jan 31 + 1 month = Mar 2 or Mar 3).
var recurrenceSteps = map[Frequency]func(time.Time) time.Time{
	Weekly:   func(t time.Time) time.Time { return t.AddDate(0, 0, 7) },
	BiWeekly: func(t time.Time) time.Time { return t.AddDate(0, 0, 14) },
	Monthly:  func(t time.Time) time.Time { return t.AddDate(0, 1, 0) },
	Yearly:   func(t time.Time) time.Time { return t.AddDate(1, 0, 0) },
}

// NextOccurrence returns the next scheduled date after last for the given
// frequency. Unknown frequencies fall back to monthly so a malformed record
// still advances instead of firing on every run.
func NextOccurrence(last time.Time, f Frequency) time.Time {
	step, ok := recurrenceSteps[f]
	if !ok {
		step = recurrenceSteps[Monthly]
	}
	return step(last)
}
