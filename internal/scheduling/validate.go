package scheduling

import (
	"fmt"
	"time"
)

// ValidateRanges checks a batch of proposed timeslots for one doctor. Each
// item must have both bounds, lie entirely in the future and start before it
// ends; no two items may overlap. Touching windows (a.End == b.Start) are
// fine. The first violation is returned and the batch is rejected as a whole.
func ValidateRanges(ranges []TimeRange, now time.Time) error {
	accepted := make([]TimeRange, 0, len(ranges))

	for i, r := range ranges {
		if r.Start.IsZero() || r.End.IsZero() {
			return fmt.Errorf("timeslot %d: %w", i, ErrMissingBound)
		}
		if r.Start.Before(now) || r.End.Before(now) {
			return fmt.Errorf("timeslot %d: %w", i, ErrPastTime)
		}
		if !r.Start.Before(r.End) {
			return fmt.Errorf("timeslot %d: %w", i, ErrInvertedRange)
		}

		for j, prev := range accepted {
			if overlaps(r, prev) {
				return fmt.Errorf("timeslot %d overlaps timeslot %d: %w", i, j, ErrOverlap)
			}
		}

		accepted = append(accepted, r)
	}

	return nil
}

func overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}
