package scheduling

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRanges(t *testing.T) {
	now := time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return now.Add(time.Duration(h) * time.Hour) }

	tests := []struct {
		name   string
		ranges []TimeRange
		want   error
	}{
		{
			name: "valid batch",
			ranges: []TimeRange{
				{Start: at(1), End: at(2)},
				{Start: at(3), End: at(4)},
			},
		},
		{
			name: "touching boundaries are not an overlap",
			ranges: []TimeRange{
				{Start: at(1), End: at(2)},
				{Start: at(2), End: at(3)},
			},
		},
		{
			name: "start exactly now is allowed",
			ranges: []TimeRange{
				{Start: now, End: at(1)},
			},
		},
		{
			name:   "empty batch",
			ranges: nil,
		},
		{
			name:   "missing start",
			ranges: []TimeRange{{End: at(2)}},
			want:   ErrMissingBound,
		},
		{
			name:   "missing end",
			ranges: []TimeRange{{Start: at(2)}},
			want:   ErrMissingBound,
		},
		{
			name:   "start in the past",
			ranges: []TimeRange{{Start: now.Add(-time.Minute), End: at(1)}},
			want:   ErrPastTime,
		},
		{
			name:   "end in the past",
			ranges: []TimeRange{{Start: at(1), End: now.Add(-time.Second)}},
			want:   ErrPastTime,
		},
		{
			name:   "inverted range",
			ranges: []TimeRange{{Start: at(3), End: at(2)}},
			want:   ErrInvertedRange,
		},
		{
			name:   "empty range",
			ranges: []TimeRange{{Start: at(3), End: at(3)}},
			want:   ErrInvertedRange,
		},
		{
			name: "pairwise overlap",
			ranges: []TimeRange{
				{Start: at(1), End: at(3)},
				{Start: at(5), End: at(6)},
				{Start: at(2), End: at(4)},
			},
			want: ErrOverlap,
		},
		{
			name: "containment is an overlap",
			ranges: []TimeRange{
				{Start: at(1), End: at(5)},
				{Start: at(2), End: at(3)},
			},
			want: ErrOverlap,
		},
		{
			name: "first violation wins",
			ranges: []TimeRange{
				{Start: at(3), End: at(2)},
				{Start: now.Add(-time.Hour), End: at(1)},
			},
			want: ErrInvertedRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRanges(tt.ranges, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateRangesGeneratedBatches(t *testing.T) {
	now := time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)
	faker := gofakeit.New(42)

	for i := 0; i < 200; i++ {
		n := faker.IntRange(1, 12)
		cursor := now.Add(time.Duration(faker.IntRange(0, 48)) * time.Hour)

		ranges := make([]TimeRange, 0, n)
		for j := 0; j < n; j++ {
			length := time.Duration(faker.IntRange(5, 120)) * time.Minute
			gap := time.Duration(faker.IntRange(0, 60)) * time.Minute
			ranges = append(ranges, TimeRange{Start: cursor, End: cursor.Add(length)})
			cursor = cursor.Add(length + gap)
		}

		faker.ShuffleAnySlice(ranges)
		require.NoError(t, ValidateRanges(ranges, now))

		// stretching any item over its successor must be rejected
		if n > 1 {
			broken := append([]TimeRange(nil), ranges...)
			sortByStart(broken)
			broken[0].End = broken[1].End.Add(time.Minute)
			assert.ErrorIs(t, ValidateRanges(broken, now), ErrOverlap)
		}
	}
}

func sortByStart(ranges []TimeRange) {
	for i := 1; i < len(ranges); i++ {
		for j := i; j > 0 && ranges[j].Start.Before(ranges[j-1].Start); j-- {
			ranges[j], ranges[j-1] = ranges[j-1], ranges[j]
		}
	}
}
