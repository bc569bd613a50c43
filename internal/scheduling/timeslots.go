package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultFreeWindow = 7 * 24 * time.Hour

// CreateTimeslots validates and stores a doctor's batch upload. The batch is
// only checked against itself, not against timeslots the doctor already has.
func (s *Service) CreateTimeslots(ctx context.Context, userID int64, ranges []TimeRange) ([]Timeslot, error) {
	doctor, err := s.repo.GetDoctorByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			s.log.Warn("timeslot upload by unknown doctor", zap.Int64("user_id", userID))
			return nil, ErrNotADoctor
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if err := ValidateRanges(ranges, s.now()); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateTimeslots(ctx, doctor.ID, ranges)
	if err != nil {
		return nil, fmt.Errorf("save timeslots: %w", err)
	}

	s.observer.TimeslotsCreated(len(created))
	s.log.Info("timeslots created", zap.Int64("doctor_id", doctor.ID), zap.Int("count", len(created)))

	return created, nil
}

func (s *Service) ListTimeslotsByDoctor(ctx context.Context, doctorID int64) ([]Timeslot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	slots, err := s.repo.ListTimeslotsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list timeslots by doctor: %w", err)
	}
	return slots, nil
}

// ListFreeTimeslots returns free timeslots lying entirely between the start
// of q.From's day and the last second of q.To's day.
func (s *Service) ListFreeTimeslots(ctx context.Context, q FreeTimeslotQuery) ([]Timeslot, error) {
	now := s.now()

	from := q.From
	if from.IsZero() {
		from = now
	}
	to := q.To
	if to.IsZero() {
		to = now.Add(defaultFreeWindow)
	}

	from = startOfDay(from)
	to = startOfDay(to).Add(24*time.Hour - time.Second)
	if from.After(to) {
		return nil, ErrInvalidWindow
	}

	slots, err := s.repo.ListFreeTimeslots(ctx, q.DoctorIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list free timeslots: %w", err)
	}

	s.log.Debug("free timeslots query",
		zap.Int64s("doctor_ids", q.DoctorIDs),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("found", len(slots)),
	)
	return slots, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
