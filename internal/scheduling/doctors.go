package scheduling

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/events"
)

func (s *Service) CreateDoctor(ctx context.Context, userID int64, specialtyIDs []int64) (*Doctor, error) {
	doctor, err := s.repo.CreateDoctor(ctx, userID, specialtyIDs)
	if err != nil {
		if errors.Is(err, ErrDoctorExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create doctor: %w", err)
	}

	s.log.Info("doctor created", zap.Int64("doctor_id", doctor.ID), zap.Int64("user_id", userID))
	return doctor, nil
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return doctor, nil
}

func (s *Service) GetDoctorByUser(ctx context.Context, userID int64) (*Doctor, error) {
	doctor, err := s.repo.GetDoctorByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get doctor by user: %w", err)
	}
	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	specialties, err := s.repo.ListSpecialties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	return specialties, nil
}

// HandleRatingEvent applies an aggregate rating from the ratings service.
// Ratings for unknown doctors are dropped without retry; storage failures are
// returned so the transport redelivers the event.
func (s *Service) HandleRatingEvent(ctx context.Context, ev events.RatingEvent) error {
	rating := ev.Rating.Round(2)

	err := s.repo.UpdateDoctorRating(ctx, ev.DoctorID, rating)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			s.log.Warn("rating for unknown doctor ignored",
				zap.Int64("doctor_user_id", ev.DoctorID),
				zap.String("rating", rating.StringFixed(2)),
			)
			return nil
		}
		return fmt.Errorf("apply rating: %w", err)
	}

	s.observer.RatingApplied()
	s.log.Info("doctor rating updated",
		zap.Int64("doctor_user_id", ev.DoctorID),
		zap.String("rating", rating.StringFixed(2)),
	)
	return nil
}
