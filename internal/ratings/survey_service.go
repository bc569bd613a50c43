package ratings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/events"
)

type options struct {
	observer Observer
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*options)

func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(opts *options) { opts.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(opts *options) { opts.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		observer: NopObserver{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SurveyService owns the survey lifecycle: surveys are opened by appointment
// events and closed by the patient's submission.
type SurveyService struct {
	repo Repository
	options
}

func NewSurveyService(repo Repository, opts ...Option) *SurveyService {
	return &SurveyService{repo: repo, options: buildOptions(opts)}
}

// HandleAppointmentEvent consumes scheduling's appointment events. Events may
// arrive more than once and in any order.
func (s *SurveyService) HandleAppointmentEvent(ctx context.Context, ev events.AppointmentEvent) error {
	if !ev.Action.Valid() {
		s.log.Warn("ignoring appointment event with unknown action",
			zap.Int64("appointment_id", ev.AppointmentID),
			zap.String("action", string(ev.Action)),
		)
		return nil
	}

	if ev.Action == events.ActionDelete {
		return s.DiscardSurvey(ctx, ev.AppointmentID)
	}
	_, err := s.CreateSurvey(ctx, ev)
	return err
}

// CreateSurvey opens the survey of a booked appointment. A survey that already
// exists for the appointment is returned unchanged.
func (s *SurveyService) CreateSurvey(ctx context.Context, ev events.AppointmentEvent) (*Survey, error) {
	existing, err := s.repo.GetSurveyByAppointment(ctx, ev.AppointmentID)
	switch {
	case err == nil:
		s.log.Info("survey for appointment already exists", zap.Int64("appointment_id", ev.AppointmentID))
		return existing, nil
	case !errors.Is(err, ErrSurveyNotFound):
		return nil, fmt.Errorf("load survey: %w", err)
	}

	created, err := s.repo.CreateSurvey(ctx, Survey{
		AppointmentID: ev.AppointmentID,
		DoctorID:      ev.DoctorUserID,
		PatientID:     ev.PatientID,
		StartTime:     ev.StartTime,
		EndTime:       ev.EndTime,
	})
	if err != nil {
		if errors.Is(err, ErrSurveyExists) {
			// concurrent delivery of the same event won the insert
			return s.repo.GetSurveyByAppointment(ctx, ev.AppointmentID)
		}
		return nil, fmt.Errorf("create survey: %w", err)
	}

	s.observer.SurveyCreated()
	s.log.Info("survey created",
		zap.Int64("survey_id", created.ID),
		zap.Int64("appointment_id", created.AppointmentID),
		zap.Int64("doctor_id", created.DoctorID),
	)
	return created, nil
}

// DiscardSurvey drops the survey of a cancelled appointment while it is still
// pending. Rated surveys stay so that their rating is still aggregated.
func (s *SurveyService) DiscardSurvey(ctx context.Context, appointmentID int64) error {
	deleted, err := s.repo.DeletePendingSurvey(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("discard survey: %w", err)
	}

	if !deleted {
		s.log.Info("no pending survey to discard", zap.Int64("appointment_id", appointmentID))
		return nil
	}

	s.observer.SurveyDiscarded()
	s.log.Info("survey discarded", zap.Int64("appointment_id", appointmentID))
	return nil
}

func (s *SurveyService) SubmitSurvey(ctx context.Context, req SubmitRequest) (*Survey, error) {
	if req.Rating < MinRating || req.Rating > MaxRating {
		return nil, ErrInvalidRating
	}

	survey, err := s.GetSurvey(ctx, req.AppointmentID, req.PatientID)
	if err != nil {
		return nil, err
	}

	if survey.DoctorID != req.DoctorID {
		s.log.Warn("survey submitted for a different doctor",
			zap.Int64("appointment_id", req.AppointmentID),
			zap.Int64("doctor_id", req.DoctorID),
		)
		return nil, ErrDoctorMismatch
	}

	if survey.Rating != nil {
		return nil, ErrAlreadySubmitted
	}

	if err := s.repo.SubmitRating(ctx, survey.ID, req.Rating); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return nil, err
		}
		return nil, fmt.Errorf("submit survey: %w", err)
	}

	rating := req.Rating
	survey.Rating = &rating

	s.observer.SurveySubmitted()
	s.log.Info("survey submitted",
		zap.Int64("survey_id", survey.ID),
		zap.Int64("appointment_id", survey.AppointmentID),
		zap.Int("rating", rating),
	)
	return survey, nil
}

func (s *SurveyService) GetSurvey(ctx context.Context, appointmentID, patientID int64) (*Survey, error) {
	survey, err := s.repo.GetSurveyByAppointmentAndPatient(ctx, appointmentID, patientID)
	if err != nil {
		if errors.Is(err, ErrSurveyNotFound) {
			s.log.Warn("survey not found", zap.Int64("appointment_id", appointmentID))
			return nil, err
		}
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return survey, nil
}

func (s *SurveyService) ListSurveys(ctx context.Context) ([]Survey, error) {
	surveys, err := s.repo.ListSurveys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return surveys, nil
}
