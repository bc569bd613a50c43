package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/config"
	"github.com/hackgods/medifit/internal/events"
)

const publishTimeout = 5 * time.Second

type Service struct {
	repo      Repository
	publisher events.AppointmentPublisher
	observer  Observer
	log       *zap.Logger
	notice    time.Duration
	now       func() time.Time
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, publisher events.AppointmentPublisher, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: publisher,
		observer:  NopObserver{},
		log:       zap.NewNop(),
		notice:    cfg.CancellationNotice,
		now:       time.Now,
	}
	if s.notice <= 0 {
		s.notice = 24 * time.Hour
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAppointment books a free timeslot for a patient. The claim of the
// timeslot and the appointment insert commit together; the CREATE event is
// published only after the commit.
func (s *Service) CreateAppointment(ctx context.Context, patientID, timeslotID int64) (*Appointment, error) {
	slot, err := s.repo.GetTimeslotByID(ctx, timeslotID)
	if err != nil {
		if errors.Is(err, ErrTimeslotNotFound) {
			s.log.Warn("timeslot not found", zap.Int64("timeslot_id", timeslotID))
			return nil, err
		}
		return nil, fmt.Errorf("load timeslot: %w", err)
	}

	if !slot.Free {
		s.observer.BookingConflict()
		return nil, ErrTimeslotTaken
	}

	if slot.DoctorUserID == patientID {
		s.log.Warn("patient tried to book own timeslot",
			zap.Int64("patient_id", patientID),
			zap.Int64("timeslot_id", timeslotID),
		)
		return nil, ErrSelfBooking
	}

	var created *Appointment

	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		if err := tx.ClaimTimeslot(ctx, slot.ID); err != nil {
			return err
		}

		appt, err := tx.CreateAppointment(ctx, patientID, slot)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTimeslotTaken) {
			s.observer.BookingConflict()
			return nil, ErrTimeslotTaken
		}
		return nil, fmt.Errorf("book timeslot %d: %w", slot.ID, err)
	}

	s.observer.AppointmentCreated()
	s.log.Info("appointment created",
		zap.Int64("appointment_id", created.ID),
		zap.Int64("timeslot_id", slot.ID),
		zap.Int64("patient_id", patientID),
	)

	s.publish(ctx, appointmentEvent(created, events.ActionCreate))

	return created, nil
}

// CancelAppointment removes a patient's appointment and frees its timeslot.
// Appointments of other patients are reported as not found.
func (s *Service) CancelAppointment(ctx context.Context, patientID, appointmentID int64) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	if appt.PatientID != patientID {
		s.log.Warn("patient tried to cancel someone else's appointment",
			zap.Int64("patient_id", patientID),
			zap.Int64("appointment_id", appointmentID),
		)
		return ErrAppointmentNotFound
	}

	if appt.StartTime.Before(s.now().Add(s.notice)) {
		return ErrTooSoon
	}

	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		if err := tx.DeleteAppointment(ctx, appt.ID); err != nil {
			return err
		}
		return tx.ReleaseTimeslot(ctx, appt.TimeslotID)
	})
	if err != nil {
		// lost a race with a concurrent cancel
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("cancel appointment %d: %w", appt.ID, err)
	}

	s.observer.AppointmentCancelled()
	s.log.Info("appointment cancelled",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("timeslot_id", appt.TimeslotID),
	)

	s.publish(ctx, appointmentEvent(appt, events.ActionDelete))

	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// publish runs after the local commit. A failure leaves downstream stale until
// the next change, so it is logged rather than returned.
func (s *Service) publish(ctx context.Context, ev events.AppointmentEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishAppointment(pubCtx, ev); err != nil {
		s.log.Error("failed to publish appointment event",
			zap.Int64("appointment_id", ev.AppointmentID),
			zap.String("action", string(ev.Action)),
			zap.Error(err),
		)
		return
	}

	s.log.Debug("appointment event published",
		zap.Int64("appointment_id", ev.AppointmentID),
		zap.String("action", string(ev.Action)),
	)
}

func appointmentEvent(a *Appointment, action events.Action) events.AppointmentEvent {
	return events.AppointmentEvent{
		AppointmentID: a.ID,
		DoctorUserID:  a.DoctorUserID,
		PatientID:     a.PatientID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Action:        action,
	}
}
