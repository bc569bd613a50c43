package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/apperr"
)

type AppointmentConsumer interface {
	HandleAppointmentEvent(ctx context.Context, ev AppointmentEvent) error
}

type RatingConsumer interface {
	HandleRatingEvent(ctx context.Context, ev RatingEvent) error
}

// AppointmentHandler adapts a consumer to an asynq handler. Malformed payloads
// and domain errors are never retried; storage or transport failures leave the
// task for asynq to redeliver.
func AppointmentHandler(c AppointmentConsumer, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		ev, err := DecodeAppointment(task.Payload())
		if err != nil {
			log.Error("dropping appointment event", zap.ByteString("payload", task.Payload()), zap.Error(err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		log.Debug("received appointment event",
			zap.Int64("appointment_id", ev.AppointmentID),
			zap.String("action", string(ev.Action)),
		)
		return retryable(c.HandleAppointmentEvent(ctx, ev))
	}
}

func RatingHandler(c RatingConsumer, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		ev, err := DecodeRating(task.Payload())
		if err != nil {
			log.Error("dropping rating event", zap.ByteString("payload", task.Payload()), zap.Error(err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		log.Debug("received rating event",
			zap.Int64("doctor_id", ev.DoctorID),
			zap.String("rating", ev.Rating.StringFixed(2)),
		)
		return retryable(c.HandleRatingEvent(ctx, ev))
	}
}

// retryable marks errors that redelivery cannot fix with asynq.SkipRetry.
func retryable(err error) error {
	if err == nil || apperr.Retryable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// NewServer builds an asynq server consuming a single queue.
func NewServer(opt asynq.RedisConnOpt, queue string, concurrency int, log *zap.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      log.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			if errors.Is(err, asynq.SkipRetry) {
				return
			}
			log.Warn("event handler failed, will retry",
				zap.String("type", task.Type()),
				zap.Error(err),
			)
		}),
	})
}
