package events

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

type AppointmentPublisher interface {
	PublishAppointment(ctx context.Context, ev AppointmentEvent) error
}

type RatingPublisher interface {
	PublishRating(ctx context.Context, ev RatingEvent) error
}

// AsynqPublisher enqueues events as asynq tasks, one queue per event type.
type AsynqPublisher struct {
	client   *asynq.Client
	maxRetry int
}

func NewAsynqPublisher(opt asynq.RedisConnOpt) *AsynqPublisher {
	return &AsynqPublisher{
		client:   asynq.NewClient(opt),
		maxRetry: 25,
	}
}

func (p *AsynqPublisher) PublishAppointment(ctx context.Context, ev AppointmentEvent) error {
	data, err := EncodeAppointment(ev)
	if err != nil {
		return fmt.Errorf("encode appointment event: %w", err)
	}
	return p.enqueue(ctx, TypeAppointmentEvent, QueueAppointments, data)
}

func (p *AsynqPublisher) PublishRating(ctx context.Context, ev RatingEvent) error {
	data, err := EncodeRating(ev)
	if err != nil {
		return fmt.Errorf("encode rating event: %w", err)
	}
	return p.enqueue(ctx, TypeRatingEvent, QueueRatings, data)
}

func (p *AsynqPublisher) enqueue(ctx context.Context, taskType, queue string, payload []byte) error {
	task := asynq.NewTask(taskType, payload)
	if _, err := p.client.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(p.maxRetry)); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}
