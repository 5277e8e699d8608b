package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

// StageChangedHandler runs the automation rules for one event.
type StageChangedHandler interface {
	HandleStageChanged(ctx context.Context, event usecase.DealStageChanged) ([]*entity.Task, error)
}

type Worker struct {
	Channel *amqp.Channel
	Handler StageChangedHandler
	Logger  *zap.Logger
}

func NewWorker(ch *amqp.Channel, handler StageChangedHandler, logger *zap.Logger) *Worker {
	return &Worker{Channel: ch, Handler: handler, Logger: logger}
}

// Start consumes queueName until ctx is canceled or the channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"crm-automation",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	w.Logger.Info("automation worker consuming", zap.String("queue", queueName))
	return w.run(ctx, msgs)
}

func (w *Worker) run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

// handle acks on success. Malformed bodies and failed rules are rejected
// without requeue so they land in the DLQ.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var event usecase.DealStageChanged
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.Logger.Warn("invalid stage event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	tasks, err := w.Handler.HandleStageChanged(ctx, event)
	if err != nil {
		w.Logger.Error("automation failed",
			zap.String("deal_id", event.DealID.String()),
			zap.String("to", string(event.To)),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}

	w.Logger.Debug("stage event processed",
		zap.String("deal_id", event.DealID.String()),
		zap.Int("tasks", len(tasks)),
	)
	_ = d.Ack(false)
}
