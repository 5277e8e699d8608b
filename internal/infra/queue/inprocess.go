package queue

import (
	"context"

	"github.com/xavierca1/ligue-crm/internal/usecase"
)

// InProcessPublisher runs the automation synchronously when no broker is
// configured. Errors are returned to the publisher, which logs them.
type InProcessPublisher struct {
	Handler StageChangedHandler
}

func NewInProcessPublisher(handler StageChangedHandler) *InProcessPublisher {
	return &InProcessPublisher{Handler: handler}
}

func (p *InProcessPublisher) PublishStageChanged(ctx context.Context, event usecase.DealStageChanged) error {
	_, err := p.Handler.HandleStageChanged(ctx, event)
	return err
}

var _ usecase.EventPublisher = (*InProcessPublisher)(nil)
