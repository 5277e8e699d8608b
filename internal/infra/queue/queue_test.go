package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

type fakeAck struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(uint64, bool) error { return nil }

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) HandleStageChanged(ctx context.Context, event usecase.DealStageChanged) ([]*entity.Task, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Task), args.Error(1)
}

func sampleEvent() usecase.DealStageChanged {
	return usecase.DealStageChanged{
		DealID: uuid.New(),
		LeadID: uuid.New(),
		From:   entity.StageMeetingBooked,
		To:     entity.StageDemoDone,
	}
}

func TestProducerPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQProducer{Ch: ch}
	event := sampleEvent()

	require.NoError(t, p.PublishStageChanged(context.Background(), event))

	assert.Equal(t, ExchangeName, ch.exchange)
	assert.Equal(t, RoutingKey, ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var got usecase.DealStageChanged
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, event, got)
}

func TestProducerWrapsPublishError(t *testing.T) {
	p := &RabbitMQProducer{Ch: &fakeChannel{err: amqp.ErrClosed}}
	err := p.PublishStageChanged(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestWorkerAcksHandledEvent(t *testing.T) {
	h := new(MockHandler)
	event := sampleEvent()
	h.On("HandleStageChanged", mock.Anything, event).Return([]*entity.Task{{}, {}, {}}, nil)

	w := &Worker{Handler: h, Logger: zap.NewNop()}
	ack := &fakeAck{}
	body, _ := json.Marshal(event)
	w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body})

	assert.Equal(t, 1, ack.acked)
	assert.Zero(t, ack.nacked)
}

func TestWorkerDeadLettersBadMessages(t *testing.T) {
	h := new(MockHandler)
	h.On("HandleStageChanged", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	w := &Worker{Handler: h, Logger: zap.NewNop()}

	malformed := &fakeAck{}
	w.handle(context.Background(), amqp.Delivery{Acknowledger: malformed, Body: []byte("{nope")})
	assert.Equal(t, 1, malformed.nacked)
	assert.False(t, malformed.requeue)

	failing := &fakeAck{}
	body, _ := json.Marshal(sampleEvent())
	w.handle(context.Background(), amqp.Delivery{Acknowledger: failing, Body: body})
	assert.Equal(t, 1, failing.nacked)
	assert.False(t, failing.requeue)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	h := new(MockHandler)
	h.On("HandleStageChanged", mock.Anything, mock.Anything).Return(nil, nil)
	w := &Worker{Handler: h, Logger: zap.NewNop()}

	msgs := make(chan amqp.Delivery, 1)
	body, _ := json.Marshal(sampleEvent())
	ack := &fakeAck{}
	msgs <- amqp.Delivery{Acknowledger: ack, Body: body}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.run(ctx, msgs) }()

	require.Eventually(t, func() bool {
		ack.mu.Lock()
		defer ack.mu.Unlock()
		return ack.acked == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerRunReportsClosedChannel(t *testing.T) {
	w := &Worker{Handler: new(MockHandler), Logger: zap.NewNop()}
	msgs := make(chan amqp.Delivery)
	close(msgs)
	assert.Error(t, w.run(context.Background(), msgs))
}

func TestInProcessPublisherRunsHandler(t *testing.T) {
	h := new(MockHandler)
	event := sampleEvent()
	h.On("HandleStageChanged", mock.Anything, event).Return(nil, nil).Once()

	require.NoError(t, NewInProcessPublisher(h).PublishStageChanged(context.Background(), event))
	h.AssertExpectations(t)
}
