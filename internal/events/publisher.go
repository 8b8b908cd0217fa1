package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/pkg/config"
)

// Event types emitted on the admission stream.
const (
	TypeMealAdmitted = "meal.admitted"
	TypeMealReset    = "meal.reset"
)

// Event is the JSON document written to Kafka.
type Event struct {
	Type       string          `json:"type"`
	StudentID  string          `json:"studentId,omitempty"`
	MealType   models.MealType `json:"mealType,omitempty"`
	Day        string          `json:"day,omitempty"`
	Deleted    *int64          `json:"deleted,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type writeCloser interface {
	Close() error
}

const queueSize = 256

var (
	// ErrQueueFull is returned when the publisher cannot accept more events without blocking.
	ErrQueueFull     = errors.New("event queue full")
	errNotStarted    = errors.New("event publisher not started")
	errNilWriter     = errors.New("event publisher requires a writer")
	errEmptyTopic    = errors.New("kafka topic must not be empty")
	errNoKafkaBroker = errors.New("at least one kafka broker is required")
)

// Publisher ships admission and reset events to Kafka asynchronously. A disabled publisher accepts
// and discards every event.
type Publisher struct {
	topic   string
	logger  *zap.Logger
	writer  messageWriter
	closer  writeCloser
	enabled bool

	queue     chan kafka.Message
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

// NewPublisher builds a Kafka-backed publisher, or a no-op one when disabled.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("event publisher disabled")
		return &Publisher{logger: logger}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errEmptyTopic
	}
	if len(cfg.Brokers) == 0 {
		return nil, errNoKafkaBroker
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	return newPublisherWithWriter(cfg.Topic, logger, w, w)
}

func newPublisherWithWriter(topic string, logger *zap.Logger, writer messageWriter, closer writeCloser) (*Publisher, error) {
	if writer == nil {
		return nil, errNilWriter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		topic:   topic,
		logger:  logger.With(zap.String("component", "event_publisher")),
		writer:  writer,
		closer:  closer,
		enabled: true,
		queue:   make(chan kafka.Message, queueSize),
	}, nil
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool { return p != nil && p.enabled }

// Start launches the delivery loop.
func (p *Publisher) Start(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	p.startOnce.Do(func() {
		p.runCtx, p.cancel = context.WithCancel(ctx)
		p.started.Store(true)
		p.wg.Add(1)
		go p.run()
		p.logger.Info("event publisher started", zap.String("topic", p.topic))
	})
}

// Stop drains queued events and closes the writer.
func (p *Publisher) Stop(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	var stopErr error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
		if p.closer != nil {
			if err := p.closer.Close(); err != nil {
				p.logger.Error("close kafka writer", zap.Error(err))
			}
		}
		p.logger.Info("event publisher stopped")
	})
	return stopErr
}

// PublishAdmitted announces a successful admission.
func (p *Publisher) PublishAdmitted(record models.AttendanceRecord) error {
	return p.publish(Event{
		Type:       TypeMealAdmitted,
		StudentID:  record.StudentID,
		MealType:   record.MealType,
		Day:        record.Day.String(),
		OccurredAt: record.CreatedAt,
	}, record.StudentID)
}

// PublishReset announces a ledger wipe. An empty meal type means every meal was wiped.
func (p *Publisher) PublishReset(mealType models.MealType, deleted int64, at time.Time) error {
	return p.publish(Event{
		Type:       TypeMealReset,
		MealType:   mealType,
		Deleted:    &deleted,
		OccurredAt: at.UTC(),
	}, string(mealType))
}

// publish never blocks: callers sit on the request path.
func (p *Publisher) publish(evt Event, key string) error {
	if !p.Enabled() {
		return nil
	}
	if !p.started.Load() {
		return errNotStarted
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	msg := kafka.Message{Value: value}
	if key != "" {
		msg.Key = []byte(key)
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.logger.Warn("event dropped", zap.String("type", evt.Type))
		return ErrQueueFull
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			p.drain()
			p.started.Store(false)
			return
		case msg := <-p.queue:
			p.deliver(p.runCtx, msg)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish event", zap.Error(err), zap.ByteString("key", msg.Key))
		return
	}
	p.logger.Debug("event published", zap.ByteString("key", msg.Key))
}
