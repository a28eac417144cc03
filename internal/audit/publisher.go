package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"smartcore/pkg/domain"
	"smartcore/pkg/requestcontext"
)

var droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
	Name: "smartcore_audit_events_dropped_total",
	Help: "Audit events dropped because the async sink buffer was full",
})

// Store is the durable audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject domain.Address) ([]Event, error)
}

// Sink is an optional streaming destination (Kafka) fed asynchronously.
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Publisher captures structured audit events. The store write is
// synchronous so the record survives the request; the stream sink is fed
// through a bounded buffer and sheds load rather than blocking the gate.
type Publisher struct {
	store  Store
	sink   Sink
	buffer chan Event
	done   chan struct{}
	logger *slog.Logger
}

type Option func(*Publisher)

func WithSink(sink Sink, bufferSize int) Option {
	return func(p *Publisher) {
		p.sink = sink
		if bufferSize <= 0 {
			bufferSize = 256
		}
		p.buffer = make(chan Event, bufferSize)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sink != nil {
		go p.drain()
	}
	return p
}

// Emit records an event. Missing ID and timestamp are filled in here so
// call sites stay terse; the timestamp is the request-scoped time when one
// is present, so every event of one request shares the same instant.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.At.IsZero() {
		event.At = requestcontext.Now(ctx).UTC()
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		if event.Details == nil {
			event.Details = make(map[string]string)
		}
		event.Details["request_id"] = requestID
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.sink != nil {
		select {
		case p.buffer <- event:
		default:
			droppedEvents.Inc()
		}
	}
	return nil
}

// List returns the audit trail for a subject address.
func (p *Publisher) List(ctx context.Context, subject domain.Address) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close stops the async drain and closes the sink.
func (p *Publisher) Close() {
	if p.sink == nil {
		return
	}
	close(p.done)
	p.sink.Close()
}

func (p *Publisher) drain() {
	for {
		select {
		case <-p.done:
			return
		case event := <-p.buffer:
			if err := p.sink.Publish(context.Background(), event); err != nil {
				p.logger.Warn("audit sink publish failed", "event_id", event.ID, "error", err)
			}
		}
	}
}
