package audit

import (
	"context"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// Publisher captures structured audit events. Emit is synchronous by default
// so an event written inside a domain transaction shares its fate; the async
// buffer exists for advisory events that may not block the request path.
type Publisher struct {
	store Store

	inbox chan Event
	done  chan struct{}
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches Emit to buffered background appends. Do not use
// for events that must commit atomically with domain state.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records one event, filling in timestamp, category, and request
// metadata from context when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
			return nil
		default:
			// Buffer full: fall through to synchronous append rather than drop.
		}
	}
	return p.store.Append(ctx, event)
}

// List returns events for one actor.
func (p *Publisher) List(ctx context.Context, actor id.UserID) ([]Event, error) {
	return p.store.ListByActor(ctx, actor)
}

// ListByEntity returns the audit trail of one entity.
func (p *Publisher) ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entityType, entityID)
}

// Close stops the async drain loop, flushing buffered events first.
func (p *Publisher) Close() {
	if p.inbox != nil {
		close(p.inbox)
		<-p.done
		return
	}
	close(p.done)
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.store.Append(ctx, event)
		cancel()
	}
}
