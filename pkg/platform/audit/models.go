package audit

import (
	"context"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryFinancial covers fund-movement events with regulatory
	// significance. These require tamper-proof storage and long retention.
	CategoryFinancial EventCategory = "financial"

	// CategorySecurity covers events relevant to security monitoring:
	// gate denials, authorization failures, dispute activity.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic on every state transition. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	Actor      id.UserID
	Action     string
	EntityType string
	EntityID   string
	// Amount is the minor-unit value moved, when the action moves money.
	Amount int64
	Reason string
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string
	ClientIP  string
	// AgentSummary is the condensed client user agent, security events only.
	AgentSummary string
}

type AuditEvent string

const (
	// Funding events
	EventInvestmentMade      AuditEvent = "investment_made"
	EventInvestmentMatured   AuditEvent = "investment_matured"
	EventInvestmentWithdrawn AuditEvent = "investment_withdrawn"

	// Escrow lifecycle events
	EventEscrowCreated        AuditEvent = "escrow_created"
	EventPaymentInitiated     AuditEvent = "payment_initiated"
	EventEscrowFunded         AuditEvent = "escrow_funded"
	EventEscrowReleased       AuditEvent = "escrow_released"
	EventEscrowRefunded       AuditEvent = "escrow_refunded"
	EventPaymentConfirmFailed AuditEvent = "payment_confirm_failed"

	// Dispute events
	EventDisputeRaised   AuditEvent = "dispute_raised"
	EventDisputeResolved AuditEvent = "dispute_resolved"

	// Gate events
	EventGateDenied AuditEvent = "gate_denied"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventInvestmentMade:      CategoryFinancial,
	EventInvestmentMatured:   CategoryFinancial,
	EventInvestmentWithdrawn: CategoryFinancial,
	EventEscrowCreated:       CategoryFinancial,
	EventEscrowFunded:        CategoryFinancial,
	EventEscrowReleased:      CategoryFinancial,
	EventEscrowRefunded:      CategoryFinancial,

	EventDisputeRaised:   CategorySecurity,
	EventDisputeResolved: CategorySecurity,
	EventGateDenied:      CategorySecurity,

	EventPaymentInitiated:     CategoryOperations,
	EventPaymentConfirmFailed: CategoryOperations,
}

// Category resolves the event's category; unknown actions are treated as
// operations so routing never drops an event.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store is the persistence boundary for audit events. The postgres
// implementation writes the transactional outbox; the memory implementation
// backs unit tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor id.UserID) ([]Event, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
}
