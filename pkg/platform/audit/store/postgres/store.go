package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	audit "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's domain
// transaction and published to Kafka by the outbox relay. Kafka is the
// source of truth for downstream audit consumers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	Actor        string `json:"actor,omitempty"`
	Action       string `json:"action"`
	EntityType   string `json:"entity_type"`
	EntityID     string `json:"entity_id"`
	Amount       int64  `json:"amount,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ClientIP     string `json:"client_ip,omitempty"`
	AgentSummary string `json:"agent_summary,omitempty"`
}

// Append writes an audit event to both the audit_events table (queryable
// trail) and the outbox (Kafka publishing), inside the caller's transaction
// when one is open.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Category always derives from action; the map is the source of truth.
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:           eventID.String(),
		Category:     string(category),
		Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
		Actor:        event.Actor.String(),
		Action:       event.Action,
		EntityType:   event.EntityType,
		EntityID:     event.EntityID,
		Amount:       event.Amount,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		ClientIP:     event.ClientIP,
		AgentSummary: event.AgentSummary,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	db := s.execer(ctx)

	const insertEvent = `
		INSERT INTO audit_events (
			id, category, timestamp, actor, action, entity_type, entity_id,
			amount, reason, request_id, client_ip, agent_summary
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := db.Exec(ctx, insertEvent,
		eventID,
		string(category),
		event.Timestamp,
		event.Actor.String(),
		event.Action,
		event.EntityType,
		event.EntityID,
		event.Amount,
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.AgentSummary,
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	const insertOutbox = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := db.Exec(ctx, insertOutbox,
		uuid.New(), // outbox entry ID
		event.EntityType,
		event.EntityID,
		event.Action,
		payloadBytes,
		event.Timestamp,
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByActor returns events recorded for a specific actor.
func (s *Store) ListByActor(ctx context.Context, actor id.UserID) ([]audit.Event, error) {
	const query = `
		SELECT category, timestamp, actor, action, entity_type, entity_id,
		       amount, reason, request_id, client_ip, agent_summary
		FROM audit_events
		WHERE actor = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.execer(ctx).Query(ctx, query, actor.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByEntity returns the audit trail of one entity.
func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error) {
	const query = `
		SELECT category, timestamp, actor, action, entity_type, entity_id,
		       amount, reason, request_id, client_ip, agent_summary
		FROM audit_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY timestamp ASC
	`
	rows, err := s.execer(ctx).Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			category string
			actor    string
			event    audit.Event
		)
		if err := rows.Scan(
			&category,
			&event.Timestamp,
			&actor,
			&event.Action,
			&event.EntityType,
			&event.EntityID,
			&event.Amount,
			&event.Reason,
			&event.RequestID,
			&event.ClientIP,
			&event.AgentSummary,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Actor = id.UserID(actor)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
