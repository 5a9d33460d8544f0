// Package worker relays audit events from the transactional outbox to Kafka.
// The domain transaction writes the outbox row; this relay publishes it and
// marks it done, so an event is published if and only if the transaction that
// produced it committed.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// Registers the postgres driver for the relay's read connection.
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay polls unpublished outbox rows and publishes them to the audit topic.
type Relay struct {
	db           *sql.DB
	client       *kgo.Client
	topic        string
	logger       *slog.Logger
	batchSize    int
	pollInterval time.Duration
}

// NewRelay opens the relay's own database handle and Kafka client. The relay
// deliberately does not share the domain pool: a saturated request path must
// not starve audit publishing, and vice versa.
func NewRelay(postgresURL string, brokers []string, topic string, logger *slog.Logger) (*Relay, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("open relay db: %w", err)
	}
	db.SetMaxOpenConns(2)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Relay{
		db:           db,
		client:       client,
		topic:        topic,
		logger:       logger,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (r *Relay) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(r.client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, r.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create audit topic: %w", resp.Err)
	}
	return nil
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.publishBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox publish batch failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id        string
	eventType string
	aggregate string
	payload   []byte
}

// publishBatch drains up to batchSize unpublished rows. Rows are claimed with
// FOR UPDATE SKIP LOCKED so multiple relay instances never double-publish.
func (r *Relay) publishBatch(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_type, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}

	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.eventType, &row.aggregate, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	for _, row := range batch {
		record := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.aggregate),
			Value: row.payload,
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce audit event %s: %w", row.id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = $2`,
			time.Now(), row.id,
		); err != nil {
			return fmt.Errorf("mark outbox row published: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox batch: %w", err)
	}

	r.logger.DebugContext(ctx, "published audit batch", "count", len(batch))
	return nil
}

// Close releases the relay's resources.
func (r *Relay) Close() {
	r.client.Close()
	_ = r.db.Close()
}
