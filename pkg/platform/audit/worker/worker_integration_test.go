//go:build integration

package worker_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	audit "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit"
	auditpg "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit/store/postgres"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit/worker"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/testutil/containers"
)

const relayTestTopic = "audit.events.test"

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *auditpg.Store
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.redpanda = containers.NewRedpandaContainer(s.T())
	s.store = auditpg.New(s.postgres.Pool)
}

func (s *RelaySuite) TearDownSuite() {
	s.postgres.Pool.Close()
	_ = s.postgres.Container.Terminate(context.Background())
	_ = s.redpanda.Container.Terminate(context.Background())
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

// TestRelayPublishesOutbox appends events through the outbox store, runs the
// relay, and verifies the events arrive on the topic and the outbox rows are
// marked published.
func (s *RelaySuite) TestRelayPublishesOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	actor := id.NewUserID()
	events := []audit.Event{
		{
			Timestamp:  time.Now(),
			Actor:      actor,
			Action:     "investment_made",
			EntityType: "investment",
			EntityID:   id.NewInvestmentID().String(),
			Amount:     500_00,
			RequestID:  "req-relay-1",
		},
		{
			Timestamp:  time.Now(),
			Actor:      actor,
			Action:     "escrow_created",
			EntityType: "escrow",
			EntityID:   id.NewEscrowID().String(),
			Amount:     500_00,
			RequestID:  "req-relay-2",
		},
	}
	for _, e := range events {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	relay, err := worker.NewRelay(s.postgres.URL, []string{s.redpanda.Broker}, relayTestTopic, slog.Default())
	s.Require().NoError(err)
	defer relay.Close()
	s.Require().NoError(relay.EnsureTopic(ctx, 1, 1))

	relayCtx, stopRelay := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(relayCtx)
	}()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(relayTestTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	actions := make(map[string]bool)
	for len(actions) < len(events) {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(fetches.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			var payload struct {
				Action    string `json:"action"`
				Actor     string `json:"actor"`
				RequestID string `json:"request_id"`
			}
			s.Require().NoError(json.Unmarshal(r.Value, &payload))
			s.Equal(actor.String(), payload.Actor)
			actions[payload.Action] = true
		})
	}
	s.True(actions["investment_made"])
	s.True(actions["escrow_created"])

	stopRelay()
	<-done

	// Every outbox row must be marked so a relay restart cannot re-publish.
	var unpublished int
	s.Require().NoError(s.postgres.Pool.
		QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).
		Scan(&unpublished))
	s.Equal(0, unpublished)

	// The queryable trail was written alongside the outbox.
	trail, err := s.store.ListByActor(ctx, actor)
	s.Require().NoError(err)
	s.Len(trail, 2)
}
