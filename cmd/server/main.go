// main wires the engine: stores, gates, services, the audit relay, and the
// HTTP server. Postgres, Redis, and Kafka are all optional; without a
// POSTGRES_URL the engine runs fully in memory, which is how the test
// environments use it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Allan-Afari/investghanahub-sub000/internal/dispute"
	disputehandler "github.com/Allan-Afari/investghanahub-sub000/internal/dispute/handler"
	disputeservice "github.com/Allan-Afari/investghanahub-sub000/internal/dispute/service"
	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow"
	escrowhandler "github.com/Allan-Afari/investghanahub-sub000/internal/escrow/handler"
	escrowmetrics "github.com/Allan-Afari/investghanahub-sub000/internal/escrow/metrics"
	escrowservice "github.com/Allan-Afari/investghanahub-sub000/internal/escrow/service"
	"github.com/Allan-Afari/investghanahub-sub000/internal/funding"
	fundinghandler "github.com/Allan-Afari/investghanahub-sub000/internal/funding/handler"
	fundingmetrics "github.com/Allan-Afari/investghanahub-sub000/internal/funding/metrics"
	fundingservice "github.com/Allan-Afari/investghanahub-sub000/internal/funding/service"
	"github.com/Allan-Afari/investghanahub-sub000/internal/gates"
	"github.com/Allan-Afari/investghanahub-sub000/internal/gateway"
	jwttoken "github.com/Allan-Afari/investghanahub-sub000/internal/jwt_token"
	"github.com/Allan-Afari/investghanahub-sub000/internal/ledger"
	"github.com/Allan-Afari/investghanahub-sub000/internal/platform/config"
	"github.com/Allan-Afari/investghanahub-sub000/internal/platform/httpserver"
	"github.com/Allan-Afari/investghanahub-sub000/internal/platform/logger"
	platformredis "github.com/Allan-Afari/investghanahub-sub000/internal/platform/redis"
	httptransport "github.com/Allan-Afari/investghanahub-sub000/internal/transport/http"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit"
	auditmem "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit/store/memory"
	auditpg "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit/store/postgres"
	auditworker "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/audit/worker"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/platform/middleware/auth"
	txcontext "github.com/Allan-Afari/investghanahub-sub000/pkg/platform/tx"
)

const (
	jwtIssuer   = "investghanahub"
	jwtAudience = "transaction-engine"

	matureInterval  = time.Hour
	matureBatchSize = 500
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Postgres when configured, in-memory otherwise.
	var (
		pool         *pgxpool.Pool
		fundingStore funding.Store
		escrowStore  escrow.Store
		disputeStore dispute.Store
		ledgerStore  ledger.Store
		auditStore   audit.Store
		runner       txcontext.Runner
	)
	if cfg.PostgresURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		fundingStore = funding.NewPostgresStore(pool)
		escrowStore = escrow.NewPostgresStore(pool)
		disputeStore = dispute.NewPostgresStore(pool)
		ledgerStore = ledger.NewPostgresStore(pool)
		auditStore = auditpg.New(pool)
		runner = txcontext.NewPostgresRunner(pool)
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory stores")
		fundingStore = funding.NewInMemoryStore()
		escrowStore = escrow.NewInMemoryStore()
		disputeStore = dispute.NewInMemoryStore()
		ledgerStore = ledger.NewInMemoryStore()
		auditStore = auditmem.NewInMemoryStore()
		runner = txcontext.NewMemoryRunner()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}

	auditor := audit.NewPublisher(auditStore)
	defer auditor.Close()

	// Gates. Static sources stand in until the KYC and fraud subsystems
	// publish real verdicts; the redis cache in front keeps the shape the
	// production wiring will have.
	kycGate := gates.NewCachedKYC(gates.NewStaticKYC(), redisClient)
	fraudGate := gates.NewStaticFraud()

	var paymentGateway gateway.PaymentGateway
	if cfg.GatewayBaseURL != "" {
		paymentGateway = gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayTimeout)
	} else {
		log.Warn("PAYMENT_GATEWAY_URL not set, confirmations will fail")
		paymentGateway = gateway.NewHTTPGateway("http://localhost:0", cfg.GatewayTimeout)
	}

	fundingSvc := fundingservice.NewService(
		fundingStore, ledgerStore, kycGate, fraudGate, auditor, runner,
		fundingmetrics.New(), log)
	escrowSvc := escrowservice.NewService(
		escrowStore, fundingStore, ledgerStore, paymentGateway, auditor, runner,
		escrowmetrics.New(), log,
		escrowservice.WithRedis(redisClient))
	disputeSvc := disputeservice.NewService(disputeStore, escrowSvc, auditor, runner, log)
	reconciler := ledger.NewReconciler(ledgerStore, funding.NewSnapshotSource(fundingStore), log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)

	router := httptransport.NewRouter(httptransport.Deps{
		Funding:   fundinghandler.New(fundingSvc, reconciler, log),
		Escrow:    escrowhandler.New(escrowSvc, log),
		Dispute:   disputehandler.New(disputeSvc, log),
		Validator: tokenValidator{svc: jwtService},
		Logger:    log,
		Health:    healthChecks(pool, redisClient),
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("engine listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Outbox relay, only meaningful with both Postgres and Kafka.
	if cfg.PostgresURL != "" && len(cfg.KafkaBrokers) > 0 {
		relay, err := auditworker.NewRelay(cfg.PostgresURL, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("start audit relay", "error", err)
			os.Exit(1)
		}
		defer relay.Close()

		if err := relay.EnsureTopic(ctx, 3, 1); err != nil {
			log.Error("ensure audit topic", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return relay.Run(gCtx) })
	} else {
		log.Warn("audit relay disabled, requires POSTGRES_URL and KAFKA_BROKERS")
	}

	// Maturity sweep.
	g.Go(func() error {
		ticker := time.NewTicker(matureInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				matured, err := fundingSvc.MatureDue(gCtx, matureBatchSize)
				if err != nil {
					log.Error("maturity sweep", "error", err)
					continue
				}
				if matured > 0 {
					log.Info("maturity sweep complete", "matured", matured)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Error("engine stopped", "error", err)
		os.Exit(1)
	}
	log.Info("engine stopped")
}

// tokenValidator bridges the JWT service to the auth middleware.
type tokenValidator struct {
	svc *jwttoken.JWTService
}

func (v tokenValidator) ValidateToken(tokenString string) (auth.Identity, error) {
	claims, err := v.svc.ValidateToken(tokenString)
	if err != nil {
		return auth.Identity{}, err
	}
	userID, role, err := claims.Identity()
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{UserID: userID, Role: role}, nil
}

func healthChecks(pool *pgxpool.Pool, redisClient *platformredis.Client) map[string]httptransport.HealthChecker {
	checks := make(map[string]httptransport.HealthChecker)
	if pool != nil {
		checks["postgres"] = poolHealth{pool: pool}
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	return checks
}

type poolHealth struct {
	pool *pgxpool.Pool
}

func (p poolHealth) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
