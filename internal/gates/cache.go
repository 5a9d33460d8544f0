package gates

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "github.com/Allan-Afari/investghanahub-sub000/internal/platform/redis"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// kycCacheTTL bounds how long an APPROVED verdict may be reused. Non-approved
// statuses are cached briefly so a rejected user cannot hammer the KYC
// service, but approval is the only status worth holding longer.
const (
	approvedKYCTTL = 10 * time.Minute
	deniedKYCTTL   = 30 * time.Second
)

// CachedKYC decorates a KYCGate with a redis cache. A nil client degrades to
// pass-through, so the engine runs without redis configured.
type CachedKYC struct {
	next   KYCGate
	client *platformredis.Client
}

func NewCachedKYC(next KYCGate, client *platformredis.Client) *CachedKYC {
	return &CachedKYC{next: next, client: client}
}

func (g *CachedKYC) Status(ctx context.Context, userID id.UserID) (KYCStatus, error) {
	if g.client == nil {
		return g.next.Status(ctx, userID)
	}

	key := "kyc:" + userID.String()
	if cached, err := g.client.Get(ctx, key).Result(); err == nil && cached != "" {
		return KYCStatus(cached), nil
	} else if err != nil && !errors.Is(err, goredis.Nil) {
		// Cache trouble must not block the gate; fall through to the source.
		return g.next.Status(ctx, userID)
	}

	status, err := g.next.Status(ctx, userID)
	if err != nil {
		return status, err
	}

	ttl := deniedKYCTTL
	if status == KYCApproved {
		ttl = approvedKYCTTL
	}
	_ = g.client.Set(ctx, key, string(status), ttl).Err()
	return status, nil
}

// Fraud verdicts are never cached: every movement gets a fresh evaluation
// because amount and IP are part of the decision. No decorator exists for
// FraudGate on purpose.
