//go:build integration

package gates_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Allan-Afari/investghanahub-sub000/internal/gates"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/testutil/containers"
)

type CachedKYCSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestCachedKYCSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedKYCSuite))
}

func (s *CachedKYCSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *CachedKYCSuite) TearDownSuite() {
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(context.Background())
}

func (s *CachedKYCSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestApprovedVerdictCached verifies the second lookup is served from redis,
// surviving a source flip.
func (s *CachedKYCSuite) TestApprovedVerdictCached() {
	ctx := context.Background()
	userID := id.NewUserID()

	source := gates.NewStaticKYC()
	source.Set(userID, gates.KYCApproved)
	gate := gates.NewCachedKYC(source, s.redis.Client)

	status, err := gate.Status(ctx, userID)
	s.Require().NoError(err)
	s.Equal(gates.KYCApproved, status)

	// Flip the source; the cached verdict still answers.
	source.Set(userID, gates.KYCRejected)
	status, err = gate.Status(ctx, userID)
	s.Require().NoError(err)
	s.Equal(gates.KYCApproved, status)
}

// TestDeniedVerdictShortTTL verifies non-approved statuses carry a short TTL
// so a user who completes verification is not locked out for long.
func (s *CachedKYCSuite) TestDeniedVerdictShortTTL() {
	ctx := context.Background()
	userID := id.NewUserID()

	source := gates.NewStaticKYC()
	source.Set(userID, gates.KYCPending)
	gate := gates.NewCachedKYC(source, s.redis.Client)

	status, err := gate.Status(ctx, userID)
	s.Require().NoError(err)
	s.Equal(gates.KYCPending, status)

	ttl, err := s.redis.Client.TTL(ctx, "kyc:"+userID.String()).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
	s.LessOrEqual(ttl, 30*time.Second)
}

// TestNilClientPassesThrough covers the redis-not-configured path.
func (s *CachedKYCSuite) TestNilClientPassesThrough() {
	ctx := context.Background()
	userID := id.NewUserID()

	source := gates.NewStaticKYC()
	source.Set(userID, gates.KYCApproved)
	gate := gates.NewCachedKYC(source, nil)

	status, err := gate.Status(ctx, userID)
	s.Require().NoError(err)
	s.Equal(gates.KYCApproved, status)
}
