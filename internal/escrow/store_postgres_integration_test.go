//go:build integration

package escrow_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Allan-Afari/investghanahub-sub000/internal/dispute"
	"github.com/Allan-Afari/investghanahub-sub000/internal/escrow"
	"github.com/Allan-Afari/investghanahub-sub000/internal/funding"
	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/testutil/containers"
)

type EscrowPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	funding  *funding.PostgresStore
	escrows  *escrow.PostgresStore
	disputes *dispute.PostgresStore
}

func TestEscrowPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(EscrowPostgresSuite))
}

func (s *EscrowPostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.funding = funding.NewPostgresStore(s.postgres.Pool)
	s.escrows = escrow.NewPostgresStore(s.postgres.Pool)
	s.disputes = dispute.NewPostgresStore(s.postgres.Pool)
}

func (s *EscrowPostgresSuite) TearDownSuite() {
	s.postgres.Pool.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *EscrowPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

// seedInvestment satisfies the foreign keys an escrow row hangs off.
func (s *EscrowPostgresSuite) seedInvestment() id.InvestmentID {
	ctx := context.Background()
	bizID := id.NewBusinessID()
	s.Require().NoError(s.funding.CreateBusiness(ctx, funding.Business{
		ID:           bizID,
		OwnerID:      id.NewUserID(),
		TargetAmount: 1_000_00,
		Status:       funding.BusinessApproved,
		CreatedAt:    time.Now(),
	}))
	oppID := id.NewOpportunityID()
	s.Require().NoError(s.funding.CreateOpportunity(ctx, funding.Opportunity{
		ID:            oppID,
		BusinessID:    bizID,
		TargetAmount:  1_000_00,
		MinInvestment: 1_00,
		MaxInvestment: 1_000_00,
		Status:        funding.OpportunityOpen,
		CreatedAt:     time.Now(),
	}))
	invID := id.NewInvestmentID()
	s.Require().NoError(s.funding.CreateInvestment(ctx, funding.Investment{
		ID:            invID,
		InvestorID:    id.NewUserID(),
		OpportunityID: oppID,
		Amount:        300_00,
		MaturityDate:  time.Now().AddDate(0, 6, 0),
		Status:        funding.InvestmentActive,
		CreatedAt:     time.Now(),
	}))
	return invID
}

func (s *EscrowPostgresSuite) newEscrow(invID id.InvestmentID) escrow.Escrow {
	now := time.Now()
	return escrow.Escrow{
		ID:           id.NewEscrowID(),
		InvestmentID: invID,
		PayerID:      id.NewUserID(),
		PayeeID:      id.NewUserID(),
		Amount:       300_00,
		Status:       escrow.StatusCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TestConcurrentCreateOneActivePerInvestment races escrow creation for the
// same investment; the partial unique index admits exactly one.
func (s *EscrowPostgresSuite) TestConcurrentCreateOneActivePerInvestment() {
	ctx := context.Background()
	invID := s.seedInvestment()

	const goroutines = 10
	var wg sync.WaitGroup
	var created atomic.Int32
	var conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.escrows.Create(ctx, s.newEscrow(invID))
			switch {
			case err == nil:
				created.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

// TestTerminalEscrowFreesInvestment verifies that refunding an escrow lets a
// fresh one be created for the same investment.
func (s *EscrowPostgresSuite) TestTerminalEscrowFreesInvestment() {
	ctx := context.Background()
	invID := s.seedInvestment()

	first := s.newEscrow(invID)
	s.Require().NoError(s.escrows.Create(ctx, first))
	_, err := s.escrows.Transition(ctx, first.ID, escrow.StatusCreated, escrow.StatusAwaitingPayment)
	s.Require().NoError(err)
	_, err = s.escrows.Transition(ctx, first.ID, escrow.StatusAwaitingPayment, escrow.StatusFunded)
	s.Require().NoError(err)
	_, err = s.escrows.Transition(ctx, first.ID, escrow.StatusFunded, escrow.StatusRefunded)
	s.Require().NoError(err)

	s.Require().NoError(s.escrows.Create(ctx, s.newEscrow(invID)))
}

// TestConcurrentTransition races a compare-and-swap; exactly one caller wins.
func (s *EscrowPostgresSuite) TestConcurrentTransition() {
	ctx := context.Background()
	e := s.newEscrow(s.seedInvestment())
	s.Require().NoError(s.escrows.Create(ctx, e))
	_, err := s.escrows.Transition(ctx, e.ID, escrow.StatusCreated, escrow.StatusAwaitingPayment)
	s.Require().NoError(err)
	_, err = s.escrows.Transition(ctx, e.ID, escrow.StatusAwaitingPayment, escrow.StatusFunded)
	s.Require().NoError(err)

	const goroutines = 8
	var wg sync.WaitGroup
	var released atomic.Int32
	var lost atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.escrows.Transition(ctx, e.ID, escrow.StatusFunded, escrow.StatusReleased)
			switch {
			case err == nil:
				released.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				lost.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), released.Load())
	s.Equal(int32(goroutines-1), lost.Load())

	got, err := s.escrows.Get(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(escrow.StatusReleased, got.Status)
	s.NotNil(got.ClosedAt)
}

// TestOneOpenDisputePerEscrow exercises the disputes partial unique index.
func (s *EscrowPostgresSuite) TestOneOpenDisputePerEscrow() {
	ctx := context.Background()
	e := s.newEscrow(s.seedInvestment())
	s.Require().NoError(s.escrows.Create(ctx, e))

	d := dispute.Dispute{
		ID:        id.NewDisputeID(),
		EscrowID:  e.ID,
		RaisedBy:  e.PayerID,
		Reason:    "funds released without delivery",
		Status:    dispute.StatusOpen,
		CreatedAt: time.Now(),
	}
	s.Require().NoError(s.disputes.Create(ctx, d))

	second := d
	second.ID = id.NewDisputeID()
	err := s.disputes.Create(ctx, second)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// Resolving the first reopens the slot.
	_, err = s.disputes.Resolve(ctx, d.ID, dispute.ResolutionRejected, id.NewUserID(), "no grounds", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.disputes.Create(ctx, second))
}
