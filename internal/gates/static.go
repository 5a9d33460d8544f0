package gates

import (
	"context"
	"sync"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// StaticKYC is an in-memory KYC gate for tests and local development.
// Unknown users report NOT_SUBMITTED.
type StaticKYC struct {
	mu       sync.RWMutex
	statuses map[id.UserID]KYCStatus
}

func NewStaticKYC() *StaticKYC {
	return &StaticKYC{statuses: make(map[id.UserID]KYCStatus)}
}

// Set records a user's KYC verdict.
func (g *StaticKYC) Set(userID id.UserID, status KYCStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[userID] = status
}

func (g *StaticKYC) Status(_ context.Context, userID id.UserID) (KYCStatus, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if status, ok := g.statuses[userID]; ok {
		return status, nil
	}
	return KYCNotSubmitted, nil
}

// StaticFraud is an in-memory fraud gate. Default verdict is ALLOW; specific
// users can be pinned to REVIEW or BLOCK.
type StaticFraud struct {
	mu        sync.RWMutex
	decisions map[id.UserID]FraudDecision
}

func NewStaticFraud() *StaticFraud {
	return &StaticFraud{decisions: make(map[id.UserID]FraudDecision)}
}

// Set pins a user's fraud verdict.
func (g *StaticFraud) Set(userID id.UserID, decision FraudDecision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decisions[userID] = decision
}

func (g *StaticFraud) Evaluate(_ context.Context, userID id.UserID, _ id.Money, _ string) (FraudDecision, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if decision, ok := g.decisions[userID]; ok {
		return decision, nil
	}
	return FraudAllow, nil
}
