// Package gates defines the synchronous decision gates consumed before any
// fund movement. KYC approval and fraud scoring live in other subsystems; the
// engine only consumes their verdicts.
package gates

import (
	"context"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// KYCStatus is the identity-verification verdict for a user.
type KYCStatus string

const (
	KYCApproved     KYCStatus = "APPROVED"
	KYCPending      KYCStatus = "PENDING"
	KYCRejected     KYCStatus = "REJECTED"
	KYCNotSubmitted KYCStatus = "NOT_SUBMITTED"
)

// FraudDecision is the risk verdict for a specific fund movement.
type FraudDecision string

const (
	FraudAllow  FraudDecision = "ALLOW"
	FraudReview FraudDecision = "REVIEW"
	FraudBlock  FraudDecision = "BLOCK"
)

// KYCGate reports whether a user's identity verification permits investing.
type KYCGate interface {
	Status(ctx context.Context, userID id.UserID) (KYCStatus, error)
}

// FraudGate evaluates one proposed fund movement. REVIEW must never be
// treated as an allow; callers surface it for escalation.
type FraudGate interface {
	Evaluate(ctx context.Context, userID id.UserID, amount id.Money, ipAddress string) (FraudDecision, error)
}
