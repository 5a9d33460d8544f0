package escrow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// Status is the escrow state machine position. Transitions move strictly
// forward; RELEASED and REFUNDED are terminal.
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusFunded          Status = "FUNDED"
	StatusDisputed        Status = "DISPUTED"
	StatusReleased        Status = "RELEASED"
	StatusRefunded        Status = "REFUNDED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusRefunded
}

// transitions is the full set of legal moves. Anything absent is a conflict.
var transitions = map[Status][]Status{
	StatusCreated:         {StatusAwaitingPayment},
	StatusAwaitingPayment: {StatusFunded},
	StatusFunded:          {StatusReleased, StatusRefunded, StatusDisputed},
	StatusDisputed:        {StatusReleased, StatusRefunded, StatusFunded},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Escrow holds one investment's funds between payment and settlement.
// Amount mirrors the investment amount and never changes. Conditions and
// ReleaseOn describe the agreed release terms; they are recorded for the
// settlement record, not enforced by the state machine.
type Escrow struct {
	ID               id.EscrowID
	InvestmentID     id.InvestmentID
	PayerID          id.UserID
	PayeeID          id.UserID
	Amount           id.Money
	Status           Status
	Conditions       []string
	ReleaseOn        *time.Time
	PaymentReference string
	FailedAttempts   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	FundedAt         *time.Time
	ClosedAt         *time.Time
}

// NewPaymentReference generates the reference the payment gateway is asked
// to confirm, such as PAY-9c4b1e7d02af.
func NewPaymentReference() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return "PAY-" + hex.EncodeToString(buf)
}

// transitionConflict builds the error reported when a CAS transition loses.
func transitionConflict(current, expected Status) error {
	return dErrors.Newf(dErrors.CodeConflict, "escrow is %s, expected %s", current, expected)
}
