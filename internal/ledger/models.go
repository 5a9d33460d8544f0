package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
)

// TransactionType names the money movement a ledger row records.
type TransactionType string

const (
	TypeInvestment TransactionType = "INVESTMENT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeRefund     TransactionType = "REFUND"
	TypeRelease    TransactionType = "RELEASE"
)

// Transaction is one immutable ledger row. Rows are only ever appended;
// corrections happen through compensating entries, never updates.
type Transaction struct {
	ID           id.TransactionID
	UserID       id.UserID
	InvestmentID id.InvestmentID
	Type         TransactionType
	Amount       id.Money
	Reference    string
	Description  string
	CreatedAt    time.Time
}

// Reference prefixes by transaction type. References are human-facing
// payment identifiers and must be globally unique.
var referencePrefixes = map[TransactionType]string{
	TypeInvestment: "INV",
	TypeWithdrawal: "WDR",
	TypeRefund:     "RFD",
	TypeRelease:    "REL",
}

// NewReference generates a reference such as INV-3f9a1c0d82be. Collisions
// are possible in principle; the store's unique constraint catches them and
// callers retry with a fresh draw.
func NewReference(t TransactionType) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	prefix, ok := referencePrefixes[t]
	if !ok {
		prefix = "TXN"
	}
	return prefix + "-" + hex.EncodeToString(buf)
}
