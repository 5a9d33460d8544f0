package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// Entity identifiers are uuid-backed domain primitives. Construct them via the
// Parse helpers at trust boundaries; direct casting bypasses validation.
type (
	UserID        string
	BusinessID    string
	OpportunityID string
	InvestmentID  string
	EscrowID      string
	DisputeID     string
	TransactionID string
)

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.NewString()) }

// NewBusinessID returns a fresh random business ID.
func NewBusinessID() BusinessID { return BusinessID(uuid.NewString()) }

// NewOpportunityID returns a fresh random opportunity ID.
func NewOpportunityID() OpportunityID { return OpportunityID(uuid.NewString()) }

// NewInvestmentID returns a fresh random investment ID.
func NewInvestmentID() InvestmentID { return InvestmentID(uuid.NewString()) }

// NewEscrowID returns a fresh random escrow ID.
func NewEscrowID() EscrowID { return EscrowID(uuid.NewString()) }

// NewDisputeID returns a fresh random dispute ID.
func NewDisputeID() DisputeID { return DisputeID(uuid.NewString()) }

// NewTransactionID returns a fresh random ledger transaction ID.
func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }

func parseUUID(kind, s string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	return u.String(), nil
}

// ParseUserID validates external input into a UserID.
func ParseUserID(s string) (UserID, error) {
	v, err := parseUUID("user", s)
	return UserID(v), err
}

// ParseOpportunityID validates external input into an OpportunityID.
func ParseOpportunityID(s string) (OpportunityID, error) {
	v, err := parseUUID("opportunity", s)
	return OpportunityID(v), err
}

// ParseInvestmentID validates external input into an InvestmentID.
func ParseInvestmentID(s string) (InvestmentID, error) {
	v, err := parseUUID("investment", s)
	return InvestmentID(v), err
}

// ParseEscrowID validates external input into an EscrowID.
func ParseEscrowID(s string) (EscrowID, error) {
	v, err := parseUUID("escrow", s)
	return EscrowID(v), err
}

// ParseDisputeID validates external input into a DisputeID.
func ParseDisputeID(s string) (DisputeID, error) {
	v, err := parseUUID("dispute", s)
	return DisputeID(v), err
}

func (id UserID) String() string        { return string(id) }
func (id BusinessID) String() string    { return string(id) }
func (id OpportunityID) String() string { return string(id) }
func (id InvestmentID) String() string  { return string(id) }
func (id EscrowID) String() string      { return string(id) }
func (id DisputeID) String() string     { return string(id) }
func (id TransactionID) String() string { return string(id) }

func (id UserID) IsNil() bool       { return id == "" }
func (id EscrowID) IsNil() bool     { return id == "" }
func (id InvestmentID) IsNil() bool { return id == "" }
