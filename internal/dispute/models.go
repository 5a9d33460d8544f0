package dispute

import (
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// Status of a dispute. OPEN disputes freeze their escrow; RESOLVED is final.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusResolved Status = "RESOLVED"
)

// Resolution is the arbitrator's verdict.
type Resolution string

const (
	// ResolutionRefund returns the held funds to the investor.
	ResolutionRefund Resolution = "REFUND"
	// ResolutionRelease settles the held funds to the business owner.
	ResolutionRelease Resolution = "RELEASE"
	// ResolutionRejected dismisses the dispute; the escrow resumes as FUNDED.
	ResolutionRejected Resolution = "REJECTED"
)

// ParseResolution validates an arbitrator-supplied verdict.
func ParseResolution(raw string) (Resolution, error) {
	switch r := Resolution(raw); r {
	case ResolutionRefund, ResolutionRelease, ResolutionRejected:
		return r, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown resolution %q", raw)
	}
}

// Dispute is one party's challenge against a funded escrow. EscrowID is
// empty when the dispute was raised on a payment reference that matched no
// escrow; such disputes carry only the reference until an arbitrator rules.
type Dispute struct {
	ID             id.DisputeID
	EscrowID       id.EscrowID
	PaymentRef     string
	RaisedBy       id.UserID
	Reason         string
	Status         Status
	Resolution     Resolution
	ResolvedBy     id.UserID
	ResolutionNote string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}
