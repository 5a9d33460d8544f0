// Package gateway abstracts the external payment network. The engine only
// ever asks it to confirm a reference; settlement mechanics stay opaque.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// Confirmation is the gateway's answer for one payment reference.
type Confirmation struct {
	Success   bool
	Amount    id.Money
	Reference string
}

// PaymentGateway confirms that a payment reference settled. Implementations
// must respect ctx cancellation; ConfirmPayment bounds the call with the
// configured gateway timeout.
type PaymentGateway interface {
	Confirm(ctx context.Context, reference string) (Confirmation, error)
}

// HTTPGateway talks to the real gateway over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type confirmResponse struct {
	Success   bool   `json:"success"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// Confirm verifies a reference with the gateway. Timeouts and transport
// failures surface as CodeDependency so callers know a retry is safe; the
// investment already committed and only the escrow confirmation is pending.
func (g *HTTPGateway) Confirm(ctx context.Context, reference string) (Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpoint := g.baseURL + "/v1/payments/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Confirmation{}, dErrors.Wrap(err, dErrors.CodeInternal, "build gateway request")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Confirmation{}, dErrors.Wrap(err, dErrors.CodeDependency, "payment gateway timed out")
		}
		return Confirmation{}, dErrors.Wrap(err, dErrors.CodeDependency, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Confirmation{}, dErrors.New(dErrors.CodeNotFound, "unknown payment reference")
	case resp.StatusCode >= 500:
		return Confirmation{}, dErrors.New(dErrors.CodeDependency,
			fmt.Sprintf("payment gateway returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Confirmation{}, dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("unexpected gateway status %d", resp.StatusCode))
	}

	var body confirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Confirmation{}, dErrors.Wrap(err, dErrors.CodeDependency, "malformed gateway response")
	}

	return Confirmation{
		Success:   body.Success,
		Amount:    id.Money(body.Amount),
		Reference: body.Reference,
	}, nil
}
