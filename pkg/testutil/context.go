package testutil

import (
	"net/http"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the userID is not a valid UUID, it will not be added to the context.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithIdentity adds both user ID and role to the request context.
// This is the typical state for an authenticated request.
// Invalid values are silently ignored.
func WithIdentity(req *http.Request, userID string, role string) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsed)
	}
	if parsed, err := id.ParseRole(role); err == nil {
		ctx = requestcontext.WithRole(ctx, parsed)
	}
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
