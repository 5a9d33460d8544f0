package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Allan-Afari/investghanahub-sub000/pkg/requestcontext"
)

// HeaderName is the request/response header carrying the correlation ID.
const HeaderName = "X-Request-ID"

// Middleware assigns every request a correlation ID, honoring one supplied by
// the caller, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderName)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderName, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
