package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. The write timeout leaves room for a payment
// confirmation that has to wait on the gateway; everything else is kept
// short so a stalled client cannot pin a connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
