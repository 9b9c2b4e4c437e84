package httpserver

import (
	"net/http"
	"time"
)

// New builds the gateway's HTTP server. Aggregate assembly can block on the
// remote policy service, so the write timeout leaves headroom beyond the
// policy client's per-call timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
