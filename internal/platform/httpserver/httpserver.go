package httpserver

import (
	"net/http"
	"time"
)

// New builds the coordination API server with bounded timeouts. Write is
// kept generous so distribution-day batch listings finish on slow links.
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
