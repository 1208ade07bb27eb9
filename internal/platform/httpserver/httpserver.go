package httpserver

import (
	"net/http"
	"time"
)

// New builds the intake HTTP server. Bodies get a generous read window so
// multipart document uploads from slow clients are not cut off.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}
}
