// Package httpserver builds the registry's HTTP server with timeouts suited
// to its small-JSON request/response surface.
package httpserver

import (
	"net/http"
	"time"
)

// New wraps the router in an http.Server. Header and write timeouts bound
// slow clients; registry payloads are small, so the limits are tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
