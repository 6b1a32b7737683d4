package http

import (
	"net/http"
	"time"
)

// ServerOptions son los timeouts del servidor. El WriteTimeout largo
// existe por el upload de PDF: el OCR puede tardar minutos.
type ServerOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer arma el http.Server con timeouts sanos.
func NewServer(addr string, handler http.Handler, opts ServerOptions) *http.Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 6 * time.Minute
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Minute
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
