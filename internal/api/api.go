// Package api provides the HTTP server for ToysBot webhook endpoints.
//
// It exposes the Meta ad-attribution webhook that ties inbound WhatsApp users
// to the advertisement they tapped, plus a health endpoint and the optional
// Twilio inbound-message webhook.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/toysnicaragua/toysbot/internal/session"
)

// Constants for API server configuration
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds how long the server waits for a request body.
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds how long the server takes to write a response.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	TwilioWebhook http.HandlerFunc
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithTwilioWebhook mounts an inbound Twilio webhook handler at /webhook/twilio.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) {
		o.TwilioWebhook = h
	}
}

// Server hosts the webhook endpoints backed by the session store.
type Server struct {
	store  session.Store
	addr   string
	server *http.Server
}

// NewServer creates an API server, applying any provided options.
func NewServer(store session.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("API NewServer options set", "addr", cfg.Addr, "twilio_webhook_set", cfg.TwilioWebhook != nil)

	s := &Server{store: store, addr: cfg.Addr}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/meta", s.metaWebhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	if cfg.TwilioWebhook != nil {
		mux.HandleFunc("/webhook/twilio", cfg.TwilioWebhook)
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	slog.Info("API server shutting down")
	return s.server.Shutdown(ctx)
}
