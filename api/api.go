// Package api exposes the draw and audit service over HTTP: submission
// endpoints, result and bit-export queries, progress streaming via SSE
// and websocket, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/veridraw/veridraw/config"
	"github.com/veridraw/veridraw/jobs"
	"github.com/veridraw/veridraw/log"
)

var listenAddress config.StringOption

func init() {
	err := config.Register(&config.Option{
		Name:            "API Listen Address",
		Key:             "api/listen_address",
		Description:     "Defines the IP address and port the HTTP API listens on.",
		OptType:         config.OptTypeString,
		DefaultValue:    "127.0.0.1:8417",
		ValidationRegex: `^([0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}:[0-9]{1,5}|\[[:0-9A-Fa-f]+\]:[0-9]{1,5})$`,
	})
	if err != nil {
		panic(err)
	}
	listenAddress = config.GetAsString("api/listen_address", "127.0.0.1:8417")
}

// Server serves the HTTP API for one orchestrator.
type Server struct {
	orchestrator *jobs.Orchestrator
	server       *http.Server
}

// NewServer creates a server bound to the configured listen address.
func NewServer(orchestrator *jobs.Orchestrator) *Server {
	s := &Server{orchestrator: orchestrator}
	s.server = &http.Server{
		Addr:        listenAddress(),
		Handler:     s.router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	log.Infof("api: starting to listen on %s", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
