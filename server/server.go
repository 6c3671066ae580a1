// Package server wraps http.Server with the hub's lifecycle: start,
// then drain on shutdown.
package server

import (
	"context"
	"log"
	"net/http"
	"time"
)

type Server struct {
	httpServer *http.Server
}

// NewServer creates a server for the handler. Read and write timeouts are
// in seconds; zero disables a deadline, which the push streams require —
// a write deadline would sever every healthy long-lived connection.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout int) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// Shutdown drains in-flight requests. Open push streams end when their
// request contexts are cancelled, which runs each connection's teardown.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed, closing: %v", err)
		s.httpServer.Close()
	}
}
