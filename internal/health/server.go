package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

// Status is the live state reported by the /status endpoint.
type Status struct {
	SessionStarted bool `json:"session_started"`
	Consumers      int  `json:"consumers"`
}

// Server provides the HTTP health and status endpoints.
type Server struct {
	server *http.Server
}

// New creates a health server. status is called per request to report the
// current session state.
func New(addr string, status func() Status) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status())
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Printf("Health server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
