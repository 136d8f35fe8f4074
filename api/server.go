package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/arakiyama/animeduel/transport/websocket"
)

// Server is the HTTP front of the game server.
type Server struct {
	hub           *websocket.Hub
	router        *mux.Router
	allowedOrigin string
}

// NewServer creates the HTTP server. allowedOrigin is the frontend
// origin for CORS; empty disables the CORS headers.
func NewServer(hub *websocket.Hub, allowedOrigin string) *Server {
	s := &Server{
		hub:           hub,
		router:        mux.NewRouter(),
		allowedOrigin: allowedOrigin,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/game", s.handleCreateGame).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.Use(s.corsMiddleware)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleCreateGame mints a fresh game id. Nothing is stored; the game
// comes into existence when its first player joins.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	log.Info().Str("game_id", id).Msg("game id minted")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(id))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// corsMiddleware allows the configured frontend origin and answers
// preflights.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
