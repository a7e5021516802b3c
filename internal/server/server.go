// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/focal-labs/snapledger/internal/engine"
	"github.com/focal-labs/snapledger/internal/quota"
)

// Pipeline is the slice of the orchestrator the HTTP layer needs.
type Pipeline interface {
	ProcessReceipt(ctx context.Context, userID string, image []byte, mimeType string) (*engine.Receipt, error)
	ProcessAudio(ctx context.Context, userID string, audio []byte, mimeType, localDate, currencyHint string) (*engine.AudioResult, error)
	Quota(ctx context.Context, userID string) (*quota.Status, error)
}

// Authenticator resolves a request to a user identity.
type Authenticator interface {
	// Authenticate returns the user ID for the request, or false when the
	// credentials are missing or invalid.
	Authenticate(r *http.Request) (string, bool)
}

// TokenAuthenticator maps static bearer tokens to user IDs.
type TokenAuthenticator struct {
	tokens map[string]string
}

// NewTokenAuthenticator creates an authenticator from a token-to-user map.
func NewTokenAuthenticator(tokens map[string]string) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens}
}

// Authenticate checks the Authorization bearer token.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	presented := strings.TrimPrefix(header, "Bearer ")

	for token, userID := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(presented)) == 1 {
			return userID, true
		}
	}
	return "", false
}

// Server handles HTTP requests for expense extraction.
type Server struct {
	pipeline Pipeline
	auth     Authenticator
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates a new Server.
func NewServer(pipeline Pipeline, auth Authenticator, logger *slog.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		auth:     auth,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/receipts/process", s.requireAuth(s.handleProcessReceipt))
	s.mux.HandleFunc("POST /api/receipts/audio", s.requireAuth(s.handleProcessAudio))
	s.mux.HandleFunc("GET /api/quota", s.requireAuth(s.handleQuota))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

type contextKey string

const userIDKey contextKey = "userID"

// requireAuth rejects unauthenticated requests and logs each request
// with a generated ID.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		userID, ok := s.auth.Authenticate(r)
		if !ok {
			s.logger.Warn("unauthorized request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))

		s.logger.Info("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"user", userID,
			"duration", time.Since(start))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
