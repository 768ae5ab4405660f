// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes a session over a small JSON HTTP API
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/blinklabs-io/trustspell"
	"github.com/blinklabs-io/trustspell/internal/httpjson"
)

const (
	defaultListenAddr = ":8080"
	maxRequestBody    = 1 << 20 // 1 MB
	shutdownTimeout   = 30 * time.Second
)

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Logger          *slog.Logger
	Session         *trustspell.Session
	ListenAddress   string
	TlsCertFilePath string
	TlsKeyFilePath  string
}

type Server struct {
	config     ServerConfig
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
	listenAddr net.Addr
	mu         sync.Mutex
}

// NewServer creates a new API server instance
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Session == nil {
		return nil, errors.New("api: Session is required")
	}
	if (cfg.TlsCertFilePath == "") != (cfg.TlsKeyFilePath == "") {
		return nil, errors.New(
			"api: TLS requires both a certificate and a key",
		)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddr
	}
	s := &Server{
		config: cfg,
		logger: cfg.Logger.With("component", "api"),
	}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = s.withRequestID(mux)
	return s, nil
}

// Handler returns the API handler without a listener
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the address the server is listening on, or nil when it is
// not running
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// Start starts the HTTP server in a background goroutine. The server
// shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	handler := s.handler
	if s.config.TlsCertFilePath == "" {
		// Use h2c so we can serve HTTP/2 without TLS
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	s.httpServer = server
	s.listenAddr = ln.Addr()
	// Launch the context monitor before unlocking so that Stop cannot
	// race with it
	go func() {
		<-ctx.Done()
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		//nolint:contextcheck
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	s.mu.Unlock()

	go func() {
		var err error
		if s.config.TlsCertFilePath != "" {
			err = server.ServeTLS(
				ln,
				s.config.TlsCertFilePath,
				s.config.TlsKeyFilePath,
			)
		} else {
			err = server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	s.logger.Info("API listener started on " + ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listenAddr = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Reputation
	mux.HandleFunc("POST /reputation/move", s.handleRecordMove)
	mux.HandleFunc("POST /reputation/address", s.handleLinkAddress)
	mux.HandleFunc("GET /reputation", s.handleReputation)

	// Governance
	mux.HandleFunc("POST /governance/proposals", s.handleCreateProposal)
	mux.HandleFunc("POST /governance/votes", s.handleCastVote)
	mux.HandleFunc("POST /governance/close-round", s.handleCloseRound)
	mux.HandleFunc("POST /governance/next-round", s.handleNextRound)
	mux.HandleFunc("GET /governance", s.handleGovernance)

	// Game
	mux.HandleFunc("POST /game/round", s.handlePlayRound)
	mux.HandleFunc("GET /game", s.handleGame)
	mux.HandleFunc("POST /session/reset", s.handleReset)

	// Anchoring
	mux.HandleFunc("POST /anchor/build", s.handleBuildAnchor)
	mux.HandleFunc("POST /anchor", s.handleAnchor)
	mux.HandleFunc("GET /anchors", s.handleAnchors)
	mux.HandleFunc("GET /anchors/{txid}", s.handleAnchorByTxID)

	mux.HandleFunc("GET /errors", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, AllErrors())
	})
}

// withRequestID echoes the caller's request ID, or assigns one
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(httpjson.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(httpjson.RequestIDHeader, requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(
			"handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error(
			"failed to encode JSON response",
			"error", err,
		)
	}
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := errorFor(err)
	writeJSON(w, statusFor(apiErr), apiErr)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer body.Close()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return wrapErr(ErrInvalidRequest, err)
	}
	return nil
}
