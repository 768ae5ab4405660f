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

// Package trustspell ties the reputation ledger, governance engine and
// anchoring pipeline into a single player session.
package trustspell

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/trustspell/database"
	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/event"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/prover"
	"github.com/blinklabs-io/trustspell/reputation"
	"github.com/blinklabs-io/trustspell/spell"
	"github.com/blinklabs-io/trustspell/txbuilder"
	"github.com/blinklabs-io/trustspell/wallet"
)

var (
	ErrNotInitialized     = errors.New("session is not initialized")
	ErrAlreadyInitialized = errors.New("session is already initialized")
	ErrTornDown           = errors.New("session has been torn down")
)

// Session owns the state of a single player: their reputation ledger, the
// governance engine and the rules it edits, and the anchoring pipeline
type Session struct {
	config        Config
	eventBus      *event.EventBus
	rules         *game.Rules
	ledger        *reputation.Ledger
	engine        *governance.Engine
	codec         *spell.Codec
	builder       *txbuilder.Builder
	gateway       prover.Gateway
	signer        wallet.Signer
	metrics       *anchorMetrics
	db            *database.Database
	shutdownFuncs []func(context.Context) error
	gameMu        sync.Mutex
	game          *game.RoundValidator
	mu            sync.Mutex
	initialized   bool
	tornDown      bool
}

// New builds a session from the config. Nothing is opened until Init.
func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	params, _ := txbuilder.NetworkParams(cfg.network)
	cfg.logger = cfg.logger.With("session", cfg.sessionID)
	s := &Session{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		rules:    game.NewRules(cfg.payoffMatrix),
		codec:    spell.NewCodec(),
	}
	s.ledger = reputation.NewLedger(reputation.LedgerConfig{
		Logger:       cfg.logger,
		EventBus:     s.eventBus,
		PromRegistry: cfg.promRegistry,
		Now:          cfg.now,
	})
	s.engine = governance.NewEngine(governance.EngineConfig{
		Logger:       cfg.logger,
		EventBus:     s.eventBus,
		PromRegistry: cfg.promRegistry,
		Rules:        s.rules,
		PayoffFields: game.PayoffFields,
		Now:          cfg.now,
	})
	s.builder = txbuilder.NewBuilder(txbuilder.BuilderConfig{
		Logger:    cfg.logger,
		Network:   params,
		FeePolicy: cfg.feePolicy,
		Codec:     s.codec,
	})
	s.gateway = cfg.gateway
	if s.gateway == nil {
		s.gateway = s.newGateway()
	}
	s.signer = cfg.signer
	if s.signer == nil {
		if cfg.walletURL != "" {
			s.signer = wallet.NewHTTPSigner(
				cfg.walletURL,
				wallet.WithLogger(cfg.logger),
				wallet.WithTimeout(cfg.walletTimeout),
				wallet.WithPropagationDelay(cfg.propagationDelay),
			)
		} else {
			s.signer = wallet.NewStubSigner(cfg.logger)
		}
	}
	if cfg.promRegistry != nil {
		s.metrics = newAnchorMetrics(cfg.promRegistry)
	}
	s.resetGame()
	return s, nil
}

func (s *Session) newGateway() prover.Gateway {
	switch s.config.proverMode {
	case ProverModeHTTP:
		return prover.NewHTTPGateway(
			s.config.proverURL,
			prover.WithLogger(s.config.logger),
			prover.WithTimeout(s.config.anchorTimeout),
		)
	case ProverModeExec:
		return prover.NewExecGateway(
			s.config.logger,
			s.config.anchorTimeout,
			s.config.proverCommand[0],
			s.config.proverCommand[1:]...,
		)
	default:
		return prover.NewStubGateway(s.builder)
	}
}

// Init opens the database and restores any state saved for the session
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return errs.NewState("init", ErrTornDown)
	}
	if s.initialized {
		return errs.NewState("init", ErrAlreadyInitialized)
	}
	if s.config.tracing {
		if err := s.setupTracing(ctx); err != nil {
			return err
		}
	}
	db, err := database.New(database.Config{
		Logger:         s.config.logger,
		PromRegistry:   s.config.promRegistry,
		BlobPlugin:     s.config.blobPlugin,
		MetadataPlugin: s.config.metadataPlugin,
		DataDir:        s.config.dataDir,
	})
	if err != nil {
		var tsErr database.CommitTimestampError
		if db == nil || !errors.As(err, &tsErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		s.config.logger.Warn(
			"database stores out of sync",
			"component", "session",
			"error", err,
		)
		if err := db.Resync(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to resync database: %w", err)
		}
	}
	s.db = db
	if err := s.loadLocked(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.initialized = true
	s.config.logger.Info(
		"session initialized",
		"component", "session",
		"network", s.config.network,
		"prover", s.gateway.Name(),
		"signer", s.signer.Name(),
		"data_dir", s.config.dataDir,
	)
	return nil
}

// Reset starts the session over: the ledger, governance engine, rules and
// game are cleared and saved state is removed
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return errs.NewState("reset", ErrTornDown)
	}
	s.ledger.ResetSession()
	s.engine.Reset()
	if err := s.rules.Replace(s.config.payoffMatrix); err != nil {
		return err
	}
	s.resetGame()
	if s.db != nil {
		if err := s.db.DeleteSession(s.config.sessionID); err != nil {
			return fmt.Errorf("failed to delete saved session: %w", err)
		}
	}
	s.config.logger.Info("session reset", "component", "session")
	return nil
}

// Teardown saves state and releases everything the session holds. It is
// safe to call more than once.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tornDown {
		return nil
	}
	s.tornDown = true
	var err error
	if s.db != nil {
		if saveErr := s.saveLocked(); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("save: %w", saveErr))
		}
		if closeErr := s.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
		s.db = nil
	}
	s.eventBus.Stop()
	for _, fn := range s.shutdownFuncs {
		if shutdownErr := fn(ctx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}
	s.shutdownFuncs = nil
	s.initialized = false
	s.config.logger.Debug("session torn down", "component", "session")
	return err
}

// Save persists the ledger and governance state
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errs.NewState("save", ErrNotInitialized)
	}
	return s.saveLocked()
}

func (s *Session) saveLocked() error {
	if err := s.db.SaveReputation(s.config.sessionID, s.ledger.State()); err != nil {
		return err
	}
	return s.db.SaveGovernance(s.config.sessionID, s.engine.State())
}

// Load restores the saved ledger and governance state. Missing state is
// not an error.
func (s *Session) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errs.NewState("load", ErrNotInitialized)
	}
	return s.loadLocked()
}

func (s *Session) loadLocked() error {
	repState, err := s.db.LoadReputation(s.config.sessionID)
	haveRep := err == nil
	if err != nil && !database.IsNotFound(err) {
		return err
	}
	govState, err := s.db.LoadGovernance(s.config.sessionID)
	haveGov := err == nil
	if err != nil && !database.IsNotFound(err) {
		return err
	}
	// The matrix is checked before anything is restored so a bad snapshot
	// leaves the session untouched
	var matrix *game.PayoffMatrix
	if haveGov && len(govState.CurrentPayoffMatrix) > 0 {
		m := matrixFromFields(govState.CurrentPayoffMatrix)
		if err := m.Validate(); err != nil {
			return errs.NewValidation("load", err)
		}
		matrix = &m
	}
	prevRep := s.ledger.State()
	if haveRep {
		if err := s.ledger.Restore(repState); err != nil {
			return err
		}
	}
	if haveGov {
		if err := s.engine.Restore(govState); err != nil {
			if haveRep {
				_ = s.ledger.Restore(prevRep)
			}
			return err
		}
	}
	if matrix != nil {
		if err := s.rules.Replace(*matrix); err != nil {
			return errs.NewValidation("load", err)
		}
	}
	return nil
}

// matrixFromFields builds a matrix from saved field values. The result is
// validated by the caller.
func matrixFromFields(fields map[string]int64) game.PayoffMatrix {
	m := game.DefaultPayoffMatrix()
	for name, dest := range map[string]*int64{
		"r": &m.R,
		"s": &m.S,
		"t": &m.T,
		"p": &m.P,
	} {
		if v, ok := fields[name]; ok {
			*dest = v
		}
	}
	return m
}

func (s *Session) ID() string { return s.config.sessionID }

func (s *Session) AppID() string { return s.config.appID }

func (s *Session) Ledger() *reputation.Ledger { return s.ledger }

func (s *Session) Engine() *governance.Engine { return s.engine }

func (s *Session) Rules() *game.Rules { return s.rules }

func (s *Session) Codec() *spell.Codec { return s.codec }

func (s *Session) Builder() *txbuilder.Builder { return s.builder }

func (s *Session) Gateway() prover.Gateway { return s.gateway }

func (s *Session) Signer() wallet.Signer { return s.signer }

func (s *Session) EventBus() *event.EventBus { return s.eventBus }

// Database returns nil before Init and after Teardown
func (s *Session) Database() *database.Database {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

func (s *Session) timestamp() uint64 {
	return uint64(s.config.now().Unix()) //nolint:gosec // clock is after 1970
}
