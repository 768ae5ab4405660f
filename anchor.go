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

package trustspell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/trustspell/database"
	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/event"
	"github.com/blinklabs-io/trustspell/prover"
	"github.com/blinklabs-io/trustspell/spell"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

var ErrSpellMismatch = errors.New("prover returned a pair for a different spell")

type AnchorRequest struct {
	Spell         spell.Spell
	FundingUTXO   txbuilder.UTXO
	ChangeAddress string
	// Broadcast hands the pair to the wallet signer
	Broadcast bool
	// AllowFallback builds the pair locally, without a proof, when the
	// prover times out, is unreachable or replies with garbage
	AllowFallback bool
}

type AnchorResult struct {
	AttemptID string             `json:"attemptId"`
	Outcome   errs.AnchorOutcome `json:"outcome"`
	// Reason is why the prover could not be used when Outcome is fallback
	Reason      errs.AnchorOutcome `json:"reason,omitempty"`
	Gateway     string             `json:"gateway"`
	Proven      bool               `json:"proven"`
	CommitTxHex string             `json:"commitTxHex,omitempty"`
	SpellTxHex  string             `json:"spellTxHex,omitempty"`
	CommitTxID  string             `json:"commitTxid,omitempty"`
	SpellTxID   string             `json:"spellTxid,omitempty"`
	Fee         uint64             `json:"fee"`
	Broadcast   bool               `json:"broadcast"`
	Duration    time.Duration      `json:"duration"`
}

// BuildAnchor builds the unsigned transaction pair for a spell locally
func (s *Session) BuildAnchor(
	sp spell.Spell,
	changeAddress string,
	utxo txbuilder.UTXO,
) (*txbuilder.TransactionPair, error) {
	return s.builder.BuildPair(sp, changeAddress, utxo)
}

// Anchor sends a spell to the prover and optionally broadcasts the
// resulting pair. Failures never touch the ledger or governance state.
// The returned result always carries the attempt ID and outcome, even
// with an error.
func (s *Session) Anchor(ctx context.Context, req AnchorRequest) (AnchorResult, error) {
	start := time.Now()
	result := AnchorResult{
		AttemptID: uuid.NewString(),
		Gateway:   s.gateway.Name(),
	}
	ctx, span := tracer.Start(
		ctx,
		"trustspell.Anchor",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("attempt_id", result.AttemptID),
			attribute.String("spell_type", string(req.Spell.Type)),
			attribute.String("gateway", result.Gateway),
		),
	)
	defer span.End()

	err := s.anchor(ctx, req, &result)
	result.Duration = time.Since(start)
	if err != nil {
		result.Outcome = errs.Outcome(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result.Outcome))
	}
	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	s.recordAttempt(req, result, err)
	return result, err
}

func (s *Session) anchor(ctx context.Context, req AnchorRequest, result *AnchorResult) error {
	// Building locally first rejects bad spells, addresses and UTXOs
	// before anything leaves the process
	local, err := s.builder.BuildPair(req.Spell, req.ChangeAddress, req.FundingUTXO)
	if err != nil {
		return err
	}
	canonical, err := s.codec.Canonical(req.Spell)
	if err != nil {
		return err
	}
	proveReq := prover.Request{
		Spell:         canonical,
		FundingUTXO:   req.FundingUTXO,
		ChangeAddress: req.ChangeAddress,
	}
	if req.Spell.Type == spell.TypeReputationAnchor {
		proveReq.ProveInput = prover.NewProveInput(
			req.Spell.Reputation.PlayerAddress,
			s.ledger.Moves(),
			s.OpponentMoves(),
			s.rules.Matrix(),
		)
	}

	proveStart := time.Now()
	resp, err := s.gateway.Prove(ctx, proveReq)
	if s.metrics != nil {
		s.metrics.proverDuration.WithLabelValues(s.gateway.Name()).
			Observe(time.Since(proveStart).Seconds())
	}
	if err == nil {
		err = s.checkReply(resp, req.Spell, result)
	}
	if err != nil {
		reason := errs.Outcome(err)
		if !req.AllowFallback || !reason.Fallback() {
			return err
		}
		s.config.logger.Warn(
			"prover unavailable, using local transaction pair",
			"component", "session",
			"attempt_id", result.AttemptID,
			"reason", string(reason),
			"error", err,
		)
		result.Reason = reason
		resp = prover.Response{}
	}
	if !resp.Proven {
		result.Outcome = errs.OutcomeFallback
		result.Proven = false
		result.CommitTxHex = local.CommitHex
		result.SpellTxHex = local.SpellHex
		result.CommitTxID = local.CommitTxID
		result.SpellTxID = local.SpellTxID
		result.Fee = local.Fee
	} else {
		result.Outcome = errs.OutcomeOK
	}

	if !req.Broadcast {
		return nil
	}
	res, err := s.signer.SignAndBroadcast(ctx, result.CommitTxHex, result.SpellTxHex)
	if res.CommitTxID != "" {
		result.CommitTxID = res.CommitTxID
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.broadcasts.WithLabelValues("failed").Inc()
		}
		return fmt.Errorf("broadcast: %w", err)
	}
	if s.metrics != nil {
		s.metrics.broadcasts.WithLabelValues("ok").Inc()
	}
	result.SpellTxID = res.SpellTxID
	result.Broadcast = true
	return nil
}

// checkReply verifies that a proven pair fits together and commits to
// the requested spell
func (s *Session) checkReply(resp prover.Response, want spell.Spell, result *AnchorResult) error {
	if !resp.Proven {
		return nil
	}
	parsed, err := s.builder.ParsePair(resp.CommitTxHex, resp.SpellTxHex)
	if err != nil {
		return errs.NewProtocol("anchor", err)
	}
	if parsed.Decoded != want {
		return errs.NewProtocol("anchor", ErrSpellMismatch)
	}
	result.Proven = true
	result.CommitTxHex = resp.CommitTxHex
	result.SpellTxHex = resp.SpellTxHex
	result.CommitTxID = parsed.CommitTxID
	result.SpellTxID = parsed.SpellTxID
	result.Fee = parsed.Fee
	return nil
}

func (s *Session) recordAttempt(req AnchorRequest, result AnchorResult, err error) {
	if s.metrics != nil {
		s.metrics.attempts.WithLabelValues(string(result.Outcome)).Inc()
		s.metrics.duration.Observe(result.Duration.Seconds())
	}
	s.eventBus.Emit(
		event.AnchorAttemptEventType,
		event.AnchorAttemptEvent{
			AttemptID:  result.AttemptID,
			SpellType:  string(req.Spell.Type),
			Outcome:    string(result.Outcome),
			CommitTxID: result.CommitTxID,
			SpellTxID:  result.SpellTxID,
			Duration:   result.Duration,
		},
	)
	logArgs := []any{
		"component", "session",
		"attempt_id", result.AttemptID,
		"outcome", string(result.Outcome),
		"commit_txid", result.CommitTxID,
		"duration", result.Duration,
	}
	if err != nil {
		s.config.logger.Warn("anchoring failed", append(logArgs, "error", err)...)
	} else {
		s.config.logger.Info("anchoring finished", logArgs...)
	}
	db := s.Database()
	if db == nil {
		return
	}
	rec := database.AnchorRecord{
		AttemptID:   result.AttemptID,
		SessionID:   s.config.sessionID,
		SpellType:   string(req.Spell.Type),
		Outcome:     string(result.Outcome),
		Gateway:     result.Gateway,
		CommitTxID:  result.CommitTxID,
		SpellTxID:   result.SpellTxID,
		CommitTxHex: result.CommitTxHex,
		SpellTxHex:  result.SpellTxHex,
		Fee:         result.Fee,
		Proven:      result.Proven,
		Broadcast:   result.Broadcast,
		Timestamp:   s.config.now().UnixMilli(),
		DurationMs:  result.Duration.Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if dbErr := db.RecordAnchor(rec); dbErr != nil {
		s.config.logger.Error(
			"failed to record anchor attempt",
			"component", "session",
			"attempt_id", result.AttemptID,
			"error", dbErr,
		)
	}
}
