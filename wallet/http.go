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

package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/internal/httpjson"
)

const (
	BroadcastPath           = "/broadcast"
	DefaultTimeout          = 60 * time.Second
	DefaultPropagationDelay = 2 * time.Second
)

var tracer = otel.Tracer("github.com/blinklabs-io/trustspell/wallet")

type broadcastRequest struct {
	TxHex string `json:"tx_hex"`
	Sign  bool   `json:"sign"`
}

type broadcastReply struct {
	TxID  string `json:"txid"`
	Error string `json:"error"`
}

// HTTPSigner submits transactions to a wallet daemon which signs and
// broadcasts them
type HTTPSigner struct {
	endpoint         string
	timeout          time.Duration
	propagationDelay time.Duration
	httpClient       *http.Client
	client           *httpjson.Client
	logger           *slog.Logger
}

type HTTPOption func(*HTTPSigner)

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(s *HTTPSigner) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPSigner) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithPropagationDelay sets how long to wait after the commit broadcast
// before sending the spell. Zero disables the wait.
func WithPropagationDelay(delay time.Duration) HTTPOption {
	return func(s *HTTPSigner) {
		if delay >= 0 {
			s.propagationDelay = delay
		}
	}
}

func WithLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPSigner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewHTTPSigner(baseURL string, opts ...HTTPOption) *HTTPSigner {
	s := &HTTPSigner{
		endpoint:         strings.TrimRight(baseURL, "/") + BroadcastPath,
		timeout:          DefaultTimeout,
		propagationDelay: DefaultPropagationDelay,
		logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "wallet", "signer", s.Name())
	s.client = httpjson.NewClient(s.httpClient)
	return s
}

func (s *HTTPSigner) Name() string {
	return "http"
}

func (s *HTTPSigner) SignAndBroadcast(
	ctx context.Context,
	commitTxHex string,
	spellTxHex string,
) (Result, error) {
	ctx, span := tracer.Start(ctx, "wallet.http.SignAndBroadcast")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ret Result
	commitTxID, err := s.broadcast(ctx, "broadcast commit", commitTxHex)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit broadcast failed")
		return ret, err
	}
	ret.CommitTxID = commitTxID
	span.SetAttributes(attribute.String("commit_txid", commitTxID))
	s.logger.Info("commit transaction broadcast", "txid", commitTxID)

	if s.propagationDelay > 0 {
		timer := time.NewTimer(s.propagationDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			err := errs.FromContext("broadcast spell", ctx.Err())
			span.RecordError(err)
			return ret, err
		case <-timer.C:
		}
	}

	spellTxID, err := s.broadcast(ctx, "broadcast spell", spellTxHex)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spell broadcast failed")
		s.logger.Warn(
			"spell broadcast failed after commit",
			"commit_txid", commitTxID,
			"error", err,
		)
		return ret, err
	}
	ret.SpellTxID = spellTxID
	span.SetAttributes(attribute.String("spell_txid", spellTxID))
	s.logger.Info("spell transaction broadcast", "txid", spellTxID)
	return ret, nil
}

func (s *HTTPSigner) broadcast(ctx context.Context, op string, txHex string) (string, error) {
	if strings.TrimSpace(txHex) == "" {
		return "", errs.Validationf(op, "empty transaction hex")
	}
	resp, err := s.client.PostJSON(
		ctx,
		op,
		s.endpoint,
		broadcastRequest{TxHex: txHex, Sign: true},
	)
	if err != nil {
		return "", err
	}
	if httpjson.UpstreamUnavailable(resp.StatusCode) {
		return "", errs.NewNetwork(
			op,
			fmt.Errorf("wallet unavailable: status %d", resp.StatusCode),
		)
	}
	var reply broadcastReply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		return "", errs.NewProtocol(op, fmt.Errorf("decoding reply: %w", err))
	}
	if reply.Error != "" {
		return "", errs.NewProtocol(
			op,
			fmt.Errorf("%w: %s", ErrWalletRejected, reply.Error),
		)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.Protocolf(
			op,
			"%w: status %d",
			ErrWalletRejected,
			resp.StatusCode,
		)
	}
	if reply.TxID == "" {
		return "", errs.NewProtocol(op, ErrMissingTxID)
	}
	return reply.TxID, nil
}
