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

package prover

import (
	"context"
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
	DefaultTimeout = 5 * time.Minute
	ProvePath      = "/spells/prove"
)

var tracer = otel.Tracer("github.com/blinklabs-io/trustspell/prover")

// HTTPGateway posts prove requests to a prover daemon
type HTTPGateway struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	client     *httpjson.Client
	logger     *slog.Logger
}

type HTTPOption func(*HTTPGateway)

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(g *HTTPGateway) {
		if hc != nil {
			g.httpClient = hc
		}
	}
}

// WithTimeout bounds each prove call, in addition to any deadline already
// on the caller's context
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(g *HTTPGateway) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) HTTPOption {
	return func(g *HTTPGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewHTTPGateway creates a gateway for the prover at baseURL
func NewHTTPGateway(baseURL string, opts ...HTTPOption) *HTTPGateway {
	g := &HTTPGateway{
		endpoint: strings.TrimRight(baseURL, "/") + ProvePath,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "prover", "gateway", g.Name())
	g.client = httpjson.NewClient(g.httpClient)
	return g
}

func (g *HTTPGateway) Name() string {
	return "http"
}

func (g *HTTPGateway) Prove(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "prover.http.Prove")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.PostJSON(ctx, "prove", g.endpoint, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		g.logger.Warn("prover call failed", "error", err)
		return Response{}, err
	}
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("request_id", resp.RequestID),
	)
	g.logger.Debug(
		"prover replied",
		"status", resp.StatusCode,
		"request_id", resp.RequestID,
		"duration", time.Since(start),
	)
	if httpjson.UpstreamUnavailable(resp.StatusCode) {
		err := errs.NewNetwork(
			"prove",
			fmt.Errorf("prover unavailable: status %d", resp.StatusCode),
		)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}
	ret, err := ParseReply("prove", resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed reply")
		return Response{}, err
	}
	return ret, nil
}
