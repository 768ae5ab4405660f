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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/blinklabs-io/trustspell/errs"
)

// ExecGateway runs a prover command, writing the request to its stdin and
// reading the reply from its stdout
type ExecGateway struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

func NewExecGateway(
	logger *slog.Logger,
	timeout time.Duration,
	command string,
	args ...string,
) *ExecGateway {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecGateway{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger.With("component", "prover", "gateway", "exec"),
	}
}

func (g *ExecGateway) Name() string {
	return "exec"
}

func (g *ExecGateway) Prove(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "prover.exec.Prove")
	defer span.End()
	span.SetAttributes(attribute.String("command", g.command))
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	input, err := json.Marshal(req)
	if err != nil {
		return Response{}, errs.NewValidation("prove", err)
	}
	// #nosec G204 -- command comes from operator configuration
	cmd := exec.CommandContext(ctx, g.command, g.args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err = cmd.Run()
	g.logger.Debug(
		"prover command finished",
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		err = g.classify(ctx, err, stderr.Bytes())
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
		return Response{}, err
	}
	ret, err := ParseReply("prove", stdout.Bytes())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed reply")
		return Response{}, err
	}
	return ret, nil
}

func (g *ExecGateway) classify(ctx context.Context, err error, stderr []byte) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.FromContext("prove", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The prover ran and failed; its stderr may carry an error object
		if _, perr := ParseReply("prove", stderr); perr != nil &&
			errors.Is(perr, ErrProverRejected) {
			return perr
		}
		return errs.NewProtocol(
			"prove",
			fmt.Errorf("%w: %s: %s", ErrProverRejected, exitErr, tail(stderr)),
		)
	}
	// The command could not be started at all
	return errs.NewNetwork("prove", err)
}

func tail(b []byte) string {
	const maxLen = 512
	b = bytes.TrimSpace(b)
	if len(b) > maxLen {
		b = b[len(b)-maxLen:]
	}
	return string(b)
}
