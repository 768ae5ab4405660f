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

// Package httpjson is the JSON-over-HTTP transport shared by the prover and
// wallet clients. Failures are classified into the errs taxonomy so callers
// can report why an external call failed.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/blinklabs-io/trustspell/errs"
)

// MaxResponseBytes limits response bodies to 10 MiB
const MaxResponseBytes = 10 << 20

const RequestIDHeader = "X-Request-Id"

type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 5 * time.Minute,
		}
	}
	return &Client{httpClient: httpClient}
}

// Response is a fully read response body with its status
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// PostJSON sends reqBody as JSON and reads the response. Transport
// failures become TimeoutError or NetworkError; the caller interprets
// the status code.
func (c *Client) PostJSON(
	ctx context.Context,
	op string,
	reqURL string,
	reqBody any,
) (*Response, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errs.NewValidation(op, err)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		reqURL,
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, errs.NewNetwork(op, fmt.Errorf("creating request: %w", err))
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	resp, err := c.httpClient.Do(req) //nolint:gosec // URL comes from operator configuration
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, classify(op, err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		RequestID:  requestID,
	}, nil
}

// UpstreamUnavailable returns true for statuses that mean the service
// behind the endpoint could not be reached
func UpstreamUnavailable(status int) bool {
	switch status {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.NewTimeout(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.NewTimeout(op, err)
	}
	return errs.NewNetwork(op, err)
}
