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

package httpjson_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/internal/httpjson"
)

func TestPostJSON(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(httpjson.RequestIDHeader)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]int
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"n":2}`))
	}))
	defer srv.Close()

	resp, err := httpjson.NewClient(nil).PostJSON(
		context.Background(),
		"test",
		srv.URL,
		map[string]int{"n": 1},
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"n":2}`, string(resp.Body))
	assert.Equal(t, gotID, resp.RequestID)
	assert.NotEmpty(t, resp.RequestID)
}

func TestPostJSONClassifiesFailures(t *testing.T) {
	client := httpjson.NewClient(nil)

	_, err := client.PostJSON(context.Background(), "test", "http://127.0.0.1:1", nil)
	require.Error(t, err)
	assert.True(t, errs.IsNetwork(err))

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.PostJSON(ctx, "test", slow.URL, nil)
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))

	_, err = client.PostJSON(context.Background(), "test", srv(t), func() {})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestUpstreamUnavailable(t *testing.T) {
	assert.True(t, httpjson.UpstreamUnavailable(http.StatusBadGateway))
	assert.True(t, httpjson.UpstreamUnavailable(http.StatusServiceUnavailable))
	assert.True(t, httpjson.UpstreamUnavailable(http.StatusGatewayTimeout))
	assert.False(t, httpjson.UpstreamUnavailable(http.StatusInternalServerError))
	assert.False(t, httpjson.UpstreamUnavailable(http.StatusOK))
}

func srv(t *testing.T) string {
	t.Helper()
	s := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(s.Close)
	return s.URL
}
