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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/trustspell"
	"github.com/blinklabs-io/trustspell/api"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/internal/httpjson"
	"github.com/blinklabs-io/trustspell/spell"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

const (
	testnetAddr = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"
	fundingTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
)

func newTestServer(t *testing.T, opts ...trustspell.ConfigOptionFunc) (*httptest.Server, *trustspell.Session) {
	t.Helper()
	opts = append(
		[]trustspell.ConfigOptionFunc{
			trustspell.WithClock(func() time.Time {
				return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			}),
			trustspell.WithTotalRounds(3),
		},
		opts...,
	)
	sess, err := trustspell.New(trustspell.NewConfig(opts...))
	require.NoError(t, err)
	require.NoError(t, sess.Init(context.Background()))
	t.Cleanup(func() {
		_ = sess.Teardown(context.Background())
	})
	srv, err := api.NewServer(api.ServerConfig{Session: sess})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sess
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(
		context.Background(),
		method,
		ts.URL+path,
		reader,
	)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func fundingUTXO() txbuilder.UTXO {
	return txbuilder.UTXO{TxID: fundingTxID, Vout: 1, AmountSats: 50_000}
}

func TestNewServerRequiresSession(t *testing.T) {
	_, err := api.NewServer(api.ServerConfig{})
	require.Error(t, err)
}

func TestReputationEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	var rep api.ReputationResponse
	resp := do(t, ts, http.MethodGet, "/reputation", nil, &rep)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(50), rep.Score)
	assert.Equal(t, "Neutral", rep.Tier)
	assert.NotEmpty(t, resp.Header.Get(httpjson.RequestIDHeader))

	coop := false
	resp = do(t, ts, http.MethodPost, "/reputation/move", api.RecordMoveRequest{Cooperative: &coop}, &rep)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(0), rep.Score)
	assert.Equal(t, uint64(50), rep.OldScore)
	assert.Equal(t, int64(-50), rep.ScoreChange)
	assert.Equal(t, "Misaligned", rep.Tier)

	var apiErr api.Error
	resp = do(t, ts, http.MethodPost, "/reputation/move", map[string]any{}, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, api.ErrInvalidRequest.Code, apiErr.Code)

	resp = do(t, ts, http.MethodPost, "/reputation/move", map[string]any{"cooperative": "yes"}, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/reputation/address", api.LinkAddressRequest{Address: testnetAddr}, &rep)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testnetAddr, rep.Address)

	resp = do(
		t, ts, http.MethodPost, "/reputation/address",
		api.LinkAddressRequest{Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"},
		&apiErr,
	)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestIDEcho(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/reputation", nil)
	require.NoError(t, err)
	req.Header.Set(httpjson.RequestIDHeader, "req-1")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-1", resp.Header.Get(httpjson.RequestIDHeader))
}

func TestGovernanceEndpoints(t *testing.T) {
	ts, sess := newTestServer(t)
	for range 3 {
		_, err := sess.Ledger().RecordMove(true)
		require.NoError(t, err)
	}
	target := "t"
	value := int64(6)

	var p governance.Proposal
	resp := do(t, ts, http.MethodPost, "/governance/proposals", governance.ProposalRequest{
		Title:    "raise temptation",
		Target:   &target,
		NewValue: &value,
	}, &p)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, uint64(1), p.ID)

	var apiErr api.Error
	resp = do(t, ts, http.MethodPost, "/governance/proposals", governance.ProposalRequest{}, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	vote := api.CastVoteRequest{ProposalID: p.ID, PlayerID: "alice", Choice: governance.ChoiceYes}
	var voted api.CastVoteResponse
	resp = do(t, ts, http.MethodPost, "/governance/votes", vote, &voted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(150), voted.VotingPower)

	resp = do(t, ts, http.MethodPost, "/governance/votes", vote, &apiErr)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, api.ErrConflict.Code, apiErr.Code)

	var closed api.CloseRoundResponse
	resp = do(t, ts, http.MethodPost, "/governance/close-round", nil, &closed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, closed.Winner)
	assert.Equal(t, p.ID, closed.Winner.ID)
	assert.Equal(t, int64(6), closed.Matrix.T)
	resp = do(t, ts, http.MethodPost, "/governance/close-round", nil, &apiErr)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var next api.NextRoundResponse
	resp = do(t, ts, http.MethodPost, "/governance/next-round", nil, &next)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(2), next.Round)

	var gov api.GovernanceResponse
	resp = do(t, ts, http.MethodGet, "/governance", nil, &gov)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(2), gov.Round)
	assert.Empty(t, gov.Proposals)
	assert.Len(t, gov.Executed, 1)
	assert.Equal(t, int64(6), gov.Matrix.T)
}

func TestPlayRoundEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	defect := game.Defect
	cooperate := game.Cooperate

	var res trustspell.RoundResult
	resp := do(t, ts, http.MethodPost, "/game/round", api.PlayRoundRequest{Move: &defect}, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// Tit-for-tat opens with cooperation
	assert.Equal(t, game.Cooperate, res.Outcome.Move2)
	assert.Equal(t, int64(3), res.Outcome.Payoff1)

	resp = do(t, ts, http.MethodPost, "/game/round", api.PlayRoundRequest{Move: &cooperate}, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, game.Defect, res.Outcome.Move2)

	resp = do(t, ts, http.MethodPost, "/game/round", api.PlayRoundRequest{Move: &cooperate, OpponentMove: &cooperate}, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, res.Finished)

	var apiErr api.Error
	resp = do(t, ts, http.MethodPost, "/game/round", api.PlayRoundRequest{Move: &cooperate}, &apiErr)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/game/round", api.PlayRoundRequest{}, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var state game.State
	resp = do(t, ts, http.MethodGet, "/game", nil, &state)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint32(3), state.Round)

	var rep api.ReputationResponse
	resp = do(t, ts, http.MethodPost, "/session/reset", nil, &rep)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(0), rep.TotalMoves)
	resp = do(t, ts, http.MethodGet, "/game", nil, &state)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint32(0), state.Round)
}

func TestBuildAnchorEndpoint(t *testing.T) {
	ts, sess := newTestServer(t)
	var built api.BuildAnchorResponse
	resp := do(t, ts, http.MethodPost, "/anchor/build", api.BuildAnchorRequest{
		SpellRequest:  api.SpellRequest{Kind: spell.TypeMove, RoundIndex: 2, Cooperative: true},
		FundingUTXO:   fundingUTXO(),
		ChangeAddress: testnetAddr,
	}, &built)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	parsed, err := sess.Builder().ParsePair(built.CommitTxHex, built.SpellTxHex)
	require.NoError(t, err)
	assert.Equal(t, built.Spell, parsed.Decoded)
	assert.Equal(t, built.CommitTxID, parsed.CommitTxID)
	assert.Equal(t, uint64(2), parsed.Decoded.Move.RoundIndex)

	var apiErr api.Error
	for name, req := range map[string]api.BuildAnchorRequest{
		"no spell": {FundingUTXO: fundingUTXO(), ChangeAddress: testnetAddr},
		"bad kind": {
			SpellRequest:  api.SpellRequest{Kind: "dance"},
			FundingUTXO:   fundingUTXO(),
			ChangeAddress: testnetAddr,
		},
		"no address": {
			SpellRequest: api.SpellRequest{Kind: spell.TypeMove},
			FundingUTXO:  fundingUTXO(),
		},
		"reputation without address": {
			SpellRequest:  api.SpellRequest{Kind: spell.TypeReputationAnchor},
			FundingUTXO:   fundingUTXO(),
			ChangeAddress: testnetAddr,
		},
	} {
		t.Run(name, func(t *testing.T) {
			resp := do(t, ts, http.MethodPost, "/anchor/build", req, &apiErr)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAnchorEndpointStub(t *testing.T) {
	ts, _ := newTestServer(t)
	req := api.AnchorRequest{
		BuildAnchorRequest: api.BuildAnchorRequest{
			SpellRequest:  api.SpellRequest{Kind: spell.TypeGovernanceVote, ProposalID: 4, Choice: governance.ChoiceNo},
			FundingUTXO:   fundingUTXO(),
			ChangeAddress: testnetAddr,
		},
		Broadcast: true,
	}
	var res api.AnchorResponse
	resp := do(t, ts, http.MethodPost, "/anchor", req, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fallback", string(res.Outcome))
	assert.True(t, res.Broadcast)
	assert.Nil(t, res.Error)
	assert.Equal(t, uint64(4), res.Spell.Vote.ProposalID)

	var list api.AnchorsResponse
	resp = do(t, ts, http.MethodGet, "/anchors", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Anchors, 1)
	assert.Equal(t, res.AttemptID, list.Anchors[0].AttemptID)
	assert.Equal(t, string(spell.TypeGovernanceVote), list.Anchors[0].SpellType)

	var apiErr api.Error
	resp = do(t, ts, http.MethodGet, "/anchors?limit=zero", nil, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var rec map[string]any
	resp = do(t, ts, http.MethodGet, "/anchors/"+res.CommitTxID, nil, &rec)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, res.SpellTxHex, rec["SpellTxHex"])

	resp = do(t, ts, http.MethodGet, fmt.Sprintf("/anchors/%064d", 0), nil, &apiErr)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, api.ErrNotFound.Code, apiErr.Code)
}

func TestAnchorEndpointUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		outcome string
	}{
		{
			name:    "unavailable",
			status:  http.StatusServiceUnavailable,
			want:    http.StatusServiceUnavailable,
			outcome: "unreachable",
		},
		{
			name:    "garbage",
			status:  http.StatusOK,
			body:    `{"unexpected":true}`,
			want:    http.StatusBadGateway,
			outcome: "malformed",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/spells/prove" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer prover.Close()
			ts, _ := newTestServer(
				t,
				trustspell.WithProver(trustspell.ProverModeHTTP, prover.URL),
			)
			req := api.AnchorRequest{
				BuildAnchorRequest: api.BuildAnchorRequest{
					SpellRequest:  api.SpellRequest{Kind: spell.TypeMove},
					FundingUTXO:   fundingUTXO(),
					ChangeAddress: testnetAddr,
				},
			}
			var res api.AnchorResponse
			resp := do(t, ts, http.MethodPost, "/anchor", req, &res)
			assert.Equal(t, tc.want, resp.StatusCode)
			assert.Equal(t, tc.outcome, string(res.Outcome))
			require.NotNil(t, res.Error)
			assert.True(t, res.Error.Retriable)
			assert.NotEmpty(t, res.AttemptID)

			req.AllowFallback = true
			resp = do(t, ts, http.MethodPost, "/anchor", req, &res)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "fallback", string(res.Outcome))
			assert.Equal(t, tc.outcome, string(res.Reason))
			assert.NotEmpty(t, res.CommitTxHex)
		})
	}
}

func TestServerStartStop(t *testing.T) {
	_, sess := newTestServer(t)
	srv, err := api.NewServer(api.ServerConfig{
		Session:       sess,
		ListenAddress: "127.0.0.1:0",
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))
	require.Error(t, srv.Start(ctx))
	addr := srv.Addr()
	require.NotNil(t, addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr.String()+"/errors", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var catalogue []api.Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&catalogue))
	resp.Body.Close()
	assert.Len(t, catalogue, len(api.AllErrors()))

	require.NoError(t, srv.Stop(context.Background()))
	assert.Nil(t, srv.Addr())
	require.NoError(t, srv.Stop(context.Background()))
}
