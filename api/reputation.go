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

package api

import (
	"net/http"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

func (s *Server) handleRecordMove(w http.ResponseWriter, r *http.Request) {
	var req RecordMoveRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Cooperative == nil {
		writeError(w, errs.Validationf("record move", "cooperative is required"))
		return
	}
	ledger := s.config.Session.Ledger()
	res, err := ledger.RecordMove(*req.Cooperative)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := ledger.Snapshot()
	writeJSON(w, http.StatusOK, ReputationResponse{
		Snapshot:    snap,
		Tier:        snap.Tier.String(),
		OldScore:    res.OldScore,
		ScoreChange: int64(res.NewScore) - int64(res.OldScore), // #nosec G115
	})
}

func (s *Server) handleLinkAddress(w http.ResponseWriter, r *http.Request) {
	var req LinkAddressRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	// Only addresses the session can anchor to are accepted
	if req.Address != "" {
		params := s.config.Session.Builder().Network()
		if _, err := txbuilder.DecodeAddress(req.Address, params); err != nil {
			writeError(w, err)
			return
		}
	}
	ledger := s.config.Session.Ledger()
	if err := ledger.LinkAddress(req.Address); err != nil {
		writeError(w, err)
		return
	}
	s.reputation(w)
}

func (s *Server) handleReputation(w http.ResponseWriter, _ *http.Request) {
	s.reputation(w)
}

func (s *Server) reputation(w http.ResponseWriter) {
	snap := s.config.Session.Ledger().Snapshot()
	writeJSON(w, http.StatusOK, ReputationResponse{
		Snapshot: snap,
		Tier:     snap.Tier.String(),
	})
}

func (s *Server) handlePlayRound(w http.ResponseWriter, r *http.Request) {
	var req PlayRoundRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Move == nil {
		writeError(w, errs.Validationf("play round", "move is required"))
		return
	}
	sess := s.config.Session
	var opponent game.Move
	if req.OpponentMove != nil {
		opponent = *req.OpponentMove
	} else {
		strategy := game.TitForTat
		if req.Strategy != nil {
			strategy = *req.Strategy
		}
		// The opponent plays the strategy against the player's history
		state := sess.GameState()
		state.History1, state.History2 = state.History2, state.History1
		move, err := strategy.Next(&state)
		if err != nil {
			writeError(w, errs.NewValidation("play round", err))
			return
		}
		opponent = move
	}
	res, err := sess.PlayRound(*req.Move, opponent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Session.GameState())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.config.Session.Reset(); err != nil {
		writeError(w, err)
		return
	}
	s.reputation(w)
}
