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

	"github.com/blinklabs-io/trustspell/governance"
)

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req governance.ProposalRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.config.Session.Engine().Submit(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	power, err := s.config.Session.Vote(req.ProposalID, req.PlayerID, req.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CastVoteResponse{
		ProposalID:  req.ProposalID,
		Choice:      req.Choice,
		VotingPower: power,
	})
}

func (s *Server) handleCloseRound(w http.ResponseWriter, _ *http.Request) {
	winner, err := s.config.Session.Engine().CloseRound()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CloseRoundResponse{
		Winner: winner,
		Matrix: s.config.Session.Rules().Matrix(),
	})
}

func (s *Server) handleNextRound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NextRoundResponse{
		Round: s.config.Session.Engine().NextRound(),
	})
}

func (s *Server) handleGovernance(w http.ResponseWriter, _ *http.Request) {
	engine := s.config.Session.Engine()
	writeJSON(w, http.StatusOK, GovernanceResponse{
		Round:     engine.Round(),
		Proposals: engine.Proposals(),
		Executed:  engine.ExecutedProposals(),
		Matrix:    s.config.Session.Rules().Matrix(),
	})
}
