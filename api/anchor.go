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
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/trustspell"
	"github.com/blinklabs-io/trustspell/database"
	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/spell"
)

const defaultAnchorsLimit = 50

var errNoDatabase = errors.New("session has no database")

// resolveSpell returns the requested spell, deriving it from the session
// when only a kind is given
func (s *Server) resolveSpell(req SpellRequest) (spell.Spell, error) {
	sess := s.config.Session
	if req.Spell != nil {
		if err := req.Spell.Validate(); err != nil {
			return spell.Spell{}, errs.NewValidation("resolve spell", err)
		}
		return *req.Spell, nil
	}
	switch req.Kind {
	case spell.TypeMove:
		return sess.MoveSpell(req.RoundIndex, req.Cooperative), nil
	case spell.TypeReputationAnchor:
		return sess.ReputationSpell(), nil
	case spell.TypeGovernanceVote:
		return sess.VoteSpell(req.ProposalID, req.Choice), nil
	case "":
		return spell.Spell{}, errs.Validationf(
			"resolve spell",
			"either spell or kind is required",
		)
	default:
		return spell.Spell{}, errs.NewValidation(
			"resolve spell",
			fmt.Errorf("%w: %q", spell.ErrUnknownType, string(req.Kind)),
		)
	}
}

func (s *Server) handleBuildAnchor(w http.ResponseWriter, r *http.Request) {
	var req BuildAnchorRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, err := s.resolveSpell(req.SpellRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	pair, err := s.config.Session.BuildAnchor(sp, req.ChangeAddress, req.FundingUTXO)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BuildAnchorResponse{
		Spell:       sp,
		CommitTxHex: pair.CommitHex,
		SpellTxHex:  pair.SpellHex,
		CommitTxID:  pair.CommitTxID,
		SpellTxID:   pair.SpellTxID,
		Fee:         pair.Fee,
	})
}

// handleAnchor reports failed attempts with the error status and the
// attempt details, so callers can decide whether to offer a fallback
func (s *Server) handleAnchor(w http.ResponseWriter, r *http.Request) {
	var req AnchorRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, err := s.resolveSpell(req.SpellRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.config.Session.Anchor(r.Context(), trustspell.AnchorRequest{
		Spell:         sp,
		FundingUTXO:   req.FundingUTXO,
		ChangeAddress: req.ChangeAddress,
		Broadcast:     req.Broadcast,
		AllowFallback: req.AllowFallback,
	})
	resp := AnchorResponse{AnchorResult: res, Spell: sp}
	if err != nil {
		resp.Error = errorFor(err)
		writeJSON(w, statusFor(resp.Error), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnchors(w http.ResponseWriter, r *http.Request) {
	db := s.config.Session.Database()
	if db == nil {
		writeError(w, errs.NewState("list anchors", errNoDatabase))
		return
	}
	limit := defaultAnchorsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, errs.Validationf("list anchors", "invalid limit %q", v))
			return
		}
		limit = n
	}
	rows, err := db.Anchors(s.config.Session.ID(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := AnchorsResponse{Anchors: make([]AnchorSummary, 0, len(rows))}
	for _, row := range rows {
		resp.Anchors = append(resp.Anchors, AnchorSummary{
			AttemptID:  row.AttemptID,
			SpellType:  row.SpellType,
			Outcome:    row.Outcome,
			Gateway:    row.Gateway,
			CommitTxID: row.CommitTxID,
			SpellTxID:  row.SpellTxID,
			Fee:        row.Fee,
			Error:      row.Error,
			CreatedAt:  row.CreatedAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnchorByTxID(w http.ResponseWriter, r *http.Request) {
	db := s.config.Session.Database()
	if db == nil {
		writeError(w, errs.NewState("get anchor", errNoDatabase))
		return
	}
	rec, err := db.Anchor(r.PathValue("txid"))
	if err != nil {
		if database.IsNotFound(err) {
			writeError(w, wrapErr(ErrNotFound, err))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
