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

package spell_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/governance"
	"github.com/blinklabs-io/trustspell/reputation"
	"github.com/blinklabs-io/trustspell/spell"
)

func testSpells() []spell.Spell {
	return []spell.Spell{
		spell.NewMove("trust-game", 1700000000, 3, true),
		spell.NewMove("trust-game", 1700000001, 0, false),
		spell.NewReputationAnchor(
			"trust-game",
			1700000002,
			reputation.Snapshot{
				Address:          "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx",
				Score:            80,
				Tier:             reputation.WellAligned,
				VotingPower:      120,
				TotalMoves:       10,
				CooperativeMoves: 8,
			},
		),
		spell.NewGovernanceVote("trust-game", 1700000003, 7, governance.ChoiceAbstain, 15),
	}
}

func TestRoundTrip(t *testing.T) {
	c := spell.NewCodec()
	for _, s := range testSpells() {
		enc, err := c.Encode(s)
		require.NoError(t, err)
		got, proof, err := c.Decode(enc.WitnessPayload)
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.Nil(t, proof)

		proofBlob := []byte{0x00, 0x01, 0xfe, '{', ' '}
		enc, err = c.EncodeWithProof(s, proofBlob)
		require.NoError(t, err)
		got, proof, err = c.Decode(enc.WitnessPayload)
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.Equal(t, proofBlob, proof)

		_, _, err = c.Verify(enc.WitnessPayload, enc.CommitmentHash)
		require.NoError(t, err)
	}
}

func TestCanonicalJSON(t *testing.T) {
	c := spell.NewCodec()
	data, err := c.Canonical(testSpells()[2])
	require.NoError(t, err)
	assert.Equal(
		t,
		`{"appId":"trust-game","type":"reputation_anchor","timestamp":1700000002,`+
			`"player_address":"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx",`+
			`"reputation_score":80,"reputation_tier":2,"voting_power":120,`+
			`"total_moves":10,"cooperative_moves":8}`,
		string(data),
	)
	data, err = c.Canonical(testSpells()[3])
	require.NoError(t, err)
	assert.Equal(
		t,
		`{"appId":"trust-game","type":"governance_vote","timestamp":1700000003,`+
			`"proposal_id":7,"vote":"abstain","voting_power":15}`,
		string(data),
	)
}

func TestCommitmentIsDoubleSHA256(t *testing.T) {
	c := spell.NewCodec()
	s := testSpells()[0]
	data, err := c.Canonical(s)
	require.NoError(t, err)
	first := sha256.Sum256(data)
	expected := sha256.Sum256(first[:])

	enc, err := c.EncodeWithProof(s, []byte("proof"))
	require.NoError(t, err)
	assert.Equal(t, expected, enc.CommitmentHash)
	commitment, err := c.Commitment(s)
	require.NoError(t, err)
	assert.Equal(t, expected, commitment)

	other, err := c.Encode(testSpells()[1])
	require.NoError(t, err)
	assert.NotEqual(t, enc.CommitmentHash, other.CommitmentHash)
	_, _, err = c.Verify(enc.WitnessPayload, other.CommitmentHash)
	assert.ErrorIs(t, err, spell.ErrCommitmentMissing)
}

func TestDecodeRejectsNonCanonical(t *testing.T) {
	c := spell.NewCodec()
	testDefs := []string{
		``,
		` {"appId":"a","type":"move","timestamp":1,"round_index":0,"cooperative":true}`,
		`{"type":"move","appId":"a","timestamp":1,"round_index":0,"cooperative":true}`,
		`{"appId":"a","type":"move","timestamp":1,"round_index":0,"cooperative":true,"x":1}`,
		`{"appId":"a","type":"teleport","timestamp":1}`,
		`{"appId":"","type":"move","timestamp":1,"round_index":0,"cooperative":true}`,
		`{"appId":"a","type":"governance_vote","timestamp":1,"proposal_id":1,"vote":"maybe","voting_power":1}`,
		`not json`,
	}
	for _, testDef := range testDefs {
		_, _, err := c.Decode([]byte(testDef))
		require.Error(t, err, testDef)
		assert.True(t, errs.IsProtocol(err), testDef)
	}
}

func TestEncodeValidation(t *testing.T) {
	c := spell.NewCodec()
	bad := testSpells()[2]
	bad.Reputation.ReputationScore = 101
	_, err := c.Encode(bad)
	assert.True(t, errs.IsValidation(err))
	assert.ErrorIs(t, err, spell.ErrScoreOutOfRange)

	mixed := testSpells()[0]
	mixed.Vote.ProposalID = 1
	_, err = c.Encode(mixed)
	assert.ErrorIs(t, err, spell.ErrUnexpectedFields)

	_, err = c.EncodeWithProof(testSpells()[0], make([]byte, spell.MaxPayloadSize))
	assert.ErrorIs(t, err, spell.ErrPayloadTooLarge)
}

func TestWitnessEnvelope(t *testing.T) {
	c := spell.NewCodec()
	enc, err := c.Encode(testSpells()[0])
	require.NoError(t, err)
	w := c.WitnessStack(enc)
	require.Len(t, w, 3)
	assert.Empty(t, w[0])
	assert.Equal(t, enc.WitnessPayload, w[1])
	assert.Empty(t, w[2])
	payload, err := c.PayloadFromWitness(w)
	require.NoError(t, err)
	assert.Equal(t, enc.WitnessPayload, payload)

	_, err = c.PayloadFromWitness(w[:2])
	assert.ErrorIs(t, err, spell.ErrBadEnvelope)
}

func TestCommitmentScript(t *testing.T) {
	c := spell.NewCodec()
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	script, err := c.CommitmentScript(hash)
	require.NoError(t, err)
	require.Len(t, script, spell.CommitmentScriptLen)
	assert.Equal(t, byte(txscript.OP_RETURN), script[0])
	assert.Equal(
		t,
		"6a20"+hex.EncodeToString(hash[:]),
		hex.EncodeToString(script),
	)
	parsed, err := c.ParseCommitmentScript(script)
	require.NoError(t, err)
	assert.Equal(t, hash, parsed)
	_, err = c.ParseCommitmentScript(script[:10])
	assert.ErrorIs(t, err, spell.ErrBadCommitment)
}
