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

// Package spell encodes application payloads for the commit and spell
// transactions.
//
// A spell is serialized to canonical JSON. The commit transaction carries
// the double SHA-256 of that JSON in an OP_RETURN output, and the spell
// transaction carries the JSON itself, optionally followed by an opaque
// proof, as the middle item of the ["", payload, ""] witness envelope.
package spell

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/blinklabs-io/trustspell/errs"
)

// MaxPayloadSize bounds the witness payload so the spell transaction stays
// under the standard transaction weight
const MaxPayloadSize = 390_000

// CommitmentScriptLen is the length of OP_RETURN followed by a 32-byte push
const CommitmentScriptLen = 2 + chainhash.HashSize

var (
	ErrPayloadTooLarge   = errors.New("witness payload too large")
	ErrNonCanonical      = errors.New("spell is not in canonical form")
	ErrEmptyPayload      = errors.New("witness payload is empty")
	ErrBadEnvelope       = errors.New("witness is not a spell envelope")
	ErrBadCommitment     = errors.New("script is not a spell commitment")
	ErrCommitmentMissing = errors.New("payload does not match commitment")
)

// Encoded is the codec output for a single spell
type Encoded struct {
	CommitmentHash [chainhash.HashSize]byte
	WitnessPayload []byte
}

// Codec converts spells to and from their on-chain representation
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// Canonical returns the canonical JSON form of a valid spell
func (c *Codec) Canonical(s Spell) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, errs.NewValidation("encode spell", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errs.NewValidation("encode spell", err)
	}
	return data, nil
}

// Commitment returns the double SHA-256 of the canonical form
func (c *Codec) Commitment(s Spell) ([chainhash.HashSize]byte, error) {
	data, err := c.Canonical(s)
	if err != nil {
		return [chainhash.HashSize]byte{}, err
	}
	return chainhash.DoubleHashH(data), nil
}

func (c *Codec) Encode(s Spell) (Encoded, error) {
	return c.EncodeWithProof(s, nil)
}

// EncodeWithProof appends an opaque proof blob after the canonical JSON.
// The commitment covers the JSON only.
func (c *Codec) EncodeWithProof(s Spell, proof []byte) (Encoded, error) {
	data, err := c.Canonical(s)
	if err != nil {
		return Encoded{}, err
	}
	if len(data)+len(proof) > MaxPayloadSize {
		return Encoded{}, errs.NewValidation(
			"encode spell",
			fmt.Errorf(
				"%w: %d bytes",
				ErrPayloadTooLarge,
				len(data)+len(proof),
			),
		)
	}
	payload := make([]byte, 0, len(data)+len(proof))
	payload = append(payload, data...)
	payload = append(payload, proof...)
	return Encoded{
		CommitmentHash: chainhash.DoubleHashH(data),
		WitnessPayload: payload,
	}, nil
}

// Decode splits a witness payload into the spell and any trailing proof.
// Payloads that are not byte-identical to the canonical encoding of the
// spell they contain are rejected.
func (c *Codec) Decode(payload []byte) (Spell, []byte, error) {
	if len(payload) == 0 {
		return Spell{}, nil, errs.NewProtocol("decode spell", ErrEmptyPayload)
	}
	if payload[0] != '{' {
		return Spell{}, nil, errs.NewProtocol("decode spell", ErrNonCanonical)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Spell{}, nil, errs.NewProtocol("decode spell", err)
	}
	offset := dec.InputOffset()
	var s Spell
	if err := json.Unmarshal(raw, &s); err != nil {
		return Spell{}, nil, errs.NewProtocol("decode spell", err)
	}
	if err := s.Validate(); err != nil {
		return Spell{}, nil, errs.NewProtocol("decode spell", err)
	}
	canonical, err := json.Marshal(s)
	if err != nil {
		return Spell{}, nil, errs.NewProtocol("decode spell", err)
	}
	if !bytes.Equal(canonical, payload[:offset]) {
		return Spell{}, nil, errs.NewProtocol("decode spell", ErrNonCanonical)
	}
	var proof []byte
	if int(offset) < len(payload) {
		proof = bytes.Clone(payload[offset:])
	}
	return s, proof, nil
}

// Verify decodes a payload and checks it against a commitment hash
func (c *Codec) Verify(
	payload []byte,
	commitment [chainhash.HashSize]byte,
) (Spell, []byte, error) {
	s, proof, err := c.Decode(payload)
	if err != nil {
		return Spell{}, nil, err
	}
	// Decode guarantees the prefix is canonical
	if chainhash.DoubleHashH(payload[:len(payload)-len(proof)]) != commitment {
		return Spell{}, nil, errs.NewProtocol("verify spell", ErrCommitmentMissing)
	}
	return s, proof, nil
}

// WitnessStack wraps the payload in the ["", payload, ""] envelope
func (c *Codec) WitnessStack(enc Encoded) wire.TxWitness {
	return wire.TxWitness{
		{},
		bytes.Clone(enc.WitnessPayload),
		{},
	}
}

// PayloadFromWitness extracts the payload from a spell envelope
func (c *Codec) PayloadFromWitness(witness wire.TxWitness) ([]byte, error) {
	if len(witness) != 3 || len(witness[0]) != 0 || len(witness[2]) != 0 {
		return nil, errs.NewProtocol("read witness", ErrBadEnvelope)
	}
	return bytes.Clone(witness[1]), nil
}

// CommitmentScript returns OP_RETURN <32-byte hash>
func (c *Codec) CommitmentScript(hash [chainhash.HashSize]byte) ([]byte, error) {
	script, err := txscript.NullDataScript(hash[:])
	if err != nil {
		return nil, errs.NewProtocol("commitment script", err)
	}
	return script, nil
}

// ParseCommitmentScript is the inverse of CommitmentScript
func (c *Codec) ParseCommitmentScript(script []byte) ([chainhash.HashSize]byte, error) {
	var ret [chainhash.HashSize]byte
	if len(script) != CommitmentScriptLen ||
		script[0] != txscript.OP_RETURN ||
		script[1] != txscript.OP_DATA_32 {
		return ret, errs.NewProtocol("parse commitment", ErrBadCommitment)
	}
	copy(ret[:], script[2:])
	return ret, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after spell")
	}
	return nil
}
