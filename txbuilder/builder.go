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

// Package txbuilder assembles the unsigned commit and spell transactions
// that anchor a spell on chain.
//
// The commit transaction spends the funding UTXO into a single zero-value
// OP_RETURN output carrying the spell commitment. The spell transaction
// spends output 0 of the commit transaction and carries the spell payload
// in its witness. Building is pure: nothing is signed and nothing touches
// the network, so a failed anchoring attempt can simply build again.
package txbuilder

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/blinklabs-io/trustspell/errs"
	"github.com/blinklabs-io/trustspell/spell"
)

const DefaultTxVersion = 2

// SpellMarker is the data pushed by the spell transaction's OP_RETURN
// output when no change output is requested
var SpellMarker = []byte("spell")

var (
	ErrCommitShape = errors.New("commit transaction must have one input and one output")
	ErrSpellShape  = errors.New("spell transaction must have one input and one output")
	ErrSpellInput  = errors.New("spell input does not spend commit output 0")
)

type BuilderConfig struct {
	Logger    *slog.Logger
	Network   *chaincfg.Params
	FeePolicy FeePolicy
	Codec     *spell.Codec
	TxVersion int32
}

type Builder struct {
	config BuilderConfig
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "txbuilder")
	if cfg.Network == nil {
		cfg.Network = &chaincfg.TestNet3Params
	}
	if cfg.Codec == nil {
		cfg.Codec = spell.NewCodec()
	}
	if cfg.TxVersion == 0 {
		cfg.TxVersion = DefaultTxVersion
	}
	return &Builder{config: cfg}
}

func (b *Builder) Network() *chaincfg.Params {
	return b.config.Network
}

func (b *Builder) FeePolicy() FeePolicy {
	return b.config.FeePolicy
}

// TransactionPair is an unsigned commit and spell transaction
type TransactionPair struct {
	Commit     *wire.MsgTx
	Spell      *wire.MsgTx
	CommitHex  string
	SpellHex   string
	CommitTxID string
	SpellTxID  string
	Fee        uint64
	Encoded    spell.Encoded
}

// BuildPair builds the transaction pair for a spell without a proof
func (b *Builder) BuildPair(
	s spell.Spell,
	destination string,
	utxo UTXO,
) (*TransactionPair, error) {
	return b.BuildPairWithProof(s, nil, destination, utxo)
}

// BuildPairWithProof builds the transaction pair with a proof blob
// appended to the witness payload
func (b *Builder) BuildPairWithProof(
	s spell.Spell,
	proof []byte,
	destination string,
	utxo UTXO,
) (*TransactionPair, error) {
	addr, err := DecodeAddress(destination, b.config.Network)
	if err != nil {
		return nil, err
	}
	if err := utxo.Validate(); err != nil {
		return nil, err
	}
	fundingOutPoint, err := utxo.OutPoint()
	if err != nil {
		return nil, err
	}
	enc, err := b.config.Codec.EncodeWithProof(s, proof)
	if err != nil {
		return nil, err
	}

	commit, err := b.buildCommit(fundingOutPoint, enc)
	if err != nil {
		return nil, err
	}
	commitHash := commit.TxHash()
	spellTx, err := b.buildSpell(&commitHash, enc, addr, 0)
	if err != nil {
		return nil, err
	}
	// Output values are fixed width, so the change amount does not affect
	// the size the fee is computed from
	fee := b.config.FeePolicy.Fee(commit, spellTx)
	remaining, err := b.config.FeePolicy.Remaining(utxo.AmountSats, fee)
	if err != nil {
		return nil, err
	}
	if b.config.FeePolicy.Change {
		// Each transaction pays its own share, so neither spends more
		// than it takes in. Remaining above dust keeps this positive.
		commitOut := utxo.AmountSats - b.config.FeePolicy.CommitFee(commit)
		// #nosec G115
		commit.TxOut[0].Value = int64(commitOut)
		spellTx.TxIn[0].PreviousOutPoint.Hash = commit.TxHash()
		// #nosec G115
		spellTx.TxOut[0].Value = int64(remaining)
	}

	pair, err := newPair(commit, spellTx)
	if err != nil {
		return nil, err
	}
	pair.Fee = fee
	pair.Encoded = enc
	b.config.Logger.Debug(
		"built transaction pair",
		"spell_type", s.Type,
		"commit_txid", pair.CommitTxID,
		"spell_txid", pair.SpellTxID,
		"funding", utxo.String(),
		"fee", btcutil.Amount(fee), // #nosec G115
	)
	return pair, nil
}

func (b *Builder) buildCommit(
	funding *wire.OutPoint,
	enc spell.Encoded,
) (*wire.MsgTx, error) {
	script, err := b.config.Codec.CommitmentScript(enc.CommitmentHash)
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(b.config.TxVersion)
	tx.AddTxIn(wire.NewTxIn(funding, nil, nil))
	tx.AddTxOut(wire.NewTxOut(0, script))
	return tx, nil
}

func (b *Builder) buildSpell(
	commitHash *chainhash.Hash,
	enc spell.Encoded,
	destination btcutil.Address,
	changeValue int64,
) (*wire.MsgTx, error) {
	var script []byte
	var err error
	if b.config.FeePolicy.Change {
		script, err = txscript.PayToAddrScript(destination)
	} else {
		script, err = txscript.NullDataScript(SpellMarker)
	}
	if err != nil {
		return nil, errs.NewProtocol("build spell", err)
	}
	tx := wire.NewMsgTx(b.config.TxVersion)
	tx.AddTxIn(
		wire.NewTxIn(
			wire.NewOutPoint(commitHash, 0),
			nil,
			b.config.Codec.WitnessStack(enc),
		),
	)
	tx.AddTxOut(wire.NewTxOut(changeValue, script))
	return tx, nil
}

func newPair(commit *wire.MsgTx, spellTx *wire.MsgTx) (*TransactionPair, error) {
	commitHex, err := SerializeHex(commit)
	if err != nil {
		return nil, err
	}
	spellHex, err := SerializeHex(spellTx)
	if err != nil {
		return nil, err
	}
	return &TransactionPair{
		Commit:     commit,
		Spell:      spellTx,
		CommitHex:  commitHex,
		SpellHex:   spellHex,
		CommitTxID: commit.TxHash().String(),
		SpellTxID:  spellTx.TxHash().String(),
	}, nil
}

// SerializeHex encodes a transaction in wire format, including the
// witness section only when an input carries a witness
func SerializeHex(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return "", errs.NewProtocol("serialize transaction", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// DeserializeHex decodes a wire-format transaction
func DeserializeHex(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, errs.NewProtocol("deserialize transaction", err)
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errs.NewProtocol("deserialize transaction", err)
	}
	return tx, nil
}

// ParsedPair is a decoded and verified transaction pair
type ParsedPair struct {
	*TransactionPair
	Decoded spell.Spell
	Proof   []byte
}

// ParsePair decodes a commit and spell transaction pair and checks that
// they fit together: the spell input spends commit output 0 and the
// witness payload matches the commitment
func (b *Builder) ParsePair(commitHex string, spellHex string) (*ParsedPair, error) {
	commit, err := DeserializeHex(commitHex)
	if err != nil {
		return nil, err
	}
	spellTx, err := DeserializeHex(spellHex)
	if err != nil {
		return nil, err
	}
	if len(commit.TxIn) != 1 || len(commit.TxOut) != 1 {
		return nil, errs.NewProtocol("parse pair", ErrCommitShape)
	}
	if len(spellTx.TxIn) != 1 || len(spellTx.TxOut) != 1 {
		return nil, errs.NewProtocol("parse pair", ErrSpellShape)
	}
	commitment, err := b.config.Codec.ParseCommitmentScript(commit.TxOut[0].PkScript)
	if err != nil {
		return nil, err
	}
	prev := spellTx.TxIn[0].PreviousOutPoint
	if prev.Hash != commit.TxHash() || prev.Index != 0 {
		return nil, errs.Protocolf(
			"parse pair",
			"%w: spends %s",
			ErrSpellInput,
			prev.String(),
		)
	}
	payload, err := b.config.Codec.PayloadFromWitness(spellTx.TxIn[0].Witness)
	if err != nil {
		return nil, err
	}
	s, proof, err := b.config.Codec.Verify(payload, commitment)
	if err != nil {
		return nil, err
	}
	pair, err := newPair(commit, spellTx)
	if err != nil {
		return nil, err
	}
	pair.Encoded = spell.Encoded{
		CommitmentHash: commitment,
		WitnessPayload: payload,
	}
	return &ParsedPair{
		TransactionPair: pair,
		Decoded:         s,
		Proof:           proof,
	}, nil
}

// String summarises the pair for logs
func (p *TransactionPair) String() string {
	return fmt.Sprintf("commit=%s spell=%s", p.CommitTxID, p.SpellTxID)
}
