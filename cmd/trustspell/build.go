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

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/trustspell/internal/config"
	"github.com/blinklabs-io/trustspell/spell"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

type buildOutput struct {
	CommitTxHex string `json:"commitTxHex"`
	SpellTxHex  string `json:"spellTxHex"`
	CommitTxID  string `json:"commitTxid"`
	SpellTxID   string `json:"spellTxid"`
	Fee         uint64 `json:"fee"`
}

type decodeOutput struct {
	Spell      spell.Spell `json:"spell"`
	Commitment string      `json:"commitment"`
	ProofHex   string      `json:"proofHex,omitempty"`
	CommitTxID string      `json:"commitTxid,omitempty"`
	SpellTxID  string      `json:"spellTxid"`
	Verified   bool        `json:"verified"`
}

func newBuilder(cfg *config.Config) (*txbuilder.Builder, error) {
	params, err := txbuilder.NetworkParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	return txbuilder.NewBuilder(txbuilder.BuilderConfig{
		Network:   params,
		FeePolicy: cfg.Fee,
	}), nil
}

func writeOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readSpellFile(cmd *cobra.Command, path string) (spell.Spell, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return spell.Spell{}, fmt.Errorf("reading spell: %w", err)
	}
	var s spell.Spell
	if err := json.Unmarshal(data, &s); err != nil {
		return spell.Spell{}, fmt.Errorf("parsing spell: %w", err)
	}
	return s, nil
}

func buildCommand() *cobra.Command {
	var spellFile, address, utxo, proofHex string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an unsigned commit and spell transaction pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errNoConfig
			}
			builder, err := newBuilder(cfg)
			if err != nil {
				return err
			}
			s, err := readSpellFile(cmd, spellFile)
			if err != nil {
				return err
			}
			funding, err := txbuilder.ParseUTXO(utxo)
			if err != nil {
				return err
			}
			proof, err := hex.DecodeString(proofHex)
			if err != nil {
				return fmt.Errorf("invalid proof: %w", err)
			}
			pair, err := builder.BuildPairWithProof(s, proof, address, funding)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), buildOutput{
				CommitTxHex: pair.CommitHex,
				SpellTxHex:  pair.SpellHex,
				CommitTxID:  pair.CommitTxID,
				SpellTxID:   pair.SpellTxID,
				Fee:         pair.Fee,
			})
		},
	}
	cmd.Flags().StringVar(&spellFile, "spell", "", "spell JSON file, '-' for stdin")
	cmd.Flags().StringVar(&address, "address", "", "destination address")
	cmd.Flags().StringVar(&utxo, "utxo", "", "funding UTXO as txid:vout:amount")
	cmd.Flags().StringVar(&proofHex, "proof", "", "hex proof to append to the witness payload")
	for _, name := range []string{"spell", "address", "utxo"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func decodeCommand() *cobra.Command {
	var spellHex, commitHex string
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode the spell carried by a spell transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errNoConfig
			}
			builder, err := newBuilder(cfg)
			if err != nil {
				return err
			}
			if commitHex != "" {
				parsed, err := builder.ParsePair(commitHex, spellHex)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), decodeOutput{
					Spell:      parsed.Decoded,
					Commitment: hex.EncodeToString(parsed.Encoded.CommitmentHash[:]),
					ProofHex:   hex.EncodeToString(parsed.Proof),
					CommitTxID: parsed.CommitTxID,
					SpellTxID:  parsed.SpellTxID,
					Verified:   true,
				})
			}
			tx, err := txbuilder.DeserializeHex(spellHex)
			if err != nil {
				return err
			}
			if len(tx.TxIn) != 1 {
				return txbuilder.ErrSpellShape
			}
			codec := spell.NewCodec()
			payload, err := codec.PayloadFromWitness(tx.TxIn[0].Witness)
			if err != nil {
				return err
			}
			s, proof, err := codec.Decode(payload)
			if err != nil {
				return err
			}
			commitment, err := codec.Commitment(s)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), decodeOutput{
				Spell:      s,
				Commitment: hex.EncodeToString(commitment[:]),
				ProofHex:   hex.EncodeToString(proof),
				SpellTxID:  tx.TxHash().String(),
			})
		},
	}
	cmd.Flags().StringVar(&spellHex, "hex", "", "spell transaction hex")
	cmd.Flags().StringVar(&commitHex, "commit", "", "commit transaction hex, to verify the pair")
	_ = cmd.MarkFlagRequired("hex")
	return cmd
}
