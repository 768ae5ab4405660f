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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/trustspell/database"
	"github.com/blinklabs-io/trustspell/internal/config"
)

func anchorsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "anchors",
		Short: "List recent anchoring attempts for the configured session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errNoConfig
			}
			db, err := database.New(database.Config{
				Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
				DataDir:        cfg.DatabasePath,
				BlobPlugin:     cfg.BlobPlugin,
				MetadataPlugin: cfg.MetadataPlugin,
			})
			if err != nil {
				var tsErr database.CommitTimestampError
				if db == nil || !errors.As(err, &tsErr) {
					return fmt.Errorf("opening database: %w", err)
				}
			}
			defer db.Close()
			rows, err := db.Anchors(cfg.SessionID, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTYPE\tOUTCOME\tGATEWAY\tCOMMIT TXID")
			for _, row := range rows {
				fmt.Fprintf(
					tw,
					"%s\t%s\t%s\t%s\t%s\n",
					row.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
					row.SpellType,
					row.Outcome,
					row.Gateway,
					row.CommitTxID,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of attempts to show, 0 for all")
	return cmd
}
