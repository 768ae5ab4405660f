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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/trustspell/internal/config"
	"github.com/blinklabs-io/trustspell/internal/node"
)

var errNoConfig = errors.New("no config found in context")

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errNoConfig
			}
			logger := setupLogging()
			if err := node.Run(cmd.Context(), cfg, logger); err != nil {
				slog.Error(err.Error())
				return err
			}
			return nil
		},
	}
	return cmd
}
