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

package badger

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type OptionFunc func(*Store)

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPromRegistry exports LSM and value log sizes
func WithPromRegistry(registry prometheus.Registerer) OptionFunc {
	return func(s *Store) {
		s.promRegistry = registry
	}
}

// WithDataDir keeps the store under dataDir/blob. An empty dataDir keeps
// it in memory.
func WithDataDir(dataDir string) OptionFunc {
	return func(s *Store) {
		s.dataDir = dataDir
	}
}

// WithCacheSizes sets the block and index cache sizes in bytes
func WithCacheSizes(block int64, index int64) OptionFunc {
	return func(s *Store) {
		s.blockCacheSize = block
		s.indexCacheSize = index
	}
}

// WithGcInterval sets how often value log GC runs on disk. Zero disables
// it.
func WithGcInterval(interval time.Duration) OptionFunc {
	return func(s *Store) {
		s.gcInterval = interval
	}
}
