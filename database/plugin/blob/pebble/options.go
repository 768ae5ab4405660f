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

package pebble

import "log/slog"

type OptionFunc func(*Store)

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(b *Store) {
		b.logger = logger
	}
}

// WithDataDir specifies the data directory to use for storage. An empty
// value uses an in-memory filesystem.
func WithDataDir(dataDir string) OptionFunc {
	return func(b *Store) {
		b.dataDir = dataDir
	}
}

// WithCacheSize sets the block cache size in bytes
func WithCacheSize(size int64) OptionFunc {
	return func(b *Store) {
		b.cacheSize = size
	}
}
