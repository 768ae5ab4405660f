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

package blob_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/trustspell/database/plugin"
	"github.com/blinklabs-io/trustspell/database/plugin/blob"
	"github.com/blinklabs-io/trustspell/database/types"
)

var blobPlugins = []string{"badger", "pebble"}

func TestBlobStoreOperations(t *testing.T) {
	for _, name := range blobPlugins {
		t.Run(name, func(t *testing.T) {
			store, err := blob.New(name, plugin.Options{})
			require.NoError(t, err)
			defer store.Close()

			_, err = store.Get([]byte("anchor:missing"))
			require.ErrorIs(t, err, types.ErrBlobKeyNotFound)

			require.NoError(t, store.Set([]byte("anchor:b"), []byte("two")))
			require.NoError(t, store.Set([]byte("anchor:a"), []byte("one")))
			require.NoError(t, store.Set([]byte("other:c"), []byte("three")))

			val, err := store.Get([]byte("anchor:a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), val)

			var keys []string
			err = store.Iterate([]byte("anchor:"), func(k, v []byte) error {
				keys = append(keys, string(k))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"anchor:a", "anchor:b"}, keys)

			stop := errors.New("stop")
			count := 0
			err = store.Iterate([]byte("anchor:"), func(k, v []byte) error {
				count++
				return stop
			})
			require.ErrorIs(t, err, stop)
			assert.Equal(t, 1, count)

			require.NoError(t, store.Delete([]byte("anchor:a")))
			_, err = store.Get([]byte("anchor:a"))
			require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
		})
	}
}

func TestBlobStoreCommitTimestamp(t *testing.T) {
	for _, name := range blobPlugins {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := blob.New(name, plugin.Options{DataDir: dir})
			require.NoError(t, err)

			ts, err := store.GetCommitTimestamp()
			require.NoError(t, err)
			assert.Zero(t, ts)

			require.NoError(t, store.SetCommitTimestamp(1_700_000_000_123))
			require.NoError(t, store.Close())
			// Closing twice is harmless
			require.NoError(t, store.Close())

			// Reopen and check the value persisted
			store, err = blob.New(name, plugin.Options{DataDir: dir})
			require.NoError(t, err)
			defer store.Close()
			ts, err = store.GetCommitTimestamp()
			require.NoError(t, err)
			assert.Equal(t, int64(1_700_000_000_123), ts)
		})
	}
}

func TestBlobStoreUnknownPlugin(t *testing.T) {
	_, err := blob.New("nope", plugin.Options{})
	require.Error(t, err)
}
