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

package badger_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/trustspell/database/plugin/blob/badger"
	"github.com/blinklabs-io/trustspell/database/types"
)

func TestDiskStoreWithGc(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, err := badger.New(
		badger.WithDataDir(t.TempDir()),
		badger.WithCacheSizes(8<<20, 4<<20),
		badger.WithGcInterval(10*time.Millisecond),
		badger.WithPromRegistry(reg),
	)
	require.NoError(t, err)
	require.NoError(t, store.Set([]byte("anchor:1"), []byte("record")))
	// Let the GC loop tick at least once
	time.Sleep(50 * time.Millisecond)
	val, err := store.Get([]byte("anchor:1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), val)

	n, err := testutil.GatherAndCount(
		reg,
		"trustspell_blob_lsm_bytes",
		"trustspell_blob_vlog_bytes",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestCorruptCommitTimestamp(t *testing.T) {
	store, err := badger.New()
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Set(types.CommitTimestampKey, []byte{1, 2, 3}))
	_, err = store.GetCommitTimestamp()
	require.Error(t, err)
}
