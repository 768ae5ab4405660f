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

package blob

import (
	"fmt"

	"github.com/blinklabs-io/trustspell/database/plugin"

	// Register blob plugins
	_ "github.com/blinklabs-io/trustspell/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/trustspell/database/plugin/blob/pebble"
)

const DefaultPlugin = "badger"

type BlobStore interface {
	plugin.Plugin
	Close() error

	// Get returns types.ErrBlobKeyNotFound for a missing key
	Get(key []byte) ([]byte, error)
	Set(key []byte, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for each key with the given prefix in key order.
	// Iteration stops at the first error returned by fn.
	Iterate(prefix []byte, fn func(key []byte, value []byte) error) error

	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64) error
}

// New returns the started blob plugin selected by name
func New(pluginName string, opts plugin.Options) (BlobStore, error) {
	if pluginName == "" {
		pluginName = DefaultPlugin
	}
	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, pluginName, opts)
	if err != nil {
		return nil, err
	}
	blobStore, ok := p.(BlobStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement BlobStore interface",
			pluginName,
		)
	}
	return blobStore, nil
}
