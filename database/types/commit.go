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

package types

import (
	"encoding/binary"
	"fmt"
)

// CommitTimestampKey is where blob stores keep the commit timestamp
var CommitTimestampKey = []byte("meta:commit_timestamp")

func EncodeCommitTimestamp(ts int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(ts)) // #nosec G115
}

func DecodeCommitTimestamp(val []byte) (int64, error) {
	if len(val) != 8 {
		return 0, fmt.Errorf("commit timestamp is %d bytes, want 8", len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil // #nosec G115
}
