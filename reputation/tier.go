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

package reputation

import (
	"math"
)

// Tier is a reputation band derived from the cooperation score. The
// numeric values are the tier codes carried in reputation anchors.
type Tier uint8

const (
	Misaligned  Tier = 0
	Neutral     Tier = 1
	WellAligned Tier = 2
)

const (
	NeutralScore     = 50
	WellAlignedScore = 75
)

func (t Tier) String() string {
	switch t {
	case WellAligned:
		return "WellAligned"
	case Neutral:
		return "Neutral"
	case Misaligned:
		return "Misaligned"
	default:
		return "Unknown"
	}
}

// Multiplier returns the voting power weight of the tier
func (t Tier) Multiplier() float64 {
	switch t {
	case WellAligned:
		return 1.5
	case Neutral:
		return 1.0
	default:
		return 0.5
	}
}

// ScoreFor returns the cooperation percentage, or the neutral score when
// no moves have been made
func ScoreFor(cooperativeMoves uint64, totalMoves uint64) uint64 {
	if totalMoves == 0 {
		return NeutralScore
	}
	return uint64(
		math.Round(float64(cooperativeMoves) / float64(totalMoves) * 100),
	)
}

func TierFor(score uint64) Tier {
	switch {
	case score >= WellAlignedScore:
		return WellAligned
	case score >= NeutralScore:
		return Neutral
	default:
		return Misaligned
	}
}

func VotingPowerFor(score uint64) uint64 {
	return uint64(math.Round(float64(score) * TierFor(score).Multiplier()))
}
