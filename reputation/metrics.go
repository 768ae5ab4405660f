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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	moves *prometheus.CounterVec
	score prometheus.Gauge
}

func newLedgerMetrics(promRegistry prometheus.Registerer) *ledgerMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &ledgerMetrics{
		moves: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustspell_reputation_moves_total",
				Help: "moves recorded by cooperation",
			},
			[]string{"cooperative"},
		),
		score: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "trustspell_reputation_score",
				Help: "current cooperation score",
			},
		),
	}
}

func (m *ledgerMetrics) observeMove(cooperative bool, score uint64) {
	m.moves.WithLabelValues(strconv.FormatBool(cooperative)).Inc()
	m.score.Set(float64(score))
}
