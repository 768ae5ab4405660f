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

package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	votes    *prometheus.CounterVec
	executed prometheus.Counter
	round    prometheus.Gauge
}

func newEngineMetrics(promRegistry prometheus.Registerer) *engineMetrics {
	promautoFactory := promauto.With(promRegistry)
	m := &engineMetrics{
		votes: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustspell_governance_votes_total",
				Help: "votes cast by choice",
			},
			[]string{"choice"},
		),
		executed: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "trustspell_governance_proposals_executed_total",
				Help: "proposals executed",
			},
		),
		round: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "trustspell_governance_round",
				Help: "current voting round",
			},
		),
	}
	m.round.Set(1)
	return m
}
