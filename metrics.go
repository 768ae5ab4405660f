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

package trustspell

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type anchorMetrics struct {
	attempts       *prometheus.CounterVec
	duration       prometheus.Histogram
	proverDuration *prometheus.HistogramVec
	broadcasts     *prometheus.CounterVec
}

func newAnchorMetrics(reg prometheus.Registerer) *anchorMetrics {
	factory := promauto.With(reg)
	return &anchorMetrics{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustspell_anchor_attempts_total",
				Help: "anchoring attempts by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trustspell_anchor_duration_seconds",
				Help:    "time spent on a whole anchoring attempt",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		proverDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trustspell_prover_duration_seconds",
				Help:    "prover call latency by gateway",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"gateway"},
		),
		broadcasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustspell_wallet_broadcasts_total",
				Help: "sign and broadcast calls by result",
			},
			[]string{"result"},
		),
	}
}
