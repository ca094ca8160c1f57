//
// Copyright 2024 The mongo-change-streams-tail Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package changestreams

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// streamsOpened counts watch requests that produced a live cursor,
	// including reopens performed by the resume policy.
	streamsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mongo_change_streams_opened_total",
			Help: "Total number of change stream cursors opened.",
		},
	)

	// documentsDelivered counts change documents handed to callers.
	documentsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mongo_change_streams_documents_total",
			Help: "Total number of change documents delivered.",
		},
	)

	// streamResumes counts transient failures recovered by reopening
	// the cursor with the last observed resume token.
	streamResumes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mongo_change_streams_resumes_total",
			Help: "Total number of automatic resumes after transient failures.",
		},
	)

	// pollErrors counts poll failures surfaced to callers by kind.
	pollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongo_change_streams_poll_errors_total",
			Help: "Total number of poll failures surfaced to callers.",
		},
		[]string{"kind"},
	)
)
