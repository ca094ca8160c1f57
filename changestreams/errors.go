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
	"errors"
	"net"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrInvalidPipeline is returned by Watch when the pipeline argument
	// is not an ordered sequence of aggregation stages.
	ErrInvalidPipeline = errors.New("changestreams: pipeline must be an ordered sequence of stages")

	// ErrMissingResumeToken is returned by Next when a change document
	// carries no _id field to resume from, typically because the
	// pipeline projected it out. The underlying cursor is closed as a
	// side effect.
	ErrMissingResumeToken = errors.New("changestreams: cannot resume from a change document with no _id field")

	// ErrStreamClosed signals the end of the sequence. It is not a
	// failure: every Next call on a closed stream returns it, and
	// Subscribe on a closed stream returns nil after zero deliveries.
	ErrStreamClosed = errors.New("changestreams: stream closed")

	// ErrSynchronousScope is returned by With. Streams poll on
	// background workers and can only be scoped with a context, so the
	// context-free scope is a defined error rather than a degraded mode.
	ErrSynchronousScope = errors.New("changestreams: synchronous scoping is not supported, use WithStream")

	// ErrNoDataYet is returned by Delegate.Poll when the server reported
	// no change documents for the current round. The stream keeps
	// polling; the error never reaches a caller of Next.
	ErrNoDataYet = errors.New("changestreams: no change document available yet")
)

// isTransientErr reports whether err is a network-class failure that the
// resume policy may recover from. Argument errors, server-side operation
// failures and context cancellation are never transient.
func isTransientErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel("ResumableChangeStreamError") ||
			serverErr.HasErrorLabel("NetworkError")
	}
	return false
}
