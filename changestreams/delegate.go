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
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// defaultMaxAwaitTime bounds a single server-side wait so that a poll
// round returns periodically even when no changes arrive.
const defaultMaxAwaitTime = time.Second

// Target is the scope a change stream watches. *mongo.Collection,
// *mongo.Database and *mongo.Client all satisfy it, covering
// collection-, database- and deployment-level streams.
type Target interface {
	Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (*mongo.ChangeStream, error)
}

var (
	_ Target = (*mongo.Client)(nil)
	_ Target = (*mongo.Database)(nil)
	_ Target = (*mongo.Collection)(nil)
)

// Delegate is the blocking cursor wrapped by a Stream. Poll blocks the
// calling goroutine until a change document arrives, the server reports
// no data for the round (ErrNoDataYet), or the cursor fails. A delegate
// is only ever polled by one worker at a time.
type Delegate interface {
	Poll(ctx context.Context) (bson.Raw, error)
	ResumeToken() bson.Raw
	Close(ctx context.Context) error
}

// Opener issues the watch request that creates a Delegate. The stream
// calls it lazily on first consumption and again when resuming, with
// resumeAfter set to the last token it observed (nil on the first open
// when no start position was configured).
type Opener interface {
	Open(ctx context.Context, resumeAfter bson.Raw) (Delegate, error)
}

// targetOpener opens driver change streams against a Target.
type targetOpener struct {
	target   Target
	pipeline interface{}
	config   Config
}

func (o *targetOpener) Open(ctx context.Context, resumeAfter bson.Raw) (Delegate, error) {
	cs, err := o.target.Watch(ctx, o.pipeline, o.streamOptions(resumeAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}
	return &driverDelegate{cs: cs}, nil
}

func (o *targetOpener) streamOptions(resumeAfter bson.Raw) *options.ChangeStreamOptions {
	opts := options.ChangeStream()
	if o.config.FullDocument != "" {
		opts.SetFullDocument(options.FullDocument(o.config.FullDocument))
	}
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}
	maxAwait := o.config.MaxAwaitTime
	if maxAwait == 0 {
		maxAwait = defaultMaxAwaitTime
	}
	opts.SetMaxAwaitTime(maxAwait)
	if o.config.BatchSize > 0 {
		opts.SetBatchSize(o.config.BatchSize)
	}
	return opts
}

// driverDelegate adapts *mongo.ChangeStream to the Delegate contract.
// The driver cursor is not safe for concurrent use, so Poll and Close
// serialize on a mutex; Close callers rely on the stream cancelling the
// poll context first.
type driverDelegate struct {
	mu sync.Mutex
	cs *mongo.ChangeStream
}

func (d *driverDelegate) Poll(ctx context.Context) (bson.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cs.TryNext(ctx) {
		// Current is only valid until the next cursor call.
		doc := make(bson.Raw, len(d.cs.Current))
		copy(doc, d.cs.Current)
		return doc, nil
	}
	if err := d.cs.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoDataYet
}

func (d *driverDelegate) ResumeToken() bson.Raw {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cs.ResumeToken()
}

func (d *driverDelegate) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cs.Close(ctx)
}

// validatePipeline rejects pipeline arguments that are not ordered
// sequences. Stage order is significant in an aggregation, so maps and
// scalars fail before any watch request is issued.
func validatePipeline(pipeline interface{}) error {
	if pipeline == nil {
		return nil
	}
	v := reflect.ValueOf(pipeline)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("%w, got %T", ErrInvalidPipeline, pipeline)
	}
	return nil
}
