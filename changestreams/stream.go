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
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"k8s.io/klog/v2"
)

// FullDocument controls whether update events carry the complete
// post-update document. Unrecognized values are passed through and
// rejected by the server on the first poll.
type FullDocument string

const (
	// FullDocumentDefault leaves the server default in place: update
	// events carry only the changed fields.
	FullDocumentDefault FullDocument = ""

	// FullDocumentUpdateLookup makes the server look up and attach the
	// current majority-committed version of the updated document.
	FullDocumentUpdateLookup FullDocument = "updateLookup"
)

// Config is the configuration for a Stream.
type Config struct {
	// FullDocument selects the full-document mode for update events.
	FullDocument FullDocument

	// ResumeAfter is the start position for the stream. When set, the
	// first delivered change is the one following the token.
	ResumeAfter bson.Raw

	// MaxAwaitTime bounds a single server-side wait for new documents.
	// Zero means one second.
	MaxAwaitTime time.Duration

	// BatchSize is the number of documents the server returns per
	// batch. Zero leaves the server default.
	BatchSize int32

	// PollWorkers bounds the worker pool executing blocking cursor
	// calls. Zero means one worker, which is sufficient since a stream
	// keeps at most one poll in flight.
	PollWorkers int
}

type streamState int

const (
	streamUnstarted streamState = iota
	streamActive
	streamClosed
)

// pollResult is the outcome of one bridged delegate call.
type pollResult struct {
	doc     bson.Raw
	err     error
	opening bool
}

// Stream is an asynchronous, resumable change-stream cursor. The
// underlying blocking cursor is created lazily on the first Next call
// and polled on a worker pool, so Next only ever waits on its context.
//
// A Stream is owned by a single consumer; Next must not be called
// concurrently. Close may be called from any goroutine.
type Stream struct {
	opener Opener
	config Config

	mu        sync.Mutex
	state     streamState
	delegate  Delegate
	token     bson.Raw
	exec      *executor
	pending   chan pollResult
	abandoned bool
	resumed   bool
	pollCtx   context.Context
	pollStop  context.CancelFunc
}

// Watch creates a stream of changes on target with the given pipeline
// and default configuration. Every call returns a new, independent
// stream; no watch request is issued until the first Next call.
func Watch(target Target, pipeline interface{}) (*Stream, error) {
	return WatchWithConfig(target, pipeline, Config{})
}

// WatchWithConfig creates a stream of changes on target with the given
// pipeline and configuration. The pipeline is validated immediately,
// before any network call; a non-sequence pipeline fails with
// ErrInvalidPipeline.
func WatchWithConfig(target Target, pipeline interface{}, config Config) (*Stream, error) {
	if err := validatePipeline(pipeline); err != nil {
		return nil, err
	}
	if pipeline == nil {
		pipeline = mongo.Pipeline{}
	}
	return New(&targetOpener{target: target, pipeline: pipeline, config: config}, config), nil
}

// New creates a stream over a custom Opener. Most callers want Watch;
// New is the entry point for wrapping cursors that are not driver
// change streams.
func New(opener Opener, config Config) *Stream {
	return &Stream{
		opener: opener,
		config: config,
	}
}

// Consumer is the interface to consume change documents from a stream.
type Consumer interface {
	Consume(doc ChangeDocument) error
}

// ConsumerFunc type is an adapter to allow the use of ordinary
// functions as Consumer.
type ConsumerFunc func(ChangeDocument) error

// Consume calls f(doc).
func (f ConsumerFunc) Consume(doc ChangeDocument) error {
	return f(doc)
}

// Next returns the next change document, blocking until one arrives, an
// error occurs, or ctx is cancelled. Rounds with no data keep waiting
// without surfacing. After Close, Next fails with ErrStreamClosed.
//
// Cancelling ctx abandons the wait only: the in-flight poll runs to
// completion on its worker and its result is discarded.
func (s *Stream) Next(ctx context.Context) (ChangeDocument, error) {
	for {
		doc, err := s.step(ctx)
		if errors.Is(err, ErrNoDataYet) {
			continue
		}
		return doc, err
	}
}

// Subscribe delivers change documents to consumer until the stream is
// closed, ctx is cancelled, or an error occurs. A closed stream yields
// zero documents and a nil error.
//
// If consumer returns an error, Subscribe stops and returns it.
func (s *Stream) Subscribe(ctx context.Context, consumer Consumer) error {
	for {
		doc, err := s.Next(ctx)
		if errors.Is(err, ErrStreamClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := consumer.Consume(doc); err != nil {
			return err
		}
	}
}

// ResumeToken returns the token of the last delivered change document,
// or the configured start position when nothing was delivered yet.
func (s *Stream) ResumeToken() bson.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil {
		return s.token
	}
	return s.config.ResumeAfter
}

// Close releases the underlying cursor and worker pool. It is
// idempotent. A poll in flight at close time runs to completion on its
// worker and its result is discarded.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = streamClosed
	delegate := s.delegate
	s.delegate = nil
	s.pending = nil
	exec := s.exec
	s.exec = nil
	stop := s.pollStop
	s.mu.Unlock()

	// Unblock any in-flight poll before waiting for the workers.
	if stop != nil {
		stop()
	}

	var errs *multierror.Error
	if delegate != nil {
		if err := delegate.Close(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if exec != nil {
		if err := exec.shutdown(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	klog.V(2).Info("change stream closed")
	return errs.ErrorOrNil()
}

// step performs one poll round. It returns ErrNoDataYet when the caller
// should poll again (empty round, discarded abandoned result, or a
// recovered transient failure).
func (s *Stream) step(ctx context.Context) (ChangeDocument, error) {
	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	if s.pending == nil {
		if !s.startPoll() {
			s.mu.Unlock()
			return nil, ErrStreamClosed
		}
	}
	pending, abandoned := s.pending, s.abandoned
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		s.mu.Lock()
		s.abandoned = true
		s.mu.Unlock()
		return nil, ctx.Err()
	case res := <-pending:
		s.mu.Lock()
		s.pending = nil
		s.abandoned = false
		s.mu.Unlock()
		if abandoned && res.err == nil {
			// The result belonged to a cancelled wait; drop it.
			return nil, ErrNoDataYet
		}
		return s.handleResult(ctx, res)
	}
}

// startPoll submits one bridged delegate call, opening the delegate
// first when none exists. Called with s.mu held.
func (s *Stream) startPoll() bool {
	if s.exec == nil {
		s.exec = newExecutor(s.config.PollWorkers)
		s.pollCtx, s.pollStop = context.WithCancel(context.Background())
	}

	future := make(chan pollResult, 1)
	delegate := s.delegate
	resumeAfter := s.token
	if resumeAfter == nil {
		resumeAfter = s.config.ResumeAfter
	}
	pollCtx := s.pollCtx

	ok := s.exec.submit(func() {
		if delegate == nil {
			opened, err := s.opener.Open(pollCtx, resumeAfter)
			if err != nil {
				future <- pollResult{err: err, opening: true}
				return
			}
			if !s.adoptDelegate(opened) {
				// Closed while the watch request was in flight.
				_ = opened.Close(context.Background())
				future <- pollResult{err: ErrStreamClosed}
				return
			}
			delegate = opened
		}
		doc, err := delegate.Poll(pollCtx)
		future <- pollResult{doc: doc, err: err}
	})
	if ok {
		s.pending = future
	}
	return ok
}

func (s *Stream) adoptDelegate(d Delegate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == streamClosed {
		return false
	}
	s.delegate = d
	s.state = streamActive
	streamsOpened.Inc()
	return true
}

func (s *Stream) handleResult(ctx context.Context, res pollResult) (ChangeDocument, error) {
	if res.err == nil {
		return s.deliver(ctx, res.doc)
	}
	if errors.Is(res.err, ErrNoDataYet) {
		return nil, ErrNoDataYet
	}

	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	if !res.opening && !s.resumed && s.state == streamActive && isTransientErr(res.err) {
		// Transient failure: burn the single retry for this occurrence
		// and reopen from the last observed token on the next round.
		s.resumed = true
		dead := s.delegate
		s.delegate = nil
		s.mu.Unlock()

		if dead != nil {
			_ = dead.Close(context.Background())
		}
		streamResumes.Inc()
		klog.Warningf("change stream poll failed, resuming once: %v", res.err)
		return nil, ErrNoDataYet
	}
	s.mu.Unlock()

	kind := "operation"
	if isTransientErr(res.err) {
		kind = "transient"
	}
	pollErrors.WithLabelValues(kind).Inc()

	// Terminal for this stream: operation failures and repeated
	// transient failures close the cursor as a side effect.
	_ = s.Close(ctx)
	return nil, res.err
}

func (s *Stream) deliver(ctx context.Context, raw bson.Raw) (ChangeDocument, error) {
	doc := ChangeDocument(raw)
	token, err := doc.ResumeToken()
	if err != nil {
		pollErrors.WithLabelValues("missing_resume_token").Inc()
		_ = s.Close(ctx)
		return nil, err
	}

	s.mu.Lock()
	if s.state == streamClosed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	s.token = token
	s.resumed = false
	s.mu.Unlock()

	documentsDelivered.Inc()
	return doc, nil
}

// WithStream acquires s for the duration of fn and always closes it
// when fn returns, whether fn succeeded or failed. The close error is
// reported only when fn itself returned nil.
func WithStream(ctx context.Context, s *Stream, fn func(context.Context, *Stream) error) error {
	err := fn(ctx, s)
	if cerr := s.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// With is the context-free counterpart of WithStream. Streams poll on
// background workers and can only be scoped with a context, so With
// never runs fn and always fails with ErrSynchronousScope.
func With(s *Stream, fn func(*Stream) error) error {
	return ErrSynchronousScope
}
