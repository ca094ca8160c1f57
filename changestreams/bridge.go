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
	"sync"

	"golang.org/x/sync/errgroup"
)

// executor is a bounded worker pool for blocking delegate calls. A
// submitted task runs to completion on a worker; callers observe the
// outcome through a channel of their own and may stop waiting at any
// time without affecting the worker.
type executor struct {
	group *errgroup.Group

	mu     sync.Mutex
	tasks  chan func()
	closed bool
}

func newExecutor(workers int) *executor {
	if workers <= 0 {
		workers = 1
	}
	e := &executor{
		group: new(errgroup.Group),
		tasks: make(chan func(), workers),
	}
	for i := 0; i < workers; i++ {
		e.group.Go(func() error {
			for task := range e.tasks {
				task()
			}
			return nil
		})
	}
	return e
}

// submit queues task for execution. It reports false when the executor
// is shut down or the queue is full; the stream never has more than one
// task outstanding, so a full queue only occurs on misuse.
func (e *executor) submit(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	select {
	case e.tasks <- task:
		return true
	default:
		return false
	}
}

// shutdown stops accepting tasks and waits for in-flight ones. Blocking
// calls cannot be preempted, so the caller must unblock them (by
// cancelling their context) before shutdown returns.
func (e *executor) shutdown() error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.tasks)
	}
	e.mu.Unlock()

	return e.group.Wait()
}
