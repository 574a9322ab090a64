/*
 (c) Copyright [2024] The sfadmin Authors.
 Licensed under the Apache License, Version 2.0 (the "License");
 You may not use this file except in compliance with the License.
 You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package executor fans work out over a fixed number of worker goroutines
// and hands back one future per submitted task.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
)

// Task is the unit of work run by the pool. The printer it receives is
// prefixed with the tag the task was submitted with.
type Task[T any] func(ctx context.Context, log vlog.Printer) (T, error)

type job struct {
	run func()
}

// Pool is a fixed-size set of workers reading one shared queue
type Pool struct {
	ctx     context.Context
	log     vlog.Printer
	size    int
	queue   chan job
	closeMu sync.Mutex
	closed  bool
	workers sync.WaitGroup
}

var (
	poolInstance *Pool
	once         sync.Once
)

// Global returns the per-process pool, created on first use with
// util.Defaults.ParallelMax workers. Defaults must not change afterwards.
func Global() *Pool {
	once.Do(func() {
		poolInstance = NewPool(context.Background(), *vlog.GetGlobalLogger(), util.Defaults.ParallelMax)
	})
	return poolInstance
}

// NewPool starts size workers. A non-positive size falls back to the
// default parallelism.
func NewPool(ctx context.Context, log vlog.Printer, size int) *Pool {
	if size <= 0 {
		size = util.DefaultParallelMax
	}
	pool := &Pool{
		ctx:   ctx,
		log:   log,
		size:  size,
		queue: make(chan job),
	}
	for i := 0; i < size; i++ {
		pool.workers.Add(1)
		go pool.work()
	}
	return pool
}

// Size is the number of workers
func (pool *Pool) Size() int {
	return pool.size
}

func (pool *Pool) work() {
	defer pool.workers.Done()
	for j := range pool.queue {
		j.run()
	}
}

// Close stops accepting tasks and waits for the running ones. It must not
// race with Submit.
func (pool *Pool) Close() {
	pool.closeMu.Lock()
	if !pool.closed {
		pool.closed = true
		close(pool.queue)
	}
	pool.closeMu.Unlock()
	pool.workers.Wait()
}

// Future is the handle of one submitted task
type Future[T any] struct {
	Tag    string
	done   chan struct{}
	result T
	err    error
}

// Wait blocks until the task finishes and returns its result. The task's
// error, if any, is returned unchanged.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.result, f.err
}

// Done is closed when the task finishes
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Submit queues fn on the pool. It blocks while every worker is busy, which
// bounds the number of in-flight RPCs to the pool size.
func Submit[T any](pool *Pool, tag string, fn Task[T]) *Future[T] {
	future := &Future[T]{Tag: tag, done: make(chan struct{})}
	taskLog := pool.log.WithPrefix(tag)
	run := func() {
		defer close(future.done)
		defer func() {
			if r := recover(); r != nil {
				taskLog.Error(nil, "task panicked", "stack", string(debug.Stack()))
				future.err = fmt.Errorf("task %s panicked: %v", tag, r)
			}
		}()
		if err := pool.ctx.Err(); err != nil {
			future.err = err
			return
		}
		future.result, future.err = fn(pool.ctx, taskLog)
	}

	pool.closeMu.Lock()
	closed := pool.closed
	pool.closeMu.Unlock()
	if closed {
		future.err = fmt.Errorf("task %s submitted to a closed pool", tag)
		close(future.done)
		return future
	}
	pool.queue <- job{run: run}
	return future
}

// Result is one entry returned by WaitAll
type Result[T any] struct {
	Tag   string
	Value T
	Err   error
}

// WaitAll waits for every future and returns the results in submission
// order, along with the first error seen in that order.
func WaitAll[T any](futures []*Future[T]) ([]Result[T], error) {
	results := make([]Result[T], 0, len(futures))
	var firstErr error
	for _, f := range futures {
		value, err := f.Wait()
		results = append(results, Result[T]{Tag: f.Tag, Value: value, Err: err})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// Map submits fn once per tag and waits for all of them
func Map[T any](pool *Pool, tags []string, fn func(ctx context.Context, log vlog.Printer, tag string) (T, error)) ([]Result[T], error) {
	futures := make([]*Future[T], 0, len(tags))
	for _, tag := range tags {
		tag := tag
		futures = append(futures, Submit(pool, tag, func(ctx context.Context, log vlog.Printer) (T, error) {
			return fn(ctx, log, tag)
		}))
	}
	return WaitAll(futures)
}
