/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package goroutine provides the broker-wide worker pool used for
// per-connection read loops and the event dispatcher consumer, so a
// burst of connecting clients doesn't spawn an unbounded goroutine per
// socket.
package goroutine

import (
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/yunqi/lighthouse/internal/xlog"
	"go.uber.org/zap"
)

var (
	once sync.Once
	pool *ants.Pool
	log  = xlog.LoggerModule("goroutine")
)

// DefaultPoolSize is used when Init is never called explicitly.
const DefaultPoolSize = 1 << 16

func defaultPool() *ants.Pool {
	once.Do(func() {
		p, err := ants.NewPool(DefaultPoolSize, ants.WithNonblocking(true), ants.WithPanicHandler(func(i interface{}) {
			log.Error("goroutine panic recovered", zap.Any("panic", i))
		}))
		if err != nil {
			panic(err)
		}
		pool = p
	})
	return pool
}

// Init installs a pool with the given capacity, replacing the default.
// Call once during broker startup, before the first Go call.
func Init(capacity int) error {
	p, err := ants.NewPool(capacity, ants.WithNonblocking(true), ants.WithPanicHandler(func(i interface{}) {
		log.Error("goroutine panic recovered", zap.Any("panic", i))
	}))
	if err != nil {
		return err
	}
	pool = p
	once.Do(func() {})
	return nil
}

// Go submits fn to the worker pool. If the pool is saturated it falls
// back to a bare goroutine so callers never block on submission.
func Go(fn func()) {
	p := defaultPool()
	if err := p.Submit(fn); err != nil {
		log.Warn("pool saturated, spawning bare goroutine", zap.Error(err))
		go fn()
	}
}

// Release tears down the pool; call during broker shutdown.
func Release() {
	if pool != nil {
		pool.Release()
	}
}
