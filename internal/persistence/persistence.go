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

// Package persistence is the store registry: it maps the
// config.StoreConfig.Type name ("memory", "redis", ...) an operator
// picks for each of session/subscription/retained/offline storage to
// the concrete constructor, the way database/sql maps a driver name to
// a driver.Driver. Backends register themselves from their own init(),
// internal/persistence/redis included only when blank-imported.
package persistence

import (
	"sync"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/offline"
	"github.com/yunqi/lighthouse/internal/persistence/session"
	"github.com/yunqi/lighthouse/internal/persistence/subscription"
	"github.com/yunqi/lighthouse/internal/retained"
)

type (
	// SessionStoreFactory builds a session.Store from backend options.
	SessionStoreFactory func(cfg *config.StoreConfig) (session.Store, error)
	// SubscriptionStoreFactory builds a subscription.Store from backend options.
	SubscriptionStoreFactory func(cfg *config.StoreConfig) (subscription.Store, error)
	// RetainedStoreFactory builds a retained.Store from backend options.
	RetainedStoreFactory func(cfg *config.StoreConfig) (retained.Store, error)
	// OfflineQueueFactory builds an offline.Queue from backend options.
	OfflineQueueFactory func(cfg *config.StoreConfig) (offline.Queue, error)
)

var (
	mu                sync.RWMutex
	sessionStores      = map[string]SessionStoreFactory{}
	subscriptionStores = map[string]SubscriptionStoreFactory{}
	retainedStores     = map[string]RetainedStoreFactory{}
	offlineQueues      = map[string]OfflineQueueFactory{}
)

func RegisterSessionStore(name string, f SessionStoreFactory) {
	mu.Lock()
	defer mu.Unlock()
	sessionStores[name] = f
}

func RegisterSubscriptionStore(name string, f SubscriptionStoreFactory) {
	mu.Lock()
	defer mu.Unlock()
	subscriptionStores[name] = f
}

func RegisterRetainedStore(name string, f RetainedStoreFactory) {
	mu.Lock()
	defer mu.Unlock()
	retainedStores[name] = f
}

func RegisterOfflineQueue(name string, f OfflineQueueFactory) {
	mu.Lock()
	defer mu.Unlock()
	offlineQueues[name] = f
}

// GetSessionStore looks up the factory registered under name.
func GetSessionStore(name string) (SessionStoreFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := sessionStores[name]
	return f, ok
}

// GetSubscriptionStore looks up the factory registered under name.
func GetSubscriptionStore(name string) (SubscriptionStoreFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := subscriptionStores[name]
	return f, ok
}

// GetRetainedStore looks up the factory registered under name.
func GetRetainedStore(name string) (RetainedStoreFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := retainedStores[name]
	return f, ok
}

// GetOfflineQueue looks up the factory registered under name.
func GetOfflineQueue(name string) (OfflineQueueFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := offlineQueues[name]
	return f, ok
}

func init() {
	RegisterSessionStore("memory", func(*config.StoreConfig) (session.Store, error) {
		return session.NewMemoryStore(), nil
	})
	RegisterSubscriptionStore("memory", func(*config.StoreConfig) (subscription.Store, error) {
		return subscription.NewMemoryStore(), nil
	})
	RegisterRetainedStore("memory", func(*config.StoreConfig) (retained.Store, error) {
		return retained.NewMemoryStore(), nil
	})
	RegisterOfflineQueue("memory", func(cfg *config.StoreConfig) (offline.Queue, error) {
		return offline.NewMemoryQueue(0), nil
	})
}
