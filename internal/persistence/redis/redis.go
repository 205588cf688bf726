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

// Package redis registers "redis" session/subscription/retained/offline
// store implementations backed by go-redis/redis/v8, for operators who
// need session state to survive a broker restart. It is only wired into
// the binary when blank-imported (see cmd/lighthoused/main.go); the
// default build keeps the in-memory stores registered by
// internal/persistence's own init().
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/message"
	"github.com/yunqi/lighthouse/internal/offline"
	"github.com/yunqi/lighthouse/internal/persistence"
	"github.com/yunqi/lighthouse/internal/persistence/session"
	"github.com/yunqi/lighthouse/internal/persistence/subscription"
	"github.com/yunqi/lighthouse/internal/retained"
	topicmatch "github.com/yunqi/lighthouse/internal/subscription"
)

func newClient(opts *config.RedisStoreOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func key(prefix string, parts ...string) string {
	k := prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func init() {
	persistence.RegisterSessionStore("redis", func(cfg *config.StoreConfig) (session.Store, error) {
		return &sessionStore{client: newClient(&cfg.Redis), prefix: prefixOrDefault(cfg.Redis.KeyPrefix, "lighthouse:session")}, nil
	})
	persistence.RegisterSubscriptionStore("redis", func(cfg *config.StoreConfig) (subscription.Store, error) {
		return &subscriptionStore{client: newClient(&cfg.Redis), prefix: prefixOrDefault(cfg.Redis.KeyPrefix, "lighthouse:sub")}, nil
	})
	persistence.RegisterRetainedStore("redis", func(cfg *config.StoreConfig) (retained.Store, error) {
		return &retainedStore{client: newClient(&cfg.Redis), prefix: prefixOrDefault(cfg.Redis.KeyPrefix, "lighthouse:retained")}, nil
	})
	persistence.RegisterOfflineQueue("redis", func(cfg *config.StoreConfig) (offline.Queue, error) {
		return &offlineQueue{client: newClient(&cfg.Redis), prefix: prefixOrDefault(cfg.Redis.KeyPrefix, "lighthouse:offline")}, nil
	})
}

func prefixOrDefault(p, def string) string {
	if p == "" {
		return def
	}
	return p
}

const redisOpTimeout = 5 * time.Second

// --- session ---

type sessionStore struct {
	client *redis.Client
	prefix string
}

func (s *sessionStore) Put(rec *session.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(s.prefix, rec.ClientID), b, 0).Err()
}

func (s *sessionStore) Get(clientID string) (*session.Record, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	b, err := s.client.Get(ctx, key(s.prefix, clientID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec := &session.Record{}
	if err := json.Unmarshal(b, rec); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *sessionStore) Delete(clientID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.Del(ctx, key(s.prefix, clientID)).Err()
}

func (s *sessionStore) Expired(now time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	keys, err := s.client.Keys(ctx, key(s.prefix, "*")).Result()
	if err != nil {
		return nil, err
	}
	var expired []string
	for _, k := range keys {
		b, err := s.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		rec := &session.Record{}
		if err := json.Unmarshal(b, rec); err != nil {
			continue
		}
		if !rec.ExpiryDeadline.IsZero() && rec.ExpiryDeadline.Before(now) {
			expired = append(expired, rec.ClientID)
		}
	}
	return expired, nil
}

// --- subscription ---

type subscriptionStore struct {
	client *redis.Client
	prefix string
}

func (s *subscriptionStore) Put(clientID string, entries []subscription.Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(s.prefix, clientID), b, 0).Err()
}

func (s *subscriptionStore) Get(clientID string) ([]subscription.Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	b, err := s.client.Get(ctx, key(s.prefix, clientID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []subscription.Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *subscriptionStore) Delete(clientID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.Del(ctx, key(s.prefix, clientID)).Err()
}

// --- retained ---

type retainedStore struct {
	client *redis.Client
	prefix string
}

func (r *retainedStore) Publish(msg *message.ApplicationMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if msg.IsDeleteRetained() {
		r.client.HDel(ctx, r.prefix, msg.Topic)
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	r.client.HSet(ctx, r.prefix, msg.Topic, b)
}

func (r *retainedStore) all(ctx context.Context) ([]*message.ApplicationMessage, error) {
	vals, err := r.client.HGetAll(ctx, r.prefix).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*message.ApplicationMessage, 0, len(vals))
	for _, v := range vals {
		m := &message.ApplicationMessage{}
		if err := json.Unmarshal([]byte(v), m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *retainedStore) Match(filter string) []*message.ApplicationMessage {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	all, err := r.all(ctx)
	if err != nil {
		return nil
	}
	var out []*message.ApplicationMessage
	for _, m := range all {
		if topicmatch.Matches(filter, m.Topic) {
			out = append(out, m)
		}
	}
	return out
}

func (r *retainedStore) Get(topic string) (*message.ApplicationMessage, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	v, err := r.client.HGet(ctx, r.prefix, topic).Bytes()
	if err != nil {
		return nil, false
	}
	m := &message.ApplicationMessage{}
	if err := json.Unmarshal(v, m); err != nil {
		return nil, false
	}
	return m, true
}

func (r *retainedStore) All() []*message.ApplicationMessage {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	all, _ := r.all(ctx)
	return all
}

func (r *retainedStore) Install(msgs []*message.ApplicationMessage) {
	for _, m := range msgs {
		r.Publish(m)
	}
}

// --- offline ---

type offlineQueue struct {
	client *redis.Client
	prefix string
}

func (q *offlineQueue) Push(clientID string, msg *message.ApplicationMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	q.client.RPush(ctx, key(q.prefix, clientID), b)
}

func (q *offlineQueue) Drain(clientID string) []*message.ApplicationMessage {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	k := key(q.prefix, clientID)
	vals, err := q.client.LRange(ctx, k, 0, -1).Result()
	if err != nil {
		return nil
	}
	q.client.Del(ctx, k)
	out := make([]*message.ApplicationMessage, 0, len(vals))
	for _, v := range vals {
		m := &message.ApplicationMessage{}
		if err := json.Unmarshal([]byte(v), m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (q *offlineQueue) Len(clientID string) int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	n, err := q.client.LLen(ctx, key(q.prefix, clientID)).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (q *offlineQueue) Discard(clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	q.client.Del(ctx, key(q.prefix, clientID))
}
