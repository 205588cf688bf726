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

package config

// StoreConfig names which persistence.Store implementation to load
// ("memory" or "redis") and its backend-specific options.
type StoreConfig struct {
	Type  string            `yaml:"type"`
	Redis RedisStoreOptions `yaml:"redis"`
}

// RedisStoreOptions configures the optional Redis-backed store, per
// spec §10/§11: the default/in-memory store satisfies the Non-goal of
// "not a persistent disk store", Redis is the pluggable alternative.
type RedisStoreOptions struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Persistence groups the store configuration for sessions, retained
// messages and offline queues.
type Persistence struct {
	Session      StoreConfig `yaml:"session"`
	Subscription StoreConfig `yaml:"subscription"`
	Retained     StoreConfig `yaml:"retained"`
	Offline      StoreConfig `yaml:"offline"`
}
