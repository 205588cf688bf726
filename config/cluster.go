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

import (
	"fmt"
	"time"
)

// Cluster configures the gossip overlay described in spec §4.6.
type Cluster struct {
	Enable                      bool     `yaml:"enable"`
	NodeID                      string   `yaml:"node_id"`
	ClusterName                 string   `yaml:"cluster_name" validate:"required_with=Enable"`
	ClusterPort                 int      `yaml:"cluster_port"`
	BindAddress                 string   `yaml:"bind_address"`
	SeedNodes                   []string `yaml:"seed_nodes"`
	HeartbeatIntervalMs         int      `yaml:"heartbeat_interval_ms"`
	NodeTimeoutMs               int      `yaml:"node_timeout_ms"`
	EnableDeduplication         bool     `yaml:"enable_deduplication"`
	MessageIDCacheExpirySeconds int      `yaml:"message_id_cache_expiry_seconds"`
	ReconnectDelayMs            int      `yaml:"reconnect_delay_ms"`
}

// Enabled reports whether the cluster layer should start.
func (c Cluster) Enabled() bool { return c.Enable }

// Validate checks the cluster config for internal consistency.
func (c Cluster) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if c.ClusterPort == 0 {
		return fmt.Errorf("cluster_port is required")
	}
	return nil
}

// HeartbeatInterval returns HeartbeatIntervalMs, defaulting to 5s.
func (c Cluster) HeartbeatInterval() time.Duration {
	if c.HeartbeatIntervalMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

// NodeTimeout returns NodeTimeoutMs, defaulting to 15s.
func (c Cluster) NodeTimeout() time.Duration {
	if c.NodeTimeoutMs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.NodeTimeoutMs) * time.Millisecond
}

// MessageIDCacheExpiry returns MessageIDCacheExpirySeconds, defaulting
// to 60s.
func (c Cluster) MessageIDCacheExpiry() time.Duration {
	if c.MessageIDCacheExpirySeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.MessageIDCacheExpirySeconds) * time.Second
}

// ReconnectDelay returns ReconnectDelayMs, defaulting to 3s.
func (c Cluster) ReconnectDelay() time.Duration {
	if c.ReconnectDelayMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}
