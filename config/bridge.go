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

// BridgeRule is one upstream- or downstream-rule entry (spec §4.7 /
// §6 "A bridge rule").
type BridgeRule struct {
	LocalTopicFilter  string `yaml:"local_topic_filter" validate:"required"`
	RemoteTopicPrefix string `yaml:"remote_topic_prefix"`
	LocalTopicPrefix  string `yaml:"local_topic_prefix"`
	QoS               *byte  `yaml:"qos"`
	Enabled           bool   `yaml:"enabled"`
}

// Bridge configures one outbound MQTT client the broker runs against a
// remote broker (spec §4.7 / §6).
type Bridge struct {
	Name              string       `yaml:"name" validate:"required"`
	RemoteHost        string       `yaml:"remote_host" validate:"required"`
	RemotePort        int          `yaml:"remote_port" validate:"required"`
	ClientID          string       `yaml:"client_id"`
	Username          string       `yaml:"username"`
	Password          string       `yaml:"password"`
	UseTLS            bool         `yaml:"use_tls"`
	ProtocolVersion   byte         `yaml:"protocol_version"`
	KeepAliveSeconds  uint16       `yaml:"keep_alive_seconds"`
	ReconnectDelayMs  int          `yaml:"reconnect_delay_ms"`
	UpstreamRules     []BridgeRule `yaml:"upstream_rules"`
	DownstreamRules   []BridgeRule `yaml:"downstream_rules"`
	QoS               byte         `yaml:"qos"`
	SyncRetainFlag    bool         `yaml:"sync_retain_flag"`
	SyncRetained      bool         `yaml:"sync_retained_messages"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout_seconds"`
}

// Validate checks structural requirements of a bridge entry.
func (b Bridge) Validate() error {
	if len(b.UpstreamRules) == 0 && len(b.DownstreamRules) == 0 {
		return fmt.Errorf("bridge %q has no upstream or downstream rules", b.Name)
	}
	return nil
}

// ReconnectDelay returns ReconnectDelayMs, defaulting to 5s.
func (b Bridge) ReconnectDelay() time.Duration {
	if b.ReconnectDelayMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(b.ReconnectDelayMs) * time.Millisecond
}

// Timeout returns ConnectionTimeout, defaulting to 10s.
func (b Bridge) Timeout() time.Duration {
	if b.ConnectionTimeout <= 0 {
		return 10 * time.Second
	}
	return b.ConnectionTimeout
}
