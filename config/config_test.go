package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidateRequiresPort(t *testing.T) {
	c := &Config{Mqtt: Mqtt{BindAddress: "0.0.0.0", MaxMessageSize: 1024}}
	err := c.Validate()
	assert.Error(t, err)
}

func TestConfigValidateOK(t *testing.T) {
	c := &Config{Mqtt: Mqtt{BindAddress: "0.0.0.0", Port: 1883, MaxMessageSize: 1024}}
	assert.NoError(t, c.Validate())
}

func TestConfigValidateTLSRequiresCertificate(t *testing.T) {
	c := &Config{Mqtt: Mqtt{BindAddress: "0.0.0.0", Port: 1883, MaxMessageSize: 1024, UseTLS: true}}
	assert.Error(t, c.Validate())
}

func TestBridgeValidateRequiresRules(t *testing.T) {
	b := Bridge{Name: "parent", RemoteHost: "h", RemotePort: 1883}
	assert.Error(t, b.Validate())
}

func TestMqttToleranceDefault(t *testing.T) {
	m := Mqtt{}
	assert.Equal(t, 1.5, m.Tolerance())
}

func TestClusterDefaults(t *testing.T) {
	c := Cluster{}
	assert.Equal(t, 5000, int(c.HeartbeatInterval().Milliseconds()))
	assert.Equal(t, 15000, int(c.NodeTimeout().Milliseconds()))
	assert.Equal(t, 60, int(c.MessageIDCacheExpiry().Seconds()))
}
