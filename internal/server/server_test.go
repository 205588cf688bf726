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

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/packet"
)

func testConfig() *config.Config {
	return &config.Config{
		Mqtt: config.Mqtt{
			BindAddress:              "127.0.0.1",
			Port:                     0,
			AllowAnonymous:           true,
			AllowZeroLenClientId:     true,
			MaxMessageSize:           1 << 20,
			EnableRetainedMessages:   true,
			EnablePersistentSessions: true,
		},
		Persistence: config.Persistence{
			Session:      config.StoreConfig{Type: "memory"},
			Subscription: config.StoreConfig{Type: "memory"},
			Retained:     config.StoreConfig{Type: "memory"},
			Offline:      config.StoreConfig{Type: "memory"},
		},
	}
}

func newRunningBroker(t *testing.T) *Broker {
	b, err := New(testConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, b.ListenAndServe())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Shutdown(ctx)
	})
	return b
}

func sendConnect(t *testing.T, conn net.Conn, clientID string) {
	c := &packet.Connect{
		Version:       packet.V311,
		ProtocolName:  []byte("MQTT"),
		ProtocolLevel: byte(packet.V311),
		ConnectFlags:  packet.ConnectFlags{CleanSession: true},
		KeepAlive:     60,
		ClientId:      []byte(clientID),
	}
	require.NoError(t, c.Encode(conn))
}

func readConnack(t *testing.T, conn net.Conn) *packet.Connack {
	fh, err := packet.ReadFixedHeader(conn)
	require.NoError(t, err)
	require.Equal(t, packet.CONNACK, fh.PacketType)
	ack, err := packet.NewConnack(fh, packet.V311, conn)
	require.NoError(t, err)
	return ack
}

func TestBrokerAcceptsTCPConnectionAndHandshakes(t *testing.T) {
	b := newRunningBroker(t)

	conn, err := net.DialTimeout("tcp", b.TCPAddr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	sendConnect(t, conn, "client-1")
	ack := readConnack(t, conn)
	assert.Equal(t, byte(0), byte(ack.Code))
	assert.False(t, ack.SessionPresent)
	assert.Equal(t, 1, b.Sessions().Count())
}

func TestBrokerShutdownClosesListenerAndSessions(t *testing.T) {
	b, err := New(testConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, b.ListenAndServe())

	conn, err := net.DialTimeout("tcp", b.TCPAddr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	sendConnect(t, conn, "client-2")
	readConnack(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Shutdown(ctx))

	_, err = net.DialTimeout("tcp", b.TCPAddr().String(), 200*time.Millisecond)
	assert.Error(t, err, "listener must be closed after shutdown")
}
