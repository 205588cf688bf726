package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/binary"
	"github.com/yunqi/lighthouse/internal/code"
	"github.com/yunqi/lighthouse/internal/hooks"
	"github.com/yunqi/lighthouse/internal/packet"
	"github.com/yunqi/lighthouse/internal/pipeline"
	"github.com/yunqi/lighthouse/internal/retained"
	"github.com/yunqi/lighthouse/internal/transport"
)

func newTestManager() *Manager {
	cfg := &config.Mqtt{
		AllowAnonymous:           true,
		AllowZeroLenClientId:     true,
		MaxMessageSize:           1 << 20,
		EnablePersistentSessions: true,
	}
	pipe := pipeline.New(retained.NewMemoryStore(), hooks.NewRegistry(), cfg.MaxMessageSize)
	return NewManager(Deps{
		Config:   cfg,
		Pipeline: pipe,
		Hooks:    hooks.NewRegistry(),
	})
}

func dialPair(t *testing.T) (transport.Conn, net.Conn) {
	server, client := net.Pipe()
	return transport.NewTCPConn(server), client
}

func sendConnect(t *testing.T, client net.Conn, clientID string) {
	c := &packet.Connect{
		Version:       packet.V311,
		ProtocolName:  []byte("MQTT"),
		ProtocolLevel: byte(packet.V311),
		ConnectFlags:  packet.ConnectFlags{CleanSession: true},
		KeepAlive:     60,
		ClientId:      []byte(clientID),
	}
	require.NoError(t, c.Encode(client))
}

func readConnack(t *testing.T, client net.Conn) *packet.Connack {
	fh, err := packet.ReadFixedHeader(client)
	require.NoError(t, err)
	require.Equal(t, packet.CONNACK, fh.PacketType)
	ack, err := packet.NewConnack(fh, packet.V311, client)
	require.NoError(t, err)
	return ack
}

func TestHandleConnectionAcceptsCleanSession(t *testing.T) {
	m := newTestManager()
	serverConn, client := dialPair(t)
	defer client.Close()

	done := make(chan struct{})
	go func() {
		m.HandleConnection(serverConn)
		close(done)
	}()

	sendConnect(t, client, "c1")
	ack := readConnack(t, client)
	assert.Equal(t, byte(0), byte(ack.Code))
	assert.False(t, ack.SessionPresent)

	require.Eventually(t, func() bool { return m.Count() == 1 }, time.Second, time.Millisecond)
}

func TestHandleConnectionRejectsEmptyClientIdNotClean(t *testing.T) {
	m := newTestManager()
	m.deps.Config.AllowZeroLenClientId = false
	serverConn, client := dialPair(t)
	defer client.Close()

	go m.HandleConnection(serverConn)

	c := &packet.Connect{
		Version:       packet.V311,
		ProtocolName:  []byte("MQTT"),
		ProtocolLevel: byte(packet.V311),
		ConnectFlags:  packet.ConnectFlags{CleanSession: false},
		KeepAlive:     60,
		ClientId:      []byte(""),
	}
	require.NoError(t, c.Encode(client))

	ack := readConnack(t, client)
	assert.Equal(t, byte(2), byte(ack.Code))
}

func TestHandleConnectionRejectsOversizedRemainingLengthWithoutReadingBody(t *testing.T) {
	m := newTestManager()
	m.deps.Config.MaxMessageSize = 10
	serverConn, client := dialPair(t)
	defer client.Close()

	done := make(chan struct{})
	go func() {
		m.HandleConnection(serverConn)
		close(done)
	}()

	// A CONNECT fixed header claiming a remaining length far beyond
	// MaxMessageSize; the body is deliberately never written, so the
	// handshake can only have returned by rejecting on the header
	// alone, not by blocking on (or allocating a buffer for) the body.
	_, err := client.Write([]byte{byte(packet.CONNECT) << 4})
	require.NoError(t, err)
	require.NoError(t, binary.WriteVarInt(client, 1<<20))

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, m.Count())
}

func TestQoS2PublishCompletesWithPubrecPubrelPubcomp(t *testing.T) {
	m := newTestManager()
	serverConn, client := dialPair(t)
	defer client.Close()

	go m.HandleConnection(serverConn)

	sendConnect(t, client, "c1")
	readConnack(t, client)

	pub := &packet.Publish{Version: packet.V311, QoS: 2, Topic: []byte("a/b"), PacketId: 7, Payload: []byte("x")}
	require.NoError(t, pub.Encode(client))

	fh, err := packet.ReadFixedHeader(client)
	require.NoError(t, err)
	require.Equal(t, packet.PUBREC, fh.PacketType)
	rec, err := packet.NewPubrec(fh, packet.V311, client)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), rec.PacketId)

	rel := packet.NewAck(packet.PUBREL, packet.V311, 7, code.Success)
	require.NoError(t, rel.Encode(client))

	fh, err = packet.ReadFixedHeader(client)
	require.NoError(t, err)
	require.Equal(t, packet.PUBCOMP, fh.PacketType)
	comp, err := packet.NewPubcomp(fh, packet.V311, client)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), comp.PacketId)
}
