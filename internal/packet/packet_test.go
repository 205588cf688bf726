package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yunqi/lighthouse/internal/binary"
	"github.com/yunqi/lighthouse/internal/code"
)

func roundTrip(t *testing.T, p Packet) (*FixedHeader, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	assert.NoError(t, p.Encode(buf))
	fh, err := ReadFixedHeader(buf)
	assert.NoError(t, err)
	return fh, buf
}

func TestConnectRoundTripV311(t *testing.T) {
	c := &Connect{
		Version:       V311,
		ProtocolName:  []byte("MQTT"),
		ProtocolLevel: byte(V311),
		ConnectFlags:  ConnectFlags{CleanSession: true, UsernameFlag: true, PasswordFlag: true},
		KeepAlive:     60,
		ClientId:      []byte("client-a"),
		Username:      []byte("alice"),
		Password:      []byte("secret"),
	}
	fh, buf := roundTrip(t, c)
	assert.Equal(t, CONNECT, fh.PacketType)

	got, err := NewConnect(fh, V311, buf)
	assert.NoError(t, err)
	assert.Equal(t, c.ClientId, got.ClientId)
	assert.Equal(t, c.Username, got.Username)
	assert.Equal(t, c.Password, got.Password)
	assert.Equal(t, c.KeepAlive, got.KeepAlive)
	assert.True(t, got.CleanSession)
}

func TestConnectRoundTripV5WithProperties(t *testing.T) {
	props := NewProperties()
	props.SetU32(PropSessionExpiryInterval, 120)
	props.AddUserProperty("a", "1")
	props.AddUserProperty("a", "2") // duplicates allowed, order preserved

	c := &Connect{
		Version:       V500,
		ProtocolName:  []byte("MQTT"),
		ProtocolLevel: byte(V500),
		ConnectFlags:  ConnectFlags{CleanSession: true},
		KeepAlive:     30,
		ClientId:      []byte("client-b"),
		Properties:    props,
	}
	fh, buf := roundTrip(t, c)
	got, err := NewConnect(fh, V500, buf)
	assert.NoError(t, err)
	assert.Equal(t, c.ClientId, got.ClientId)

	ups := got.Properties.UserProperties()
	assert.Len(t, ups, 2)
	assert.Equal(t, "1", ups[0].Value)
	assert.Equal(t, "2", ups[1].Value)
}

func TestConnectEmptyClientIdV311NotCleanRejected(t *testing.T) {
	c := &Connect{
		Version:       V311,
		ProtocolName:  []byte("MQTT"),
		ProtocolLevel: byte(V311),
		ConnectFlags:  ConnectFlags{CleanSession: false},
		ClientId:      []byte(""),
	}
	fh, buf := roundTrip(t, c)
	_, err := NewConnect(fh, V311, buf)
	assert.Error(t, err)
}

func TestPublishRoundTripQoS1(t *testing.T) {
	p := &Publish{
		Version:  V311,
		QoS:      1,
		Topic:    []byte("sensors/kitchen/temp"),
		PacketId: 7,
		Payload:  []byte("25.5"),
	}
	fh, buf := roundTrip(t, p)
	assert.Equal(t, PUBLISH, fh.PacketType)

	got, err := NewPublish(fh, V311, buf)
	assert.NoError(t, err)
	assert.Equal(t, p.Topic, got.Topic)
	assert.Equal(t, p.Payload, got.Payload)
	assert.Equal(t, p.PacketId, got.PacketId)
	assert.Equal(t, byte(1), got.QoS)
}

func TestPublishQoS0DupRejected(t *testing.T) {
	fh := &FixedHeader{PacketType: PUBLISH, Flags: PublishFlagDup, RemainLength: 0}
	_, err := NewPublish(fh, V311, bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestPubrelRequiresReservedFlags(t *testing.T) {
	fh := &FixedHeader{PacketType: PUBREL, Flags: FixedHeaderFlagReserved, RemainLength: 2}
	_, err := NewPubrel(fh, V311, bytes.NewReader([]byte{0, 1}))
	assert.Error(t, err)

	ack := NewAck(PUBREL, V311, 1, code.Success)
	fh2, buf := roundTrip(t, ack)
	got, err := NewPubrel(fh2, V311, buf)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, got.PacketId)
}

func TestSubscribeRoundTrip(t *testing.T) {
	s := &Subscribe{
		Version:  V311,
		PacketId: 9,
		Subscriptions: []Subscription{
			{TopicFilter: []byte("a/+/b/#"), QoS: 2},
			{TopicFilter: []byte("x/y"), QoS: 0},
		},
	}
	fh, buf := roundTrip(t, s)
	got, err := NewSubscribe(fh, V311, buf)
	assert.NoError(t, err)
	assert.Len(t, got.Subscriptions, 2)
	assert.Equal(t, []byte("a/+/b/#"), got.Subscriptions[0].TopicFilter)
	assert.EqualValues(t, 2, got.Subscriptions[0].QoS)
}

func TestSubackRoundTrip(t *testing.T) {
	sa := &Suback{Version: V311, PacketId: 9, Codes: []code.Code{code.GrantedQoS1, code.V3SubscribeFailure}}
	fh, buf := roundTrip(t, sa)
	got, err := NewSuback(fh, V311, buf)
	assert.NoError(t, err)
	assert.Equal(t, sa.Codes, got.Codes)
}

func TestPingreqPingresp(t *testing.T) {
	fh, buf := roundTrip(t, &Pingreq{})
	assert.Equal(t, PINGREQ, fh.PacketType)
	_, err := NewPingreq(fh, V311, buf)
	assert.NoError(t, err)

	fh2, buf2 := roundTrip(t, &Pingresp{})
	assert.Equal(t, PINGRESP, fh2.PacketType)
	_, err = NewPingresp(fh2, V311, buf2)
	assert.NoError(t, err)
}

func TestDisconnectV5PreservesWillOnNonNormalReason(t *testing.T) {
	d := &Disconnect{Version: V500, Code: code.Code(0x04)}
	fh, buf := roundTrip(t, d)
	got, err := NewDisconnect(fh, V500, buf)
	assert.NoError(t, err)
	assert.False(t, got.ClearsWill())
}

func TestDisconnectV311Empty(t *testing.T) {
	d := &Disconnect{Version: V311}
	fh, buf := roundTrip(t, d)
	assert.Zero(t, fh.RemainLength)
	got, err := NewDisconnect(fh, V311, buf)
	assert.NoError(t, err)
	assert.True(t, got.ClearsWill())
}

func TestProtocolHandlerDispatch(t *testing.T) {
	h := NewProtocolHandler(V311)
	p := &Publish{Version: V311, QoS: 0, Topic: []byte("t"), Payload: []byte("v")}
	fh, buf := roundTrip(t, p)
	parsed, err := h.Parse(fh, buf)
	assert.NoError(t, err)
	_, ok := parsed.(*Publish)
	assert.True(t, ok)
}

func TestIllegalV5PropertyIdRejected(t *testing.T) {
	// PropTopicAlias (0x23) is not legal on CONNECT.
	inner := &bytes.Buffer{}
	inner.WriteByte(byte(PropTopicAlias))
	inner.WriteByte(0)
	inner.WriteByte(1)

	buf := &bytes.Buffer{}
	assert.NoError(t, binary.WriteVarInt(buf, uint32(inner.Len())))
	buf.Write(inner.Bytes())

	_, err := ReadProperties(CONNECT, buf)
	assert.Error(t, err)
}
