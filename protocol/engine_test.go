package protocol

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/transport"
)

// scriptSession is a transport.Session fake that records interrupt-out
// writes and can fail a number of them first.
type scriptSession struct {
	desc      transport.DeviceDescriptor
	outs      [][]byte
	outTimes  []time.Time
	failOuts  int
	claimed   map[int]bool
	closed    bool
	readReply []byte
}

func newScriptSession() *scriptSession {
	return &scriptSession{
		desc: transport.DeviceDescriptor{
			Identity: transport.DeviceIdentity{VendorID: 0x045e, ProductID: 0x02ea},
			Interfaces: []transport.InterfaceInfo{{
				Number: 0,
				Endpoints: []transport.EndpointInfo{
					{Address: 0x81, Direction: transport.DirIn, Type: transport.TransferInterrupt, MaxPacketSize: 64},
					{Address: 0x01, Direction: transport.DirOut, Type: transport.TransferInterrupt, MaxPacketSize: 64},
				},
			}},
		},
		claimed: map[int]bool{},
	}
}

func (s *scriptSession) Descriptor() transport.DeviceDescriptor { return s.desc }
func (s *scriptSession) Identity() transport.DeviceIdentity     { return s.desc.Identity }
func (s *scriptSession) Configure() error                       { return nil }
func (s *scriptSession) DetachKernelDriver(int) error           { return nil }
func (s *scriptSession) ClaimInterface(n int) error             { s.claimed[n] = true; return nil }
func (s *scriptSession) ReleaseInterface(n int) error           { delete(s.claimed, n); return nil }
func (s *scriptSession) ClaimedInterfaces() []int {
	var out []int
	for n := range s.claimed {
		out = append(out, n)
	}
	return out
}

func (s *scriptSession) InterruptIn(ep uint8, size int, timeout time.Duration) ([]byte, error) {
	if s.readReply != nil {
		return s.readReply, nil
	}
	return nil, &transport.Error{Kind: transport.KindTimeout, Op: "interrupt_in"}
}

func (s *scriptSession) InterruptOut(ep uint8, data []byte, timeout time.Duration) (int, error) {
	if s.failOuts > 0 {
		s.failOuts--
		return 0, &transport.Error{Kind: transport.KindTimeout, Op: "interrupt_out"}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.outs = append(s.outs, cp)
	s.outTimes = append(s.outTimes, time.Now())
	return len(data), nil
}

func (s *scriptSession) ControlTransfer(reqType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	return len(data), nil
}
func (s *scriptSession) ClearHalt(uint8) error { return nil }
func (s *scriptSession) Reset() error          { return nil }
func (s *scriptSession) Close() error          { s.closed = true; return nil }

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGipHandshakeScript(t *testing.T) {
	sess := newScriptSession()
	eps, err := SelectEndpoints(sess.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, uint8(0x81), eps.In.Address)
	assert.Equal(t, uint8(0x01), eps.Out.Address)

	engine := NewEngine(discard())
	script := ScriptFor(Gip, 0x045e, 0x02ea)
	require.NoError(t, engine.Run(sess, script, eps))

	require.Len(t, sess.outs, 3)
	assert.Equal(t, []byte{0x05, 0x20, 0x00, 0x01, 0x00}, sess.outs[0])
	assert.Equal(t, []byte{0x0a, 0x20, 0x00, 0x03, 0x00, 0x01, 0x14}, sess.outs[1])
	assert.Equal(t, []byte{0x06, 0x20, 0x00, 0x02, 0x01, 0x00}, sess.outs[2])

	// 50 ms spacing between the packets.
	assert.GreaterOrEqual(t, sess.outTimes[1].Sub(sess.outTimes[0]), 50*time.Millisecond)
	assert.GreaterOrEqual(t, sess.outTimes[2].Sub(sess.outTimes[1]), 50*time.Millisecond)
}

func TestInitScriptRetriesTimeouts(t *testing.T) {
	sess := newScriptSession()
	sess.failOuts = 2 // first step succeeds on the third attempt
	eps, err := SelectEndpoints(sess.Descriptor())
	require.NoError(t, err)

	engine := NewEngine(discard())
	require.NoError(t, engine.Run(sess, ScriptFor(Gip, 0x045e, 0x02ea), eps))
	assert.Len(t, sess.outs, 3)
}

func TestInitScriptExhaustsRetries(t *testing.T) {
	sess := newScriptSession()
	sess.failOuts = 100
	eps, err := SelectEndpoints(sess.Descriptor())
	require.NoError(t, err)

	engine := NewEngine(discard())
	err = engine.Run(sess, ScriptFor(Gip, 0x045e, 0x02ea), eps)
	assert.ErrorIs(t, err, ErrInitScriptFailed)
}

func TestScriptOverrides(t *testing.T) {
	// The Elite Series 2 has its own script; other GIP devices use the
	// canonical three packets.
	elite := ScriptFor(Gip, 0x045e, 0x0b00)
	stock := ScriptFor(Gip, 0x045e, 0x02ea)
	require.NotEmpty(t, elite)
	require.NotEmpty(t, stock)
	assert.NotEqual(t, elite[1].Delay, stock[1].Delay)

	// Protocols without a handshake have empty scripts.
	assert.Empty(t, ScriptFor(XInput, 0x045e, 0x028e))
	assert.Empty(t, ScriptFor(Ds4, 0x054c, 0x09cc))
}

func TestSelectEndpointsErrors(t *testing.T) {
	_, err := SelectEndpoints(transport.DeviceDescriptor{})
	assert.ErrorIs(t, err, ErrUnsupportedDevice)

	_, err = SelectEndpoints(transport.DeviceDescriptor{Interfaces: []transport.InterfaceInfo{{
		Number: 0,
		Endpoints: []transport.EndpointInfo{
			{Address: 0x01, Direction: transport.DirOut, Type: transport.TransferInterrupt},
		},
	}}})
	assert.ErrorIs(t, err, ErrUnsupportedDevice)
}
