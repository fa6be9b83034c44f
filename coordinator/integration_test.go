package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/manager"
	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/processor"
	"github.com/Alia5/HIDRA/profile"
	"github.com/Alia5/HIDRA/transport"
)

// scriptedBus is a transport.Bus whose hotplug events and device reads are
// driven by the test.
type scriptedBus struct {
	mu       sync.Mutex
	descs    []transport.DeviceDescriptor
	sessions []*scriptedSession
	events   chan transport.HotplugEvent
}

type scriptedSession struct {
	desc  transport.DeviceDescriptor
	reads chan readResult

	mu      sync.Mutex
	claimed map[int]bool
	closed  bool
}

type readResult struct {
	data []byte
	err  error
}

func newScriptedBus(descs ...transport.DeviceDescriptor) *scriptedBus {
	return &scriptedBus{
		descs:  descs,
		events: make(chan transport.HotplugEvent, 8),
	}
}

func (b *scriptedBus) Enumerate() ([]transport.DeviceDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]transport.DeviceDescriptor(nil), b.descs...), nil
}

func (b *scriptedBus) Open(id transport.DeviceIdentity) (transport.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.descs {
		if d.Identity.SameModel(id) {
			s := &scriptedSession{desc: d, reads: make(chan readResult, 16), claimed: map[int]bool{}}
			b.sessions = append(b.sessions, s)
			return s, nil
		}
	}
	return nil, &transport.Error{Kind: transport.KindNotFound, Op: "open"}
}

func (b *scriptedBus) Hotplug(ctx context.Context) (<-chan transport.HotplugEvent, error) {
	out := make(chan transport.HotplugEvent)
	go func() {
		defer close(out)
		for {
			select {
			case ev := <-b.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *scriptedBus) Close() error { return nil }

func (b *scriptedBus) session(i int) *scriptedSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.sessions) {
		return nil
	}
	return b.sessions[i]
}

func (s *scriptedSession) Descriptor() transport.DeviceDescriptor { return s.desc }
func (s *scriptedSession) Identity() transport.DeviceIdentity     { return s.desc.Identity }
func (s *scriptedSession) Configure() error                       { return nil }
func (s *scriptedSession) DetachKernelDriver(int) error           { return nil }

func (s *scriptedSession) ClaimInterface(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimed[n] = true
	return nil
}

func (s *scriptedSession) ReleaseInterface(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, n)
	return nil
}

func (s *scriptedSession) ClaimedInterfaces() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for n := range s.claimed {
		out = append(out, n)
	}
	return out
}

func (s *scriptedSession) InterruptIn(ep uint8, size int, timeout time.Duration) ([]byte, error) {
	select {
	case r := <-s.reads:
		return r.data, r.err
	case <-time.After(5 * time.Millisecond):
		return nil, &transport.Error{Kind: transport.KindTimeout, Op: "interrupt_in"}
	}
}

func (s *scriptedSession) InterruptOut(ep uint8, data []byte, timeout time.Duration) (int, error) {
	return len(data), nil
}

func (s *scriptedSession) ControlTransfer(reqType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	return len(data), nil
}
func (s *scriptedSession) ClearHalt(uint8) error { return nil }
func (s *scriptedSession) Reset() error          { return nil }

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func xinputDescriptor() transport.DeviceDescriptor {
	return transport.DeviceDescriptor{
		Identity: transport.DeviceIdentity{VendorID: 0x045e, ProductID: 0x028e, Bus: 1, Address: 2},
		Product:  "wired 360 pad",
		Interfaces: []transport.InterfaceInfo{{
			Number: 0,
			Endpoints: []transport.EndpointInfo{
				{Address: 0x81, Direction: transport.DirIn, Type: transport.TransferInterrupt, MaxPacketSize: 32},
				{Address: 0x01, Direction: transport.DirOut, Type: transport.TransferInterrupt, MaxPacketSize: 32},
			},
		}},
	}
}

func TestAttachMapDetachEndToEnd(t *testing.T) {
	desc := xinputDescriptor()
	bus := newScriptedBus(desc)
	rec := output.NewRecorder()
	store := newMemStore(profile.Profile{Name: "any", Version: 1, Mappings: []profile.ButtonMapping{
		{Button: "B", KeyCode: 48},
	}})

	cfg := Config{Manager: manager.Config{
		ReadTimeout: 10 * time.Millisecond,
		Processor:   processor.Config{},
	}}
	c := New(bus, store, rec, nil, cfg, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = c.Run(ctx); close(done) }()

	bus.events <- transport.HotplugEvent{Kind: transport.Attached, Descriptor: desc, Identity: desc.Identity}

	require.Eventually(t, func() bool { return bus.session(0) != nil }, time.Second, 5*time.Millisecond)
	sess := bus.session(0)

	// Hold B, mapped through the wildcard profile.
	sess.reads <- readResult{data: []byte{0x02, 0x80, 0x80, 0x80, 0x80, 0x00, 0x00, 0x00}}
	require.Eventually(t, func() bool { return rec.Held() == 1 }, time.Second, 5*time.Millisecond)

	// Unplug while held: the key must come back up and the session close.
	bus.events <- transport.HotplugEvent{Kind: transport.Detached, Identity: desc.Identity}
	require.Eventually(t, func() bool { return rec.Held() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return sess.isClosed() }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sess.ClaimedInterfaces())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop")
	}
}

func TestProfileSavePropagatesToSession(t *testing.T) {
	desc := xinputDescriptor()
	bus := newScriptedBus(desc)
	rec := output.NewRecorder()
	store := newMemStore(profile.Profile{Name: "any", Version: 1, Mappings: []profile.ButtonMapping{
		{Button: "A", KeyCode: 30},
	}})

	cfg := Config{Manager: manager.Config{
		ReadTimeout: 10 * time.Millisecond,
		Processor:   processor.Config{},
	}}
	c := New(bus, store, rec, nil, cfg, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	bus.events <- transport.HotplugEvent{Kind: transport.Attached, Descriptor: desc, Identity: desc.Identity}
	require.Eventually(t, func() bool { return bus.session(0) != nil }, time.Second, 5*time.Millisecond)
	sess := bus.session(0)

	held := []byte{0x01, 0x80, 0x80, 0x80, 0x80, 0x00, 0x00, 0x00}
	sess.reads <- readResult{data: held}
	require.Eventually(t, func() bool { return rec.Held() == 1 }, time.Second, 5*time.Millisecond)

	// Saving a new mapping for the wildcard profile re-binds the held key.
	c.OnProfileSaved(profile.Profile{Name: "any", Version: 1, Mappings: []profile.ButtonMapping{
		{Button: "A", KeyCode: 31},
	}})

	require.Eventually(t, func() bool {
		select {
		case sess.reads <- readResult{data: held}:
		default:
		}
		for _, op := range rec.Ops() {
			if op.Op == "down" && op.Code == 31 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
