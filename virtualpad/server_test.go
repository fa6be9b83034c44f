package virtualpad

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/internal/log"
	"github.com/Alia5/HIDRA/usbip"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func startService(t *testing.T) (*Service, DeviceID) {
	t.Helper()
	svc := NewService(ServerConfig{Addr: "127.0.0.1:0"}, discard(), log.NewRaw(nil))
	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Close() })

	id, err := svc.Create(0x1234, 0x5678, "test pad")
	require.NoError(t, err)
	return svc, id
}

func dial(t *testing.T, svc *Service) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", svc.Addr(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestDevListReportsThePad(t *testing.T) {
	svc, id := startService(t)
	conn := dial(t, svc)

	req := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqDevlist}
	require.NoError(t, req.Write(conn))

	var hdr [8]byte
	require.NoError(t, usbip.ReadExactly(conn, hdr[:]))
	assert.Equal(t, uint16(usbip.OpRepDevlist), binary.BigEndian.Uint16(hdr[2:4]))

	var n [4]byte
	require.NoError(t, usbip.ReadExactly(conn, n[:]))
	require.Equal(t, uint32(1), binary.BigEndian.Uint32(n[:]))

	entry := make([]byte, 312+4) // fixed part + one interface triplet
	require.NoError(t, usbip.ReadExactly(conn, entry))

	busid := string(bytes.TrimRight(entry[256:288], "\x00"))
	assert.Equal(t, string(id), busid)
	assert.Equal(t, uint16(0x1234), binary.BigEndian.Uint16(entry[300:302]))
	assert.Equal(t, uint16(0x5678), binary.BigEndian.Uint16(entry[302:304]))
	// Interface triplet: HID class.
	assert.Equal(t, uint8(0x03), entry[312])
}

func importPad(t *testing.T, conn net.Conn, id DeviceID) {
	t.Helper()
	req := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport}
	require.NoError(t, req.Write(conn))
	var busid [32]byte
	copy(busid[:], id)
	_, err := conn.Write(busid[:])
	require.NoError(t, err)

	reply := make([]byte, 8+312)
	require.NoError(t, usbip.ReadExactly(conn, reply))
	require.Equal(t, uint32(0), binary.BigEndian.Uint32(reply[4:8]), "import status")
}

func submit(t *testing.T, conn net.Conn, seq, ep, dir uint32, setup [8]byte, out []byte, wantLen int) []byte {
	t.Helper()
	cmd := usbip.CmdSubmit{
		Basic:             usbip.HeaderBasic{Command: usbip.CmdSubmitCode, Seqnum: seq, Dir: dir, Ep: ep},
		TransferBufferLen: uint32(wantLen),
		Setup:             setup,
	}
	if dir == usbip.DirOut {
		cmd.TransferBufferLen = uint32(len(out))
	}
	require.NoError(t, cmd.Write(conn))
	if dir == usbip.DirOut && len(out) > 0 {
		_, err := conn.Write(out)
		require.NoError(t, err)
	}

	ret := make([]byte, 0x30)
	require.NoError(t, usbip.ReadExactly(conn, ret))
	require.Equal(t, uint32(usbip.RetSubmitCode), binary.BigEndian.Uint32(ret[0:4]))
	require.Equal(t, seq, binary.BigEndian.Uint32(ret[4:8]))
	actual := binary.BigEndian.Uint32(ret[0x18:0x1c])

	if dir == usbip.DirIn && actual > 0 {
		payload := make([]byte, actual)
		require.NoError(t, usbip.ReadExactly(conn, payload))
		return payload
	}
	return nil
}

func TestUrbStreamServesDescriptorsAndReports(t *testing.T) {
	svc, id := startService(t)
	require.NoError(t, svc.SendInputReport(id, 0x0001, [4]uint8{255, 128, 128, 128}, [2]uint8{0, 0}))

	conn := dial(t, svc)
	importPad(t, conn, id)

	// GET_DESCRIPTOR(device) on EP0.
	var setup [8]byte
	setup[0] = 0x80
	setup[1] = 0x06
	binary.LittleEndian.PutUint16(setup[2:4], 0x0100)
	binary.LittleEndian.PutUint16(setup[6:8], 18)
	devDesc := submit(t, conn, 1, 0, usbip.DirIn, setup, nil, 18)
	require.Len(t, devDesc, 18)
	assert.Equal(t, uint8(18), devDesc[0])
	assert.Equal(t, uint16(0x1234), binary.LittleEndian.Uint16(devDesc[8:10]))

	// GET_DESCRIPTOR(configuration): total length must cover the HID
	// descriptor and both endpoints.
	binary.LittleEndian.PutUint16(setup[2:4], 0x0200)
	binary.LittleEndian.PutUint16(setup[6:8], 512)
	cfg := submit(t, conn, 2, 0, usbip.DirIn, setup, nil, 512)
	require.NotEmpty(t, cfg)
	total := binary.LittleEndian.Uint16(cfg[2:4])
	assert.Equal(t, int(total), len(cfg))
	assert.Equal(t, 9+9+9+7+7, len(cfg))

	// Interrupt IN on EP1 returns the current input report.
	report := submit(t, conn, 3, 1, usbip.DirIn, [8]byte{}, nil, InputReportSize)
	require.Len(t, report, InputReportSize)
	assert.Equal(t, uint8(0x01), report[0])
	assert.Equal(t, uint8(255), report[3])
}

func TestUrbStreamRumbleOut(t *testing.T) {
	svc, id := startService(t)

	rumbles := make(chan RumbleState, 1)
	require.NoError(t, svc.OnRumble(id, func(r RumbleState) { rumbles <- r }))

	conn := dial(t, svc)
	importPad(t, conn, id)

	submit(t, conn, 1, 1, usbip.DirOut, [8]byte{}, []byte{255, 0, 0}, 0)

	select {
	case r := <-rumbles:
		assert.Equal(t, float32(1.0), r.Left)
		assert.Equal(t, float32(0.0), r.Right)
	case <-time.After(time.Second):
		t.Fatal("rumble callback not invoked")
	}
}

func TestImportUnknownBusID(t *testing.T) {
	svc, _ := startService(t)
	conn := dial(t, svc)

	req := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport}
	require.NoError(t, req.Write(conn))
	var busid [32]byte
	copy(busid[:], "9-9")
	_, err := conn.Write(busid[:])
	require.NoError(t, err)

	// The server drops the connection without an import reply.
	var one [1]byte
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(one[:])
	assert.Error(t, err)
}

func TestDestroyRemovesFromBus(t *testing.T) {
	svc, id := startService(t)
	require.NoError(t, svc.Destroy(id))
	assert.Error(t, svc.Destroy(id))
	assert.Error(t, svc.SendInputReport(id, 0, [4]uint8{}, [2]uint8{}))
	assert.Empty(t, svc.bus.Devices())
}
