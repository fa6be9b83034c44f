//go:build linux

package output

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Linux input subsystem constants (linux/input-event-codes.h).
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyLeftAlt   = 56
	keyLeftMeta  = 125
)

// uinput ioctls (linux/uinput.h).
const (
	uiSetEvBit  = 0x40045564
	uiSetKeyBit = 0x40045565
	uiSetRelBit = 0x40045566

	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
)

const uinputPath = "/dev/uinput"

// permRecheckInterval bounds how often a denied device is re-probed.
const permRecheckInterval = 30 * time.Second

// tapHold is the press duration used by Tap.
const tapHold = 16 * time.Millisecond

// multiClickWindow and multiClickRadius define the double-click threshold.
const (
	multiClickWindow = 500 * time.Millisecond
	multiClickRadius = 5
)

type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

type uinputUserDev struct {
	Name         [80]byte
	BusType      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}

// UinputConfig configures the Linux uinput synthesizer.
type UinputConfig struct {
	// Name is the uinput device name shown to the host.
	Name string
	// ScreenWidth/ScreenHeight bound absolute mouse moves.
	ScreenWidth, ScreenHeight int
	// ScrollSensitivity scales Scroll deltas; 0 means 1.0.
	ScrollSensitivity float64
}

// Uinput injects events through a /dev/uinput virtual keyboard+mouse.
// The device is created lazily on first use so that a missing permission is
// reported through the normal operation path.
type Uinput struct {
	cfg    UinputConfig
	logger *slog.Logger

	mu        sync.Mutex
	fd        int
	created   bool
	denied    bool
	deniedAt  time.Time
	held      *HeldKeySet
	curX      int
	curY      int
	lastClick struct {
		at     time.Time
		x, y   int
		button MouseButton
	}
	clickSeq int
}

// NewUinput returns a synthesizer backed by /dev/uinput.
func NewUinput(cfg UinputConfig, logger *slog.Logger) *Uinput {
	if cfg.Name == "" {
		cfg.Name = "hidra virtual input"
	}
	if cfg.ScrollSensitivity == 0 {
		cfg.ScrollSensitivity = 1.0
	}
	return &Uinput{
		cfg:    cfg,
		logger: logger,
		fd:     -1,
		held:   NewHeldKeySet(),
		curX:   cfg.ScreenWidth / 2,
		curY:   cfg.ScreenHeight / 2,
	}
}

// ensure opens and registers the uinput device. Callers hold u.mu.
func (u *Uinput) ensure() error {
	if u.created {
		return nil
	}
	if u.denied {
		if time.Since(u.deniedAt) < permRecheckInterval {
			// Suppressed until the next re-check window.
			return nil
		}
		u.denied = false
	}

	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			u.denied = true
			u.deniedAt = time.Now()
			u.logger.Error("input injection denied; further output suppressed",
				"path", uinputPath, "error", err)
			return ErrPermissionDenied
		}
		return fmt.Errorf("%w: open %s: %v", ErrEventCreationFailed, uinputPath, err)
	}

	setup := func() error {
		if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
			return err
		}
		if err := unix.IoctlSetInt(fd, uiSetEvBit, evRel); err != nil {
			return err
		}
		if err := unix.IoctlSetInt(fd, uiSetEvBit, evSyn); err != nil {
			return err
		}
		for code := 1; code < 256; code++ {
			if err := unix.IoctlSetInt(fd, uiSetKeyBit, code); err != nil {
				return err
			}
		}
		for _, code := range []int{btnLeft, btnRight, btnMiddle} {
			if err := unix.IoctlSetInt(fd, uiSetKeyBit, code); err != nil {
				return err
			}
		}
		for _, code := range []int{relX, relY, relWheel, relHWheel} {
			if err := unix.IoctlSetInt(fd, uiSetRelBit, code); err != nil {
				return err
			}
		}

		var dev uinputUserDev
		copy(dev.Name[:], u.cfg.Name)
		dev.BusType = 0x03 // BUS_USB
		dev.Vendor = 0x1d50
		dev.Product = 0x5352
		dev.Version = 1
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, &dev); err != nil {
			return err
		}
		if _, err := unix.Write(fd, buf.Bytes()); err != nil {
			return err
		}
		return unix.IoctlSetInt(fd, uiDevCreate, 0)
	}
	if err := setup(); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("%w: uinput setup: %v", ErrEventCreationFailed, err)
	}

	u.fd = fd
	u.created = true
	u.logger.Info("uinput device created", "name", u.cfg.Name)
	return nil
}

// suppressed reports whether output is currently swallowed after a denial.
// Callers hold u.mu.
func (u *Uinput) suppressed() bool {
	return u.denied && time.Since(u.deniedAt) < permRecheckInterval
}

func (u *Uinput) emit(typ, code uint16, value int32) error {
	now := time.Now()
	ev := inputEvent{
		Sec:   now.Unix(),
		Usec:  int64(now.Nanosecond() / 1000),
		Type:  typ,
		Code:  code,
		Value: value,
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrEventCreationFailed, err)
	}
	if _, err := unix.Write(u.fd, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrEventCreationFailed, err)
	}
	return nil
}

func (u *Uinput) sync() error {
	return u.emit(evSyn, synReport, 0)
}

func modifierKey(mod Modifier) (uint16, bool) {
	switch mod {
	case ModCommand:
		return keyLeftMeta, true
	case ModControl:
		return keyLeftCtrl, true
	case ModOption:
		return keyLeftAlt, true
	case ModShift:
		return keyLeftShift, true
	default:
		return 0, false
	}
}

func (u *Uinput) key(code uint16, mod Modifier, value int32) error {
	if err := u.ensure(); err != nil {
		return err
	}
	if u.suppressed() {
		return nil
	}
	mk, hasMod := modifierKey(mod)
	// Press the modifier before the key, release it after.
	if hasMod && value == 1 {
		if err := u.emit(evKey, mk, 1); err != nil {
			return err
		}
	}
	if err := u.emit(evKey, code, value); err != nil {
		return err
	}
	if hasMod && value == 0 {
		if err := u.emit(evKey, mk, 0); err != nil {
			return err
		}
	}
	return u.sync()
}

func (u *Uinput) KeyDown(code uint16, mod Modifier) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.key(code, mod, 1); err != nil {
		return err
	}
	u.held.Add(Chord{Code: code, Modifier: mod})
	return nil
}

func (u *Uinput) KeyUp(code uint16, mod Modifier) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.key(code, mod, 0); err != nil {
		return err
	}
	u.held.Remove(Chord{Code: code, Modifier: mod})
	return nil
}

func (u *Uinput) Tap(code uint16, mod Modifier) error {
	if err := u.KeyDown(code, mod); err != nil {
		return err
	}
	time.Sleep(tapHold)
	return u.KeyUp(code, mod)
}

func (u *Uinput) MouseMoveTo(x, y int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cfg.ScreenWidth <= 0 || u.cfg.ScreenHeight <= 0 {
		return ErrPositionOutOfBounds
	}
	x = clampInt(x, 0, u.cfg.ScreenWidth-1)
	y = clampInt(y, 0, u.cfg.ScreenHeight-1)
	return u.moveBy(x-u.curX, y-u.curY)
}

func (u *Uinput) MouseMoveBy(dx, dy int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.moveBy(dx, dy)
}

// moveBy emits a relative move and tracks the virtual cursor. Callers hold u.mu.
func (u *Uinput) moveBy(dx, dy int) error {
	if err := u.ensure(); err != nil {
		return err
	}
	if u.suppressed() {
		return nil
	}
	if dx != 0 {
		if err := u.emit(evRel, relX, int32(dx)); err != nil {
			return err
		}
	}
	if dy != 0 {
		if err := u.emit(evRel, relY, int32(dy)); err != nil {
			return err
		}
	}
	u.curX = clampInt(u.curX+dx, 0, max(u.cfg.ScreenWidth-1, 0))
	u.curY = clampInt(u.curY+dy, 0, max(u.cfg.ScreenHeight-1, 0))
	return u.sync()
}

func mouseCode(btn MouseButton) uint16 {
	switch btn {
	case MouseRight:
		return btnRight
	case MouseMiddle:
		return btnMiddle
	default:
		return btnLeft
	}
}

func (u *Uinput) MouseDown(btn MouseButton) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensure(); err != nil {
		return err
	}
	if u.suppressed() {
		return nil
	}
	if err := u.emit(evKey, mouseCode(btn), 1); err != nil {
		return err
	}
	return u.sync()
}

func (u *Uinput) MouseUp(btn MouseButton) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensure(); err != nil {
		return err
	}
	if u.suppressed() {
		return nil
	}
	if err := u.emit(evKey, mouseCode(btn), 0); err != nil {
		return err
	}
	return u.sync()
}

func (u *Uinput) Click(btn MouseButton, count int) error {
	u.mu.Lock()
	now := time.Now()
	// Fold clicks that land within the double-click threshold of the previous
	// click into a continuing multi-click sequence.
	if btn == u.lastClick.button &&
		now.Sub(u.lastClick.at) <= multiClickWindow &&
		absInt(u.curX-u.lastClick.x) <= multiClickRadius &&
		absInt(u.curY-u.lastClick.y) <= multiClickRadius {
		u.clickSeq++
	} else {
		u.clickSeq = 1
	}
	u.lastClick.at = now
	u.lastClick.x = u.curX
	u.lastClick.y = u.curY
	u.lastClick.button = btn
	u.mu.Unlock()

	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		if err := u.MouseDown(btn); err != nil {
			return err
		}
		time.Sleep(tapHold)
		if err := u.MouseUp(btn); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uinput) Scroll(dx, dy float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.ensure(); err != nil {
		return err
	}
	if u.suppressed() {
		return nil
	}
	sx := int32(dx * u.cfg.ScrollSensitivity)
	sy := int32(dy * u.cfg.ScrollSensitivity)
	if sx != 0 {
		if err := u.emit(evRel, relHWheel, sx); err != nil {
			return err
		}
	}
	if sy != 0 {
		if err := u.emit(evRel, relWheel, sy); err != nil {
			return err
		}
	}
	return u.sync()
}

func (u *Uinput) ReleaseAll() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	var firstErr error
	for _, c := range u.held.Drain() {
		if err := u.key(c.Code, c.Modifier, 0); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (u *Uinput) Close() error {
	if err := u.ReleaseAll(); err != nil {
		u.logger.Warn("release on close failed", "error", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.created {
		return nil
	}
	u.created = false
	_ = unix.IoctlSetInt(u.fd, uiDevDestroy, 0)
	err := unix.Close(u.fd)
	u.fd = -1
	return err
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
