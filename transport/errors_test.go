package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
)

func TestClassifyGousbErrors(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{gousb.ErrorTimeout, KindTimeout},
		{gousb.ErrorPipe, KindPipe},
		{gousb.ErrorOverflow, KindOverflow},
		{gousb.ErrorNoDevice, KindNoDevice},
		{gousb.ErrorNotFound, KindNotFound},
		{gousb.ErrorBusy, KindBusy},
		{gousb.ErrorAccess, KindAccess},
		{gousb.ErrorInvalidParam, KindInvalidParam},
		{gousb.ErrorNotSupported, KindNotSupported},
		{gousb.ErrorIO, KindIO},
		{gousb.ErrorOther, KindIO},
		{gousb.TransferTimedOut, KindTimeout},
		{gousb.TransferStall, KindPipe},
		{gousb.TransferNoDevice, KindNoDevice},
		{errors.New("unrelated"), KindIO},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classify(tc.err), "%v", tc.err)
	}
}

func TestWrapPreservesTypedErrors(t *testing.T) {
	err := wrap("interrupt_in", gousb.ErrorTimeout)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, KindTimeout, KindOf(err))

	// Wrapping an already-typed error keeps the original kind.
	again := wrap("read_loop", fmt.Errorf("ctx: %w", err))
	assert.Equal(t, KindTimeout, KindOf(again))

	assert.Nil(t, wrap("op", nil))
}

func TestIsGone(t *testing.T) {
	assert.True(t, IsGone(wrap("op", gousb.ErrorNoDevice)))
	assert.True(t, IsGone(newError(KindNotFound, "op")))
	assert.False(t, IsGone(wrap("op", gousb.ErrorTimeout)))
	assert.False(t, IsGone(nil))
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindTimeout, Op: "interrupt_in"}
	assert.Equal(t, "interrupt_in: timeout", err.Error())

	err = &Error{Kind: KindPipe, Op: "interrupt_out", Err: errors.New("stall")}
	assert.Contains(t, err.Error(), "pipe")
	assert.Contains(t, err.Error(), "stall")
}

func TestIdentityKeys(t *testing.T) {
	a := DeviceIdentity{VendorID: 0x045e, ProductID: 0x02ea, Bus: 1, Address: 4}
	b := DeviceIdentity{VendorID: 0x045e, ProductID: 0x02ea, Bus: 2, Address: 7}
	assert.True(t, a.SameModel(b))
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, "045e:02ea@1-4", a.Key())
}
