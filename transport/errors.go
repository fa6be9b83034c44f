package transport

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// Kind classifies transport failures.
type Kind uint8

const (
	KindIO Kind = iota + 1
	KindTimeout
	KindPipe
	KindOverflow
	KindNoDevice
	KindNotFound
	KindBusy
	KindAccess
	KindInvalidParam
	KindNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindTimeout:
		return "timeout"
	case KindPipe:
		return "pipe"
	case KindOverflow:
		return "overflow"
	case KindNoDevice:
		return "no_device"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	case KindAccess:
		return "access"
	case KindInvalidParam:
		return "invalid_param"
	case KindNotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// Error is a transport failure classified by Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the transport kind of err, or 0 when err is not a transport
// error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsGone reports whether err means the device has left the bus.
func IsGone(err error) bool {
	k := KindOf(err)
	return k == KindNoDevice || k == KindNotFound
}

// classify maps gousb / libusb errors onto the transport taxonomy.
func classify(err error) Kind {
	var ge gousb.Error
	if errors.As(err, &ge) {
		switch ge {
		case gousb.ErrorTimeout:
			return KindTimeout
		case gousb.ErrorPipe:
			return KindPipe
		case gousb.ErrorOverflow:
			return KindOverflow
		case gousb.ErrorNoDevice:
			return KindNoDevice
		case gousb.ErrorNotFound:
			return KindNotFound
		case gousb.ErrorBusy:
			return KindBusy
		case gousb.ErrorAccess:
			return KindAccess
		case gousb.ErrorInvalidParam:
			return KindInvalidParam
		case gousb.ErrorNotSupported:
			return KindNotSupported
		default:
			return KindIO
		}
	}
	var ts gousb.TransferStatus
	if errors.As(err, &ts) {
		switch ts {
		case gousb.TransferTimedOut:
			return KindTimeout
		case gousb.TransferStall:
			return KindPipe
		case gousb.TransferOverflow:
			return KindOverflow
		case gousb.TransferNoDevice:
			return KindNoDevice
		default:
			return KindIO
		}
	}
	return KindIO
}

// wrap returns a typed transport error for op, or nil when err is nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

// newError builds a transport error without an underlying cause.
func newError(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}
