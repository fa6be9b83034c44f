package protocol

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alia5/HIDRA/transport"
)

const (
	initRetries = 3
	initBackoff = 50 * time.Millisecond
)

// Endpoints are the interrupt endpoints selected for a session: the first
// interrupt-OUT endpoint of interface 0 for scripts and output, the first
// interrupt-IN endpoint for reads.
type Endpoints struct {
	In  transport.EndpointInfo
	Out transport.EndpointInfo
	// HasOut is false for devices without an interrupt-OUT endpoint.
	HasOut bool
}

// SelectEndpoints picks the session endpoints from interface 0.
func SelectEndpoints(desc transport.DeviceDescriptor) (Endpoints, error) {
	intf, ok := desc.Interface(0)
	if !ok {
		return Endpoints{}, fmt.Errorf("%w: no interface 0", ErrUnsupportedDevice)
	}
	in, ok := intf.FirstEndpoint(transport.DirIn, transport.TransferInterrupt)
	if !ok {
		return Endpoints{}, fmt.Errorf("%w: no interrupt-in endpoint", ErrUnsupportedDevice)
	}
	eps := Endpoints{In: in}
	if out, ok := intf.FirstEndpoint(transport.DirOut, transport.TransferInterrupt); ok {
		eps.Out = out
		eps.HasOut = true
	}
	return eps, nil
}

// Engine executes init scripts against opened sessions.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Run executes the script. Steps failing with timeout or io are retried up to
// 3 times with 50 ms back-off; exhausting retries (or any other transport
// failure) fails the session.
func (e *Engine) Run(sess transport.Session, script Script, eps Endpoints) error {
	for i, step := range script {
		if step.Kind == StepDelay {
			time.Sleep(step.Delay)
			continue
		}
		var err error
		for attempt := 0; attempt <= initRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(initBackoff)
			}
			err = e.execute(sess, step, eps)
			if err == nil {
				break
			}
			kind := transport.KindOf(err)
			if kind != transport.KindTimeout && kind != transport.KindIO {
				break
			}
			e.logger.Debug("init step retry",
				"step", i, "kind", step.Kind, "attempt", attempt+1, "error", err)
		}
		if err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrInitScriptFailed, i, step.Kind, err)
		}
	}
	return nil
}

func (e *Engine) execute(sess transport.Session, step Step, eps Endpoints) error {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepWindow
	}
	switch step.Kind {
	case StepControl:
		_, err := sess.ControlTransfer(step.RequestType, step.Request, step.Value, step.Index, step.Payload, timeout)
		return err
	case StepInterruptOut:
		if !eps.HasOut {
			return fmt.Errorf("%w: script needs an interrupt-out endpoint", ErrUnsupportedDevice)
		}
		_, err := sess.InterruptOut(eps.Out.Address, step.Payload, timeout)
		return err
	case StepInterruptIn:
		size := step.ReadLen
		if size <= 0 {
			size = eps.In.MaxPacketSize
		}
		_, err := sess.InterruptIn(eps.In.Address, size, timeout)
		return err
	case StepWaitForAck:
		size := step.ReadLen
		if size <= 0 {
			size = eps.In.MaxPacketSize
		}
		deadline := time.Now().Add(timeout)
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return fmt.Errorf("%w: ack not received", ErrInitScriptFailed)
			}
			data, err := sess.InterruptIn(eps.In.Address, size, remaining)
			if err != nil {
				return err
			}
			if len(step.Expect) == 0 || bytes.HasPrefix(data, step.Expect) {
				return nil
			}
		}
	default:
		return fmt.Errorf("unknown step kind %d", step.Kind)
	}
}
