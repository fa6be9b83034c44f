package output

import "sync"

// RecordedOp is one synthesized operation captured by a Recorder.
type RecordedOp struct {
	Op       string // "down", "up", "tap", "move_to", "move_by", "mouse_down", "mouse_up", "click", "scroll"
	Code     uint16
	Modifier Modifier
	Button   MouseButton
	X, Y     int
	DX, DY   float64
	Count    int
}

// Recorder is a Synthesizer that records operations instead of injecting
// them. It backs most engine and coordinator tests.
type Recorder struct {
	mu   sync.Mutex
	ops  []RecordedOp
	held *HeldKeySet
}

// NewRecorder returns an empty recording synthesizer.
func NewRecorder() *Recorder {
	return &Recorder{held: NewHeldKeySet()}
}

func (r *Recorder) record(op RecordedOp) {
	r.ops = append(r.ops, op)
}

func (r *Recorder) KeyDown(code uint16, mod Modifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held.Add(Chord{Code: code, Modifier: mod})
	r.record(RecordedOp{Op: "down", Code: code, Modifier: mod})
	return nil
}

func (r *Recorder) KeyUp(code uint16, mod Modifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held.Remove(Chord{Code: code, Modifier: mod})
	r.record(RecordedOp{Op: "up", Code: code, Modifier: mod})
	return nil
}

func (r *Recorder) Tap(code uint16, mod Modifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(RecordedOp{Op: "tap", Code: code, Modifier: mod})
	return nil
}

func (r *Recorder) MouseMoveTo(x, y int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(RecordedOp{Op: "move_to", X: x, Y: y})
	return nil
}

func (r *Recorder) MouseMoveBy(dx, dy int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(RecordedOp{Op: "move_by", X: dx, Y: dy})
	return nil
}

func (r *Recorder) MouseDown(btn MouseButton) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(RecordedOp{Op: "mouse_down", Button: btn})
	return nil
}

func (r *Recorder) MouseUp(btn MouseButton) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(RecordedOp{Op: "mouse_up", Button: btn})
	return nil
}

func (r *Recorder) Click(btn MouseButton, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(RecordedOp{Op: "click", Button: btn, Count: count})
	return nil
}

func (r *Recorder) Scroll(dx, dy float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(RecordedOp{Op: "scroll", DX: dx, DY: dy})
	return nil
}

func (r *Recorder) ReleaseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.held.Drain() {
		r.record(RecordedOp{Op: "up", Code: c.Code, Modifier: c.Modifier})
	}
	return nil
}

func (r *Recorder) Close() error { return r.ReleaseAll() }

// Ops returns a copy of all recorded operations.
func (r *Recorder) Ops() []RecordedOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedOp, len(r.ops))
	copy(out, r.ops)
	return out
}

// Held returns the number of chords currently held.
func (r *Recorder) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held.Len()
}

// Reset clears recorded operations but keeps held state.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}
