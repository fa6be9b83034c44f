package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeldKeySet(t *testing.T) {
	s := NewHeldKeySet()
	a := Chord{Code: 30}
	b := Chord{Code: 30, Modifier: ModShift}

	assert.True(t, s.Add(a))
	assert.False(t, s.Add(a)) // already held
	assert.True(t, s.Add(b))  // same code, different modifier
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(a))

	assert.True(t, s.Remove(a))
	assert.False(t, s.Remove(a))
	assert.Equal(t, 1, s.Len())
}

func TestHeldKeySetDrain(t *testing.T) {
	s := NewHeldKeySet()
	s.Add(Chord{Code: 1})
	s.Add(Chord{Code: 2})

	drained := s.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Drain())
}

func TestRecorderReleaseAll(t *testing.T) {
	r := NewRecorder()
	_ = r.KeyDown(30, ModNone)
	_ = r.KeyDown(48, ModControl)
	assert.Equal(t, 2, r.Held())

	_ = r.ReleaseAll()
	assert.Equal(t, 0, r.Held())

	ups := 0
	for _, op := range r.Ops() {
		if op.Op == "up" {
			ups++
		}
	}
	assert.Equal(t, 2, ups)
}

func TestParseModifier(t *testing.T) {
	cases := map[string]Modifier{
		"":        ModNone,
		"none":    ModNone,
		"cmd":     ModCommand,
		"command": ModCommand,
		"ctrl":    ModControl,
		"alt":     ModOption,
		"option":  ModOption,
		"shift":   ModShift,
	}
	for in, want := range cases {
		got, err := ParseModifier(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseModifier("hyper")
	assert.Error(t, err)
}
