package profilestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/profile"
	"github.com/Alia5/HIDRA/transport"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	p := profile.Profile{
		Name:     "gaming",
		Version:  profile.CurrentVersion,
		DeviceID: &transport.DeviceIdentity{VendorID: 0x045e, ProductID: 0x02ea},
		Mappings: []profile.ButtonMapping{
			{Button: "A", KeyCode: 30},
			{Button: "B", KeyCode: 48, Modifier: output.ModShift},
			{Button: "LSX+", KeyCode: 32},
		},
	}
	require.NoError(t, s.Save(p))

	got, err := s.Load("gaming")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestLoadAllSorted(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.Save(profile.Profile{Name: name, Version: 1}))
	}
	all, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "mid", all[1].Name)
	assert.Equal(t, "zeta", all[2].Name)
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("nope")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestCorruptedFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "bad.yaml"), []byte("{не yaml"), 0o644))

	_, err := s.Load("bad")
	assert.ErrorIs(t, err, profile.ErrCorrupted)

	_, err = s.LoadAll()
	assert.ErrorIs(t, err, profile.ErrCorrupted)
}

func TestUnsupportedVersion(t *testing.T) {
	s := newTestStore(t)
	data := "name: future\nversion: 99\nbuttonMappings: []\n"
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "future.yaml"), []byte(data), 0o644))

	_, err := s.Load("future")
	assert.ErrorIs(t, err, profile.ErrUnsupportedVersion)
}

func TestDuplicateMappingRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(profile.Profile{
		Name:    "dup",
		Version: 1,
		Mappings: []profile.ButtonMapping{
			{Button: "A", KeyCode: 30},
			{Button: "A", KeyCode: 31},
		},
	})
	assert.ErrorIs(t, err, profile.ErrInvalidMapping)
}

func TestDeleteAndExists(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(profile.Profile{Name: "p", Version: 1}))

	ok, err := s.Exists("p")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete("p"))
	ok, err = s.Exists("p")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Delete("p"), profile.ErrNotFound)
}

func TestCreateDefault(t *testing.T) {
	s := newTestStore(t)
	p, err := s.CreateDefault()
	require.NoError(t, err)
	assert.Equal(t, profile.DefaultName, p.Name)

	got, err := s.Load(profile.DefaultName)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestOnSavedHook(t *testing.T) {
	s := newTestStore(t)
	var saved []string
	s.OnSaved = func(p profile.Profile) { saved = append(saved, p.Name) }

	require.NoError(t, s.Save(profile.Profile{Name: "hooked", Version: 1}))
	assert.Equal(t, []string{"hooked"}, saved)
}
