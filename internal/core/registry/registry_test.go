package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSurface struct{ id string }

func (s *stubSurface) ID() string             { return s.id }
func (s *stubSurface) Send(data []byte) error { return nil }

func TestRegistry_Multimap(t *testing.T) {
	r := New()

	_, ok := r.First("a.bin")
	assert.False(t, ok)
	assert.Empty(t, r.Get("a.bin"))

	s1 := &stubSurface{id: "s1"}
	s2 := &stubSurface{id: "s2"}
	r.Add("a.bin", s1)
	r.Add("a.bin", s2)
	r.Add("b.bin", s1)

	assert.Equal(t, 2, r.Len("a.bin"))
	assert.Equal(t, 1, r.Len("b.bin"))

	first, ok := r.First("a.bin")
	require.True(t, ok)
	assert.Equal(t, "s1", first.ID(), "first surface is the earliest attached")
}

func TestRegistry_Remove(t *testing.T) {
	r := New()
	s1 := &stubSurface{id: "s1"}
	s2 := &stubSurface{id: "s2"}
	r.Add("a.bin", s1)
	r.Add("a.bin", s2)

	r.Remove("a.bin", "s1")
	assert.Equal(t, 1, r.Len("a.bin"))
	first, ok := r.First("a.bin")
	require.True(t, ok)
	assert.Equal(t, "s2", first.ID())

	// Unknown ids and uris are ignored.
	r.Remove("a.bin", "nope")
	r.Remove("missing.bin", "s1")

	r.Remove("a.bin", "s2")
	assert.Zero(t, r.Len("a.bin"))
	_, ok = r.First("a.bin")
	assert.False(t, ok)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := New()
	r.Add("a.bin", &stubSurface{id: "s1"})

	got := r.Get("a.bin")
	got[0] = &stubSurface{id: "swapped"}

	first, ok := r.First("a.bin")
	require.True(t, ok)
	assert.Equal(t, "s1", first.ID())
}
