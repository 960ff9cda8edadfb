package intern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternTerminatesWithNul(t *testing.T) {
	a := New()

	h, err := a.Intern("entry")
	require.NoError(t, err)

	buf := a.Bytes(h)
	assert.Equal(t, []byte("entry\x00"), buf)
	assert.Equal(t, "entry", a.String(h))
}

func TestInternDeduplicates(t *testing.T) {
	a := New()

	h1, err := a.Intern("sum")
	require.NoError(t, err)
	h2, err := a.Intern("sum")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, a.Count())
	assert.Equal(t, 4, a.Size())
}

func TestEmptyStringsShareOneBuffer(t *testing.T) {
	a := New()
	b := New()

	ha, err := a.Intern("")
	require.NoError(t, err)
	hb, err := b.Intern("")
	require.NoError(t, err)

	assert.True(t, ha.IsEmpty())
	assert.Equal(t, Empty, hb)
	assert.Same(t, &a.Bytes(ha)[0], &b.Bytes(hb)[0])
	assert.Equal(t, 0, a.Count())
}

func TestInteriorNulIsRejected(t *testing.T) {
	a := New()

	_, err := a.Intern("bad\x00name")
	assert.ErrorIs(t, err, ErrInteriorNul)
	assert.Equal(t, 0, a.Count())
}

func TestBuffersDoNotMoveWhenArenaGrows(t *testing.T) {
	a := NewWithChunkSize(32)

	first, err := a.Intern("first")
	require.NoError(t, err)
	addr := &a.Bytes(first)[0]

	for i := 0; i < 100; i++ {
		_, err := a.Intern(strings.Repeat("x", i%20+1) + string(rune('a'+i%26)))
		require.NoError(t, err)
	}

	assert.Same(t, addr, &a.Bytes(first)[0])
	assert.Equal(t, "first", a.String(first))
}

func TestOversizedStringGetsDedicatedChunk(t *testing.T) {
	a := NewWithChunkSize(16)

	long := strings.Repeat("y", 100)
	h, err := a.Intern(long)
	require.NoError(t, err)
	short, err := a.Intern("z")
	require.NoError(t, err)

	assert.Equal(t, long+"\x00", string(a.Bytes(h)))
	assert.Equal(t, "z\x00", string(a.Bytes(short)))
}

func TestReleaseDropsEverything(t *testing.T) {
	a := New()
	_, err := a.Intern("a")
	require.NoError(t, err)
	_, err = a.Intern("b")
	require.NoError(t, err)

	a.Release()

	assert.Equal(t, 0, a.Count())
	assert.Equal(t, 0, a.Size())
	_, ok := a.Lookup("a")
	assert.False(t, ok)

	h, err := a.Intern("c")
	require.NoError(t, err)
	assert.Equal(t, "c", a.String(h))
}
