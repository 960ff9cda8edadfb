package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenericValue(t *testing.T) {
	v := IntValue(8, 0x1ff)
	assert.Equal(t, uint64(0xff), v.Int())
	assert.Equal(t, int64(-1), v.SInt())
	assert.Equal(t, uint32(8), v.IntWidth())
	assert.Equal(t, "i8 255", v.String())

	s := SIntValue(32, -5)
	assert.Equal(t, int64(-5), s.SInt())
	assert.Equal(t, uint64(0xfffffffb), s.Int())
	assert.Equal(t, uint64(0xfb), s.IntAs(8))

	assert.Equal(t, PointerKind, PointerValue(0x10000).Kind())
	assert.Equal(t, float32(1.25), FloatValue(1.25).Float())
	assert.Equal(t, 2.5, DoubleValue(2.5).Double())
	assert.True(t, GenericValue{}.IsVoid())
}

func TestMemory(t *testing.T) {
	mem := newMemory(1<<12, 256)

	a, ok := mem.malloc(10)
	assert.True(t, ok)
	assert.Equal(t, HeapBase, a)
	b, ok := mem.malloc(3)
	assert.True(t, ok)
	assert.Equal(t, HeapBase+minAlloc, b)

	i32 := &shape{kind: shInt, bits: 32, size: 4, align: 4}
	assert.NoError(t, mem.store(a, i32, val{u: 0xdeadbeef}))
	got, err := mem.load(a, i32)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), got.u)

	assert.NoError(t, mem.release(a))
	c, ok := mem.malloc(16)
	assert.True(t, ok)
	assert.Equal(t, a, c, "freed block of the same size class is reused")
	got, err = mem.load(c, i32)
	assert.NoError(t, err)
	assert.Zero(t, got.u)

	assert.ErrorContains(t, mem.release(b+1), "not returned by malloc")
	_, ok = mem.malloc(1 << 13)
	assert.False(t, ok)

	_, err = mem.bytes(0x10, 1)
	assert.ErrorContains(t, err, "null pointer")
	_, err = mem.bytes(FuncBase, 1)
	assert.ErrorContains(t, err, "invalid memory access")

	s, err := mem.alloca(200, 8)
	assert.NoError(t, err)
	assert.Equal(t, StackBase, s)
	_, err = mem.alloca(100, 8)
	assert.ErrorContains(t, err, "stack overflow")
}
