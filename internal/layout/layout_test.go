package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/internal/ir"
)

func TestScalarLayouts(t *testing.T) {
	ctx := ir.NewContext()
	e := New(Host64())

	tests := []struct {
		typ   ir.Type
		size  int
		align int
	}{
		{ctx.Int1Type(), 1, 1},
		{ctx.Int8Type(), 1, 1},
		{ctx.Int16Type(), 2, 2},
		{ctx.Int32Type(), 4, 4},
		{ctx.Int64Type(), 8, 8},
		{ctx.IntType(24), 4, 4},
		{ctx.FloatType(), 4, 4},
		{ctx.DoubleType(), 8, 8},
		{ctx.Int8PointerType(), 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			l, err := e.LayoutOf(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.size, l.Size)
			assert.Equal(t, tt.align, l.Align)
		})
	}
}

func TestStructPadding(t *testing.T) {
	ctx := ir.NewContext()
	e := New(Host64())
	fields := []ir.Type{ctx.Int8Type(), ctx.Int32Type(), ctx.Int8Type()}

	padded, err := e.LayoutOf(ctx.StructType(fields, false))
	require.NoError(t, err)
	assert.Equal(t, 12, padded.Size)
	assert.Equal(t, 4, padded.Align)
	assert.Equal(t, []int{0, 4, 8}, padded.FieldOffsets)

	packed, err := e.LayoutOf(ctx.StructType(fields, true))
	require.NoError(t, err)
	assert.Equal(t, 6, packed.Size)
	assert.Equal(t, 1, packed.Align)
	assert.Equal(t, []int{0, 1, 5}, packed.FieldOffsets)
}

func TestSelfReferentialStructThroughPointer(t *testing.T) {
	ctx := ir.NewContext()
	e := New(Host64())
	node := ctx.NamedStruct("Node")
	node.SetBody([]ir.Type{ctx.Int32Type(), ctx.PointerType(node)}, false)

	l, err := e.LayoutOf(node)
	require.NoError(t, err)
	assert.Equal(t, 16, l.Size)

	off, err := e.FieldOffset(node, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, off)
}

func TestLayoutErrors(t *testing.T) {
	ctx := ir.NewContext()
	e := New(Host64())

	opaque := ctx.NamedStruct("Opaque")
	_, err := e.LayoutOf(ctx.StructType([]ir.Type{ctx.Int8Type(), opaque}, false))
	var lerr *LayoutError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, LayoutErrIncomplete, lerr.Kind)
	assert.Equal(t, "struct %Opaque has no body", lerr.Error())

	a := ctx.NamedStruct("A")
	b := ctx.NamedStruct("B")
	a.SetBody([]ir.Type{b}, false)
	b.SetBody([]ir.Type{ctx.Int8Type(), a}, false)
	_, err = e.LayoutOf(a)
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, LayoutErrRecursive, lerr.Kind)
	assert.Equal(t, "recursive value type has infinite size (cycle: %A -> %B -> %A)", lerr.Error())

	_, err = e.SizeOf(ctx.VoidType())
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, LayoutErrUnsized, lerr.Kind)
}
