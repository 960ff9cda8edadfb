// Package layout computes sizes, alignments and field offsets of IR types
// for the memory model of the execution engine.
package layout

import (
	"fortio.org/safecast"

	"ssakit/internal/ir"
)

// TypeLayout is the layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Struct-only:
	FieldOffsets []int
}

// LayoutEngine computes and caches memory layouts. Struct bodies are
// assumed final once a layout has been computed for them.
type LayoutEngine struct {
	Target Target

	cache map[ir.TypeID]TypeLayout
}

// New creates a new LayoutEngine for the specified target.
func New(target Target) *LayoutEngine {
	return &LayoutEngine{
		Target: target,
		cache:  make(map[ir.TypeID]TypeLayout, 64),
	}
}

type layoutState struct {
	stack []*ir.StructType
	index map[*ir.StructType]int
}

// LayoutOf computes and caches the layout of a type.
func (e *LayoutEngine) LayoutOf(t ir.Type) (TypeLayout, error) {
	state := &layoutState{index: make(map[*ir.StructType]int, 8)}
	l, err := e.layoutOf(t, state)
	if err != nil {
		return TypeLayout{Size: 0, Align: 1}, err
	}
	return l, nil
}

func (e *LayoutEngine) layoutOf(t ir.Type, state *layoutState) (TypeLayout, *LayoutError) {
	if cached, ok := e.cache[t.ID()]; ok {
		return cached, nil
	}

	switch tt := t.(type) {
	case *ir.IntType:
		l, err := intLayout(tt)
		if err != nil {
			return TypeLayout{}, &LayoutError{Kind: LayoutErrUnsized, Type: t, Err: err}
		}
		e.cache[t.ID()] = l
		return l, nil
	case *ir.FloatType:
		if tt.Kind() == ir.FloatKind {
			return TypeLayout{Size: 4, Align: 4}, nil
		}
		return TypeLayout{Size: 8, Align: 8}, nil
	case *ir.PointerType:
		return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}, nil
	case *ir.StructType:
		if tt.IsOpaque() {
			return TypeLayout{}, &LayoutError{Kind: LayoutErrIncomplete, Type: t}
		}
		if idx, ok := state.index[tt]; ok {
			cycle := make([]ir.Type, 0, len(state.stack)-idx+1)
			for _, s := range state.stack[idx:] {
				cycle = append(cycle, s)
			}
			cycle = append(cycle, tt)
			return TypeLayout{}, &LayoutError{Kind: LayoutErrRecursive, Type: t, Cycle: cycle}
		}
		state.index[tt] = len(state.stack)
		state.stack = append(state.stack, tt)
		l, err := e.structLayout(tt, state)
		state.stack = state.stack[:len(state.stack)-1]
		delete(state.index, tt)
		if err != nil {
			return TypeLayout{}, err
		}
		e.cache[t.ID()] = l
		return l, nil
	default:
		return TypeLayout{}, &LayoutError{Kind: LayoutErrUnsized, Type: t}
	}
}

func intLayout(t *ir.IntType) (TypeLayout, error) {
	size, err := safecast.Conv[int]((t.Bits() + 7) / 8)
	if err != nil {
		return TypeLayout{}, err
	}
	align := 1
	for align < size && align < 8 {
		align *= 2
	}
	return TypeLayout{Size: roundUp(size, align), Align: align}, nil
}

func (e *LayoutEngine) structLayout(st *ir.StructType, state *layoutState) (TypeLayout, *LayoutError) {
	fields := st.Fields()
	offsets := make([]int, len(fields))

	if st.IsPacked() {
		size := 0
		for i, f := range fields {
			fl, err := e.layoutOf(f, state)
			if err != nil {
				return TypeLayout{}, err
			}
			offsets[i] = size
			size += fl.Size
		}
		return TypeLayout{Size: size, Align: 1, FieldOffsets: offsets}, nil
	}

	size := 0
	align := 1
	for i, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return TypeLayout{}, err
		}
		size = roundUp(size, fl.Align)
		offsets[i] = size
		size += fl.Size
		align = max(align, fl.Align)
	}
	size = roundUp(size, align)
	return TypeLayout{Size: size, Align: align, FieldOffsets: offsets}, nil
}

// SizeOf returns the size of a type in bytes.
func (e *LayoutEngine) SizeOf(t ir.Type) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *LayoutEngine) AlignOf(t ir.Type) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct field.
func (e *LayoutEngine) FieldOffset(st *ir.StructType, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(st)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, nil
	}
	return l.FieldOffsets[fieldIdx], nil
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}
