package engine

import (
	"fmt"

	"ssakit/internal/ir"
	"ssakit/internal/layout"
)

type shapeKind uint8

const (
	shVoid shapeKind = iota
	shInt
	shPtr
	shF32
	shF64
	shStruct
)

// shape is the engine's own description of a type: enough to move values
// of that type in and out of memory without touching the source module.
type shape struct {
	kind    shapeKind
	bits    uint32
	size    int
	align   int
	fields  []*shape
	offsets []int
	name    string
}

// val is a runtime value. Scalars live in u (floats as their IEEE bits,
// integers masked to their width); struct values use agg.
type val struct {
	u   uint64
	agg []val
}

type shaper struct {
	layout *layout.LayoutEngine
	cache  map[ir.TypeID]*shape
}

func newShaper() *shaper {
	return &shaper{layout: layout.New(layout.Host64()), cache: make(map[ir.TypeID]*shape)}
}

// of returns the shape of t. Unsized types yield a void shape; an error is
// only returned for types the engine cannot represent at all.
func (s *shaper) of(t ir.Type) (*shape, error) {
	if sh, ok := s.cache[t.ID()]; ok {
		return sh, nil
	}
	sh := &shape{name: t.String()}
	switch tt := t.(type) {
	case *ir.IntType:
		if tt.Bits() > 64 {
			return nil, fmt.Errorf("integer type %s is wider than 64 bits", tt)
		}
		sh.kind, sh.bits = shInt, tt.Bits()
	case *ir.PointerType:
		sh.kind, sh.bits = shPtr, 64
	case *ir.FloatType:
		if tt.Kind() == ir.FloatKind {
			sh.kind, sh.bits = shF32, 32
		} else {
			sh.kind, sh.bits = shF64, 64
		}
	case *ir.StructType:
		l, err := s.layout.LayoutOf(tt)
		if err != nil {
			// opaque or recursive: usable only behind a pointer
			s.cache[t.ID()] = sh
			return sh, nil
		}
		sh.kind = shStruct
		sh.size, sh.align, sh.offsets = l.Size, l.Align, l.FieldOffsets
		for _, f := range tt.Fields() {
			fs, err := s.of(f)
			if err != nil {
				return nil, err
			}
			sh.fields = append(sh.fields, fs)
		}
	default:
		s.cache[t.ID()] = sh
		return sh, nil
	}
	if sh.kind != shStruct {
		l, err := s.layout.LayoutOf(t)
		if err != nil {
			return nil, err
		}
		sh.size, sh.align = l.Size, l.Align
	}
	s.cache[t.ID()] = sh
	return sh, nil
}

// genericShape describes a variadic argument passed in from the caller,
// which has no declared type to take a shape from
func genericShape(g GenericValue) *shape {
	switch g.kind {
	case IntKind:
		return &shape{kind: shInt, bits: g.width, size: int((g.width + 7) / 8), name: fmt.Sprintf("i%d", g.width)}
	case PointerKind:
		return &shape{kind: shPtr, bits: 64, size: 8, align: 8, name: "ptr"}
	case FloatKind:
		return &shape{kind: shF32, bits: 32, size: 4, align: 4, name: "float"}
	case DoubleKind:
		return &shape{kind: shF64, bits: 64, size: 8, align: 8, name: "double"}
	}
	return &shape{name: "void"}
}

// zero returns the zero value of sh
func (sh *shape) zero() val {
	if sh.kind != shStruct {
		return val{}
	}
	agg := make([]val, len(sh.fields))
	for i, f := range sh.fields {
		agg[i] = f.zero()
	}
	return val{agg: agg}
}

// storeSize is the number of bytes a scalar occupies in memory
func (sh *shape) storeSize() int {
	return int((sh.bits + 7) / 8)
}

func (sh *shape) toGeneric(v val) GenericValue {
	switch sh.kind {
	case shInt:
		return IntValue(sh.bits, v.u)
	case shPtr:
		return PointerValue(v.u)
	case shF32:
		return GenericValue{kind: FloatKind, width: 32, bits: v.u}
	case shF64:
		return GenericValue{kind: DoubleKind, width: 64, bits: v.u}
	case shStruct:
		agg := make([]GenericValue, len(sh.fields))
		for i, f := range sh.fields {
			agg[i] = f.toGeneric(v.agg[i])
		}
		return GenericValue{kind: AggregateKind, agg: agg}
	}
	return GenericValue{}
}

func (sh *shape) fromGeneric(g GenericValue) val {
	switch sh.kind {
	case shInt:
		return val{u: g.bits & mask(sh.bits)}
	case shF32:
		if g.kind == DoubleKind {
			return val{u: FloatValue(float32(g.Double())).bits}
		}
		return val{u: g.bits}
	case shF64:
		if g.kind == FloatKind {
			return val{u: DoubleValue(g.Double()).bits}
		}
		return val{u: g.bits}
	case shStruct:
		v := sh.zero()
		for i := range sh.fields {
			if i < len(g.agg) {
				v.agg[i] = sh.fields[i].fromGeneric(g.agg[i])
			}
		}
		return v
	}
	return val{u: g.bits}
}
