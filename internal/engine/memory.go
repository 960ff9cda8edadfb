package engine

import (
	"math"

	"fortio.org/safecast"
)

// The address space is flat. The first page is never mapped so that null
// dereferences fault; function addresses live just above it and are not
// readable; globals and the heap grow up from HeapBase; the stack is a
// separate fixed-size region at StackBase.
const (
	NullPageSize uint64 = 0x1000
	FuncBase     uint64 = 0x1000
	HeapBase     uint64 = 0x10000
	StackBase    uint64 = 0x7f0000000000

	minAlloc = 16
)

type memory struct {
	heap   []byte
	limit  int
	allocs map[uint64]int
	freed  map[uint64]bool
	free   map[int][]uint64

	stack []byte
	sp    int
}

func newMemory(limit, stackSize int) *memory {
	return &memory{
		limit:  limit,
		allocs: make(map[uint64]int),
		freed:  make(map[uint64]bool),
		free:   make(map[int][]uint64),
		stack:  make([]byte, stackSize),
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	if r := n % align; r != 0 {
		return n + align - r
	}
	return n
}

// grow extends the heap by size bytes aligned to align and returns the
// address of the new space
func (m *memory) grow(size, align int) (uint64, bool) {
	start := roundUp(len(m.heap), max(align, 1))
	if start+size > m.limit {
		return 0, false
	}
	m.heap = append(m.heap, make([]byte, start+size-len(m.heap))...)
	return HeapBase + uint64(start), true
}

// global reserves permanent storage for module data
func (m *memory) global(size, align int) (uint64, error) {
	addr, ok := m.grow(max(size, 1), align)
	if !ok {
		return 0, faultf("out of memory placing globals (limit %d bytes)", m.limit)
	}
	return addr, nil
}

// malloc returns zeroed heap memory, or false when the limit is reached
func (m *memory) malloc(n uint64) (uint64, bool) {
	size, err := safecast.Conv[int](n)
	if err != nil || size > m.limit {
		return 0, false
	}
	size = roundUp(max(size, 1), minAlloc)
	if list := m.free[size]; len(list) > 0 {
		addr := list[len(list)-1]
		m.free[size] = list[:len(list)-1]
		delete(m.freed, addr)
		m.allocs[addr] = size
		clear(m.heap[addr-HeapBase : addr-HeapBase+uint64(size)])
		return addr, true
	}
	addr, ok := m.grow(size, minAlloc)
	if !ok {
		return 0, false
	}
	m.allocs[addr] = size
	return addr, true
}

// release frees a heap block. Freeing null is a no-op.
func (m *memory) release(addr uint64) error {
	if addr == 0 {
		return nil
	}
	size, ok := m.allocs[addr]
	if !ok {
		if m.freed[addr] {
			return faultf("double free of 0x%x", addr)
		}
		return faultf("free of 0x%x, which was not returned by malloc", addr)
	}
	delete(m.allocs, addr)
	m.freed[addr] = true
	m.free[size] = append(m.free[size], addr)
	return nil
}

// alloca reserves zeroed stack space in the current frame
func (m *memory) alloca(size, align int) (uint64, error) {
	start := roundUp(m.sp, max(align, 1))
	if size < 0 || start+size > len(m.stack) {
		return 0, faultf("stack overflow (%d bytes)", len(m.stack))
	}
	clear(m.stack[start : start+size])
	m.sp = start + size
	return StackBase + uint64(start), nil
}

// bytes returns the n bytes at addr
func (m *memory) bytes(addr uint64, n int) ([]byte, error) {
	end := addr + uint64(n)
	switch {
	case addr < NullPageSize:
		return nil, faultf("null pointer access at 0x%x", addr)
	case addr >= HeapBase && end >= addr && end <= HeapBase+uint64(len(m.heap)):
		off := addr - HeapBase
		return m.heap[off : off+uint64(n)], nil
	case addr >= StackBase && end >= addr && end <= StackBase+uint64(len(m.stack)):
		off := addr - StackBase
		return m.stack[off : off+uint64(n)], nil
	}
	return nil, faultf("invalid memory access of %d bytes at 0x%x", n, addr)
}

func (m *memory) load(addr uint64, sh *shape) (val, error) {
	if sh.kind == shStruct {
		v := val{agg: make([]val, len(sh.fields))}
		for i, f := range sh.fields {
			fv, err := m.load(addr+uint64(sh.offsets[i]), f)
			if err != nil {
				return val{}, err
			}
			v.agg[i] = fv
		}
		return v, nil
	}
	if sh.kind == shVoid {
		return val{}, faultf("load of unsized type %s", sh.name)
	}
	buf, err := m.bytes(addr, sh.storeSize())
	if err != nil {
		return val{}, err
	}
	var u uint64
	for i := len(buf) - 1; i >= 0; i-- {
		u = u<<8 | uint64(buf[i])
	}
	return val{u: u & mask(sh.bits)}, nil
}

func (m *memory) store(addr uint64, sh *shape, v val) error {
	if sh.kind == shStruct {
		for i, f := range sh.fields {
			if err := m.store(addr+uint64(sh.offsets[i]), f, v.agg[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if sh.kind == shVoid {
		return faultf("store of unsized type %s", sh.name)
	}
	buf, err := m.bytes(addr, sh.storeSize())
	if err != nil {
		return err
	}
	u := v.u
	for i := range buf {
		buf[i] = byte(u)
		u >>= 8
	}
	return nil
}

// cstring reads a NUL-terminated string
func (m *memory) cstring(addr uint64) (string, error) {
	var out []byte
	for {
		b, err := m.bytes(addr, 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
		addr++
	}
}

func f32(u uint64) float32 { return math.Float32frombits(uint32(u)) }
func f64(u uint64) float64 { return math.Float64frombits(u) }
func u32(f float32) uint64 { return uint64(math.Float32bits(f)) }
func u64(f float64) uint64 { return math.Float64bits(f) }
