package engine

import (
	"io"

	"fortio.org/safecast"
)

// callSite is what an external sees of a call: the argument values, their
// shapes as passed at the call site (variadic arguments included), and the
// declared return shape
type callSite struct {
	args   []val
	shapes []*shape
	ret    *shape
}

func (c *callSite) arg(i int) (val, error) {
	if i >= len(c.args) {
		return val{}, faultf("missing argument %d", i)
	}
	return c.args[i], nil
}

// retInt encodes an integer result at the declared return width
func (c *callSite) retInt(v int64) val {
	if c.ret == nil || c.ret.kind != shInt {
		return val{u: uint64(v)}
	}
	return val{u: uint64(v) & mask(c.ret.bits)}
}

type external func(m *machine, c *callSite) (val, error)

// externals is the C library subset available to executed modules
var externals = map[string]external{
	"printf":  extPrintf,
	"puts":    extPuts,
	"putchar": extPutchar,
	"getchar": extGetchar,
	"malloc":  extMalloc,
	"calloc":  extCalloc,
	"free":    extFree,
	"memset":  extMemset,
	"memcpy":  extMemcpy,
	"strlen":  extStrlen,
}

// Externals lists the symbols declarations may resolve to
func Externals() []string {
	names := make([]string, 0, len(externals))
	for name := range externals {
		names = append(names, name)
	}
	return names
}

func extPrintf(m *machine, c *callSite) (val, error) {
	fmtPtr, err := c.arg(0)
	if err != nil {
		return val{}, err
	}
	format, err := m.mem.cstring(fmtPtr.u)
	if err != nil {
		return val{}, err
	}
	text, err := formatC(m, format, c.args[1:], c.shapes[1:])
	if err != nil {
		return val{}, err
	}
	n, err := io.WriteString(m.out, text)
	if err != nil {
		return c.retInt(-1), nil
	}
	return c.retInt(int64(n)), nil
}

func extPuts(m *machine, c *callSite) (val, error) {
	p, err := c.arg(0)
	if err != nil {
		return val{}, err
	}
	s, err := m.mem.cstring(p.u)
	if err != nil {
		return val{}, err
	}
	if _, err := io.WriteString(m.out, s+"\n"); err != nil {
		return c.retInt(-1), nil
	}
	return c.retInt(int64(len(s) + 1)), nil
}

func extPutchar(m *machine, c *callSite) (val, error) {
	ch, err := c.arg(0)
	if err != nil {
		return val{}, err
	}
	if _, err := m.out.Write([]byte{byte(ch.u)}); err != nil {
		return c.retInt(-1), nil
	}
	return c.retInt(int64(byte(ch.u))), nil
}

func extGetchar(m *machine, c *callSite) (val, error) {
	if m.in == nil {
		return c.retInt(-1), nil
	}
	b, err := m.in.ReadByte()
	if err != nil {
		return c.retInt(-1), nil
	}
	return c.retInt(int64(b)), nil
}

func extMalloc(m *machine, c *callSite) (val, error) {
	n, err := c.arg(0)
	if err != nil {
		return val{}, err
	}
	addr, _ := m.mem.malloc(n.u)
	return val{u: addr}, nil
}

func extCalloc(m *machine, c *callSite) (val, error) {
	count, err := c.arg(0)
	if err != nil {
		return val{}, err
	}
	size, err := c.arg(1)
	if err != nil {
		return val{}, err
	}
	if size.u != 0 && count.u > ^uint64(0)/size.u {
		return val{}, nil
	}
	// heap memory is handed out zeroed
	addr, _ := m.mem.malloc(count.u * size.u)
	return val{u: addr}, nil
}

func extFree(m *machine, c *callSite) (val, error) {
	p, err := c.arg(0)
	if err != nil {
		return val{}, err
	}
	return val{}, m.mem.release(p.u)
}

func extMemset(m *machine, c *callSite) (val, error) {
	if len(c.args) < 3 {
		return val{}, faultf("memset needs 3 arguments")
	}
	n, err := safecast.Conv[int](c.args[2].u)
	if err != nil {
		return val{}, faultf("memset length %d out of range", c.args[2].u)
	}
	buf, err := m.mem.bytes(c.args[0].u, n)
	if err != nil {
		return val{}, err
	}
	for i := range buf {
		buf[i] = byte(c.args[1].u)
	}
	return c.args[0], nil
}

func extMemcpy(m *machine, c *callSite) (val, error) {
	if len(c.args) < 3 {
		return val{}, faultf("memcpy needs 3 arguments")
	}
	n, err := safecast.Conv[int](c.args[2].u)
	if err != nil {
		return val{}, faultf("memcpy length %d out of range", c.args[2].u)
	}
	src, err := m.mem.bytes(c.args[1].u, n)
	if err != nil {
		return val{}, err
	}
	dst, err := m.mem.bytes(c.args[0].u, n)
	if err != nil {
		return val{}, err
	}
	copy(dst, src)
	return c.args[0], nil
}

func extStrlen(m *machine, c *callSite) (val, error) {
	p, err := c.arg(0)
	if err != nil {
		return val{}, err
	}
	s, err := m.mem.cstring(p.u)
	if err != nil {
		return val{}, err
	}
	return c.retInt(int64(len(s))), nil
}
