package engine

import (
	"fmt"
	"strings"
)

// formatC expands a C printf format against the variadic arguments of a
// call. Integer arguments are interpreted at the width they were passed
// with, narrowed further by hh/h length modifiers.
func formatC(m *machine, format string, args []val, shapes []*shape) (string, error) {
	var out strings.Builder
	next := 0
	take := func(conv byte) (val, *shape, error) {
		if next >= len(args) || next >= len(shapes) {
			return val{}, nil, faultf("printf: missing argument for %%%c", conv)
		}
		v, sh := args[next], shapes[next]
		next++
		return v, sh, nil
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			out.WriteByte('%')
			break
		}

		cv := conversion{}
		for ; i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0; i++ {
			cv.flags += string(format[i])
		}
		if i < len(format) && format[i] == '*' {
			v, sh, err := take('*')
			if err != nil {
				return "", err
			}
			w := signExtend(v.u, sh.bits)
			if w < 0 {
				cv.flags += "-"
				w = -w
			}
			cv.width = fmt.Sprint(w)
			i++
		} else {
			for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
				cv.width += string(format[i])
			}
		}
		if i < len(format) && format[i] == '.' {
			i++
			cv.hasPrec = true
			if i < len(format) && format[i] == '*' {
				v, sh, err := take('*')
				if err != nil {
					return "", err
				}
				if p := signExtend(v.u, sh.bits); p >= 0 {
					cv.prec = fmt.Sprint(p)
				} else {
					cv.hasPrec = false
				}
				i++
			} else {
				cv.prec = "0"
				start := i
				for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
				}
				if i > start {
					cv.prec = format[start:i]
				}
			}
		}
		for ; i < len(format) && strings.IndexByte("hlLqjzt", format[i]) >= 0; i++ {
			if format[i] == 'h' {
				if cv.narrow == 16 {
					cv.narrow = 8
				} else {
					cv.narrow = 16
				}
			}
		}
		if i >= len(format) {
			break
		}
		conv := format[i]
		if conv == '%' {
			out.WriteByte('%')
			continue
		}

		v, sh, err := take(conv)
		if err != nil {
			return "", err
		}
		text, err := cv.render(m, conv, v, sh)
		if err != nil {
			return "", err
		}
		out.WriteString(text)
	}
	return out.String(), nil
}

type conversion struct {
	flags   string
	width   string
	prec    string
	hasPrec bool
	narrow  uint32
}

func (c conversion) verb(v byte) string {
	s := "%" + c.flags + c.width
	if c.hasPrec {
		s += "." + c.prec
	}
	return s + string(v)
}

func (c conversion) bits(sh *shape) uint32 {
	bits := sh.bits
	if bits == 0 {
		bits = 64
	}
	if c.narrow != 0 && c.narrow < bits {
		bits = c.narrow
	}
	return bits
}

func (c conversion) render(m *machine, conv byte, v val, sh *shape) (string, error) {
	switch conv {
	case 'd', 'i':
		return fmt.Sprintf(c.verb('d'), signExtend(v.u, c.bits(sh))), nil
	case 'u':
		return fmt.Sprintf(c.verb('d'), v.u&mask(c.bits(sh))), nil
	case 'x', 'X', 'o':
		return fmt.Sprintf(c.verb(conv), v.u&mask(c.bits(sh))), nil
	case 'c':
		c.hasPrec = false
		return fmt.Sprintf(c.verb('c'), rune(byte(v.u))), nil
	case 's':
		s, err := m.mem.cstring(v.u)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(c.verb('s'), s), nil
	case 'p':
		c.hasPrec = false
		return fmt.Sprintf("%"+strings.ReplaceAll(c.flags, "0", "")+c.width+"s", fmt.Sprintf("0x%x", v.u)), nil
	case 'f', 'F', 'e', 'E', 'g', 'G':
		x := f64(v.u)
		if sh.kind == shF32 {
			x = float64(f32(v.u))
		}
		if !c.hasPrec {
			c.hasPrec, c.prec = true, "6"
		}
		if conv == 'F' {
			conv = 'f'
		}
		return fmt.Sprintf(c.verb(conv), x), nil
	}
	return "", faultf("printf: unsupported conversion %%%c", conv)
}
