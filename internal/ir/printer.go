package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Printer renders a module as LLVM-flavoured text. Unnamed values and
// blocks are numbered per function; clashing names get a numeric suffix.
type Printer struct {
	indent int
	output strings.Builder
	locals map[any]string
}

func newPrinter() *Printer {
	return &Printer{locals: make(map[any]string)}
}

// Print returns the text of m
func Print(m *Module) string {
	p := newPrinter()
	p.printModule(m)
	return p.output.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printModule(m *Module) {
	p.writeLine("; ModuleID = '%s'", m.Name())

	structs := m.ctx.NamedStructs()
	if len(structs) > 0 {
		p.writeLine("")
	}
	for _, st := range structs {
		p.writeLine("%s = type %s", st, st.BodyString())
	}

	if len(m.globals) > 0 {
		p.writeLine("")
	}
	for _, g := range m.globals {
		if g.IsString() {
			p.writeLine("@%s = private unnamed_addr constant [%d x i8] c\"%s\"", g.Name(), len(g.data), escapeBytes(g.data))
			continue
		}
		p.writeLine("@%s = private global %s %s", g.Name(), g.init.Type(), g.init)
	}

	for _, f := range m.funcs {
		p.writeLine("")
		p.printFunction(f)
	}
}

func (p *Printer) printFunction(f *Function) {
	p.numberFunction(f)

	params := make([]string, 0, len(f.params)+1)
	for _, a := range f.params {
		if f.IsDeclaration() {
			params = append(params, a.typ.String())
		} else {
			params = append(params, a.typ.String()+" "+p.ref(a))
		}
	}
	if f.sig.variadic {
		params = append(params, "...")
	}
	header := fmt.Sprintf("%s @%s(%s)", f.sig.ret, f.Name(), strings.Join(params, ", "))

	if f.IsDeclaration() {
		p.writeLine("declare %s", header)
		return
	}

	p.writeLine("define %s {", header)
	for i, b := range f.blocks {
		if i > 0 {
			p.writeLine("")
		}
		p.writeLine("%s:", strings.TrimPrefix(p.label(b), "%"))
		p.indent++
		for _, in := range b.instrs {
			for _, line := range strings.Split(p.instr(in), "\n") {
				p.writeLine("%s", line)
			}
		}
		p.indent--
	}
	p.writeLine("}")
}

// numberFunction assigns a printable name to every local of f
func (p *Printer) numberFunction(f *Function) {
	used := make(map[string]bool)
	next := 0
	assign := func(key any, name string) {
		if name == "" {
			for used[strconv.Itoa(next)] {
				next++
			}
			name = strconv.Itoa(next)
			next++
		} else if used[name] {
			base := name
			for i := 1; used[name]; i++ {
				name = base + strconv.Itoa(i)
			}
		}
		used[name] = true
		p.locals[key] = "%" + name
	}

	for _, a := range f.params {
		assign(a, a.Name())
	}
	for _, b := range f.blocks {
		assign(b, b.Name())
		for _, in := range b.instrs {
			if in.ProducesValue() {
				assign(in, in.Name())
			}
		}
	}
}

func (p *Printer) ref(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<null>"
	case *Const:
		return v.String()
	case *Function:
		return "@" + v.Name()
	case *Global:
		return "@" + v.Name()
	}
	if name, ok := p.locals[v]; ok {
		return name
	}
	if v.Name() != "" {
		return "%" + v.Name()
	}
	return "%<badref>"
}

func (p *Printer) typed(v Value) string {
	if v == nil {
		return "<null>"
	}
	return v.Type().String() + " " + p.ref(v)
}

func (p *Printer) label(b *BasicBlock) string {
	if b == nil {
		return "%<null>"
	}
	if name, ok := p.locals[b]; ok {
		return name
	}
	return "%" + b.Name()
}

func (p *Printer) instr(in *Instr) string {
	var b strings.Builder
	if in.ProducesValue() {
		b.WriteString(p.ref(in))
		b.WriteString(" = ")
	}
	ops := in.operands

	switch in.op {
	case OpAlloca, OpMalloc:
		fmt.Fprintf(&b, "%s %s", in.op, in.elem)
		if len(ops) > 0 {
			fmt.Fprintf(&b, ", %s", p.typed(ops[0]))
		}
	case OpFree:
		fmt.Fprintf(&b, "free %s", p.typed(ops[0]))
	case OpLoad:
		fmt.Fprintf(&b, "load %s, %s", in.typ, p.typed(ops[0]))
	case OpStore:
		fmt.Fprintf(&b, "store %s, %s", p.typed(ops[0]), p.typed(ops[1]))
	case OpStructGEP:
		elem := "opaque"
		if in.elem != nil {
			elem = in.elem.String()
		}
		fmt.Fprintf(&b, "getelementptr %s, %s, i32 0, i32 %d", elem, p.typed(ops[0]), in.indices[0])
	case OpGEP:
		elem := "void"
		if in.elem != nil {
			elem = in.elem.String()
		}
		fmt.Fprintf(&b, "getelementptr inbounds %s", elem)
		for _, op := range ops {
			fmt.Fprintf(&b, ", %s", p.typed(op))
		}
	case OpFNeg:
		fmt.Fprintf(&b, "fneg %s", p.typed(ops[0]))
	case OpICmp:
		fmt.Fprintf(&b, "icmp %s %s, %s", in.IntPredicate(), p.typed(ops[0]), p.ref(ops[1]))
	case OpFCmp:
		fmt.Fprintf(&b, "fcmp %s %s, %s", in.FloatPredicate(), p.typed(ops[0]), p.ref(ops[1]))
	case OpExtractValue:
		fmt.Fprintf(&b, "extractvalue %s, %d", p.typed(ops[0]), in.indices[0])
	case OpInsertValue:
		fmt.Fprintf(&b, "insertvalue %s, %s, %d", p.typed(ops[0]), p.typed(ops[1]), in.indices[0])
	case OpSelect:
		fmt.Fprintf(&b, "select %s, %s, %s", p.typed(ops[0]), p.typed(ops[1]), p.typed(ops[2]))
	case OpPhi:
		fmt.Fprintf(&b, "phi %s ", in.typ)
		for i, v := range ops {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "[ %s, %s ]", p.ref(v), p.label(in.targets[i]))
		}
	case OpCall:
		if in.tail {
			b.WriteString("tail ")
		}
		args := make([]string, len(ops))
		for i, a := range ops {
			args[i] = p.typed(a)
		}
		fmt.Fprintf(&b, "call %s @%s(%s)", in.typ, in.callee.Name(), strings.Join(args, ", "))
	case OpBr:
		fmt.Fprintf(&b, "br label %s", p.label(in.targets[0]))
	case OpCondBr:
		fmt.Fprintf(&b, "br %s, label %s, label %s", p.typed(ops[0]), p.label(in.targets[0]), p.label(in.targets[1]))
	case OpSwitch:
		fmt.Fprintf(&b, "switch %s, label %s [", p.typed(ops[0]), p.label(in.targets[0]))
		for i := 1; i < len(ops); i++ {
			fmt.Fprintf(&b, "\n  %s, label %s", p.typed(ops[i]), p.label(in.targets[i]))
		}
		b.WriteString("\n]")
	case OpRet:
		if len(ops) == 0 {
			b.WriteString("ret void")
		} else {
			fmt.Fprintf(&b, "ret %s", p.typed(ops[0]))
		}
	case OpUnreachable:
		b.WriteString("unreachable")
	default:
		if in.op.IsCast() {
			fmt.Fprintf(&b, "%s %s to %s", in.op, p.typed(ops[0]), in.typ)
			break
		}
		fmt.Fprintf(&b, "%s %s, %s", in.op, p.typed(ops[0]), p.ref(ops[1]))
	}
	return b.String()
}

func escapeBytes(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "\\%02X", c)
	}
	return b.String()
}
