package ir

import (
	"io"
	"strconv"

	"ssakit/internal/intern"
)

// Module is a named container of functions and globals bound to one
// Context. Everything a module references must have been created through
// it.
type Module struct {
	ctx     *Context
	name    intern.Handle
	funcs   []*Function
	byName  map[string]*Function
	globals []*Global
	gnames  map[string]*Global
}

func newModule(c *Context, name string) *Module {
	return &Module{
		ctx:    c,
		name:   c.intern(name),
		byName: make(map[string]*Function),
		gnames: make(map[string]*Global),
	}
}

func (m *Module) Name() string      { return m.ctx.str(m.name) }
func (m *Module) Context() *Context { return m.ctx }

// AddFunction adds a function with the given signature. A name taken by a
// function or global gets a numeric suffix, so the returned function may be
// named "name.1".
func (m *Module) AddFunction(name string, sig *FuncType) *Function {
	m.ctx.own("Module.AddFunction", sig)
	unique := m.uniqueSymbol(name)
	f := newFunction(m, unique, sig)
	m.funcs = append(m.funcs, f)
	m.byName[unique] = f
	return f
}

// NamedFunction looks a function up by exact name
func (m *Module) NamedFunction(name string) *Function {
	return m.byName[name]
}

// GetOrAddFunction returns the function called name, adding it when
// missing. An existing function with a different signature is an error;
// the existing function is still returned.
func (m *Module) GetOrAddFunction(name string, sig *FuncType) (*Function, error) {
	if f, ok := m.byName[name]; ok {
		if f.sig != sig {
			return f, &SignatureMismatchError{Name: name, Existing: f.sig, Requested: sig}
		}
		return f, nil
	}
	return m.AddFunction(name, sig), nil
}

func (m *Module) Functions() []*Function {
	return append([]*Function(nil), m.funcs...)
}

// AddGlobalString adds a private constant holding text and a trailing NUL.
// The global's value is an i8* to the first byte.
func (m *Module) AddGlobalString(name, text string) *Global {
	g := &Global{
		module: m,
		typ:    m.ctx.Int8PointerType(),
		data:   append([]byte(text), 0),
	}
	m.addGlobal(g, name)
	return g
}

// AddGlobal adds a mutable global variable initialized to init
func (m *Module) AddGlobal(name string, init *Const) *Global {
	m.ctx.own("Module.AddGlobal", init.Type())
	g := &Global{module: m, typ: m.ctx.PointerType(init.Type()), init: init}
	m.addGlobal(g, name)
	return g
}

func (m *Module) addGlobal(g *Global, name string) {
	if name == "" {
		name = ".str"
	}
	unique := m.uniqueSymbol(name)
	g.name = m.ctx.intern(unique)
	m.globals = append(m.globals, g)
	m.gnames[unique] = g
}

func (m *Module) Globals() []*Global {
	return append([]*Global(nil), m.globals...)
}

// NamedGlobal looks a global up by exact name
func (m *Module) NamedGlobal(name string) *Global {
	return m.gnames[name]
}

// uniqueSymbol returns name, suffixed if a function or global already
// holds it. Functions and globals share one symbol namespace.
func (m *Module) uniqueSymbol(name string) string {
	unique := name
	for i := 1; ; i++ {
		_, fn := m.byName[unique]
		_, gl := m.gnames[unique]
		if !fn && !gl {
			return unique
		}
		unique = name + "." + strconv.Itoa(i)
	}
}

// Verify checks the module for well-formedness. It returns nil or a
// *VerifyError and never modifies the module.
func (m *Module) Verify() error {
	return Verify(m)
}

// String renders the module as text
func (m *Module) String() string {
	return Print(m)
}

// Dump writes the module's text to w
func (m *Module) Dump(w io.Writer) error {
	_, err := io.WriteString(w, Print(m))
	return err
}
