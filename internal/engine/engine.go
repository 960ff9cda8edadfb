package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tliron/commonlog"

	"ssakit/internal/errors"
	"ssakit/internal/ir"
)

var log = commonlog.GetLogger("ssakit.engine")

// Kind selects how an engine executes code
type Kind int

const (
	Interpreter Kind = iota
	JIT
)

func (k Kind) String() string {
	if k == JIT {
		return "jit"
	}
	return "interpreter"
}

// Options configures an engine
type Options struct {
	Stdout       io.Writer
	Stdin        io.Reader
	MemoryLimit  int // bytes of globals and heap
	StackSize    int
	MaxCallDepth int
	Host         *Host
}

// Option modifies Options
type Option func(*Options)

func WithStdout(w io.Writer) Option   { return func(o *Options) { o.Stdout = w } }
func WithStdin(r io.Reader) Option    { return func(o *Options) { o.Stdin = r } }
func WithMemoryLimit(n int) Option    { return func(o *Options) { o.MemoryLimit = n } }
func WithStackSize(n int) Option      { return func(o *Options) { o.StackSize = n } }
func WithMaxCallDepth(n int) Option   { return func(o *Options) { o.MaxCallDepth = n } }
func WithHost(h *Host) Option         { return func(o *Options) { o.Host = h } }
func WithOptions(opts Options) Option { return func(o *Options) { merge(o, opts) } }

func defaultOptions() Options {
	return Options{
		Stdout:       os.Stdout,
		MemoryLimit:  64 << 20,
		StackSize:    1 << 20,
		MaxCallDepth: 10000,
		Host:         DefaultHost(),
	}
}

// merge copies the non-zero fields of src into dst
func merge(dst *Options, src Options) {
	if src.Stdout != nil {
		dst.Stdout = src.Stdout
	}
	if src.Stdin != nil {
		dst.Stdin = src.Stdin
	}
	if src.MemoryLimit > 0 {
		dst.MemoryLimit = src.MemoryLimit
	}
	if src.StackSize > 0 {
		dst.StackSize = src.StackSize
	}
	if src.MaxCallDepth > 0 {
		dst.MaxCallDepth = src.MaxCallDepth
	}
	if src.Host != nil {
		dst.Host = src.Host
	}
}

// Host stands for the process an engine runs in. It remembers which kind
// of engine was created first; an exclusive host refuses the other kind
// from then on.
type Host struct {
	mu        sync.Mutex
	exclusive bool
	claimed   bool
	kind      Kind
}

func NewHost(exclusive bool) *Host {
	return &Host{exclusive: exclusive}
}

var defaultHost = NewHost(false)

// DefaultHost is the non-exclusive host used when none is configured
func DefaultHost() *Host { return defaultHost }

// Claim records k as the host's engine kind, or fails if the host is
// exclusive and already runs the other kind
func (h *Host) Claim(k Kind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.claimed {
		h.claimed, h.kind = true, k
		return nil
	}
	if h.exclusive && h.kind != k {
		return initError(errors.ErrorEngineInit,
			"cannot create %s engine: host is already running a %s engine", k, h.kind)
	}
	return nil
}

// Kind returns the first engine kind created on h, if any
func (h *Host) Kind() (Kind, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kind, h.claimed
}

// Engine executes a snapshot of a module. Memory (globals and heap)
// persists across Run calls; the stack is reset for each one. An Engine is
// not safe for concurrent use.
type Engine struct {
	kind     Kind
	m        *machine
	disposed bool
}

// NewInterpreter prepares m for interpretation
func NewInterpreter(m *ir.Module, opts ...Option) (*Engine, error) {
	return newEngine(Interpreter, m, opts)
}

// NewJIT compiles m into closures. Every external a call refers to must be
// known to the engine.
func NewJIT(m *ir.Module, opts ...Option) (*Engine, error) {
	return newEngine(JIT, m, opts)
}

// New creates an engine of the given kind
func New(kind Kind, m *ir.Module, opts ...Option) (*Engine, error) {
	return newEngine(kind, m, opts)
}

func newEngine(kind Kind, mod *ir.Module, opts []Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if mod == nil {
		return nil, initError(errors.ErrorEngineInit, "no module given")
	}
	if o.MemoryLimit <= 0 || o.StackSize <= 0 || o.MaxCallDepth <= 0 {
		return nil, initError(errors.ErrorEngineInit, "memory, stack and call depth limits must be positive")
	}

	mem := newMemory(o.MemoryLimit, o.StackSize)
	prog, err := lower(mod, mem)
	if err != nil {
		log.Warningf("%s for module %q: %s", kind, mod.Name(), err)
		return nil, err
	}
	m := &machine{prog: prog, mem: mem, out: o.Stdout, maxDepth: o.MaxCallDepth}
	if m.out == nil {
		m.out = io.Discard
	}
	if o.Stdin != nil {
		m.in = bufio.NewReader(o.Stdin)
	}
	if kind == JIT {
		if err := m.compile(); err != nil {
			log.Warningf("jit for module %q: %s", mod.Name(), err)
			return nil, err
		}
	}
	if err := o.Host.Claim(kind); err != nil {
		return nil, err
	}

	log.Infof("created %s for module %q with %d functions", kind, prog.name, len(prog.funcs))
	return &Engine{kind: kind, m: m}, nil
}

func (e *Engine) Kind() Kind { return e.kind }

// FunctionNamed finds a function of the engine's snapshot by name. The
// returned function is the one the engine was created from.
func (e *Engine) FunctionNamed(name string) *ir.Function {
	if fc, ok := e.m.prog.byName[name]; ok {
		return fc.src
	}
	return nil
}

// Run calls fn with args and returns its result. fn must be a function of
// the module the engine was created from.
func (e *Engine) Run(fn *ir.Function, args []GenericValue) (GenericValue, error) {
	if e.disposed {
		return GenericValue{}, fmt.Errorf("engine: run after dispose")
	}
	fc, ok := e.m.prog.byIR[fn]
	if !ok {
		name := "<nil>"
		if fn != nil {
			name = fn.Name()
		}
		return GenericValue{}, fmt.Errorf("engine: function @%s is not part of module %q", name, e.m.prog.name)
	}
	return e.run(fc, args)
}

// RunNamed calls the function with the given name
func (e *Engine) RunNamed(name string, args ...GenericValue) (GenericValue, error) {
	if e.disposed {
		return GenericValue{}, fmt.Errorf("engine: run after dispose")
	}
	fc, ok := e.m.prog.byName[name]
	if !ok {
		return GenericValue{}, fmt.Errorf("engine: no function @%s in module %q", name, e.m.prog.name)
	}
	return e.run(fc, args)
}

func (e *Engine) run(fc *fnCode, args []GenericValue) (GenericValue, error) {
	if len(args) < len(fc.params) || len(args) > len(fc.params) && !fc.variadic {
		return GenericValue{}, fmt.Errorf("engine: @%s takes %d arguments, got %d", fc.name, len(fc.params), len(args))
	}
	vals := make([]val, len(args))
	shapes := fc.params
	for i, a := range args {
		if i < len(fc.params) {
			vals[i] = fc.params[i].fromGeneric(a)
			continue
		}
		if i == len(fc.params) {
			shapes = append([]*shape(nil), fc.params...)
		}
		vals[i] = val{u: a.bits}
		shapes = append(shapes, genericShape(a))
	}

	e.m.mem.sp = 0
	log.Debugf("running @%s with %d arguments", fc.name, len(args))
	var r val
	var err error
	if fc.decl {
		r, err = e.m.external(fc, vals, shapes)
	} else if e.kind == JIT {
		r, err = e.m.runCompiled(fc, vals, 0)
	} else {
		r, err = e.m.interpret(fc, vals, 0)
	}
	if err != nil {
		log.Debugf("@%s: %s", fc.name, err)
		return GenericValue{}, err
	}
	return fc.ret.toGeneric(r), nil
}

// Dispose releases the engine's memory. The engine cannot run afterwards.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.m.mem = newMemory(0, 0)
	e.m.prog = &program{byIR: map[*ir.Function]*fnCode{}, byName: map[string]*fnCode{}}
}
