// Package runtime evaluates JavaScript schema files in a goja sandbox and turns
// the tables they declare into an ast.Schema.
package runtime

import (
	"math/rand"
	"time"

	"github.com/dop251/goja"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/codegen"
)

// FixedSeed seeds Math.random so repeated evaluations agree.
const FixedSeed = 12345

// MaxCallStackSize bounds recursion in schema files.
const MaxCallStackSize = 1000

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 5 * time.Second

// Hidden property names carrying Go handles on JS objects.
const (
	hiddenColumn = "__column"
	hiddenTable  = "__table"
	hiddenRef    = "__ref"
	hiddenSchema = "__schema"
)

// Sandbox is a hardened goja runtime with the schema builders bound as globals.
// A Sandbox is not safe for concurrent use.
type Sandbox struct {
	vm      *goja.Runtime
	timeout time.Duration

	// dst is the output directory gen() uses when none is given.
	dst string

	// pending overrides the options gen() parses from its argument.
	pending *codegen.Options
	// result holds the last gen() outcome.
	result *codegen.Result
	// failure holds the Go error behind the last thrown GoError.
	failure error

	file string
	code string
}

// NewSandbox creates a sandbox whose gen() writes to dst by default.
func NewSandbox(dst string) *Sandbox {
	vm := goja.New()
	vm.SetMaxCallStackSize(MaxCallStackSize)

	seeded := rand.New(rand.NewSource(FixedSeed))
	vm.SetRandSource(func() float64 { return seeded.Float64() })

	disableDangerousGlobals(vm)

	s := &Sandbox{vm: vm, timeout: DefaultTimeout, dst: dst}
	s.bindModule()
	s.bindDSL()
	return s
}

// SetTimeout changes the evaluation time limit.
func (s *Sandbox) SetTimeout(d time.Duration) {
	s.timeout = d
}

func disableDangerousGlobals(vm *goja.Runtime) {
	_ = vm.Set("eval", goja.Undefined())

	_, _ = vm.RunString(`
		(function() {
			try {
				Object.freeze(Object.prototype);
				Object.freeze(Array.prototype);
				Object.freeze(String.prototype);
				Object.freeze(Number.prototype);
				Object.freeze(Boolean.prototype);
			} catch(e) {}
		})();
	`)
}

// bindModule installs the CommonJS globals.
func (s *Sandbox) bindModule() {
	module := s.vm.NewObject()
	exports := s.vm.NewObject()
	_ = module.Set("exports", exports)
	_ = s.vm.Set("module", module)
	_ = s.vm.Set("exports", exports)
}

// Run evaluates code under the sandbox timeout.
func (s *Sandbox) Run(code string) (goja.Value, error) {
	return s.run(code, code)
}

// run evaluates compiled. Error snippets quote src, the code as written.
func (s *Sandbox) run(src, compiled string) (goja.Value, error) {
	s.code = src

	stop := s.armTimeout()
	defer stop()

	v, err := s.vm.RunString(compiled)
	if err != nil {
		return nil, s.wrapJSError(err, "JavaScript execution failed")
	}
	return v, nil
}

// armTimeout interrupts the VM once the timeout passes. The returned func
// disarms it.
func (s *Sandbox) armTimeout() func() {
	s.failure = nil
	timer := time.AfterFunc(s.timeout, func() {
		s.vm.Interrupt("execution timeout")
	})
	return func() {
		timer.Stop()
		s.vm.ClearInterrupt()
	}
}

// Exports returns module.exports, preferring its default export when present.
func (s *Sandbox) Exports() goja.Value {
	module := s.vm.Get("module").ToObject(s.vm)
	exp := module.Get("exports")
	if obj, ok := exp.(*goja.Object); ok {
		if def := obj.Get("default"); def != nil && !goja.IsUndefined(def) && !goja.IsNull(def) {
			return def
		}
	}
	return exp
}

// ----------------------------------------------------------------------------
// Go <-> JS handles
// ----------------------------------------------------------------------------

// hide stores v on obj under a non-enumerable, read-only name.
func (s *Sandbox) hide(obj *goja.Object, name string, v any) {
	_ = obj.DefineDataProperty(name, s.vm.ToValue(v), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// handle reads a hidden Go value back from a JS value.
func handle[T any](v goja.Value, name string) (T, bool) {
	var zero T
	obj, ok := v.(*goja.Object)
	if !ok {
		return zero, false
	}
	h := obj.Get(name)
	if h == nil || goja.IsUndefined(h) {
		return zero, false
	}
	out, ok := h.Export().(T)
	return out, ok
}

// fail throws err into JS and remembers it so the Go caller gets it back intact.
func (s *Sandbox) fail(err error) {
	s.failure = err
	panic(s.vm.NewGoError(err))
}

// throwType raises a JS TypeError.
func (s *Sandbox) throwType(format string, args ...any) {
	panic(s.vm.NewTypeError(append([]any{format}, args...)...))
}

// schemaOf extracts the schema behind an xpschema() result.
func schemaOf(v goja.Value) (*ast.Schema, bool) {
	return handle[*ast.Schema](v, hiddenSchema)
}

func (s *Sandbox) errorf(code alerr.Code, format string, args ...any) *alerr.Error {
	e := alerr.Newf(code, format, args...)
	if s.file != "" {
		e.WithFile(s.file)
	}
	return e
}
