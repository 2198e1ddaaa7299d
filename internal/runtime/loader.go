package runtime

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/codegen"
)

// Extensions Load evaluates. TypeScript is stripped to JavaScript first.
var Extensions = []string{".ts", ".mts", ".cts", ".js", ".mjs", ".cjs"}

// Module is an evaluated schema file.
type Module struct {
	Path   string
	Schema *ast.Schema

	sandbox *Sandbox
	gen     goja.Callable
	export  goja.Value
}

// Load evaluates the schema file at path. Generated files go to dst unless the
// schema's gen() call names another directory.
func Load(path, dst string) (*Module, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, alerr.New(alerr.ErrSchemaNotFound, "schema file not found").WithFile(path)
		}
		return nil, alerr.Wrap(alerr.ErrJSExecution, err, "failed to read schema file").WithFile(path)
	}
	return LoadSource(path, string(code), dst)
}

// LoadSource evaluates code as if read from path. The extension of path picks
// the loader, so a .ts path is type-stripped.
func LoadSource(path, code, dst string) (*Module, error) {
	s := NewSandbox(dst)
	s.file = path

	compiled, err := transform(path, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.run(code, compiled); err != nil {
		return nil, err
	}

	export := s.Exports()
	obj, ok := export.(*goja.Object)
	if !ok {
		return nil, s.genError()
	}
	gen, ok := goja.AssertFunction(obj.Get("gen"))
	if !ok {
		return nil, s.genError()
	}

	m := &Module{Path: path, sandbox: s, gen: gen, export: export}
	if schema, ok := schemaOf(export); ok {
		m.Schema = schema
	}
	return m, nil
}

// Generate calls the export's gen() with opts and returns what it wrote.
func (m *Module) Generate(opts codegen.Options) (*codegen.Result, error) {
	s := m.sandbox
	s.pending = &opts
	s.result = nil
	defer func() { s.pending = nil }()

	stop := s.armTimeout()
	defer stop()

	if _, err := m.gen(m.export); err != nil {
		return nil, s.wrapJSError(err, "gen() failed")
	}
	if s.result == nil {
		// A wrapped gen() that never reached the builtin one.
		return nil, s.genError()
	}
	return s.result, nil
}

// ----------------------------------------------------------------------------
// Module syntax
// ----------------------------------------------------------------------------

// transform compiles a schema file to CommonJS with esbuild. Imports become
// require() calls, and the inline source map keeps goja's stack positions on
// the original lines.
func transform(path, code string) (string, error) {
	loader := api.LoaderJS
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		loader = api.LoaderTS
	}

	res := api.Transform(code, api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Target:     api.ES2017,
		Sourcemap:  api.SourceMapInline,
		Sourcefile: filepath.Base(path),
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) == 0 {
		return string(res.Code), nil
	}

	msg := res.Errors[0]
	e := alerr.New(alerr.ErrJSExecution, "JavaScript syntax error: "+msg.Text).WithFile(path)
	if loc := msg.Location; loc != nil {
		e.With("line", loc.Line).With("column", loc.Column+1)
		if src := strings.TrimSpace(loc.LineText); src != "" {
			e.With("source", src)
		}
	}
	return "", e
}
