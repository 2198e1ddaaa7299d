package runtime

import (
	"path/filepath"
	"strings"

	"github.com/dop251/goja"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/codegen"
	"github.com/hlop3z/xpdb/internal/dsl"
)

// ModuleName is the name schema files require() or import the builders from.
const ModuleName = "xpdb"

// bindDSL installs the builders as globals and behind require("xpdb").
func (s *Sandbox) bindDSL() {
	api := s.vm.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = api.Set(name, fn)
		_ = s.vm.Set(name, fn)
	}

	set("text", s.simpleColumn(dsl.Text))
	set("integer", s.simpleColumn(dsl.Integer))
	set("uuid", s.simpleColumn(dsl.UUID))
	set("uuidPK", s.simpleColumn(dsl.UUIDPK))
	set("timestamp", s.simpleColumn(dsl.Timestamp))
	set("boolean", s.simpleColumn(dsl.Boolean))
	set("varchar", s.varcharFunc)
	set("numeric", s.numericFunc)
	set("table", s.tableFunc)
	set("xpschema", s.schemaFunc)

	_ = s.vm.Set("require", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if name != ModuleName && !strings.HasPrefix(name, ModuleName+"/") {
			s.throwType("cannot require %q: only %q is available", name, ModuleName)
		}
		return api
	})
}

// ----------------------------------------------------------------------------
// Columns
// ----------------------------------------------------------------------------

// nameAndOpts splits builder(name?, opts?) arguments.
func (s *Sandbox) nameAndOpts(call goja.FunctionCall) (string, *goja.Object) {
	var name string
	args := call.Arguments
	if len(args) > 0 {
		if str, ok := args[0].Export().(string); ok {
			name = str
			args = args[1:]
		} else if goja.IsUndefined(args[0]) || goja.IsNull(args[0]) {
			args = args[1:]
		}
	}
	if len(args) > 0 {
		if obj, ok := args[0].(*goja.Object); ok {
			return name, obj
		}
	}
	return name, nil
}

// named applies an explicit SQL name. The key is filled in by table().
func named(b dsl.ColumnBuilder, name string) dsl.ColumnBuilder {
	if name != "" {
		return b.Named(name)
	}
	return b
}

func (s *Sandbox) simpleColumn(ctor func(string) dsl.ColumnBuilder) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name, _ := s.nameAndOpts(call)
		return s.columnObject(named(ctor(""), name))
	}
}

func (s *Sandbox) varcharFunc(call goja.FunctionCall) goja.Value {
	name, opts := s.nameAndOpts(call)
	var o dsl.VarcharOpts
	if opts != nil {
		o.Length = intOpt(opts, "length")
		if v := opts.Get("enum"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			var values []string
			if err := s.vm.ExportTo(v, &values); err != nil {
				s.throwType("varchar enum must be an array of strings")
			}
			o.Enum = values
		}
	}
	return s.columnObject(named(dsl.Varchar("", o), name))
}

func (s *Sandbox) numericFunc(call goja.FunctionCall) goja.Value {
	name, opts := s.nameAndOpts(call)
	var o dsl.NumericOpts
	if opts != nil {
		o.Precision = intOpt(opts, "precision")
		o.Scale = intOpt(opts, "scale")
	}
	return s.columnObject(named(dsl.Numeric("", o), name))
}

func intOpt(obj *goja.Object, key string) int {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return int(v.ToInteger())
}

func stringOpt(obj *goja.Object, key string) string {
	if obj == nil {
		return ""
	}
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// columnObject wraps a builder. Every modifier returns a fresh object.
func (s *Sandbox) columnObject(b dsl.ColumnBuilder) *goja.Object {
	obj := s.vm.NewObject()
	s.hide(obj, hiddenColumn, &b)

	modifier := func(name string, fn func(goja.FunctionCall) dsl.ColumnBuilder) {
		_ = obj.Set(name, func(call goja.FunctionCall) goja.Value {
			return s.columnObject(fn(call))
		})
	}

	modifier("notNull", func(goja.FunctionCall) dsl.ColumnBuilder { return b.NotNull() })
	modifier("unique", func(goja.FunctionCall) dsl.ColumnBuilder { return b.Unique() })
	modifier("primaryKey", func(goja.FunctionCall) dsl.ColumnBuilder { return b.PrimaryKey() })
	modifier("defaultNow", func(goja.FunctionCall) dsl.ColumnBuilder { return b.DefaultNow() })
	modifier("default", func(call goja.FunctionCall) dsl.ColumnBuilder {
		return b.Default(call.Argument(0).Export())
	})
	modifier("defaultSQL", func(call goja.FunctionCall) dsl.ColumnBuilder {
		return b.DefaultSQL(call.Argument(0).String())
	})
	modifier("named", func(call goja.FunctionCall) dsl.ColumnBuilder {
		return b.Named(call.Argument(0).String())
	})
	modifier("references", func(call goja.FunctionCall) dsl.ColumnBuilder {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			s.throwType("references() expects a function returning a column, e.g. () => users.id")
		}
		opts, _ := call.Argument(1).(*goja.Object)
		return b.References(s.referenceThunk(fn),
			dsl.OnDelete(stringOpt(opts, "onDelete")),
			dsl.OnUpdate(stringOpt(opts, "onUpdate")))
	})
	return obj
}

// referenceThunk defers the JS function until the schema resolves references.
func (s *Sandbox) referenceThunk(fn goja.Callable) func() *ast.ColumnDef {
	return func() *ast.ColumnDef {
		v, err := fn(goja.Undefined())
		if err != nil {
			panic(ParseJSError(err).Message)
		}
		col, ok := handle[*ast.ColumnDef](v, hiddenRef)
		if !ok {
			return nil
		}
		return col
	}
}

// ----------------------------------------------------------------------------
// Tables and schema
// ----------------------------------------------------------------------------

// tableFunc implements table(name, {key: column}). Keys keep their
// declaration order.
func (s *Sandbox) tableFunc(call goja.FunctionCall) goja.Value {
	name := call.Argument(0)
	if goja.IsUndefined(name) || goja.IsNull(name) || name.String() == "" {
		s.throwType("table() requires a name")
	}
	cols, ok := call.Argument(1).(*goja.Object)
	if !ok {
		s.throwType("table(%q) requires an object of columns", name.String())
	}

	builders := make([]dsl.ColumnBuilder, 0, len(cols.Keys()))
	for _, key := range cols.Keys() {
		b, ok := handle[*dsl.ColumnBuilder](cols.Get(key), hiddenColumn)
		if !ok {
			s.throwType("table(%q): %q is not a column", name.String(), key)
		}
		builders = append(builders, b.WithKey(key))
	}
	def := dsl.Table(name.String(), builders...)

	obj := s.vm.NewObject()
	s.hide(obj, hiddenTable, def)
	for _, col := range def.Columns {
		ref := s.vm.NewObject()
		s.hide(ref, hiddenRef, col)
		_ = ref.Set("table", def.Name)
		_ = ref.Set("name", col.Name)
		_ = obj.Set(col.Key, ref)
	}
	return obj
}

// schemaFunc implements xpschema({...tables}).
func (s *Sandbox) schemaFunc(call goja.FunctionCall) goja.Value {
	arg, ok := call.Argument(0).(*goja.Object)
	if !ok {
		s.throwType("xpschema() requires an object of tables")
	}

	tables := make([]*ast.TableDef, 0, len(arg.Keys()))
	for _, key := range arg.Keys() {
		def, ok := handle[*ast.TableDef](arg.Get(key), hiddenTable)
		if !ok {
			s.throwType("xpschema(): %q is not a table", key)
		}
		tables = append(tables, def)
	}

	schema, err := dsl.Schema(tables...)
	if err != nil {
		s.fail(err)
	}
	if err := ast.ResolveReferences(schema); err != nil {
		s.fail(err)
	}

	obj := s.vm.NewObject()
	s.hide(obj, hiddenSchema, schema)
	_ = obj.Set("tables", schema.Names())
	_ = obj.Set("gen", func(call goja.FunctionCall) goja.Value {
		return s.gen(schema, call.Argument(0))
	})
	return obj
}

// ----------------------------------------------------------------------------
// gen()
// ----------------------------------------------------------------------------

func (s *Sandbox) gen(schema *ast.Schema, arg goja.Value) goja.Value {
	opts := s.genOptions(arg)
	res, err := codegen.Generate(schema, opts)
	if err != nil {
		s.fail(err)
	}
	s.result = res

	files := make([]any, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, map[string]any{"kind": f.Kind, "dialect": f.Dialect, "path": f.Path})
	}
	return s.vm.ToValue(map[string]any{
		"fingerprint": res.Fingerprint,
		"files":       files,
		"warnings":    stringsToAny(res.Warnings),
	})
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// genOptions reads {types, creates, migrations, dst}. creates and migrations
// take "all", "none", a comma list, an array of names or false.
func (s *Sandbox) genOptions(arg goja.Value) codegen.Options {
	if s.pending != nil {
		return *s.pending
	}
	opts := codegen.DefaultOptions(s.dst)
	obj, ok := arg.(*goja.Object)
	if !ok {
		return opts
	}

	if v := obj.Get("types"); v != nil && !goja.IsUndefined(v) {
		opts.Types = v.ToBoolean()
	}
	if v := obj.Get("creates"); v != nil && !goja.IsUndefined(v) {
		opts.Creates = s.selection(v)
	}
	if v := obj.Get("migrations"); v != nil && !goja.IsUndefined(v) {
		opts.Migrations = s.selection(v)
	}
	if dst := stringOpt(obj, "dst"); dst != "" {
		if !filepath.IsAbs(dst) && s.file != "" {
			dst = filepath.Join(filepath.Dir(s.file), dst)
		}
		opts.Dst = dst
	}
	return opts
}

func (s *Sandbox) selection(v goja.Value) codegen.Selection {
	switch exported := v.Export().(type) {
	case bool:
		if exported {
			return codegen.All()
		}
		return codegen.None()
	case []any:
		names := make([]string, 0, len(exported))
		for _, n := range exported {
			if str, ok := n.(string); ok {
				names = append(names, str)
			}
		}
		if len(names) == 0 {
			return codegen.None()
		}
		return codegen.ParseSelection(strings.Join(names, ","))
	default:
		return codegen.ParseSelection(v.String())
	}
}

// genError is returned when the export cannot generate.
func (s *Sandbox) genError() error {
	return s.errorf(alerr.ErrSchemaExport, "schema export missing a .gen() method").
		WithHelp("end the file with: module.exports = xpschema({ ... })")
}
