package runtime

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/codegen"
	"github.com/hlop3z/xpdb/internal/testutil"
)

const blogSchema = `
const users = table("users", {
	id: uuidPK(),
	email: varchar("email_address", { length: 320 }).notNull().unique(),
	role: varchar({ enum: ["admin", "member"] }).notNull().default("member"),
	balance: numeric({ precision: 12, scale: 2 }),
	active: boolean().default(true),
	createdAt: timestamp().defaultNow(),
});

const posts = table("posts", {
	id: uuidPK(),
	authorId: uuid().notNull().references(() => users.id, { onDelete: "cascade" }),
	body: text(),
	views: integer().default(0),
});

module.exports = xpschema({ posts, users });
`

func load(t *testing.T, code string) *Module {
	t.Helper()
	m, err := LoadSource("schema.js", code, t.TempDir())
	testutil.AssertNoError(t, err)
	return m
}

// -----------------------------------------------------------------------------
// Evaluation Tests
// -----------------------------------------------------------------------------

func TestLoadCommonJS(t *testing.T) {
	m := load(t, blogSchema)
	if m.Schema == nil {
		t.Fatal("Schema is nil")
	}
	if got := m.Schema.Names(); !slices.Equal(got, []string{"posts", "users"}) {
		t.Errorf("tables = %v", got)
	}

	users := m.Schema.Table("users")
	if got := users.Keys(); !slices.Equal(got, []string{"id", "email", "role", "balance", "active", "createdAt"}) {
		t.Errorf("users keys = %v", got)
	}
	if got := users.ColumnNames(); !slices.Equal(got, []string{"id", "email_address", "role", "balance", "active", "created_at"}) {
		t.Errorf("users names = %v", got)
	}

	email := users.Col("email")
	if email.Type.Kind != ast.KindVarchar || email.Type.Length != 320 || email.IsNullable() || !email.Unique {
		t.Errorf("email = %+v", email)
	}
	role := users.Col("role")
	if !slices.Equal(role.Type.Enum, []string{"admin", "member"}) || role.Default == nil || role.Default.Value != "member" {
		t.Errorf("role = %+v", role)
	}
	if b := users.Col("balance").Type; b.Precision != 12 || b.Scale != 2 {
		t.Errorf("balance type = %s", b.Tag())
	}
	if d := users.Col("active").Default; d == nil || d.Value != true {
		t.Errorf("active default = %v", d)
	}
	if d := users.Col("createdAt").Default; d == nil || d.Kind != ast.DefaultNow {
		t.Errorf("createdAt default = %v", d)
	}
	if pk := users.PrimaryKey(); pk == nil || pk.Name != "id" {
		t.Errorf("primary key = %v", pk)
	}

	author := m.Schema.Table("posts").Col("authorId")
	if author.Ref == nil || author.Ref.String() != "users.id" {
		t.Fatalf("authorId ref = %v", author.Ref)
	}
	if !strings.EqualFold(author.Ref.OnDelete, "cascade") {
		t.Errorf("OnDelete = %q", author.Ref.OnDelete)
	}
	if d := m.Schema.Table("posts").Col("views").Default; d == nil || d.Value != int64(0) {
		t.Errorf("views default = %#v", d)
	}
}

func TestLoadModuleForms(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{
			name: "esm default export",
			code: `import { table, uuidPK, text } from "xpdb";

const notes = table("notes", { id: uuidPK(), body: text() });
export default xpschema({ notes });
`,
		},
		{
			name: "multi-line import",
			code: `import {
	table,
	uuidPK,
	text,
} from "xpdb";
export const notes = table("notes", { id: uuidPK(), body: text() });
export default xpschema({ notes });
`,
		},
		{
			name: "require",
			code: `const x = require("xpdb");
const notes = x.table("notes", { id: x.uuidPK(), body: x.text() });
exports.default = x.xpschema({ notes });
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := load(t, tt.code)
			if m.Schema == nil || !m.Schema.Has("notes") {
				t.Fatalf("schema = %v", m.Schema)
			}
			if got := m.Schema.Table("notes").Keys(); !slices.Equal(got, []string{"id", "body"}) {
				t.Errorf("keys = %v", got)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    alerr.Code
		message string
	}{
		{
			name:    "no export",
			code:    `const a = 1;`,
			want:    alerr.ErrSchemaExport,
			message: "schema export missing a .gen() method",
		},
		{
			name:    "export without gen",
			code:    `module.exports = { tables: [] };`,
			want:    alerr.ErrSchemaExport,
			message: "schema export missing a .gen() method",
		},
		{
			name: "reference throws",
			code: `const a = table("a", { id: uuidPK(), b: uuid().references(() => { throw new Error("boom"); }) });
module.exports = xpschema({ a });`,
			want:    alerr.ErrUnresolvedReference,
			message: "boom",
		},
		{
			name: "reference returns a non-column",
			code: `const a = table("a", { id: uuidPK(), b: uuid().references(() => 42) });
module.exports = xpschema({ a });`,
			want:    alerr.ErrUnresolvedReference,
			message: "no column",
		},
		{
			name: "reference to undeclared table",
			code: `const b = table("b", { id: uuidPK() });
const a = table("a", { id: uuidPK(), bId: uuid().references(() => b.id) });
module.exports = xpschema({ a });`,
			want:    alerr.ErrUnresolvedReference,
			message: `"b"`,
		},
		{
			name: "duplicate table",
			code: `const a = table("a", { id: uuidPK() });
const b = table("a", { id: uuidPK() });
module.exports = xpschema({ a, b });`,
			want: alerr.ErrDuplicateTable,
		},
		{
			name:    "not a column",
			code:    `table("a", { id: 1 });`,
			want:    alerr.ErrJSExecution,
			message: "not a column",
		},
		{
			name:    "references needs a function",
			code:    `uuid().references("users.id");`,
			want:    alerr.ErrJSExecution,
			message: "expects a function",
		},
		{
			name: "syntax error",
			code: `const a = table("a", {
	id: uuidPK(),,
});`,
			want:    alerr.ErrJSExecution,
			message: "line: 2",
		},
		{
			name: "eval disabled",
			code: `eval("1 + 1");`,
			want: alerr.ErrJSExecution,
		},
		{
			name:    "unknown module",
			code:    `require("fs");`,
			want:    alerr.ErrJSExecution,
			message: "cannot require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSource("schema.js", tt.code, t.TempDir())
			testutil.AssertError(t, err, tt.want)
			if tt.message != "" {
				testutil.AssertErrorContains(t, err, tt.message)
			}
			testutil.AssertErrorContains(t, err, "schema.js")
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("typescript", func(t *testing.T) {
		path := filepath.Join(dir, "schema.ts")
		code := `import { table, uuidPK, text, xpschema } from "xpdb";

interface Named { name: string }
const label = (n: Named): string => n.name;

const notes = table(label({ name: "notes" }), {
	id: uuidPK(),
	body: text() as ReturnType<typeof text>,
});

export default xpschema({ notes });
`
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			t.Fatal(err)
		}
		m, err := Load(path, dir)
		testutil.AssertNoError(t, err)
		if !m.Schema.Has("notes") {
			t.Fatalf("tables = %v", m.Schema.Names())
		}
		if got := m.Schema.Table("notes").Keys(); !slices.Equal(got, []string{"id", "body"}) {
			t.Errorf("keys = %v", got)
		}
	})

	t.Run("typescript syntax error", func(t *testing.T) {
		path := filepath.Join(dir, "broken.ts")
		if err := os.WriteFile(path, []byte("const n: number = ;\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path, dir)
		testutil.AssertError(t, err, alerr.ErrJSExecution)
		testutil.AssertErrorContains(t, err, "broken.ts")
		testutil.AssertErrorContains(t, err, "line: 1")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.js"), dir)
		testutil.AssertError(t, err, alerr.ErrSchemaNotFound)
	})

	t.Run("mjs", func(t *testing.T) {
		path := filepath.Join(dir, "schema.mjs")
		code := "import { table, uuidPK } from 'xpdb'\nexport default xpschema({ t: table('things', { id: uuidPK() }) })\n"
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			t.Fatal(err)
		}
		m, err := Load(path, dir)
		testutil.AssertNoError(t, err)
		if m.Path != path || !m.Schema.Has("things") {
			t.Errorf("module = %+v", m)
		}
	})
}

func TestTimeout(t *testing.T) {
	s := NewSandbox(t.TempDir())
	s.SetTimeout(50 * time.Millisecond)

	_, err := s.Run(`for (;;) {}`)
	testutil.AssertError(t, err, alerr.ErrJSExecution)
	testutil.AssertErrorContains(t, err, "finish within")

	// The VM is usable again afterwards.
	v, err := s.Run(`1 + 1`)
	testutil.AssertNoError(t, err)
	if v.ToInteger() != 2 {
		t.Errorf("1 + 1 = %v", v)
	}
}

// -----------------------------------------------------------------------------
// gen() Tests
// -----------------------------------------------------------------------------

func TestGenerate(t *testing.T) {
	dst := t.TempDir()
	m, err := LoadSource("schema.js", blogSchema, dst)
	testutil.AssertNoError(t, err)

	res, err := m.Generate(codegen.Options{
		Types:      true,
		Creates:    codegen.ParseSelection("sqlite"),
		Migrations: codegen.None(),
		Dst:        dst,
	})
	testutil.AssertNoError(t, err)

	var paths []string
	for _, f := range res.Files {
		paths = append(paths, filepath.Base(f.Path))
	}
	if !slices.Equal(paths, []string{"types.ts", "create.sqlite.sql"}) {
		t.Errorf("files = %v", paths)
	}

	sql, err := os.ReadFile(filepath.Join(dst, "create.sqlite.sql"))
	testutil.AssertNoError(t, err)
	users := strings.Index(string(sql), `CREATE TABLE "users"`)
	posts := strings.Index(string(sql), `CREATE TABLE "posts"`)
	if users < 0 || posts < 0 || users > posts {
		t.Errorf("users must be created before posts:\n%s", sql)
	}
}

func TestGenFromScript(t *testing.T) {
	dir := t.TempDir()
	code := `const notes = table("notes", { id: uuidPK(), body: text() });
const schema = xpschema({ notes });
const out = schema.gen({ dst: "out", types: false, creates: ["postgres", "mysql"], migrations: false });
if (out.files.length !== 2) throw new Error("expected two files, got " + out.files.length);
module.exports = schema;
`
	_, err := LoadSource(filepath.Join(dir, "schema.js"), code, filepath.Join(dir, "generated"))
	testutil.AssertNoError(t, err)

	for _, name := range []string{"create.postgres.sql", "create.mysql.sql"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "types.ts")); !os.IsNotExist(err) {
		t.Errorf("types.ts should not be written, stat err = %v", err)
	}
}

func TestGenerateWrappedExport(t *testing.T) {
	code := `const notes = table("notes", { id: uuidPK() });
module.exports = { gen() { return {}; } };
`
	m := load(t, code)
	if m.Schema != nil {
		t.Errorf("Schema = %v, want nil for a hand-written export", m.Schema)
	}
	_, err := m.Generate(codegen.DefaultOptions(t.TempDir()))
	testutil.AssertError(t, err, alerr.ErrSchemaExport)
}

// -----------------------------------------------------------------------------
// Transform Tests
// -----------------------------------------------------------------------------

func TestTransform(t *testing.T) {
	out, err := transform("schema.ts", "import { table } from \"xpdb\";\nconst n: number = 1;\nexport default table;\n")
	testutil.AssertNoError(t, err)
	for _, want := range []string{`require("xpdb")`, "module.exports", "sourceMappingURL=data:application/json"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, ": number") {
		t.Errorf("type annotation survived:\n%s", out)
	}

	// Plain CommonJS passes through.
	out, err = transform("schema.js", "module.exports = 1;\n")
	testutil.AssertNoError(t, err)
	if !strings.HasPrefix(out, "module.exports = 1;") {
		t.Errorf("output = %q", out)
	}
}

func TestErrorPositions(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		_, err := LoadSource("schema.js", "const a = table(\"a\", {\n\tid: uuidPK(),,\n});\n", t.TempDir())
		e, ok := alerr.As(err)
		if !ok {
			t.Fatalf("err = %v", err)
		}
		if e.Get("line") != "2" || e.Get("source") != "id: uuidPK(),," {
			t.Errorf("line = %q, source = %q", e.Get("line"), e.Get("source"))
		}
	})

	// Runtime positions go through the source map back to the file as written.
	t.Run("runtime error", func(t *testing.T) {
		code := "import { table } from \"xpdb\";\n\nconst a = 1;\nthrow new Error(\"boom\");\n"
		_, err := LoadSource("schema.js", code, t.TempDir())
		e, ok := alerr.As(err)
		if !ok {
			t.Fatalf("err = %v", err)
		}
		if e.Get("line") != "4" || e.Get("source") != `throw new Error("boom");` {
			t.Errorf("line = %q, source = %q", e.Get("line"), e.Get("source"))
		}
	})
}
