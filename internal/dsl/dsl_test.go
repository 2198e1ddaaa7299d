package dsl

import (
	"testing"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
)

// -----------------------------------------------------------------------------
// Column Builder Tests
// -----------------------------------------------------------------------------

func TestColumnConstructors(t *testing.T) {
	tests := []struct {
		name    string
		builder ColumnBuilder
		wantTag string
		wantSQL string
	}{
		{"text", Text("bio"), "text", "bio"},
		{"varchar default length", Varchar("email"), "varchar(255)", "email"},
		{"varchar length", Varchar("code", VarcharOpts{Length: 12}), "varchar(12)", "code"},
		{"enum", Varchar("status", VarcharOpts{Length: 16, Enum: []string{"draft", "live"}}), "enum(draft,live)", "status"},
		{"integer", Integer("loginCount"), "integer", "login_count"},
		{"numeric default", Numeric("price"), "numeric(10,0)", "price"},
		{"numeric", Numeric("price", NumericOpts{Precision: 12, Scale: 2}), "numeric(12,2)", "price"},
		{"uuid", UUID("authorId"), "uuid", "author_id"},
		{"timestamp", Timestamp("createdAt"), "timestamp", "created_at"},
		{"boolean", Boolean("isActive"), "boolean", "is_active"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := tt.builder.Build()
			if got := def.Type.Tag(); got != tt.wantTag {
				t.Errorf("tag = %q, want %q", got, tt.wantTag)
			}
			if def.Name != tt.wantSQL {
				t.Errorf("sql name = %q, want %q", def.Name, tt.wantSQL)
			}
			if !def.Nullable {
				t.Error("columns are nullable unless notNull() is applied")
			}
		})
	}
}

func TestEnumWidensDefaultLength(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	def := Varchar("kind", VarcharOpts{Enum: []string{"a", string(long)}}).Build()
	if def.Type.Length != 300 {
		t.Errorf("length = %d, want 300", def.Type.Length)
	}
}

func TestUUIDPK(t *testing.T) {
	def := UUIDPK("id").Build()
	if !def.PrimaryKey || def.Nullable || def.Type.Kind != ast.KindUUID {
		t.Errorf("UUIDPK = %+v", def)
	}
}

func TestModifiersReturnCopies(t *testing.T) {
	base := Text("name")
	strict := base.NotNull().Unique().Default("anon")

	if !base.Build().Nullable || base.Build().Unique || base.Build().Default != nil {
		t.Error("modifiers must not change the receiver")
	}
	def := strict.Build()
	if def.Nullable || !def.Unique {
		t.Errorf("modifiers not applied: %+v", def)
	}
	if def.Default.Kind != ast.DefaultLiteral || def.Default.Value != "anon" {
		t.Errorf("default = %+v", def.Default)
	}
}

func TestDefaults(t *testing.T) {
	now := Timestamp("createdAt").DefaultNow().Build()
	if now.Default.Kind != ast.DefaultNow {
		t.Errorf("DefaultNow kind = %v", now.Default.Kind)
	}
	expr := Integer("n").DefaultSQL("1 + 1").Build()
	if expr.Default.Kind != ast.DefaultExpr || expr.Default.Expr != "1 + 1" {
		t.Errorf("DefaultSQL = %+v", expr.Default)
	}
}

func TestNamedAndWithKey(t *testing.T) {
	def := Text("x").WithKey("displayName").Build()
	if def.Key != "displayName" || def.Name != "display_name" {
		t.Errorf("WithKey = %s/%s", def.Key, def.Name)
	}
	def = Text("x").Named("legacy_col").WithKey("displayName").Build()
	if def.Name != "legacy_col" {
		t.Errorf("explicit SQL name overwritten: %s", def.Name)
	}
}

// -----------------------------------------------------------------------------
// Table & Schema Tests
// -----------------------------------------------------------------------------

func TestMutualReferences(t *testing.T) {
	var users, teams *ast.TableDef

	users = Table("users",
		UUIDPK("id"),
		UUID("teamId").References(func() *ast.ColumnDef { return teams.Col("id") }, OnDelete("set null")),
	)
	teams = Table("teams",
		UUIDPK("id"),
		UUID("ownerId").References(func() *ast.ColumnDef { return users.Col("id") }),
	)

	s, err := Schema(users, teams)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if err := ast.ResolveReferences(s); err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if ref := users.Col("teamId").Ref; ref.String() != "teams.id" || ref.OnDelete != "set null" {
		t.Errorf("users.teamId -> %s (%s)", ref, ref.OnDelete)
	}
	if ref := teams.Col("ownerId").Ref; ref.String() != "users.id" {
		t.Errorf("teams.ownerId -> %s", ref)
	}
}

func TestSchemaErrors(t *testing.T) {
	users := Table("users", UUIDPK("id"))

	tests := []struct {
		name   string
		tables []*ast.TableDef
		want   alerr.Code
	}{
		{"duplicate", []*ast.TableDef{users, Table("users", Text("name"))}, alerr.ErrDuplicateTable},
		{"nil table", []*ast.TableDef{users, nil}, alerr.ErrSchemaInvalid},
		{"unnamed column", []*ast.TableDef{Table("posts", Text(""))}, alerr.ErrSchemaInvalid},
		{"empty table", []*ast.TableDef{Table("posts")}, alerr.ErrSchemaInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Schema(tt.tables...)
			if !alerr.Is(err, tt.want) {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}
}
