package engine

import (
	"strings"
	"testing"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/dsl"
	"github.com/hlop3z/xpdb/internal/testutil"
)

func synth(t *testing.T, declared, runtime *ast.Schema, d dialect.Dialect, opts SynthOptions) (*Plan, error) {
	t.Helper()
	diff, err := Diff(declared, runtime, DiffOptions{Dialect: d.Name()})
	testutil.AssertNoError(t, err)
	return Synthesize(diff, declared, d, opts)
}

func TestSynthesizeEmptyDiff(t *testing.T) {
	s := schemaOf(t, blogTables()...)
	plan, err := synth(t, s, schemaOf(t, blogTables()...), dialect.Postgres(), SynthOptions{})
	testutil.AssertNoError(t, err)

	if !plan.IsEmpty() {
		t.Errorf("expected empty plan, got %v", plan.Statements())
	}
	if plan.SQL() != "" {
		t.Errorf("SQL() = %q, want empty", plan.SQL())
	}
}

func TestSynthesizeAddedColumn(t *testing.T) {
	declared := schemaOf(t, usersTable(dsl.Timestamp("createdAt").DefaultNow()))
	runtime := schemaOf(t, usersTable())

	plan, err := synth(t, declared, runtime, dialect.Postgres(), SynthOptions{})
	testutil.AssertNoError(t, err)

	stmts := plan.Statements()
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1: %v", len(stmts), stmts)
	}
	testutil.AssertSQL(t, stmts[0], `ALTER TABLE "users" ADD COLUMN "created_at" TIMESTAMPTZ DEFAULT NOW()`)
	if plan.Steps[0].Column != "created_at" || plan.Steps[0].Op.Type() != ast.OpAddColumn {
		t.Errorf("unexpected step: %+v", plan.Steps[0])
	}
	if want := stmts[0] + ";\n"; plan.SQL() != want {
		t.Errorf("SQL() = %q, want %q", plan.SQL(), want)
	}
}

func TestSynthesizeCreateOrder(t *testing.T) {
	for _, d := range []dialect.Dialect{dialect.Postgres(), dialect.SQLite(), dialect.MySQL()} {
		t.Run(d.Name(), func(t *testing.T) {
			plan, err := CreateScript(schemaOf(t, blogTables()...), d)
			testutil.AssertNoError(t, err)

			var created []string
			for _, step := range plan.Steps {
				if step.Op.Type() == ast.OpCreateTable {
					created = append(created, step.Op.Table())
				}
			}
			assertStrings(t, "created", created, []string{"users", "posts", "comments"})
			if !strings.HasPrefix(plan.Statements()[0], "CREATE TABLE "+d.QuoteIdent("users")) {
				t.Errorf("first statement = %q", plan.Statements()[0])
			}
		})
	}
}

func TestSynthesizeCycleProducesNoDDL(t *testing.T) {
	var a, b *ast.TableDef
	a = dsl.Table("a", dsl.UUIDPK("id"), dsl.UUID("bId").References(func() *ast.ColumnDef { return b.Col("id") }))
	b = dsl.Table("b", dsl.UUIDPK("id"), dsl.UUID("aId").References(func() *ast.ColumnDef { return a.Col("id") }))
	s, err := dsl.Schema(a, b)
	testutil.AssertNoError(t, err)

	plan, err := CreateScript(s, dialect.SQLite())
	testutil.AssertError(t, err, alerr.ErrCyclicSchema)
	if plan != nil {
		t.Errorf("expected no plan, got %v", plan.Statements())
	}
}

func TestSynthesizeDestructiveSteps(t *testing.T) {
	declared := schemaOf(t, usersTable())
	runtime := schemaOf(t, usersTable(dsl.Text("legacyCode")), dsl.Table("audit", dsl.UUIDPK("id")))

	t.Run("skipped by default", func(t *testing.T) {
		plan, err := synth(t, declared, runtime, dialect.Postgres(), SynthOptions{})
		testutil.AssertNoError(t, err)

		if !plan.IsEmpty() {
			t.Errorf("expected no executable steps, got %v", plan.Statements())
		}
		if len(plan.Skipped) != 2 {
			t.Fatalf("Skipped = %d, want 2", len(plan.Skipped))
		}
		testutil.AssertSQL(t, plan.Skipped[0].SQL, `ALTER TABLE "users" DROP COLUMN "legacy_code"`)
		testutil.AssertSQL(t, plan.Skipped[1].SQL, `DROP TABLE "audit"`)
	})

	t.Run("allowed", func(t *testing.T) {
		plan, err := synth(t, declared, runtime, dialect.Postgres(), SynthOptions{Destructive: true})
		testutil.AssertNoError(t, err)

		if len(plan.Steps) != 2 || len(plan.Skipped) != 0 {
			t.Fatalf("Steps = %v, Skipped = %d", plan.Statements(), len(plan.Skipped))
		}
		for _, step := range plan.Steps {
			if !step.Destructive() {
				t.Errorf("step %q should be destructive", step.SQL)
			}
		}
	})
}

func TestSynthesizeStepOrderWithinTable(t *testing.T) {
	declared := schemaOf(t, usersTable(dsl.Text("bio").NotNull(), dsl.Text("nickname")))
	runtime := schemaOf(t, usersTable(dsl.Text("bio"), dsl.Text("legacy")))

	plan, err := synth(t, declared, runtime, dialect.Postgres(), SynthOptions{Destructive: true})
	testutil.AssertNoError(t, err)

	var ops []ast.OpType
	for _, step := range plan.Steps {
		ops = append(ops, step.Op.Type())
	}
	want := []ast.OpType{ast.OpAddColumn, ast.OpAlterColumn, ast.OpDropColumn}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %v, want %v", i, ops[i], want[i])
		}
	}
}

func TestSynthesizeSQLiteAlterUnsupported(t *testing.T) {
	declared := schemaOf(t, usersTable(dsl.Text("bio").NotNull()))
	runtime := schemaOf(t, usersTable(dsl.Text("bio")))

	plan, err := synth(t, declared, runtime, dialect.SQLite(), SynthOptions{})
	testutil.AssertError(t, err, alerr.ErrUnsupportedOperation)
	if plan != nil {
		t.Error("expected no plan")
	}
	if e, ok := alerr.As(err); !ok || e.Get("table") != "users" {
		t.Errorf("expected table context, got %v", err)
	}
}

func TestDropScript(t *testing.T) {
	plan, err := DropScript(schemaOf(t, blogTables()...), dialect.Postgres())
	testutil.AssertNoError(t, err)

	want := []string{
		`DROP TABLE IF EXISTS "comments"`,
		`DROP TABLE IF EXISTS "posts"`,
		`DROP TABLE IF EXISTS "users"`,
	}
	got := plan.Statements()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		testutil.AssertSQL(t, got[i], want[i])
	}
}
