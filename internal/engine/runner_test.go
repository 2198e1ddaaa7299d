package engine

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/dsl"
	"github.com/hlop3z/xpdb/internal/introspect"
	"github.com/hlop3z/xpdb/internal/testutil"
)

func TestRunnerRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupSQLite(t)
	d := dialect.SQLite()
	declared := schemaOf(t, blogTables()...)

	plan, err := CreateScript(declared, d)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, NewRunner(db, d, nil).Run(ctx, plan))

	for _, table := range []string{"users", "posts", "comments"} {
		testutil.AssertTableExists(t, db, table)
	}
	testutil.AssertColumnExists(t, db, "posts", "author_id")

	in, err := introspect.New(db, d.Name())
	testutil.AssertNoError(t, err)
	runtime, err := introspect.DetectSchema(ctx, in)
	testutil.AssertNoError(t, err)

	diff, err := Diff(declared, runtime, DiffOptions{Dialect: d.Name()})
	testutil.AssertNoError(t, err)
	if !diff.IsEmpty() {
		t.Errorf("expected no changes after migration, got %s", diff)
	}
}

func TestRunnerAddColumnSQLite(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupSQLite(t)
	d := dialect.SQLite()

	plan, err := CreateScript(schemaOf(t, usersTable()), d)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, NewRunner(db, d, nil).Run(ctx, plan))

	in, err := introspect.New(db, d.Name())
	testutil.AssertNoError(t, err)
	runtime, err := introspect.DetectSchema(ctx, in)
	testutil.AssertNoError(t, err)

	declared := schemaOf(t, usersTable(dsl.Text("bio"), dsl.Boolean("active").Default(true)))
	plan, err = synth(t, declared, runtime, d, SynthOptions{})
	testutil.AssertNoError(t, err)
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %v", plan.Statements())
	}
	testutil.AssertNoError(t, NewRunner(db, d, nil).Run(ctx, plan))

	testutil.AssertColumnExists(t, db, "users", "bio")
	testutil.AssertColumnExists(t, db, "users", "active")
}

func TestRunnerRollsBackOnFailure(t *testing.T) {
	db := testutil.SetupSQLite(t)
	d := dialect.SQLite()
	op := &ast.CreateTable{Def: dsl.Table("widgets", dsl.UUIDPK("id"))}

	plan := &Plan{Dialect: d.Name(), Steps: []Step{
		{SQL: `CREATE TABLE "widgets" ("id" UUID PRIMARY KEY)`, Op: op},
		{SQL: `CREATE TABLE "widgets" ("id" UUID PRIMARY KEY)`, Op: op},
	}}

	err := NewRunner(db, d, nil).Run(context.Background(), plan)
	testutil.AssertError(t, err, alerr.ErrSQLExecution)
	if e, ok := alerr.As(err); !ok || e.Get("table") != "widgets" || e.Get("dialect") != "sqlite" {
		t.Errorf("missing error context: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'widgets'").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("first statement should have been rolled back")
	}
}

func TestRunnerWithoutTransaction(t *testing.T) {
	db := testutil.SetupSQLite(t)
	d := dialect.SQLite()
	op := &ast.CreateTable{Def: dsl.Table("widgets", dsl.UUIDPK("id"))}

	plan := &Plan{Dialect: d.Name(), Steps: []Step{
		{SQL: `CREATE TABLE "widgets" ("id" UUID PRIMARY KEY)`, Op: op},
		{SQL: `CREATE TABLE "widgets" ("id" UUID PRIMARY KEY)`, Op: op},
	}}

	err := NewRunner(db, d, nil).Transactional(false).Run(context.Background(), plan)
	testutil.AssertError(t, err, alerr.ErrSQLExecution)
	if e, ok := alerr.As(err); !ok || e.Get("applied") != "1" {
		t.Errorf("applied = %v", err)
	}
	// The first statement ran outside a transaction and stays applied.
	testutil.AssertTableExists(t, db, "widgets")
}

func TestRunnerLogsSkippedSteps(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	db := testutil.SetupSQLite(t)

	plan := &Plan{Dialect: "sqlite", Skipped: []Step{
		{SQL: `ALTER TABLE "users" DROP COLUMN "legacy"`, Op: &ast.DropColumn{TableName: "users", Name: "legacy"}, Column: "legacy"},
	}}

	testutil.AssertNoError(t, NewRunner(db, dialect.SQLite(), logger).Run(context.Background(), plan))

	out := buf.String()
	for _, want := range []string{"skipping destructive change", "table=users", "column=legacy"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
