package engine

import (
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
)

// Step is one DDL statement with the operation that produced it.
type Step struct {
	SQL    string
	Op     ast.Operation
	Column string // SQL column name for column operations
}

// Destructive reports whether the step removes a table or column.
func (s Step) Destructive() bool {
	switch s.Op.Type() {
	case ast.OpDropTable, ast.OpDropColumn:
		return true
	default:
		return false
	}
}

// Plan is an ordered list of DDL statements that reconciles a runtime schema
// with a declared one.
type Plan struct {
	Dialect string
	Steps   []Step
	// Skipped holds destructive steps left out because they were not allowed.
	Skipped []Step
}

// Statements returns the SQL of every step in execution order.
func (p *Plan) Statements() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.SQL
	}
	return out
}

// SQL renders the plan as a single script, one statement per line.
func (p *Plan) SQL() string {
	return joinStatements(p.Statements())
}

// IsEmpty reports whether the plan has nothing to execute.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Steps) == 0
}

func joinStatements(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";\n"
}

// SynthOptions controls statement generation.
type SynthOptions struct {
	// Destructive allows DROP TABLE and DROP COLUMN steps into the plan.
	// Otherwise they are rendered into Plan.Skipped.
	Destructive bool
}

// Synthesize turns a diff into dialect-specific DDL.
//
// Order:
//  1. CREATE TABLE for added tables, referenced tables first
//  2. per modified table (same order): ADD COLUMN, ALTER COLUMN, DROP COLUMN
//  3. DROP TABLE for removed tables, dependents first
//
// A cycle among added tables fails with ErrCyclicSchema before any statement
// is produced. A change the dialect cannot express fails with
// ErrUnsupportedOperation and aborts the whole plan.
func Synthesize(diff *SchemaDiff, declared *ast.Schema, d dialect.Dialect, opts SynthOptions) (*Plan, error) {
	plan := &Plan{Dialect: d.Name()}
	if diff.IsEmpty() {
		return plan, nil
	}
	if err := ast.ResolveReferences(declared); err != nil {
		return nil, err
	}

	var created []string
	if len(diff.AddedTables) > 0 {
		order, err := DependencyOrder(declared, diff.AddedTables...)
		if err != nil {
			return nil, err
		}
		created = order
	}
	for _, name := range created {
		if err := plan.add(d, &ast.CreateTable{Def: declared.Table(name)}, "", opts); err != nil {
			return nil, err
		}
	}

	for _, td := range diff.ModifiedTables {
		for _, ch := range td.Added {
			if err := plan.add(d, &ast.AddColumn{TableName: td.TableName, Column: ch.To}, ch.Name(), opts); err != nil {
				return nil, err
			}
		}
		for _, ch := range td.Modified {
			op := &ast.AlterColumn{TableName: td.TableName, From: ch.From, To: ch.To, Changes: ch.Changes}
			if err := plan.add(d, op, ch.Name(), opts); err != nil {
				return nil, err
			}
		}
		for _, ch := range td.Removed {
			if err := plan.add(d, &ast.DropColumn{TableName: td.TableName, Name: ch.Name()}, ch.Name(), opts); err != nil {
				return nil, err
			}
		}
	}

	for _, name := range diff.RemovedTables {
		if err := plan.add(d, &ast.DropTable{Name: name}, "", opts); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// add renders op and appends its statements to the plan.
func (p *Plan) add(d dialect.Dialect, op ast.Operation, column string, opts SynthOptions) error {
	stmts, err := dialect.Statements(d, op)
	if err != nil {
		if e, ok := alerr.As(err); ok && e.Get("table") == "" {
			e.WithTable(op.Table())
		}
		return err
	}

	for _, sql := range stmts {
		step := Step{SQL: sql, Op: op, Column: column}
		if step.Destructive() && !opts.Destructive {
			p.Skipped = append(p.Skipped, step)
			continue
		}
		p.Steps = append(p.Steps, step)
	}
	return nil
}

// CreateScript returns the CREATE TABLE statements for a whole schema, as if
// the database were empty.
func CreateScript(schema *ast.Schema, d dialect.Dialect) (*Plan, error) {
	diff, err := Diff(schema, nil, DiffOptions{Dialect: d.Name()})
	if err != nil {
		return nil, err
	}
	return Synthesize(diff, schema, d, SynthOptions{})
}

// DropScript returns DROP TABLE statements for a whole schema with
// dependents dropped first.
func DropScript(schema *ast.Schema, d dialect.Dialect) (*Plan, error) {
	if err := ast.ResolveReferences(schema); err != nil {
		return nil, err
	}
	order, err := DependencyOrder(schema)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Dialect: d.Name()}
	for i := len(order) - 1; i >= 0; i-- {
		if err := plan.add(d, &ast.DropTable{Name: order[i], IfExists: true}, "", SynthOptions{Destructive: true}); err != nil {
			return nil, err
		}
	}
	return plan, nil
}
