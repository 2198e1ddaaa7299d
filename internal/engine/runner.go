package engine

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/dialect"
)

// Conn is the part of *sql.Conn (or *sql.DB) the runner needs.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Runner executes plans against a database.
type Runner struct {
	conn          Conn
	dialect       dialect.Dialect
	logger        *slog.Logger
	transactional bool
}

// NewRunner creates a runner. A nil logger uses slog.Default(). Plans run in
// a transaction when the dialect supports transactional DDL, unless
// Transactional says otherwise.
func NewRunner(conn Conn, d dialect.Dialect, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{conn: conn, dialect: d, logger: logger, transactional: d.SupportsTransactionalDDL()}
}

// Transactional sets whether the backend can run DDL in a transaction.
func (r *Runner) Transactional(on bool) *Runner {
	r.transactional = on
	return r
}

// Run executes every step of the plan. Transactional backends run the plan
// atomically; others stop at the first failing statement.
func (r *Runner) Run(ctx context.Context, plan *Plan) error {
	for _, step := range plan.Skipped {
		r.logger.Warn("skipping destructive change",
			"table", step.Op.Table(), "column", step.Column, "sql", step.SQL)
	}
	if plan.IsEmpty() {
		return nil
	}

	r.logger.Info("applying migration", "dialect", r.dialect.Name(), "statements", len(plan.Steps))

	if r.transactional {
		return r.runInTransaction(ctx, plan)
	}
	return r.runWithoutTransaction(ctx, plan)
}

// runInTransaction executes the plan within one transaction: all statements
// succeed or none do.
func (r *Runner) runInTransaction(ctx context.Context, plan *Plan) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to begin transaction").
			WithDialect(r.dialect.Name())
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, step := range plan.Steps {
		if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
			return r.stepError(err, step)
		}
	}

	if err := tx.Commit(); err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to commit transaction").
			WithDialect(r.dialect.Name())
	}
	committed = true

	return nil
}

// runWithoutTransaction executes statements one at a time. Statements that
// ran before a failure stay applied.
func (r *Runner) runWithoutTransaction(ctx context.Context, plan *Plan) error {
	for i, step := range plan.Steps {
		if _, err := r.conn.ExecContext(ctx, step.SQL); err != nil {
			return r.stepError(err, step).With("applied", i)
		}
	}
	return nil
}

func (r *Runner) stepError(err error, step Step) *alerr.Error {
	e := alerr.Wrap(alerr.ErrSQLExecution, err, "failed to execute statement").
		WithSQL(step.SQL).
		WithTable(step.Op.Table()).
		WithDialect(r.dialect.Name())
	if step.Column != "" {
		e.WithColumn(step.Column)
	}
	return e
}
