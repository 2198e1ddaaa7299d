package xpdb

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/driver"
	"github.com/hlop3z/xpdb/internal/engine"
	"github.com/hlop3z/xpdb/internal/fingerprint"
	"github.com/hlop3z/xpdb/internal/introspect"
	"github.com/hlop3z/xpdb/internal/queue"
)

// ConnInfo names a driver and the database to open with it.
type ConnInfo struct {
	// Driver is a registered driver name: postgres, pgx, sqlite, sqlite3, mysql.
	Driver string
	// Dialect is optional. Empty means the driver's native dialect.
	Dialect string
	// DSN is passed to sql.Open unchanged.
	DSN string
}

// SchemaDiff is the structural difference between a declared and a runtime schema.
type SchemaDiff = engine.SchemaDiff

// RuntimeSchema is a schema read back from a live database.
type RuntimeSchema = ast.Schema

// MigrationResult reports what CreateOrMigrate did.
type MigrationResult struct {
	// Executed is true when at least one statement ran.
	Executed bool
	// MigrationSQL is the executed script, empty when nothing ran.
	MigrationSQL string
	Statements   []string
	// Skipped holds destructive statements left out without WithDestructive.
	Skipped     []string
	Diff        *SchemaDiff
	Fingerprint string
}

// HasSQL reports whether any SQL was executed.
func (r *MigrationResult) HasSQL() bool {
	return r != nil && r.MigrationSQL != ""
}

// DB is a schema bound to one database connection. Every operation runs on a
// single serialized queue, so migrations and queries never interleave.
type DB struct {
	schema  *Schema
	driver  driver.Descriptor
	dialect dialect.Dialect
	cfg     *config
	logger  *slog.Logger

	pool  *sql.DB
	conn  *sql.Conn
	queue *queue.Queue

	introspector introspect.Introspector
	runner       *engine.Runner

	mu     sync.Mutex
	tables map[*ast.TableDef]*BoundTable

	closeOnce sync.Once
	closeErr  error
}

// Connect opens a single connection for s. The driver and dialect are checked
// before anything is opened.
func (s *Schema) Connect(ctx context.Context, info ConnInfo, opts ...Option) (*DB, error) {
	cfg := newConfig(opts)

	desc, err := cfg.registry.Lookup(info.Driver)
	if err != nil {
		return nil, &UnsupportedDriverError{Driver: info.Driver, Supported: cfg.registry.Names(), Cause: err}
	}

	native := desc.Capabilities.Dialect
	d, ok := dialect.Get(native)
	if info.Dialect != "" {
		requested, found := dialect.Get(info.Dialect)
		if !found {
			return nil, &UnsupportedDriverError{Driver: info.Driver, Dialect: info.Dialect, Supported: dialect.Names()}
		}
		if requested.Name() != native {
			return nil, &DialectMismatchError{Driver: desc.Name, Native: native, Requested: requested.Name()}
		}
		d, ok = requested, true
	}
	if !ok {
		return nil, &UnsupportedDriverError{Driver: info.Driver, Dialect: native, Supported: dialect.Names()}
	}

	pool, err := sql.Open(desc.SQLDriver, info.DSN)
	if err != nil {
		return nil, &ConnectionError{Driver: desc.Name, DSN: RedactDSN(info.DSN), Cause: err}
	}
	pool.SetMaxOpenConns(1)

	conn, err := pool.Conn(ctx)
	if err == nil {
		err = conn.PingContext(ctx)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		_ = pool.Close()
		return nil, &ConnectionError{Driver: desc.Name, DSN: RedactDSN(info.DSN), Cause: err}
	}

	in, err := introspect.New(conn, d.Name())
	if err != nil {
		_ = conn.Close()
		_ = pool.Close()
		return nil, &UnsupportedDriverError{Driver: info.Driver, Dialect: d.Name(), Cause: err}
	}

	settle := desc.Capabilities.Settle()
	if cfg.settleSet {
		settle = cfg.settle
	}
	logger := cfg.logger.With("driver", desc.Name, "dialect", d.Name())

	db := &DB{
		schema:  s,
		driver:  desc,
		dialect: d,
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		conn:    conn,
		queue: queue.New(queue.Options{
			Settle:    settle,
			Backoff:   cfg.backoff,
			Transient: desc.Capabilities.IsTransient,
			Logger:    logger,
		}),
		introspector: in,
		runner:       engine.NewRunner(conn, d, logger).Transactional(desc.Capabilities.TransactionalDDL),
		tables:       make(map[*ast.TableDef]*BoundTable),
	}
	logger.Debug("connected", "dsn", RedactDSN(info.DSN))
	return db, nil
}

// Dialect returns the canonical dialect name of the connection.
func (db *DB) Dialect() string {
	return db.dialect.Name()
}

// Schema returns the declared schema the handle was connected from.
func (db *DB) Schema() *Schema {
	return db.schema
}

// Table returns the query builders for a declared table. The handle is cached
// per table.
func (db *DB) Table(name string) (*BoundTable, error) {
	def := db.schema.Table(name)
	if def == nil {
		msg := "xpdb: table %q is not declared"
		if match, ok := alerr.FindClosestMatch(name, db.schema.Names()); ok {
			return nil, wrapf(ErrUnknownTable, msg+" (did you mean %q?)", name, match)
		}
		return nil, wrapf(ErrUnknownTable, msg, name)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if bt, ok := db.tables[def]; ok {
		return bt, nil
	}
	bt := &BoundTable{db: db, def: def}
	db.tables[def] = bt
	return bt, nil
}

// DetectRuntimeSchema reads the live schema.
func (db *DB) DetectRuntimeSchema(ctx context.Context) (*RuntimeSchema, error) {
	var runtime *ast.Schema
	err := db.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		runtime, err = introspect.DetectSchema(ctx, db.introspector)
		return err
	})
	if err != nil {
		return nil, err
	}
	return runtime, nil
}

// Diff compares the declared schema with the live one without changing anything.
func (db *DB) Diff(ctx context.Context) (*SchemaDiff, error) {
	var diff *SchemaDiff
	err := db.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		diff, err = db.diff(ctx)
		return err
	})
	if err != nil {
		return nil, publicError(err, db.dialect.Name())
	}
	return diff, nil
}

func (db *DB) diff(ctx context.Context) (*SchemaDiff, error) {
	runtime, err := introspect.DetectSchema(ctx, db.introspector)
	if err != nil {
		return nil, err
	}
	return engine.Diff(db.schema.s, runtime, engine.DiffOptions{
		Dialect: db.dialect.Name(),
		Ignore:  db.cfg.ignore,
	})
}

// CreateOrMigrate brings the database in line with the declared schema. It
// introspects, diffs, synthesizes and executes as one queued job. An empty
// diff executes nothing.
func (db *DB) CreateOrMigrate(ctx context.Context) (*MigrationResult, error) {
	fp, err := db.schema.Fingerprint()
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{Fingerprint: fp}
	err = db.queue.Do(ctx, func(ctx context.Context) error {
		diff, err := db.diff(ctx)
		if err != nil {
			return err
		}
		result.Diff = diff
		if diff.IsEmpty() {
			db.logger.Debug("schema up to date", "fingerprint", fp)
			return nil
		}

		plan, err := engine.Synthesize(diff, db.schema.s, db.dialect, engine.SynthOptions{Destructive: db.cfg.destructive})
		if err != nil {
			return err
		}
		for _, step := range plan.Skipped {
			result.Skipped = append(result.Skipped, step.SQL)
		}
		if err := db.runner.Run(ctx, plan); err != nil {
			return err
		}
		if !plan.IsEmpty() {
			result.Executed = true
			result.Statements = plan.Statements()
			result.MigrationSQL = plan.SQL()
		}
		return nil
	})
	if err != nil {
		return nil, publicError(err, db.dialect.Name())
	}

	db.logger.Info("create or migrate",
		"executed", result.Executed,
		"statements", len(result.Statements),
		"skipped", len(result.Skipped),
		"fingerprint", fp)
	return result, nil
}

// DriftedTables reports which tables changed between two fingerprints of the
// declared schema, e.g. before and after editing a schema file.
func DriftedTables(before, after *Schema) ([]string, error) {
	old, err := fingerprint.Compute(before.s)
	if err != nil {
		return nil, publicError(err, "")
	}
	cur, err := fingerprint.Compute(after.s)
	if err != nil {
		return nil, publicError(err, "")
	}
	cmp := fingerprint.Compare(old, cur)
	out := make([]string, 0, len(cmp.Added)+len(cmp.Removed)+len(cmp.Modified))
	out = append(out, cmp.Added...)
	out = append(out, cmp.Modified...)
	return append(out, cmp.Removed...), nil
}

// Close stops the queue after the jobs already queued and releases the
// connection. It is safe to call more than once.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		_ = db.queue.Close()
		if err := db.conn.Close(); err != nil {
			db.closeErr = err
		}
		if err := db.pool.Close(); err != nil && db.closeErr == nil {
			db.closeErr = err
		}
	})
	return db.closeErr
}

// ----------------------------------------------------------------------------
// DSN redaction
// ----------------------------------------------------------------------------

var (
	userinfoPassword = regexp.MustCompile(`^([^:@/()]+):[^@]*@`)
	keywordPassword  = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)
)

// RedactDSN hides the password in URL, MySQL and key=value DSNs.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		return u.Redacted()
	}
	if strings.Contains(dsn, "@") {
		dsn = userinfoPassword.ReplaceAllString(dsn, "${1}:xxxxx@")
	}
	return keywordPassword.ReplaceAllString(dsn, "${1}xxxxx")
}
