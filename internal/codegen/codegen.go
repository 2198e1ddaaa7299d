// Package codegen writes the artifacts derived from a declared schema:
// TypeScript types, per-dialect CREATE scripts and migration files.
package codegen

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/fingerprint"
	"github.com/hlop3z/xpdb/internal/lockfile"
)

// File kinds reported in Result.
const (
	KindTypes     = "types"
	KindCreate    = "create"
	KindMigration = "migration"
)

// Options selects what Generate writes.
type Options struct {
	Types      bool
	Creates    Selection
	Migrations Selection
	// Dst is the output directory.
	Dst string
	// Now stamps migration names. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions writes everything for every dialect into dst.
func DefaultOptions(dst string) Options {
	return Options{Types: true, Creates: All(), Migrations: All(), Dst: dst}
}

// File is one generated artifact.
type File struct {
	Kind    string
	Dialect string // empty for types.ts
	Path    string
}

// Result lists what Generate did.
type Result struct {
	Fingerprint string
	Files       []File
	// Unchanged holds migrations that already existed for this fingerprint.
	Unchanged []File
	Warnings  []string
}

// Generate writes the selected artifacts for s under opts.Dst:
//
//	<dst>/types.ts
//	<dst>/create.<dialect>.sql
//	<dst>/migrations/<dialect>/<yyyymmddhhmmss>_<fingerprint>.sql
//	<dst>/migrations/<dialect>/xpdb.lock
//
// Everything is rendered before the first file is written, so a schema error
// leaves the output directory untouched.
func Generate(s *ast.Schema, opts Options) (*Result, error) {
	if opts.Dst == "" {
		opts.Dst = "generated"
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	fp, err := fingerprint.Compute(s)
	if err != nil {
		return nil, err
	}
	res := &Result{Fingerprint: fp.Root}
	for _, name := range opts.Creates.Unknown {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown dialect %q in creates, skipped", name))
	}
	for _, name := range opts.Migrations.Unknown {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown dialect %q in migrations, skipped", name))
	}

	type pending struct {
		file File
		data string
	}
	var out []pending

	if opts.Types {
		out = append(out, pending{
			file: File{Kind: KindTypes, Path: filepath.Join(opts.Dst, "types.ts")},
			data: TypeScript(s),
		})
	}

	for _, name := range opts.Creates.Dialects {
		d := dialect.MustGet(name)
		sql, err := CreateFile(s, d, fp)
		if err != nil {
			return nil, err
		}
		out = append(out, pending{
			file: File{Kind: KindCreate, Dialect: name, Path: filepath.Join(opts.Dst, "create."+name+".sql")},
			data: sql,
		})
	}

	at := now()
	var relock []string
	for _, name := range opts.Migrations.Dialects {
		d := dialect.MustGet(name)
		dir := filepath.Join(opts.Dst, "migrations", name)

		report, err := lockfile.Check(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range report.Modified {
			res.Warnings = append(res.Warnings, fmt.Sprintf("migration %s was edited after it was generated", filepath.Join(dir, f)))
		}
		for _, f := range report.Removed {
			res.Warnings = append(res.Warnings, fmt.Sprintf("locked migration %s is missing", filepath.Join(dir, f)))
		}
		if report.Clean() {
			relock = append(relock, dir)
		}

		existing, err := existingMigration(dir, fp)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			res.Unchanged = append(res.Unchanged, File{Kind: KindMigration, Dialect: name, Path: existing})
			continue
		}

		sql, err := Migration(s, d, fp, at)
		if err != nil {
			return nil, err
		}
		out = append(out, pending{
			file: File{Kind: KindMigration, Dialect: name, Path: filepath.Join(dir, MigrationName(at, fp))},
			data: sql,
		})
	}

	for _, p := range out {
		if err := writeFileAtomic(p.file.Path, []byte(p.data)); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, p.file)
	}
	// A directory with edited migrations keeps its old lock so the warning repeats.
	for _, dir := range relock {
		if err := lockfile.Update(dir); err != nil {
			return nil, err
		}
	}
	return res, nil
}
