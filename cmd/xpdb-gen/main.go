// Package main provides xpdb-gen, the offline code generator for xpdb schema
// files. It evaluates a JavaScript or TypeScript schema and writes TypeScript types,
// per-dialect CREATE scripts and migration files.
//
// Usage:
//
//	xpdb-gen                          # schema.ts, schema.js or schema.mjs in .
//	xpdb-gen db/schema.js --dst out   # explicit schema and output directory
//	xpdb-gen --creates postgres,sqlite --no-migrations
//	xpdb-gen --watch                  # regenerate on every save
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/cli"
	"github.com/hlop3z/xpdb/internal/codegen"
	"github.com/hlop3z/xpdb/internal/fingerprint"
	"github.com/hlop3z/xpdb/internal/runtime"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// SchemaCandidates are looked up in order when no schema file is given.
var SchemaCandidates = []string{"schema.ts", "schema.js", "schema.mjs"}

type flags struct {
	noTypes      bool
	noCreates    bool
	noMigrations bool
	creates      string
	migrations   string
	dst          string
	config       string
	watch        bool
	verbose      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "xpdb-gen [schema-file]",
		Short: "Generate types, CREATE scripts and migrations from an xpdb schema",
		Long: `xpdb-gen evaluates an xpdb schema file and writes types.ts,
create.<dialect>.sql and migrations/<dialect>/<timestamp>_<fingerprint>.sql
into <schema dir>/generated, or into --dst.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(stderr, f.verbose)

			j, err := resolveJob(cmd.Flags(), f, args)
			if err != nil {
				return err
			}
			logger.Debug("resolved job",
				"schema", j.schema,
				"dst", j.opts.Dst,
				"types", j.opts.Types,
				"creates", j.opts.Creates.String(),
				"migrations", j.opts.Migrations.String())

			if f.watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				return watch(ctx, j, stdout, stderr, logger)
			}
			_, err = j.run(stdout, stderr, logger)
			return err
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.noTypes, "no-types", false, "Do not write types.ts")
	fl.BoolVar(&f.noCreates, "no-creates", false, "Do not write CREATE scripts")
	fl.BoolVar(&f.noMigrations, "no-migrations", false, "Do not write migration files")
	fl.StringVar(&f.creates, "creates", "all", "Dialects to write CREATE scripts for (all, none, or a comma list)")
	fl.StringVar(&f.migrations, "migrations", "all", "Dialects to write migrations for (all, none, or a comma list)")
	fl.StringVar(&f.dst, "dst", "", "Output directory (default: <schema dir>/generated)")
	fl.StringVarP(&f.config, "config", "c", DefaultConfigFile, "Path to config file")
	fl.BoolVarP(&f.watch, "watch", "w", false, "Regenerate whenever the schema file changes")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.MarkFlagsMutuallyExclusive("creates", "no-creates")
	cmd.MarkFlagsMutuallyExclusive("migrations", "no-migrations")

	return cmd
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprint(stderr, cli.FormatError(err))
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ----------------------------------------------------------------------------
// Job resolution
// ----------------------------------------------------------------------------

// job is one fully resolved generation request.
type job struct {
	schema string
	opts   codegen.Options
}

// resolveJob merges config, env and flags. Flags only win when they were set
// on the command line.
func resolveJob(fs *pflag.FlagSet, f flags, args []string) (*job, error) {
	cfg, err := loadConfig(f.config, fs.Changed("config"))
	if err != nil {
		return nil, err
	}

	schema := cfg.Schema
	if len(args) == 1 {
		schema = args[0]
	}
	if schema == "" {
		if schema, err = discoverSchema("."); err != nil {
			return nil, err
		}
	}

	types := cfg.Types == nil || *cfg.Types
	creates, migrations, dst := cfg.Creates, cfg.Migrations, cfg.Dst
	if fs.Changed("creates") {
		creates = f.creates
	}
	if fs.Changed("migrations") {
		migrations = f.migrations
	}
	if fs.Changed("dst") {
		dst = f.dst
	}
	if f.noTypes {
		types = false
	}
	if f.noCreates {
		creates = "none"
	}
	if f.noMigrations {
		migrations = "none"
	}
	if dst == "" {
		dst = filepath.Join(filepath.Dir(schema), "generated")
	}

	return &job{
		schema: schema,
		opts: codegen.Options{
			Types:      types,
			Creates:    codegen.ParseSelection(creates),
			Migrations: codegen.ParseSelection(migrations),
			Dst:        dst,
		},
	}, nil
}

// discoverSchema returns the first schema candidate present in dir.
func discoverSchema(dir string) (string, error) {
	for _, name := range SchemaCandidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", alerr.New(alerr.ErrSchemaNotFound, "no schema file found").
		With("dir", dir).
		WithHelp("pass the schema file as an argument or create schema.js")
}

// ----------------------------------------------------------------------------
// Generation
// ----------------------------------------------------------------------------

// run evaluates the schema and writes the selected files, reporting each one.
func (j *job) run(stdout, stderr io.Writer, logger *slog.Logger) (*runtime.Module, error) {
	m, err := runtime.Load(j.schema, j.opts.Dst)
	if err != nil {
		return nil, err
	}
	res, err := m.Generate(j.opts)
	if err != nil {
		return nil, err
	}

	for _, w := range res.Warnings {
		fmt.Fprint(stderr, cli.FormatWarning(w))
	}
	for _, f := range res.Files {
		fmt.Fprint(stdout, cli.FormatWritten(f.Path, f.Dialect))
	}
	for _, f := range res.Unchanged {
		fmt.Fprint(stdout, cli.FormatUnchanged(f.Path, f.Dialect))
	}

	logger.Debug("generated",
		"schema", j.schema,
		"fingerprint", shortFingerprint(res.Fingerprint),
		"files", len(res.Files),
		"unchanged", len(res.Unchanged))
	return m, nil
}

func shortFingerprint(fp string) string {
	if len(fp) > fingerprint.ShortLen {
		return fp[:fingerprint.ShortLen]
	}
	return fp
}
