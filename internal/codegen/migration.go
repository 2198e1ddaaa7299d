package codegen

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/engine"
	"github.com/hlop3z/xpdb/internal/fingerprint"
)

// Section markers of a migration file.
const (
	MarkerUp   = "-- +migrate up"
	MarkerDown = "-- +migrate down"
)

const migrationTimeLayout = "20060102150405"

// MigrationName returns the file name of a migration: a UTC timestamp and
// the short schema fingerprint.
func MigrationName(at time.Time, fp *fingerprint.Hash) string {
	return at.UTC().Format(migrationTimeLayout) + "_" + fp.Short() + ".sql"
}

// existingMigration returns the path of a migration in dir that was already
// generated for fp, or "".
func existingMigration(dir string, fp *fingerprint.Hash) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_"+fp.Short()+".sql"))
	if err != nil {
		return "", alerr.Wrap(alerr.EInternalError, err, "failed to scan migrations").WithFile(dir)
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0], nil
}

// Migration renders a migration file that creates the whole schema on the way
// up and drops it, dependents first, on the way down.
func Migration(s *ast.Schema, d dialect.Dialect, fp *fingerprint.Hash, at time.Time) (string, error) {
	up, err := engine.CreateScript(s, d)
	if err != nil {
		return "", err
	}
	down, err := engine.DropScript(s, d)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("-- Code generated by xpdb-gen. DO NOT EDIT.\n")
	fmt.Fprintf(&sb, "-- dialect: %s\n", d.Name())
	fmt.Fprintf(&sb, "-- fingerprint: %s\n", fp.Root)
	fmt.Fprintf(&sb, "-- generated: %s\n", at.UTC().Format(time.RFC3339))
	sb.WriteString("\n" + MarkerUp + "\n")
	sb.WriteString(up.SQL())
	sb.WriteString("\n" + MarkerDown + "\n")
	sb.WriteString(down.SQL())
	return sb.String(), nil
}

// CreateFile renders the CREATE script of a schema for one dialect.
func CreateFile(s *ast.Schema, d dialect.Dialect, fp *fingerprint.Hash) (string, error) {
	plan, err := engine.CreateScript(s, d)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("-- Code generated by xpdb-gen. DO NOT EDIT.\n")
	fmt.Fprintf(&sb, "-- dialect: %s\n", d.Name())
	fmt.Fprintf(&sb, "-- fingerprint: %s\n\n", fp.Root)
	sb.WriteString(plan.SQL())
	return sb.String(), nil
}

// ParseMigration splits a migration file into its up and down sections.
func ParseMigration(content string) (up, down string, err error) {
	upIdx := strings.Index(content, MarkerUp)
	downIdx := strings.Index(content, MarkerDown)
	if upIdx < 0 || downIdx < 0 || downIdx < upIdx {
		return "", "", alerr.New(alerr.ErrSchemaInvalid, "migration file is missing its up/down markers")
	}
	up = strings.TrimSpace(content[upIdx+len(MarkerUp) : downIdx])
	down = strings.TrimSpace(content[downIdx+len(MarkerDown):])
	return up, down, nil
}
