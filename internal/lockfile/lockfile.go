// Package lockfile records SHA-256 checksums of generated migration files so
// that hand edits to an already generated migration are noticed on the next
// run.
//
// A lock file sits next to the migrations it covers:
//
//	<aggregate>
//	<sha256> 20260101120000_3f2a9c1b7d4e.sql
//	<sha256> 20260102090000_8be1c0d2a5f6.sql
package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
)

// Name is the lock file name inside each migrations directory.
const Name = "xpdb.lock"

// Entry is one checksummed migration file.
type Entry struct {
	Filename string
	Checksum string
}

// LockFile is the parsed content of a lock file.
type LockFile struct {
	Aggregate string // SHA-256 over every entry checksum, in filename order
	Entries   []Entry
}

// Report compares a migrations directory with its lock file.
type Report struct {
	Exists   bool     // a lock file was found
	New      []string // on disk, not locked
	Modified []string // locked with a different checksum
	Removed  []string // locked, no longer on disk
}

// Clean reports whether every locked migration is unchanged. New files are
// not a problem: they are the ones just generated.
func (r *Report) Clean() bool {
	return len(r.Modified) == 0 && len(r.Removed) == 0
}

// Read parses the lock file at path. A missing file returns nil, nil.
func Read(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to read lock file").WithFile(path)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lf := &LockFile{Aggregate: strings.TrimSpace(lines[0])}
	if lf.Aggregate == "" {
		return nil, alerr.New(alerr.ErrConfigInvalid, "lock file is empty").WithFile(path)
	}
	for _, line := range lines[1:] {
		sum, name, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		lf.Entries = append(lf.Entries, Entry{Filename: strings.TrimSpace(name), Checksum: sum})
	}
	return lf, nil
}

// Update rewrites the lock file in dir from the migration files currently there.
func Update(dir string) error {
	entries, err := scan(dir)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(aggregate(entries) + "\n")
	for _, e := range entries {
		sb.WriteString(e.Checksum + " " + e.Filename + "\n")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to create migrations directory").WithFile(dir)
	}
	path := filepath.Join(dir, Name)
	tmp, err := os.CreateTemp(dir, "."+Name+".*")
	if err != nil {
		return alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to write lock file").WithFile(path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		return alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to write lock file").WithFile(path)
	}
	if err := tmp.Close(); err != nil {
		return alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to write lock file").WithFile(path)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to write lock file").WithFile(path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to write lock file").WithFile(path)
	}
	return nil
}

// Check compares the migrations in dir with the lock file there.
func Check(dir string) (*Report, error) {
	lf, err := Read(filepath.Join(dir, Name))
	if err != nil {
		return nil, err
	}
	entries, err := scan(dir)
	if err != nil {
		return nil, err
	}

	r := &Report{Exists: lf != nil}
	locked := make(map[string]string)
	if lf != nil {
		for _, e := range lf.Entries {
			locked[e.Filename] = e.Checksum
		}
	}

	onDisk := make(map[string]bool, len(entries))
	for _, e := range entries {
		onDisk[e.Filename] = true
		sum, ok := locked[e.Filename]
		switch {
		case !ok:
			r.New = append(r.New, e.Filename)
		case sum != e.Checksum:
			r.Modified = append(r.Modified, e.Filename)
		}
	}
	if lf != nil {
		for _, e := range lf.Entries {
			if !onDisk[e.Filename] {
				r.Removed = append(r.Removed, e.Filename)
			}
		}
	}
	return r, nil
}

// scan checksums every .sql file in dir, sorted by name.
func scan(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to read migrations directory").WithFile(dir)
	}

	var entries []Entry
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".sql") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, alerr.Wrap(alerr.ErrConfigInvalid, err, "failed to read migration").WithFile(de.Name())
		}
		sum := sha256.Sum256(data)
		entries = append(entries, Entry{Filename: de.Name(), Checksum: hex.EncodeToString(sum[:])})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Filename, b.Filename) })
	return entries, nil
}

func aggregate(entries []Entry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.Checksum))
	}
	return hex.EncodeToString(h.Sum(nil))
}
