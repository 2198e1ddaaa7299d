package codegen

import (
	"os"
	"path/filepath"

	"github.com/hlop3z/xpdb/internal/alerr"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// writeFileAtomic writes data next to path and renames it into place, so a
// reader never sees a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return alerr.Wrap(alerr.EInternalError, err, "failed to create output directory").WithFile(dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return alerr.Wrap(alerr.EInternalError, err, "failed to create temporary file").WithFile(path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return alerr.Wrap(alerr.EInternalError, err, "failed to write file").WithFile(path)
	}
	if err := tmp.Close(); err != nil {
		return alerr.Wrap(alerr.EInternalError, err, "failed to write file").WithFile(path)
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		return alerr.Wrap(alerr.EInternalError, err, "failed to set file mode").WithFile(path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return alerr.Wrap(alerr.EInternalError, err, "failed to move file into place").WithFile(path)
	}
	return nil
}
