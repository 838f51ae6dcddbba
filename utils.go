package foodset

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// splitPath splits the given file path into the dir name, the base name without extension and the
// extension (without the dot).
func splitPath(path string) (dir, baseNoExt, ext string, err error) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	if ext == "" {
		return "", "", "", errors.Errorf("missing file extension in %q", path)
	}

	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	baseNoExt = file[0 : len(file)-len(ext)]
	ext = ext[1:]

	return dir, baseNoExt, ext, nil
}

// ensureDir creates dirPath and any missing parents. An existing directory is left untouched.
func ensureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return errors.Wrapf(err, "cannot create directory %q", dirPath)
	}
	return nil
}

// fileExists reports whether path names an existing regular file (or a symlink to one).
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// copyFile copies the contents of the file at src to dst, truncating dst if it exists.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "cannot read %q", src)
	}
	defer closeWithErrCheck(in, &err)

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", dst)
	}
	defer closeWithErrCheck(out, &err)

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to copy %q to %q", src, dst)
	}

	return nil
}

// copyFileToDir copies the file at src into dirPath, keeping its base name. Returns the new path.
func copyFileToDir(src, dirPath string) (string, error) {
	dst := filepath.Join(dirPath, filepath.Base(src))
	return dst, copyFile(src, dst)
}

// closeWithErrCheck calls c.Close() and appends its error, if any, to *e.
func closeWithErrCheck(c io.Closer, e *error) {
	multierr.AppendInvoke(e, multierr.Close(c))
}
