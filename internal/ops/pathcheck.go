package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/palmscan/palmscan/internal/config"
	"github.com/palmscan/palmscan/internal/errors"
)

// PathCheckMode says whether an export file is about to be read or written.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // import
	PathCheckWrite                      // export
)

// Export file extensions. The zstd form is decided by suffix, not by sniffing.
const (
	ExtJSONL     = ".jsonl"
	ExtJSONLZstd = ".jsonl.zst"
)

// ValidatePath vets the file behind a fortune export or import.
//
// The path needs a .jsonl or .jsonl.zst extension and no ".." component. Unless
// allow_unsafe_paths is set, the file must sit directly in ~/.palmscan/exports or
// in one of allowed_paths, and that directory must not be a symlink. The file
// itself is never allowed to be a symlink, and on import it must exist.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !hasExportExt(cleaned) {
		return errors.NewInvalidRequest("path must have .jsonl or .jsonl.zst extension")
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		if err := checkExportDir(filepath.Dir(abs), cfg); err != nil {
			return err
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if isSymlink(abs) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// checkExportDir requires dir to be one of the export directories, matched
// exactly so nested directories cannot be swapped underneath us.
func checkExportDir(dir string, cfg *config.Config) error {
	allowed, err := exportDirs(cfg)
	if err != nil {
		return err
	}

	dir = filepath.Clean(dir)
	found := false
	for _, d := range allowed {
		if dir == d {
			found = true
			break
		}
	}
	if !found {
		return errors.NewInvalidRequest(
			fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowed))
	}
	if isSymlink(dir) {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	return nil
}

// exportDirs lists the default exports directory plus absolute allowed_paths.
// Entries that are symlinks resolve to their targets.
func exportDirs(cfg *config.Config) ([]string, error) {
	def, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{def}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, p)
			}
		}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = filepath.Clean(d)
		if isSymlink(d) {
			resolved, err := filepath.EvalSymlinks(d)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			d = resolved
		}
		out = append(out, d)
	}
	return out, nil
}

// DefaultExportsDir returns ~/.palmscan/exports.
func DefaultExportsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, config.DirName, "exports"), nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func hasExportExt(path string) bool {
	return isZstdPath(path) || filepath.Ext(path) == ExtJSONL
}

func isZstdPath(path string) bool {
	return strings.HasSuffix(path, ExtJSONLZstd)
}

// containsTraversal reports a ".." component, splitting on both separators.
func containsTraversal(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

var filenameReplacer = strings.NewReplacer("/", "-", "\\", "-", "..", "-")

// SanitizeForFilename turns a user id into a safe export file name stem.
func SanitizeForFilename(s string) string {
	s = filenameReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if s = strings.Trim(s, "-"); s == "" {
		return "unnamed"
	}
	return s
}
