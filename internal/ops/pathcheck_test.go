package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/palmscan/palmscan/internal/config"
	"github.com/palmscan/palmscan/internal/errors"
)

func unsafeConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return cfg
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestValidatePath_Rejections(t *testing.T) {
	tests := []struct {
		name string
		path string
		cfg  *config.Config
	}{
		{"empty", "", config.DefaultConfig()},
		{"parent traversal", "../backup.jsonl", config.DefaultConfig()},
		{"mid-path traversal", "/tmp/../etc/backup.jsonl", config.DefaultConfig()},
		{"no extension", "/tmp/backup", unsafeConfig()},
		{"json extension", "/tmp/backup.json", unsafeConfig()},
		{"bare zst", "/tmp/backup.zst", unsafeConfig()},
		{"outside exports dir", "/tmp/backup.jsonl", config.DefaultConfig()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathCheckWrite, tc.cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", tc.path, err)
			}
		})
	}
}

func TestValidatePath_Extensions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"fortunes.jsonl", "fortunes.jsonl.zst"} {
		if err := ValidatePath(filepath.Join(dir, name), PathCheckWrite, unsafeConfig()); err != nil {
			t.Errorf("ValidatePath(%s) = %v", name, err)
		}
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	allowed := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowed, "relative/ignored"}

	inside := filepath.Join(allowed, "in.jsonl.zst")
	writeFile(t, inside)
	if err := ValidatePath(inside, PathCheckRead, cfg); err != nil {
		t.Errorf("path in allowed_paths rejected: %v", err)
	}

	other := filepath.Join(t.TempDir(), "other.jsonl")
	writeFile(t, other)
	if err := ValidatePath(other, PathCheckRead, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("path outside allowed_paths = %v, want INVALID_REQUEST", err)
	}

	sub := filepath.Join(allowed, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ValidatePath(filepath.Join(sub, "out.jsonl"), PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("nested path = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_FileNotFound_ReadMode(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.jsonl")
	err := ValidatePath(missing, PathCheckRead, unsafeConfig())
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	allowed := t.TempDir()
	target := filepath.Join(t.TempDir(), "secret.jsonl")
	writeFile(t, target)

	link := filepath.Join(allowed, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	restricted := config.DefaultConfig()
	restricted.AllowedPaths = []string{allowed}

	for name, cfg := range map[string]*config.Config{"allowed_paths": restricted, "unsafe": unsafeConfig()} {
		for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
			if err := ValidatePath(link, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("%s mode %d: err = %v, want INVALID_REQUEST", name, mode, err)
			}
		}
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/fortunes.jsonl", false},
		{"../fortunes.jsonl", true},
		{"/home/../etc/passwd", true},
		{"./fortunes.jsonl", false},
		{"fortunes..old.jsonl", false},
	}

	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.contains {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.contains)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"user-1", "user-1"},
		{"auth0|abc/def", "auth0|abc-def"},
		{"../../../etc/passwd", "etc-passwd"},
		{"foo\x00bar", "foobar"},
		{"../../..", "unnamed"},
		{"ผู้ใช้", "ผู้ใช้"},
		{"a---b", "a-b"},
	}

	for _, tc := range tests {
		if got := SanitizeForFilename(tc.input); got != tc.expected {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestIsZstdPath(t *testing.T) {
	if !isZstdPath("/x/a.jsonl.zst") || isZstdPath("/x/a.jsonl") {
		t.Error("isZstdPath misclassified")
	}
}
