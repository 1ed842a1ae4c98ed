package fileops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Test helpers

func createTestFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create parent for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
	return path
}

func createTestSymlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		if runtime.GOOS == "windows" {
			t.Skipf("symlink creation failed on Windows: %v", err)
		}
		t.Fatalf("failed to create symlink: %v", err)
	}
}

// canonicalTempDir returns a temp dir with symlinks resolved (macOS /var -> /private/var).
func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	return dir
}

func TestResolveInRoot_File(t *testing.T) {
	root := canonicalTempDir(t)
	outside := canonicalTempDir(t)

	createTestFile(t, root, "notes.txt", "hello")
	createTestFile(t, root, "sub/deep/file.md", "# deep")
	createTestFile(t, outside, "secret.txt", "secret")
	if err := os.Mkdir(filepath.Join(root, "emptydir"), 0o755); err != nil {
		t.Fatal(err)
	}
	createTestSymlink(t, filepath.Join(outside, "secret.txt"), filepath.Join(root, "escape.txt"))
	createTestSymlink(t, filepath.Join(root, "notes.txt"), filepath.Join(root, "inside-link.txt"))
	createTestSymlink(t, outside, filepath.Join(root, "outdir"))

	tests := []struct {
		name      string
		candidate string
		want      string
		wantErr   error
	}{
		{name: "plain file", candidate: "notes.txt", want: filepath.Join(root, "notes.txt")},
		{name: "nested file", candidate: "sub/deep/file.md", want: filepath.Join(root, "sub/deep/file.md")},
		{name: "dot segments that stay inside", candidate: "sub/../notes.txt", want: filepath.Join(root, "notes.txt")},
		{name: "absolute inside root", candidate: filepath.Join(root, "notes.txt"), want: filepath.Join(root, "notes.txt")},
		{name: "symlink inside root", candidate: "inside-link.txt", want: filepath.Join(root, "notes.txt")},
		{name: "dotdot escape", candidate: "../../etc/passwd", wantErr: ErrOutsideRoot},
		{name: "dotdot escape after descent", candidate: "sub/../../../etc/passwd", wantErr: ErrOutsideRoot},
		{name: "absolute outside root", candidate: filepath.Join(outside, "secret.txt"), wantErr: ErrOutsideRoot},
		{name: "symlink escaping root", candidate: "escape.txt", wantErr: ErrOutsideRoot},
		{name: "through directory symlink", candidate: "outdir/secret.txt", wantErr: ErrOutsideRoot},
		{name: "missing file", candidate: "missing.txt", wantErr: fs.ErrNotExist},
		{name: "file used as directory", candidate: "notes.txt/child", wantErr: fs.ErrNotExist},
		{name: "directory", candidate: "emptydir", wantErr: ErrNotRegularFile},
		{name: "root itself", candidate: ".", wantErr: ErrNotRegularFile},
		{name: "empty", candidate: "  ", wantErr: ErrEmptyPath},
		{name: "nul byte", candidate: "notes.txt\x00.md", wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveInRoot(root, tt.candidate, ResolveFile)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got path=%q err=%v", tt.wantErr, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolveInRoot_TraversalIsRejectedBeforeStat(t *testing.T) {
	root := canonicalTempDir(t)

	// Whether or not the target exists, the answer must be the same.
	for _, candidate := range []string{"../../etc/passwd", "../../definitely/not/here", "../x.txt"} {
		_, err := ResolveInRoot(root, candidate, ResolveFile)
		if !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("%q: expected ErrOutsideRoot, got %v", candidate, err)
		}
	}
}

func TestResolveInRoot_SymlinkedRoot(t *testing.T) {
	real := canonicalTempDir(t)
	createTestFile(t, real, "a.txt", "a")

	linkParent := canonicalTempDir(t)
	linkedRoot := filepath.Join(linkParent, "root-link")
	createTestSymlink(t, real, linkedRoot)

	got, err := ResolveInRoot(linkedRoot, "a.txt", ResolveFile)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if got != filepath.Join(real, "a.txt") {
		t.Errorf("Expected canonical path, got %q", got)
	}

	// The literal spelling of the root is accepted for absolute candidates.
	got, err = ResolveInRoot(linkedRoot, filepath.Join(linkedRoot, "a.txt"), ResolveFile)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if got != filepath.Join(real, "a.txt") {
		t.Errorf("Expected canonical path, got %q", got)
	}
}

func TestResolveInRoot_Dir(t *testing.T) {
	root := canonicalTempDir(t)
	createTestFile(t, root, "docs/readme.md", "x")

	got, err := ResolveInRoot(root, "docs", ResolveDir)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if got != filepath.Join(root, "docs") {
		t.Errorf("Expected docs dir, got %q", got)
	}

	if _, err := ResolveInRoot(root, ".", ResolveDir); err != nil {
		t.Errorf("Root itself should resolve as dir: %v", err)
	}

	if _, err := ResolveInRoot(root, "docs/readme.md", ResolveDir); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
}

func TestResolveInRoot_Create(t *testing.T) {
	root := canonicalTempDir(t)
	outside := canonicalTempDir(t)
	createTestFile(t, root, "existing.txt", "x")
	createTestFile(t, root, "dir/keep.txt", "x")
	createTestSymlink(t, outside, filepath.Join(root, "outlink"))
	createTestSymlink(t, filepath.Join(outside, "nothing-yet.txt"), filepath.Join(root, "dangling.txt"))

	tests := []struct {
		name      string
		candidate string
		want      string
		wantErr   error
	}{
		{name: "new file in root", candidate: "new.txt", want: filepath.Join(root, "new.txt")},
		{name: "new file in new dirs", candidate: "a/b/c.txt", want: filepath.Join(root, "a/b/c.txt")},
		{name: "existing file", candidate: "existing.txt", want: filepath.Join(root, "existing.txt")},
		{name: "existing dir", candidate: "dir", wantErr: ErrNotRegularFile},
		{name: "parent is a file", candidate: "existing.txt/child.txt", wantErr: ErrNotDirectory},
		{name: "escape", candidate: "../evil.txt", wantErr: ErrOutsideRoot},
		{name: "through symlinked dir", candidate: "outlink/evil.txt", wantErr: ErrOutsideRoot},
		{name: "dangling symlink", candidate: "dangling.txt", wantErr: fs.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveInRoot(root, tt.candidate, ResolveCreate)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got path=%q err=%v", tt.wantErr, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(outside, "nothing-yet.txt")); !os.IsNotExist(err) {
		t.Error("Resolution must not create anything outside the root")
	}
}

func TestCanonicalRoot(t *testing.T) {
	root := canonicalTempDir(t)
	file := createTestFile(t, root, "f.txt", "x")

	if got, err := CanonicalRoot(root); err != nil || got != root {
		t.Errorf("Expected %q, got %q (%v)", root, got, err)
	}
	if _, err := CanonicalRoot(file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
	if _, err := CanonicalRoot(filepath.Join(root, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist, got %v", err)
	}
	if _, err := CanonicalRoot(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("Expected ErrEmptyPath, got %v", err)
	}
}

func TestIsWithin(t *testing.T) {
	base := filepath.FromSlash("/data/files")

	tests := []struct {
		target string
		want   bool
	}{
		{"/data/files", true},
		{"/data/files/a.txt", true},
		{"/data/files/sub/../a.txt", true},
		{"/data/files/..hidden", true},
		{"/data/files-other/a.txt", false},
		{"/data", false},
		{"/data/files/../../etc/passwd", false},
		{"/etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := IsWithin(base, filepath.FromSlash(tt.target)); got != tt.want {
				t.Errorf("IsWithin(%q, %q) = %v, want %v", base, tt.target, got, tt.want)
			}
		})
	}
}

func TestResolveModeString(t *testing.T) {
	if ResolveCreate.String() != "create" || ResolveMode(42).String() != "ResolveMode(42)" {
		t.Error("unexpected ResolveMode names")
	}
}
