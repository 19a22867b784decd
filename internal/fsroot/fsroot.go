// Package fsroot wraps the single filesystem root the server exposes in
// an afero.Fs, giving every handler a consistent, path-prefixed view of
// the tree instead of scattering filepath.Join(root, ...) calls through
// the codebase.
package fsroot

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FS is the server's view of its configured root directory.
type FS struct {
	// Root is the canonical absolute path of the served directory.
	Root string
	// PathIsFile is set when the configured root names a single file
	// rather than a directory. In that mode the dispatcher, once the
	// access guard has passed, always serves SingleFileRel instead of
	// the resolved request path.
	PathIsFile    bool
	SingleFileRel string
	fs            afero.Fs
}

// New canonicalizes root and returns an FS backed by an afero.BasePathFs
// rooted there. BasePathFs rejects any name that would resolve outside
// Root by path-prefix, a defense-in-depth complement to the Path
// Resolver's own symlink containment check (BasePathFs does not resolve
// symlinks, so it cannot substitute for that check by itself).
func New(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	base := abs
	singleFileRel := ""
	pathIsFile := !info.IsDir()
	if pathIsFile {
		// A single served file: root the afero view at its parent so
		// Open("") style resolution against the file itself still works.
		base = filepath.Dir(abs)
		singleFileRel = filepath.Base(abs)
	}

	return &FS{
		Root:          base,
		PathIsFile:    pathIsFile,
		SingleFileRel: singleFileRel,
		fs:            afero.NewBasePathFs(afero.NewOsFs(), base),
	}, nil
}

// Stat follows symlinks, matching os.Stat.
func (f *FS) Stat(rel string) (os.FileInfo, error) { return f.fs.Stat(rel) }

// Lstat does not follow a trailing symlink, matching os.Lstat. It
// distinguishes a symlinked directory/file (PathItem kind SymlinkDir /
// SymlinkFile) from a plain one.
func (f *FS) Lstat(rel string) (os.FileInfo, error) {
	if lstater, ok := f.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(rel)
		return info, err
	}
	return f.fs.Stat(rel)
}

// IsSymlink reports whether rel names a symlink (as opposed to its
// target kind), consulting Lstat.
func (f *FS) IsSymlink(rel string) bool {
	info, err := f.Lstat(rel)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func (f *FS) Open(rel string) (afero.File, error)             { return f.fs.Open(rel) }
func (f *FS) Create(rel string) (afero.File, error)            { return f.fs.Create(rel) }
func (f *FS) MkdirAll(rel string, perm os.FileMode) error      { return f.fs.MkdirAll(rel, perm) }
func (f *FS) Remove(rel string) error                          { return f.fs.Remove(rel) }
func (f *FS) RemoveAll(rel string) error                       { return f.fs.RemoveAll(rel) }
func (f *FS) Rename(oldRel, newRel string) error               { return f.fs.Rename(oldRel, newRel) }
func (f *FS) ReadDir(rel string) ([]os.FileInfo, error)        { return afero.ReadDir(f.fs, rel) }
func (f *FS) Exists(rel string) (bool, error)                  { return afero.Exists(f.fs, rel) }
func (f *FS) DirExists(rel string) (bool, error)                { return afero.DirExists(f.fs, rel) }

// Walk depth-first walks rel (a directory), matching afero.Walk.
func (f *FS) Walk(rel string, fn filepath.WalkFunc) error {
	return afero.Walk(f.fs, rel, fn)
}

// AbsPath returns the real on-disk path for rel, for callers that need
// to run filepath.EvalSymlinks directly. pathresolve.Resolver.Contain
// builds its own path with Resolver.Abs instead.
func (f *FS) AbsPath(rel string) string {
	if rel == "" {
		return f.Root
	}
	return filepath.Join(f.Root, rel)
}
