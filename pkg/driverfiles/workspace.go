package driverfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Workspace is a directory of driver supplied files. All names are
// relative to the root and may not escape it.
type Workspace struct {
	root string
}

// Open returns a workspace over an existing directory.
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// FilePath returns the absolute path of name within the workspace.
func (w *Workspace) FilePath(name string) string {
	return filepath.Join(w.root, filepath.FromSlash(cleanName(name)))
}

// HasFile reports whether name is a regular file.
func (w *Workspace) HasFile(name string) bool {
	info, err := os.Stat(w.FilePath(name))
	return err == nil && info.Mode().IsRegular()
}

// HasDirectory reports whether name is a directory.
func (w *Workspace) HasDirectory(name string) bool {
	info, err := os.Stat(w.FilePath(name))
	return err == nil && info.IsDir()
}

// ReadFile reads name from the workspace.
func (w *Workspace) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(w.FilePath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read driver file %s: %w", name, err)
	}
	return data, nil
}

// ReadTree reads every regular file under dir, keyed by its slash separated
// path relative to dir.
func (w *Workspace) ReadTree(dir string) (map[string]string, error) {
	base := w.FilePath(dir)
	files := make(map[string]string)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read driver files under %s: %w", dir, err)
	}
	return files, nil
}

// List returns the slash separated paths of every regular file in the
// workspace, sorted.
func (w *Workspace) List() ([]string, error) {
	tree, err := w.ReadTree(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RemoveAll deletes the workspace directory.
func (w *Workspace) RemoveAll() error {
	if err := os.RemoveAll(w.root); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove driver files at %s: %w", w.root, err)
	}
	return nil
}

// cleanName normalises name to a slash path that stays inside the root.
func cleanName(name string) string {
	cleaned := filepath.ToSlash(filepath.Clean("/" + filepath.ToSlash(name)))
	return strings.TrimPrefix(cleaned, "/")
}
