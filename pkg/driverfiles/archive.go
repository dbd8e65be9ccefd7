package driverfiles

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxArchiveSize caps the uncompressed size of an uploaded archive.
const DefaultMaxArchiveSize int64 = 64 << 20

// ExtractOptions tune archive extraction.
type ExtractOptions struct {
	// BaseDir is the parent of the workspace directory; empty uses the
	// system temporary directory.
	BaseDir string

	// MaxSize caps the total uncompressed size; zero uses
	// DefaultMaxArchiveSize.
	MaxSize int64
}

// FromBase64Zip decodes a base64 encoded zip archive into a new workspace.
func FromBase64Zip(encoded string, opts ExtractOptions) (*Workspace, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("driver files are not valid base64: %w", err)
	}
	return FromZip(data, opts)
}

// FromZip extracts a zip archive into a new workspace. Entries that would
// land outside the workspace are rejected.
func FromZip(data []byte, opts ExtractOptions) (*Workspace, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("driver files are not a valid zip archive: %w", err)
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxArchiveSize
	}

	root, err := os.MkdirTemp(opts.BaseDir, "driver-files-")
	if err != nil {
		return nil, fmt.Errorf("failed to create driver files directory: %w", err)
	}
	ws := &Workspace{root: root}

	var total int64
	for _, f := range reader.File {
		written, err := extractEntry(ws, f, maxSize-total)
		if err != nil {
			_ = ws.RemoveAll()
			return nil, err
		}
		total += written
	}
	return ws, nil
}

func extractEntry(ws *Workspace, f *zip.File, remaining int64) (int64, error) {
	name := filepath.ToSlash(f.Name)
	if filepath.IsAbs(f.Name) || strings.HasPrefix(name, "../") || strings.Contains(name, "/../") || name == ".." {
		return 0, fmt.Errorf("driver files archive entry %q escapes the workspace", f.Name)
	}
	target := ws.FilePath(name)

	if f.FileInfo().IsDir() {
		return 0, os.MkdirAll(target, 0o755)
	}
	if !f.Mode().IsRegular() {
		return 0, fmt.Errorf("driver files archive entry %q is not a regular file", f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", f.Name, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, remaining+1))
	if err != nil {
		return written, fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if written > remaining {
		return written, fmt.Errorf("driver files archive exceeds the maximum size")
	}
	return written, nil
}
