// Package pack bundles a project directory into a deployable archive.
package pack

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

var ErrUnsupportedFormat = errors.New("unsupported archive format")

// DefaultExcludes are skipped in every archive.
var DefaultExcludes = []string{".git", "node_modules", ".env*", "*.log"}

type Format string

const (
	FormatZip   Format = "zip"
	FormatTarXZ Format = "tar.xz"
)

// FormatFor picks the archive format from the output name.
func FormatFor(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXZ, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(name))
}

// Manifest describes a written archive.
type Manifest struct {
	Archive string   `json:"archive"`
	Format  Format   `json:"format"`
	Entries []string `json:"entries"`
	Bytes   int64    `json:"bytes"`
}

type entry struct {
	abs  string
	name string
	info fs.FileInfo
}

// Dir archives the regular files under root into out. Patterns in
// excludes are matched against each path element and against the whole
// slash-separated relative path; DefaultExcludes always apply.
func Dir(root, out string, excludes []string) (Manifest, error) {
	format, err := FormatFor(out)
	if err != nil {
		return Manifest{}, err
	}
	patterns := append(append([]string{}, DefaultExcludes...), excludes...)
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return Manifest{}, fmt.Errorf("exclude %q: %w", p, err)
		}
	}

	entries, err := collect(root, out, patterns)
	if err != nil {
		return Manifest{}, err
	}

	f, err := os.Create(out)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{Archive: out, Format: format}
	switch format {
	case FormatZip:
		err = writeZip(f, entries, &m)
	case FormatTarXZ:
		err = writeTarXZ(f, entries, &m)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return Manifest{}, fmt.Errorf("write %s: %w", filepath.Base(out), err)
	}
	return m, nil
}

func collect(root, out string, patterns []string) ([]entry, error) {
	outAbs, _ := filepath.Abs(out)
	var entries []entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)
		if excluded(name, patterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(p); abs == outAbs {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, entry{abs: p, name: name, info: info})
		return nil
	})
	return entries, err
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if ok, _ := path.Match(p, path.Base(name)); ok {
			return true
		}
	}
	return false
}

func writeZip(w io.Writer, entries []entry, m *Manifest) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		hdr, err := zip.FileInfoHeader(e.info)
		if err != nil {
			return err
		}
		hdr.Name = e.name
		hdr.Method = zip.Deflate
		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		n, err := copyFile(dst, e.abs)
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, e.name)
		m.Bytes += n
	}
	return zw.Close()
}

func writeTarXZ(w io.Writer, entries []entry, m *Manifest) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(xw)
	for _, e := range entries {
		hdr, err := tar.FileInfoHeader(e.info, "")
		if err != nil {
			return err
		}
		hdr.Name = e.name
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		n, err := copyFile(tw, e.abs)
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, e.name)
		m.Bytes += n
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return xw.Close()
}

func copyFile(dst io.Writer, src string) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(dst, f)
}

// List returns the entry names of an archive written by Dir.
func List(archive string) ([]string, error) {
	format, err := FormatFor(archive)
	if err != nil {
		return nil, err
	}
	if format == FormatZip {
		zr, err := zip.OpenReader(archive)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		names := make([]string, len(zr.File))
		for i, f := range zr.File {
			names[i] = f.Name
		}
		return names, nil
	}

	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	xr, err := xz.NewReader(f)
	if err != nil {
		return nil, err
	}
	tr := tar.NewReader(xr)
	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, hdr.Name)
	}
}
