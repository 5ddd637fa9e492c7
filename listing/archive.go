/*
 *
 * shadowfold - a self-hiding layered resource resolver
 * Copyright (C) 2026 The shadowfold Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package listing

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/foldlib/shadowfold/lib/fsext"
)

// ErrNoSuchEntry is returned by OpenEntry when the archive exists but has no
// entry with the requested name.
var ErrNoSuchEntry = errors.New("no such archive entry")

// IsArchivePath reports whether the given path looks like an archive the
// resolver knows how to enumerate. Bundles are zip-shaped (.zip, .jar) or
// tar-shaped (.tar, .tar.gz, .tgz); anything else is treated as a directory
// or a plain file by the callers.
func IsArchivePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".jar", ".tar", ".tgz":
		return true
	}
	return strings.HasSuffix(strings.ToLower(path), ".tar.gz")
}

// enumerate opens the archive at path and returns the names of all
// non-directory entries in it.
func enumerate(fs fsext.Fs, path string) (map[string]struct{}, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	names := make(map[string]struct{})
	if isTarPath(path) {
		r, closeTar, err := tarReader(f, path)
		if err != nil {
			return nil, err
		}
		defer closeTar()
		for {
			hdr, err := r.Next()
			if err == io.EOF {
				return names, nil
			}
			if err != nil {
				return nil, err
			}
			if hdr.Typeflag == tar.TypeDir {
				continue
			}
			names[strings.TrimPrefix(hdr.Name, "./")] = struct{}{}
		}
	}

	st, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		return nil, err
	}
	for _, entry := range zr.File {
		if strings.HasSuffix(entry.Name, "/") {
			continue
		}
		names[entry.Name] = struct{}{}
	}
	return names, nil
}

// OpenEntry returns a reader for the named entry of the archive at path. The
// caller owns the returned reader and must close it.
func OpenEntry(fs fsext.Fs, path, name string) (io.ReadCloser, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	if isTarPath(path) {
		r, closeTar, err := tarReader(f, path)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		for {
			hdr, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				closeTar()
				_ = f.Close()
				return nil, err
			}
			if hdr.Typeflag != tar.TypeDir && strings.TrimPrefix(hdr.Name, "./") == name {
				return &entryReader{Reader: r, closers: []io.Closer{closerFunc(closeTar), f}}, nil
			}
		}
		closeTar()
		_ = f.Close()
		return nil, fmt.Errorf("%w: %q in %s", ErrNoSuchEntry, name, path)
	}

	st, err := fs.Stat(path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	for _, entry := range zr.File {
		if entry.Name != name {
			continue
		}
		r, err := entry.Open()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return &entryReader{Reader: r, closers: []io.Closer{r, f}}, nil
	}
	_ = f.Close()
	return nil, fmt.Errorf("%w: %q in %s", ErrNoSuchEntry, name, path)
}

func isTarPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar") || strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// tarReader wraps the archive file in a tar reader, decompressing first for
// .tar.gz and .tgz archives. The returned func releases the decompressor.
func tarReader(f io.Reader, path string) (*tar.Reader, func(), error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return tar.NewReader(gz), func() { _ = gz.Close() }, nil
	}
	return tar.NewReader(f), func() {}, nil
}

type entryReader struct {
	io.Reader
	closers []io.Closer
}

func (er *entryReader) Close() error {
	var firstErr error
	for _, c := range er.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type closerFunc func()

func (cf closerFunc) Close() error { cf(); return nil }
