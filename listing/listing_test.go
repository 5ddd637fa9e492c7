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
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/foldlib/shadowfold/lib/fsext"
	"github.com/foldlib/shadowfold/lib/testutils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeZip(t *testing.T, fs fsext.Fs, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, fsext.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func writeTarGz(t *testing.T, fs fsext.Fs, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	w := tar.NewWriter(gz)
	require.NoError(t, w.WriteHeader(&tar.Header{Name: "sub/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, data := range entries {
		require.NoError(t, w.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))}))
		_, err := w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, fsext.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func newTestHandle(t *testing.T, fs fsext.Fs) (*Cache, *Handle) {
	t.Helper()
	logger, _ := testutils.NewLogger()
	cache := NewCache()
	h := cache.NewHandle(fs, logger)
	t.Cleanup(func() { _ = h.Close() })
	return cache, h
}

func TestListingZip(t *testing.T) {
	t.Parallel()
	fs := fsext.NewMemMapFs()
	writeZip(t, fs, "/ovr/foo.jar", map[string]string{
		"a/B.class":  "bee",
		"a/dir/":     "",
		"etc/cfg.xm": "x",
	})

	_, h := newTestHandle(t, fs)
	set := h.Listing("/ovr/foo.jar")
	assert.Contains(t, set, "a/B.class")
	assert.Contains(t, set, "etc/cfg.xm")
	assert.NotContains(t, set, "a/dir/")
	assert.True(t, h.Contains("/ovr/foo.jar", "a/B.class"))
	assert.Equal(t, []string{"a/B.class", "etc/cfg.xm"}, h.Entries("/ovr/foo.jar"))
}

func TestListingTarGz(t *testing.T) {
	t.Parallel()
	fs := fsext.NewMemMapFs()
	writeTarGz(t, fs, "/bundle/self.tar.gz", map[string]string{
		"a/B.SCL.x": "shadowed",
		"a/B.class": "plain",
	})

	_, h := newTestHandle(t, fs)
	assert.True(t, h.Contains("/bundle/self.tar.gz", "a/B.SCL.x"))
	assert.True(t, h.Contains("/bundle/self.tar.gz", "a/B.class"))
	assert.False(t, h.Contains("/bundle/self.tar.gz", "sub/"))
}

func TestListingUnreadableIsCachedEmpty(t *testing.T) {
	t.Parallel()
	fs := fsext.NewMemMapFs()
	logger, hook := testutils.NewLogger()
	cache := NewCache()
	h := cache.NewHandle(fs, logger)
	defer func() { _ = h.Close() }()

	assert.Empty(t, h.Listing("/missing.jar"))
	assert.Contains(t, hook.Lines(), "Archive could not be listed, caching it as empty")

	// The failure is permanent for this handle's lifetime, even if the
	// archive appears afterwards.
	writeZip(t, fs, "/missing.jar", map[string]string{"late.class": "x"})
	assert.Empty(t, h.Listing("/missing.jar"))

	// A fresh handle on an otherwise unreferenced path starts over.
	require.NoError(t, h.Close())
	h2 := cache.NewHandle(fs, logger)
	defer func() { _ = h2.Close() }()
	assert.True(t, h2.Contains("/missing.jar", "late.class"))
}

// countingFs wraps a filesystem and counts Open calls per path.
type countingFs struct {
	fsext.Fs
	opens int64
}

func (c *countingFs) Open(name string) (afero.File, error) {
	atomic.AddInt64(&c.opens, 1)
	return c.Fs.Open(name)
}

func TestCacheSharedAcrossHandles(t *testing.T) {
	t.Parallel()
	mem := fsext.NewMemMapFs()
	writeZip(t, mem, "/shared.jar", map[string]string{"a/B.class": "b"})
	fs := &countingFs{Fs: mem}
	logger, _ := testutils.NewLogger()

	cache := NewCache()
	h1 := cache.NewHandle(fs, logger)
	defer func() { _ = h1.Close() }()
	h2 := cache.NewHandle(fs, logger)
	defer func() { _ = h2.Close() }()

	set1 := h1.Listing("/shared.jar")
	set2 := h2.Listing("/shared.jar")
	assert.Equal(t, set1, set2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fs.opens), "the archive should be opened exactly once")
	assert.Equal(t, 1, cache.size())
}

func TestCacheReclaim(t *testing.T) {
	t.Parallel()
	fs := fsext.NewMemMapFs()
	writeZip(t, fs, "/r.jar", map[string]string{"a/B.class": "b"})
	logger, _ := testutils.NewLogger()

	cache := NewCache()
	h1 := cache.NewHandle(fs, logger)
	h2 := cache.NewHandle(fs, logger)
	h1.Listing("/r.jar")
	h2.Listing("/r.jar")
	require.Equal(t, 1, cache.size())

	require.NoError(t, h1.Close())
	assert.Equal(t, 1, cache.size(), "the entry is still referenced by the second handle")
	require.NoError(t, h2.Close())
	assert.Equal(t, 0, cache.size(), "the entry should be evicted once unreferenced")

	// Closing twice must not double-release.
	h3 := cache.NewHandle(fs, logger)
	h3.Listing("/r.jar")
	require.NoError(t, h1.Close())
	assert.Equal(t, 1, cache.size())
	require.NoError(t, h3.Close())
	assert.Equal(t, 0, cache.size())
}

func TestListingConcurrent(t *testing.T) {
	t.Parallel()
	mem := fsext.NewMemMapFs()
	writeZip(t, mem, "/c.jar", map[string]string{"a/B.class": "b"})
	fs := &countingFs{Fs: mem}
	_, h := newTestHandle(t, fs)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, h.Contains("/c.jar", "a/B.class"))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&fs.opens))
}

func TestOpenEntry(t *testing.T) {
	t.Parallel()
	fs := fsext.NewMemMapFs()
	writeZip(t, fs, "/o.jar", map[string]string{"a/B.class": "zip bytes"})
	writeTarGz(t, fs, "/o.tgz", map[string]string{"a/B.SCL.x": "tar bytes"})

	t.Run("zip", func(t *testing.T) {
		rc, err := OpenEntry(fs, "/o.jar", "a/B.class")
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "zip bytes", string(data))
	})

	t.Run("targz", func(t *testing.T) {
		rc, err := OpenEntry(fs, "/o.tgz", "a/B.SCL.x")
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "tar bytes", string(data))
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := OpenEntry(fs, "/o.jar", "nope.class")
		assert.ErrorIs(t, err, ErrNoSuchEntry)
	})
}

func TestIsArchivePath(t *testing.T) {
	t.Parallel()
	testdata := map[string]bool{
		"/a/foo.jar":    true,
		"/a/foo.ZIP":    true,
		"/a/foo.tar":    true,
		"/a/foo.tar.gz": true,
		"/a/foo.tgz":    true,
		"/a/foo.txt":    false,
		"/a/dir":        false,
	}
	for path, want := range testdata {
		assert.Equal(t, want, IsArchivePath(path), path)
	}
}
