package fsext

import (
	"path"
	"path/filepath"
)

// JoinFilePath is a wrapper around filepath.Join
// starting go 1.20 on Windows, Clean (that is using inside the
// filepath.Join) does not modify the volume name
// other than to replace occurrences of "/" with `\`.
// that's why we need to add a leading slash to the path
// go.1.19: filepath.Join("\\c:", "test")  // \c:\test
// go.1.20: filepath.Join("\\c:", "test")  // \c:test
func JoinFilePath(b, p string) string {
	return filepath.Join(b, filepath.Clean("/"+p))
}

// Canonical returns the cleaned, absolute form of the given path. Resource
// locations are compared by their string form, so every path that enters a
// resolver has to go through here exactly once.
func Canonical(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// JoinResourcePath joins a location path with a slash-delimited resource name.
// Resource names always use forward slashes, regardless of the host OS.
func JoinResourcePath(location, name string) string {
	return filepath.Join(location, filepath.FromSlash(path.Clean("/"+name)))
}
