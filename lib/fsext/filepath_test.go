package fsext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinFilePath(t *testing.T) {
	t.Parallel()
	testdata := map[string]struct{ b, p, want string }{
		"simple":        {"/a/b", "c", "/a/b/c"},
		"dotdot capped": {"/a/b", "../../../c", "/a/b/c"},
		"nested":        {"/", "x/y", "/x/y"},
	}
	for name, data := range testdata {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, data.want, JoinFilePath(data.b, data.p))
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/a/b", Canonical("/a/b/"))
	assert.Equal(t, "/a/b", Canonical("/a/./b"))
	assert.Equal(t, "/a", Canonical("/a/b/.."))
}

func TestJoinResourcePath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/loc/a/B.class", JoinResourcePath("/loc", "a/B.class"))
	// Resource names cannot escape their location.
	assert.Equal(t, "/loc/secret", JoinResourcePath("/loc", "../../secret"))
}
