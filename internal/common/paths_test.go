package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{".", ""},
		{"a/b/c", "a/b/c"},
		{"/a/b/", "a/b"},
		{"a//b", "a/b"},
		{"a\\b\\c", "a/b/c"},
		{"./a/./b", "a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), "NormalizePath(%q)", tt.in)
	}
}

func TestSplitJoin(t *testing.T) {
	assert.Nil(t, SplitPath(""))
	assert.Equal(t, []string{"a", "b"}, SplitPath("a/b"))
	assert.Equal(t, "a/b/c", JoinPath("a", "b", "c"))
	assert.Equal(t, "b", JoinPath("", "b"))
	assert.Equal(t, "", JoinPath())
}

func TestParentAndBase(t *testing.T) {
	assert.Equal(t, "a/b", ParentPath("a/b/c.txt"))
	assert.Equal(t, "", ParentPath("c.txt"))
	assert.Equal(t, "", ParentPath(""))
	assert.Equal(t, "c.txt", BaseName("a/b/c.txt"))
	assert.Equal(t, "", BaseName(""))
}

func TestRebasePath(t *testing.T) {
	t.Run("direct child", func(t *testing.T) {
		assert.Equal(t, "new/f.txt", RebasePath("old/f.txt", "old", "new"))
	})
	t.Run("nested descendant", func(t *testing.T) {
		assert.Equal(t, "a/new/sub/f.txt", RebasePath("a/old/sub/f.txt", "a/old", "a/new"))
	})
	t.Run("prefix itself", func(t *testing.T) {
		assert.Equal(t, "new", RebasePath("old", "old", "new"))
	})
	t.Run("not under prefix", func(t *testing.T) {
		assert.Equal(t, "older/f.txt", RebasePath("older/f.txt", "old", "new"))
	})
	t.Run("move to deeper location", func(t *testing.T) {
		assert.Equal(t, "x/y/docs/f.txt", RebasePath("docs/f.txt", "docs", "x/y/docs"))
	})
	t.Run("root prefix", func(t *testing.T) {
		assert.Equal(t, "dest/f.txt", RebasePath("f.txt", "", "dest"))
	})
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "pdf", Extension("report.PDF"))
	assert.Equal(t, "gz", Extension("archive.tar.gz"))
	assert.Equal(t, "", Extension("README"))
	assert.Equal(t, "", Extension(""))
}

func TestEscapesRoot(t *testing.T) {
	assert.True(t, EscapesRoot(".."))
	assert.True(t, EscapesRoot("../etc/passwd"))
	assert.True(t, EscapesRoot("a/../../b"))
	assert.True(t, EscapesRoot("..\\windows"))
	assert.False(t, EscapesRoot("a/b"))
	assert.False(t, EscapesRoot("a/../b"))
	assert.False(t, EscapesRoot(""))
	assert.False(t, EscapesRoot("..hidden/file"))
}
