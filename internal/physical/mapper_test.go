package physical

import (
	"io"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet/internal/common"
	"cabinet/internal/fault"
)

func testMapper() *Mapper {
	return NewMapper(memfs.New())
}

func readAll(t *testing.T, m *Mapper, owner common.Owner, rel string) string {
	t.Helper()
	f, err := m.Open(owner, rel)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestSandboxEscape(t *testing.T) {
	m := testMapper()
	alice := common.PersonalOwner("alice")

	_, err := m.SaveFile(alice, "../bob/stolen.txt", strings.NewReader("x"))
	assert.Equal(t, fault.KindSecurity, fault.KindOf(err))

	err = m.CreateDir(alice, "ok/../../../etc")
	assert.Equal(t, fault.KindSecurity, fault.KindOf(err))

	_, err = m.Exists(common.Owner{}, "file.txt")
	assert.Equal(t, fault.KindSecurity, fault.KindOf(err), "unowned access is refused")
}

func TestSaveFile(t *testing.T) {
	m := testMapper()
	alice := common.PersonalOwner("alice")

	n, err := m.SaveFile(alice, "docs/a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", readAll(t, m, alice, "docs/a.txt"))

	t.Run("existing file is a conflict", func(t *testing.T) {
		_, err := m.SaveFile(alice, "docs/a.txt", strings.NewReader("clobber"))
		assert.True(t, fault.Conflict(err), "expected conflict, got %v", err)
		assert.Equal(t, "hello", readAll(t, m, alice, "docs/a.txt"), "original content untouched")
	})

	t.Run("owners are isolated", func(t *testing.T) {
		bob := common.PersonalOwner("bob")
		_, err := m.SaveFile(bob, "docs/a.txt", strings.NewReader("bobs"))
		require.NoError(t, err)
		assert.Equal(t, "bobs", readAll(t, m, bob, "docs/a.txt"))
		assert.Equal(t, "hello", readAll(t, m, alice, "docs/a.txt"))
	})
}

func TestCreateDir(t *testing.T) {
	m := testMapper()
	alice := common.PersonalOwner("alice")

	require.NoError(t, m.CreateDir(alice, "projects"))
	err := m.CreateDir(alice, "projects")
	assert.True(t, fault.Conflict(err), "expected conflict, got %v", err)
}

func TestResolveRenameTarget(t *testing.T) {
	m := testMapper().WithExtensionPolicy(func(ext string) bool {
		return ext == "pdf" || ext == "txt"
	})

	t.Run("missing extension keeps the original", func(t *testing.T) {
		name, rel, err := m.ResolveRenameTarget("docs/report.pdf", "summary")
		require.NoError(t, err)
		assert.Equal(t, "summary.pdf", name)
		assert.Equal(t, "docs/summary.pdf", rel)
	})

	t.Run("explicit allowed extension passes", func(t *testing.T) {
		name, rel, err := m.ResolveRenameTarget("docs/report.pdf", "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", name)
		assert.Equal(t, "docs/notes.txt", rel)
	})

	t.Run("disallowed extension is refused", func(t *testing.T) {
		_, _, err := m.ResolveRenameTarget("docs/report.pdf", "evil.exe")
		assert.Equal(t, fault.KindInvalidOperation, fault.KindOf(err))
	})
}

func TestRenameFile(t *testing.T) {
	m := testMapper()
	alice := common.PersonalOwner("alice")
	_, err := m.SaveFile(alice, "docs/report.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)

	name, rel, err := m.RenameFile(alice, "docs/report.pdf", "final")
	require.NoError(t, err)
	assert.Equal(t, "final.pdf", name)
	assert.Equal(t, "docs/final.pdf", rel)
	assert.Equal(t, "pdf", readAll(t, m, alice, "docs/final.pdf"))

	ok, err := m.Exists(alice, "docs/report.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMove(t *testing.T) {
	m := testMapper()
	alice := common.PersonalOwner("alice")
	_, err := m.SaveFile(alice, "a/f.txt", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = m.SaveFile(alice, "b/f.txt", strings.NewReader("2"))
	require.NoError(t, err)

	t.Run("destination collision", func(t *testing.T) {
		err := m.Move(alice, "a/f.txt", "b/f.txt")
		assert.True(t, fault.Conflict(err), "expected conflict, got %v", err)
	})

	t.Run("missing source", func(t *testing.T) {
		err := m.Move(alice, "a/ghost.txt", "b/ghost.txt")
		assert.True(t, fault.NotFound(err), "expected not-found, got %v", err)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, m.Move(alice, "a/f.txt", "c/f.txt"))
		assert.Equal(t, "1", readAll(t, m, alice, "c/f.txt"))
	})
}

func TestDelete(t *testing.T) {
	m := testMapper()
	alice := common.PersonalOwner("alice")
	_, err := m.SaveFile(alice, "dir/sub/a.txt", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = m.SaveFile(alice, "dir/b.txt", strings.NewReader("y"))
	require.NoError(t, err)

	t.Run("directory removal is recursive", func(t *testing.T) {
		require.NoError(t, m.Delete(alice, "dir"))
		ok, err := m.Exists(alice, "dir/sub/a.txt")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing target is not found", func(t *testing.T) {
		err := m.Delete(alice, "dir")
		assert.True(t, fault.NotFound(err), "expected not-found, got %v", err)
	})

	t.Run("DeleteIfExists tolerates missing", func(t *testing.T) {
		assert.NoError(t, m.DeleteIfExists(alice, "dir"))
	})
}
