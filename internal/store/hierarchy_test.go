package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet/internal/common"
	"cabinet/internal/fault"
)

// testStore opens a fresh store in a temp directory.
func testStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cabinet.db"), opts...)
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { s.Close() })
	return s
}

func mkFolder(t *testing.T, s *Store, owner common.Owner, parentID, name string) *Item {
	t.Helper()
	now := time.Now()
	it := &Item{
		ID:          uuid.NewString(),
		OwnerID:     owner.UserID,
		TeamspaceID: owner.TeamspaceID,
		ParentID:    parentID,
		Name:        name,
		Kind:        KindFolder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if it.OwnerID == "" {
		it.OwnerID = "member"
	}
	require.NoError(t, s.Insert(context.Background(), it))
	return it
}

func mkFile(t *testing.T, s *Store, owner common.Owner, parentID, name, relPath string, size int64) *Item {
	t.Helper()
	now := time.Now()
	it := &Item{
		ID:          uuid.NewString(),
		OwnerID:     owner.UserID,
		TeamspaceID: owner.TeamspaceID,
		ParentID:    parentID,
		Name:        name,
		Kind:        KindFile,
		RelPath:     relPath,
		SizeBytes:   size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if it.OwnerID == "" {
		it.OwnerID = "member"
	}
	require.NoError(t, s.Insert(context.Background(), it))
	return it
}

func trashItems(t *testing.T, s *Store, at time.Time, ids ...string) {
	t.Helper()
	deleted := true
	ts := at.Unix()
	updates := make([]ItemUpdate, len(ids))
	for i, id := range ids {
		updates[i] = ItemUpdate{ID: id, Deleted: &deleted, DeletedAtUnix: &ts}
	}
	require.NoError(t, s.ApplyUpdates(context.Background(), updates))
}

func TestInsertAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	f := mkFile(t, s, alice, "", "notes.txt", "notes.txt", 42)

	got, err := s.GetItem(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.Name)
	assert.Equal(t, KindFile, got.Kind)
	assert.Equal(t, int64(42), got.SizeBytes)
	assert.Equal(t, "", got.ParentID)
	assert.False(t, got.Deleted)

	_, err = s.GetItem(ctx, uuid.NewString())
	assert.True(t, fault.NotFound(err))
}

func TestSiblingUniqueness(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	mkFile(t, s, alice, "", "report.pdf", "report.pdf", 1)

	t.Run("same name and kind conflicts", func(t *testing.T) {
		dup := &Item{
			ID: uuid.NewString(), OwnerID: "alice", Name: "report.pdf",
			Kind: KindFile, RelPath: "report.pdf",
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		err := s.Insert(ctx, dup)
		assert.True(t, fault.Conflict(err), "expected conflict, got %v", err)
	})

	t.Run("same name different kind is allowed", func(t *testing.T) {
		mkFolder(t, s, alice, "", "report.pdf")
	})

	t.Run("trashed sibling frees the name", func(t *testing.T) {
		doomed := mkFile(t, s, alice, "", "temp.txt", "temp.txt", 1)
		trashItems(t, s, time.Now(), doomed.ID)
		mkFile(t, s, alice, "", "temp.txt", "temp.txt", 2)
	})

	t.Run("other owner's root is a different scope", func(t *testing.T) {
		bob := common.PersonalOwner("bob")
		mkFile(t, s, bob, "", "report.pdf", "report.pdf", 1)
	})
}

func TestTeamspaceScopeIgnoresCreatingUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	team := common.TeamspaceOwner("design")

	first := &Item{
		ID: uuid.NewString(), OwnerID: "alice", TeamspaceID: "design",
		Name: "brand.png", Kind: KindFile, RelPath: "brand.png",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, s.Insert(ctx, first))

	// A different member uploading the same name into the same teamspace
	// root must still collide.
	second := &Item{
		ID: uuid.NewString(), OwnerID: "bob", TeamspaceID: "design",
		Name: "brand.png", Kind: KindFile, RelPath: "brand.png",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	err := s.Insert(ctx, second)
	assert.True(t, fault.Conflict(err), "expected conflict, got %v", err)

	exists, err := s.LiveSiblingExists(ctx, team, "", "brand.png", KindFile)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListChildrenOrdering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	mkFile(t, s, alice, "", "file10.txt", "file10.txt", 1)
	mkFile(t, s, alice, "", "file2.txt", "file2.txt", 1)
	mkFolder(t, s, alice, "", "zeta")
	mkFolder(t, s, alice, "", "Alpha")

	children, err := s.ListChildren(ctx, alice, "", false)
	require.NoError(t, err)
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name
	}
	// Folders first, then files, natural name order within each group.
	assert.Equal(t, []string{"Alpha", "zeta", "file2.txt", "file10.txt"}, names)
}

func TestListChildrenExcludesTrash(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	keep := mkFile(t, s, alice, "", "keep.txt", "keep.txt", 1)
	gone := mkFile(t, s, alice, "", "gone.txt", "gone.txt", 1)
	trashItems(t, s, time.Now(), gone.ID)

	children, err := s.ListChildren(ctx, alice, "", false)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, keep.ID, children[0].ID)

	all, err := s.ListChildren(ctx, alice, "", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestIsDescendant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	a := mkFolder(t, s, alice, "", "a")
	b := mkFolder(t, s, alice, a.ID, "b")
	c := mkFolder(t, s, alice, b.ID, "c")
	other := mkFolder(t, s, alice, "", "other")

	got, err := s.IsDescendant(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, got, "c is below a")

	got, err = s.IsDescendant(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, got, "a is above c")

	got, err = s.IsDescendant(ctx, a.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, got, "an item is not its own descendant")

	got, err = s.IsDescendant(ctx, a.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIsDescendantDeepChain(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	// A chain well past the traversal depth bound: the ancestor check
	// walks parent links to the root and must hold at any depth.
	root := mkFolder(t, s, alice, "", "d0")
	leaf := root
	for i := 1; i <= 70; i++ {
		leaf = mkFolder(t, s, alice, leaf.ID, fmt.Sprintf("d%d", i))
	}

	got, err := s.IsDescendant(ctx, root.ID, leaf.ID)
	require.NoError(t, err)
	assert.True(t, got, "leaf at depth 70 is still below the root")

	got, err = s.IsDescendant(ctx, leaf.ID, root.ID)
	require.NoError(t, err)
	assert.False(t, got)

	p, err := s.FolderPath(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, strings.Count(p, "/"), "full ancestor chain, not truncated")
}

func TestFolderPath(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	docs := mkFolder(t, s, alice, "", "docs")
	year := mkFolder(t, s, alice, docs.ID, "2025")

	p, err := s.FolderPath(ctx, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, "docs", p)

	nested := mkFolder(t, s, alice, year.ID, "q3")
	p, err = s.FolderPath(ctx, nested.ID)
	require.NoError(t, err)
	assert.Equal(t, "docs/2025/q3", p)

	_, err = s.FolderPath(ctx, uuid.NewString())
	assert.True(t, fault.NotFound(err))
}

func TestDescendantsStream(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	root := mkFolder(t, s, alice, "", "root")
	sub := mkFolder(t, s, alice, root.ID, "sub")
	mkFile(t, s, alice, root.ID, "b.txt", "root/b.txt", 10)
	mkFile(t, s, alice, root.ID, "a.txt", "root/a.txt", 10)
	mkFile(t, s, alice, sub.ID, "deep.txt", "root/sub/deep.txt", 10)

	stream, err := s.Descendants(ctx, root.ID, TraverseFilter{})
	require.NoError(t, err)
	defer stream.Close()

	var names []string
	var depths []int
	for stream.Next() {
		names = append(names, stream.Node().Name)
		depths = append(depths, stream.Node().Depth)
	}
	require.NoError(t, stream.Err())

	// Depth first; within a level folders precede files, names ordered.
	assert.Equal(t, []string{"sub", "a.txt", "b.txt", "deep.txt"}, names)
	assert.Equal(t, []int{1, 1, 1, 2}, depths)
}

func TestDescendantsFilterPrunesTrashedSubtrees(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	root := mkFolder(t, s, alice, "", "root")
	liveChild := mkFile(t, s, alice, root.ID, "live.txt", "root/live.txt", 1)
	trashedSub := mkFolder(t, s, alice, root.ID, "old")
	buried := mkFile(t, s, alice, trashedSub.ID, "buried.txt", "root/old/buried.txt", 1)
	trashItems(t, s, time.Now(), trashedSub.ID, buried.ID)

	stream, err := s.Descendants(ctx, root.ID, TraverseFilter{})
	require.NoError(t, err)
	defer stream.Close()

	var ids []string
	for stream.Next() {
		ids = append(ids, stream.Node().ID)
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, []string{liveChild.ID}, ids, "trashed subtree must be pruned, not just hidden")
}

func TestDescendantsFilterByDeletionStamp(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	root := mkFolder(t, s, alice, "", "root")
	earlier := mkFile(t, s, alice, root.ID, "earlier.txt", "root/earlier.txt", 1)
	later := mkFile(t, s, alice, root.ID, "later.txt", "root/later.txt", 1)

	firstTrash := time.Now().Add(-time.Hour)
	secondTrash := time.Now()
	trashItems(t, s, firstTrash, earlier.ID)
	trashItems(t, s, secondTrash, later.ID)

	stream, err := s.Descendants(ctx, root.ID, TraverseFilter{DeletedAtUnix: secondTrash.Unix()})
	require.NoError(t, err)
	defer stream.Close()

	var ids []string
	for stream.Next() {
		ids = append(ids, stream.Node().ID)
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, []string{later.ID}, ids, "only rows sharing the stamp match")
}

func TestSubtreeStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	root := mkFolder(t, s, alice, "", "root")
	sub := mkFolder(t, s, alice, root.ID, "sub")
	mkFile(t, s, alice, root.ID, "a.txt", "root/a.txt", 100)
	trashed := mkFile(t, s, alice, sub.ID, "b.txt", "root/sub/b.txt", 50)
	trashItems(t, s, time.Now(), trashed.ID)

	files, bytes, err := s.SubtreeStats(ctx, root.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(100), bytes)

	files, bytes, err = s.SubtreeStats(ctx, root.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, int64(150), bytes)
}

func TestApplyUpdatesChunked(t *testing.T) {
	// Batch size 2 forces three transaction chunks for five rows.
	s := testStore(t, WithBatchSize(2))
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	folder := mkFolder(t, s, alice, "", "bulk")
	var ids []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		f := mkFile(t, s, alice, folder.ID, name+".txt", "bulk/"+name+".txt", 1)
		ids = append(ids, f.ID)
	}

	deleted := true
	ts := time.Now().Unix()
	updates := make([]ItemUpdate, len(ids))
	for i, id := range ids {
		updates[i] = ItemUpdate{ID: id, Deleted: &deleted, DeletedAtUnix: &ts}
	}
	require.NoError(t, s.ApplyUpdates(ctx, updates))

	for _, id := range ids {
		got, err := s.GetItem(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Deleted)
		assert.Equal(t, ts, got.DeletedAt.Unix())
	}
}

func TestApplyUpdatesRenameConflict(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	mkFile(t, s, alice, "", "taken.txt", "taken.txt", 1)
	victim := mkFile(t, s, alice, "", "free.txt", "free.txt", 1)

	name := "taken.txt"
	err := s.ApplyUpdates(ctx, []ItemUpdate{{ID: victim.ID, Name: &name}})
	assert.True(t, fault.Conflict(err), "expected conflict, got %v", err)

	got, err := s.GetItem(ctx, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "free.txt", got.Name, "failed update must not stick")
}

func TestApplyUpdatesMoveToRoot(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	folder := mkFolder(t, s, alice, "", "docs")
	f := mkFile(t, s, alice, folder.ID, "a.txt", "docs/a.txt", 1)

	parent := ""
	rel := "a.txt"
	require.NoError(t, s.ApplyUpdates(ctx, []ItemUpdate{{ID: f.ID, ParentID: &parent, RelPath: &rel}}))

	got, err := s.GetItem(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.ParentID)
	assert.Equal(t, "a.txt", got.RelPath)

	children, err := s.ListChildren(ctx, alice, "", false)
	require.NoError(t, err)
	names := []string{}
	for _, c := range children {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "a.txt")
}

func TestDeleteItems(t *testing.T) {
	s := testStore(t, WithBatchSize(2))
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		f := mkFile(t, s, alice, "", name+".txt", name+".txt", 1)
		ids = append(ids, f.ID)
	}
	require.NoError(t, s.DeleteItems(ctx, ids))
	for _, id := range ids {
		_, err := s.GetItem(ctx, id)
		assert.True(t, fault.NotFound(err))
	}
}

func TestListTrashShowsOnlyRoots(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	folder := mkFolder(t, s, alice, "", "project")
	child := mkFile(t, s, alice, folder.ID, "a.txt", "project/a.txt", 1)
	loose := mkFile(t, s, alice, "", "loose.txt", "loose.txt", 1)

	now := time.Now()
	trashItems(t, s, now.Add(-time.Minute), loose.ID)
	trashItems(t, s, now, folder.ID, child.ID)

	trash, err := s.ListTrash(ctx, alice)
	require.NoError(t, err)
	require.Len(t, trash, 2, "the buried child must not be listed")
	// Most recently trashed first.
	assert.Equal(t, folder.ID, trash[0].ID)
	assert.Equal(t, loose.ID, trash[1].ID)
}

func TestListExpiredTrash(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	old := mkFile(t, s, alice, "", "old.txt", "old.txt", 1)
	fresh := mkFile(t, s, alice, "", "fresh.txt", "fresh.txt", 1)
	trashItems(t, s, time.Now().AddDate(0, 0, -40), old.ID)
	trashItems(t, s, time.Now(), fresh.ID)

	cutoff := time.Now().AddDate(0, 0, -30)
	expired, err := s.ListExpiredTrash(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)
}
