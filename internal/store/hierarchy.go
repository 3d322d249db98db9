// Copyright 2025 Cabinet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/util"
)

// isUniqueViolation reports whether err is a sibling-name uniqueness
// violation from the partial unique index.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetItem returns the item with the given id, deleted or live.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	return util.RetryWithResult(ctx, func() (*Item, error) {
		var m ItemModel
		err := s.bun.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
		if err == sql.ErrNoRows {
			return nil, fault.New(fault.KindNotFound, "item %s not found", id)
		}
		if err != nil {
			return nil, err
		}
		return m.ToItem(), nil
	})
}

// LiveSiblingExists reports whether a live item of the given kind and name
// already exists under parentID (or at the owner's root when parentID is "").
func (s *Store) LiveSiblingExists(ctx context.Context, owner common.Owner, parentID, name, kind string) (bool, error) {
	q := s.bun.NewSelect().Model((*ItemModel)(nil)).
		Where("name = ?", name).
		Where("kind = ?", kind).
		Where("deleted = 0")
	q = scopeParent(q, owner, parentID)
	return q.Exists(ctx)
}

func scopeParent(q *bun.SelectQuery, owner common.Owner, parentID string) *bun.SelectQuery {
	if parentID == "" {
		return q.Where("parent_id IS NULL").
			Where("IFNULL(teamspace_id, owner_id) = ?", owner.SpaceID())
	}
	return q.Where("parent_id = ?", parentID)
}

// ListChildren returns the direct children of parentID (or of the owner's
// root when parentID is ""), folders before files, names in
// case-insensitive natural order.
func (s *Store) ListChildren(ctx context.Context, owner common.Owner, parentID string, includeDeleted bool) ([]*Item, error) {
	var models []ItemModel
	q := s.bun.NewSelect().Model(&models)
	q = scopeParent(q, owner, parentID)
	if !includeDeleted {
		q = q.Where("deleted = 0")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	items := make([]*Item, len(models))
	for i := range models {
		items[i] = models[i].ToItem()
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind == KindFolder
		}
		return util.NaturalCompare(items[i].Name, items[j].Name) < 0
	})
	return items, nil
}

// Insert creates a new item row. A live-sibling name collision surfaces
// as a conflict fault.
func (s *Store) Insert(ctx context.Context, it *Item) error {
	err := util.Retry(ctx, func() error {
		_, err := s.bun.NewInsert().Model(ModelFromItem(it)).Exec(ctx)
		return err
	})
	if isUniqueViolation(err) {
		return fault.Wrap(fault.KindConflict, err, "a %s named %q already exists", it.Kind, it.Name)
	}
	return err
}

// IsDescendant reports whether candidateID lies in the subtree rooted at
// ancestorID. Walks parent references upward from the candidate, so the
// answer is independent of name casing or separator conventions. The walk
// follows the chain all the way to the root and holds at any depth; UNION
// deduplicates ids so it terminates even on a malformed tree.
func (s *Store) IsDescendant(ctx context.Context, ancestorID, candidateID string) (bool, error) {
	if ancestorID == "" || candidateID == "" || ancestorID == candidateID {
		return false, nil
	}
	var found int
	err := s.db.QueryRowContext(ctx, `
		WITH RECURSIVE chain(id) AS (
			SELECT parent_id FROM items WHERE id = ? AND parent_id IS NOT NULL
			UNION
			SELECT i.parent_id
			FROM items i JOIN chain c ON i.id = c.id
			WHERE i.parent_id IS NOT NULL
		)
		SELECT EXISTS(SELECT 1 FROM chain WHERE id = ?)
	`, candidateID, ancestorID).Scan(&found)
	if err != nil {
		return false, err
	}
	return found == 1, nil
}

// FolderPath reconstructs a folder's storage-relative path from its chain
// of ancestor names. Folders are addressed by position; this is the only
// way a folder maps onto the physical tree. The upward walk runs to the
// root, so the path is exact at any depth.
func (s *Store) FolderPath(ctx context.Context, folderID string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE up(id, parent_id, name, depth) AS (
			SELECT id, parent_id, name, 0 FROM items WHERE id = ?
			UNION ALL
			SELECT i.id, i.parent_id, i.name, up.depth + 1
			FROM items i JOIN up ON i.id = up.parent_id
		)
		SELECT name FROM up ORDER BY depth DESC
	`, folderID)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var parts []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		parts = append(parts, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", fault.New(fault.KindNotFound, "folder %s not found", folderID)
	}
	return common.JoinPath(parts...), nil
}

// TraverseFilter selects which rows a descendant traversal yields. The
// filter also prunes recursion: a non-matching folder's subtree is not
// entered.
type TraverseFilter struct {
	// IncludeDeleted yields soft-deleted rows too.
	IncludeDeleted bool
	// DeletedAtUnix, when non-zero, yields only rows soft-deleted at
	// exactly this timestamp (the shared timestamp of one trash action).
	DeletedAtUnix int64
}

func (f TraverseFilter) condition() (string, bool) {
	switch {
	case f.DeletedAtUnix != 0:
		return "deleted = 1 AND deleted_at = ?", true
	case f.IncludeDeleted:
		return "1 = 1", false
	default:
		return "deleted = 0", false
	}
}

// Node is one row of a descendant traversal.
type Node struct {
	Item
	Depth int
}

// Subtree is a lazy, consumed-once stream over the descendants of a
// folder, yielded top-down: depth first, folders before files within a
// level, then case-insensitive name order. Close it when done.
type Subtree struct {
	rows *sql.Rows
	node *Node
	err  error
}

// Descendants streams every descendant of folderID matching the filter,
// without materializing the subtree. Traversal depth is bounded by the
// store's configured maximum.
func (s *Store) Descendants(ctx context.Context, folderID string, filter TraverseFilter) (*Subtree, error) {
	cond, hasArg := filter.condition()
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT i.id, i.owner_id, i.teamspace_id, i.parent_id, i.name, i.kind,
			       i.rel_path, i.size_bytes, i.mime_type, i.deleted, i.deleted_at,
			       i.created_at, i.updated_at, 1 AS depth
			FROM items i
			WHERE i.parent_id = ? AND (%s)
			UNION ALL
			SELECT i.id, i.owner_id, i.teamspace_id, i.parent_id, i.name, i.kind,
			       i.rel_path, i.size_bytes, i.mime_type, i.deleted, i.deleted_at,
			       i.created_at, i.updated_at, s.depth + 1
			FROM items i JOIN subtree s ON i.parent_id = s.id
			WHERE s.depth < ? AND (%s)
		)
		SELECT * FROM subtree
		ORDER BY depth, CASE kind WHEN 'folder' THEN 0 ELSE 1 END, LOWER(name)
	`, cond, cond)

	args := []any{folderID}
	if hasArg {
		args = append(args, filter.DeletedAtUnix)
	}
	args = append(args, s.maxDepth)
	if hasArg {
		args = append(args, filter.DeletedAtUnix)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &Subtree{rows: rows}, nil
}

// Next advances the stream. It returns false at the end or on error;
// check Err afterwards.
func (t *Subtree) Next() bool {
	if t.err != nil || !t.rows.Next() {
		return false
	}
	var (
		m           ItemModel
		teamspaceID sql.NullString
		parentID    sql.NullString
		relPath     sql.NullString
		mimeType    sql.NullString
		deletedAt   sql.NullInt64
		depth       int
	)
	t.err = t.rows.Scan(&m.ID, &m.OwnerID, &teamspaceID, &parentID, &m.Name, &m.Kind,
		&relPath, &m.SizeBytes, &mimeType, &m.Deleted, &deletedAt,
		&m.CreatedAt, &m.UpdatedAt, &depth)
	if t.err != nil {
		return false
	}
	m.TeamspaceID = teamspaceID.String
	m.ParentID = parentID.String
	m.RelPath = relPath.String
	m.MimeType = mimeType.String
	m.DeletedAt = deletedAt.Int64
	t.node = &Node{Item: *m.ToItem(), Depth: depth}
	return true
}

// Node returns the current row after a successful Next.
func (t *Subtree) Node() *Node { return t.node }

// Err returns the first error hit during iteration.
func (t *Subtree) Err() error {
	if t.err != nil {
		return t.err
	}
	return t.rows.Err()
}

// Close releases the underlying cursor.
func (t *Subtree) Close() error { return t.rows.Close() }

// SubtreeStats returns the file count and total file bytes of the subtree
// rooted at folderID (the folder itself carries no bytes). liveOnly
// restricts the aggregate to non-deleted rows.
func (s *Store) SubtreeStats(ctx context.Context, folderID string, liveOnly bool) (files int, bytes int64, err error) {
	cond := "1 = 1"
	if liveOnly {
		cond = "deleted = 0"
	}
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id, kind, size_bytes, deleted, 1 AS depth
			FROM items WHERE parent_id = ? AND (%s)
			UNION ALL
			SELECT i.id, i.kind, i.size_bytes, i.deleted, s.depth + 1
			FROM items i JOIN subtree s ON i.parent_id = s.id
			WHERE s.depth < ? AND (%s)
		)
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM subtree WHERE kind = 'file'
	`, cond, cond)
	err = s.db.QueryRowContext(ctx, query, folderID, s.maxDepth).Scan(&files, &bytes)
	return files, bytes, err
}

// ItemUpdate is one row mutation in a batched apply. Nil fields are left
// untouched; for nullable columns the empty value clears to NULL
// (ParentID "" moves to root, DeletedAtUnix 0 clears the trash stamp).
type ItemUpdate struct {
	ID            string
	Name          *string
	ParentID      *string
	RelPath       *string
	SizeBytes     *int64
	Deleted       *bool
	DeletedAtUnix *int64
}

// ApplyUpdates commits a sequence of item mutations, chunked at the
// configured batch size: each chunk is one all-or-nothing transaction.
// A mid-chunk error rolls that chunk back; earlier chunks stay committed,
// so callers must treat the whole logical operation as failed and must
// not have taken irreversible physical actions for uncommitted chunks.
func (s *Store) ApplyUpdates(ctx context.Context, updates []ItemUpdate) error {
	now := time.Now().Unix()
	for start := 0; start < len(updates); start += s.batchSize {
		end := start + s.batchSize
		if end > len(updates) {
			end = len(updates)
		}
		chunk := updates[start:end]
		err := util.Retry(ctx, func() error {
			return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				for i := range chunk {
					if err := applyUpdate(ctx, tx, &chunk[i], now); err != nil {
						return err
					}
				}
				return nil
			})
		})
		if isUniqueViolation(err) {
			return fault.Wrap(fault.KindConflict, err, "name collision during batched update")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyUpdate(ctx context.Context, tx bun.Tx, u *ItemUpdate, now int64) error {
	q := tx.NewUpdate().Model((*ItemModel)(nil)).Where("id = ?", u.ID)
	if u.Name != nil {
		q = q.Set("name = ?", *u.Name)
	}
	if u.ParentID != nil {
		q = q.Set("parent_id = ?", nullable(*u.ParentID))
	}
	if u.RelPath != nil {
		q = q.Set("rel_path = ?", nullable(*u.RelPath))
	}
	if u.SizeBytes != nil {
		q = q.Set("size_bytes = ?", *u.SizeBytes)
	}
	if u.Deleted != nil {
		q = q.Set("deleted = ?", *u.Deleted)
	}
	if u.DeletedAtUnix != nil {
		if *u.DeletedAtUnix == 0 {
			q = q.Set("deleted_at = NULL")
		} else {
			q = q.Set("deleted_at = ?", *u.DeletedAtUnix)
		}
	}
	q = q.Set("updated_at = ?", now)
	_, err := q.Exec(ctx)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DeleteItems removes rows permanently, chunked at the batch size with one
// statement per chunk.
func (s *Store) DeleteItems(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		err := util.Retry(ctx, func() error {
			_, err := s.bun.NewDelete().
				Model((*ItemModel)(nil)).
				Where("id IN (?)", bun.In(chunk)).
				Exec(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListTrash returns the owner's soft-deleted items whose parent is live or
// absent: the top-level entries a trash view shows (descendants of a
// trashed folder are reachable through it, not listed separately).
func (s *Store) ListTrash(ctx context.Context, owner common.Owner) ([]*Item, error) {
	var models []ItemModel
	err := s.bun.NewSelect().Model(&models).
		Where("IFNULL(teamspace_id, owner_id) = ?", owner.SpaceID()).
		Where("deleted = 1").
		Where("(parent_id IS NULL OR EXISTS (SELECT 1 FROM items p WHERE p.id = items.parent_id AND p.deleted = 0))").
		Order("deleted_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*Item, len(models))
	for i := range models {
		items[i] = models[i].ToItem()
	}
	return items, nil
}

// ListExpiredTrash returns up to limit soft-deleted trash roots older
// than cutoff, oldest first. Descendants of a trashed folder are removed
// with their root, so only roots are listed; the reaper purges these in
// batches.
func (s *Store) ListExpiredTrash(ctx context.Context, cutoff time.Time, limit int) ([]*Item, error) {
	var models []ItemModel
	err := s.bun.NewSelect().Model(&models).
		Where("deleted = 1").
		Where("deleted_at <= ?", cutoff.Unix()).
		Where("(parent_id IS NULL OR EXISTS (SELECT 1 FROM items p WHERE p.id = items.parent_id AND p.deleted = 0))").
		Order("deleted_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*Item, len(models))
	for i := range models {
		items[i] = models[i].ToItem()
	}
	return items, nil
}
