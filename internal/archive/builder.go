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

// Package archive builds zip downloads of folders and multi-item
// selections by streaming file content straight from physical storage
// into the output writer, never buffering an entry in memory or staging
// the archive on disk.
package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/physical"
	"cabinet/internal/store"
)

// Limits caps an archive before any byte is written. Zero means
// unlimited for that dimension.
type Limits struct {
	MaxTotalBytes int64
	MaxFileCount  int64
}

// Result summarizes a finished build.
type Result struct {
	Added   int   // entries written
	Skipped int   // files whose physical content was missing
	Bytes   int64 // uncompressed bytes streamed
}

// Builder assembles zip archives from the hierarchy.
type Builder struct {
	store  *store.Store
	mapper *physical.Mapper
	limits Limits
}

// NewBuilder returns a builder over the given store and mapper.
func NewBuilder(s *store.Store, m *physical.Mapper, limits Limits) *Builder {
	return &Builder{store: s, mapper: m, limits: limits}
}

// BuildFolder streams a zip of the live subtree under folderID into w.
// Entry paths sit at the archive's top level, not wrapped in the folder's
// own name; the archive filename identifies the folder. The subtree is
// measured against the limits before the first entry is written.
func (b *Builder) BuildFolder(ctx context.Context, w io.Writer, folderID string) (*Result, error) {
	folder, err := b.store.GetItem(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !folder.IsFolder() {
		return nil, fault.New(fault.KindInvalidOperation, "%q is not a folder", folder.Name)
	}
	if folder.Deleted {
		return nil, fault.New(fault.KindNotFound, "folder %q is in the trash", folder.Name)
	}
	if err := b.admit(ctx, []string{folderID}, 0, 0); err != nil {
		return nil, err
	}

	zw := zip.NewWriter(w)
	res := &Result{}
	if err := b.writeSubtree(ctx, zw, folder.Owner(), folder, "", res); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fault.Wrap(fault.KindIO, err, "finalize archive")
	}
	return res, nil
}

// BuildSelection streams a zip of several live items into w. Each item
// roots its own entry path; name collisions between selected items get a
// numeric suffix. All items must belong to owner's space.
func (b *Builder) BuildSelection(ctx context.Context, w io.Writer, owner common.Owner, itemIDs []string) (*Result, error) {
	if len(itemIDs) == 0 {
		return nil, fault.New(fault.KindInvalidOperation, "nothing selected to archive")
	}

	items := make([]*store.Item, 0, len(itemIDs))
	var fileBytes, fileCount int64
	var folderIDs []string
	for _, id := range itemIDs {
		it, err := b.store.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if it.Deleted {
			return nil, fault.New(fault.KindNotFound, "%q is in the trash", it.Name)
		}
		if it.Owner() != owner {
			return nil, fault.New(fault.KindInvalidOperation, "%q belongs to a different space", it.Name)
		}
		if it.IsFolder() {
			folderIDs = append(folderIDs, it.ID)
		} else {
			fileBytes += it.SizeBytes
			fileCount++
		}
		items = append(items, it)
	}
	if err := b.admit(ctx, folderIDs, fileBytes, fileCount); err != nil {
		return nil, err
	}

	zw := zip.NewWriter(w)
	res := &Result{}
	seen := map[string]int{}
	for _, it := range items {
		root := it.Name
		if n := seen[it.Name]; n > 0 {
			root = dedupeName(it.Name, n, it.IsFolder())
		}
		seen[it.Name]++
		var werr error
		if it.IsFolder() {
			werr = b.writeSubtree(ctx, zw, owner, it, root, res)
		} else {
			werr = b.writeFile(zw, owner, it, root, res)
		}
		if werr != nil {
			zw.Close()
			return nil, werr
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fault.Wrap(fault.KindIO, err, "finalize archive")
	}
	return res, nil
}

// admit totals the selected subtrees plus any directly selected files
// and refuses the build when a limit would be exceeded.
func (b *Builder) admit(ctx context.Context, folderIDs []string, extraBytes, extraCount int64) error {
	totalBytes, totalCount := extraBytes, extraCount
	for _, id := range folderIDs {
		files, bytes, err := b.store.SubtreeStats(ctx, id, true)
		if err != nil {
			return err
		}
		totalBytes += bytes
		totalCount += int64(files)
	}
	if b.limits.MaxTotalBytes > 0 && totalBytes > b.limits.MaxTotalBytes {
		return fault.New(fault.KindInvalidOperation,
			"selection is too large to archive (%d bytes, limit %d)", totalBytes, b.limits.MaxTotalBytes)
	}
	if b.limits.MaxFileCount > 0 && totalCount > b.limits.MaxFileCount {
		return fault.New(fault.KindInvalidOperation,
			"selection has too many files to archive (%d, limit %d)", totalCount, b.limits.MaxFileCount)
	}
	return nil
}

// writeSubtree emits every live descendant of folder under the given
// entry prefix; an empty root puts the subtree at the archive's top
// level. The stream arrives parents-before-children, so entry paths
// build from a per-folder prefix map.
func (b *Builder) writeSubtree(ctx context.Context, zw *zip.Writer, owner common.Owner, folder *store.Item, root string, res *Result) error {
	if root != "" {
		if err := b.writeDir(zw, root, folder.UpdatedAt); err != nil {
			return err
		}
	}
	prefixes := map[string]string{folder.ID: root}

	sub, err := b.store.Descendants(ctx, folder.ID, store.TraverseFilter{})
	if err != nil {
		return err
	}
	defer sub.Close()
	for sub.Next() {
		node := sub.Node()
		entry := node.Name
		if prefix := prefixes[node.ParentID]; prefix != "" {
			entry = prefix + "/" + node.Name
		}
		if node.IsFolder() {
			prefixes[node.ID] = entry
			if err := b.writeDir(zw, entry, node.UpdatedAt); err != nil {
				return err
			}
			continue
		}
		if err := b.writeFile(zw, owner, &node.Item, entry, res); err != nil {
			return err
		}
	}
	return sub.Err()
}

func (b *Builder) writeDir(zw *zip.Writer, entry string, modified time.Time) error {
	_, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry + "/",
		Modified: modified,
	})
	if err != nil {
		return fault.Wrap(fault.KindIO, err, "write archive entry %s", entry)
	}
	return nil
}

// writeFile streams one file's bytes into the archive. A file whose
// physical content has gone missing is skipped and counted, never fatal.
func (b *Builder) writeFile(zw *zip.Writer, owner common.Owner, it *store.Item, entry string, res *Result) error {
	f, err := b.mapper.Open(owner, it.RelPath)
	if err != nil {
		if fault.NotFound(err) {
			log.WithFields(log.Fields{
				"item": it.ID,
				"path": it.RelPath,
			}).Warn("skipping archive entry with missing physical content")
			res.Skipped++
			return nil
		}
		return err
	}
	defer f.Close()

	ew, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry,
		Method:   zip.Deflate,
		Modified: it.UpdatedAt,
	})
	if err != nil {
		return fault.Wrap(fault.KindIO, err, "write archive entry %s", entry)
	}
	n, err := io.Copy(ew, f)
	if err != nil {
		return fault.Wrap(fault.KindIO, err, "stream %s into archive", entry)
	}
	res.Added++
	res.Bytes += n
	return nil
}

func dedupeName(name string, n int, folder bool) string {
	if folder {
		return fmt.Sprintf("%s (%d)", name, n)
	}
	ext := common.Extension(name)
	if ext == "" {
		return fmt.Sprintf("%s (%d)", name, n)
	}
	base := name[:len(name)-len(ext)-1]
	return fmt.Sprintf("%s (%d).%s", base, n, ext)
}
