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

package lifecycle

import (
	"context"

	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// Rename renames a live item. For a file the physical rename happens
// first and the single row update follows; for a folder every descendant
// file's stored path is recomputed under the new ancestor name and the
// folder row plus all descendants commit as one batched update.
func (e *Engine) Rename(ctx context.Context, itemID, newName string) (*store.Item, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, fault.New(fault.KindInvalidOperation, "cannot rename %q while it is in the trash", item.Name)
	}
	if err := e.rules.ValidateName(newName); err != nil {
		return nil, err
	}
	if newName == item.Name {
		return item, nil
	}
	owner := item.Owner()

	if item.IsFile() {
		return e.renameFile(ctx, owner, item, newName)
	}
	return e.renameFolder(ctx, owner, item, newName)
}

func (e *Engine) renameFile(ctx context.Context, owner common.Owner, item *store.Item, newName string) (*store.Item, error) {
	finalName, newRel, err := e.mapper.ResolveRenameTarget(item.RelPath, newName)
	if err != nil {
		return nil, err
	}
	exists, err := e.store.LiveSiblingExists(ctx, owner, item.ParentID, finalName, store.KindFile)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindConflict, "a file named %q already exists here", finalName)
	}

	oldRel := item.RelPath
	if _, _, err := e.mapper.RenameFile(owner, oldRel, newName); err != nil {
		return nil, err
	}

	update := store.ItemUpdate{ID: item.ID, Name: &finalName, RelPath: &newRel}
	if err := e.store.ApplyUpdates(ctx, []store.ItemUpdate{update}); err != nil {
		e.undoPhysicalMove(owner, newRel, oldRel, "file rename")
		return nil, fault.Wrap(fault.KindInternal, err, "failed to record rename of %q", item.Name)
	}

	item.Name = finalName
	item.RelPath = newRel
	return item, nil
}

func (e *Engine) renameFolder(ctx context.Context, owner common.Owner, item *store.Item, newName string) (*store.Item, error) {
	exists, err := e.store.LiveSiblingExists(ctx, owner, item.ParentID, newName, store.KindFolder)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindConflict, "a folder named %q already exists here", newName)
	}

	oldPath, err := e.store.FolderPath(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	newPath, err := e.mapper.RenameDir(owner, oldPath, newName)
	if err != nil {
		return nil, err
	}

	updates, err := e.rebaseSubtreePaths(ctx, item.ID, oldPath, newPath)
	if err != nil {
		e.undoPhysicalMove(owner, newPath, oldPath, "folder rename")
		return nil, fault.Wrap(fault.KindInternal, err, "failed to walk descendants of %q", item.Name)
	}
	updates = append([]store.ItemUpdate{{ID: item.ID, Name: &newName}}, updates...)

	if err := e.store.ApplyUpdates(ctx, updates); err != nil {
		e.undoPhysicalMove(owner, newPath, oldPath, "folder rename")
		return nil, fault.Wrap(fault.KindInternal, err, "failed to record rename of %q", item.Name)
	}

	item.Name = newName
	return item, nil
}

// rebaseSubtreePaths streams every descendant (trashed ones included:
// the physical move carried their bytes along) and emits stored-path
// rewrites for the files.
func (e *Engine) rebaseSubtreePaths(ctx context.Context, folderID, oldPath, newPath string) ([]store.ItemUpdate, error) {
	sub, err := e.store.Descendants(ctx, folderID, store.TraverseFilter{IncludeDeleted: true})
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	var updates []store.ItemUpdate
	for sub.Next() {
		node := sub.Node()
		if !node.IsFile() {
			continue
		}
		rebased := common.RebasePath(node.RelPath, oldPath, newPath)
		if rebased == node.RelPath {
			continue
		}
		rel := rebased
		updates = append(updates, store.ItemUpdate{ID: node.ID, RelPath: &rel})
	}
	if err := sub.Err(); err != nil {
		return nil, err
	}
	return updates, nil
}

// undoPhysicalMove reverses a succeeded physical rename/move after its
// metadata commit failed, so the two trees do not silently diverge. The
// reversal itself is best-effort; a failure leaves a logged divergence
// for manual cleanup.
func (e *Engine) undoPhysicalMove(owner common.Owner, fromRel, toRel, op string) {
	if err := e.mapper.Move(owner, fromRel, toRel); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"op":   op,
			"from": fromRel,
			"to":   toRel,
		}).Error("failed to reverse physical change after metadata failure; trees diverge")
	}
}
