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

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// Move relocates a live item under destFolderID ("" moves to the owner's
// root). A folder can never move into itself or any of its descendants;
// the check walks parent references, so case or separator differences in
// names cannot fool it.
func (e *Engine) Move(ctx context.Context, itemID, destFolderID string) (*store.Item, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, fault.New(fault.KindInvalidOperation, "cannot move %q while it is in the trash", item.Name)
	}
	if destFolderID == item.ParentID {
		return item, nil
	}
	owner := item.Owner()

	if _, err := e.requireLiveFolder(ctx, owner, destFolderID); err != nil {
		return nil, err
	}
	if item.IsFolder() {
		if destFolderID == item.ID {
			return nil, fault.New(fault.KindInvalidOperation, "cannot move a folder into itself")
		}
		inside, err := e.store.IsDescendant(ctx, item.ID, destFolderID)
		if err != nil {
			return nil, err
		}
		if inside {
			return nil, fault.New(fault.KindInvalidOperation, "cannot move a folder into its own descendant")
		}
	}
	exists, err := e.store.LiveSiblingExists(ctx, owner, destFolderID, item.Name, item.Kind)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindConflict, "a %s named %q already exists at the destination", item.Kind, item.Name)
	}

	oldPath, err := e.itemStoragePath(ctx, item)
	if err != nil {
		return nil, err
	}
	destPath, err := e.containerPath(ctx, destFolderID)
	if err != nil {
		return nil, err
	}
	newPath := common.JoinPath(destPath, item.Name)

	if err := e.mapper.Move(owner, oldPath, newPath); err != nil {
		return nil, err
	}

	parent := destFolderID
	updates := []store.ItemUpdate{{ID: item.ID, ParentID: &parent}}
	if item.IsFile() {
		rel := newPath
		updates[0].RelPath = &rel
	} else {
		rebased, err := e.rebaseSubtreePaths(ctx, item.ID, oldPath, newPath)
		if err != nil {
			e.undoPhysicalMove(owner, newPath, oldPath, "folder move")
			return nil, fault.Wrap(fault.KindInternal, err, "failed to walk descendants of %q", item.Name)
		}
		updates = append(updates, rebased...)
	}

	if err := e.store.ApplyUpdates(ctx, updates); err != nil {
		e.undoPhysicalMove(owner, newPath, oldPath, "move")
		return nil, fault.Wrap(fault.KindInternal, err, "failed to record move of %q", item.Name)
	}

	item.ParentID = destFolderID
	if item.IsFile() {
		item.RelPath = newPath
	}
	return item, nil
}
