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
	"time"

	log "github.com/sirupsen/logrus"

	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// SoftDelete marks an item and, for a folder, every live descendant as
// deleted with one shared timestamp. Physical bytes stay on disk; the
// owner's counter drops by the subtree's live file bytes.
func (e *Engine) SoftDelete(ctx context.Context, itemID string) error {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Deleted {
		return fault.New(fault.KindInvalidOperation, "%q is already in the trash", item.Name)
	}
	owner := item.Owner()

	deleted := true
	ts := time.Now().Unix()
	updates := []store.ItemUpdate{{ID: item.ID, Deleted: &deleted, DeletedAtUnix: &ts}}
	var bytes int64
	if item.IsFile() {
		bytes = item.SizeBytes
	} else {
		sub, err := e.store.Descendants(ctx, item.ID, store.TraverseFilter{})
		if err != nil {
			return err
		}
		defer sub.Close()
		for sub.Next() {
			node := sub.Node()
			updates = append(updates, store.ItemUpdate{ID: node.ID, Deleted: &deleted, DeletedAtUnix: &ts})
			if node.IsFile() {
				bytes += node.SizeBytes
			}
		}
		if err := sub.Err(); err != nil {
			return err
		}
	}

	if err := e.store.ApplyUpdates(ctx, updates); err != nil {
		return fault.Wrap(fault.KindInternal, err, "failed to trash %q", item.Name)
	}
	e.applyQuota(ctx, owner, -bytes)
	log.WithFields(log.Fields{
		"item":  item.ID,
		"rows":  len(updates),
		"bytes": bytes,
	}).Info("soft-deleted item")
	return nil
}

// Restore brings a trashed item (and the descendants trashed with it in
// the same action) back to life. Refused when the old parent is gone or
// trashed, or when a live sibling has since taken the name. Bytes are
// re-admitted against the quota before the rows flip back.
func (e *Engine) Restore(ctx context.Context, itemID string) error {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !item.Deleted {
		return fault.New(fault.KindInvalidOperation, "%q is not in the trash", item.Name)
	}
	owner := item.Owner()

	if item.ParentID != "" {
		parent, err := e.store.GetItem(ctx, item.ParentID)
		if err != nil {
			return fault.New(fault.KindInvalidOperation, "cannot restore %q: its folder no longer exists", item.Name)
		}
		if parent.Deleted {
			return fault.New(fault.KindInvalidOperation, "cannot restore %q: its folder is in the trash", item.Name)
		}
	}
	exists, err := e.store.LiveSiblingExists(ctx, owner, item.ParentID, item.Name, item.Kind)
	if err != nil {
		return err
	}
	if exists {
		return fault.New(fault.KindConflict, "a %s named %q now occupies this spot", item.Kind, item.Name)
	}

	live := false
	var clearTS int64
	updates := []store.ItemUpdate{{ID: item.ID, Deleted: &live, DeletedAtUnix: &clearTS}}
	var bytes int64
	if item.IsFile() {
		bytes = item.SizeBytes
	} else {
		// Only rows trashed in the same action come back; items trashed
		// earlier on their own stay in the trash.
		sub, err := e.store.Descendants(ctx, item.ID, store.TraverseFilter{DeletedAtUnix: item.DeletedAt.Unix()})
		if err != nil {
			return err
		}
		defer sub.Close()
		for sub.Next() {
			node := sub.Node()
			updates = append(updates, store.ItemUpdate{ID: node.ID, Deleted: &live, DeletedAtUnix: &clearTS})
			if node.IsFile() {
				bytes += node.SizeBytes
			}
		}
		if err := sub.Err(); err != nil {
			return err
		}
	}

	if err := e.quota.Admit(ctx, owner, bytes); err != nil {
		return err
	}
	if err := e.store.ApplyUpdates(ctx, updates); err != nil {
		return fault.Wrap(fault.KindInternal, err, "failed to restore %q", item.Name)
	}
	e.applyQuota(ctx, owner, bytes)
	log.WithFields(log.Fields{
		"item":  item.ID,
		"rows":  len(updates),
		"bytes": bytes,
	}).Info("restored item")
	return nil
}
