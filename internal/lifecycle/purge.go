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

	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// PermanentDelete erases an item for good: the backing bytes go first,
// then the metadata rows. Physical content already gone counts as
// cleaned up; a hard physical failure leaves the rows intact so the
// item stays visible and the delete can be retried.
func (e *Engine) PermanentDelete(ctx context.Context, itemID string) error {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	owner := item.Owner()

	rel, err := e.itemStoragePath(ctx, item)
	if err != nil {
		return err
	}
	if err := e.mapper.DeleteIfExists(owner, rel); err != nil {
		return fault.Wrap(fault.KindIO, err, "failed to erase content of %q", item.Name)
	}

	ids := []string{item.ID}
	var liveBytes int64
	if item.IsFile() {
		if !item.Deleted {
			liveBytes = item.SizeBytes
		}
	} else {
		sub, err := e.store.Descendants(ctx, item.ID, store.TraverseFilter{IncludeDeleted: true})
		if err != nil {
			return err
		}
		defer sub.Close()
		for sub.Next() {
			node := sub.Node()
			ids = append(ids, node.ID)
			if node.IsFile() && !node.Deleted {
				liveBytes += node.SizeBytes
			}
		}
		if err := sub.Err(); err != nil {
			return err
		}
	}

	if err := e.store.DeleteItems(ctx, ids); err != nil {
		return fault.Wrap(fault.KindInternal, err, "failed to erase records of %q", item.Name)
	}
	// Trashed rows were debited at soft-delete time; only live bytes
	// still count against the owner here.
	e.applyQuota(ctx, owner, -liveBytes)
	log.WithFields(log.Fields{
		"item": item.ID,
		"rows": len(ids),
	}).Info("permanently deleted item")
	return nil
}
