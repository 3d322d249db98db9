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
	"cabinet/internal/store"
)

// ListChildren lists the live items directly under folderID ("" lists
// the owner's root), folders first, natural name order.
func (e *Engine) ListChildren(ctx context.Context, owner common.Owner, folderID string) ([]*store.Item, error) {
	if folderID != "" {
		if _, err := e.requireLiveFolder(ctx, owner, folderID); err != nil {
			return nil, err
		}
	}
	return e.store.ListChildren(ctx, owner, folderID, false)
}

// ListTrash lists the roots of the owner's trashed subtrees, most
// recently trashed first.
func (e *Engine) ListTrash(ctx context.Context, owner common.Owner) ([]*store.Item, error) {
	return e.store.ListTrash(ctx, owner)
}

// Usage reports the owner's consumption against their plan limit.
func (e *Engine) Usage(ctx context.Context, owner common.Owner) (*store.Usage, error) {
	return e.quota.Usage(ctx, owner)
}

// RecomputeUsage rebuilds the owner's counter from the live rows.
func (e *Engine) RecomputeUsage(ctx context.Context, owner common.Owner) (*store.Usage, error) {
	return e.quota.Recompute(ctx, owner)
}
