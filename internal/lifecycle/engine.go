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

// Package lifecycle orchestrates item operations as short-lived
// workflows over the hierarchy store, the physical storage mapper, and
// the quota tracker. Each operation validates before mutating anything,
// keeps the defined step order of physical and metadata changes, and
// compensates best-effort when one half of a two-step change fails.
package lifecycle

import (
	"context"

	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/physical"
	"cabinet/internal/quota"
	"cabinet/internal/store"
)

// Engine is the lifecycle orchestrator.
type Engine struct {
	store  *store.Store
	mapper *physical.Mapper
	quota  *quota.Tracker
	rules  Rules
}

// NewEngine wires the orchestrator. The mapper's rename extension policy
// is aligned with the rules' allow-list.
func NewEngine(s *store.Store, m *physical.Mapper, q *quota.Tracker, r Rules) *Engine {
	m.WithExtensionPolicy(r.ExtensionAllowed)
	return &Engine{store: s, mapper: m, quota: q, rules: r}
}

// Store exposes the hierarchy store for read-only consumers (trash
// listings, children views).
func (e *Engine) Store() *store.Store { return e.store }

// Quota exposes the tracker (usage reports, recompute).
func (e *Engine) Quota() *quota.Tracker { return e.quota }

// itemStoragePath returns the storage-relative path backing an item:
// the stored path for files, the reconstructed position for folders.
func (e *Engine) itemStoragePath(ctx context.Context, it *store.Item) (string, error) {
	if it.IsFile() {
		return it.RelPath, nil
	}
	return e.store.FolderPath(ctx, it.ID)
}

// containerPath returns the storage-relative path of a parent folder, or
// "" for the owner's root.
func (e *Engine) containerPath(ctx context.Context, parentID string) (string, error) {
	if parentID == "" {
		return "", nil
	}
	return e.store.FolderPath(ctx, parentID)
}

// requireLiveFolder fetches parentID and checks it is a live folder in
// the same space as owner. parentID "" (the root) passes with a nil item.
func (e *Engine) requireLiveFolder(ctx context.Context, owner common.Owner, parentID string) (*store.Item, error) {
	if parentID == "" {
		return nil, nil
	}
	parent, err := e.store.GetItem(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, fault.New(fault.KindInvalidOperation, "%q is not a folder", parent.Name)
	}
	if parent.Deleted {
		return nil, fault.New(fault.KindNotFound, "folder %q is in the trash", parent.Name)
	}
	if parent.Owner() != owner {
		return nil, fault.New(fault.KindInvalidOperation, "folder %q belongs to a different space", parent.Name)
	}
	return parent, nil
}

// applyQuota applies a committed delta. A counter failure is logged, not
// surfaced: the operation already succeeded and recompute heals drift.
func (e *Engine) applyQuota(ctx context.Context, owner common.Owner, delta int64) {
	if err := e.quota.Apply(ctx, owner, delta); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"owner": owner.Key(),
			"delta": delta,
		}).Warn("failed to apply quota delta; counter will drift until recompute")
	}
}
