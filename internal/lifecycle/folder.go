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

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// CreateFolder inserts the metadata row and then creates the backing
// directory. A failed directory creation rolls the fresh row back and
// surfaces an I/O fault.
func (e *Engine) CreateFolder(ctx context.Context, owner common.Owner, actorID, parentID, name string) (*store.Item, error) {
	if err := e.rules.ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := e.requireLiveFolder(ctx, owner, parentID); err != nil {
		return nil, err
	}
	exists, err := e.store.LiveSiblingExists(ctx, owner, parentID, name, store.KindFolder)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindConflict, "a folder named %q already exists here", name)
	}

	dir, err := e.containerPath(ctx, parentID)
	if err != nil {
		return nil, err
	}

	if actorID == "" {
		actorID = owner.UserID
	}
	now := time.Now()
	item := &store.Item{
		ID:          uuid.NewString(),
		OwnerID:     actorID,
		TeamspaceID: owner.TeamspaceID,
		ParentID:    parentID,
		Name:        name,
		Kind:        store.KindFolder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.Insert(ctx, item); err != nil {
		return nil, err
	}

	if err := e.mapper.CreateDir(owner, common.JoinPath(dir, name)); err != nil {
		// Compensate: the row exists but the directory never did.
		if delErr := e.store.DeleteItems(ctx, []string{item.ID}); delErr != nil {
			log.WithError(delErr).WithField("item", item.ID).
				Error("failed to roll back folder row after directory creation failure")
		}
		if fault.Conflict(err) {
			return nil, err
		}
		return nil, fault.Wrap(fault.KindIO, err, "failed to create directory for folder %q", name)
	}

	log.WithFields(log.Fields{
		"item":  item.ID,
		"name":  name,
		"owner": owner.Key(),
	}).Info("created folder")
	return item, nil
}
