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
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// UploadRequest describes one file upload.
type UploadRequest struct {
	Owner common.Owner
	// ActorID is the acting user, recorded as the item's owner id for
	// teamspace uploads. Defaults to the personal owner's user id.
	ActorID   string
	ParentID  string // "" uploads to the owner's root
	Name      string
	MimeType  string
	SizeBytes int64
	Content   io.Reader
}

// Upload validates, writes the bytes, inserts the metadata row, and
// applies the quota delta. Order: quota pre-check before the write, row
// insert after it, counter update last. A failed insert deletes the
// orphaned physical file best-effort.
func (e *Engine) Upload(ctx context.Context, req UploadRequest) (*store.Item, error) {
	if err := e.rules.ValidateUpload(req.Name, req.SizeBytes); err != nil {
		return nil, err
	}
	if _, err := e.requireLiveFolder(ctx, req.Owner, req.ParentID); err != nil {
		return nil, err
	}
	exists, err := e.store.LiveSiblingExists(ctx, req.Owner, req.ParentID, req.Name, store.KindFile)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.New(fault.KindConflict, "a file named %q already exists here", req.Name)
	}
	if err := e.quota.Admit(ctx, req.Owner, req.SizeBytes); err != nil {
		return nil, err
	}

	dir, err := e.containerPath(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}
	relPath := common.JoinPath(dir, req.Name)

	// The copy is capped one byte past the declared size so a reader
	// longer than its declaration cannot commit bytes the quota never
	// admitted.
	written, err := e.mapper.SaveFile(req.Owner, relPath, io.LimitReader(req.Content, req.SizeBytes+1))
	if err != nil {
		return nil, err
	}
	if written > req.SizeBytes {
		if rmErr := e.mapper.DeleteIfExists(req.Owner, relPath); rmErr != nil {
			log.WithError(rmErr).WithField("path", relPath).
				Error("failed to remove oversized upload")
		}
		return nil, fault.New(fault.KindInvalidOperation,
			"content of %q exceeds its declared size of %d bytes", req.Name, req.SizeBytes)
	}

	actor := req.ActorID
	if actor == "" {
		actor = req.Owner.UserID
	}
	now := time.Now()
	item := &store.Item{
		ID:          uuid.NewString(),
		OwnerID:     actor,
		TeamspaceID: req.Owner.TeamspaceID,
		ParentID:    req.ParentID,
		Name:        req.Name,
		Kind:        store.KindFile,
		RelPath:     relPath,
		SizeBytes:   written,
		MimeType:    req.MimeType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.Insert(ctx, item); err != nil {
		// The bytes are on disk but the row never landed: remove the
		// orphan so the stores stay in agreement.
		if rmErr := e.mapper.DeleteIfExists(req.Owner, relPath); rmErr != nil {
			log.WithError(rmErr).WithField("path", relPath).
				Error("failed to remove orphaned upload after metadata failure")
		}
		if fault.Conflict(err) {
			return nil, err
		}
		return nil, fault.Wrap(fault.KindInternal, err, "failed to record upload %q", req.Name)
	}

	e.applyQuota(ctx, req.Owner, written)
	log.WithFields(log.Fields{
		"item":  item.ID,
		"name":  item.Name,
		"bytes": written,
		"owner": req.Owner.Key(),
	}).Info("uploaded file")
	return item, nil
}

// Download locates a live file and resolves the absolute physical path a
// handler can stream from.
type Download struct {
	Item    *store.Item
	AbsPath string
}

// ResolveDownload returns the download handle for a live file.
func (e *Engine) ResolveDownload(ctx context.Context, itemID string) (*Download, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.IsFile() {
		return nil, fault.New(fault.KindInvalidOperation, "%q is not a file", item.Name)
	}
	if item.Deleted {
		return nil, fault.New(fault.KindNotFound, "file %q is in the trash", item.Name)
	}
	abs, err := e.mapper.FullPath(item.Owner(), item.RelPath)
	if err != nil {
		return nil, err
	}
	return &Download{Item: item, AbsPath: abs}, nil
}
