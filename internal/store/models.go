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
	"time"

	"github.com/uptrace/bun"

	"cabinet/internal/common"
)

// schemaInfoModel represents the schema_info table.
type schemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// ItemModel represents the items table. Times are stored as Unix
// timestamps; nullable columns use nullzero so the empty Go value maps
// to SQL NULL (ids are uuids, never "").
type ItemModel struct {
	bun.BaseModel `bun:"table:items"`

	ID          string `bun:"id,pk"`
	OwnerID     string `bun:"owner_id,notnull"`
	TeamspaceID string `bun:"teamspace_id,nullzero"`
	ParentID    string `bun:"parent_id,nullzero"`
	Name        string `bun:"name,notnull"`
	Kind        string `bun:"kind,notnull"`
	RelPath     string `bun:"rel_path,nullzero"`
	SizeBytes   int64  `bun:"size_bytes,notnull"`
	MimeType    string `bun:"mime_type,nullzero"`
	Deleted     bool   `bun:"deleted,notnull"`
	DeletedAt   int64  `bun:"deleted_at,nullzero"`
	CreatedAt   int64  `bun:"created_at,notnull"`
	UpdatedAt   int64  `bun:"updated_at,notnull"`
}

// ownerUsageModel represents the owner_usage table.
type ownerUsageModel struct {
	bun.BaseModel `bun:"table:owner_usage"`

	OwnerKey   string `bun:"owner_key,pk"`
	UsedBytes  int64  `bun:"used_bytes,notnull"`
	LimitBytes int64  `bun:"limit_bytes,notnull"`
	UpdatedAt  int64  `bun:"updated_at,notnull"`
}

// Item is a file or folder node in an owner's hierarchy.
type Item struct {
	ID          string
	OwnerID     string
	TeamspaceID string
	ParentID    string // "" = root of the owner's space
	Name        string
	Kind        string // KindFile or KindFolder
	RelPath     string // files only
	SizeBytes   int64  // files only
	MimeType    string // files only
	Deleted     bool
	DeletedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsFolder reports whether the item is a folder.
func (i *Item) IsFolder() bool { return i.Kind == KindFolder }

// IsFile reports whether the item is a file.
func (i *Item) IsFile() bool { return i.Kind == KindFile }

// Owner returns the space the item belongs to.
func (i *Item) Owner() common.Owner {
	if i.TeamspaceID != "" {
		return common.TeamspaceOwner(i.TeamspaceID)
	}
	return common.PersonalOwner(i.OwnerID)
}

// ToItem converts a row model to the domain struct.
func (m *ItemModel) ToItem() *Item {
	it := &Item{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		TeamspaceID: m.TeamspaceID,
		ParentID:    m.ParentID,
		Name:        m.Name,
		Kind:        m.Kind,
		RelPath:     m.RelPath,
		SizeBytes:   m.SizeBytes,
		MimeType:    m.MimeType,
		Deleted:     m.Deleted,
		CreatedAt:   time.Unix(m.CreatedAt, 0),
		UpdatedAt:   time.Unix(m.UpdatedAt, 0),
	}
	if m.DeletedAt != 0 {
		it.DeletedAt = time.Unix(m.DeletedAt, 0)
	}
	return it
}

// ModelFromItem converts a domain item to its row model.
func ModelFromItem(it *Item) *ItemModel {
	m := &ItemModel{
		ID:          it.ID,
		OwnerID:     it.OwnerID,
		TeamspaceID: it.TeamspaceID,
		ParentID:    it.ParentID,
		Name:        it.Name,
		Kind:        it.Kind,
		RelPath:     it.RelPath,
		SizeBytes:   it.SizeBytes,
		MimeType:    it.MimeType,
		Deleted:     it.Deleted,
		CreatedAt:   it.CreatedAt.Unix(),
		UpdatedAt:   it.UpdatedAt.Unix(),
	}
	if !it.DeletedAt.IsZero() {
		m.DeletedAt = it.DeletedAt.Unix()
	}
	return m
}

// Usage is a snapshot of an owner's storage counter.
type Usage struct {
	Owner      common.Owner
	UsedBytes  int64
	LimitBytes int64
	UpdatedAt  time.Time
}

// AvailableBytes returns the remaining admission headroom.
func (u *Usage) AvailableBytes() int64 {
	if u.UsedBytes >= u.LimitBytes {
		return 0
	}
	return u.LimitBytes - u.UsedBytes
}

// UsagePercent returns used/limit as a percentage.
func (u *Usage) UsagePercent() float64 {
	if u.LimitBytes <= 0 {
		return 0
	}
	return float64(u.UsedBytes) / float64(u.LimitBytes) * 100
}
