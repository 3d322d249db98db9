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

import "fmt"

const SchemaVersion = "1"

// DefaultBatchSize bounds the number of row mutations committed per
// transaction chunk during bulk subtree updates.
const DefaultBatchSize = 500

// DefaultMaxDepth bounds recursive descendant traversal.
const DefaultMaxDepth = 64

// DefaultBusyTimeout in milliseconds.
const DefaultBusyTimeout = 30000

// BuildDSN builds the SQLite DSN for the metadata database.
func BuildDSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, DefaultBusyTimeout)
}

// Item kinds. A folder is addressed by its position in the tree; only
// files carry a stored relative path.
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// metaSchema creates the metadata tables.
//
// items is the single hierarchical table: self-referencing parent_id,
// NULL parent meaning the root of the owner's space. The partial unique
// index enforces live-sibling name uniqueness per space (teamspace when
// set, otherwise the personal owner), parent, name, and kind. Soft-deleted
// rows fall outside the index so a live replacement can reuse the name
// while the trashed original keeps it.
//
// owner_usage holds the per-owner storage counters maintained by the
// quota tracker.
var metaSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		teamspace_id TEXT,
		parent_id TEXT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('file', 'folder')),
		rel_path TEXT,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		deleted_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_space ON items(IFNULL(teamspace_id, owner_id))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_items_live_sibling
		ON items(IFNULL(teamspace_id, owner_id), IFNULL(parent_id, ''), name, kind)
		WHERE deleted = 0`,
	`CREATE INDEX IF NOT EXISTS idx_items_trash ON items(deleted_at) WHERE deleted = 1`,
	`CREATE TABLE IF NOT EXISTS owner_usage (
		owner_key TEXT PRIMARY KEY,
		used_bytes INTEGER NOT NULL DEFAULT 0,
		limit_bytes INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}
