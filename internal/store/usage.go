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
	"context"
	"database/sql"
	"time"

	"cabinet/internal/common"
	"cabinet/internal/util"
)

// GetUsage returns the owner's storage counter, or (nil, nil) when no row
// exists yet (the tracker seeds one lazily with the plan limit).
func (s *Store) GetUsage(ctx context.Context, owner common.Owner) (*Usage, error) {
	var m ownerUsageModel
	err := s.bun.NewSelect().Model(&m).Where("owner_key = ?", owner.Key()).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Usage{
		Owner:      owner,
		UsedBytes:  m.UsedBytes,
		LimitBytes: m.LimitBytes,
		UpdatedAt:  time.Unix(m.UpdatedAt, 0),
	}, nil
}

// UpsertUsageDelta adds deltaBytes (signed) to the owner's counter,
// creating the row with limitBytes if absent. The counter never drops
// below zero; incremental drift below is healed by SetUsage/recompute.
func (s *Store) UpsertUsageDelta(ctx context.Context, owner common.Owner, deltaBytes, limitBytes int64) error {
	now := time.Now().Unix()
	return util.Retry(ctx, func() error {
		used := deltaBytes
		if used < 0 {
			used = 0
		}
		_, err := s.bun.NewInsert().
			Model(&ownerUsageModel{
				OwnerKey:   owner.Key(),
				UsedBytes:  used,
				LimitBytes: limitBytes,
				UpdatedAt:  now,
			}).
			On("CONFLICT (owner_key) DO UPDATE").
			Set("used_bytes = MAX(0, owner_usage.used_bytes + ?)", deltaBytes).
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

// SetUsage overwrites the owner's counter with an authoritative value.
func (s *Store) SetUsage(ctx context.Context, owner common.Owner, usedBytes, limitBytes int64) error {
	now := time.Now().Unix()
	return util.Retry(ctx, func() error {
		_, err := s.bun.NewInsert().
			Model(&ownerUsageModel{
				OwnerKey:   owner.Key(),
				UsedBytes:  usedBytes,
				LimitBytes: limitBytes,
				UpdatedAt:  now,
			}).
			On("CONFLICT (owner_key) DO UPDATE").
			Set("used_bytes = EXCLUDED.used_bytes").
			Set("limit_bytes = EXCLUDED.limit_bytes").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

// SumLiveFileBytes scans the owner's live files and returns their total
/// size: the authoritative value the counter should converge to.
func (s *Store) SumLiveFileBytes(ctx context.Context, owner common.Owner) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(size_bytes), 0) FROM items
		WHERE IFNULL(teamspace_id, owner_id) = ? AND kind = 'file' AND deleted = 0
	`, owner.SpaceID()).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}
