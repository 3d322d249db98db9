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

// Package quota maintains per-owner used/limit byte counters and admits
// or rejects storage-consuming changes. Admission happens before the
// change commits and the delta is applied after it succeeds; the counter
// is incremental for speed and healed by Recompute when it drifts.
//
// The check-then-act window between CanAdmit and Apply is an accepted
// approximation: concurrent uploads near the boundary can jointly exceed
// the limit, and recomputation restores the truth.
package quota

import (
	"context"

	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// PlanResolver supplies the byte limit for an owner. In production this
// is backed by the subscription/plan collaborator; tests and the CLI use
// StaticPlans.
type PlanResolver interface {
	LimitBytes(ctx context.Context, owner common.Owner) (int64, error)
}

// StaticPlans resolves limits from fixed defaults.
type StaticPlans struct {
	UserLimitBytes      int64
	TeamspaceLimitBytes int64
}

// LimitBytes implements PlanResolver.
func (p StaticPlans) LimitBytes(_ context.Context, owner common.Owner) (int64, error) {
	if owner.IsTeamspace() {
		return p.TeamspaceLimitBytes, nil
	}
	return p.UserLimitBytes, nil
}

// Tracker is the quota tracker.
type Tracker struct {
	store *store.Store
	plans PlanResolver
}

// NewTracker returns a tracker over the given store and plan resolver.
func NewTracker(s *store.Store, plans PlanResolver) *Tracker {
	return &Tracker{store: s, plans: plans}
}

// CanAdmit reports whether used+deltaBytes stays within the owner's
// limit. Negative deltas always pass.
func (t *Tracker) CanAdmit(ctx context.Context, owner common.Owner, deltaBytes int64) (bool, error) {
	if deltaBytes <= 0 {
		return true, nil
	}
	usage, err := t.Usage(ctx, owner)
	if err != nil {
		return false, err
	}
	return usage.UsedBytes+deltaBytes <= usage.LimitBytes, nil
}

// Admit is CanAdmit returning a quota-exceeded fault on refusal.
func (t *Tracker) Admit(ctx context.Context, owner common.Owner, deltaBytes int64) error {
	ok, err := t.CanAdmit(ctx, owner, deltaBytes)
	if err != nil {
		return err
	}
	if !ok {
		return fault.New(fault.KindQuotaExceeded, "storage limit exceeded for %s", owner.Key())
	}
	return nil
}

// Apply adds deltaBytes (signed) to the owner's counter after a lifecycle
// step has committed. It must not be called for an admission whose change
// failed.
func (t *Tracker) Apply(ctx context.Context, owner common.Owner, deltaBytes int64) error {
	if deltaBytes == 0 {
		return nil
	}
	limit, err := t.plans.LimitBytes(ctx, owner)
	if err != nil {
		return err
	}
	return t.store.UpsertUsageDelta(ctx, owner, deltaBytes, limit)
}

// Recompute resynchronizes the counter from a full scan of the owner's
// live files, healing any incremental drift. Returns the healed usage.
func (t *Tracker) Recompute(ctx context.Context, owner common.Owner) (*store.Usage, error) {
	total, err := t.store.SumLiveFileBytes(ctx, owner)
	if err != nil {
		return nil, err
	}
	limit, err := t.plans.LimitBytes(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := t.store.SetUsage(ctx, owner, total, limit); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"owner": owner.Key(),
		"used":  total,
		"limit": limit,
	}).Info("recomputed storage usage")
	return t.Usage(ctx, owner)
}

// Usage returns the owner's current counter, seeding a zero-usage row
// with the plan limit when none exists yet.
func (t *Tracker) Usage(ctx context.Context, owner common.Owner) (*store.Usage, error) {
	usage, err := t.store.GetUsage(ctx, owner)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		return usage, nil
	}
	limit, err := t.plans.LimitBytes(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &store.Usage{Owner: owner, UsedBytes: 0, LimitBytes: limit}, nil
}
