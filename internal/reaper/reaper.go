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

// Package reaper permanently removes trash that has outlived its
// retention window. Sweeps run in bounded batches under a file lock so
// overlapping schedules or a concurrent CLI sweep never race each other.
package reaper

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
	"cabinet/internal/store"
)

// PhysicalDeleter removes the backing content of an item. Implemented by
// the physical mapper in production.
type PhysicalDeleter interface {
	DeleteIfExists(owner common.Owner, rel string) error
}

// Options tunes a reaper.
type Options struct {
	// RetentionDays is how long an item stays in the trash before it is
	// eligible for permanent removal.
	RetentionDays int
	// BatchSize bounds how many trashed roots one sweep pass loads.
	BatchSize int
	// LockPath is the cross-process sweep lock file.
	LockPath string
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Deleted int // metadata rows removed
	Failed  int // items whose physical removal failed
}

// Reaper is the trash retention worker.
type Reaper struct {
	store    *store.Store
	physical PhysicalDeleter
	opts     Options
	cron     *cron.Cron
}

// New returns a reaper over the given store and physical deleter.
func New(s *store.Store, p PhysicalDeleter, opts Options) *Reaper {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 30
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Reaper{store: s, physical: p, opts: opts}
}

// Start schedules recurring sweeps with the given cron expression (the
// standard five-field form or a descriptor like "@hourly") and returns
// once the schedule is installed. Stop cancels it.
func (r *Reaper) Start(schedule string) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fault.Wrap(fault.KindInvalidOperation, err, "invalid sweep schedule %q", schedule)
	}
	c := cron.New()
	// Installing the parsed schedule directly cannot fail; AddFunc would
	// re-parse with the seconds-field parser and reject five-field specs.
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			log.WithError(err).Error("scheduled trash sweep failed")
		}
	}))
	c.Start()
	r.cron = c
	log.WithField("schedule", schedule).Info("trash reaper started")
	return nil
}

// Stop cancels the sweep schedule. A sweep already underway finishes.
func (r *Reaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
		r.cron = nil
	}
}

// Sweep permanently removes every expired trashed item, in batches. If
// another sweep holds the lock this one returns immediately with a zero
// result. An item whose physical removal hard-fails is counted, logged,
// and its rows are removed anyway so the trash cannot jam; missing
// physical content is normal and treated as already cleaned up.
func (r *Reaper) Sweep(ctx context.Context) (*SweepResult, error) {
	if r.opts.LockPath != "" {
		lock := flock.New(r.opts.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fault.Wrap(fault.KindIO, err, "acquire sweep lock")
		}
		if !locked {
			log.Debug("sweep already in progress, skipping")
			return &SweepResult{}, nil
		}
		defer lock.Unlock()
	}

	cutoff := time.Now().AddDate(0, 0, -r.opts.RetentionDays)
	res := &SweepResult{}
	for {
		expired, err := r.store.ListExpiredTrash(ctx, cutoff, r.opts.BatchSize)
		if err != nil {
			return res, err
		}
		if len(expired) == 0 {
			break
		}
		for _, it := range expired {
			if err := r.reapOne(ctx, it, res); err != nil {
				return res, err
			}
		}
		if len(expired) < r.opts.BatchSize {
			break
		}
	}
	log.WithFields(log.Fields{
		"deleted": res.Deleted,
		"failed":  res.Failed,
	}).Info("trash sweep finished")
	return res, nil
}

func (r *Reaper) reapOne(ctx context.Context, it *store.Item, res *SweepResult) error {
	owner := it.Owner()

	rel := it.RelPath
	if it.IsFolder() {
		p, err := r.store.FolderPath(ctx, it.ID)
		if err != nil {
			return err
		}
		rel = p
	}
	if err := r.physical.DeleteIfExists(owner, rel); err != nil {
		res.Failed++
		log.WithError(err).WithFields(log.Fields{
			"item": it.ID,
			"path": rel,
		}).Error("failed to erase expired content, removing records regardless")
	}

	ids := []string{it.ID}
	if it.IsFolder() {
		sub, err := r.store.Descendants(ctx, it.ID, store.TraverseFilter{IncludeDeleted: true})
		if err != nil {
			return err
		}
		for sub.Next() {
			ids = append(ids, sub.Node().ID)
		}
		err = sub.Err()
		sub.Close()
		if err != nil {
			return err
		}
	}
	if err := r.store.DeleteItems(ctx, ids); err != nil {
		return err
	}
	res.Deleted += len(ids)
	return nil
}
