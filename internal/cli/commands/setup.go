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

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cabinet/internal/common"
	"cabinet/internal/config"
	"cabinet/internal/lifecycle"
	"cabinet/internal/physical"
	"cabinet/internal/quota"
	"cabinet/internal/store"
)

// runtime bundles the wired components a command works against.
type runtime struct {
	cfg    *config.Config
	store  *store.Store
	mapper *physical.Mapper
	quota  *quota.Tracker
	engine *lifecycle.Engine
}

// openRuntime wires store, mapper, tracker, and engine from the loaded
// config. Callers must Close it.
func openRuntime() (*runtime, error) {
	cfg := loadedConfig
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := store.Open(cfg.DatabasePath,
		store.WithBatchSize(cfg.Store.BatchSize),
		store.WithMaxDepth(cfg.Store.MaxDepth))
	if err != nil {
		return nil, err
	}

	mapper := physical.NewOSMapper(cfg.DataRoot)
	tracker := quota.NewTracker(s, quota.StaticPlans{
		UserLimitBytes:      cfg.Quota.DefaultUserLimitBytes,
		TeamspaceLimitBytes: cfg.Quota.DefaultTeamspaceLimitBytes,
	})
	engine := lifecycle.NewEngine(s, mapper, tracker, lifecycle.NewConfigRules(cfg.Upload))

	return &runtime{cfg: cfg, store: s, mapper: mapper, quota: tracker, engine: engine}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// parseOwner turns a CLI owner argument into an Owner. Accepted forms:
// "user:<id>", "team:<id>", or a bare id treated as a user.
func parseOwner(arg string) (common.Owner, error) {
	switch {
	case strings.HasPrefix(arg, "user:"):
		arg = strings.TrimPrefix(arg, "user:")
		if arg == "" {
			return common.Owner{}, fmt.Errorf("empty user id")
		}
		return common.PersonalOwner(arg), nil
	case strings.HasPrefix(arg, "team:"):
		arg = strings.TrimPrefix(arg, "team:")
		if arg == "" {
			return common.Owner{}, fmt.Errorf("empty teamspace id")
		}
		return common.TeamspaceOwner(arg), nil
	case arg == "":
		return common.Owner{}, fmt.Errorf("missing owner")
	default:
		return common.PersonalOwner(arg), nil
	}
}
