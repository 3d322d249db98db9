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
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"cabinet/internal/reaper"
)

var (
	sweepRetentionDays int
	sweepWatch         bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Permanently remove expired trash",
	Long: `Run one trash sweep: every soft-deleted item older than the retention
window is erased from physical storage and the metadata database.

Exits immediately if another sweep is already holding the lock. With
--watch the sweep repeats on the configured cron schedule until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().IntVar(&sweepRetentionDays, "retention-days", 0,
		"override the configured retention window")
	sweepCmd.Flags().BoolVar(&sweepWatch, "watch", false,
		"keep running and sweep on the configured schedule")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	retention := rt.cfg.Reaper.RetentionDays
	if sweepRetentionDays > 0 {
		retention = sweepRetentionDays
	}
	r := reaper.New(rt.store, rt.mapper, reaper.Options{
		RetentionDays: retention,
		BatchSize:     rt.cfg.Reaper.SweepBatchSize,
		LockPath:      filepath.Join(rt.cfg.DataRoot, ".sweep.lock"),
	})

	res, err := r.Sweep(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d records (%d physical failures)\n", res.Deleted, res.Failed)

	if !sweepWatch {
		return nil
	}
	if err := r.Start(rt.cfg.Reaper.Schedule); err != nil {
		return err
	}
	defer r.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("Stopping sweep schedule")
	return nil
}
