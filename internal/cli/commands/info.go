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

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <owner>",
	Short: "Show an owner's storage usage and trash",
	Long: `Report the owner's storage counter against their limit and list the
top-level entries currently in their trash.

Examples:
  cabinet info user:5f0c
  cabinet info team:design`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	owner, err := parseOwner(args[0])
	if err != nil {
		return err
	}
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	usage, err := rt.engine.Usage(cmd.Context(), owner)
	if err != nil {
		return err
	}
	fmt.Printf("Owner: %s\n", owner.Key())
	fmt.Printf("Usage: %d / %d bytes (%.1f%%)\n",
		usage.UsedBytes, usage.LimitBytes, usage.UsagePercent())

	trash, err := rt.engine.ListTrash(cmd.Context(), owner)
	if err != nil {
		return err
	}
	fmt.Printf("Trash: %d entries\n", len(trash))
	for _, it := range trash {
		fmt.Printf("  %s  %-6s  %s  (deleted %s)\n",
			it.ID, it.Kind, it.Name, it.DeletedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
