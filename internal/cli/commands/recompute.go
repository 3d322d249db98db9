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

var recomputeCmd = &cobra.Command{
	Use:   "recompute <owner>",
	Short: "Rebuild an owner's storage counter from the live rows",
	Long: `Resynchronize the incremental usage counter with a full scan of the
owner's live files. Owner is "user:<id>", "team:<id>", or a bare user id.

Examples:
  cabinet recompute user:5f0c
  cabinet recompute team:design`,
	Args: cobra.ExactArgs(1),
	RunE: runRecompute,
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
}

func runRecompute(cmd *cobra.Command, args []string) error {
	owner, err := parseOwner(args[0])
	if err != nil {
		return err
	}
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	usage, err := rt.quota.Recompute(cmd.Context(), owner)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d / %d bytes (%.1f%%)\n",
		owner.Key(), usage.UsedBytes, usage.LimitBytes, usage.UsagePercent())
	return nil
}
