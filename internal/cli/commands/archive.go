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

	"github.com/spf13/cobra"

	"cabinet/internal/archive"
)

var archiveOutput string

var archiveCmd = &cobra.Command{
	Use:   "archive <folder-id>",
	Short: "Build a zip archive of a folder's live contents",
	Long: `Stream the live subtree under a folder into a zip file. Files whose
physical content has gone missing are skipped and reported, not fatal.

Examples:
  cabinet archive 2f1a... -o reports.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().StringVarP(&archiveOutput, "output", "o", "cabinet.zip", "output zip file")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := os.Create(archiveOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", archiveOutput, err)
	}

	b := archive.NewBuilder(rt.store, rt.mapper, archive.Limits{
		MaxTotalBytes: rt.cfg.Archive.MaxTotalBytes,
		MaxFileCount:  int64(rt.cfg.Archive.MaxFileCount),
	})
	res, err := b.BuildFolder(cmd.Context(), out, args[0])
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(archiveOutput)
		return err
	}
	fmt.Printf("Wrote %s: %d entries, %d bytes", archiveOutput, res.Added, res.Bytes)
	if res.Skipped > 0 {
		fmt.Printf(" (%d files skipped, content missing)", res.Skipped)
	}
	fmt.Println()
	return nil
}
