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

	"github.com/spf13/cobra"

	"cabinet/internal/artifacts"
	"cabinet/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the cabinet config, data root, and database",
	Long: `Create the configuration directory with an annotated default config,
the data root, and an empty metadata database with the current schema.

Safe to re-run: an existing config file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := config.DefaultConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(dir, "cabinet.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s (not modified)\n", configPath)
	} else {
		if err := os.WriteFile(configPath, artifacts.DefaultConfig, 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Created %s\n", configPath)
	}

	// Opening the runtime creates the data root and database schema.
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Printf("Data root: %s\n", rt.cfg.DataRoot)
	fmt.Printf("Database:  %s\n", rt.cfg.DatabasePath)
	return nil
}
