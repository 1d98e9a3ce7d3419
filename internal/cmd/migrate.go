/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tessellate/tenancy-service/internal/config"
	"github.com/tessellate/tenancy-service/internal/database"
	"github.com/tessellate/tenancy-service/internal/logging"
)

// NewMigrateCommand creates the command that applies the database migrations and exits.
func NewMigrateCommand() *cobra.Command {
	runner := &migrateRunner{}
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies the database migrations",
		RunE:  runner.run,
	}
}

// migrateRunner contains the data and logic of the migrate command.
type migrateRunner struct {
}

func (r *migrateRunner) run(command *cobra.Command, args []string) error {
	// Create the logger:
	logger, err := logging.NewLogger().
		SetFlags(command.Flags()).
		Build()
	if err != nil {
		return err
	}

	// Load the configuration:
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Apply the migrations:
	migrations, err := database.NewMigrations().
		SetLogger(logger).
		SetURL(cfg.DatabaseURL).
		Build()
	if err != nil {
		return err
	}
	return migrations.Run()
}
