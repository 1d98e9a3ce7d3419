/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsBuilder contains the data and logic needed to create the migrations tool.
type MigrationsBuilder struct {
	logger *slog.Logger
	url    string
}

// Migrations applies the embedded schema migrations to the database.
type Migrations struct {
	logger *slog.Logger
	url    string
}

// NewMigrations creates a builder that can then be used to configure and create the migrations tool.
func NewMigrations() *MigrationsBuilder {
	return &MigrationsBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *MigrationsBuilder) SetLogger(value *slog.Logger) *MigrationsBuilder {
	b.logger = value
	return b
}

// SetURL sets the database URL. This is mandatory.
func (b *MigrationsBuilder) SetURL(value string) *MigrationsBuilder {
	b.url = value
	return b
}

// Build creates the migrations tool using the configuration stored in the builder.
func (b *MigrationsBuilder) Build() (result *Migrations, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.url == "" {
		err = errors.New("database URL is mandatory")
		return
	}

	// The migrate library selects its database driver from the URL scheme, and the pgx v5 driver registers
	// itself as 'pgx5', so the usual PostgreSQL schemes need to be rewritten:
	url := b.url
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, scheme) {
			url = "pgx5://" + strings.TrimPrefix(url, scheme)
			break
		}
	}

	// Create and populate the object:
	result = &Migrations{
		logger: b.logger,
		url:    url,
	}
	return
}

// Run applies all the pending migrations. It does nothing, and reports nothing, when the schema is already up to
// date.
func (m *Migrations) Run() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	tool, err := migrate.NewWithSourceInstance("iofs", source, m.url)
	if err != nil {
		return fmt.Errorf("failed to create migrations tool: %w", err)
	}
	defer tool.Close()
	err = tool.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, err := tool.Version()
	if err != nil {
		return fmt.Errorf("failed to check migrations version: %w", err)
	}
	m.logger.Info(
		"Applied migrations",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}
