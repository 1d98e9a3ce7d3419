/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/tessellate/tenancy-service/internal/database"
	"github.com/tessellate/tenancy-service/internal/tenancy"
)

// PostgresParticipantStoreBuilder contains the data and logic needed to create PostgreSQL participant stores.
type PostgresParticipantStoreBuilder struct {
	logger *slog.Logger
}

// PostgresParticipantStore is an implementation of the participant store that reads the hierarchy from the
// `tenant_participants` table, using the transaction of the current unit of work. The hierarchy is read-only from
// here: it is written by the administrative tooling, never by this store.
type PostgresParticipantStore struct {
	logger *slog.Logger
}

// NewPostgresParticipantStore creates a builder that can then be used to configure and create a PostgreSQL
// participant store.
func NewPostgresParticipantStore() *PostgresParticipantStoreBuilder {
	return &PostgresParticipantStoreBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *PostgresParticipantStoreBuilder) SetLogger(value *slog.Logger) *PostgresParticipantStoreBuilder {
	b.logger = value
	return b
}

// Build creates a new PostgreSQL participant store using the configuration stored in the builder.
func (b *PostgresParticipantStoreBuilder) Build() (result *PostgresParticipantStore, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &PostgresParticipantStore{
		logger: b.logger,
	}
	return
}

// Lookup returns the participant with the given identifier, or nil if there is none.
func (s *PostgresParticipantStore) Lookup(ctx context.Context, id string) (result tenancy.Participant,
	err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	sql := `
		select
			name,
			security_model,
			parent_id
		from
			tenant_participants
		where
			id = $1
	`
	s.logger.DebugContext(
		ctx,
		"Running SQL query",
		slog.String("sql", sql),
		slog.String("id", id),
	)
	row := tx.QueryRow(ctx, sql, id)
	var (
		name   string
		model  string
		parent *string
	)
	err = row.Scan(
		&name,
		&model,
		&parent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	builder := tenancy.NewParticipant().
		SetID(id).
		SetName(name).
		SetSecurityModel(tenancy.SecurityModel(model))
	if parent != nil {
		builder.SetParent(*parent)
	}
	result, err = builder.Build()
	return
}
