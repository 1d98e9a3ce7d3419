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

	"github.com/tessellate/tenancy-service/internal/database"
	"github.com/tessellate/tenancy-service/internal/tenancy"
)

// PostgresMembershipLogicBuilder contains the data and logic needed to create PostgreSQL membership logic.
type PostgresMembershipLogicBuilder struct {
	logger *slog.Logger
}

// PostgresMembershipLogic is an implementation of the membership logic that reads the accessible creator sets
// from the `tenant_memberships` table, using the transaction of the current unit of work. A tenant with no rows
// in the table gets an empty set, so the 'user' model denies access instead of failing open.
type PostgresMembershipLogic struct {
	logger *slog.Logger
}

// NewPostgresMembershipLogic creates a builder that can then be used to configure and create PostgreSQL
// membership logic.
func NewPostgresMembershipLogic() *PostgresMembershipLogicBuilder {
	return &PostgresMembershipLogicBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *PostgresMembershipLogicBuilder) SetLogger(value *slog.Logger) *PostgresMembershipLogicBuilder {
	b.logger = value
	return b
}

// Build creates new PostgreSQL membership logic using the configuration stored in the builder.
func (b *PostgresMembershipLogicBuilder) Build() (result *PostgresMembershipLogic, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &PostgresMembershipLogic{
		logger: b.logger,
	}
	return
}

// AccessibleCreators returns the identifiers of the creators whose records the given tenant may see.
func (l *PostgresMembershipLogic) AccessibleCreators(ctx context.Context, tenant tenancy.Context) (
	result []string, err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	sql := `
		select
			accessible_creator_id
		from
			tenant_memberships
		where
			tenant_owner_id = $1 and tenant_creator_id = $2
	`
	l.logger.DebugContext(
		ctx,
		"Running SQL query",
		slog.String("sql", sql),
		slog.String("owner", tenant.OwnerID),
		slog.String("creator", tenant.CreatorID),
	)
	rows, err := tx.Query(ctx, sql, tenant.OwnerID, tenant.CreatorID)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var creator string
		err = rows.Scan(&creator)
		if err != nil {
			return
		}
		result = append(result, creator)
	}
	err = rows.Err()
	return
}
