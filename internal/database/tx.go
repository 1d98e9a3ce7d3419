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
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Rows is the subset of the pgx rows interface that the data access layer uses. Having our own narrow interface
// makes it possible to replace the database with a fake in unit tests.
type Rows interface {
	// Next advances to the next row, returning false when there are no more rows.
	Next() bool

	// Scan copies the columns of the current row into the given destinations.
	Scan(dest ...any) error

	// Err returns the error, if any, that was encountered during iteration.
	Err() error

	// Close closes the rows.
	Close()
}

// Row is the subset of the pgx row interface that the data access layer uses.
type Row interface {
	// Scan copies the columns of the row into the given destinations.
	Scan(dest ...any) error
}

// Tx is the interface of the database transactions used by the data access layer.
type Tx interface {
	// Query executes a query that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a query that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement that returns no rows, returning the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// ReportError tells the transaction that the operation that used it failed, so that the transaction
	// manager will roll it back instead of committing it. It is intended to be called in a deferred statement
	// with a pointer to the named error result of the operation.
	ReportError(err *error)
}

// TxManagerBuilder contains the data and logic needed to create transaction managers.
type TxManagerBuilder struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// TxManager creates and finishes the transactions used by the data access layer. The intended use is to begin a
// transaction when a unit of work starts, put it in the context with TxIntoContext, and end it when the unit of
// work finishes: End commits unless some operation reported an error.
type TxManager struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// NewTxManager creates a builder that can then be used to configure and create a transaction manager.
func NewTxManager() *TxManagerBuilder {
	return &TxManagerBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *TxManagerBuilder) SetLogger(value *slog.Logger) *TxManagerBuilder {
	b.logger = value
	return b
}

// SetPool sets the database connection pool. This is mandatory.
func (b *TxManagerBuilder) SetPool(value *pgxpool.Pool) *TxManagerBuilder {
	b.pool = value
	return b
}

// Build creates a new transaction manager using the configuration stored in the builder.
func (b *TxManagerBuilder) Build() (result *TxManager, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.pool == nil {
		err = errors.New("pool is mandatory")
		return
	}

	// Create and populate the object:
	result = &TxManager{
		logger: b.logger,
		pool:   b.pool,
	}
	return
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (result Tx, err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return
	}
	result = &txObject{
		logger: m.logger,
		tx:     tx,
	}
	return
}

// End finishes the given transaction: it rolls back if any operation reported an error and commits otherwise.
func (m *TxManager) End(ctx context.Context, tx Tx) error {
	object, ok := tx.(*txObject)
	if !ok {
		return errors.New("transaction wasn't created by this manager")
	}
	if object.err != nil {
		m.logger.DebugContext(
			ctx,
			"Rolling back transaction",
			slog.Any("error", object.err),
		)
		return object.tx.Rollback(ctx)
	}
	return object.tx.Commit(ctx)
}

// txObject is the implementation of the Tx interface backed by a pgx transaction.
type txObject struct {
	logger *slog.Logger
	tx     pgx.Tx
	err    error
}

func (t *txObject) Query(ctx context.Context, sql string, args ...any) (result Rows, err error) {
	result, err = t.tx.Query(ctx, sql, args...)
	return
}

func (t *txObject) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txObject) Exec(ctx context.Context, sql string, args ...any) (count int64, err error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return
	}
	count = tag.RowsAffected()
	return
}

func (t *txObject) ReportError(err *error) {
	if err == nil || *err == nil {
		return
	}
	if t.err == nil {
		t.err = *err
	}
}

// txKeyType is the type of the key used to store the transaction in the context.
type txKeyType int

// txKeyValue is the key used to store the transaction in the context.
const txKeyValue txKeyType = 0

// TxIntoContext returns a copy of the given context containing the given transaction.
func TxIntoContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKeyValue, tx)
}

// TxFromContext returns the transaction stored in the context. Returns an error if there is none, as that means
// that the caller forgot to begin the unit of work.
func TxFromContext(ctx context.Context) (result Tx, err error) {
	result, ok := ctx.Value(txKeyValue).(Tx)
	if !ok {
		err = errors.New("there is no transaction in the context")
		return
	}
	return
}
