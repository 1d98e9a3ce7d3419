/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package dao

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tessellate/tenancy-service/internal/database"
	"github.com/tessellate/tenancy-service/internal/json"
	"github.com/tessellate/tenancy-service/internal/metrics"
	"github.com/tessellate/tenancy-service/internal/tenancy"
)

// Object is the interface that should be satisfied by objects to be managed by the scoped DAO: an identifier plus
// the tenant aware capability. Record types usually embed tenancy.Attributes to get the latter.
type Object interface {
	tenancy.TenantAware

	// GetID returns the unique identifier of the object.
	GetID() string

	// SetID sets the unique identifier of the object.
	SetID(value string)
}

// ScopedDAOBuilder is a builder for creating tenant scoped data access objects.
type ScopedDAOBuilder[O Object] struct {
	logger         *slog.Logger
	table          string
	defaultOrder   string
	defaultLimit   int32
	maxLimit       int32
	eventCallbacks []EventCallback
	resolver       *tenancy.SecurityModelResolver
	registry       *tenancy.ModelRegistry
	metrics        *metrics.Metrics
}

// ScopedDAO provides generic data access operations scoped to the tenant of the current unit of work. It exposes
// the same surface as an unscoped accessor, so callers can't bypass scoping by picking the wrong type, and it
// injects the tenancy predicate into every query before it executes: no operation ever returns unfiltered
// results. It assumes that objects are stored in tables with the following columns:
//
//   - `id` - The unique identifier of the object.
//   - `creation_timestamp` - The time the object was created.
//   - `tenant_owner_id` - The identifier of the owner the object belongs to.
//   - `tenant_creator_id` - The identifier of the creator that produced the object.
//   - `data` - The serialized object, as a JSON document.
//
// The tenant columns are stamped once, when the object is first written, and never updated afterwards.
type ScopedDAO[O Object] struct {
	logger           *slog.Logger
	table            string
	defaultOrder     string
	defaultLimit     int32
	maxLimit         int32
	eventCallbacks   []EventCallback
	objectType       reflect.Type
	jsonEncoder      *json.Encoder
	filterTranslator *FilterTranslator[O]
	resolver         *tenancy.SecurityModelResolver
	registry         *tenancy.ModelRegistry
	metrics          *metrics.Metrics
}

// NewScopedDAO creates a builder that can then be used to configure and create a scoped DAO.
func NewScopedDAO[O Object]() *ScopedDAOBuilder[O] {
	return &ScopedDAOBuilder[O]{
		defaultLimit: 100,
		maxLimit:     1000,
	}
}

// SetLogger sets the logger. This is mandatory.
func (b *ScopedDAOBuilder[O]) SetLogger(value *slog.Logger) *ScopedDAOBuilder[O] {
	b.logger = value
	return b
}

// SetTable sets the table name. This is mandatory.
func (b *ScopedDAOBuilder[O]) SetTable(value string) *ScopedDAOBuilder[O] {
	b.table = value
	return b
}

// SetDefaultOrder sets the default order criteria to use when nothing has been requested by the user. This is
// optional and the default is no order. This is intended only for use in unit tests, where it is convenient to
// have some predictable ordering.
func (b *ScopedDAOBuilder[O]) SetDefaultOrder(value string) *ScopedDAOBuilder[O] {
	b.defaultOrder = value
	return b
}

// SetDefaultLimit sets the default number of items returned. It will be used when the value of the limit
// parameter of the list request is zero. This is optional, and the default is 100.
func (b *ScopedDAOBuilder[O]) SetDefaultLimit(value int) *ScopedDAOBuilder[O] {
	b.defaultLimit = int32(value)
	return b
}

// SetMaxLimit sets the maximum number of items returned. This is optional and the default value is 1000.
func (b *ScopedDAOBuilder[O]) SetMaxLimit(value int) *ScopedDAOBuilder[O] {
	b.maxLimit = int32(value)
	return b
}

// AddEventCallback adds a function that will be called to process events when the DAO creates, updates or deletes
// an object.
//
// The functions are called synchronously, in the same order they were added, and with the same context used by
// the DAO for its operations. If any of them returns an error the transaction will be rolled back.
func (b *ScopedDAOBuilder[O]) AddEventCallback(value EventCallback) *ScopedDAOBuilder[O] {
	b.eventCallbacks = append(b.eventCallbacks, value)
	return b
}

// SetResolver sets the security model resolver used to obtain the effective model of the current tenant. This is
// mandatory.
func (b *ScopedDAOBuilder[O]) SetResolver(value *tenancy.SecurityModelResolver) *ScopedDAOBuilder[O] {
	b.resolver = value
	return b
}

// SetRegistry sets the registry that maps effective security models to predicate builders. This is mandatory.
func (b *ScopedDAOBuilder[O]) SetRegistry(value *tenancy.ModelRegistry) *ScopedDAOBuilder[O] {
	b.registry = value
	return b
}

// SetMetrics sets the metrics. This is optional.
func (b *ScopedDAOBuilder[O]) SetMetrics(value *metrics.Metrics) *ScopedDAOBuilder[O] {
	b.metrics = value
	return b
}

// Build creates a new scoped DAO using the configuration stored in the builder.
func (b *ScopedDAOBuilder[O]) Build() (result *ScopedDAO[O], err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.table == "" {
		err = errors.New("table is mandatory")
		return
	}
	if b.resolver == nil {
		err = errors.New("resolver is mandatory")
		return
	}
	if b.registry == nil {
		err = errors.New("registry is mandatory")
		return
	}
	if b.defaultLimit <= 0 {
		err = fmt.Errorf("default limit must be a positive integer, but it is %d", b.defaultLimit)
		return
	}
	if b.maxLimit <= 0 {
		err = fmt.Errorf("max limit must be a positive integer, but it is %d", b.maxLimit)
		return
	}
	if b.maxLimit < b.defaultLimit {
		err = fmt.Errorf(
			"max limit must be greater or equal to default limit, but max limit is %d and default limit "+
				"is %d",
			b.maxLimit, b.defaultLimit,
		)
		return
	}

	// Check that the object type is a pointer to struct, as we need to create new instances when we read rows:
	var object O
	objectType := reflect.TypeOf(object)
	if objectType == nil || objectType.Kind() != reflect.Pointer || objectType.Elem().Kind() != reflect.Struct {
		err = fmt.Errorf("object type must be a pointer to struct, but it is '%v'", objectType)
		return
	}

	// Create the JSON encoder. We need this special encoder in order to ignore the identifier and tenant fields
	// because we save those in separate database columns and not in the JSON document where we save everything
	// else.
	jsonEncoder, err := json.NewEncoder().
		SetLogger(b.logger).
		AddIgnoredFields(
			"id",
			tenancy.TenantOwnerColumn,
			tenancy.TenantCreatorColumn,
		).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create JSON encoder: %w", err)
		return
	}

	// Create the filter translator:
	filterTranslator, err := NewFilterTranslator[O]().
		SetLogger(b.logger).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create filter translator: %w", err)
		return
	}

	// Create and populate the object:
	result = &ScopedDAO[O]{
		logger:           b.logger,
		table:            b.table,
		defaultOrder:     b.defaultOrder,
		defaultLimit:     b.defaultLimit,
		maxLimit:         b.maxLimit,
		eventCallbacks:   slices.Clone(b.eventCallbacks),
		objectType:       objectType,
		jsonEncoder:      jsonEncoder,
		filterTranslator: filterTranslator,
		resolver:         b.resolver,
		registry:         b.registry,
		metrics:          b.metrics,
	}
	return
}

// ListRequest represents the parameters for paginated queries.
type ListRequest struct {
	// Offset specifies the starting point.
	Offset int32

	// Limit specifies the maximum number of items.
	Limit int32

	// Filter is the CEL expression that defines which objects should be returned.
	Filter string
}

// ListResponse represents the result of a paginated query.
type ListResponse[I any] struct {
	// Size is the actual number of items returned.
	Size int32

	// Total is the total number of items available to the current tenant.
	Total int32

	// Items is the list of items.
	Items []I
}

// List retrieves the rows visible to the current tenant and deserializes them into a slice of objects.
func (d *ScopedDAO[O]) List(ctx context.Context, request ListRequest) (response ListResponse[O], err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	defer tx.ReportError(&err)
	response, err = d.list(ctx, tx, request)
	return
}

func (d *ScopedDAO[O]) list(ctx context.Context, tx database.Tx, request ListRequest) (response ListResponse[O],
	err error) {
	// Calculate the filter:
	filterBuffer := &strings.Builder{}
	parameters := []any{}
	if request.Filter != "" {
		var filter string
		filter, err = d.filterTranslator.Translate(ctx, request.Filter, &parameters)
		if err != nil {
			return
		}
		filterBuffer.WriteString(filter)
	}

	// Add the tenancy filter:
	err = d.AddTenancyFilter(ctx, filterBuffer, &parameters)
	if err != nil {
		return
	}

	// Calculate the order clause:
	var order string
	if d.defaultOrder != "" {
		order = d.defaultOrder
	}

	// Count the total number of results, disregarding the offset and the limit:
	sqlBuffer := &strings.Builder{}
	fmt.Fprintf(sqlBuffer, `select count(*) from %s where %s`, d.table, filterBuffer.String())
	sql := sqlBuffer.String()
	d.logger.DebugContext(
		ctx,
		"Running SQL query",
		slog.String("sql", sql),
		slog.Any("parameters", parameters),
	)
	row := tx.QueryRow(ctx, sql, parameters...)
	var total int
	err = row.Scan(&total)
	if err != nil {
		return
	}

	// Fetch the results:
	sqlBuffer.Reset()
	fmt.Fprintf(
		sqlBuffer,
		`
		select
			id,
			tenant_owner_id,
			tenant_creator_id,
			data
		from
			%s
		where
			%s
		`,
		d.table,
		filterBuffer.String(),
	)
	if order != "" {
		sqlBuffer.WriteString(" order by ")
		sqlBuffer.WriteString(order)
	}

	// Add the offset:
	offset := max(request.Offset, 0)
	parameters = append(parameters, offset)
	fmt.Fprintf(sqlBuffer, " offset $%d", len(parameters))

	// Add the limit:
	limit := request.Limit
	if limit < 0 {
		limit = 0
	} else if limit == 0 {
		limit = d.defaultLimit
	} else if limit > d.maxLimit {
		limit = d.maxLimit
	}
	parameters = append(parameters, limit)
	fmt.Fprintf(sqlBuffer, " limit $%d", len(parameters))

	// Execute the SQL query:
	sql = sqlBuffer.String()
	d.logger.DebugContext(
		ctx,
		"Running SQL query",
		slog.String("sql", sql),
		slog.Any("parameters", parameters),
	)
	itemsRows, err := tx.Query(ctx, sql, parameters...)
	if err != nil {
		return
	}
	defer itemsRows.Close()
	var items []O
	for itemsRows.Next() {
		var (
			id      string
			owner   string
			creator string
			data    []byte
		)
		err = itemsRows.Scan(
			&id,
			&owner,
			&creator,
			&data,
		)
		if err != nil {
			return
		}
		item := d.newObject()
		err = d.unmarshalData(data, item)
		if err != nil {
			return
		}
		item.SetID(id)
		item.SetTenantOwnerID(owner)
		item.SetTenantCreatorID(creator)
		items = append(items, item)
	}
	err = itemsRows.Err()
	if err != nil {
		return
	}

	// Populate the response:
	response.Size = int32(len(items))
	response.Total = int32(total)
	response.Items = items
	return
}

// Get retrieves a single row by its identifier and deserializes it into an object. Returns nil and no error if
// there is no row with the given identifier, or if the row isn't visible to the current tenant: invisible and
// nonexistent are indistinguishable on purpose.
func (d *ScopedDAO[O]) Get(ctx context.Context, id string) (result O, err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	defer tx.ReportError(&err)
	result, err = d.get(ctx, tx, id)
	return
}

func (d *ScopedDAO[O]) get(ctx context.Context, tx database.Tx, id string) (result O, err error) {
	// Add the id parameter:
	if id == "" {
		err = errors.New("object identifier is mandatory")
		return
	}
	filterBuffer := &strings.Builder{}
	parameters := []any{}
	parameters = append(parameters, id)
	filterBuffer.WriteString("id = $1")

	// Add the tenancy filter:
	err = d.AddTenancyFilter(ctx, filterBuffer, &parameters)
	if err != nil {
		return
	}

	// Create the SQL statement:
	sqlBuffer := &strings.Builder{}
	fmt.Fprintf(
		sqlBuffer,
		`
		select
			tenant_owner_id,
			tenant_creator_id,
			data
		from
			%s
		where
			%s
		`,
		d.table,
		filterBuffer.String(),
	)

	// Execute the SQL statement:
	sql := sqlBuffer.String()
	d.logger.DebugContext(
		ctx,
		"Running SQL query",
		slog.String("sql", sql),
		slog.Any("parameters", parameters),
	)
	row := tx.QueryRow(ctx, sql, parameters...)
	var (
		owner   string
		creator string
		data    []byte
	)
	err = row.Scan(
		&owner,
		&creator,
		&data,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	object := d.newObject()
	err = d.unmarshalData(data, object)
	if err != nil {
		return
	}
	object.SetID(id)
	object.SetTenantOwnerID(owner)
	object.SetTenantCreatorID(creator)
	result = object
	return
}

// Exists checks if a row with the given identifier exists and is visible to the current tenant.
func (d *ScopedDAO[O]) Exists(ctx context.Context, id string) (ok bool, err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	defer tx.ReportError(&err)
	ok, err = d.exists(ctx, tx, id)
	return
}

func (d *ScopedDAO[O]) exists(ctx context.Context, tx database.Tx, id string) (ok bool, err error) {
	// Add the id parameter:
	if id == "" {
		err = errors.New("object identifier is mandatory")
		return
	}
	filterBuffer := &strings.Builder{}
	parameters := []any{}
	parameters = append(parameters, id)
	filterBuffer.WriteString("id = $1")

	// Add the tenancy filter:
	err = d.AddTenancyFilter(ctx, filterBuffer, &parameters)
	if err != nil {
		return
	}

	// Build the SQL statement:
	sqlBuffer := &strings.Builder{}
	fmt.Fprintf(
		sqlBuffer,
		`
		select count(*) from %s where %s
		`,
		d.table,
		filterBuffer.String(),
	)

	// Execute the SQL statement:
	sql := sqlBuffer.String()
	d.logger.DebugContext(
		ctx,
		"Running SQL query",
		slog.String("sql", sql),
		slog.Any("parameters", parameters),
	)
	row := tx.QueryRow(ctx, sql, parameters...)
	var count int
	err = row.Scan(&count)
	if err != nil {
		return
	}
	ok = count > 0
	return
}

// Create adds a new row to the table with a generated identifier and serialized data. The tenant columns are
// stamped from the tenant of the current unit of work, unless the object already carries tenancy: stamping
// happens exactly once, and never again.
func (d *ScopedDAO[O]) Create(ctx context.Context, object O) (result O, err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	defer tx.ReportError(&err)
	result, err = d.create(ctx, tx, object)
	return
}

func (d *ScopedDAO[O]) create(ctx context.Context, tx database.Tx, object O) (result O, err error) {
	// Generate an identifier if needed:
	id := object.GetID()
	if id == "" {
		id = d.newID()
	}

	// Stamp the tenancy. The import is a no-op when the object has already been stamped.
	tenant := tenancy.TenantFromContext(ctx)
	object.ImportTenancyFrom(tenant)
	if object.GetTenantOwnerID() == "" {
		err = errors.New("can't create an object without a tenant in the context")
		return
	}

	// Save the object:
	data, err := d.marshalData(object)
	if err != nil {
		return
	}
	sql := fmt.Sprintf(
		`
		insert into %s (
			id,
			tenant_owner_id,
			tenant_creator_id,
			data
		) values (
			$1,
			$2,
			$3,
			$4
		)
		`,
		d.table,
	)
	d.logger.DebugContext(
		ctx,
		"Running SQL statement",
		slog.String("sql", sql),
		slog.String("id", id),
	)
	_, err = tx.Exec(ctx, sql, id, object.GetTenantOwnerID(), object.GetTenantCreatorID(), data)
	if err != nil {
		return
	}
	object.SetID(id)

	// Fire the event:
	err = d.fireEvent(ctx, Event{
		Type:   EventTypeCreated,
		Object: object,
	})
	if err != nil {
		return
	}

	result = object
	return
}

// Update modifies an existing row in the table by its identifier with the result of serializing the provided
// object. Rows that aren't visible to the current tenant aren't updated, and the tenant columns are never
// touched.
func (d *ScopedDAO[O]) Update(ctx context.Context, object O) (result O, err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	defer tx.ReportError(&err)
	result, err = d.update(ctx, tx, object)
	return
}

func (d *ScopedDAO[O]) update(ctx context.Context, tx database.Tx, object O) (result O, err error) {
	// Get the current object, through the same scoping as everything else, so that a tenant can't update what
	// it can't see:
	id := object.GetID()
	if id == "" {
		err = errors.New("object identifier is mandatory")
		return
	}
	current, err := d.get(ctx, tx, id)
	if err != nil {
		return
	}
	if d.isNil(current) {
		return
	}

	// Do nothing if there are no changes:
	equal, err := d.equivalent(current, object)
	if err != nil {
		return
	}
	if equal {
		result = object
		return
	}

	// Save the object:
	data, err := d.marshalData(object)
	if err != nil {
		return
	}
	parameters := []any{data, id}
	filterBuffer := &strings.Builder{}
	filterBuffer.WriteString("id = $2")
	err = d.AddTenancyFilter(ctx, filterBuffer, &parameters)
	if err != nil {
		return
	}
	sql := fmt.Sprintf(
		`
		update %s set
			data = $1
		where
			%s
		`,
		d.table,
		filterBuffer.String(),
	)
	d.logger.DebugContext(
		ctx,
		"Running SQL statement",
		slog.String("sql", sql),
		slog.String("id", id),
	)
	count, err := tx.Exec(ctx, sql, parameters...)
	if err != nil {
		return
	}
	if count == 0 {
		return
	}

	// Fire the event:
	err = d.fireEvent(ctx, Event{
		Type:   EventTypeUpdated,
		Object: object,
	})
	if err != nil {
		return
	}

	result = object
	return
}

// Delete removes a row from the table by its identifier. Rows that aren't visible to the current tenant aren't
// deleted, and no error is reported for them: invisible and nonexistent are indistinguishable.
func (d *ScopedDAO[O]) Delete(ctx context.Context, id string) (err error) {
	tx, err := database.TxFromContext(ctx)
	if err != nil {
		return
	}
	defer tx.ReportError(&err)
	err = d.delete(ctx, tx, id)
	return
}

func (d *ScopedDAO[O]) delete(ctx context.Context, tx database.Tx, id string) (err error) {
	// Add the id parameter:
	if id == "" {
		err = errors.New("object identifier is mandatory")
		return
	}
	filterBuffer := &strings.Builder{}
	parameters := []any{}
	parameters = append(parameters, id)
	filterBuffer.WriteString("id = $1")

	// Add the tenancy filter:
	err = d.AddTenancyFilter(ctx, filterBuffer, &parameters)
	if err != nil {
		return
	}

	// Delete the row and simultaneously retrieve the data, as we need it to fire the event later:
	sqlBuffer := &strings.Builder{}
	fmt.Fprintf(
		sqlBuffer,
		`
		delete from %s
		where
			%s
		returning
			tenant_owner_id,
			tenant_creator_id,
			data
		`,
		d.table,
		filterBuffer.String(),
	)

	// Execute the SQL statement:
	sql := sqlBuffer.String()
	d.logger.DebugContext(
		ctx,
		"Running SQL statement",
		slog.String("sql", sql),
		slog.Any("parameters", parameters),
	)
	row := tx.QueryRow(ctx, sql, parameters...)
	var (
		owner   string
		creator string
		data    []byte
	)
	err = row.Scan(
		&owner,
		&creator,
		&data,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	object := d.newObject()
	err = d.unmarshalData(data, object)
	if err != nil {
		return
	}
	object.SetID(id)
	object.SetTenantOwnerID(owner)
	object.SetTenantCreatorID(creator)

	// Fire the event:
	err = d.fireEvent(ctx, Event{
		Type:   EventTypeDeleted,
		Object: object,
	})
	return
}

// AddTenancyFilter appends to the given buffer the clause that restricts results to the records that the tenant
// of the current unit of work may see. It resolves the effective security model of the tenant, looks up the
// predicate builder registered for it, and lets the builder append its clause. The DAO calls this for every
// operation; it is exported so that custom finder methods built on the same transaction can apply exactly the
// same scoping.
func (d *ScopedDAO[O]) AddTenancyFilter(ctx context.Context, buffer *strings.Builder, parameters *[]any) error {
	// Resolve the effective security model of the current tenant:
	tenant := tenancy.TenantFromContext(ctx)
	model, err := d.resolver.ResolveTenant(ctx, tenant)
	if err != nil {
		return err
	}

	// Find the predicate builder for the model. An unknown model is a hard failure: the query must not run
	// unfiltered.
	builder, err := d.registry.Lookup(model)
	if err != nil {
		return err
	}
	d.metrics.ObserveScopedQuery(d.table, model.String())

	// Let the builder write its clause:
	predicateBuffer := &strings.Builder{}
	err = builder(ctx, tenant, predicateBuffer, parameters)
	if err != nil {
		return err
	}
	if predicateBuffer.Len() == 0 {
		return fmt.Errorf(
			"predicate builder for security model '%s' produced no clause",
			model,
		)
	}

	// Add the text to the buffer. Note that if the buffer isn't empty then we need to wrap the previous
	// content in parentheses and add the tenancy filter with the 'and' operator.
	if buffer.Len() == 0 {
		buffer.WriteString(predicateBuffer.String())
	} else {
		previous := buffer.String()
		buffer.Reset()
		fmt.Fprintf(buffer, "(%s) and %s", previous, predicateBuffer.String())
	}
	return nil
}

func (d *ScopedDAO[O]) fireEvent(ctx context.Context, event Event) error {
	event.Table = d.table
	for _, eventCallback := range d.eventCallbacks {
		err := eventCallback(ctx, event)
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *ScopedDAO[O]) newID() string {
	return uuid.NewString()
}

func (d *ScopedDAO[O]) newObject() O {
	return reflect.New(d.objectType.Elem()).Interface().(O)
}

func (d *ScopedDAO[O]) isNil(object O) bool {
	return reflect.ValueOf(object).IsNil()
}

func (d *ScopedDAO[O]) marshalData(object O) (result []byte, err error) {
	result, err = d.jsonEncoder.Marshal(object)
	return
}

func (d *ScopedDAO[O]) unmarshalData(data []byte, object O) error {
	return d.jsonEncoder.Unmarshal(data, object)
}

// equivalent checks if two objects serialize to the same document, this is, if they are equal except maybe in the
// fields that live in their own columns and are immutable anyhow.
func (d *ScopedDAO[O]) equivalent(x, y O) (result bool, err error) {
	xData, err := d.marshalData(x)
	if err != nil {
		return
	}
	yData, err := d.marshalData(y)
	if err != nil {
		return
	}
	result = bytes.Equal(xData, yData)
	return
}
