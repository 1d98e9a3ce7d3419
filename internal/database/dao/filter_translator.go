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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/tessellate/tenancy-service/internal/tenancy"
)

// UnsupportedFilterError is returned when a filter expression uses something that can't be translated to SQL.
type UnsupportedFilterError struct {
	// Filter is the source text of the filter.
	Filter string

	// Reason describes what exactly isn't supported.
	Reason string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("unsupported filter '%s': %s", e.Filter, e.Reason)
}

// FilterTranslatorBuilder contains the data and logic needed to create filter translators.
type FilterTranslatorBuilder[O Object] struct {
	logger *slog.Logger
}

// FilterTranslator translates CEL filter expressions into SQL clauses over the `data` column. The expressions
// refer to the object as `this`, for example:
//
//	this.title == 'my title' && this.priority >= 3
//
// The supported subset is deliberately small: field selection on `this`, comparisons against literals, and the
// logical operators. Everything else is reported as an UnsupportedFilterError. The field names accepted are those
// of the object type, taken from its JSON tags; the identifier is translated to its own column, and the tenant
// fields aren't accepted at all, as the tenancy filter owns them.
type FilterTranslator[O Object] struct {
	logger  *slog.Logger
	env     *cel.Env
	columns map[string]string
}

// NewFilterTranslator creates a builder that can then be used to configure and create a filter translator.
func NewFilterTranslator[O Object]() *FilterTranslatorBuilder[O] {
	return &FilterTranslatorBuilder[O]{}
}

// SetLogger sets the logger. This is mandatory.
func (b *FilterTranslatorBuilder[O]) SetLogger(value *slog.Logger) *FilterTranslatorBuilder[O] {
	b.logger = value
	return b
}

// Build creates a new filter translator using the configuration stored in the builder.
func (b *FilterTranslatorBuilder[O]) Build() (result *FilterTranslator[O], err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create the CEL environment. The object is declared as dynamic because the fields are checked during the
	// translation, where we can produce a better error message.
	env, err := cel.NewEnv(
		cel.Variable(filterThisName, cel.DynType),
	)
	if err != nil {
		err = fmt.Errorf("failed to create CEL environment: %w", err)
		return
	}

	// Calculate the mapping from field names to column expressions:
	var object O
	objectType := reflect.TypeOf(object)
	if objectType == nil || objectType.Kind() != reflect.Pointer || objectType.Elem().Kind() != reflect.Struct {
		err = fmt.Errorf("object type must be a pointer to struct, but it is '%v'", objectType)
		return
	}
	columns := map[string]string{}
	collectFilterColumns(objectType.Elem(), columns)

	// Create and populate the object:
	result = &FilterTranslator[O]{
		logger:  b.logger,
		env:     env,
		columns: columns,
	}
	return
}

// collectFilterColumns adds to the given map the column expression for each field of the given struct type,
// descending into embedded structs. The identifier and the tenant fields have dedicated columns or are owned by
// the tenancy filter, so they are handled apart.
func collectFilterColumns(structType reflect.Type, columns map[string]string) {
	for i := range structType.NumField() {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFilterColumns(field.Type, columns)
			continue
		}
		name := field.Tag.Get("json")
		if comma := strings.Index(name, ","); comma != -1 {
			name = name[:comma]
		}
		if name == "" {
			name = field.Name
		}
		if name == "-" {
			continue
		}
		switch name {
		case "id":
			columns[name] = "id"
		case tenancy.TenantOwnerColumn, tenancy.TenantCreatorColumn:
			// The tenancy filter owns these.
		default:
			columns[name] = fmt.Sprintf("(data ->> '%s')", name)
		}
	}
}

// Translate converts the given CEL filter into a SQL boolean clause, appending the bound values to the given
// parameters slice and referencing them with positional placeholders.
func (t *FilterTranslator[O]) Translate(ctx context.Context, filter string, parameters *[]any) (result string,
	err error) {
	tree, issues := t.env.Parse(filter)
	if issues != nil && issues.Err() != nil {
		err = &UnsupportedFilterError{
			Filter: filter,
			Reason: issues.Err().Error(),
		}
		return
	}
	buffer := &strings.Builder{}
	err = t.translateExpr(filter, tree.NativeRep().Expr(), buffer, parameters)
	if err != nil {
		return
	}
	result = buffer.String()
	return
}

func (t *FilterTranslator[O]) translateExpr(filter string, expr celast.Expr, buffer *strings.Builder,
	parameters *[]any) error {
	if expr.Kind() != celast.CallKind {
		return t.unsupported(filter, "expected a boolean expression")
	}
	call := expr.AsCall()
	args := call.Args()
	switch call.FunctionName() {
	case operators.LogicalAnd, operators.LogicalOr:
		connective := "and"
		if call.FunctionName() == operators.LogicalOr {
			connective = "or"
		}
		buffer.WriteString("(")
		for i, arg := range args {
			if i > 0 {
				fmt.Fprintf(buffer, " %s ", connective)
			}
			err := t.translateExpr(filter, arg, buffer, parameters)
			if err != nil {
				return err
			}
		}
		buffer.WriteString(")")
		return nil
	case operators.LogicalNot:
		buffer.WriteString("not (")
		err := t.translateExpr(filter, args[0], buffer, parameters)
		if err != nil {
			return err
		}
		buffer.WriteString(")")
		return nil
	case operators.Equals, operators.NotEquals, operators.Less, operators.LessEquals, operators.Greater,
		operators.GreaterEquals:
		return t.translateComparison(filter, call.FunctionName(), args, buffer, parameters)
	default:
		return t.unsupported(filter, fmt.Sprintf("function '%s' isn't supported", call.FunctionName()))
	}
}

func (t *FilterTranslator[O]) translateComparison(filter string, function string, args []celast.Expr,
	buffer *strings.Builder, parameters *[]any) error {
	if len(args) != 2 {
		return t.unsupported(filter, "comparisons must have exactly two operands")
	}

	// One of the operands must be a field of the object and the other a literal, in either order. When the
	// literal is on the left the operator is mirrored, so that the column always ends up on the left of the
	// generated SQL.
	left, right := args[0], args[1]
	operator := filterOperators[function]
	if left.Kind() == celast.LiteralKind {
		left, right = right, left
		operator = filterMirrors[operator]
	}
	column, err := t.fieldColumn(filter, left)
	if err != nil {
		return err
	}
	if right.Kind() != celast.LiteralKind {
		return t.unsupported(filter, "comparisons must have a field on one side and a literal on the other")
	}
	value, cast, err := t.literalValue(filter, right.AsLiteral())
	if err != nil {
		return err
	}
	if column == "id" && cast != "" {
		return t.unsupported(filter, "the identifier can only be compared to strings")
	}
	if column != "id" {
		column = column + cast
	}
	*parameters = append(*parameters, value)
	fmt.Fprintf(buffer, "%s %s $%d", column, operator, len(*parameters))
	return nil
}

func (t *FilterTranslator[O]) fieldColumn(filter string, expr celast.Expr) (result string, err error) {
	if expr.Kind() != celast.SelectKind {
		err = t.unsupported(filter, "comparisons must have a field on one side and a literal on the other")
		return
	}
	sel := expr.AsSelect()
	operand := sel.Operand()
	if operand.Kind() != celast.IdentKind || operand.AsIdent() != filterThisName {
		err = t.unsupported(filter, fmt.Sprintf("fields must be selected from '%s'", filterThisName))
		return
	}
	result, ok := t.columns[sel.FieldName()]
	if !ok {
		err = t.unsupported(filter, fmt.Sprintf("the object doesn't have a '%s' field", sel.FieldName()))
		return
	}
	return
}

func (t *FilterTranslator[O]) literalValue(filter string, literal ref.Val) (value any, cast string, err error) {
	switch typed := literal.(type) {
	case types.String:
		value = string(typed)
	case types.Int:
		value = int64(typed)
		cast = "::numeric"
	case types.Uint:
		value = uint64(typed)
		cast = "::numeric"
	case types.Double:
		value = float64(typed)
		cast = "::numeric"
	case types.Bool:
		value = bool(typed)
		cast = "::boolean"
	default:
		err = t.unsupported(filter, fmt.Sprintf("literals of type '%s' aren't supported", literal.Type()))
	}
	return
}

func (t *FilterTranslator[O]) unsupported(filter string, reason string) error {
	return &UnsupportedFilterError{
		Filter: filter,
		Reason: reason,
	}
}

// filterThisName is the name that filter expressions use to refer to the object.
const filterThisName = "this"

// filterOperators maps the CEL comparison functions to the SQL operators.
var filterOperators = map[string]string{
	operators.Equals:        "=",
	operators.NotEquals:     "<>",
	operators.Less:          "<",
	operators.LessEquals:    "<=",
	operators.Greater:       ">",
	operators.GreaterEquals: ">=",
}

// filterMirrors maps each SQL comparison operator to its mirror, used when the literal is on the left side.
var filterMirrors = map[string]string{
	"=":  "=",
	"<>": "<>",
	"<":  ">",
	"<=": ">=",
	">":  "<",
	">=": "<=",
}
