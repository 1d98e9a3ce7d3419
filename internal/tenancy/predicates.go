/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package tenancy

import (
	"context"
	"fmt"
	"strings"
)

// Names of the columns that tenant aware tables use to record the tenancy of each row. The values are stamped once
// at creation time and the scoping layer only ever reads them: there is deliberately no foreign key towards the
// participant tables, as the hierarchy may live in a different store.
const (
	TenantOwnerColumn   = "tenant_owner_id"
	TenantCreatorColumn = "tenant_creator_id"
)

// PredicateBuilder is a function that appends to the given buffer the SQL boolean clause that restricts a query to
// the records visible to the given tenant, adding the bound values to the parameters slice and referencing them
// with positional placeholders. Builders must always append a clause: when a tenant should see nothing the clause
// must match nothing, it must never be omitted.
type PredicateBuilder func(ctx context.Context, tenant Context, buffer *strings.Builder, parameters *[]any) error

// SharedPredicate returns the predicate builder for the 'shared' model: every record of the owner is visible,
// regardless of which creator produced it.
func SharedPredicate() PredicateBuilder {
	return func(ctx context.Context, tenant Context, buffer *strings.Builder, parameters *[]any) error {
		*parameters = append(*parameters, tenant.OwnerID)
		fmt.Fprintf(buffer, "%s = $%d", TenantOwnerColumn, len(*parameters))
		return nil
	}
}

// ClosedPredicate returns the predicate builder for the 'closed' model: only the records produced by the acting
// creator itself are visible. Note that for the null tenant both bound values are empty strings, which never match
// a stamped record, so the null tenant naturally sees nothing.
func ClosedPredicate() PredicateBuilder {
	return func(ctx context.Context, tenant Context, buffer *strings.Builder, parameters *[]any) error {
		*parameters = append(*parameters, tenant.OwnerID)
		fmt.Fprintf(buffer, "%s = $%d", TenantOwnerColumn, len(*parameters))
		*parameters = append(*parameters, tenant.CreatorID)
		fmt.Fprintf(buffer, " and %s = $%d", TenantCreatorColumn, len(*parameters))
		return nil
	}
}

// UserPredicate returns the predicate builder for the 'user' model: the records of the creators that the given
// membership logic reports as accessible are visible. A nil or empty set binds an empty array, so the predicate
// matches nothing rather than everything when the membership data is missing.
func UserPredicate(membership MembershipLogic) PredicateBuilder {
	return func(ctx context.Context, tenant Context, buffer *strings.Builder, parameters *[]any) error {
		creators, err := membership.AccessibleCreators(ctx, tenant)
		if err != nil {
			return err
		}
		if creators == nil {
			creators = []string{}
		}
		*parameters = append(*parameters, tenant.OwnerID)
		fmt.Fprintf(buffer, "%s = $%d", TenantOwnerColumn, len(*parameters))
		*parameters = append(*parameters, creators)
		fmt.Fprintf(buffer, " and %s = any($%d)", TenantCreatorColumn, len(*parameters))
		return nil
	}
}
