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
)

// Context is the value that describes the tenant that is acting during one unit of work: the owner account, the
// creator sub-account within it, and optionally the already resolved effective security model. It is constructed
// once, by whatever collaborator resolves the inbound request, and is treated as an immutable snapshot afterwards.
// Each concurrent unit of work must carry its own value: there is deliberately no process-wide current tenant.
type Context struct {
	// OwnerID is the identifier of the owner account. It is empty only for the null tenant, in which case no
	// stored record will ever match.
	OwnerID string

	// CreatorID is the identifier of the creator sub-account. It may be equal to the owner identifier when the
	// owner itself created the records.
	CreatorID string

	// Model is the effective security model, when it has already been resolved. When empty, or when it is the
	// 'inherit' tag, the scoping layer resolves it against the participant hierarchy before building a
	// predicate.
	Model SecurityModel
}

// Absent returns true when the context doesn't identify a real tenant. The predicates built for an absent context
// match no stored record, so data access through the scoping layer fails closed instead of failing open.
func (c Context) Absent() bool {
	return c.OwnerID == ""
}

// NullContext returns the context of the null tenant.
func NullContext() Context {
	return Context{}
}

// contextKeyType is the type of the key used to store the tenant in the context.
type contextKeyType int

// contextKeyValue is the key used to store the tenant in the context.
const contextKeyValue contextKeyType = 0

// ContextWithTenant returns a copy of the given context containing the given tenant.
func ContextWithTenant(ctx context.Context, tenant Context) context.Context {
	return context.WithValue(ctx, contextKeyValue, tenant)
}

// TenantFromContext returns the tenant stored in the context. If there is none it returns the null context, so that
// callers don't need to check: queries scoped with it match nothing.
func TenantFromContext(ctx context.Context) Context {
	tenant, ok := ctx.Value(contextKeyValue).(Context)
	if !ok {
		return NullContext()
	}
	return tenant
}
