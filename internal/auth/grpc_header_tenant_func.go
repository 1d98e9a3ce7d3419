/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"google.golang.org/grpc/metadata"

	"github.com/tessellate/tenancy-service/internal/tenancy"
)

// GrpcHeaderTenantType is the name of the header based tenant resolution function.
const GrpcHeaderTenantType = "header"

// GrpcHeaderTenantFuncBuilder is a tenant resolution function that gets the tenant from the `x-tenant` header,
// which should contain a JSON document with the owner and creator identifiers, like this:
//
//	{
//		"owner": "acme",
//		"creator": "acme-east"
//	}
//
// The header is expected to be set by a trusted gateway that has already authenticated the caller; requests
// without it get the null tenant, and therefore see no data.
type GrpcHeaderTenantFuncBuilder struct {
	logger *slog.Logger
}

// grpcHeaderTenantFunc contains the data needed by the function.
type grpcHeaderTenantFunc struct {
	logger *slog.Logger
}

// grpcHeaderTenantDocument is the shape of the JSON document inside the header.
type grpcHeaderTenantDocument struct {
	Owner   string `json:"owner"`
	Creator string `json:"creator"`
}

// NewGrpcHeaderTenantFunc creates a builder that can then be used to configure and create a new header based
// tenant resolution function.
func NewGrpcHeaderTenantFunc() *GrpcHeaderTenantFuncBuilder {
	return &GrpcHeaderTenantFuncBuilder{}
}

// SetLogger sets the logger that will be used to write to the log. This is mandatory.
func (b *GrpcHeaderTenantFuncBuilder) SetLogger(value *slog.Logger) *GrpcHeaderTenantFuncBuilder {
	b.logger = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the function. This is optional.
func (b *GrpcHeaderTenantFuncBuilder) SetFlags(flags *pflag.FlagSet) *GrpcHeaderTenantFuncBuilder {
	// There are no flags for this function currently.
	return b
}

// Build uses the data stored in the builder to create and configure a new header based tenant resolution
// function.
func (b *GrpcHeaderTenantFuncBuilder) Build() (result GrpcTenantFunc, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Add the name of the header to the logger:
	logger := b.logger.With(slog.String("header", grpcTenantHeader))

	// Create and populate the object:
	object := &grpcHeaderTenantFunc{
		logger: logger,
	}
	result = object.call
	return
}

// call is the implementation of the `GrpcTenantFunc` type.
func (f *grpcHeaderTenantFunc) call(ctx context.Context, method string) (result context.Context, err error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		result = tenancy.ContextWithTenant(ctx, tenancy.NullContext())
		return
	}
	values := md.Get(grpcTenantHeader)
	count := len(values)
	if count == 0 {
		result = tenancy.ContextWithTenant(ctx, tenancy.NullContext())
		return
	}
	if count != 1 {
		f.logger.ErrorContext(
			ctx,
			"Expected exactly one value for the tenant header",
			slog.Any("values", values),
		)
		err = errors.New("too many values for tenant header")
		return
	}
	value := values[0]
	document := &grpcHeaderTenantDocument{}
	err = json.Unmarshal([]byte(value), document)
	if err != nil {
		f.logger.ErrorContext(
			ctx,
			"Failed to unmarshal tenant header",
			slog.String("value", value),
			slog.Any("error", err),
		)
		err = errors.New("failed to decode tenant header")
		return
	}
	document.Owner = strings.TrimSpace(document.Owner)
	document.Creator = strings.TrimSpace(document.Creator)
	if document.Owner == "" {
		f.logger.ErrorContext(
			ctx,
			"Owner from tenant header is empty",
			slog.String("value", value),
		)
		err = errors.New("tenant owner is empty")
		return
	}
	if document.Creator == "" {
		// The owner and the creator coincide when the owner itself is acting.
		document.Creator = document.Owner
	}
	tenant := tenancy.Context{
		OwnerID:   document.Owner,
		CreatorID: document.Creator,
	}
	f.logger.DebugContext(
		ctx,
		"Extracted tenant from header",
		slog.String("owner", tenant.OwnerID),
		slog.String("creator", tenant.CreatorID),
	)
	result = tenancy.ContextWithTenant(ctx, tenant)
	return
}

// grpcTenantHeader is the name of the header that should contain the tenant data.
const grpcTenantHeader = "x-tenant"
