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
	"errors"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"
	"google.golang.org/grpc/metadata"

	"github.com/tessellate/tenancy-service/internal/tenancy"
)

// GrpcJwtTenantType is the name of the JWT based tenant resolution function.
const GrpcJwtTenantType = "jwt"

// GrpcJwtTenantFuncBuilder is a tenant resolution function that gets the tenant from the claims of the bearer
// token in the `authorization` header. The token must be signed with the configured HMAC key and carry the
// `tenant_owner` claim, and optionally the `tenant_creator` claim:
//
//	{
//		"sub": "jane.doe",
//		"tenant_owner": "acme",
//		"tenant_creator": "acme-east"
//	}
//
// Requests without a token get the null tenant, and therefore see no data. Requests with an invalid token are
// rejected.
type GrpcJwtTenantFuncBuilder struct {
	logger *slog.Logger
	key    []byte
}

// grpcJwtTenantFunc contains the data needed by the function.
type grpcJwtTenantFunc struct {
	logger *slog.Logger
	key    []byte
}

// NewGrpcJwtTenantFunc creates a builder that can then be used to configure and create a new JWT based tenant
// resolution function.
func NewGrpcJwtTenantFunc() *GrpcJwtTenantFuncBuilder {
	return &GrpcJwtTenantFuncBuilder{}
}

// SetLogger sets the logger that will be used to write to the log. This is mandatory.
func (b *GrpcJwtTenantFuncBuilder) SetLogger(value *slog.Logger) *GrpcJwtTenantFuncBuilder {
	b.logger = value
	return b
}

// SetKey sets the HMAC key used to verify the token signatures. This is mandatory.
func (b *GrpcJwtTenantFuncBuilder) SetKey(value []byte) *GrpcJwtTenantFuncBuilder {
	b.key = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the function. This is optional.
func (b *GrpcJwtTenantFuncBuilder) SetFlags(flags *pflag.FlagSet) *GrpcJwtTenantFuncBuilder {
	// There are no flags for this function currently.
	return b
}

// Build uses the data stored in the builder to create and configure a new JWT based tenant resolution function.
func (b *GrpcJwtTenantFuncBuilder) Build() (result GrpcTenantFunc, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if len(b.key) == 0 {
		err = errors.New("key is mandatory")
		return
	}

	// Create and populate the object:
	object := &grpcJwtTenantFunc{
		logger: b.logger,
		key:    b.key,
	}
	result = object.call
	return
}

// call is the implementation of the `GrpcTenantFunc` type.
func (f *grpcJwtTenantFunc) call(ctx context.Context, method string) (result context.Context, err error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		result = tenancy.ContextWithTenant(ctx, tenancy.NullContext())
		return
	}
	values := md.Get(grpcAuthorizationHeader)
	if len(values) == 0 {
		result = tenancy.ContextWithTenant(ctx, tenancy.NullContext())
		return
	}
	if len(values) != 1 {
		err = errors.New("too many values for authorization header")
		return
	}
	raw, found := strings.CutPrefix(values[0], grpcBearerPrefix)
	if !found {
		err = errors.New("authorization header doesn't contain a bearer token")
		return
	}

	// Verify the token and extract the claims:
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(
		raw, claims,
		func(token *jwt.Token) (any, error) {
			return f.key, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		f.logger.ErrorContext(
			ctx,
			"Failed to verify bearer token",
			slog.Any("error", err),
		)
		err = errors.New("failed to verify bearer token")
		return
	}
	owner, _ := claims[grpcJwtOwnerClaim].(string)
	creator, _ := claims[grpcJwtCreatorClaim].(string)
	owner = strings.TrimSpace(owner)
	creator = strings.TrimSpace(creator)
	if owner == "" {
		f.logger.ErrorContext(
			ctx,
			"Bearer token doesn't contain the tenant owner claim",
			slog.String("claim", grpcJwtOwnerClaim),
		)
		err = errors.New("tenant owner claim is missing")
		return
	}
	if creator == "" {
		creator = owner
	}
	tenant := tenancy.Context{
		OwnerID:   owner,
		CreatorID: creator,
	}
	f.logger.DebugContext(
		ctx,
		"Extracted tenant from bearer token",
		slog.String("owner", tenant.OwnerID),
		slog.String("creator", tenant.CreatorID),
	)
	result = tenancy.ContextWithTenant(ctx, tenant)
	return
}

// Names of the headers and claims used by the JWT based tenant resolution:
const (
	grpcAuthorizationHeader = "authorization"
	grpcBearerPrefix        = "Bearer "
	grpcJwtOwnerClaim       = "tenant_owner"
	grpcJwtCreatorClaim     = "tenant_creator"
)
