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

	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// GrpcTenantInterceptorBuilder contains the data and logic needed to create the tenant resolution interceptor.
type GrpcTenantInterceptorBuilder struct {
	logger   *slog.Logger
	function GrpcTenantFunc
}

// GrpcTenantInterceptor resolves the tenant of each incoming unary call before the handler runs, so that any data
// access performed by the handler goes through the scoping layer with the right tenant in the context.
type GrpcTenantInterceptor struct {
	logger   *slog.Logger
	function GrpcTenantFunc
}

// NewGrpcTenantInterceptor creates a builder that can then be used to configure and create the tenant resolution
// interceptor.
func NewGrpcTenantInterceptor() *GrpcTenantInterceptorBuilder {
	return &GrpcTenantInterceptorBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *GrpcTenantInterceptorBuilder) SetLogger(value *slog.Logger) *GrpcTenantInterceptorBuilder {
	b.logger = value
	return b
}

// SetFunc sets the tenant resolution function. This is mandatory.
func (b *GrpcTenantInterceptorBuilder) SetFunc(value GrpcTenantFunc) *GrpcTenantInterceptorBuilder {
	b.function = value
	return b
}

// Build creates the tenant resolution interceptor using the configuration stored in the builder.
func (b *GrpcTenantInterceptorBuilder) Build() (result *GrpcTenantInterceptor, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.function == nil {
		err = errors.New("function is mandatory")
		return
	}

	// Create and populate the object:
	result = &GrpcTenantInterceptor{
		logger:   b.logger,
		function: b.function,
	}
	return
}

// UnaryServer is the unary server interceptor.
func (i *GrpcTenantInterceptor) UnaryServer(ctx context.Context, request any, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (response any, err error) {
	ctx, err = i.function(ctx, info.FullMethod)
	if err != nil {
		i.logger.ErrorContext(
			ctx,
			"Failed to resolve tenant",
			slog.String("method", info.FullMethod),
			slog.Any("error", err),
		)
		err = grpcstatus.Error(grpccodes.Unauthenticated, "failed to resolve tenant")
		return
	}
	response, err = handler(ctx, request)
	return
}
