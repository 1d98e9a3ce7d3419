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

	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// GrpcTxInterceptorBuilder contains the data and logic needed to create the transaction interceptor.
type GrpcTxInterceptorBuilder struct {
	logger  *slog.Logger
	manager *TxManager
}

// GrpcTxInterceptor begins a database transaction for each incoming unary call and puts it in the context, so
// that all the data access performed by the handler happens in one unit of work. The transaction is committed
// when the handler succeeds and rolled back when it fails.
type GrpcTxInterceptor struct {
	logger  *slog.Logger
	manager *TxManager
}

// NewGrpcTxInterceptor creates a builder that can then be used to configure and create the transaction
// interceptor.
func NewGrpcTxInterceptor() *GrpcTxInterceptorBuilder {
	return &GrpcTxInterceptorBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *GrpcTxInterceptorBuilder) SetLogger(value *slog.Logger) *GrpcTxInterceptorBuilder {
	b.logger = value
	return b
}

// SetManager sets the transaction manager. This is mandatory.
func (b *GrpcTxInterceptorBuilder) SetManager(value *TxManager) *GrpcTxInterceptorBuilder {
	b.manager = value
	return b
}

// Build creates the transaction interceptor using the configuration stored in the builder.
func (b *GrpcTxInterceptorBuilder) Build() (result *GrpcTxInterceptor, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.manager == nil {
		err = errors.New("manager is mandatory")
		return
	}

	// Create and populate the object:
	result = &GrpcTxInterceptor{
		logger:  b.logger,
		manager: b.manager,
	}
	return
}

// UnaryServer is the unary server interceptor.
func (i *GrpcTxInterceptor) UnaryServer(ctx context.Context, request any, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (response any, err error) {
	tx, err := i.manager.Begin(ctx)
	if err != nil {
		i.logger.ErrorContext(
			ctx,
			"Failed to begin transaction",
			slog.String("method", info.FullMethod),
			slog.Any("error", err),
		)
		err = grpcstatus.Error(grpccodes.Internal, "failed to begin transaction")
		return
	}
	ctx = TxIntoContext(ctx, tx)
	response, err = handler(ctx, request)
	tx.ReportError(&err)
	endErr := i.manager.End(ctx, tx)
	if endErr != nil {
		i.logger.ErrorContext(
			ctx,
			"Failed to end transaction",
			slog.String("method", info.FullMethod),
			slog.Any("error", endErr),
		)
		if err == nil {
			err = grpcstatus.Error(grpccodes.Internal, "failed to end transaction")
		}
	}
	return
}
