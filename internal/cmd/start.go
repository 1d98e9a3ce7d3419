/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/tessellate/tenancy-service/internal/auth"
	"github.com/tessellate/tenancy-service/internal/config"
	"github.com/tessellate/tenancy-service/internal/database"
	"github.com/tessellate/tenancy-service/internal/logging"
	"github.com/tessellate/tenancy-service/internal/metrics"
)

// NewStartCommand creates the command that starts the service.
func NewStartCommand() *cobra.Command {
	runner := &startRunner{}
	return &cobra.Command{
		Use:   "start",
		Short: "Starts the service",
		RunE:  runner.run,
	}
}

// startRunner contains the data and logic of the start command.
type startRunner struct {
	logger *slog.Logger
}

func (r *startRunner) run(command *cobra.Command, args []string) error {
	ctx := command.Context()

	// Create the logger:
	logger, err := logging.NewLogger().
		SetFlags(command.Flags()).
		Build()
	if err != nil {
		return err
	}
	r.logger = logger

	// Load the configuration:
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Apply the migrations:
	migrations, err := database.NewMigrations().
		SetLogger(logger).
		SetURL(cfg.DatabaseURL).
		Build()
	if err != nil {
		return err
	}
	err = migrations.Run()
	if err != nil {
		return err
	}

	// Create the database connection pool:
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	// Create and register the metrics:
	_, err = metrics.NewMetrics().
		SetRegisterer(prometheus.DefaultRegisterer).
		Build()
	if err != nil {
		return err
	}

	// Create the transaction manager:
	txManager, err := database.NewTxManager().
		SetLogger(logger).
		SetPool(pool).
		Build()
	if err != nil {
		return err
	}

	// Create the tenant resolution function:
	var tenantFunc auth.GrpcTenantFunc
	switch cfg.TenantResolver {
	case auth.GrpcHeaderTenantType:
		tenantFunc, err = auth.NewGrpcHeaderTenantFunc().
			SetLogger(logger).
			SetFlags(command.Flags()).
			Build()
	case auth.GrpcJwtTenantType:
		tenantFunc, err = auth.NewGrpcJwtTenantFunc().
			SetLogger(logger).
			SetKey([]byte(cfg.JwtKey)).
			SetFlags(command.Flags()).
			Build()
	default:
		err = fmt.Errorf("unknown tenant resolver '%s'", cfg.TenantResolver)
	}
	if err != nil {
		return err
	}

	// Create the interceptors:
	tenantInterceptor, err := auth.NewGrpcTenantInterceptor().
		SetLogger(logger).
		SetFunc(tenantFunc).
		Build()
	if err != nil {
		return err
	}
	txInterceptor, err := database.NewGrpcTxInterceptor().
		SetLogger(logger).
		SetManager(txManager).
		Build()
	if err != nil {
		return err
	}

	// Create the gRPC server. The tenant interceptor runs first, so that the transaction and everything that
	// happens inside it already sees the resolved tenant.
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			tenantInterceptor.UnaryServer,
			txInterceptor.UnaryServer,
		),
	)
	healthv1.RegisterHealthServer(server, health.NewServer())

	// Start the metrics server:
	go func() {
		err := http.ListenAndServe(cfg.MetricsAddr, promhttp.Handler())
		if err != nil {
			logger.Error(
				"Metrics server finished",
				slog.Any("error", err),
			)
		}
	}()

	// Start the gRPC server:
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on '%s': %w", cfg.ListenAddr, err)
	}
	logger.Info(
		"Listening",
		slog.String("address", cfg.ListenAddr),
		slog.String("resolver", cfg.TenantResolver),
	)
	return server.Serve(listener)
}
