/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the prefix of the environment variables, so for example the database URL is taken from
// `TENANCY_DATABASE_URL`.
const envPrefix = "tenancy"

// Config contains the configuration of the service, taken from the environment.
type Config struct {
	// DatabaseURL is the URL of the PostgreSQL database.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// ListenAddr is the address where the gRPC server listens.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"0.0.0.0:8000"`

	// MetricsAddr is the address where the metrics HTTP server listens.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:"0.0.0.0:8001"`

	// TenantResolver selects how the tenant of each request is resolved: 'header' or 'jwt'.
	TenantResolver string `envconfig:"TENANT_RESOLVER" default:"header"`

	// JwtKey is the HMAC key used to verify bearer tokens. Mandatory when the tenant resolver is 'jwt'.
	JwtKey string `envconfig:"JWT_KEY"`

	// MembershipFile is the name of an optional YAML file with static membership sets. When empty the
	// membership sets are read from the database.
	MembershipFile string `envconfig:"MEMBERSHIP_FILE"`
}

// Load reads the configuration from the environment.
func Load() (result Config, err error) {
	err = envconfig.Process(envPrefix, &result)
	if err != nil {
		err = fmt.Errorf("failed to load configuration: %w", err)
		return
	}
	return
}
