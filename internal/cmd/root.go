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
	"github.com/spf13/cobra"

	"github.com/tessellate/tenancy-service/internal/logging"
)

// NewRootCommand creates the root command of the service.
func NewRootCommand() *cobra.Command {
	result := &cobra.Command{
		Use:          "tenancy-service",
		Short:        "Multi-tenant data scoping service",
		SilenceUsage: true,
	}
	logging.AddFlags(result.PersistentFlags())
	result.AddCommand(NewStartCommand())
	result.AddCommand(NewMigrateCommand())
	return result
}
