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
)

// GrpcTenantFunc is the signature of the functions that resolve the tenant of an incoming gRPC request. The
// function receives the context of the request and the full name of the invoked method, and returns a context
// containing the resolved tenant. When no tenant can be resolved the function must put the null tenant in the
// context, so that queries scoped with it match nothing: the scoping layer never skips filtering just because
// resolution produced nothing.
type GrpcTenantFunc func(ctx context.Context, method string) (context.Context, error)
