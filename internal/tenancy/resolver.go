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
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessellate/tenancy-service/internal/metrics"
)

// SecurityModelResolverBuilder contains the data and logic needed to create security model resolvers.
type SecurityModelResolverBuilder struct {
	logger   *slog.Logger
	store    ParticipantStore
	metrics  *metrics.Metrics
	maxDepth int
}

// SecurityModelResolver translates the 'inherit' tag into a terminal security model by walking the participant
// hierarchy towards the root. The traversal is read-only and deterministic for a given hierarchy snapshot. A
// missing parent, a cycle, or a chain longer than the configured maximum depth all resolve to the closed model.
type SecurityModelResolver struct {
	logger   *slog.Logger
	store    ParticipantStore
	metrics  *metrics.Metrics
	maxDepth int
}

// NewSecurityModelResolver creates a builder that can then be used to configure and create a security model
// resolver.
func NewSecurityModelResolver() *SecurityModelResolverBuilder {
	return &SecurityModelResolverBuilder{
		maxDepth: 16,
	}
}

// SetLogger sets the logger. This is mandatory.
func (b *SecurityModelResolverBuilder) SetLogger(value *slog.Logger) *SecurityModelResolverBuilder {
	b.logger = value
	return b
}

// SetStore sets the participant store used to look up parents. This is mandatory.
func (b *SecurityModelResolverBuilder) SetStore(value ParticipantStore) *SecurityModelResolverBuilder {
	b.store = value
	return b
}

// SetMetrics sets the metrics. This is optional.
func (b *SecurityModelResolverBuilder) SetMetrics(value *metrics.Metrics) *SecurityModelResolverBuilder {
	b.metrics = value
	return b
}

// SetMaxDepth sets the maximum number of parent lookups performed during one resolution. This is optional and the
// default is 16, which is well beyond the owner to creator depth the hierarchy is expected to have.
func (b *SecurityModelResolverBuilder) SetMaxDepth(value int) *SecurityModelResolverBuilder {
	b.maxDepth = value
	return b
}

// Build creates a new security model resolver using the configuration stored in the builder.
func (b *SecurityModelResolverBuilder) Build() (result *SecurityModelResolver, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.store == nil {
		err = errors.New("store is mandatory")
		return
	}
	if b.maxDepth <= 0 {
		err = fmt.Errorf("max depth must be a positive integer, but it is %d", b.maxDepth)
		return
	}

	// Create and populate the object:
	result = &SecurityModelResolver{
		logger:   b.logger,
		store:    b.store,
		metrics:  b.metrics,
		maxDepth: b.maxDepth,
	}
	return
}

// Resolve returns the effective security model of the given participant. Participants with a terminal model keep
// it; participants with the 'inherit' model take the effective model of their parent. The only errors returned are
// those of the underlying store: an incomplete or cyclic hierarchy is not an error, it resolves to the closed
// model.
func (r *SecurityModelResolver) Resolve(ctx context.Context, participant Participant) (result SecurityModel,
	err error) {
	if participant == nil {
		result = SecurityModelClosed
		return
	}
	model := participant.SecurityModel()
	if model.Terminal() {
		result = model
		return
	}

	// Walk towards the root. The visited set guards against cycles and the depth bound guards against chains
	// that are longer than any legitimate hierarchy.
	visited := map[string]bool{
		participant.ID(): true,
	}
	current := participant
	for depth := 0; depth < r.maxDepth; depth++ {
		parentID := current.ParentID()
		if parentID == "" {
			r.unresolved(ctx, participant, "participant chain has no parent with a terminal model")
			result = SecurityModelClosed
			return
		}
		if visited[parentID] {
			r.unresolved(ctx, participant, "participant chain contains a cycle")
			result = SecurityModelClosed
			return
		}
		visited[parentID] = true
		r.metrics.ObserveParticipantLookup()
		var parent Participant
		parent, err = r.store.Lookup(ctx, parentID)
		if err != nil {
			return
		}
		if parent == nil {
			r.unresolved(ctx, participant, "parent participant doesn't exist")
			result = SecurityModelClosed
			return
		}
		model = parent.SecurityModel()
		if model.Terminal() {
			result = model
			return
		}
		current = parent
	}
	r.unresolved(ctx, participant, "participant chain is too deep")
	result = SecurityModelClosed
	return
}

// ResolveTenant returns the effective security model for the given tenant context. If the context already carries
// a terminal model it is used directly. Otherwise the creator participant is looked up and resolved, falling back
// to the owner participant when the creator isn't in the hierarchy. A tenant that can't be found in the hierarchy
// at all resolves to the closed model: records stay visible to their own creator and to nobody else.
func (r *SecurityModelResolver) ResolveTenant(ctx context.Context, tenant Context) (result SecurityModel,
	err error) {
	if tenant.Model.Terminal() {
		result = tenant.Model
		return
	}
	if tenant.Absent() {
		result = SecurityModelClosed
		return
	}
	for _, id := range []string{tenant.CreatorID, tenant.OwnerID} {
		if id == "" {
			continue
		}
		r.metrics.ObserveParticipantLookup()
		var participant Participant
		participant, err = r.store.Lookup(ctx, id)
		if err != nil {
			return
		}
		if participant == nil {
			continue
		}
		result, err = r.Resolve(ctx, participant)
		return
	}
	r.logger.DebugContext(
		ctx,
		"Tenant isn't in the participant hierarchy, using the closed model",
		slog.String("owner", tenant.OwnerID),
		slog.String("creator", tenant.CreatorID),
	)
	result = SecurityModelClosed
	return
}

func (r *SecurityModelResolver) unresolved(ctx context.Context, participant Participant, reason string) {
	r.metrics.ObserveUnresolvedInherit()
	r.logger.WarnContext(
		ctx,
		"Failed to resolve inherited security model, using the closed model",
		slog.String("participant", participant.ID()),
		slog.String("reason", reason),
	)
}
