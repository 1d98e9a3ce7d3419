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
	"log/slog"
)

// ParticipantStore is the interface of the collaborator that gives access to the participant hierarchy. No storage
// technology is assumed: implementations may read from a database, from an external service, or from memory.
//
//go:generate mockgen -destination=participant_store_mock.go -package=tenancy . ParticipantStore
type ParticipantStore interface {
	// Lookup returns the participant with the given identifier. Returns nil and no error when there is no
	// participant with that identifier.
	Lookup(ctx context.Context, id string) (Participant, error)
}

// MemoryParticipantStoreBuilder contains the data and logic needed to create memory participant stores.
type MemoryParticipantStoreBuilder struct {
	logger       *slog.Logger
	participants []Participant
}

// MemoryParticipantStore is an implementation of ParticipantStore that keeps the participants in memory. It is
// intended for tests and for fixtures, where the hierarchy is small and fixed.
type MemoryParticipantStore struct {
	logger       *slog.Logger
	participants map[string]Participant
}

// NewMemoryParticipantStore creates a builder that can then be used to configure and create a memory participant
// store.
func NewMemoryParticipantStore() *MemoryParticipantStoreBuilder {
	return &MemoryParticipantStoreBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *MemoryParticipantStoreBuilder) SetLogger(value *slog.Logger) *MemoryParticipantStoreBuilder {
	b.logger = value
	return b
}

// AddParticipant adds a participant to the store. This may be called multiple times.
func (b *MemoryParticipantStoreBuilder) AddParticipant(value Participant) *MemoryParticipantStoreBuilder {
	b.participants = append(b.participants, value)
	return b
}

// Build creates a new memory participant store using the configuration stored in the builder.
func (b *MemoryParticipantStoreBuilder) Build() (result *MemoryParticipantStore, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	for _, participant := range b.participants {
		if participant == nil {
			err = errors.New("participants must not be nil")
			return
		}
		if participant.ID() == "" {
			err = errors.New("participants must have an identifier")
			return
		}
	}

	// Index the participants:
	participants := make(map[string]Participant, len(b.participants))
	for _, participant := range b.participants {
		participants[participant.ID()] = participant
	}

	// Create and populate the object:
	result = &MemoryParticipantStore{
		logger:       b.logger,
		participants: participants,
	}
	return
}

// Lookup returns the participant with the given identifier, or nil if there is none.
func (s *MemoryParticipantStore) Lookup(ctx context.Context, id string) (result Participant, err error) {
	result = s.participants[id]
	return
}

// CachingParticipantStoreBuilder contains the data and logic needed to create caching participant stores.
type CachingParticipantStoreBuilder struct {
	logger *slog.Logger
	store  ParticipantStore
}

// CachingParticipantStore wraps another participant store and remembers the results of the lookups. It isn't safe
// for concurrent use and it never invalidates, so it must be scoped to a single unit of work: create one per
// request, and discard it with the request, so that hierarchy edits take effect on the next request.
type CachingParticipantStore struct {
	logger *slog.Logger
	store  ParticipantStore
	cache  map[string]Participant
}

// NewCachingParticipantStore creates a builder that can then be used to configure and create a caching participant
// store.
func NewCachingParticipantStore() *CachingParticipantStoreBuilder {
	return &CachingParticipantStoreBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *CachingParticipantStoreBuilder) SetLogger(value *slog.Logger) *CachingParticipantStoreBuilder {
	b.logger = value
	return b
}

// SetStore sets the store that the lookups will be delegated to. This is mandatory.
func (b *CachingParticipantStoreBuilder) SetStore(value ParticipantStore) *CachingParticipantStoreBuilder {
	b.store = value
	return b
}

// Build creates a new caching participant store using the configuration stored in the builder.
func (b *CachingParticipantStoreBuilder) Build() (result *CachingParticipantStore, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.store == nil {
		err = errors.New("store is mandatory")
		return
	}

	// Create and populate the object:
	result = &CachingParticipantStore{
		logger: b.logger,
		store:  b.store,
		cache:  map[string]Participant{},
	}
	return
}

// Lookup returns the participant with the given identifier, remembering the result for later calls. Negative
// results are remembered as well, as a missing parent would otherwise be looked up once per query.
func (s *CachingParticipantStore) Lookup(ctx context.Context, id string) (result Participant, err error) {
	result, ok := s.cache[id]
	if ok {
		return
	}
	result, err = s.store.Lookup(ctx, id)
	if err != nil {
		return
	}
	s.cache[id] = result
	return
}
