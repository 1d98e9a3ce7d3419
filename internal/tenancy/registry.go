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
	"errors"
	"fmt"
	"log/slog"
)

// UnresolvableModelError is returned when an effective security model has no predicate builder registered for it.
// This is a hard failure of the operation: a query must never run unfiltered because the model is unknown.
type UnresolvableModelError struct {
	// Model is the tag that has no registered predicate builder.
	Model SecurityModel
}

func (e *UnresolvableModelError) Error() string {
	return fmt.Sprintf("no predicate builder is registered for security model '%s'", e.Model)
}

// ModelRegistryBuilder contains the data and logic needed to create model registries.
type ModelRegistryBuilder struct {
	logger   *slog.Logger
	builders map[SecurityModel]PredicateBuilder
}

// ModelRegistry maps security model tags to the predicate builders that implement them. The mapping is populated
// at startup and read-only afterwards, so it is safe for concurrent use. The set of tags is open: callers may add
// their own models next to the built-in ones, and looking up a tag that was never registered is a typed error, not
// a silent pass-through.
type ModelRegistry struct {
	logger   *slog.Logger
	builders map[SecurityModel]PredicateBuilder
}

// NewModelRegistry creates a builder that can then be used to configure and create a model registry.
func NewModelRegistry() *ModelRegistryBuilder {
	return &ModelRegistryBuilder{
		builders: map[SecurityModel]PredicateBuilder{},
	}
}

// SetLogger sets the logger. This is mandatory.
func (b *ModelRegistryBuilder) SetLogger(value *slog.Logger) *ModelRegistryBuilder {
	b.logger = value
	return b
}

// AddModel registers the predicate builder for the given security model tag. This may be called multiple times,
// and registering a tag again replaces the previous builder.
func (b *ModelRegistryBuilder) AddModel(model SecurityModel, builder PredicateBuilder) *ModelRegistryBuilder {
	b.builders[model] = builder
	return b
}

// AddDefaultModels registers the built-in 'shared', 'user' and 'closed' models. The given membership logic will
// back the 'user' model; pass the empty membership logic if the deployment doesn't use that model.
func (b *ModelRegistryBuilder) AddDefaultModels(membership MembershipLogic) *ModelRegistryBuilder {
	b.AddModel(SecurityModelShared, SharedPredicate())
	b.AddModel(SecurityModelClosed, ClosedPredicate())
	b.AddModel(SecurityModelUser, UserPredicate(membership))
	return b
}

// Build creates a new model registry using the configuration stored in the builder.
func (b *ModelRegistryBuilder) Build() (result *ModelRegistry, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	for model, builder := range b.builders {
		if !model.Terminal() {
			err = fmt.Errorf(
				"security model '%s' can't have a predicate builder because it is never an "+
					"effective model",
				model,
			)
			return
		}
		if builder == nil {
			err = fmt.Errorf("predicate builder for security model '%s' must not be nil", model)
			return
		}
	}

	// Copy the builders so that later changes to the registry builder don't leak into the registry:
	builders := make(map[SecurityModel]PredicateBuilder, len(b.builders))
	for model, builder := range b.builders {
		builders[model] = builder
	}

	// Create and populate the object:
	result = &ModelRegistry{
		logger:   b.logger,
		builders: builders,
	}
	return
}

// Lookup returns the predicate builder registered for the given security model tag. Returns an
// UnresolvableModelError if there is none.
func (r *ModelRegistry) Lookup(model SecurityModel) (result PredicateBuilder, err error) {
	result, ok := r.builders[model]
	if !ok {
		err = &UnresolvableModelError{
			Model: model,
		}
		return
	}
	return
}
