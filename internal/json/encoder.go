/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package json

import (
	"errors"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
)

// EncoderBuilder contains the data and logic needed to create encoders.
type EncoderBuilder struct {
	logger        *slog.Logger
	ignoredFields []string
}

// Encoder marshals and unmarshals objects as JSON, dropping a configured set of top level fields from the
// marshalled output. The data access layer uses this to keep out of the serialized document the fields that it
// stores in dedicated database columns.
type Encoder struct {
	logger        *slog.Logger
	ignoredFields map[string]struct{}
	api           jsoniter.API
}

// NewEncoder creates a builder that can then be used to configure and create an encoder.
func NewEncoder() *EncoderBuilder {
	return &EncoderBuilder{}
}

// SetLogger sets the logger. This is mandatory.
func (b *EncoderBuilder) SetLogger(value *slog.Logger) *EncoderBuilder {
	b.logger = value
	return b
}

// AddIgnoredFields adds the names of top level fields that will be dropped from the marshalled output. This may
// be called multiple times.
func (b *EncoderBuilder) AddIgnoredFields(values ...string) *EncoderBuilder {
	b.ignoredFields = append(b.ignoredFields, values...)
	return b
}

// Build creates a new encoder using the configuration stored in the builder.
func (b *EncoderBuilder) Build() (result *Encoder, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Index the ignored fields:
	ignoredFields := make(map[string]struct{}, len(b.ignoredFields))
	for _, ignoredField := range b.ignoredFields {
		ignoredFields[ignoredField] = struct{}{}
	}

	// Create and populate the object:
	result = &Encoder{
		logger:        b.logger,
		ignoredFields: ignoredFields,
		api:           jsoniter.ConfigCompatibleWithStandardLibrary,
	}
	return
}

// Marshal serializes the given object, dropping the ignored fields.
func (e *Encoder) Marshal(object any) (result []byte, err error) {
	data, err := e.api.Marshal(object)
	if err != nil {
		return
	}
	if len(e.ignoredFields) == 0 {
		result = data
		return
	}
	var document map[string]any
	err = e.api.Unmarshal(data, &document)
	if err != nil {
		return
	}
	for ignoredField := range e.ignoredFields {
		delete(document, ignoredField)
	}
	result, err = e.api.Marshal(document)
	return
}

// Unmarshal deserializes the given data into the given object. Fields that are unknown to the object are
// discarded.
func (e *Encoder) Unmarshal(data []byte, object any) error {
	return e.api.Unmarshal(data, object)
}
