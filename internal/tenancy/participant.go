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
)

// Participant is the interface implemented by the nodes of the tenant hierarchy. A participant with an empty parent
// identifier is a root, this is, an owner. A participant with a parent is a creator that belongs to that owner. The
// hierarchy is read-only from the point of view of this package: it is populated by an external administrative
// process and only consulted here during security model resolution.
type Participant interface {
	// ID returns the unique identifier of the participant.
	ID() string

	// Name returns the human friendly name of the participant.
	Name() string

	// SecurityModel returns the security model tag assigned to the participant. Note that this is the stored
	// value, which may be 'inherit': use the resolver to obtain the effective model.
	SecurityModel() SecurityModel

	// ParentID returns the identifier of the parent participant, or the empty string if the participant is a
	// root of the hierarchy.
	ParentID() string
}

// ParticipantRecordBuilder contains the data and logic needed to create participant records.
type ParticipantRecordBuilder struct {
	id     string
	name   string
	model  SecurityModel
	parent string
}

// ParticipantRecord is a plain in-memory implementation of the Participant interface.
type ParticipantRecord struct {
	id     string
	name   string
	model  SecurityModel
	parent string
}

// NewParticipant creates a builder that can then be used to configure and create a participant record.
func NewParticipant() *ParticipantRecordBuilder {
	return &ParticipantRecordBuilder{
		model: SecurityModelInherit,
	}
}

// SetID sets the unique identifier of the participant. This is mandatory.
func (b *ParticipantRecordBuilder) SetID(value string) *ParticipantRecordBuilder {
	b.id = value
	return b
}

// SetName sets the human friendly name of the participant. This is optional.
func (b *ParticipantRecordBuilder) SetName(value string) *ParticipantRecordBuilder {
	b.name = value
	return b
}

// SetSecurityModel sets the security model tag of the participant. This is optional and the default is 'inherit',
// so that creators pick the model of their owner unless explicitly overridden.
func (b *ParticipantRecordBuilder) SetSecurityModel(value SecurityModel) *ParticipantRecordBuilder {
	b.model = value
	return b
}

// SetParent sets the identifier of the parent participant. This is optional: participants with no parent are roots
// of the hierarchy.
func (b *ParticipantRecordBuilder) SetParent(value string) *ParticipantRecordBuilder {
	b.parent = value
	return b
}

// Build creates a new participant record using the configuration stored in the builder.
func (b *ParticipantRecordBuilder) Build() (result *ParticipantRecord, err error) {
	// Check parameters:
	if b.id == "" {
		err = errors.New("identifier is mandatory")
		return
	}
	if b.model == "" {
		err = errors.New("security model is mandatory")
		return
	}

	// Create and populate the object:
	result = &ParticipantRecord{
		id:     b.id,
		name:   b.name,
		model:  b.model,
		parent: b.parent,
	}
	return
}

// ID returns the unique identifier of the participant.
func (p *ParticipantRecord) ID() string {
	return p.id
}

// Name returns the human friendly name of the participant.
func (p *ParticipantRecord) Name() string {
	return p.name
}

// SecurityModel returns the security model tag stored for the participant.
func (p *ParticipantRecord) SecurityModel() SecurityModel {
	return p.model
}

// ParentID returns the identifier of the parent participant.
func (p *ParticipantRecord) ParentID() string {
	return p.parent
}

// nullParticipantName is the sentinel name of the null participant.
const nullParticipantName = "Null Tenant"

// nullParticipant is the stand-in participant used when no real tenant has been resolved. It has no identifier, so
// its context never matches any stored record, and its model is 'closed' so that the resolver and the predicate
// builders need no special case for it.
type nullParticipant struct {
}

// NullParticipant returns the participant used when no real tenant has been resolved.
func NullParticipant() Participant {
	return &nullParticipant{}
}

func (p *nullParticipant) ID() string {
	return ""
}

func (p *nullParticipant) Name() string {
	return nullParticipantName
}

func (p *nullParticipant) SecurityModel() SecurityModel {
	return SecurityModelClosed
}

func (p *nullParticipant) ParentID() string {
	return ""
}
