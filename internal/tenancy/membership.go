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
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// MembershipLogic is the interface of the collaborator that knows, for the 'user' security model, which creators
// are accessible to the acting tenant. The scoping layer consumes the returned set as is: a nil or empty set means
// that the predicate will match nothing, never that filtering is skipped.
//
//go:generate mockgen -destination=membership_logic_mock.go -package=tenancy . MembershipLogic
type MembershipLogic interface {
	// AccessibleCreators returns the identifiers of the creators whose records the given tenant may see.
	AccessibleCreators(ctx context.Context, tenant Context) ([]string, error)
}

// EmptyMembershipLogicBuilder contains the data and logic needed to create empty membership logic.
type EmptyMembershipLogicBuilder struct {
	logger *slog.Logger
}

// EmptyMembershipLogic is a minimal implementation that reports no accessible creators. It is used as a fallback
// when no membership logic is configured, so that the 'user' model denies access instead of failing open.
type EmptyMembershipLogic struct {
	logger *slog.Logger
}

// NewEmptyMembershipLogic creates a new builder for empty membership logic.
func NewEmptyMembershipLogic() *EmptyMembershipLogicBuilder {
	return &EmptyMembershipLogicBuilder{}
}

// SetLogger sets the logger that will be used by the membership logic.
func (b *EmptyMembershipLogicBuilder) SetLogger(value *slog.Logger) *EmptyMembershipLogicBuilder {
	b.logger = value
	return b
}

// Build creates the empty membership logic.
func (b *EmptyMembershipLogicBuilder) Build() (result *EmptyMembershipLogic, err error) {
	result = &EmptyMembershipLogic{
		logger: b.logger,
	}
	return
}

// AccessibleCreators returns an empty set of creators.
func (l *EmptyMembershipLogic) AccessibleCreators(_ context.Context, _ Context) (result []string, err error) {
	return
}

// StaticMembershipLogicBuilder contains the data and logic needed to create static membership logic.
type StaticMembershipLogicBuilder struct {
	logger *slog.Logger
	file   string
	data   []byte
}

// StaticMembershipLogic is an implementation of MembershipLogic that reads the membership sets from a YAML
// document, usually a file. It is intended for development environments and tests. The document looks like this:
//
//	memberships:
//	- owner: acme
//	  creator: east
//	  accessible:
//	  - east
//	  - west
type StaticMembershipLogic struct {
	logger  *slog.Logger
	entries []staticMembershipEntry
}

type staticMembershipDocument struct {
	Memberships []staticMembershipEntry `yaml:"memberships"`
}

type staticMembershipEntry struct {
	Owner      string   `yaml:"owner"`
	Creator    string   `yaml:"creator"`
	Accessible []string `yaml:"accessible"`
}

// NewStaticMembershipLogic creates a builder that can then be used to configure and create static membership
// logic.
func NewStaticMembershipLogic() *StaticMembershipLogicBuilder {
	return &StaticMembershipLogicBuilder{}
}

// SetLogger sets the logger that will be used by the membership logic. This is mandatory.
func (b *StaticMembershipLogicBuilder) SetLogger(value *slog.Logger) *StaticMembershipLogicBuilder {
	b.logger = value
	return b
}

// SetFile sets the name of the YAML file containing the membership sets. Exactly one of the file or the data is
// mandatory.
func (b *StaticMembershipLogicBuilder) SetFile(value string) *StaticMembershipLogicBuilder {
	b.file = value
	return b
}

// SetData sets the YAML document containing the membership sets. Exactly one of the file or the data is mandatory.
func (b *StaticMembershipLogicBuilder) SetData(value []byte) *StaticMembershipLogicBuilder {
	b.data = value
	return b
}

// Build creates the static membership logic using the configuration stored in the builder.
func (b *StaticMembershipLogicBuilder) Build() (result *StaticMembershipLogic, err error) {
	// Check parameters:
	if b.logger == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.file == "" && b.data == nil {
		err = errors.New("file or data is mandatory")
		return
	}
	if b.file != "" && b.data != nil {
		err = errors.New("file and data are mutually exclusive")
		return
	}

	// Load the document:
	data := b.data
	if b.file != "" {
		data, err = os.ReadFile(b.file)
		if err != nil {
			err = fmt.Errorf("failed to read membership file '%s': %w", b.file, err)
			return
		}
	}
	var document staticMembershipDocument
	err = yaml.Unmarshal(data, &document)
	if err != nil {
		err = fmt.Errorf("failed to parse membership document: %w", err)
		return
	}
	for _, entry := range document.Memberships {
		if entry.Owner == "" || entry.Creator == "" {
			err = errors.New("membership entries must have an owner and a creator")
			return
		}
	}

	// Create and populate the object:
	result = &StaticMembershipLogic{
		logger:  b.logger,
		entries: document.Memberships,
	}
	return
}

// AccessibleCreators returns the accessible creators configured for the given tenant, or an empty set when there
// is no entry for it.
func (l *StaticMembershipLogic) AccessibleCreators(ctx context.Context, tenant Context) (result []string,
	err error) {
	for _, entry := range l.entries {
		if entry.Owner == tenant.OwnerID && entry.Creator == tenant.CreatorID {
			result = slices.Clone(entry.Accessible)
			return
		}
	}
	return
}
