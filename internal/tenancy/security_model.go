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

// SecurityModel is the tag that identifies the sharing policy assigned to a participant of the tenant hierarchy. The
// built-in values are defined below, but the set is open: callers may introduce additional tags as long as they
// register a predicate builder for them in the model registry.
type SecurityModel string

const (
	// SecurityModelShared makes all the records of an owner visible to every creator under that owner.
	SecurityModelShared SecurityModel = "shared"

	// SecurityModelUser makes visible the records created by the set of creators that the membership logic reports
	// as accessible to the current tenant.
	SecurityModelUser SecurityModel = "user"

	// SecurityModelClosed makes visible only the records created by the current creator itself.
	SecurityModelClosed SecurityModel = "closed"

	// SecurityModelInherit delegates the decision to the parent participant. It is never an effective model: the
	// resolver always translates it to one of the other tags before any predicate is built.
	SecurityModelInherit SecurityModel = "inherit"
)

// Terminal returns true if the model can be used directly to build a predicate, without further resolution against
// the participant hierarchy.
func (m SecurityModel) Terminal() bool {
	return m != "" && m != SecurityModelInherit
}

// String returns the string representation of the model.
func (m SecurityModel) String() string {
	return string(m)
}
