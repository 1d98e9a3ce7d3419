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

// TenantAware is the capability implemented by stored record types that carry tenancy. The two identifiers are
// stamped exactly once, from the active tenant context, before the first write of the record; after that the
// scoping layer only reads them.
type TenantAware interface {
	// GetTenantOwnerID returns the identifier of the owner that the record belongs to.
	GetTenantOwnerID() string

	// SetTenantOwnerID sets the identifier of the owner that the record belongs to.
	SetTenantOwnerID(value string)

	// GetTenantCreatorID returns the identifier of the creator that produced the record.
	GetTenantCreatorID() string

	// SetTenantCreatorID sets the identifier of the creator that produced the record.
	SetTenantCreatorID(value string)

	// ImportTenancyFrom copies the owner and creator identifiers from the given tenant context, but only when
	// the record doesn't carry tenancy yet: a record that has been stamped is never re-stamped.
	ImportTenancyFrom(tenant Context)
}

// Attributes is a ready made implementation of the TenantAware capability that record types can embed. The fields
// are serialized under the same names as the table columns, though the scoping layer stores them in dedicated
// columns rather than inside the record document.
type Attributes struct {
	TenantOwnerID   string `json:"tenant_owner_id,omitempty"`
	TenantCreatorID string `json:"tenant_creator_id,omitempty"`
}

// GetTenantOwnerID returns the identifier of the owner that the record belongs to.
func (a *Attributes) GetTenantOwnerID() string {
	return a.TenantOwnerID
}

// SetTenantOwnerID sets the identifier of the owner that the record belongs to.
func (a *Attributes) SetTenantOwnerID(value string) {
	a.TenantOwnerID = value
}

// GetTenantCreatorID returns the identifier of the creator that produced the record.
func (a *Attributes) GetTenantCreatorID() string {
	return a.TenantCreatorID
}

// SetTenantCreatorID sets the identifier of the creator that produced the record.
func (a *Attributes) SetTenantCreatorID(value string) {
	a.TenantCreatorID = value
}

// ImportTenancyFrom copies the owner and creator identifiers from the given tenant context. It does nothing if the
// record already carries tenancy.
func (a *Attributes) ImportTenancyFrom(tenant Context) {
	if a.TenantOwnerID != "" || a.TenantCreatorID != "" {
		return
	}
	a.TenantOwnerID = tenant.OwnerID
	a.TenantCreatorID = tenant.CreatorID
}
