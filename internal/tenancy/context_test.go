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

	ginkgo "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Tenant context", func() {
	ginkgo.It("Stores and retrieves the tenant", func() {
		tenant := Context{
			OwnerID:   "my_owner",
			CreatorID: "my_creator",
		}
		ctx := ContextWithTenant(context.Background(), tenant)
		Expect(TenantFromContext(ctx)).To(Equal(tenant))
	})

	ginkgo.It("Returns the null tenant when there is none", func() {
		tenant := TenantFromContext(context.Background())
		Expect(tenant).To(Equal(NullContext()))
		Expect(tenant.Absent()).To(BeTrue())
	})

	ginkgo.It("Isn't absent when it has an owner", func() {
		tenant := Context{
			OwnerID: "my_owner",
		}
		Expect(tenant.Absent()).To(BeFalse())
	})

	ginkgo.It("The null tenant is absent", func() {
		Expect(NullContext().Absent()).To(BeTrue())
	})
})
