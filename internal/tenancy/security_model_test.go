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
	ginkgo "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Security model", func() {
	DescribeTable(
		"Terminal",
		func(model SecurityModel, expected bool) {
			Expect(model.Terminal()).To(Equal(expected))
		},
		Entry("Shared is terminal", SecurityModelShared, true),
		Entry("User is terminal", SecurityModelUser, true),
		Entry("Closed is terminal", SecurityModelClosed, true),
		Entry("Inherit isn't terminal", SecurityModelInherit, false),
		Entry("Empty isn't terminal", SecurityModel(""), false),
		Entry("Custom tags are terminal", SecurityModel("region"), true),
	)

	ginkgo.It("Converts to string", func() {
		Expect(SecurityModelShared.String()).To(Equal("shared"))
	})
})
