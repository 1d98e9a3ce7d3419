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

	ginkgo "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = ginkgo.Describe("Security model resolver", func() {
	var ctx context.Context

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
	})

	// participant creates a participant record, failing the spec on error.
	participant := func(id string, model SecurityModel, parent string) *ParticipantRecord {
		result, err := NewParticipant().
			SetID(id).
			SetSecurityModel(model).
			SetParent(parent).
			Build()
		Expect(err).ToNot(HaveOccurred())
		return result
	}

	// store creates a memory participant store containing the given participants.
	store := func(participants ...Participant) ParticipantStore {
		builder := NewMemoryParticipantStore().
			SetLogger(logger)
		for _, participant := range participants {
			builder.AddParticipant(participant)
		}
		result, err := builder.Build()
		Expect(err).ToNot(HaveOccurred())
		return result
	}

	// resolver creates a resolver backed by the given store.
	resolver := func(store ParticipantStore) *SecurityModelResolver {
		result, err := NewSecurityModelResolver().
			SetLogger(logger).
			SetStore(store).
			Build()
		Expect(err).ToNot(HaveOccurred())
		return result
	}

	ginkgo.Describe("Building", func() {
		ginkgo.It("Can't be built without a logger", func() {
			_, err := NewSecurityModelResolver().
				SetStore(store()).
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger"))
			Expect(err.Error()).To(ContainSubstring("mandatory"))
		})

		ginkgo.It("Can't be built without a store", func() {
			_, err := NewSecurityModelResolver().
				SetLogger(logger).
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("store"))
			Expect(err.Error()).To(ContainSubstring("mandatory"))
		})

		ginkgo.It("Can't be built with a negative maximum depth", func() {
			_, err := NewSecurityModelResolver().
				SetLogger(logger).
				SetStore(store()).
				SetMaxDepth(-1).
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("max depth"))
		})
	})

	ginkgo.Describe("Resolving participants", func() {
		ginkgo.It("Keeps a terminal model", func() {
			creator := participant("creator", SecurityModelShared, "owner")
			model, err := resolver(store()).Resolve(ctx, creator)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelShared))
		})

		ginkgo.It("Takes the model of the parent", func() {
			owner := participant("owner", SecurityModelShared, "")
			creator := participant("creator", SecurityModelInherit, "owner")
			model, err := resolver(store(owner)).Resolve(ctx, creator)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelShared))
		})

		ginkgo.It("Walks multiple levels towards the root", func() {
			root := participant("root", SecurityModelUser, "")
			middle := participant("middle", SecurityModelInherit, "root")
			leaf := participant("leaf", SecurityModelInherit, "middle")
			model, err := resolver(store(root, middle)).Resolve(ctx, leaf)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelUser))
		})

		ginkgo.It("Resolves to closed when the chain ends without a terminal model", func() {
			root := participant("root", SecurityModelInherit, "")
			leaf := participant("leaf", SecurityModelInherit, "root")
			model, err := resolver(store(root)).Resolve(ctx, leaf)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Resolves to closed when the parent doesn't exist", func() {
			leaf := participant("leaf", SecurityModelInherit, "doesnt_exist")
			model, err := resolver(store()).Resolve(ctx, leaf)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Resolves to closed when the chain contains a cycle", func() {
			first := participant("first", SecurityModelInherit, "second")
			second := participant("second", SecurityModelInherit, "first")
			model, err := resolver(store(first, second)).Resolve(ctx, first)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Resolves to closed when a participant is its own parent", func() {
			loop := participant("loop", SecurityModelInherit, "loop")
			model, err := resolver(store(loop)).Resolve(ctx, loop)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Resolves to closed when the chain is too deep", func() {
			deep := store(
				participant("a", SecurityModelInherit, "b"),
				participant("b", SecurityModelInherit, "c"),
				participant("c", SecurityModelInherit, "d"),
				participant("d", SecurityModelShared, ""),
			)
			shallow, err := NewSecurityModelResolver().
				SetLogger(logger).
				SetStore(deep).
				SetMaxDepth(2).
				Build()
			Expect(err).ToNot(HaveOccurred())
			start := participant("start", SecurityModelInherit, "a")
			model, err := shallow.Resolve(ctx, start)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Resolves nil to closed", func() {
			model, err := resolver(store()).Resolve(ctx, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Propagates store errors", func() {
			ctrl := gomock.NewController(ginkgo.GinkgoT())
			failing := NewMockParticipantStore(ctrl)
			failing.EXPECT().Lookup(gomock.Any(), "owner").Return(nil, errors.New("boom"))
			leaf := participant("leaf", SecurityModelInherit, "owner")
			_, err := resolver(failing).Resolve(ctx, leaf)
			Expect(err).To(MatchError("boom"))
		})
	})

	ginkgo.Describe("Resolving tenants", func() {
		ginkgo.It("Uses the model carried by the context", func() {
			tenant := Context{
				OwnerID:   "owner",
				CreatorID: "creator",
				Model:     SecurityModelShared,
			}
			model, err := resolver(store()).ResolveTenant(ctx, tenant)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelShared))
		})

		ginkgo.It("Resolves the null tenant to closed without touching the store", func() {
			ctrl := gomock.NewController(ginkgo.GinkgoT())
			untouched := NewMockParticipantStore(ctrl)
			model, err := resolver(untouched).ResolveTenant(ctx, NullContext())
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Prefers the creator participant over the owner", func() {
			owner := participant("owner", SecurityModelShared, "")
			creator := participant("creator", SecurityModelClosed, "owner")
			tenant := Context{
				OwnerID:   "owner",
				CreatorID: "creator",
			}
			model, err := resolver(store(owner, creator)).ResolveTenant(ctx, tenant)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Falls back to the owner when the creator isn't in the hierarchy", func() {
			owner := participant("owner", SecurityModelShared, "")
			tenant := Context{
				OwnerID:   "owner",
				CreatorID: "creator",
			}
			model, err := resolver(store(owner)).ResolveTenant(ctx, tenant)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelShared))
		})

		ginkgo.It("Resolves to closed when the tenant isn't in the hierarchy at all", func() {
			tenant := Context{
				OwnerID:   "owner",
				CreatorID: "creator",
			}
			model, err := resolver(store()).ResolveTenant(ctx, tenant)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelClosed))
		})

		ginkgo.It("Resolves the inherit tag of the creator against the hierarchy", func() {
			owner := participant("owner", SecurityModelUser, "")
			creator := participant("creator", SecurityModelInherit, "owner")
			tenant := Context{
				OwnerID:   "owner",
				CreatorID: "creator",
			}
			model, err := resolver(store(owner, creator)).ResolveTenant(ctx, tenant)
			Expect(err).ToNot(HaveOccurred())
			Expect(model).To(Equal(SecurityModelUser))
		})
	})
})
