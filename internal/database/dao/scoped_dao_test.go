/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"

	"github.com/tessellate/tenancy-service/internal/database"
	"github.com/tessellate/tenancy-service/internal/tenancy"
)

var _ = Describe("Scoped DAO", func() {
	var (
		tx     *fakeTx
		tenant tenancy.Context
	)

	BeforeEach(func() {
		tx = &fakeTx{}
		tenant = tenancy.Context{
			OwnerID:   "my_owner",
			CreatorID: "my_creator",
		}
	})

	// testCtx creates a context carrying the fake transaction and the given tenant.
	testCtx := func(tenant tenancy.Context) context.Context {
		ctx := context.Background()
		ctx = tenancy.ContextWithTenant(ctx, tenant)
		ctx = database.TxIntoContext(ctx, tx)
		return ctx
	}

	// newDAO creates a DAO over the `documents` table, with an empty hierarchy, so that tenants resolve to the
	// closed model unless the context carries another one.
	newDAO := func() *ScopedDAO[*testObject] {
		store, err := tenancy.NewMemoryParticipantStore().
			SetLogger(logger).
			Build()
		Expect(err).ToNot(HaveOccurred())
		resolver, err := tenancy.NewSecurityModelResolver().
			SetLogger(logger).
			SetStore(store).
			Build()
		Expect(err).ToNot(HaveOccurred())
		membership, err := tenancy.NewEmptyMembershipLogic().
			SetLogger(logger).
			Build()
		Expect(err).ToNot(HaveOccurred())
		registry, err := tenancy.NewModelRegistry().
			SetLogger(logger).
			AddDefaultModels(membership).
			AddModel("region", func(ctx context.Context, tenant tenancy.Context,
				buffer *strings.Builder, parameters *[]any) error {
				*parameters = append(*parameters, tenant.OwnerID)
				fmt.Fprintf(buffer, "region_id = $%d", len(*parameters))
				return nil
			}).
			Build()
		Expect(err).ToNot(HaveOccurred())
		dao, err := NewScopedDAO[*testObject]().
			SetLogger(logger).
			SetTable("documents").
			SetResolver(resolver).
			SetRegistry(registry).
			Build()
		Expect(err).ToNot(HaveOccurred())
		return dao
	}

	Describe("Building", func() {
		It("Can't be built without a table", func() {
			store, err := tenancy.NewMemoryParticipantStore().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
			resolver, err := tenancy.NewSecurityModelResolver().
				SetLogger(logger).
				SetStore(store).
				Build()
			Expect(err).ToNot(HaveOccurred())
			registry, err := tenancy.NewModelRegistry().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
			_, err = NewScopedDAO[*testObject]().
				SetLogger(logger).
				SetResolver(resolver).
				SetRegistry(registry).
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("table"))
			Expect(err.Error()).To(ContainSubstring("mandatory"))
		})

		It("Can't be built without a resolver", func() {
			registry, err := tenancy.NewModelRegistry().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
			_, err = NewScopedDAO[*testObject]().
				SetLogger(logger).
				SetTable("documents").
				SetRegistry(registry).
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("resolver"))
			Expect(err.Error()).To(ContainSubstring("mandatory"))
		})

		It("Can't be built without a registry", func() {
			store, err := tenancy.NewMemoryParticipantStore().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
			resolver, err := tenancy.NewSecurityModelResolver().
				SetLogger(logger).
				SetStore(store).
				Build()
			Expect(err).ToNot(HaveOccurred())
			_, err = NewScopedDAO[*testObject]().
				SetLogger(logger).
				SetTable("documents").
				SetResolver(resolver).
				Build()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("registry"))
			Expect(err.Error()).To(ContainSubstring("mandatory"))
		})
	})

	Describe("List", func() {
		It("Scopes the query with the tenancy clause", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{1}},
			}
			tx.rowsQueue = []*fakeRows{
				{rows: []*fakeRow{
					{values: []any{
						"my_id",
						"my_owner",
						"my_creator",
						[]byte(`{"title":"my title"}`),
					}},
				}},
			}
			dao := newDAO()
			response, err := dao.List(testCtx(tenant), ListRequest{})
			Expect(err).ToNot(HaveOccurred())
			Expect(response.Size).To(Equal(int32(1)))
			Expect(response.Total).To(Equal(int32(1)))
			Expect(response.Items).To(HaveLen(1))
			item := response.Items[0]
			Expect(item.ID).To(Equal("my_id"))
			Expect(item.Title).To(Equal("my title"))
			Expect(item.GetTenantOwnerID()).To(Equal("my_owner"))
			Expect(item.GetTenantCreatorID()).To(Equal("my_creator"))

			// Both the count and the fetch must carry the clause of the closed model:
			Expect(tx.calls).To(HaveLen(2))
			count := tx.calls[0]
			Expect(count.sql).To(ContainSubstring("count(*)"))
			Expect(count.sql).To(ContainSubstring("tenant_owner_id = $1 and tenant_creator_id = $2"))
			Expect(count.parameters).To(Equal([]any{"my_owner", "my_creator"}))
			fetch := tx.calls[1]
			Expect(fetch.sql).To(ContainSubstring("tenant_owner_id = $1 and tenant_creator_id = $2"))
			Expect(fetch.sql).To(ContainSubstring("offset $3"))
			Expect(fetch.sql).To(ContainSubstring("limit $4"))
			Expect(fetch.parameters).To(Equal([]any{"my_owner", "my_creator", int32(0), int32(100)}))
		})

		It("Combines the user filter with the tenancy clause", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{0}},
			}
			tx.rowsQueue = []*fakeRows{
				{},
			}
			dao := newDAO()
			_, err := dao.List(testCtx(tenant), ListRequest{
				Filter: "this.title == 'my title'",
			})
			Expect(err).ToNot(HaveOccurred())
			count := tx.calls[0]
			Expect(count.sql).To(ContainSubstring(
				"((data ->> 'title') = $1) and tenant_owner_id = $2 and tenant_creator_id = $3",
			))
			Expect(count.parameters).To(Equal([]any{"my title", "my_owner", "my_creator"}))
		})

		It("Uses the shared clause when the context carries the shared model", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{0}},
			}
			tx.rowsQueue = []*fakeRows{
				{},
			}
			tenant.Model = tenancy.SecurityModelShared
			dao := newDAO()
			_, err := dao.List(testCtx(tenant), ListRequest{})
			Expect(err).ToNot(HaveOccurred())
			count := tx.calls[0]
			Expect(count.sql).To(ContainSubstring("tenant_owner_id = $1"))
			Expect(count.sql).ToNot(ContainSubstring("tenant_creator_id"))
			Expect(count.parameters).To(Equal([]any{"my_owner"}))
		})

		It("Uses a custom registered model", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{0}},
			}
			tx.rowsQueue = []*fakeRows{
				{},
			}
			tenant.Model = "region"
			dao := newDAO()
			_, err := dao.List(testCtx(tenant), ListRequest{})
			Expect(err).ToNot(HaveOccurred())
			Expect(tx.calls[0].sql).To(ContainSubstring("region_id = $1"))
		})

		It("Fails hard when the model has no registered builder", func() {
			tenant.Model = "nonsense"
			dao := newDAO()
			_, err := dao.List(testCtx(tenant), ListRequest{})
			Expect(err).To(HaveOccurred())
			var typed *tenancy.UnresolvableModelError
			Expect(errors.As(err, &typed)).To(BeTrue())
			Expect(typed.Model).To(Equal(tenancy.SecurityModel("nonsense")))

			// Nothing may reach the database, and the transaction must know about the failure:
			Expect(tx.calls).To(BeEmpty())
			Expect(tx.reported).To(MatchError(err))
		})

		It("Caps the limit to the maximum", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{0}},
			}
			tx.rowsQueue = []*fakeRows{
				{},
			}
			dao := newDAO()
			_, err := dao.List(testCtx(tenant), ListRequest{
				Limit: 1_000_000,
			})
			Expect(err).ToNot(HaveOccurred())
			fetch := tx.calls[1]
			Expect(fetch.parameters[len(fetch.parameters)-1]).To(Equal(int32(1000)))
		})

		It("Fails when there is no transaction in the context", func() {
			dao := newDAO()
			ctx := tenancy.ContextWithTenant(context.Background(), tenant)
			_, err := dao.List(ctx, ListRequest{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("transaction"))
		})
	})

	Describe("Get", func() {
		It("Scopes the query with the tenancy clause", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{
					"my_owner",
					"my_creator",
					[]byte(`{"title":"my title"}`),
				}},
			}
			dao := newDAO()
			object, err := dao.Get(testCtx(tenant), "my_id")
			Expect(err).ToNot(HaveOccurred())
			Expect(object).ToNot(BeNil())
			Expect(object.ID).To(Equal("my_id"))
			Expect(object.Title).To(Equal("my title"))
			call := tx.calls[0]
			Expect(call.sql).To(ContainSubstring(
				"(id = $1) and tenant_owner_id = $2 and tenant_creator_id = $3",
			))
			Expect(call.parameters).To(Equal([]any{"my_id", "my_owner", "my_creator"}))
		})

		It("Returns nil and no error when the row isn't visible", func() {
			tx.rowQueue = []*fakeRow{
				{err: pgx.ErrNoRows},
			}
			dao := newDAO()
			object, err := dao.Get(testCtx(tenant), "my_id")
			Expect(err).ToNot(HaveOccurred())
			Expect(object).To(BeNil())
		})

		It("Requires an identifier", func() {
			dao := newDAO()
			_, err := dao.Get(testCtx(tenant), "")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("identifier"))
		})
	})

	Describe("Exists", func() {
		It("Returns true when the scoped count is positive", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{1}},
			}
			dao := newDAO()
			ok, err := dao.Exists(testCtx(tenant), "my_id")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(tx.calls[0].sql).To(ContainSubstring(
				"(id = $1) and tenant_owner_id = $2 and tenant_creator_id = $3",
			))
		})

		It("Returns false when the scoped count is zero", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{0}},
			}
			dao := newDAO()
			ok, err := dao.Exists(testCtx(tenant), "my_id")
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Create", func() {
		It("Stamps the tenancy from the context and generates an identifier", func() {
			dao := newDAO()
			object, err := dao.Create(testCtx(tenant), &testObject{
				Title: "my title",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(object.GetTenantOwnerID()).To(Equal("my_owner"))
			Expect(object.GetTenantCreatorID()).To(Equal("my_creator"))
			Expect(uuid.Validate(object.ID)).To(Succeed())

			call := tx.calls[0]
			Expect(call.sql).To(ContainSubstring("insert into documents"))
			Expect(call.parameters).To(HaveLen(4))
			Expect(call.parameters[0]).To(Equal(object.ID))
			Expect(call.parameters[1]).To(Equal("my_owner"))
			Expect(call.parameters[2]).To(Equal("my_creator"))

			// The identifier and the tenancy live in their own columns, not inside the document:
			Expect(call.parameters[3]).To(MatchJSON(`{"title":"my title"}`))
		})

		It("Doesn't re-stamp an object that already carries tenancy", func() {
			dao := newDAO()
			object := &testObject{
				Title: "my title",
			}
			object.SetTenantOwnerID("other_owner")
			object.SetTenantCreatorID("other_creator")
			result, err := dao.Create(testCtx(tenant), object)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.GetTenantOwnerID()).To(Equal("other_owner"))
			Expect(result.GetTenantCreatorID()).To(Equal("other_creator"))
			call := tx.calls[0]
			Expect(call.parameters[1]).To(Equal("other_owner"))
			Expect(call.parameters[2]).To(Equal("other_creator"))
		})

		It("Refuses to create without a tenant", func() {
			dao := newDAO()
			_, err := dao.Create(testCtx(tenancy.NullContext()), &testObject{
				Title: "my title",
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("without a tenant"))
			Expect(tx.calls).To(BeEmpty())
		})

		It("Keeps an identifier that the caller provided", func() {
			dao := newDAO()
			object, err := dao.Create(testCtx(tenant), &testObject{
				ID:    "my_id",
				Title: "my title",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(object.ID).To(Equal("my_id"))
			Expect(tx.calls[0].parameters[0]).To(Equal("my_id"))
		})
	})

	Describe("Update", func() {
		It("Updates only the data column, through the tenancy clause", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{
					"my_owner",
					"my_creator",
					[]byte(`{"title":"old title"}`),
				}},
			}
			tx.execCount = 1
			dao := newDAO()
			object, err := dao.Update(testCtx(tenant), &testObject{
				ID:    "my_id",
				Title: "new title",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(object).ToNot(BeNil())

			Expect(tx.calls).To(HaveLen(2))
			update := tx.calls[1]
			Expect(update.sql).To(ContainSubstring("update documents"))
			Expect(update.sql).To(ContainSubstring("data = $1"))
			Expect(update.sql).To(ContainSubstring(
				"(id = $2) and tenant_owner_id = $3 and tenant_creator_id = $4",
			))
			Expect(update.parameters).To(HaveLen(4))
			Expect(update.parameters[0]).To(MatchJSON(`{"title":"new title"}`))
			Expect(update.parameters[1]).To(Equal("my_id"))
		})

		It("Does nothing when there are no changes", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{
					"my_owner",
					"my_creator",
					[]byte(`{"title":"my title"}`),
				}},
			}
			dao := newDAO()
			object, err := dao.Update(testCtx(tenant), &testObject{
				ID:    "my_id",
				Title: "my title",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(object).ToNot(BeNil())
			Expect(tx.calls).To(HaveLen(1))
		})

		It("Doesn't update a row that the tenant can't see", func() {
			tx.rowQueue = []*fakeRow{
				{err: pgx.ErrNoRows},
			}
			dao := newDAO()
			object, err := dao.Update(testCtx(tenant), &testObject{
				ID:    "my_id",
				Title: "new title",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(object).To(BeNil())
			Expect(tx.calls).To(HaveLen(1))
		})
	})

	Describe("Delete", func() {
		It("Deletes through the tenancy clause", func() {
			tx.rowQueue = []*fakeRow{
				{values: []any{
					"my_owner",
					"my_creator",
					[]byte(`{"title":"my title"}`),
				}},
			}
			dao := newDAO()
			err := dao.Delete(testCtx(tenant), "my_id")
			Expect(err).ToNot(HaveOccurred())
			call := tx.calls[0]
			Expect(call.sql).To(ContainSubstring("delete from documents"))
			Expect(call.sql).To(ContainSubstring(
				"(id = $1) and tenant_owner_id = $2 and tenant_creator_id = $3",
			))
			Expect(call.parameters).To(Equal([]any{"my_id", "my_owner", "my_creator"}))
		})

		It("Reports no error when the row isn't visible", func() {
			tx.rowQueue = []*fakeRow{
				{err: pgx.ErrNoRows},
			}
			dao := newDAO()
			err := dao.Delete(testCtx(tenant), "my_id")
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Events", func() {
		It("Fires events for creates, updates and deletes", func() {
			var events []Event
			store, err := tenancy.NewMemoryParticipantStore().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
			resolver, err := tenancy.NewSecurityModelResolver().
				SetLogger(logger).
				SetStore(store).
				Build()
			Expect(err).ToNot(HaveOccurred())
			membership, err := tenancy.NewEmptyMembershipLogic().
				SetLogger(logger).
				Build()
			Expect(err).ToNot(HaveOccurred())
			registry, err := tenancy.NewModelRegistry().
				SetLogger(logger).
				AddDefaultModels(membership).
				Build()
			Expect(err).ToNot(HaveOccurred())
			dao, err := NewScopedDAO[*testObject]().
				SetLogger(logger).
				SetTable("documents").
				SetResolver(resolver).
				SetRegistry(registry).
				AddEventCallback(func(ctx context.Context, event Event) error {
					events = append(events, event)
					return nil
				}).
				Build()
			Expect(err).ToNot(HaveOccurred())

			// Create:
			object, err := dao.Create(testCtx(tenant), &testObject{
				Title: "my title",
			})
			Expect(err).ToNot(HaveOccurred())

			// Delete:
			tx.rowQueue = []*fakeRow{
				{values: []any{
					"my_owner",
					"my_creator",
					[]byte(`{"title":"my title"}`),
				}},
			}
			err = dao.Delete(testCtx(tenant), object.ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(events).To(HaveLen(2))
			Expect(events[0].Type).To(Equal(EventTypeCreated))
			Expect(events[0].Table).To(Equal("documents"))
			Expect(events[1].Type).To(Equal(EventTypeDeleted))
			Expect(events[1].Table).To(Equal("documents"))
		})
	})
})
