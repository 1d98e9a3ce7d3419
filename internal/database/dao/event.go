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
)

// EventType indicates the kind of change that an event describes.
type EventType string

const (
	EventTypeCreated EventType = "created"
	EventTypeUpdated EventType = "updated"
	EventTypeDeleted EventType = "deleted"
)

// Event describes a change performed by a DAO.
type Event struct {
	// Table is the name of the table where the change happened.
	Table string

	// Type is the kind of change.
	Type EventType

	// Object is the object that was created, updated or deleted.
	Object any
}

// EventCallback is a function called to process events when a DAO creates, updates or deletes an object. The
// callbacks run synchronously, inside the same transaction as the change: returning an error rolls it back.
type EventCallback func(ctx context.Context, event Event) error
