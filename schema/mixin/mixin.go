package mixin

import (
	"time"

	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// Schema is the default implementation for the schema.Mixin interface.
// It should be embedded in all custom mixin definitions.
//
// Example:
//
//	type MyMixin struct {
//	    mixin.Schema
//	}
//
//	func (MyMixin) Fields() []schema.Field {
//	    return []schema.Field{
//	        field.String("customField"),
//	    }
//	}
type Schema struct{}

// Fields returns the fields of the mixin.
// Override this method to add custom fields.
func (Schema) Fields() []schema.Field { return nil }

var _ schema.Mixin = (*Schema)(nil)

// Clock returns the current time. A nil Clock uses time.Now.
type Clock func() time.Time

func (c Clock) millis() func() any {
	return func() any {
		if c == nil {
			return time.Now().UnixMilli()
		}
		return c().UnixMilli()
	}
}

// ID adds an immutable "id" UUID field defaulting to a random UUID.
type ID struct {
	Schema
}

// Fields returns the id field.
func (ID) Fields() []schema.Field {
	return []schema.Field{field.AutoUUID("id")}
}

// Time adds createdAt and updatedAt timestamps, in Unix milliseconds.
// createdAt is set on insert and is immutable; updatedAt is set on
// insert and on every update.
type Time struct {
	Schema
	Clock Clock
}

// Fields returns the time tracking fields.
func (m Time) Fields() []schema.Field {
	return append(CreateTime{Clock: m.Clock}.Fields(), UpdateTime{Clock: m.Clock}.Fields()...)
}

// CreateTime adds only the createdAt timestamp.
type CreateTime struct {
	Schema
	Clock Clock
}

// Fields returns the createdAt field.
func (m CreateTime) Fields() []schema.Field {
	return []schema.Field{
		field.Number("createdAt").
			DefaultFunc(m.Clock.millis()).
			Immutable().
			Comment("Time the item was created"),
	}
}

// UpdateTime adds only the updatedAt timestamp.
type UpdateTime struct {
	Schema
	Clock Clock
}

// Fields returns the updatedAt field.
func (m UpdateTime) Fields() []schema.Field {
	now := m.Clock.millis()
	return []schema.Field{
		field.Number("updatedAt").
			DefaultFunc(now).
			UpdateDefault(now).
			Comment("Time the item was last updated"),
	}
}

// SoftDelete adds a nullable deletedAt timestamp. A null value means the
// item is not deleted.
type SoftDelete struct {
	Schema
}

// Fields returns the soft delete field.
func (SoftDelete) Fields() []schema.Field {
	return []schema.Field{
		field.Number("deletedAt").
			Nullable().
			Comment("Time the item was soft deleted"),
	}
}

// TimeSoftDelete combines Time and SoftDelete.
type TimeSoftDelete struct {
	Schema
	Clock Clock
}

// Fields returns all timestamp and soft delete fields.
func (m TimeSoftDelete) Fields() []schema.Field {
	return append(Time{Clock: m.Clock}.Fields(), SoftDelete{}.Fields()...)
}

// Apply wraps a mixin and calls fn on the descriptor of each of its
// fields. This is useful for cross-cutting options:
//
//	mixin.Apply(mixin.Time{}, func(d *field.Descriptor) { d.Immutable = true })
func Apply(m schema.Mixin, fn func(*field.Descriptor)) schema.Mixin {
	return applied{Mixin: m, fn: fn}
}

type applied struct {
	schema.Mixin
	fn func(*field.Descriptor)
}

func (a applied) Fields() []schema.Field {
	fields := a.Mixin.Fields()
	for _, f := range fields {
		a.fn(f.Descriptor())
	}
	return fields
}
