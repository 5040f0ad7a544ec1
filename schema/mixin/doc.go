// Package mixin provides reusable field sets for collections.
//
// # Built-in Mixins
//
//	mixin.ID{}             // id: random UUID, immutable
//	mixin.Time{}           // createdAt, updatedAt (Unix milliseconds)
//	mixin.CreateTime{}     // createdAt only
//	mixin.UpdateTime{}     // updatedAt only
//	mixin.SoftDelete{}     // deletedAt, nullable
//	mixin.TimeSoftDelete{} // Time and SoftDelete
//
// # Using Mixins
//
// Mixin fields are appended after the collection's own fields:
//
//	schema.NewCollection("Students",
//	    field.String("firstName").Required(),
//	).Mixin(mixin.ID{}, mixin.Time{})
//
// # Custom Mixins
//
// Embed Schema and override Fields:
//
//	type Audit struct{ mixin.Schema }
//
//	func (Audit) Fields() []schema.Field {
//	    return []schema.Field{
//	        field.String("createdBy").Immutable(),
//	        field.String("updatedBy"),
//	    }
//	}
//
// Apply adjusts the fields of an existing mixin without redefining it.
package mixin
