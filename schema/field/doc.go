// Package field provides fluent builders for collection fields.
//
// Field names are used verbatim as column names and declaration order
// drives column order in generated SQL:
//
//	field.String("name").Required().Trim().MaxLen(40)
//	field.Number("points").Default(0).NonNegative()
//	field.Bool("alive").Default(true)
//	field.Array("tags")
//	field.Object("meta").Nullable()
//
// # Field Types
//
// Every field has one of five data types. Arrays and objects are stored
// as JSON text and booleans as 1 or 0:
//
//	TypeString, TypeNumber, TypeBoolean, TypeArray, TypeObject
//
// UUID and enum fields are string fields with preset rules:
//
//	field.AutoUUID("id")                       // default uuid.NewString, immutable
//	field.Enum("type", "charm", "curse", "jinx")
//
// # Field Options
//
//	field.String("email").
//	    Required().            // Rejected on insert when missing
//	    Nullable().            // Accepts null
//	    Immutable().           // Rejected in updates
//	    Default("unknown").    // Default value, or a func() any
//	    DependsOn("name").     // Skipped with an error unless name is set
//	    When(`input.kind == "wizard"`) // Active only when the expression holds
//
// # Sanitizers and Validators
//
// Sanitizers run first, in order, each receiving the previous output.
// Validators then run in order; the first error becomes the field's
// message. Returning ErrSkipValidation ends the chain silently:
//
//	field.String("nickname").Validate(func(ctx context.Context, v any) error {
//	    if v == "" {
//	        return field.ErrSkipValidation
//	    }
//	    return nil
//	})
//
// Built-in validators return a *ValidationError whose Key is translated
// with the builder's language.
package field
