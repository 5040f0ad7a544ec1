package field

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Type is the data type of a field.
type Type uint8

// Field data types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeNumber
	TypeBoolean
	TypeArray
	TypeObject
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeNumber:  "number",
	TypeBoolean: "boolean",
	TypeArray:   "array",
	TypeObject:  "object",
}

// String returns the type name.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// ParseType returns the Type named s.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if i > 0 && name == s {
			return Type(i), nil
		}
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", s)
}

type (
	// Sanitizer normalizes a value before validation. Sanitizers are called
	// in order with the output of the previous one.
	Sanitizer func(context.Context, any) any

	// Validator checks a value. The first non-nil error of a field's chain
	// becomes the field's message, unless it is ErrSkipValidation.
	Validator func(context.Context, any) error

	// Populator expands a stored value into its application-facing shape.
	Populator func(context.Context, any) (any, error)

	// Serializer converts a value into its storage representation.
	Serializer func(any) (any, error)

	// Deserializer converts a stored value back.
	Deserializer func(any) (any, error)
)

// ErrSkipValidation stops a field's validator chain without reporting
// an error.
var ErrSkipValidation = errors.New("field: skip validation")

// Descriptor describes a collection field.
type Descriptor struct {
	Name      string
	Type      Type
	Nullable  bool
	Required  bool
	Immutable bool
	// Default is a literal value or a func() any called for each use.
	Default any
	// UpdateDefault is applied on update when the field is absent.
	UpdateDefault any
	Dependencies []string
	Sanitizers   []Sanitizer
	Validators   []Validator
	Populator    Populator
	Serializer   Serializer
	Deserializer Deserializer
	// Conditional is an expression that decides whether the field is
	// active for a given input.
	Conditional string
	Comment     string
	// Err holds the first error raised while building the descriptor.
	Err error
}

// HasDefault reports whether a default value is configured.
func (d *Descriptor) HasDefault() bool {
	return d.Default != nil
}

// DefaultValue returns the default, calling it when it is a function.
func (d *Descriptor) DefaultValue() any {
	return evaluate(d.Default)
}

// UpdateDefaultValue returns the update default.
func (d *Descriptor) UpdateDefaultValue() any {
	return evaluate(d.UpdateDefault)
}

func evaluate(v any) any {
	switch f := v.(type) {
	case func() any:
		return f()
	case func() string:
		return f()
	case func() float64:
		return f()
	case func() bool:
		return f()
	case func() int64:
		return f()
	}
	return v
}

func (d *Descriptor) fail(err error) {
	if d.Err == nil {
		d.Err = err
	}
}

// builder holds the options shared by every field type. B is the
// concrete builder returned for chaining.
type builder[B any] struct {
	desc *Descriptor
	self B
}

// Required marks the field as required on insert.
func (b *builder[B]) Required() B {
	b.desc.Required = true
	return b.self
}

// Nullable allows null values.
func (b *builder[B]) Nullable() B {
	b.desc.Nullable = true
	return b.self
}

// Immutable rejects the field in updates.
func (b *builder[B]) Immutable() B {
	b.desc.Immutable = true
	return b.self
}

// Default sets the default value. v may be a func() any.
func (b *builder[B]) Default(v any) B {
	b.desc.Default = v
	return b.self
}

// DefaultFunc sets a default computed on every use.
func (b *builder[B]) DefaultFunc(fn func() any) B {
	if fn == nil {
		b.desc.fail(fmt.Errorf("field %q: nil default func", b.desc.Name))
		return b.self
	}
	b.desc.Default = fn
	return b.self
}

// UpdateDefault sets the value written on update when the field is
// not set. v may be a func() any.
func (b *builder[B]) UpdateDefault(v any) B {
	b.desc.UpdateDefault = v
	return b.self
}

// DependsOn declares paths that must be present for the field to be
// processed.
func (b *builder[B]) DependsOn(paths ...string) B {
	b.desc.Dependencies = append(b.desc.Dependencies, paths...)
	return b.self
}

// Sanitize appends sanitizers.
func (b *builder[B]) Sanitize(fns ...Sanitizer) B {
	b.desc.Sanitizers = append(b.desc.Sanitizers, fns...)
	return b.self
}

// Validate appends validators.
func (b *builder[B]) Validate(fns ...Validator) B {
	b.desc.Validators = append(b.desc.Validators, fns...)
	return b.self
}

// Populate sets the populator.
func (b *builder[B]) Populate(fn Populator) B {
	b.desc.Populator = fn
	return b.self
}

// SerializeWith overrides the storage serializer.
func (b *builder[B]) SerializeWith(fn Serializer) B {
	b.desc.Serializer = fn
	return b.self
}

// DeserializeWith overrides the storage deserializer.
func (b *builder[B]) DeserializeWith(fn Deserializer) B {
	b.desc.Deserializer = fn
	return b.self
}

// When sets the conditional expression that activates the field.
//
//	field.String("wand").When(`input.type == "wizard"`)
func (b *builder[B]) When(expr string) B {
	b.desc.Conditional = expr
	return b.self
}

// Comment sets the field comment.
func (b *builder[B]) Comment(c string) B {
	b.desc.Comment = c
	return b.self
}

// Descriptor implements the schema.Field interface.
func (b *builder[B]) Descriptor() *Descriptor {
	return b.desc
}

func newBuilder[B any](name string, t Type, self B) builder[B] {
	d := &Descriptor{Name: name, Type: t}
	if name == "" {
		d.fail(errors.New("field: missing name"))
	}
	return builder[B]{desc: d, self: self}
}

type stringBuilder struct {
	builder[*stringBuilder]
}

// String returns a new string field.
func String(name string) *stringBuilder {
	b := &stringBuilder{}
	b.builder = newBuilder(name, TypeString, b)
	return b
}

// NotEmpty rejects empty strings.
func (b *stringBuilder) NotEmpty() *stringBuilder {
	return b.Validate(MinLen(1))
}

// MinLen sets the minimum length in runes.
func (b *stringBuilder) MinLen(n int) *stringBuilder {
	return b.Validate(MinLen(n))
}

// MaxLen sets the maximum length in runes.
func (b *stringBuilder) MaxLen(n int) *stringBuilder {
	return b.Validate(MaxLen(n))
}

// Match requires the value to match re.
func (b *stringBuilder) Match(re *regexp.Regexp) *stringBuilder {
	return b.Validate(Match(re))
}

// Trim adds a whitespace-trimming sanitizer.
func (b *stringBuilder) Trim() *stringBuilder {
	return b.Sanitize(Trim)
}

// Lower adds a lower-casing sanitizer.
func (b *stringBuilder) Lower() *stringBuilder {
	return b.Sanitize(Lower)
}

// Enum returns a string field restricted to values.
func Enum(name string, values ...string) *stringBuilder {
	b := String(name)
	if len(values) == 0 {
		b.desc.fail(fmt.Errorf("field %q: enum without values", name))
	}
	return b.Validate(OneOf(values...))
}

// UUID returns a string field holding a canonical UUID. Input is
// normalized to the lower-case hyphenated form.
func UUID(name string) *stringBuilder {
	return String(name).Sanitize(NormalizeUUID).Validate(IsUUID)
}

// AutoUUID returns a UUID field defaulting to a new random UUID.
func AutoUUID(name string) *stringBuilder {
	return UUID(name).DefaultFunc(func() any { return uuid.NewString() }).Immutable()
}

type numberBuilder struct {
	builder[*numberBuilder]
}

// Number returns a new numeric field.
func Number(name string) *numberBuilder {
	b := &numberBuilder{}
	b.builder = newBuilder(name, TypeNumber, b)
	return b
}

// Min sets the minimum value.
func (b *numberBuilder) Min(v float64) *numberBuilder {
	return b.Validate(Min(v))
}

// Max sets the maximum value.
func (b *numberBuilder) Max(v float64) *numberBuilder {
	return b.Validate(Max(v))
}

// Range sets both bounds.
func (b *numberBuilder) Range(lo, hi float64) *numberBuilder {
	return b.Validate(Range(lo, hi))
}

// Positive rejects zero and negative values.
func (b *numberBuilder) Positive() *numberBuilder {
	return b.Validate(Positive)
}

// NonNegative rejects negative values.
func (b *numberBuilder) NonNegative() *numberBuilder {
	return b.Validate(Min(0))
}

// Integer rejects values with a fractional part.
func (b *numberBuilder) Integer() *numberBuilder {
	return b.Validate(Integer)
}

type boolBuilder struct {
	builder[*boolBuilder]
}

// Bool returns a new boolean field.
func Bool(name string) *boolBuilder {
	b := &boolBuilder{}
	b.builder = newBuilder(name, TypeBoolean, b)
	return b
}

type arrayBuilder struct {
	builder[*arrayBuilder]
}

// Array returns a new array field, stored as a JSON array.
func Array(name string) *arrayBuilder {
	b := &arrayBuilder{}
	b.builder = newBuilder(name, TypeArray, b)
	return b
}

// MinItems sets the minimum number of elements.
func (b *arrayBuilder) MinItems(n int) *arrayBuilder {
	return b.Validate(MinItems(n))
}

// MaxItems sets the maximum number of elements.
func (b *arrayBuilder) MaxItems(n int) *arrayBuilder {
	return b.Validate(MaxItems(n))
}

type objectBuilder struct {
	builder[*objectBuilder]
}

// Object returns a new object field, stored as a JSON object.
func Object(name string) *objectBuilder {
	b := &objectBuilder{}
	b.builder = newBuilder(name, TypeObject, b)
	return b
}
