package field

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Message keys. They double as the English text and as translation keys.
const (
	MsgRequired     = "This field is required"
	MsgDependency   = "This field requires `%s` to be set"
	MsgNotNull      = "This field cannot be null"
	MsgImmutable    = "This field cannot be updated"
	MsgType         = "Must be a %s"
	MsgMinLen       = "Must be at least %d characters"
	MsgMaxLen       = "Must be at most %d characters"
	MsgMatch        = "Does not match the expected format"
	MsgOneOf        = "Must be one of: %s"
	MsgUUID         = "Must be a valid UUID"
	MsgMin          = "Must be at least %v"
	MsgMax          = "Must be at most %v"
	MsgRange        = "Must be between %v and %v"
	MsgPositive     = "Must be positive"
	MsgInteger      = "Must be an integer"
	MsgMinItems     = "Must contain at least %d items"
	MsgMaxItems     = "Must contain at most %d items"
	MsgUnexpected   = "An unexpected error occurred"
	MsgInvalidValue = "Invalid value"
)

// ValidationError is a translatable validation message.
type ValidationError struct {
	Key  string
	Args []any
}

// Errorf returns a ValidationError with the given message key.
func Errorf(key string, args ...any) error {
	return &ValidationError{Key: key, Args: args}
}

// Error renders the English message.
func (e *ValidationError) Error() string {
	if len(e.Args) == 0 {
		return e.Key
	}
	return fmt.Sprintf(e.Key, e.Args...)
}

// Trim removes surrounding whitespace from strings.
func Trim(_ context.Context, v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

// Lower lower-cases strings.
func Lower(_ context.Context, v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

// NormalizeUUID rewrites parseable UUIDs to their canonical form.
func NormalizeUUID(_ context.Context, v any) any {
	if s, ok := v.(string); ok {
		if id, err := uuid.Parse(strings.TrimSpace(s)); err == nil {
			return id.String()
		}
	}
	return v
}

// IsUUID rejects values that are not UUID strings.
func IsUUID(_ context.Context, v any) error {
	s, ok := v.(string)
	if !ok {
		return Errorf(MsgUUID)
	}
	if _, err := uuid.Parse(s); err != nil {
		return Errorf(MsgUUID)
	}
	return nil
}

// MinLen returns a validator rejecting strings shorter than n runes.
func MinLen(n int) Validator {
	return func(_ context.Context, v any) error {
		s, ok := v.(string)
		if !ok {
			return Errorf(MsgType, TypeString)
		}
		if utf8.RuneCountInString(s) < n {
			return Errorf(MsgMinLen, n)
		}
		return nil
	}
}

// MaxLen returns a validator rejecting strings longer than n runes.
func MaxLen(n int) Validator {
	return func(_ context.Context, v any) error {
		s, ok := v.(string)
		if !ok {
			return Errorf(MsgType, TypeString)
		}
		if utf8.RuneCountInString(s) > n {
			return Errorf(MsgMaxLen, n)
		}
		return nil
	}
}

// Match returns a validator requiring strings to match re.
func Match(re *regexp.Regexp) Validator {
	return func(_ context.Context, v any) error {
		s, ok := v.(string)
		if !ok || !re.MatchString(s) {
			return Errorf(MsgMatch)
		}
		return nil
	}
}

// OneOf returns a validator accepting only the given strings.
func OneOf(values ...string) Validator {
	return func(_ context.Context, v any) error {
		s, _ := v.(string)
		for _, x := range values {
			if s == x {
				return nil
			}
		}
		return Errorf(MsgOneOf, strings.Join(values, ", "))
	}
}

// Min returns a validator rejecting numbers below lo.
func Min(lo float64) Validator {
	return func(_ context.Context, v any) error {
		f, ok := ToFloat(v)
		if !ok {
			return Errorf(MsgType, TypeNumber)
		}
		if f < lo {
			return Errorf(MsgMin, lo)
		}
		return nil
	}
}

// Max returns a validator rejecting numbers above hi.
func Max(hi float64) Validator {
	return func(_ context.Context, v any) error {
		f, ok := ToFloat(v)
		if !ok {
			return Errorf(MsgType, TypeNumber)
		}
		if f > hi {
			return Errorf(MsgMax, hi)
		}
		return nil
	}
}

// Range returns a validator rejecting numbers outside [lo, hi].
func Range(lo, hi float64) Validator {
	return func(_ context.Context, v any) error {
		f, ok := ToFloat(v)
		if !ok {
			return Errorf(MsgType, TypeNumber)
		}
		if f < lo || f > hi {
			return Errorf(MsgRange, lo, hi)
		}
		return nil
	}
}

// Positive rejects numbers that are not greater than zero.
func Positive(_ context.Context, v any) error {
	f, ok := ToFloat(v)
	if !ok {
		return Errorf(MsgType, TypeNumber)
	}
	if f <= 0 {
		return Errorf(MsgPositive)
	}
	return nil
}

// Integer rejects numbers with a fractional part.
func Integer(_ context.Context, v any) error {
	f, ok := ToFloat(v)
	if !ok {
		return Errorf(MsgType, TypeNumber)
	}
	if f != math.Trunc(f) {
		return Errorf(MsgInteger)
	}
	return nil
}

// MinItems returns a validator rejecting arrays with fewer than n elements.
func MinItems(n int) Validator {
	return func(_ context.Context, v any) error {
		l, ok := length(v)
		if !ok {
			return Errorf(MsgType, TypeArray)
		}
		if l < n {
			return Errorf(MsgMinItems, n)
		}
		return nil
	}
}

// MaxItems returns a validator rejecting arrays with more than n elements.
func MaxItems(n int) Validator {
	return func(_ context.Context, v any) error {
		l, ok := length(v)
		if !ok {
			return Errorf(MsgType, TypeArray)
		}
		if l > n {
			return Errorf(MsgMaxItems, n)
		}
		return nil
	}
}

func length(v any) (int, bool) {
	a, err := toArray(v)
	if err != nil {
		return 0, false
	}
	return len(a), true
}
