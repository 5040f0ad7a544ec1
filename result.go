package quill

import (
	"encoding/json"

	"github.com/syssam/quill/pipeline"
)

type (
	// Row is one record, keyed by field name.
	Row = map[string]any

	// FieldErrors maps field names to messages.
	FieldErrors = pipeline.FieldErrors

	// NoInputErrors is the input error type of operations that never
	// report input errors.
	NoInputErrors struct{}
)

// Result is the outcome of every terminal call. A failed result holds
// either RuntimeError or InputErrors, never both.
type Result[T, E any] struct {
	Success      bool
	Data         T
	RuntimeError string
	InputErrors  E

	hasInput bool
	err      error
}

// Page is the data of a paginated select.
type Page struct {
	Data        []Row `json:"data" msgpack:"data"`
	Total       int64 `json:"total" msgpack:"total"`
	PerPage     int   `json:"perPage" msgpack:"perPage"`
	CurrentPage int   `json:"currentPage" msgpack:"currentPage"`
	LastPage    int   `json:"lastPage" msgpack:"lastPage"`
}

func succeed[T, E any](data T) Result[T, E] {
	return Result[T, E]{Success: true, Data: data}
}

func runtimeFailure[T, E any](msg string, err error) Result[T, E] {
	return Result[T, E]{RuntimeError: msg, err: err}
}

func inputFailure[T, E any](errs E, err error) Result[T, E] {
	return Result[T, E]{InputErrors: errs, hasInput: true, err: err}
}

// HasInputErrors reports whether the result failed on input errors.
func (r Result[T, E]) HasInputErrors() bool {
	return !r.Success && r.hasInput
}

// Err returns nil for successful results, otherwise a *QueryError or an
// *InputError.
func (r Result[T, E]) Err() error {
	if r.Success {
		return nil
	}
	return r.err
}

// Unwrap returns the data, or the error of a failed result.
func (r Result[T, E]) Unwrap() (T, error) {
	return r.Data, r.Err()
}

// MarshalJSON encodes the result with only the fields of its kind.
func (r Result[T, E]) MarshalJSON() ([]byte, error) {
	switch {
	case r.Success:
		return json.Marshal(struct {
			Success bool `json:"success"`
			Data    T    `json:"data"`
		}{true, r.Data})
	case r.hasInput:
		return json.Marshal(struct {
			Success     bool `json:"success"`
			InputErrors E    `json:"inputErrors"`
		}{false, r.InputErrors})
	default:
		return json.Marshal(struct {
			Success      bool   `json:"success"`
			RuntimeError string `json:"runtimeError"`
		}{false, r.RuntimeError})
	}
}
