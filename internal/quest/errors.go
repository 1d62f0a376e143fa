package quest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidValue is returned when a value does not fit the field it is written to
	ErrInvalidValue = errors.New("invalid value")

	// ErrInactiveField is returned when a field does not apply to the session role
	ErrInactiveField = errors.New("field is not used by this role")

	// ErrReadOnlyField is returned for fields that only engine operations may change
	ErrReadOnlyField = errors.New("field cannot be updated directly")

	// ErrStepNotReachable is returned when the navigation policy rejects a target step
	ErrStepNotReachable = errors.New("step is not reachable from the current step")

	// ErrSubmitInProgress is returned when a session is already submitting
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// ValidationErrors maps a field to a human readable message
type ValidationErrors map[Field]string

// Empty reports whether there are no errors
func (e ValidationErrors) Empty() bool {
	return len(e) == 0
}

// Clone returns a copy of the error set
func (e ValidationErrors) Clone() ValidationErrors {
	out := make(ValidationErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into e, overwriting duplicates
func (e ValidationErrors) Merge(other ValidationErrors) {
	for k, v := range other {
		e[k] = v
	}
}

// Fields returns the fields with errors in sorted order
func (e ValidationErrors) Fields() []Field {
	fields := make([]Field, 0, len(e))
	for k := range e {
		fields = append(fields, k)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// IncompleteError is returned by SubmitForm when any step fails validation
type IncompleteError struct {
	Errors ValidationErrors
}

func (e *IncompleteError) Error() string {
	names := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors.Fields() {
		names = append(names, string(f))
	}
	return fmt.Sprintf("please fix all errors before submitting: %s", strings.Join(names, ", "))
}
