// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package statetrace

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNilRecorder is returned when a tracing engine is built without a recorder.
var ErrNilRecorder = errors.New("recorder must not be nil")

// FormatError reports malformed serialized input: bad magic, unsupported version,
// truncated data or inconsistent lengths. The whole input is rejected.
type FormatError struct {
	What  string
	Value interface{}
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: %s: %v", e.What, e.Value)
}

// NewFormatError creates a FormatError.
func NewFormatError(what string, value interface{}) error {
	return &FormatError{what, value}
}

// NotFoundError reports an unknown block, transaction or contract.
type NotFoundError struct {
	What  string
	Value interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.What, e.Value)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(what string, value interface{}) error {
	return &NotFoundError{what, value}
}

// ValidationError reports inconsistent but well-formed input, e.g. a snapshot
// declaring a height different from the resolved block.
type ValidationError struct {
	What     string
	Expected interface{}
	Actual   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: expected %v, got %v", e.What, e.Expected, e.Actual)
}

// NewValidationError creates a ValidationError.
func NewValidationError(what string, expected, actual interface{}) error {
	return &ValidationError{what, expected, actual}
}

// TransportError reports a failed remote fetch. Never retried.
type TransportError struct {
	URL    string
	Status int
	Cause  error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("transport error: %s: status %d", e.URL, e.Status)
}

// IsFormatError returns whether err is caused by a FormatError.
func IsFormatError(err error) bool {
	_, ok := errors.Cause(err).(*FormatError)
	return ok
}

// IsNotFound returns whether err is caused by a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// IsValidationError returns whether err is caused by a ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// IsTransportError returns whether err is caused by a TransportError.
func IsTransportError(err error) bool {
	_, ok := errors.Cause(err).(*TransportError)
	return ok
}
