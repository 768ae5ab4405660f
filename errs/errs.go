// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs holds the error taxonomy shared by the anchoring pipeline.
//
// Every error carries the operation that produced it and wraps the
// underlying cause, so callers can use errors.Is against package sentinels
// and errors.As (or the Is* helpers) against the category.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports malformed input rejected before any state change
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StateError reports an operation that is illegal in the current state,
// such as a double vote or executing a proposal that has not passed
type StateError struct {
	Op  string
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error: %s: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed response from an external collaborator
// or a failure to build a wire-format transaction
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError reports an external call that exceeded its deadline
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError reports an external collaborator that could not be reached
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func NewValidation(op string, err error) error {
	return &ValidationError{Op: op, Err: err}
}

func Validationf(op string, format string, args ...any) error {
	return &ValidationError{Op: op, Err: fmt.Errorf(format, args...)}
}

func NewState(op string, err error) error {
	return &StateError{Op: op, Err: err}
}

func NewProtocol(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}

func Protocolf(op string, format string, args ...any) error {
	return &ProtocolError{Op: op, Err: fmt.Errorf(format, args...)}
}

func NewTimeout(op string, err error) error {
	return &TimeoutError{Op: op, Err: err}
}

func NewNetwork(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// FromContext classifies a failed external call. A deadline becomes a
// TimeoutError, anything else (including cancellation) a NetworkError.
// Errors that already carry a category are returned unchanged.
func FromContext(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(op, err)
	}
	return NewNetwork(op, err)
}

// Classified returns true if err belongs to one of the taxonomy categories
func Classified(err error) bool {
	return IsValidation(err) || IsState(err) || IsProtocol(err) ||
		IsTimeout(err) || IsNetwork(err)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsState(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

func IsProtocol(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}
