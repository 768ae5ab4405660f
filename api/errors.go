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

package api

import (
	"errors"
	"net/http"

	"github.com/blinklabs-io/trustspell/errs"
)

// Error is the body of every failed API response
type Error struct {
	Code        int32          `json:"code"`
	Message     string         `json:"message"`
	Description string         `json:"description,omitempty"`
	Retriable   bool           `json:"retriable"`
	Details     map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidRequest = &Error{
		Code:        1,
		Message:     "invalid request",
		Description: "The request was invalid or malformed.",
	}
	ErrConflict = &Error{
		Code:    2,
		Message: "state conflict",
		Description: "The operation is not allowed in the current " +
			"state of the session.",
	}
	ErrNotFound = &Error{
		Code:        3,
		Message:     "not found",
		Description: "The requested item could not be found.",
	}
	ErrUpstreamMalformed = &Error{
		Code:    4,
		Message: "malformed upstream reply",
		Description: "The prover or wallet replied with something " +
			"that could not be used.",
		Retriable: true,
	}
	ErrUpstreamTimeout = &Error{
		Code:        5,
		Message:     "upstream timeout",
		Description: "The prover or wallet did not reply in time.",
		Retriable:   true,
	}
	ErrUpstreamUnavailable = &Error{
		Code:        6,
		Message:     "upstream unavailable",
		Description: "The prover or wallet could not be reached.",
		Retriable:   true,
	}
	ErrInternal = &Error{
		Code:        7,
		Message:     "internal error",
		Description: "An internal server error occurred.",
		Retriable:   true,
	}
)

// AllErrors returns the error catalogue
func AllErrors() []*Error {
	return []*Error{
		ErrInvalidRequest,
		ErrConflict,
		ErrNotFound,
		ErrUpstreamMalformed,
		ErrUpstreamTimeout,
		ErrUpstreamUnavailable,
		ErrInternal,
	}
}

// wrapErr creates a new Error with additional details
func wrapErr(base *Error, detail error) *Error {
	if detail == nil {
		return base
	}
	return &Error{
		Code:        base.Code,
		Message:     base.Message,
		Description: base.Description,
		Retriable:   base.Retriable,
		Details: map[string]any{
			"error": detail.Error(),
		},
	}
}

// errorFor maps an operation error to its catalogue entry
func errorFor(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errs.IsValidation(err):
		return wrapErr(ErrInvalidRequest, err)
	case errs.IsState(err):
		return wrapErr(ErrConflict, err)
	case errs.IsProtocol(err):
		return wrapErr(ErrUpstreamMalformed, err)
	case errs.IsTimeout(err):
		return wrapErr(ErrUpstreamTimeout, err)
	case errs.IsNetwork(err):
		return wrapErr(ErrUpstreamUnavailable, err)
	default:
		return wrapErr(ErrInternal, err)
	}
}

func statusFor(apiErr *Error) int {
	switch apiErr.Code {
	case ErrInvalidRequest.Code:
		return http.StatusBadRequest
	case ErrConflict.Code:
		return http.StatusConflict
	case ErrNotFound.Code:
		return http.StatusNotFound
	case ErrUpstreamMalformed.Code:
		return http.StatusBadGateway
	case ErrUpstreamTimeout.Code:
		return http.StatusGatewayTimeout
	case ErrUpstreamUnavailable.Code:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
