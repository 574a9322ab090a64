/*
 (c) Copyright [2024] The sfadmin Authors.
 Licensed under the Apache License, Version 2.0 (the "License");
 You may not use this file except in compliance with the License.
 You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package sferrors

import (
	"errors"
	"fmt"
	"time"
)

// APIError is returned whenever a JSON-RPC call does not produce a result. It
// carries enough context to be logged on its own.
type APIError struct {
	MethodName string
	Params     any
	IP         string
	Endpoint   string
	// Name is the JSON-RPC error name, e.g. xVolumeIDDoesNotExist. It is empty
	// for protocol failures that did not carry a JSON-RPC error body.
	Name       string
	HTTPStatus int
	Message    string
}

// NewAPIError builds an APIError from a well-known name. Callers fill in the
// call context with the With* helpers.
func NewAPIError(name ErrorName, message string) *APIError {
	return &APIError{
		Name:       name.Name,
		HTTPStatus: name.Status,
		Message:    message,
	}
}

func (e *APIError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("HTTP %d", e.HTTPStatus)
	}
	if e.IP == "" {
		return fmt.Sprintf("%s failed: %s: %s", e.MethodName, name, e.Message)
	}
	return fmt.Sprintf("%s failed on %s (%s): %s: %s", e.MethodName, e.IP, e.Endpoint, name, e.Message)
}

// WithCall fills in the method, params and endpoint the error came from.
func (e *APIError) WithCall(method string, params any, ip, endpoint string) *APIError {
	e.MethodName = method
	e.Params = params
	e.IP = ip
	e.Endpoint = endpoint
	return e
}

// IsInstanceOf checks whether the error has the given well-known name.
func (e *APIError) IsInstanceOf(name ErrorName) bool {
	return e.Name == name.Name
}

// IsRetryable reports whether the transport should try the call again.
func (e *APIError) IsRetryable() bool {
	if e.Name == "" {
		return e.HTTPStatus >= 500
	}
	return IsRetryableName(e.Name)
}

// IsAPIError reports whether err wraps an APIError with the given name.
func IsAPIError(err error, name ErrorName) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsInstanceOf(name)
	}
	return false
}

// InvalidArgumentError is raised when an action argument fails validation or
// coercion. It never reaches the RPC layer.
type InvalidArgumentError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid argument %s: %s", e.Name, e.Reason)
	}
	if e.Reason == "" {
		return fmt.Sprintf("invalid value %v for argument %s", e.Value, e.Name)
	}
	return fmt.Sprintf("invalid value %v for argument %s: %s", e.Value, e.Name, e.Reason)
}

// NewInvalidArgument returns an InvalidArgumentError.
func NewInvalidArgument(name string, value any, reasonFmt string, args ...any) error {
	return &InvalidArgumentError{
		Name:   name,
		Value:  value,
		Reason: fmt.Sprintf(reasonFmt, args...),
	}
}

// IsInvalidArgument reports whether err wraps an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var argErr *InvalidArgumentError
	return errors.As(err, &argErr)
}

// TimeoutError is returned when a polling loop exceeds its deadline.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s waiting for %s", e.Timeout, e.Operation)
}

// IsTimeout reports whether err wraps a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// TransportError covers network, TLS and socket failures.
type TransportError struct {
	IP       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fail to reach %s (%s): %v", e.IP, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CommandError is a failed subprocess invocation.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q failed (exit code %d): %v: %s", e.Command, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("command %q failed (exit code %d): %s", e.Command, e.ExitCode, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
