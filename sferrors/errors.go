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

// Package sferrors holds the error taxonomy shared by the transport, the
// cluster and node clients, the simulator and the command framework.
package sferrors

import (
	"net/http"
	"strings"
)

// List of all well-known JSON-RPC error names that sfadmin may see. The names
// come straight from the "name" member of the JSON-RPC error object and are
// treated as immutable identifiers.
//
// The status is the HTTP status the server uses when it reports the error.
var (
	MissingParameter = newErrorName(
		"xMissingParameter",
		"A required parameter is missing",
		http.StatusInternalServerError,
	)
	InvalidParameter = newErrorName(
		"xInvalidParameter",
		"A parameter has an invalid value",
		http.StatusInternalServerError,
	)
	UnknownAPIVersion = newErrorName(
		"xUnknownAPIVersion",
		"The requested API version is not supported",
		http.StatusNotFound,
	)
	UnknownRPCMethod = newErrorName(
		"xUnknownRPCMethod",
		"The requested method does not exist",
		http.StatusInternalServerError,
	)
	AccountIDDoesNotExist = newErrorName(
		"xAccountIDDoesNotExist",
		"Account does not exist",
		http.StatusInternalServerError,
	)
	VolumeIDDoesNotExist = newErrorName(
		"xVolumeIDDoesNotExist",
		"Volume does not exist",
		http.StatusInternalServerError,
	)
	VolumeAccessGroupIDDoesNotExist = newErrorName(
		"xVolumeAccessGroupIDDoesNotExist",
		"Volume access group does not exist",
		http.StatusInternalServerError,
	)
	DBNoSuchPath = newErrorName(
		"xDBNoSuchPath",
		"No such path",
		http.StatusInternalServerError,
	)
	ExceededLimit = newErrorName(
		"xExceededLimit",
		"A cluster limit was exceeded",
		http.StatusInternalServerError,
	)
	VolumeShrinkProhibited = newErrorName(
		"xVolumeShrinkProhibited",
		"Volumes cannot be shrunk",
		http.StatusInternalServerError,
	)
	UnrecognizedEnumString = newErrorName(
		"xUnrecognizedEnumString",
		"Unrecognized enumeration value",
		http.StatusInternalServerError,
	)
	VolumeNotPaired = newErrorName(
		"xVolumeNotPaired",
		"Volume is not paired",
		http.StatusInternalServerError,
	)
	SoftwareInstallNotInProgress = newErrorName(
		"xSoftwareInstallNotInProgress",
		"No software install is in progress",
		http.StatusInternalServerError,
	)
	DriveIDDoesNotExist = newErrorName(
		"xDriveIDDoesNotExist",
		"Drive does not exist",
		http.StatusInternalServerError,
	)
	NodeIDDoesNotExist = newErrorName(
		"xNodeIDDoesNotExist",
		"Node does not exist",
		http.StatusInternalServerError,
	)
)

// RetryablePrefix tags errors the server expects the client to retry.
const RetryablePrefix = "xRetryable"

// ErrorName identifies one kind of JSON-RPC error.
type ErrorName struct {
	Name   string
	Title  string
	Status int
}

func newErrorName(name, title string, status int) ErrorName {
	return ErrorName{
		Name:   name,
		Title:  title,
		Status: status,
	}
}

// IsRetryableName reports whether the server tagged the error as retryable.
func IsRetryableName(name string) bool {
	return strings.HasPrefix(name, RetryablePrefix)
}
