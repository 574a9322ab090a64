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
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorImplementsError(t *testing.T) {
	e := NewAPIError(VolumeIDDoesNotExist, "VolumeID 7 does not exist.").
		WithCall("DeleteVolume", map[string]any{"volumeID": 7}, "10.0.0.100", "/json-rpc/9.0")
	var err1 error //nolint:gosimple
	err1 = e
	err2 := fmt.Errorf("hit error and wrapping %w", e)
	assert.Contains(t, err1.Error(), "DeleteVolume failed on 10.0.0.100")
	assert.Contains(t, err2.Error(), "xVolumeIDDoesNotExist")
	assert.True(t, IsAPIError(err2, VolumeIDDoesNotExist))
	assert.False(t, IsAPIError(err2, AccountIDDoesNotExist))
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus)
}

func TestRetryable(t *testing.T) {
	e := &APIError{Name: "xRetryableServiceUnavailable", HTTPStatus: 500}
	assert.True(t, e.IsRetryable())

	e = NewAPIError(InvalidParameter, "bad")
	assert.False(t, e.IsRetryable())

	// protocol failures without a JSON-RPC body are retried on 5xx only
	e = &APIError{HTTPStatus: http.StatusBadGateway}
	assert.True(t, e.IsRetryable())
	e = &APIError{HTTPStatus: http.StatusUnauthorized}
	assert.False(t, e.IsRetryable())
}

func TestUnknownAPIVersionStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, UnknownAPIVersion.Status)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("validate: %w", NewInvalidArgument("node-ips", "1.2.3", "not an IPv4 address"))
	assert.True(t, IsInvalidArgument(err))
	assert.ErrorContains(t, err, "invalid value 1.2.3 for argument node-ips")

	err = fmt.Errorf("poll: %w", &TimeoutError{Operation: "drives", Timeout: 10 * time.Minute})
	assert.True(t, IsTimeout(err))
	assert.False(t, IsInvalidArgument(err))

	inner := fmt.Errorf("connection refused")
	err = &TransportError{IP: "10.0.0.1", Endpoint: "/json-rpc/9.0", Err: inner}
	assert.ErrorIs(t, err, inner)
}
