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

package sfclusterops

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"

	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
	"github.com/solidfire/sfadmin/sferrors"
)

// scriptedDoer answers requests with a function and records what it saw
type scriptedDoer struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	answer   func(n int, req *http.Request, body string) (*http.Response, error)
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, string(body))
	n := len(d.requests)
	d.mu.Unlock()
	return d.answer(n, req, string(body))
}

func (d *scriptedDoer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func reply(status int, body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}, nil
}

func newTestTransport(t *testing.T, doer HTTPDoer) *Transport {
	t.Helper()
	util.SetTimeUnits(0)
	t.Cleanup(func() { util.SetTimeUnits(time.Second) })
	return NewTransport("10.0.0.100", util.DefaultClusterPort, "admin", "secret", 9.0, doer,
		vlog.MakePrinter(buflogr.New(), nil))
}

func TestTransportRequestFormat(t *testing.T) {
	doer := &scriptedDoer{answer: func(int, *http.Request, string) (*http.Response, error) {
		return reply(http.StatusOK, `{"id": 1, "result": {"clusterInfo": {"name": "c1", "mvip": "10.0.0.100"}}}`)
	}}
	tr := newTestTransport(t, doer)

	var res struct {
		ClusterInfo ClusterInfo `json:"clusterInfo"`
	}
	require.NoError(t, tr.Call(context.Background(), "GetClusterInfo", map[string]any{"x": 1}, &res))
	assert.Equal(t, "c1", res.ClusterInfo.Name)

	require.Equal(t, 1, doer.count())
	req := doer.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://10.0.0.100:443/json-rpc/9.0", req.URL.String())
	user, pass, ok := req.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", pass)
	assert.JSONEq(t, `{"method": "GetClusterInfo", "params": {"x": 1}, "id": 1}`, doer.bodies[0])
}

func TestTransportRetriesServerErrors(t *testing.T) {
	doer := &scriptedDoer{answer: func(n int, _ *http.Request, _ string) (*http.Response, error) {
		switch n {
		case 1:
			return reply(http.StatusServiceUnavailable, "busy")
		case 2:
			return reply(http.StatusInternalServerError,
				`{"error": {"name": "xRetryableBusy", "code": 500, "message": "try again"}}`)
		}
		return reply(http.StatusOK, `{"result": {}}`)
	}}
	tr := newTestTransport(t, doer)
	require.NoError(t, tr.Call(context.Background(), "ListDrives", nil, nil))
	assert.Equal(t, 3, doer.count())
}

func TestTransportGivesUpAfterMaxAttempts(t *testing.T) {
	doer := &scriptedDoer{answer: func(int, *http.Request, string) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	tr := newTestTransport(t, doer)
	err := tr.Call(context.Background(), "ListDrives", nil, nil)
	var transportErr *sferrors.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "10.0.0.100", transportErr.IP)
	assert.Equal(t, "/json-rpc/9.0", transportErr.Endpoint)
	assert.Equal(t, util.RetryMaxAttempts, doer.count())
}

func TestTransportDoesNotRetryDomainErrors(t *testing.T) {
	doer := &scriptedDoer{answer: func(int, *http.Request, string) (*http.Response, error) {
		return reply(http.StatusInternalServerError,
			`{"error": {"name": "xVolumeIDDoesNotExist", "code": 500, "message": "VolumeID 7 does not exist."}}`)
	}}
	tr := newTestTransport(t, doer)
	params := map[string]any{"volumeID": 7}
	err := tr.Call(context.Background(), "DeleteVolume", params, nil)

	var apiErr *sferrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1, doer.count())
	assert.Equal(t, "DeleteVolume", apiErr.MethodName)
	assert.Equal(t, params, apiErr.Params)
	assert.Equal(t, "10.0.0.100", apiErr.IP)
	assert.Equal(t, "/json-rpc/9.0", apiErr.Endpoint)
	assert.Equal(t, "xVolumeIDDoesNotExist", apiErr.Name)
	assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPStatus)
	assert.Equal(t, "VolumeID 7 does not exist.", apiErr.Message)

	// client errors without a JSON-RPC body are not retried either
	doer = &scriptedDoer{answer: func(int, *http.Request, string) (*http.Response, error) {
		return reply(http.StatusUnauthorized, "")
	}}
	tr = newTestTransport(t, doer)
	err = tr.Call(context.Background(), "ListDrives", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
	assert.Empty(t, apiErr.Name)
	assert.Equal(t, 1, doer.count())
}

func TestTransportNegotiatesVersion(t *testing.T) {
	doer := &scriptedDoer{answer: func(_ int, req *http.Request, body string) (*http.Response, error) {
		switch {
		case req.URL.Path == "/json-rpc/9.0":
			return reply(http.StatusNotFound,
				`{"error": {"name": "xUnknownAPIVersion", "code": 404, "message": "no"}}`)
		case req.URL.Path == "/json-rpc/1.0" && strings.Contains(body, "GetAPI"):
			return reply(http.StatusOK, `{"result": {"currentVersion": 9.0, "supportedVersions": [1.0, 8.0, 8.4]}}`)
		case req.URL.Path == "/json-rpc/8.4":
			return reply(http.StatusOK, `{"result": {"nodes": []}}`)
		}
		return reply(http.StatusBadRequest, "unexpected")
	}}
	tr := newTestTransport(t, doer)
	var res struct {
		Nodes []Node `json:"nodes"`
	}
	require.NoError(t, tr.Call(context.Background(), "ListActiveNodes", nil, &res))
	require.Equal(t, 3, doer.count())
	assert.Equal(t, "/json-rpc/8.4", doer.requests[2].URL.Path)
}

func TestTransportNegotiationFailure(t *testing.T) {
	doer := &scriptedDoer{answer: func(_ int, req *http.Request, _ string) (*http.Response, error) {
		if req.URL.Path == "/json-rpc/1.0" {
			return reply(http.StatusOK, `{"result": {"currentVersion": 8.0, "supportedVersions": [1.0, 8.0]}}`)
		}
		return reply(http.StatusNotFound, "not found")
	}}
	tr := newTestTransport(t, doer)
	err := tr.Call(context.Background(), "ListActiveNodes", nil, nil)
	assert.True(t, sferrors.IsAPIError(err, sferrors.UnknownAPIVersion))
}

func TestTransportDownload(t *testing.T) {
	doer := &scriptedDoer{answer: func(_ int, req *http.Request, _ string) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/reports/bins.json" {
			return reply(http.StatusNotFound, "")
		}
		return reply(http.StatusOK, `[{"binID": 0, "services": [{"serviceID": 1, "status": "bsActive"}]}]`)
	}}
	tr := newTestTransport(t, doer)
	var bins []BinReport
	require.NoError(t, tr.Download(context.Background(), "/reports/bins.json", &bins))
	require.Len(t, bins, 1)
	assert.Equal(t, BinServiceActive, bins[0].Services[0].Status)

	var other []BinReport
	err := tr.Download(context.Background(), "/reports/nothing.json", &other)
	var apiErr *sferrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
}

func TestTransportStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	doer := &scriptedDoer{answer: func(int, *http.Request, string) (*http.Response, error) {
		cancel()
		return nil, context.Canceled
	}}
	tr := newTestTransport(t, doer)
	err := tr.Call(ctx, "ListDrives", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, doer.count())
}

func TestTruncate(t *testing.T) {
	long := bytes.Repeat([]byte("x"), maxErrorBodyLen+10)
	assert.Len(t, truncate(string(long)), maxErrorBodyLen+3)
	assert.Equal(t, "short", truncate("short"))
}
