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
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
	"github.com/solidfire/sfadmin/sferrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPDoer sends one HTTP request. *http.Client satisfies it; tests plug
// in a client whose transport is the simulator.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// negotiation always goes through an endpoint every release serves
const negotiationAPIVersion = 1.0

// maximum number of response bytes quoted in an error message
const maxErrorBodyLen = 512

// Transport sends JSON-RPC requests to one endpoint, either the cluster MVIP
// on port 443 or a node MIP on port 442.
type Transport struct {
	IP         string
	Port       int
	Username   string
	Password   string
	APIVersion float64

	client    HTTPDoer
	log       vlog.Printer
	requestID atomic.Int64
}

// NewTransport builds a transport. A nil client means DefaultHTTPClient().
func NewTransport(ip string, port int, username, password string, apiVersion float64,
	client HTTPDoer, log vlog.Printer) *Transport {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Transport{
		IP:         ip,
		Port:       port,
		Username:   username,
		Password:   password,
		APIVersion: apiVersion,
		client:     client,
		log:        log.WithName("transport"),
	}
}

// DefaultHTTPClient talks to the appliance over TLS. The appliance ships
// self-signed certificates, so they cannot be verified.
func DefaultHTTPClient() *http.Client {
	//nolint:gosec
	return &http.Client{
		Timeout: time.Duration(util.DefaultRequestTimeoutSeconds) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
	}
}

// Endpoint is the URL path of the JSON-RPC endpoint for a version
func Endpoint(apiVersion float64) string {
	return "/json-rpc/" + FormatAPIVersion(apiVersion)
}

type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
	ID     int64  `json:"id"`
}

type rpcResponse struct {
	ID     any                 `json:"id"`
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
}

type rpcError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call invokes method with params and decodes the result member into result,
// which may be nil. When the endpoint version is unknown to the server, the
// version is negotiated once through GetAPI and the call is sent again.
func (t *Transport) Call(ctx context.Context, method string, params, result any) error {
	if params == nil {
		params = map[string]any{}
	}
	err := t.callWithRetry(ctx, method, params, result, t.APIVersion)
	if err == nil || !needsNegotiation(err) {
		return err
	}

	apiVersion, negErr := t.negotiate(ctx)
	if negErr != nil {
		return negErr
	}
	if apiVersion == t.APIVersion {
		return err
	}
	t.log.PrintDebug("API version %s is not served by %s, using %s",
		FormatAPIVersion(t.APIVersion), t.IP, FormatAPIVersion(apiVersion))
	return t.callWithRetry(ctx, method, params, result, apiVersion)
}

func needsNegotiation(err error) bool {
	var apiErr *sferrors.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.IsInstanceOf(sferrors.UnknownAPIVersion) ||
		(apiErr.Name == "" && apiErr.HTTPStatus == http.StatusNotFound)
}

// negotiate picks the endpoint version to use against this server
func (t *Transport) negotiate(ctx context.Context) (float64, error) {
	var info APIInfo
	if err := t.callWithRetry(ctx, "GetAPI", map[string]any{}, &info, negotiationAPIVersion); err != nil {
		return 0, fmt.Errorf("fail to negotiate the API version with %s: %w", t.IP, err)
	}
	apiVersion, err := SelectAPIVersion(t.APIVersion, info.CurrentVersion, info.SupportedVersions)
	if err != nil {
		var apiErr *sferrors.APIError
		if errors.As(err, &apiErr) {
			apiErr.WithCall("GetAPI", nil, t.IP, Endpoint(negotiationAPIVersion))
		}
		return 0, err
	}
	return apiVersion, nil
}

// retryPolicy is exponential with no jitter, bounded in attempts rather
// than elapsed time. It scales with util.TimeSecond.
func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = util.Seconds(util.RetryInitialIntervalSecond)
	b.Multiplier = util.RetryMultiplier
	b.MaxInterval = util.Seconds(util.RetryMaxIntervalSeconds)
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, util.RetryMaxAttempts-1), ctx)
}

// retry runs op under the retry policy. op reports whether its error is
// worth another attempt.
func (t *Transport) retry(ctx context.Context, what string, op func() (retryable bool, err error)) error {
	attempt := 0
	operation := func() error {
		attempt++
		retryable, err := op()
		if err != nil && !retryable {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.log.PrintDebug("%s on %s failed on attempt %d, retrying in %s: %v", what, t.IP, attempt, wait, err)
	}
	return backoff.RetryNotify(operation, retryPolicy(ctx), notify)
}

func (t *Transport) callWithRetry(ctx context.Context, method string, params, result any, apiVersion float64) error {
	return t.retry(ctx, method, func() (bool, error) {
		return t.callOnce(ctx, method, params, result, apiVersion)
	})
}

func (t *Transport) callOnce(ctx context.Context, method string, params, result any,
	apiVersion float64) (retryable bool, err error) {
	endpoint := Endpoint(apiVersion)
	body, err := json.Marshal(rpcRequest{Method: method, Params: params, ID: t.requestID.Add(1)})
	if err != nil {
		return false, fmt.Errorf("fail to marshal %s request: %w", method, err)
	}
	requestURL := fmt.Sprintf("https://%s:%d%s", t.IP, t.Port, endpoint)
	t.log.V(1).Info("Sending request", "method", method, "url", requestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("fail to build %s request for %s: %w", method, t.IP, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(t.Username, t.Password)

	statusCode, respBody, err := t.send(ctx, req, endpoint)
	if err != nil {
		return ctx.Err() == nil, err
	}

	var resp rpcResponse
	decodeErr := json.Unmarshal(respBody, &resp)
	if decodeErr == nil && resp.Error != nil {
		apiErr := (&sferrors.APIError{
			Name:       resp.Error.Name,
			HTTPStatus: statusCode,
			Message:    resp.Error.Message,
		}).WithCall(method, params, t.IP, endpoint)
		return apiErr.IsRetryable(), apiErr
	}
	if statusCode < 200 || statusCode >= 300 {
		apiErr := (&sferrors.APIError{
			HTTPStatus: statusCode,
			Message:    truncate(string(respBody)),
		}).WithCall(method, params, t.IP, endpoint)
		return apiErr.IsRetryable(), apiErr
	}
	if decodeErr != nil {
		return false, fmt.Errorf("fail to decode %s response from %s: %w", method, t.IP, decodeErr)
	}
	if result == nil {
		return false, nil
	}
	if len(resp.Result) == 0 {
		return false, fmt.Errorf("%s response from %s has no result", method, t.IP)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return false, fmt.Errorf("fail to decode %s result from %s: %w", method, t.IP, err)
	}
	return false, nil
}

// send performs the request and reads the whole body. Failures to reach the
// server come back as a TransportError.
func (t *Transport) send(ctx context.Context, req *http.Request, endpoint string) (int, []byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &sferrors.TransportError{IP: t.IP, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &sferrors.TransportError{IP: t.IP, Endpoint: endpoint, Err: err}
	}
	return resp.StatusCode, respBody, nil
}

// Download fetches a JSON document served outside the RPC endpoint, such as
// /reports/bins.json, and decodes it into result.
func (t *Transport) Download(ctx context.Context, path string, result any) error {
	requestURL := fmt.Sprintf("https://%s:%d%s", t.IP, t.Port, path)
	return t.retry(ctx, "GET "+path, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
		if err != nil {
			return false, err
		}
		req.SetBasicAuth(t.Username, t.Password)
		statusCode, body, err := t.send(ctx, req, path)
		if err != nil {
			return ctx.Err() == nil, err
		}
		if statusCode < 200 || statusCode >= 300 {
			apiErr := (&sferrors.APIError{HTTPStatus: statusCode, Message: truncate(string(body))}).
				WithCall("GET", nil, t.IP, path)
			return apiErr.IsRetryable(), apiErr
		}
		if err := json.Unmarshal(body, result); err != nil {
			return false, fmt.Errorf("fail to decode %s from %s: %w", path, t.IP, err)
		}
		return false, nil
	})
}

func truncate(s string) string {
	if len(s) <= maxErrorBodyLen {
		return s
	}
	return s[:maxErrorBodyLen] + "..."
}
