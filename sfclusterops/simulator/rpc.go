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

package simulator

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sferrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// handler serves one RPC method. It runs with the simulator mutex held.
type handler func(s *Simulator, params jsoniter.RawMessage) (any, error)

// nodeHandler serves one per-node RPC method
type nodeHandler func(s *Simulator, node *nodeState, params jsoniter.RawMessage) (any, error)

type rpcRequest struct {
	Method string              `json:"method"`
	Params jsoniter.RawMessage `json:"params"`
	ID     any                 `json:"id"`
}

type rpcError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Simulator) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.BasicAuth(gin.Accounts{s.cfg.Username: s.cfg.Password}))
	router.POST("/json-rpc/:version", s.serveRPC)
	router.GET("/reports/:file", s.serveReport)
	return router
}

func (s *Simulator) serveRPC(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "cannot read request body")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Method == "" {
		writeRPCError(c, nil, sferrors.NewAPIError(sferrors.InvalidParameter, "malformed JSON-RPC request"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.servesVersion(c.Param("version")) {
		writeRPCError(c, req.ID, sferrors.NewAPIError(sferrors.UnknownAPIVersion,
			fmt.Sprintf("API version %s is not supported", c.Param("version"))))
		return
	}
	if err := s.injectedFailure(req.Method); err != nil {
		writeRPCError(c, req.ID, err)
		return
	}

	host := c.Request.URL.Hostname()
	port, _ := strconv.Atoi(c.Request.URL.Port())
	var result any
	if host == s.cfg.MVIP && port == util.DefaultClusterPort {
		h, ok := clusterHandlers[req.Method]
		if !ok {
			err = unknownMethod(req.Method)
		} else {
			result, err = h(s, req.Params)
		}
	} else {
		node := s.st.nodeByMIP(host)
		h, ok := nodeHandlers[req.Method]
		switch {
		case node == nil:
			err = sferrors.NewAPIError(sferrors.NodeIDDoesNotExist, "unknown node "+host)
		case !ok:
			err = unknownMethod(req.Method)
		default:
			result, err = h(s, node, req.Params)
		}
	}
	if err != nil {
		s.log.V(1).Info("Simulated call failed", "method", req.Method, "host", host, "error", err.Error())
		writeRPCError(c, req.ID, err)
		return
	}
	s.log.V(1).Info("Simulated call", "method", req.Method, "host", host)
	writeRPCResult(c, req.ID, result)
}

func unknownMethod(method string) error {
	return sferrors.NewAPIError(sferrors.UnknownRPCMethod, fmt.Sprintf("Unknown method %s", method))
}

func writeRPCResult(c *gin.Context, id, result any) {
	if result == nil {
		result = map[string]any{}
	}
	payload, err := json.Marshal(map[string]any{"id": id, "result": result})
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func writeRPCError(c *gin.Context, id any, err error) {
	status := http.StatusInternalServerError
	rpcErr := rpcError{Name: "xUnknown", Code: status, Message: err.Error()}
	var apiErr *sferrors.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatus != 0 {
			status = apiErr.HTTPStatus
		}
		rpcErr = rpcError{Name: apiErr.Name, Code: status, Message: apiErr.Message}
	}
	payload, _ := json.Marshal(map[string]any{"id": id, "error": rpcErr})
	c.Data(status, "application/json", payload)
}

// supportedVersions is the endpoint set after the version overlays
func (s *Simulator) supportedVersions() []float64 {
	var res []float64
	for _, v := range sfclusterops.SupportedAPIVersions {
		if v > s.st.HighestAPIVersion {
			continue
		}
		removed := false
		for _, r := range s.st.RemovedAPIs {
			if r == v {
				removed = true
				break
			}
		}
		if !removed {
			res = append(res, v)
		}
	}
	return res
}

func (s *Simulator) servesVersion(version string) bool {
	v, err := sfclusterops.ParseAPIVersion(version)
	if err != nil {
		return false
	}
	for _, supported := range s.supportedVersions() {
		if supported == v {
			return true
		}
	}
	return false
}

func (s *Simulator) serveReport(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var report any
	switch c.Param("file") {
	case "bins.json":
		report = s.binsReport()
	case "slices.json":
		report = s.slicesReport()
	default:
		c.String(http.StatusNotFound, "no such report")
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// number of bins in the bins report
const numBins = 8

func (s *Simulator) binsReport() []sfclusterops.BinReport {
	bins := make([]sfclusterops.BinReport, 0, numBins)
	for i := 0; i < numBins; i++ {
		status := sfclusterops.BinServiceActive
		if s.st.SyncPollsLeft > 0 && i == 0 {
			status = "bsSyncing"
		}
		bins = append(bins, sfclusterops.BinReport{
			BinID: i,
			Services: []sfclusterops.BinService{
				{ServiceID: 1000 + 2*i, Status: sfclusterops.BinServiceActive},
				{ServiceID: 1001 + 2*i, Status: status},
			},
		})
	}
	return bins
}

func (s *Simulator) slicesReport() []sfclusterops.SliceReport {
	var slices []sfclusterops.SliceReport
	for _, v := range s.st.volumesWithStatus(sfclusterops.VolumeStatusActive) {
		slices = append(slices, sfclusterops.SliceReport{
			SliceID:   v.VolumeID,
			Primary:   1000 + v.VolumeID%numBins,
			Secondary: []int{1001 + v.VolumeID%numBins},
		})
	}
	return slices
}

// decodeParams unmarshals params into dst. Absent params decode as empty.
func decodeParams(params jsoniter.RawMessage, dst any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return sferrors.NewAPIError(sferrors.InvalidParameter, fmt.Sprintf("invalid parameters: %v", err))
	}
	return nil
}

func missingParam(name string) error {
	return sferrors.NewAPIError(sferrors.MissingParameter,
		fmt.Sprintf("The parameter '%s' is required.", name))
}

func invalidParam(format string, args ...any) error {
	return sferrors.NewAPIError(sferrors.InvalidParameter, fmt.Sprintf(format, args...))
}
