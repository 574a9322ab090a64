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
	"context"

	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
)

// ConnectionOptions are the parameters every client is built from
type ConnectionOptions struct {
	MVIP       string
	Username   string
	Password   string
	APIVersion float64
	HTTPClient HTTPDoer
}

// DefaultConnectionOptions reads the process-wide defaults registry
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		MVIP:       util.Defaults.MVIP,
		Username:   util.Defaults.Username,
		Password:   util.Defaults.Password,
		APIVersion: util.Defaults.APIVersion,
	}
}

func (opts *ConnectionOptions) apiVersion() float64 {
	if opts.APIVersion <= 0 {
		return util.DefaultAPIVersion
	}
	return opts.APIVersion
}

// ClusterClient exposes the cluster API on the MVIP. It keeps no state
// besides its connection parameters.
type ClusterClient struct {
	opts      ConnectionOptions
	transport *Transport
	log       vlog.Printer
}

func NewClusterClient(opts ConnectionOptions, log vlog.Printer) *ClusterClient {
	return &ClusterClient{
		opts: opts,
		transport: NewTransport(opts.MVIP, util.DefaultClusterPort, opts.Username, opts.Password,
			opts.apiVersion(), opts.HTTPClient, log),
		log: log,
	}
}

// Node returns a client for the per-node API of the node at nodeIP, using
// the cluster credentials.
func (c *ClusterClient) Node(nodeIP string) *NodeClient {
	return NewNodeClient(nodeIP, c.opts, c.log)
}

// Call invokes any cluster method by name
func (c *ClusterClient) Call(ctx context.Context, method string, params, result any) error {
	return c.transport.Call(ctx, method, params, result)
}

func (c *ClusterClient) GetAPI(ctx context.Context) (APIInfo, error) {
	var res APIInfo
	err := c.Call(ctx, "GetAPI", nil, &res)
	return res, err
}

func (c *ClusterClient) GetClusterInfo(ctx context.Context) (ClusterInfo, error) {
	var res struct {
		ClusterInfo ClusterInfo `json:"clusterInfo"`
	}
	err := c.Call(ctx, "GetClusterInfo", nil, &res)
	return res.ClusterInfo, err
}

func (c *ClusterClient) GetClusterVersionInfo(ctx context.Context) (ClusterVersionInfo, error) {
	var res ClusterVersionInfo
	err := c.Call(ctx, "GetClusterVersionInfo", nil, &res)
	return res, err
}

func (c *ClusterClient) GetClusterMasterNodeID(ctx context.Context) (int, error) {
	var res struct {
		NodeID int `json:"nodeID"`
	}
	err := c.Call(ctx, "GetClusterMasterNodeID", nil, &res)
	return res.NodeID, err
}

func (c *ClusterClient) ListClusterAdmins(ctx context.Context) ([]ClusterAdmin, error) {
	var res struct {
		ClusterAdmins []ClusterAdmin `json:"clusterAdmins"`
	}
	err := c.Call(ctx, "ListClusterAdmins", nil, &res)
	return res.ClusterAdmins, err
}

// Nodes

func (c *ClusterClient) ListActiveNodes(ctx context.Context) ([]Node, error) {
	var res struct {
		Nodes []Node `json:"nodes"`
	}
	err := c.Call(ctx, "ListActiveNodes", nil, &res)
	return res.Nodes, err
}

func (c *ClusterClient) ListPendingNodes(ctx context.Context) ([]PendingNode, error) {
	var res struct {
		PendingNodes []PendingNode `json:"pendingNodes"`
	}
	err := c.Call(ctx, "ListPendingNodes", nil, &res)
	return res.PendingNodes, err
}

func (c *ClusterClient) ListAllNodes(ctx context.Context) ([]Node, []PendingNode, error) {
	var res struct {
		Nodes        []Node        `json:"nodes"`
		PendingNodes []PendingNode `json:"pendingNodes"`
	}
	err := c.Call(ctx, "ListAllNodes", nil, &res)
	return res.Nodes, res.PendingNodes, err
}

// AddNodes is the raw RPC; see AddNodesByIP for the full flow
func (c *ClusterClient) AddNodes(ctx context.Context, pendingNodeIDs []int, autoRTFI bool) ([]AddedNode, error) {
	var res struct {
		Nodes []AddedNode `json:"nodes"`
	}
	params := map[string]any{"pendingNodes": pendingNodeIDs, "autoRTFI": autoRTFI}
	err := c.Call(ctx, "AddNodes", params, &res)
	return res.Nodes, err
}

func (c *ClusterClient) RemoveNodes(ctx context.Context, nodeIDs []int) error {
	return c.Call(ctx, "RemoveNodes", map[string]any{"nodes": nodeIDs}, nil)
}

// Drives

func (c *ClusterClient) ListDrives(ctx context.Context) ([]Drive, error) {
	var res struct {
		Drives []Drive `json:"drives"`
	}
	err := c.Call(ctx, "ListDrives", nil, &res)
	return res.Drives, err
}

// AddDrives is the raw RPC; see AddDrivesAndWait for the full flow. It
// returns the async handle of the bin sync.
func (c *ClusterClient) AddDrives(ctx context.Context, drives []NewDrive) (int, error) {
	var res struct {
		AsyncHandle int `json:"asyncHandle"`
	}
	err := c.Call(ctx, "AddDrives", map[string]any{"drives": drives}, &res)
	return res.AsyncHandle, err
}

func (c *ClusterClient) RemoveDrives(ctx context.Context, driveIDs []int) (int, error) {
	var res struct {
		AsyncHandle int `json:"asyncHandle"`
	}
	err := c.Call(ctx, "RemoveDrives", map[string]any{"drives": driveIDs}, &res)
	return res.AsyncHandle, err
}

// Faults

// Fault types accepted by ListClusterFaults and ClearClusterFaults
const (
	FaultTypesCurrent  = "current"
	FaultTypesResolved = "resolved"
	FaultTypesAll      = "all"
)

func (c *ClusterClient) ListClusterFaults(ctx context.Context, faultTypes string) ([]Fault, error) {
	var res struct {
		Faults []Fault `json:"faults"`
	}
	err := c.Call(ctx, "ListClusterFaults", map[string]any{"faultTypes": faultTypes}, &res)
	return res.Faults, err
}

func (c *ClusterClient) ClearClusterFaults(ctx context.Context, faultTypes string) error {
	return c.Call(ctx, "ClearClusterFaults", map[string]any{"faultTypes": faultTypes}, nil)
}

// Reports

func (c *ClusterClient) DownloadSlices(ctx context.Context) ([]SliceReport, error) {
	var res []SliceReport
	err := c.transport.Download(ctx, "/reports/slices.json", &res)
	return res, err
}

func (c *ClusterClient) DownloadBins(ctx context.Context) ([]BinReport, error) {
	var res []BinReport
	err := c.transport.Download(ctx, "/reports/bins.json", &res)
	return res, err
}

// Software upgrade

func (c *ClusterClient) GetSoftwareUpgradeStatus(ctx context.Context) (SoftwareUpgradeStatus, error) {
	var res SoftwareUpgradeStatus
	err := c.Call(ctx, "GetSoftwareUpgradeStatus", nil, &res)
	return res, err
}

func (c *ClusterClient) ResumeClusterSoftwareUpgrade(ctx context.Context) error {
	return c.Call(ctx, "ResumeClusterSoftwareUpgrade", nil, nil)
}

// Async results

func (c *ClusterClient) GetAsyncResult(ctx context.Context, asyncHandle int) (AsyncResult, error) {
	var res AsyncResult
	err := c.Call(ctx, "GetAsyncResult", map[string]any{"asyncHandle": asyncHandle}, &res)
	return res, err
}
