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

// NodeClient calls the per-node API on port 442 of a node's management IP
type NodeClient struct {
	NodeIP    string
	transport *Transport
}

func NewNodeClient(nodeIP string, opts ConnectionOptions, log vlog.Printer) *NodeClient {
	return &NodeClient{
		NodeIP: nodeIP,
		transport: NewTransport(nodeIP, util.DefaultNodePort, opts.Username, opts.Password,
			opts.apiVersion(), opts.HTTPClient, log.WithPrefix(nodeIP)),
	}
}

// Call invokes any per-node method by name
func (n *NodeClient) Call(ctx context.Context, method string, params, result any) error {
	return n.transport.Call(ctx, method, params, result)
}

// Alive sends one GetTime call without retrying. It is the RPC half of the
// boot check.
func (n *NodeClient) Alive(ctx context.Context) bool {
	_, err := n.transport.callOnce(ctx, "GetTime", map[string]any{}, nil, n.transport.APIVersion)
	return err == nil
}

func (n *NodeClient) GetDriveConfig(ctx context.Context) (DriveConfig, error) {
	var res struct {
		DriveConfig DriveConfig `json:"driveConfig"`
	}
	err := n.Call(ctx, "GetDriveConfig", nil, &res)
	return res.DriveConfig, err
}

func (n *NodeClient) GetStartupFlags(ctx context.Context) (map[string]string, error) {
	var res struct {
		StartupFlags map[string]string `json:"startupFlags"`
	}
	err := n.Call(ctx, "GetStartupFlags", nil, &res)
	return res.StartupFlags, err
}

func (n *NodeClient) ListMountedFileSystems(ctx context.Context) ([]MountedFileSystem, error) {
	var res struct {
		FileSystems []MountedFileSystem `json:"fileSystems"`
	}
	err := n.Call(ctx, "ListMountedFileSystems", nil, &res)
	return res.FileSystems, err
}

func (n *NodeClient) GetConfig(ctx context.Context) (map[string]any, error) {
	var res struct {
		Config map[string]any `json:"config"`
	}
	err := n.Call(ctx, "GetConfig", nil, &res)
	return res.Config, err
}

// SetConfig merges config into the node configuration and returns the result
func (n *NodeClient) SetConfig(ctx context.Context, config map[string]any) (map[string]any, error) {
	var res struct {
		Config map[string]any `json:"config"`
	}
	err := n.Call(ctx, "SetConfig", map[string]any{"config": config}, &res)
	return res.Config, err
}

func (n *NodeClient) GetVersionInfo(ctx context.Context) (NodeVersionInfo, error) {
	var res struct {
		VersionInfo NodeVersionInfo `json:"versionInfo"`
	}
	err := n.Call(ctx, "GetVersionInfo", nil, &res)
	return res.VersionInfo, err
}

func (n *NodeClient) AptInstall(ctx context.Context, packages []string) error {
	return n.Call(ctx, "AptInstall", map[string]any{"packages": packages}, nil)
}

func (n *NodeClient) AptUpdate(ctx context.Context) error {
	return n.Call(ctx, "AptUpdate", nil, nil)
}

func (n *NodeClient) RebootNode(ctx context.Context) error {
	return n.Call(ctx, "RebootNode", nil, nil)
}

func (n *NodeClient) InvokeSetVersion(ctx context.Context, version string) error {
	return n.Call(ctx, "InvokeSetVersion", map[string]any{"version": version}, nil)
}

func (n *NodeClient) GetSystemStatus(ctx context.Context) (SystemStatus, error) {
	var res SystemStatus
	err := n.Call(ctx, "GetSystemStatus", nil, &res)
	return res, err
}

func (n *NodeClient) GetTime(ctx context.Context) (string, error) {
	var res struct {
		Time string `json:"time"`
	}
	err := n.Call(ctx, "GetTime", nil, &res)
	return res.Time, err
}

// ReadLink resolves a symlink on the node. A missing path is an
// xDBNoSuchPath error.
func (n *NodeClient) ReadLink(ctx context.Context, path string) (string, error) {
	var res struct {
		Target string `json:"target"`
	}
	err := n.Call(ctx, "ReadLink", map[string]any{"path": path}, &res)
	return res.Target, err
}
