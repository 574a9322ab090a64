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

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solidfire/sfadmin/sfclusterops/util"
)

const (
	nodeStateAll     = "all"
	nodeStateActive  = "active"
	nodeStatePending = "pending"
)

/* CmdClusterListNodes
 *
 * Implements cmdInterface
 */
type CmdClusterListNodes struct {
	CmdBase
	opts clusterListNodesOptions
	byID bool
}

type clusterListNodesOptions struct {
	State string `arg:"state" validate:"oneof=all active pending"`
}

func makeCmdClusterListNodes(env *Env) *cobra.Command {
	newCmd := &CmdClusterListNodes{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		clusterListNodesSubCmd,
		"List the nodes of a cluster",
		`This lists the management IPs of the nodes of a cluster, active nodes first,
in the order the cluster reports them. With --byid it lists node IDs instead,
and pending node IDs for pending nodes.

Example:
  sfadmin cluster-list-nodes --mvip <mvip> --state active --output-format bash
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdClusterListNodes) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&c.opts.State,
		"state",
		nodeStateAll,
		fmt.Sprintf("Nodes to list, one of {%s}", strings.Join(util.NodeStateList, ", ")),
	)
	cmd.Flags().BoolVar(
		&c.byID,
		"byid",
		false,
		util.GetOptionalFlagMsg("List node IDs instead of management IPs"),
	)
}

func (c *CmdClusterListNodes) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	return util.ValidateOptions(c.opts)
}

func (c *CmdClusterListNodes) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	client := c.clusterClient()

	var nodes []any
	if c.opts.State != nodeStatePending {
		active, err := client.ListActiveNodes(ctx)
		if err != nil {
			c.log.PrintError("Failed to list the active nodes: %v", err)
			return Result{}, err
		}
		for i := range active {
			c.log.PrintInfo("active node %d: %s (%s, %s)", active[i].NodeID, active[i].MIP,
				active[i].Name, active[i].SoftwareVersion)
			nodes = append(nodes, c.pick(active[i].NodeID, active[i].MIP))
		}
	}
	if c.opts.State != nodeStateActive {
		pending, err := client.ListPendingNodes(ctx)
		if err != nil {
			c.log.PrintError("Failed to list the pending nodes: %v", err)
			return Result{}, err
		}
		for i := range pending {
			c.log.PrintInfo("pending node %d: %s (%s, %s)", pending[i].PendingNodeID, pending[i].MIP,
				pending[i].Name, pending[i].SoftwareVersion)
			nodes = append(nodes, c.pick(pending[i].PendingNodeID, pending[i].MIP))
		}
	}
	if nodes == nil {
		nodes = []any{}
	}
	return Result{
		Summary: fmt.Sprintf("Found %d %s nodes", len(nodes), c.opts.State),
		Fields:  []Field{{Key: "nodes", Value: nodes}},
	}, nil
}

func (c *CmdClusterListNodes) pick(id int, mip string) any {
	if c.byID {
		return id
	}
	return mip
}
