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

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
)

/* CmdClusterAddNodes
 *
 * Implements cmdInterface
 */
type CmdClusterAddNodes struct {
	CmdBase
	opts   clusterAddNodesOptions
	byNode bool
	rtfi   bool
	drives bool
	sync   bool
}

type clusterAddNodesOptions struct {
	NodeIPs []string `arg:"node-ips" validate:"strictipv4list"`
}

func makeCmdClusterAddNodes(env *Env) *cobra.Command {
	newCmd := &CmdClusterAddNodes{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		clusterAddNodesSubCmd,
		"Add pending nodes to a cluster",
		`This adds pending nodes to the cluster, then adds their drives and waits for
the cluster to finish syncing data onto them.

By default the cluster re-images (RTFI) the nodes to its own software version
first. With --bynode the nodes are added, and their drives synced, one at a time.

Example:
  sfadmin cluster-add-nodes --mvip <mvip> --node-ips 10.1.1.5,10.1.1.6 --nortfi
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdClusterAddNodes) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(
		&c.opts.NodeIPs,
		"node-ips",
		nil,
		"Comma-separated list of the management IPs of the pending nodes",
	)
	cmd.Flags().BoolVar(
		&c.byNode,
		"bynode",
		false,
		util.GetOptionalFlagMsg("Add the nodes one at a time"),
	)
	setNoFlag(cmd, &c.rtfi, "rtfi", "Do not re-image the nodes to the cluster version")
	setNoFlag(cmd, &c.drives, "drives", "Do not add the drives of the nodes")
	setNoFlag(cmd, &c.sync, "sync", "Do not wait for the cluster to sync the new drives")
}

func (c *CmdClusterAddNodes) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	c.opts.NodeIPs = trimList(c.opts.NodeIPs)
	return util.ValidateOptions(c.opts)
}

func (c *CmdClusterAddNodes) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	client := c.clusterClient()

	batches := [][]string{c.opts.NodeIPs}
	if c.byNode {
		batches = batches[:0]
		for _, ip := range c.opts.NodeIPs {
			batches = append(batches, []string{ip})
		}
	}
	var nodeIDs []int
	for _, ips := range batches {
		ids, err := c.addNodes(ctx, client, ips)
		if err != nil {
			return Result{}, err
		}
		nodeIDs = append(nodeIDs, ids...)
	}
	return Result{
		Summary: fmt.Sprintf("Successfully added %s to cluster", strings.Join(c.opts.NodeIPs, ",")),
		Fields:  []Field{{Key: "nodeIDs", Value: nodeIDs}},
	}, nil
}

// addNodes adds one batch of nodes and their drives, and returns the new
// node IDs in the order of ips
func (c *CmdClusterAddNodes) addNodes(ctx context.Context, client *sfclusterops.ClusterClient, ips []string) ([]int, error) {
	joined := strings.Join(ips, ",")
	if _, err := client.AddNodesByIP(ctx, ips, c.rtfi); err != nil {
		c.log.PrintError("Failed to add %s: %v", joined, err)
		return nil, err
	}

	nodeIDs := make([]int, 0, len(ips))
	for _, ip := range ips {
		node, err := client.FindActiveNode(ctx, ip)
		if err != nil {
			c.log.PrintError("Failed to add %s: %v", ip, err)
			return nil, err
		}
		c.log.PrintInfo("Added %s to the cluster as node %d", ip, node.NodeID)
		nodeIDs = append(nodeIDs, node.NodeID)
	}
	if !c.drives {
		return nodeIDs, nil
	}

	var driveIDs []int
	for _, ip := range ips {
		ids, err := client.WaitForAvailableDrives(ctx, ip)
		if err != nil {
			c.log.PrintError("Failed to find the drives of %s: %v", ip, err)
			return nil, err
		}
		c.log.PrintInfo("Adding %d drives from %s", len(ids), ip)
		driveIDs = append(driveIDs, ids...)
	}
	if c.sync {
		c.log.PrintInfo("Waiting for the cluster to sync data onto the drives of %s", joined)
	}
	if err := client.AddDrivesAndWait(ctx, driveIDs, c.sync); err != nil {
		c.log.PrintError("Failed to add the drives of %s: %v", joined, err)
		return nil, err
	}
	return nodeIDs, nil
}
