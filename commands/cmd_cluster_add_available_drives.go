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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
)

/* CmdClusterAddAvailableDrives
 *
 * Implements cmdInterface
 */
type CmdClusterAddAvailableDrives struct {
	CmdBase
	opts clusterAddDrivesOptions
	sync bool
}

type clusterAddDrivesOptions struct {
	NodeIPs []string `arg:"node-ips" validate:"omitempty,strictipv4list"`
}

func makeCmdClusterAddAvailableDrives(env *Env) *cobra.Command {
	newCmd := &CmdClusterAddAvailableDrives{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		clusterAddDrivesSubCmd,
		"Add the available drives to a cluster",
		`This adds every drive in the available state to the cluster and waits for the
cluster to sync data onto them. With --node-ips only the drives of those active
nodes are added.

Example:
  sfadmin cluster-add-available-drives --mvip <mvip> --node-ips 10.0.0.4 --nosync
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdClusterAddAvailableDrives) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(
		&c.opts.NodeIPs,
		"node-ips",
		nil,
		util.GetOptionalFlagMsg("Comma-separated list of the active nodes whose drives are added"),
	)
	setNoFlag(cmd, &c.sync, "sync", "Do not wait for the cluster to sync the new drives")
}

func (c *CmdClusterAddAvailableDrives) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	c.opts.NodeIPs = trimList(c.opts.NodeIPs)
	return util.ValidateOptions(c.opts)
}

func (c *CmdClusterAddAvailableDrives) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	client := c.clusterClient()

	nodeIDs := mapset.NewThreadUnsafeSet[int]()
	if len(c.opts.NodeIPs) > 0 {
		active, err := client.ListActiveNodes(ctx)
		if err != nil {
			c.log.PrintError("Failed to list the active nodes: %v", err)
			return Result{}, err
		}
		activeIPs := make([]string, 0, len(active))
		for i := range active {
			activeIPs = append(activeIPs, active[i].MIP)
			if util.StringInArray(active[i].MIP, c.opts.NodeIPs) {
				nodeIDs.Add(active[i].NodeID)
			}
		}
		if missing := util.SliceDiff(c.opts.NodeIPs, activeIPs); len(missing) > 0 {
			err := fmt.Errorf("not active nodes of the cluster: %s", strings.Join(missing, ","))
			c.log.PrintError("Failed to add the available drives: %v", err)
			return Result{}, err
		}
	}

	drives, err := client.ListDrives(ctx)
	if err != nil {
		c.log.PrintError("Failed to list the drives: %v", err)
		return Result{}, err
	}
	driveIDs := []int{}
	for i := range drives {
		if drives[i].Status != sfclusterops.DriveStatusAvailable {
			continue
		}
		if nodeIDs.Cardinality() > 0 && !nodeIDs.Contains(drives[i].NodeID) {
			continue
		}
		driveIDs = append(driveIDs, drives[i].DriveID)
	}
	if len(driveIDs) == 0 {
		c.log.PrintWarning("There are no available drives to add")
		return Result{
			Summary: "No drives added",
			Fields:  []Field{{Key: "driveIDs", Value: driveIDs}},
		}, nil
	}

	c.log.PrintInfo("Adding %d available drives", len(driveIDs))
	if err := client.AddDrivesAndWait(ctx, driveIDs, c.sync); err != nil {
		c.log.PrintError("Failed to add the available drives: %v", err)
		return Result{}, err
	}
	return Result{
		Summary: fmt.Sprintf("Successfully added %d drives", len(driveIDs)),
		Fields:  []Field{{Key: "driveIDs", Value: driveIDs}},
	}, nil
}
