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
	"time"

	"github.com/spf13/cobra"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
)

var faultTypesList = []string{sfclusterops.FaultTypesCurrent, sfclusterops.FaultTypesResolved, sfclusterops.FaultTypesAll}

/* CmdClusterListFaults
 *
 * Implements cmdInterface
 */
type CmdClusterListFaults struct {
	CmdBase
	opts  clusterListFaultsOptions
	clear bool
}

type clusterListFaultsOptions struct {
	FaultTypes string `arg:"fault-types" validate:"oneof=current resolved all"`
}

func makeCmdClusterListFaults(env *Env) *cobra.Command {
	newCmd := &CmdClusterListFaults{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		clusterListFaultsSubCmd,
		"List the faults of a cluster",
		`This lists the codes of the cluster faults, oldest first. With --clear the
resolved faults are cleared after they are listed.

Example:
  sfadmin cluster-list-faults --mvip <mvip> --fault-types all --output-format bash
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdClusterListFaults) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&c.opts.FaultTypes,
		"fault-types",
		sfclusterops.FaultTypesCurrent,
		fmt.Sprintf("Faults to list, one of {%s}", strings.Join(faultTypesList, ", ")),
	)
	cmd.Flags().BoolVar(
		&c.clear,
		"clear",
		false,
		util.GetOptionalFlagMsg("Clear the resolved faults afterwards"),
	)
}

func (c *CmdClusterListFaults) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	return util.ValidateOptions(c.opts)
}

// faultDuration is how long a fault stayed open, or "unknown" when the
// cluster reported dates it cannot be computed from
func faultDuration(raised, resolved string) string {
	start, err := time.Parse(time.RFC3339, raised)
	if err != nil {
		return "unknown"
	}
	end, err := time.Parse(time.RFC3339, resolved)
	if err != nil || end.Before(start) {
		return "unknown"
	}
	return util.TimeDeltaToStr(end.Sub(start))
}

func (c *CmdClusterListFaults) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	client := c.clusterClient()

	faults, err := client.ListClusterFaults(ctx, c.opts.FaultTypes)
	if err != nil {
		c.log.PrintError("Failed to list the cluster faults: %v", err)
		return Result{}, err
	}
	codes := make([]string, 0, len(faults))
	for i := range faults {
		f := &faults[i]
		if f.Resolved {
			c.log.PrintInfo("resolved %s fault %d: %s (%s), raised %s, resolved after %s", f.Severity,
				f.ClusterFaultID, f.Code, f.Details, f.Date, faultDuration(f.Date, f.ResolvedDate))
		} else {
			c.log.PrintInfo("current %s fault %d: %s (%s), raised %s", f.Severity,
				f.ClusterFaultID, f.Code, f.Details, f.Date)
		}
		codes = append(codes, f.Code)
	}
	if c.clear {
		if err := client.ClearClusterFaults(ctx, sfclusterops.FaultTypesResolved); err != nil {
			c.log.PrintError("Failed to clear the resolved faults: %v", err)
			return Result{}, err
		}
		c.log.PrintInfo("Cleared the resolved faults")
	}
	return Result{
		Summary: fmt.Sprintf("Found %d %s faults", len(codes), c.opts.FaultTypes),
		Fields:  []Field{{Key: "faults", Value: codes}},
	}, nil
}
