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

	"github.com/spf13/cobra"

	"github.com/solidfire/sfadmin/sfclusterops/util"
)

/* CmdVolumeAccessGroupCreate
 *
 * Implements cmdInterface
 */
type CmdVolumeAccessGroupCreate struct {
	CmdBase
	opts volgroupCreateOptions
}

type volgroupCreateOptions struct {
	Name       string   `arg:"name" validate:"required,max=64"`
	Initiators []string `arg:"initiators" validate:"omitempty,dive,max=224"`
	VolumeIDs  []int    `arg:"volume-ids" validate:"omitempty,dive,gt=0"`
}

func makeCmdVolumeAccessGroupCreate(env *Env) *cobra.Command {
	newCmd := &CmdVolumeAccessGroupCreate{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		volgroupCreateSubCmd,
		"Create a volume access group",
		`This creates a volume access group, optionally with initiators and volumes.

Example:
  sfadmin volgroup-create --mvip <mvip> --name hosts --initiators iqn.1998-01.com.vmware:host1 --volume-ids 1,2
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdVolumeAccessGroupCreate) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&c.opts.Name,
		"name",
		"",
		"Name of the volume access group",
	)
	cmd.Flags().StringSliceVar(
		&c.opts.Initiators,
		"initiators",
		nil,
		util.GetOptionalFlagMsg("Comma-separated list of initiator IQNs"),
	)
	cmd.Flags().IntSliceVar(
		&c.opts.VolumeIDs,
		"volume-ids",
		nil,
		util.GetOptionalFlagMsg("Comma-separated list of volume IDs"),
	)
}

func (c *CmdVolumeAccessGroupCreate) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	c.opts.Initiators = trimList(c.opts.Initiators)
	return util.ValidateOptions(c.opts)
}

func (c *CmdVolumeAccessGroupCreate) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	groupID, err := c.clusterClient().CreateVolumeAccessGroup(ctx, c.opts.Name, c.opts.Initiators, c.opts.VolumeIDs)
	if err != nil {
		c.log.PrintError("Failed to create volume access group %s: %v", c.opts.Name, err)
		return Result{}, err
	}
	return Result{
		Summary: fmt.Sprintf("Created volume access group %s with ID %d", c.opts.Name, groupID),
		Fields:  []Field{{Key: "volumeAccessGroupID", Value: groupID}},
	}, nil
}
