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

/* CmdVolumeDelete
 *
 * Implements cmdInterface
 */
type CmdVolumeDelete struct {
	CmdBase
	opts  volumeDeleteOptions
	purge bool
}

type volumeDeleteOptions struct {
	VolumeIDs []int `arg:"volume-ids" validate:"min=1,dive,gt=0"`
}

func makeCmdVolumeDelete(env *Env) *cobra.Command {
	newCmd := &CmdVolumeDelete{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		volumeDeleteSubCmd,
		"Delete volumes",
		`This deletes volumes. Deleted volumes can be restored until they are purged;
--purge purges them right away.

Example:
  sfadmin volume-delete --mvip <mvip> --volume-ids 3,4 --purge
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdVolumeDelete) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(
		&c.opts.VolumeIDs,
		"volume-ids",
		nil,
		"Comma-separated list of volume IDs",
	)
	cmd.Flags().BoolVar(
		&c.purge,
		"purge",
		false,
		util.GetOptionalFlagMsg("Purge the volumes after deleting them"),
	)
}

func (c *CmdVolumeDelete) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	return util.ValidateOptions(c.opts)
}

func (c *CmdVolumeDelete) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	client := c.clusterClient()
	for _, id := range c.opts.VolumeIDs {
		if err := client.DeleteVolume(ctx, id); err != nil {
			c.log.PrintError("Failed to delete volume %d: %v", id, err)
			return Result{}, err
		}
		c.log.PrintInfo("Deleted volume %d", id)
		if !c.purge {
			continue
		}
		if err := client.PurgeDeletedVolume(ctx, id); err != nil {
			c.log.PrintError("Failed to purge volume %d: %v", id, err)
			return Result{}, err
		}
		c.log.PrintInfo("Purged volume %d", id)
	}
	return Result{
		Summary: fmt.Sprintf("Deleted %d volumes", len(c.opts.VolumeIDs)),
		Fields:  []Field{{Key: "volumeIDs", Value: c.opts.VolumeIDs}},
	}, nil
}
