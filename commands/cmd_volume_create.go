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

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
)

type volumeCreateOptions struct {
	AccountID int    `arg:"account-id" validate:"gt=0"`
	Name      string `arg:"name" validate:"required,max=64"`
	Count     int    `arg:"count" validate:"gte=1"`
	Size      int64  `arg:"size" validate:"gt=0"`
}

/* CmdVolumeCreate
 *
 * Implements cmdInterface
 */
type CmdVolumeCreate struct {
	CmdBase
	opts volumeCreateOptions
}

func makeCmdVolumeCreate(env *Env) *cobra.Command {
	newCmd := &CmdVolumeCreate{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		volumeCreateSubCmd,
		"Create volumes for an account",
		`This creates one or more volumes owned by an account. Sizes are rounded up to
a multiple of 4096 bytes. With --count greater than one the volumes are named
<name>-1, <name>-2 and so on.

Example:
  sfadmin volume-create --mvip <mvip> --account-id 1 --name data --size 1073741824 --count 4
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdVolumeCreate) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(
		&c.opts.AccountID,
		"account-id",
		0,
		"ID of the account that owns the volumes",
	)
	cmd.Flags().StringVar(
		&c.opts.Name,
		"name",
		"",
		"Name, or name prefix, of the volumes",
	)
	cmd.Flags().IntVar(
		&c.opts.Count,
		"count",
		1,
		"Number of volumes to create",
	)
	cmd.Flags().Int64Var(
		&c.opts.Size,
		"size",
		0,
		"Size of each volume in bytes",
	)
}

func (c *CmdVolumeCreate) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	return util.ValidateOptions(c.opts)
}

func (c *CmdVolumeCreate) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	size := sfclusterops.RoundUpVolumeSize(c.opts.Size)
	if size != c.opts.Size {
		c.log.PrintInfo("Rounding the volume size up to %d bytes", size)
	}
	volumeIDs, err := c.clusterClient().CreateVolumesForAccount(ctx, c.opts.AccountID, c.opts.Name, c.opts.Count, size)
	if err != nil {
		c.log.PrintError("Failed to create volumes for account %d after %d of %d: %v",
			c.opts.AccountID, len(volumeIDs), c.opts.Count, err)
		return Result{}, err
	}
	return Result{
		Summary: fmt.Sprintf("Created %d volumes for account %d", len(volumeIDs), c.opts.AccountID),
		Fields:  []Field{{Key: "volumeIDs", Value: volumeIDs}},
	}, nil
}
