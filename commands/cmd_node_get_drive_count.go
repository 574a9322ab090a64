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

/* CmdNodeGetDriveCount
 *
 * Implements cmdInterface
 */
type CmdNodeGetDriveCount struct {
	CmdBase
	opts nodeGetDriveCountOptions
}

type nodeGetDriveCountOptions struct {
	NodeIP string `arg:"node-ip" validate:"required,strictipv4"`
}

func makeCmdNodeGetDriveCount(env *Env) *cobra.Command {
	newCmd := &CmdNodeGetDriveCount{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		nodeGetDriveCountSubCmd,
		"Count the drives of a node",
		`This asks a node, on its own API endpoint, how many drives it has. The node
does not need to be part of a cluster.

Example:
  sfadmin node-get-drive-count --node-ip 10.0.0.1 --output-format json
`,
		nodeFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdNodeGetDriveCount) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&c.opts.NodeIP,
		"node-ip",
		"",
		"Management IP of the node",
	)
}

func (c *CmdNodeGetDriveCount) Parse() error {
	if err := c.parseOptionalMVIP(); err != nil {
		return err
	}
	c.opts.NodeIP = strings.TrimSpace(c.opts.NodeIP)
	return util.ValidateOptions(c.opts)
}

func (c *CmdNodeGetDriveCount) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	config, err := c.nodeClient(c.opts.NodeIP).GetDriveConfig(ctx)
	if err != nil {
		c.log.PrintError("Failed to get the drive config of %s: %v", c.opts.NodeIP, err)
		return Result{}, err
	}
	count := len(config.Drives)
	return Result{
		Summary: fmt.Sprintf("%s has %d drives", c.opts.NodeIP, count),
		Fields:  []Field{{Key: "driveCount", Value: count}},
	}, nil
}
