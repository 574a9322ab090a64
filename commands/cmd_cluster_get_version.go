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

/* CmdClusterGetVersion
 *
 * Implements cmdInterface
 */
type CmdClusterGetVersion struct {
	CmdBase
	opts       clusterGetVersionOptions
	minVersion *sfclusterops.SolidFireVersion
}

type clusterGetVersionOptions struct {
	MinVersion string `arg:"min-version" validate:"omitempty,sfversion"`
}

func makeCmdClusterGetVersion(env *Env) *cobra.Command {
	newCmd := &CmdClusterGetVersion{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		clusterGetVersionSubCmd,
		"Show the software version of a cluster",
		`This shows the software and API versions the cluster runs. With --min-version
the action fails when the cluster runs an older release.

Example:
  sfadmin cluster-get-version --mvip <mvip> --min-version 12.3.0.958
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdClusterGetVersion) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&c.opts.MinVersion,
		"min-version",
		"",
		util.GetOptionalFlagMsg("Oldest release the cluster is allowed to run"),
	)
}

func (c *CmdClusterGetVersion) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	c.opts.MinVersion = strings.TrimSpace(c.opts.MinVersion)
	if err := util.ValidateOptions(c.opts); err != nil {
		return err
	}
	if c.opts.MinVersion == "" {
		return nil
	}
	var err error
	c.minVersion, err = util.ParseOptional(&c.opts.MinVersion, sfclusterops.ParseVersion)
	return err
}

func (c *CmdClusterGetVersion) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	info, err := c.clusterClient().GetClusterVersionInfo(ctx)
	if err != nil {
		c.log.PrintError("Failed to get the cluster version: %v", err)
		return Result{}, err
	}
	if c.minVersion != nil {
		version, err := sfclusterops.ParseVersion(info.ClusterVersion)
		if err != nil {
			return Result{}, err
		}
		cmp, err := version.Compare(*c.minVersion)
		if err != nil {
			return Result{}, err
		}
		if cmp < 0 {
			err = fmt.Errorf("cluster runs %s, older than %s", version, c.minVersion)
			c.log.PrintError("%v", err)
			return Result{}, err
		}
	}
	return Result{
		Summary: fmt.Sprintf("Cluster runs %s (API %s)", info.ClusterVersion, info.ClusterAPIVersion),
		Fields: []Field{
			{Key: "clusterVersion", Value: info.ClusterVersion},
			{Key: "clusterAPIVersion", Value: info.ClusterAPIVersion},
		},
	}, nil
}
