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

// CHAP secrets are 12 to 16 characters long
type accountCreateOptions struct {
	AccountName     string `arg:"account-name" validate:"required,max=64"`
	InitiatorSecret string `arg:"initiator-secret" validate:"omitempty,min=12,max=16"`
	TargetSecret    string `arg:"target-secret" validate:"omitempty,min=12,max=16"`
}

/* CmdAccountCreate
 *
 * Implements cmdInterface
 */
type CmdAccountCreate struct {
	CmdBase
	opts accountCreateOptions
}

func makeCmdAccountCreate(env *Env) *cobra.Command {
	newCmd := &CmdAccountCreate{}
	return makeBasicCobraCmd(
		env,
		newCmd,
		accountCreateSubCmd,
		"Create a tenant account",
		`This creates a tenant account. CHAP secrets must be 12 to 16 characters long;
the cluster generates the ones that are not given.

Example:
  sfadmin account-create --mvip <mvip> --account-name tenant1 --initiator-secret 0123456789ab
`,
		clusterFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdAccountCreate) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&c.opts.AccountName,
		"account-name",
		"",
		"Name of the account",
	)
	cmd.Flags().StringVar(
		&c.opts.InitiatorSecret,
		"initiator-secret",
		"",
		util.GetOptionalFlagMsg("CHAP initiator secret"),
	)
	cmd.Flags().StringVar(
		&c.opts.TargetSecret,
		"target-secret",
		"",
		util.GetOptionalFlagMsg("CHAP target secret"),
	)
}

func (c *CmdAccountCreate) Parse() error {
	if err := c.parseMVIP(); err != nil {
		return err
	}
	return util.ValidateOptions(c.opts)
}

func (c *CmdAccountCreate) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	accountID, err := c.clusterClient().AddAccount(ctx, c.opts.AccountName, c.opts.InitiatorSecret, c.opts.TargetSecret)
	if err != nil {
		c.log.PrintError("Failed to create account %s: %v", c.opts.AccountName, err)
		return Result{}, err
	}
	return Result{
		Summary: fmt.Sprintf("Created account %s with ID %d", c.opts.AccountName, accountID),
		Fields:  []Field{{Key: "accountID", Value: accountID}},
	}, nil
}
