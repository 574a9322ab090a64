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
	"github.com/solidfire/sfadmin/sfclusterops/executor"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
	"github.com/solidfire/sfadmin/sferrors"
)

type powerAction int

const (
	powerActionCycle powerAction = iota
	powerActionOff
	powerActionOn
)

func (a powerAction) verb() string {
	switch a {
	case powerActionOff:
		return "powered off"
	case powerActionOn:
		return "powered on"
	default:
		return "power cycled"
	}
}

/* CmdNodePower
 *
 * Implements cmdInterface for node-power-cycle, node-power-off and
 * node-power-on
 */
type CmdNodePower struct {
	CmdBase
	action   powerAction
	opts     nodePowerOptions
	wait     bool
	resolver sfclusterops.IPMIResolver
}

type nodePowerOptions struct {
	NodeIPs  []string `arg:"node-ips" validate:"strictipv4list"`
	IPMIIPs  []string `arg:"ipmi-ips" validate:"omitempty,strictipv4list"`
	DownTime int      `arg:"down-time" validate:"gte=0"`
}

func makeCmdNodePowerCycle(env *Env) *cobra.Command {
	newCmd := &CmdNodePower{action: powerActionCycle}
	return makeBasicCobraCmd(
		env,
		newCmd,
		nodePowerCycleSubCmd,
		"Power cycle nodes through IPMI",
		`This powers off each node through its BMC, waits for the down time, powers it
back on and waits until the node API answers again. Nodes are cycled in
parallel, at most --parallel-max at a time.

The BMC addresses come from --ipmi-ips, given in the same order as --node-ips,
or from the --inventory file.

Example:
  sfadmin node-power-cycle --node-ips 10.0.0.1,10.0.0.2 --ipmi-ips 10.1.0.1,10.1.0.2 --down-time 30
`,
		ipmiFlags,
	)
}

func makeCmdNodePowerOff(env *Env) *cobra.Command {
	newCmd := &CmdNodePower{action: powerActionOff}
	return makeBasicCobraCmd(
		env,
		newCmd,
		nodePowerOffSubCmd,
		"Power off nodes through IPMI",
		`This powers off each node through its BMC and waits until the chassis reports
it is off.

Example:
  sfadmin node-power-off --node-ips 10.0.0.1 --inventory nodes.yaml
`,
		ipmiFlags,
	)
}

func makeCmdNodePowerOn(env *Env) *cobra.Command {
	newCmd := &CmdNodePower{action: powerActionOn}
	return makeBasicCobraCmd(
		env,
		newCmd,
		nodePowerOnSubCmd,
		"Power on nodes through IPMI",
		`This powers on each node through its BMC and, unless --nowait is given, waits
until the node API answers.

Example:
  sfadmin node-power-on --node-ips 10.0.0.1 --ipmi-ips 10.1.0.1
`,
		ipmiFlags,
	)
}

// setLocalFlags will set the local flags the command has
func (c *CmdNodePower) setLocalFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(
		&c.opts.NodeIPs,
		"node-ips",
		nil,
		"Comma-separated list of node management IPs",
	)
	cmd.Flags().StringSliceVar(
		&c.opts.IPMIIPs,
		"ipmi-ips",
		nil,
		util.GetOptionalFlagMsg("Comma-separated list of BMC IPs, in the order of --node-ips"),
	)
	if c.action == powerActionCycle {
		cmd.Flags().IntVar(
			&c.opts.DownTime,
			"down-time",
			util.DefaultPowerDownTimeSeconds,
			"Seconds to keep the nodes powered off",
		)
	}
	if c.action != powerActionOff {
		setNoFlag(cmd, &c.wait, "wait", "Do not wait for the nodes to come back up")
	}
}

func (c *CmdNodePower) Parse() error {
	if err := c.parseOptionalMVIP(); err != nil {
		return err
	}
	c.opts.NodeIPs = trimList(c.opts.NodeIPs)
	c.opts.IPMIIPs = trimList(c.opts.IPMIIPs)
	if err := util.ValidateOptions(c.opts); err != nil {
		return err
	}
	// resolve every BMC address before the first IPMI command goes out
	var err error
	if c.resolver, err = c.ipmiResolver(c.opts.NodeIPs, c.opts.IPMIIPs); err != nil {
		return err
	}
	for _, ip := range c.opts.NodeIPs {
		if _, err = c.resolver.IPMIAddress(ip); err != nil {
			return sferrors.NewInvalidArgument("node-ips", ip, "%v", err)
		}
	}
	return nil
}

func (c *CmdNodePower) Run(ctx context.Context) (Result, error) {
	c.log.V(1).Info("Called method Run()")
	ctx, cancel := withCancel(ctx)
	defer cancel()

	start := time.Now()
	pool := executor.NewPool(ctx, c.log, c.parallelMax)
	defer pool.Close()

	ipmi := c.ipmi()
	results, err := executor.Map(pool, c.opts.NodeIPs, func(ctx context.Context, log vlog.Printer, nodeIP string) (string, error) {
		node := sfclusterops.NewNodeClient(nodeIP, c.connectionOptions(), log)
		pc, err := sfclusterops.NewPowerController(node, c.resolver, ipmi, log)
		if err != nil {
			return "", err
		}
		switch c.action {
		case powerActionOff:
			err = pc.PowerOff(ctx)
		case powerActionOn:
			err = pc.PowerOn(ctx, c.wait)
		default:
			err = pc.PowerCycle(ctx, c.opts.DownTime, c.wait)
		}
		if err != nil {
			log.PrintError("Failed to power %s: %v", nodeIP, err)
			cancel()
			return "", err
		}
		return string(pc.State()), nil
	})
	if err != nil {
		return Result{}, err
	}

	states := make([]string, 0, len(results))
	for _, r := range results {
		states = append(states, r.Value)
	}
	return Result{
		Summary: fmt.Sprintf("Successfully %s %s in %s", c.action.verb(), strings.Join(c.opts.NodeIPs, ","),
			util.SecondsToElapsedStr(int64(time.Since(start).Seconds()))),
		Fields: []Field{
			{Key: "nodes", Value: c.opts.NodeIPs},
			{Key: "states", Value: states},
		},
	}, nil
}
