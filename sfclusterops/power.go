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

package sfclusterops

import (
	"context"
	"fmt"
	"sync"

	"github.com/solidfire/sfadmin/sfclusterops/shell"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
)

// IPMIResolver finds the BMC address of a node from its management IP
type IPMIResolver interface {
	IPMIAddress(nodeIP string) (string, error)
}

// NodePowerState is what the power controller knows about its node
type NodePowerState string

const (
	NodePowerUnknown NodePowerState = "unknown"
	NodePowerOff     NodePowerState = "off"
	NodePowerOn      NodePowerState = "on"
	NodePowerBooted  NodePowerState = "booted"
)

// PowerController drives the chassis power of one node over IPMI
type PowerController struct {
	NodeIP string
	IPMIIP string

	ipmi  *shell.IPMI
	node  *NodeClient
	log   vlog.Printer
	mu    sync.Mutex
	state NodePowerState
}

// NewPowerController resolves the node's BMC address and builds a controller
func NewPowerController(node *NodeClient, resolver IPMIResolver, ipmi *shell.IPMI,
	log vlog.Printer) (*PowerController, error) {
	ipmiIP, err := resolver.IPMIAddress(node.NodeIP)
	if err != nil {
		return nil, err
	}
	return &PowerController{
		NodeIP: node.NodeIP,
		IPMIIP: ipmiIP,
		ipmi:   ipmi,
		node:   node,
		log:    log,
		state:  NodePowerUnknown,
	}, nil
}

// State is the last state the controller moved the node to
func (pc *PowerController) State() NodePowerState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *PowerController) setState(state NodePowerState) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = state
}

// PowerStatus asks the BMC for the chassis power
func (pc *PowerController) PowerStatus(ctx context.Context) (shell.PowerState, error) {
	return pc.ipmi.Status(ctx, pc.IPMIIP)
}

// PowerOff turns the chassis off and waits until the BMC reports it off
func (pc *PowerController) PowerOff(ctx context.Context) error {
	pc.log.PrintInfo("Powering off %s (IPMI %s)", pc.NodeIP, pc.IPMIIP)
	err := util.PollUntil(ctx, util.PollSpec{
		Operation:       fmt.Sprintf("%s to power off", pc.NodeIP),
		IntervalSeconds: util.PowerOffPollInterval,
		TimeoutSeconds:  util.PowerOffPollTimeout,
	}, func() (bool, error) {
		status, err := pc.PowerStatus(ctx)
		if err != nil {
			return false, err
		}
		if status == shell.PowerStateOff {
			return true, nil
		}
		_, err = pc.ipmi.Chassis(ctx, pc.IPMIIP, shell.PowerOff)
		return false, err
	})
	if err != nil {
		return err
	}
	pc.setState(NodePowerOff)
	return nil
}

// PowerOn turns the chassis on. With waitForUp it also waits until the node
// answers both ping and an RPC for two consecutive rounds.
func (pc *PowerController) PowerOn(ctx context.Context, waitForUp bool) error {
	pc.log.PrintInfo("Powering on %s (IPMI %s)", pc.NodeIP, pc.IPMIIP)
	if _, err := pc.ipmi.Chassis(ctx, pc.IPMIIP, shell.PowerOn); err != nil {
		return err
	}
	pc.setState(NodePowerOn)
	if !waitForUp {
		return nil
	}
	if err := pc.WaitForUp(ctx); err != nil {
		return err
	}
	pc.setState(NodePowerBooted)
	return nil
}

// WaitForUp polls ping and RPC liveness on the management IP
func (pc *PowerController) WaitForUp(ctx context.Context) error {
	upRounds := 0
	return util.PollUntil(ctx, util.PollSpec{
		Operation:       fmt.Sprintf("%s to boot", pc.NodeIP),
		IntervalSeconds: util.BootPollInterval,
		TimeoutSeconds:  util.BootPollTimeout,
	}, func() (bool, error) {
		if shell.Ping(ctx, pc.ipmi.Runner, pc.NodeIP) && pc.node.Alive(ctx) {
			upRounds++
		} else {
			upRounds = 0
		}
		return upRounds >= util.BootConsecutiveUpRounds, nil
	})
}

// PowerCycle powers the node off, keeps it off for downTime seconds and
// powers it back on.
func (pc *PowerController) PowerCycle(ctx context.Context, downTime int, waitForUp bool) error {
	if err := pc.PowerOff(ctx); err != nil {
		return err
	}
	if downTime > 0 {
		pc.log.PrintInfo("Waiting %d seconds before powering on %s", downTime, pc.NodeIP)
		if err := util.Sleep(ctx, util.Seconds(downTime)); err != nil {
			return err
		}
	}
	return pc.PowerOn(ctx, waitForUp)
}
