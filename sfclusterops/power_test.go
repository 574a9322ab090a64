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

package sfclusterops_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/inventory"
	"github.com/solidfire/sfadmin/sfclusterops/shell"
	"github.com/solidfire/sfadmin/sfclusterops/simulator"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
	"github.com/solidfire/sfadmin/sferrors"
)

type powerFixture struct {
	sim     *simulator.Simulator
	client  *sfclusterops.ClusterClient
	ipmi    *shell.IPMI
	console *bytes.Buffer
	log     vlog.Printer
}

func newPowerFixture(t *testing.T) *powerFixture {
	t.Helper()
	util.SetTimeUnits(0)
	t.Cleanup(func() { util.SetTimeUnits(time.Second) })
	var console bytes.Buffer
	log := vlog.MakePrinter(buflogr.New(), &console)
	sim := simulator.New(simulator.Config{Seed: 11, ActiveNodes: 3, Log: &log})
	return &powerFixture{
		sim:     sim,
		client:  sfclusterops.NewClusterClient(sim.ConnectionOptions(), log),
		ipmi:    &shell.IPMI{Runner: sim.ShellRunner(), Username: util.DefaultIPMIUsername, Password: util.DefaultIPMIPassword},
		console: &console,
		log:     log,
	}
}

func (f *powerFixture) controller(t *testing.T, nodeIP string) *sfclusterops.PowerController {
	t.Helper()
	inv := f.sim.Inventory()
	pc, err := sfclusterops.NewPowerController(f.client.Node(nodeIP), &inv, f.ipmi, f.log.WithPrefix(nodeIP))
	require.NoError(t, err)
	return pc
}

func TestPowerCycle(t *testing.T) {
	ctx := context.Background()
	f := newPowerFixture(t)
	pc := f.controller(t, "10.0.0.2")
	assert.Equal(t, "10.1.0.2", pc.IPMIIP)
	assert.Equal(t, sfclusterops.NodePowerUnknown, pc.State())

	require.NoError(t, pc.PowerCycle(ctx, 3, true))
	assert.Equal(t, sfclusterops.NodePowerBooted, pc.State())
	assert.True(t, f.sim.PoweredOn("10.0.0.2"))

	// status, off, status (off), on
	var actions []string
	for _, argv := range f.sim.IPMICommands() {
		actions = append(actions, argv[len(argv)-1])
	}
	assert.Equal(t, []string{"status", "off", "status", "on"}, actions)
	assert.Contains(t, f.console.String(), "FAKE")
	assert.Contains(t, f.console.String(), "10.0.0.2: Powering off")
}

func TestPowerOffAndOn(t *testing.T) {
	ctx := context.Background()
	f := newPowerFixture(t)
	pc := f.controller(t, "10.0.0.3")

	require.NoError(t, pc.PowerOff(ctx))
	assert.Equal(t, sfclusterops.NodePowerOff, pc.State())
	assert.False(t, f.sim.PoweredOn("10.0.0.3"))
	status, err := pc.PowerStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, shell.PowerStateOff, status)

	// powering off a node that is already off only checks the status
	before := len(f.sim.IPMICommands())
	require.NoError(t, pc.PowerOff(ctx))
	assert.Len(t, f.sim.IPMICommands(), before+1)

	// the node never comes up while it is off
	err = pc.WaitForUp(ctx)
	assert.True(t, sferrors.IsTimeout(err))

	require.NoError(t, pc.PowerOn(ctx, false))
	assert.Equal(t, sfclusterops.NodePowerOn, pc.State())
	require.NoError(t, pc.WaitForUp(ctx))
}

func TestPowerControllerNeedsIPMIAddress(t *testing.T) {
	f := newPowerFixture(t)
	inv := inventory.MakeInventory()
	_, err := sfclusterops.NewPowerController(f.client.Node("10.0.0.1"), &inv, f.ipmi, f.log)
	assert.Error(t, err)

	resolver, err := inventory.MakeStaticResolver([]string{"10.0.0.1"}, []string{"10.1.0.1"})
	require.NoError(t, err)
	pc, err := sfclusterops.NewPowerController(f.client.Node("10.0.0.1"), resolver, f.ipmi, f.log)
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.1", pc.IPMIIP)
}

func TestPowerCycleCancelled(t *testing.T) {
	f := newPowerFixture(t)
	pc := f.controller(t, "10.0.0.1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pc.PowerCycle(ctx, 0, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.sim.PoweredOn("10.0.0.1"))
}
