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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/simulator"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
)

type cliRun struct {
	exit   int
	stdout string
	stderr string
}

// simulateSFAdminCli runs one sfadmin command line against sim
func simulateSFAdminCli(t *testing.T, sim *simulator.Simulator, args ...string) cliRun {
	t.Helper()
	util.SetTimeUnits(0)
	t.Cleanup(func() {
		util.SetTimeUnits(time.Second)
		util.Defaults = util.MakeDefaultsRegistry()
	})
	t.Setenv(sfLogPathEnv, filepath.Join(t.TempDir(), "sfadmin.log"))
	if _, ok := os.LookupEnv(sfMVIPEnv); !ok {
		t.Setenv(sfMVIPEnv, sim.MVIP())
	}

	var stdout, stderr bytes.Buffer
	env := Env{
		Stdin:      strings.NewReader(""),
		Stdout:     &stdout,
		Stderr:     &stderr,
		HTTPClient: sim.HTTPClient(),
		Runner:     sim.ShellRunner(),
	}
	exit := Run(context.Background(), args, env)
	return cliRun{exit: exit, stdout: stdout.String(), stderr: stderr.String()}
}

func pendingNodeConfig() simulator.Config {
	return simulator.Config{
		Seed: 42,
		Nodes: []simulator.NodeSpec{
			{MIP: "10.0.0.1"}, {MIP: "10.0.0.2"}, {MIP: "10.0.0.3"}, {MIP: "10.0.0.4"},
			{MIP: "10.1.1.5", Pending: true, PendingNodeID: 42, NodeType: "SF9010"},
		},
	}
}

func simClient(sim *simulator.Simulator) *sfclusterops.ClusterClient {
	return sfclusterops.NewClusterClient(sim.ConnectionOptions(), vlog.MakePrinter(logr.Discard(), nil))
}

func TestAddSinglePendingNode(t *testing.T) {
	sim := simulator.New(pendingNodeConfig())
	res := simulateSFAdminCli(t, sim, "cluster-add-nodes", "--node-ips=10.1.1.5", "--nortfi", "--nodrives")
	require.Equal(t, exitPassed, res.exit, res.stderr)

	active, pending := sim.NodeCount()
	assert.Equal(t, 5, active)
	assert.Equal(t, 0, pending)
	node, err := simClient(sim).FindActiveNode(context.Background(), "10.1.1.5")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, node.NodeID, 10000)
	assert.Contains(t, res.stderr, "Successfully added 10.1.1.5 to cluster")

	// without drives nothing was added
	drives, err := simClient(sim).ListDrives(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sfclusterops.DrivesOfNode(drives, node.NodeID, sfclusterops.DriveStatusActive))
}

func TestAddNodeWithDrivesAndSync(t *testing.T) {
	sim := simulator.New(pendingNodeConfig())
	res := simulateSFAdminCli(t, sim, "cluster-add-nodes", "--node-ips=10.1.1.5", "--output-format=json")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Equal(t, "{\"nodeIDs\": [10000]}\n", res.stdout)
	assert.Empty(t, res.stderr)

	drives, err := simClient(sim).ListDrives(context.Background())
	require.NoError(t, err)
	assert.Len(t, sfclusterops.DrivesOfNode(drives, 10000, sfclusterops.DriveStatusActive), simulator.DefaultDrivesPerNode)
	assert.Empty(t, sfclusterops.DrivesOfNode(drives, 10000, sfclusterops.DriveStatusAvailable))
}

func TestAddNodeFailure(t *testing.T) {
	sim := simulator.New(pendingNodeConfig())
	restore := sim.InjectFailure(simulator.FailureSpec{Method: "AddNodes", FailCount: simulator.AlwaysFail})
	defer restore()

	res := simulateSFAdminCli(t, sim, "cluster-add-nodes", "--node-ips=10.1.1.5")
	assert.Equal(t, exitFailed, res.exit)
	assert.Contains(t, res.stderr, "Failed to add 10.1.1.5")
	assert.Contains(t, res.stderr, "cluster-add-nodes failed")
	assert.Empty(t, res.stdout)

	_, pending := sim.NodeCount()
	assert.Equal(t, 1, pending)
}

func TestAddNodesByNode(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 3, ActiveNodes: 3, PendingNodes: 2, DrivesPerNode: 2})
	res := simulateSFAdminCli(t, sim, "cluster-add-nodes", "--node-ips=10.0.1.1,10.0.1.2",
		"--bynode", "--no-sync", "--output-format=bash")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Equal(t, "10000 10001\n", res.stdout)
}

func TestListActiveNodesBash(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	res := simulateSFAdminCli(t, sim, "cluster-list-nodes", "--state=active", "--output-format=bash")
	assert.Equal(t, exitPassed, res.exit)
	assert.Equal(t, "10.0.0.1 10.0.0.2 10.0.0.3\n", res.stdout)
	assert.Empty(t, res.stderr)
}

func TestListNodesByID(t *testing.T) {
	sim := simulator.New(pendingNodeConfig())
	res := simulateSFAdminCli(t, sim, "cluster-list-nodes", "--state=pending", "--byid", "--output-format=json")
	assert.Equal(t, exitPassed, res.exit)
	assert.Equal(t, "{\"nodes\": [42]}\n", res.stdout)

	res = simulateSFAdminCli(t, sim, "cluster-list-nodes", "--state=broken")
	assert.Equal(t, exitInvalidArgument, res.exit)
	assert.Contains(t, res.stderr, "must be one of {all, active, pending}")
}

func TestNodeDriveCountJSON(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	res := simulateSFAdminCli(t, sim, "node-get-drive-count", "--node-ip=10.0.0.1", "--output-format=json")
	assert.Equal(t, exitPassed, res.exit)
	assert.Equal(t, "{\"driveCount\": 11}\n", res.stdout)
}

func TestPowerCycleIPMIListMismatch(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	res := simulateSFAdminCli(t, sim, "node-power-cycle", "--node-ips=10.0.0.1,10.0.0.2", "--ipmi-ips=10.1.0.1")
	assert.Equal(t, exitInvalidArgument, res.exit)
	assert.Empty(t, sim.IPMICommands())
	assert.Empty(t, res.stdout)
}

func TestPowerCycleNodes(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	res := simulateSFAdminCli(t, sim, "node-power-cycle", "--node-ips=10.0.0.1,10.0.0.2",
		"--ipmi-ips=10.1.0.1,10.1.0.2", "--down-time=5", "--parallel-max=2", "--output-format=bash")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Equal(t, "10.0.0.1 10.0.0.2 booted booted\n", res.stdout)
	assert.True(t, sim.PoweredOn("10.0.0.1"))
	assert.True(t, sim.PoweredOn("10.0.0.2"))

	hosts := map[string]int{}
	for _, cmd := range sim.IPMICommands() {
		for _, arg := range cmd {
			if strings.HasPrefix(arg, "-H") {
				hosts[strings.TrimPrefix(arg, "-H")]++
			}
		}
	}
	assert.Contains(t, hosts, "10.1.0.1")
	assert.Contains(t, hosts, "10.1.0.2")
	assert.NotContains(t, hosts, "10.1.0.3")
}

func TestPowerOffAndOnWithInventory(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	inv := sim.Inventory()
	require.NoError(t, inv.WriteInventory(path))

	res := simulateSFAdminCli(t, sim, "node-power-off", "--node-ips=10.0.0.3", "--inventory="+path)
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.False(t, sim.PoweredOn("10.0.0.3"))

	res = simulateSFAdminCli(t, sim, "node-power-on", "--node-ips=10.0.0.3", "--inventory="+path, "--nowait")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.True(t, sim.PoweredOn("10.0.0.3"))

	// no BMC address anywhere
	res = simulateSFAdminCli(t, sim, "node-power-off", "--node-ips=10.0.0.3")
	assert.Equal(t, exitInvalidArgument, res.exit)
}

func TestArgumentErrors(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	tests := []struct {
		name string
		args []string
	}{
		{"bad output format", []string{"cluster-list-nodes", "--output-format=xml"}},
		{"bad node ip", []string{"cluster-add-nodes", "--node-ips=10.1.1"}},
		{"missing node ips", []string{"cluster-add-nodes"}},
		{"unknown flag", []string{"cluster-list-nodes", "--bogus"}},
		{"positional argument", []string{"cluster-list-nodes", "extra"}},
		{"negative down time", []string{"node-power-cycle", "--node-ips=10.0.0.1", "--ipmi-ips=10.1.0.1", "--down-time=-1"}},
		{"non-integer parallel max", []string{"node-power-cycle", "--node-ips=10.0.0.1", "--ipmi-ips=10.1.0.1", "--parallel-max=x"}},
		{"short secret", []string{"account-create", "--account-name=a", "--initiator-secret=short"}},
		{"zero volume size", []string{"volume-create", "--account-id=1", "--name=v"}},
		{"bad volume id", []string{"volume-delete", "--volume-ids=1,x"}},
		{"zero volume id", []string{"volume-delete", "--volume-ids=0"}},
		{"non-integer down time", []string{"node-power-cycle", "--node-ips=10.0.0.1", "--ipmi-ips=10.1.0.1", "--down-time=1.5"}},
		{"unknown inventory file", []string{"node-power-off", "--node-ips=10.0.0.1", "--inventory=/nonexistent/inventory.yaml"}},
		{"bad mvip on node action", []string{"node-power-off", "--mvip=300.0.0.1", "--node-ips=10.0.0.1", "--ipmi-ips=10.1.0.1"}},
		{"bad min version", []string{"cluster-get-version", "--min-version=12.3.0"}},
		{"bad fault type", []string{"cluster-list-faults", "--fault-types=old"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := simulateSFAdminCli(t, sim, tt.args...)
			assert.Equal(t, exitInvalidArgument, res.exit, res.stderr)
			assert.Empty(t, res.stdout)
		})
	}
	assert.Empty(t, sim.IPMICommands())
}

func TestVolumeLifecycle(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 5, ActiveNodes: 3})

	res := simulateSFAdminCli(t, sim, "account-create", "--account-name=tenant1",
		"--initiator-secret=0123456789ab", "--output-format=bash")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	accountID := strings.TrimSpace(res.stdout)

	res = simulateSFAdminCli(t, sim, "volume-create", "--account-id="+accountID, "--name=data",
		"--count=2", "--size=10000", "--output-format=bash")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	volumeIDs := strings.Fields(res.stdout)
	require.Len(t, volumeIDs, 2)

	volumes, err := simClient(sim).ListActiveVolumes(context.Background())
	require.NoError(t, err)
	sizes := map[string]int64{}
	for _, v := range volumes {
		sizes[v.Name] = v.TotalSize
	}
	assert.Equal(t, int64(12288), sizes["data-1"])
	assert.Equal(t, int64(12288), sizes["data-2"])

	res = simulateSFAdminCli(t, sim, "volgroup-create", "--name=hosts",
		"--initiators=iqn.1998-01.com.vmware:host1", "--volume-ids="+strings.Join(volumeIDs, ","),
		"--output-format=json")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Contains(t, res.stdout, "{\"volumeAccessGroupID\": ")

	res = simulateSFAdminCli(t, sim, "volume-delete", "--volume-ids="+volumeIDs[0])
	require.Equal(t, exitPassed, res.exit, res.stderr)
	deleted, err := simClient(sim).ListDeletedVolumes(context.Background())
	require.NoError(t, err)
	var deletedNames []string
	for _, v := range deleted {
		deletedNames = append(deletedNames, v.Name)
	}
	assert.Contains(t, deletedNames, "data-1")

	// deleting it again is a domain error
	res = simulateSFAdminCli(t, sim, "volume-delete", "--volume-ids="+volumeIDs[0])
	assert.Equal(t, exitFailed, res.exit)
	assert.Contains(t, res.stderr, "Failed to delete volume "+volumeIDs[0])
}

func TestClusterVersionAndFaults(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 5, ActiveNodes: 3, ResolvedFaults: 2})

	res := simulateSFAdminCli(t, sim, "cluster-get-version", "--output-format=bash")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Equal(t, simulator.DefaultVersion+" 9.0\n", res.stdout)

	res = simulateSFAdminCli(t, sim, "cluster-get-version", "--min-version=10.0.0.1")
	assert.Equal(t, exitFailed, res.exit)
	assert.Contains(t, res.stderr, "older than 10.0.0.1")

	res = simulateSFAdminCli(t, sim, "cluster-list-faults", "--fault-types=resolved", "--output-format=bash")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Len(t, strings.Fields(res.stdout), 2)

	res = simulateSFAdminCli(t, sim, "cluster-list-faults", "--fault-types=resolved", "--clear")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	res = simulateSFAdminCli(t, sim, "cluster-list-faults", "--fault-types=resolved", "--output-format=json")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Equal(t, "{\"faults\": []}\n", res.stdout)
}

func TestAddAvailableDrives(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 9, ActiveNodes: 3, PendingNodes: 1, DrivesPerNode: 3})
	res := simulateSFAdminCli(t, sim, "cluster-add-nodes", "--node-ips=10.0.1.1", "--nodrives")
	require.Equal(t, exitPassed, res.exit, res.stderr)

	res = simulateSFAdminCli(t, sim, "cluster-add-available-drives", "--node-ips=10.0.1.1", "--output-format=bash")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Len(t, strings.Fields(res.stdout), 3)

	// nothing left to add
	res = simulateSFAdminCli(t, sim, "cluster-add-available-drives", "--output-format=json")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Equal(t, "{\"driveIDs\": []}\n", res.stdout)
}

func TestNodeActionsAcceptMVIP(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	res := simulateSFAdminCli(t, sim, "node-get-drive-count", "--mvip="+sim.MVIP(), "--node-ip=10.0.0.1",
		"--output-format=json")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.Equal(t, "{\"driveCount\": 11}\n", res.stdout)

	res = simulateSFAdminCli(t, sim, "node-power-off", "--mvip", sim.MVIP(), "--node-ips=10.0.0.3",
		"--ipmi-ips=10.1.0.3")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.False(t, sim.PoweredOn("10.0.0.3"))
	assert.Contains(t, res.stderr, "Successfully powered off 10.0.0.3 in 00:00:")

	// a given MVIP is still validated
	res = simulateSFAdminCli(t, sim, "node-get-drive-count", "--mvip=10.0.0", "--node-ip=10.0.0.1")
	assert.Equal(t, exitInvalidArgument, res.exit)
	assert.Contains(t, res.stderr, "mvip")
}

func TestIPMICommandLine(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	res := simulateSFAdminCli(t, sim, "node-power-off", "--node-ips=10.0.0.2", "--ipmi-ips=10.1.0.2",
		"--ipmi-command", "sudo -n ipmitool -I lanplus")
	require.Equal(t, exitPassed, res.exit, res.stderr)
	assert.False(t, sim.PoweredOn("10.0.0.2"))

	cmds := sim.IPMICommands()
	require.NotEmpty(t, cmds)
	for _, cmd := range cmds {
		assert.Equal(t, []string{"sudo", "-n", "ipmitool", "-I", "lanplus"}, cmd[:5])
	}

	t.Setenv(sfIPMICommandEnv, `ipmitool "-Ilanplus`)
	res = simulateSFAdminCli(t, sim, "node-power-on", "--node-ips=10.0.0.2", "--ipmi-ips=10.1.0.2")
	assert.Equal(t, exitInvalidArgument, res.exit)
	assert.Contains(t, res.stderr, ipmiCommandFlag)
	assert.Len(t, sim.IPMICommands(), len(cmds))
	assert.False(t, sim.PoweredOn("10.0.0.2"))
}

func TestAccountCreateReportsFirstBadOption(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 1, ActiveNodes: 3})
	longName := strings.Repeat("a", 65)
	for i := 0; i < 5; i++ {
		res := simulateSFAdminCli(t, sim, "account-create", "--account-name="+longName,
			"--initiator-secret=short", "--target-secret=short")
		assert.Equal(t, exitInvalidArgument, res.exit)
		assert.Contains(t, res.stderr, "account-name")
		assert.NotContains(t, res.stderr, "initiator-secret")
		assert.NotContains(t, res.stderr, "target-secret")
	}
}

func TestAddAvailableDrivesOfInactiveNode(t *testing.T) {
	sim := simulator.New(simulator.Config{Seed: 9, ActiveNodes: 3, PendingNodes: 1, DrivesPerNode: 3})
	res := simulateSFAdminCli(t, sim, "cluster-add-available-drives", "--node-ips=10.0.0.1,10.0.1.1")
	assert.Equal(t, exitFailed, res.exit)
	assert.Contains(t, res.stderr, "not active nodes of the cluster: 10.0.1.1")
	assert.Empty(t, res.stdout)
}

func TestFaultDuration(t *testing.T) {
	assert.Equal(t, "1h2m3s", faultDuration("2024-01-01T00:00:00Z", "2024-01-01T01:02:03Z"))
	assert.Equal(t, "0s", faultDuration("2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z"))
	assert.Equal(t, "unknown", faultDuration("2024-01-01T01:00:00Z", "2024-01-01T00:00:00Z"))
	assert.Equal(t, "unknown", faultDuration("", "2024-01-01T00:00:00Z"))
	assert.Equal(t, "unknown", faultDuration("2024-01-01T00:00:00Z", ""))
}
