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

package simulator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sferrors"
)

// checkVolumeLinks verifies that every volume is listed by exactly its
// own account
func checkVolumeLinks(t *testing.T, s *Simulator) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.st.Volumes {
		for _, a := range s.st.Accounts {
			assert.Equal(t, a.AccountID == v.AccountID, slices.Contains(a.Volumes, v.VolumeID),
				"volume %d, account %d", v.VolumeID, a.AccountID)
		}
	}
	for _, a := range s.st.Accounts {
		for _, id := range a.Volumes {
			assert.NotNil(t, s.st.volumeByID(id), "account %d lists missing volume %d", a.AccountID, id)
		}
	}
}

// checkInitiatorsUnique verifies that no initiator is in two groups
func checkInitiatorsUnique(t *testing.T, s *Simulator) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := map[string]int{}
	for _, g := range s.st.Groups {
		for _, name := range g.Initiators {
			other, seen := owner[name]
			assert.False(t, seen, "initiator %s is in groups %d and %d", name, other, g.VolumeAccessGroupID)
			owner[name] = g.VolumeAccessGroupID
		}
	}
}

// checkDriveOwners verifies that active drives belong to active nodes
func checkDriveOwners(t *testing.T, s *Simulator) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.st.Drives {
		owner := s.st.nodeByID(d.NodeID)
		if assert.NotNil(t, owner, "drive %d has no owner", d.DriveID) && d.Status == sfclusterops.DriveStatusActive {
			assert.False(t, owner.Pending)
		}
	}
}

func TestAddNodesAndDrives(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7, ActiveNodes: 3, PendingNodes: 2, DrivesPerNode: 4})

	pending, err := client.ListPendingNodes(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "10.0.1.1", pending[0].MIP)

	newIDs, err := client.AddNodesByIP(ctx, []string{"10.0.1.1"}, true)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{pending[0].PendingNodeID: firstAddedNodeID}, newIDs)

	active, pendingLeft := s.NodeCount()
	assert.Equal(t, 4, active)
	assert.Equal(t, 1, pendingLeft)

	node, err := client.FindActiveNode(ctx, "10.0.1.1")
	require.NoError(t, err)
	assert.Positive(t, node.AssociatedMasterServiceID)

	driveIDs, err := client.WaitForAvailableDrives(ctx, "10.0.1.1")
	require.NoError(t, err)
	assert.Len(t, driveIDs, 4)
	checkDriveOwners(t, s)

	require.NoError(t, client.AddDrivesAndWait(ctx, driveIDs, true))
	drives, err := client.ListDrives(ctx)
	require.NoError(t, err)
	assert.Len(t, sfclusterops.DrivesOfNode(drives, firstAddedNodeID, sfclusterops.DriveStatusActive), 4)
	checkDriveOwners(t, s)

	resolved, err := client.ListClusterFaults(ctx, sfclusterops.FaultTypesResolved)
	require.NoError(t, err)
	codes := []string{}
	for _, f := range resolved {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, sfclusterops.FaultCodeVolumesDegraded)
	synced, err := client.IsSynced(ctx)
	require.NoError(t, err)
	assert.True(t, synced)

	// the next node gets the next ID
	newIDs, err = client.AddNodesByIP(ctx, []string{"10.0.1.2"}, false)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{pending[1].PendingNodeID: firstAddedNodeID + 1}, newIDs)
}

func TestSyncFaultLastsTwoPolls(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSimulator(t, Config{Seed: 7, ActiveNodes: 3, PendingNodes: 1, DrivesPerNode: 2})

	_, err := client.AddNodesByIP(ctx, []string{"10.0.1.1"}, true)
	require.NoError(t, err)
	driveIDs, err := client.WaitForAvailableDrives(ctx, "10.0.1.1")
	require.NoError(t, err)
	require.NoError(t, client.AddDrivesAndWait(ctx, driveIDs, false))

	bins, err := client.DownloadBins(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bsSyncing", bins[0].Services[1].Status)

	synced, err := client.IsSynced(ctx)
	require.NoError(t, err)
	assert.False(t, synced)
	synced, err = client.IsSynced(ctx)
	require.NoError(t, err)
	assert.True(t, synced)
}

func TestAddNodesErrors(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSimulator(t, Config{Seed: 7, ActiveNodes: 3, PendingNodes: 1})

	_, err := client.AddNodes(ctx, []int{99}, false)
	assert.True(t, sferrors.IsAPIError(err, sferrors.NodeIDDoesNotExist))

	err = client.Call(ctx, "AddNodes", map[string]any{}, nil)
	assert.True(t, sferrors.IsAPIError(err, sferrors.MissingParameter))

	_, err = client.AddNodesByIP(ctx, []string{"10.0.0.1"}, false)
	assert.ErrorContains(t, err, "not in the list of pending nodes")
}

func TestAddDrivesErrors(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7, ActiveNodes: 3})

	drives, err := client.ListDrives(ctx)
	require.NoError(t, err)
	_, err = client.AddDrives(ctx, []sfclusterops.NewDrive{{DriveID: drives[0].DriveID}})
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))

	_, err = client.AddDrives(ctx, []sfclusterops.NewDrive{{DriveID: 9999}})
	assert.True(t, sferrors.IsAPIError(err, sferrors.DriveIDDoesNotExist))

	// removed drives come back as available and can be added again
	_, err = client.RemoveDrives(ctx, []int{drives[0].DriveID})
	require.NoError(t, err)
	_, err = client.AddDrives(ctx, []sfclusterops.NewDrive{{DriveID: drives[0].DriveID}})
	assert.NoError(t, err)
	checkDriveOwners(t, s)
}

func TestRemoveNodes(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7, ActiveNodes: 4})

	err := client.RemoveNodes(ctx, []int{4})
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter), "node with active drives")

	drives, err := client.ListDrives(ctx)
	require.NoError(t, err)
	var ids []int
	for _, d := range sfclusterops.DrivesOfNode(drives, 4, "") {
		ids = append(ids, d.DriveID)
	}
	_, err = client.RemoveDrives(ctx, ids)
	require.NoError(t, err)
	require.NoError(t, client.RemoveNodes(ctx, []int{4}))

	active, pending := s.NodeCount()
	assert.Equal(t, 3, active)
	assert.Equal(t, 1, pending)
	checkDriveOwners(t, s)
}

func TestListClusterFaults(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSimulator(t, Config{Seed: 7, ResolvedFaults: 3, UnhealthyFaults: 1})

	current, err := client.ListClusterFaults(ctx, sfclusterops.FaultTypesCurrent)
	require.NoError(t, err)
	assert.Len(t, current, 1)
	all, err := client.ListClusterFaults(ctx, sfclusterops.FaultTypesAll)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = client.ListClusterFaults(ctx, "bogus")
	assert.True(t, sferrors.IsAPIError(err, sferrors.UnrecognizedEnumString))

	require.NoError(t, client.ClearClusterFaults(ctx, sfclusterops.FaultTypesResolved))
	all, err = client.ListClusterFaults(ctx, sfclusterops.FaultTypesAll)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSimulator(t, Config{Seed: 7})

	id, err := client.AddAccount(ctx, "alice", "", "")
	require.NoError(t, err)
	account, err := client.GetAccountByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.GreaterOrEqual(t, len(account.TargetSecret), minSecretLen)
	assert.LessOrEqual(t, len(account.TargetSecret), maxSecretLen)

	_, err = client.AddAccount(ctx, "bob", "short", "")
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))
	_, err = client.AddAccount(ctx, "bob", "abcdefghijklmnopq", "")
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))
	_, err = client.AddAccount(ctx, "alice", "", "")
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))

	secret := "abcdefghijkl"
	require.NoError(t, client.ModifyAccount(ctx, id, sfclusterops.AccountModification{InitiatorSecret: &secret}))
	account, err = client.GetAccountByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, secret, account.InitiatorSecret)

	_, err = client.GetAccountByID(ctx, 999)
	assert.True(t, sferrors.IsAPIError(err, sferrors.AccountIDDoesNotExist))

	require.NoError(t, client.RemoveAccount(ctx, id))
	_, err = client.GetAccountByID(ctx, id)
	assert.True(t, sferrors.IsAPIError(err, sferrors.AccountIDDoesNotExist))
}

func TestVolumeSizeAndShrink(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7})
	accountID, err := client.AddAccount(ctx, "alice", "", "")
	require.NoError(t, err)

	volumeID, err := client.CreateVolume(ctx, sfclusterops.VolumeSpec{Name: "v", AccountID: accountID, TotalSize: 1000})
	require.NoError(t, err)
	vol, err := client.GetVolume(ctx, volumeID)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), vol.TotalSize)
	assert.Equal(t, sfclusterops.AccessReadWrite, vol.Access)

	size, err := client.ResizeVolume(ctx, volumeID, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(12288), size)

	_, err = client.ResizeVolume(ctx, volumeID, 4096)
	assert.True(t, sferrors.IsAPIError(err, sferrors.VolumeShrinkProhibited))
	smaller := int64(8192)
	err = client.ModifyVolume(ctx, volumeID, sfclusterops.VolumeModification{TotalSize: &smaller})
	assert.True(t, sferrors.IsAPIError(err, sferrors.VolumeShrinkProhibited))

	// a size within the same 4096 block is not a shrink
	same := int64(12000)
	assert.NoError(t, client.ModifyVolume(ctx, volumeID, sfclusterops.VolumeModification{TotalSize: &same}))

	_, err = client.CreateVolume(ctx, sfclusterops.VolumeSpec{Name: "w", AccountID: accountID, TotalSize: 4096, Access: "bogus"})
	assert.True(t, sferrors.IsAPIError(err, sferrors.UnrecognizedEnumString))
	_, err = client.CreateVolume(ctx, sfclusterops.VolumeSpec{Name: "w", AccountID: 999, TotalSize: 4096})
	assert.True(t, sferrors.IsAPIError(err, sferrors.AccountIDDoesNotExist))
	checkVolumeLinks(t, s)
}

func TestMoveVolumeToAccount(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7})
	alice, err := client.AddAccount(ctx, "alice", "", "")
	require.NoError(t, err)
	bob, err := client.AddAccount(ctx, "bob", "", "")
	require.NoError(t, err)
	volumeIDs, err := client.CreateVolumesForAccount(ctx, alice, "data", 2, 4096)
	require.NoError(t, err)
	require.Len(t, volumeIDs, 2)

	require.NoError(t, client.MoveVolumeToAccount(ctx, volumeIDs[0], bob))
	a, err := client.GetAccountByID(ctx, alice)
	require.NoError(t, err)
	b, err := client.GetAccountByID(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []int{volumeIDs[1]}, a.Volumes)
	assert.Equal(t, []int{volumeIDs[0]}, b.Volumes)
	vols, err := client.ListVolumesForAccount(ctx, bob)
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, bob, vols[0].AccountID)

	err = client.MoveVolumeToAccount(ctx, volumeIDs[1], 999)
	assert.True(t, sferrors.IsAPIError(err, sferrors.AccountIDDoesNotExist))
	checkVolumeLinks(t, s)
}

func TestDeleteRestorePurge(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, DefaultConfig(7))
	accounts, err := client.ListAccounts(ctx)
	require.NoError(t, err)
	account := accounts[0]

	volumeID, err := client.CreateVolume(ctx, sfclusterops.VolumeSpec{Name: "tmp", AccountID: account.AccountID, TotalSize: 4096})
	require.NoError(t, err)
	require.NoError(t, client.DeleteVolume(ctx, volumeID))
	err = client.DeleteVolume(ctx, volumeID)
	assert.True(t, sferrors.IsAPIError(err, sferrors.VolumeIDDoesNotExist))

	deleted, err := client.ListDeletedVolumes(ctx)
	require.NoError(t, err)
	idx := slices.IndexFunc(deleted, func(v sfclusterops.Volume) bool { return v.VolumeID == volumeID })
	require.GreaterOrEqual(t, idx, 0)
	assert.NotEmpty(t, deleted[idx].DeleteTime)

	require.NoError(t, client.RestoreDeletedVolume(ctx, volumeID))
	_, err = client.GetVolume(ctx, volumeID)
	require.NoError(t, err)
	err = client.PurgeDeletedVolume(ctx, volumeID)
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))

	require.NoError(t, client.DeleteVolume(ctx, volumeID))
	require.NoError(t, client.PurgeDeletedVolume(ctx, volumeID))
	after, err := client.GetAccountByID(ctx, account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, account.Volumes, after.Volumes)
	checkVolumeLinks(t, s)
}

func TestCloneVolume(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7})
	alice, err := client.AddAccount(ctx, "alice", "", "")
	require.NoError(t, err)
	bob, err := client.AddAccount(ctx, "bob", "", "")
	require.NoError(t, err)
	src, err := client.CreateVolume(ctx, sfclusterops.VolumeSpec{Name: "src", AccountID: alice, TotalSize: 3 * 4096})
	require.NoError(t, err)

	cloneID, err := client.CloneVolumeAndWait(ctx, src, "copy", bob)
	require.NoError(t, err)
	clone, err := client.GetVolume(ctx, cloneID)
	require.NoError(t, err)
	assert.Equal(t, int64(3*4096), clone.TotalSize)
	assert.Equal(t, bob, clone.AccountID)

	_, err = client.CloneVolume(ctx, 999, "copy", 0)
	assert.True(t, sferrors.IsAPIError(err, sferrors.VolumeIDDoesNotExist))
	checkVolumeLinks(t, s)
}

func TestVolumePairing(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSimulator(t, DefaultConfig(7))
	vols, err := client.ListActiveVolumes(ctx)
	require.NoError(t, err)
	volumeID := vols[0].VolumeID

	err = client.RemoveVolumePair(ctx, volumeID)
	assert.True(t, sferrors.IsAPIError(err, sferrors.VolumeNotPaired))

	key, err := client.StartVolumePairing(ctx, volumeID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	_, err = client.StartVolumePairing(ctx, volumeID, "Sometimes")
	assert.True(t, sferrors.IsAPIError(err, sferrors.UnrecognizedEnumString))

	paired, err := client.ListActivePairedVolumes(ctx)
	require.NoError(t, err)
	require.Len(t, paired, 1)
	assert.Equal(t, volumeID, paired[0].VolumeID)

	require.NoError(t, client.RemoveVolumePair(ctx, volumeID))
	paired, err = client.ListActivePairedVolumes(ctx)
	require.NoError(t, err)
	assert.Empty(t, paired)
}

func TestVolumeAccessGroups(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7})
	accountID, err := client.AddAccount(ctx, "alice", "", "")
	require.NoError(t, err)
	vols, err := client.CreateVolumesForAccount(ctx, accountID, "lun", 4, 4096)
	require.NoError(t, err)

	groupID, err := client.CreateVolumeAccessGroup(ctx, "g1", []string{"iqn.a", "iqn.b"}, vols[:3])
	require.NoError(t, err)
	luns, err := client.GetVolumeAccessGroupLunAssignments(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []sfclusterops.LunAssignment{
		{VolumeID: vols[0], Lun: 0}, {VolumeID: vols[1], Lun: 1}, {VolumeID: vols[2], Lun: 2},
	}, luns)

	// an initiator belongs to one group at most
	_, err = client.CreateVolumeAccessGroup(ctx, "g2", []string{"iqn.a"}, nil)
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))
	checkInitiatorsUnique(t, s)

	var many []string
	for i := 0; i <= maxInitiatorsPerGroup; i++ {
		many = append(many, fmt.Sprintf("iqn.host%d", i))
	}
	_, err = client.CreateVolumeAccessGroup(ctx, "big", many, nil)
	assert.True(t, sferrors.IsAPIError(err, sferrors.ExceededLimit))

	// nil leaves the initiators alone, empty clears them
	name := "renamed"
	require.NoError(t, client.ModifyVolumeAccessGroup(ctx, groupID, &name, nil, nil))
	groups, err := client.ListVolumeAccessGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "renamed", groups[0].Name)
	assert.Equal(t, []string{"iqn.a", "iqn.b"}, groups[0].Initiators)
	assert.Len(t, groups[0].Volumes, 3)

	require.NoError(t, client.ModifyVolumeAccessGroup(ctx, groupID, nil, []string{}, nil))
	groups, err = client.ListVolumeAccessGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups[0].Initiators)
	assert.Len(t, groups[0].Volumes, 3)

	// released initiators can join another group
	group2, err := client.CreateVolumeAccessGroup(ctx, "g2", []string{"iqn.a"}, nil)
	require.NoError(t, err)
	initiators, err := client.ListInitiators(ctx)
	require.NoError(t, err)
	for _, i := range initiators {
		switch i.InitiatorName {
		case "iqn.a":
			assert.Equal(t, group2, i.VolumeAccessGroupID)
		case "iqn.b":
			assert.Zero(t, i.VolumeAccessGroupID)
		}
	}
	checkInitiatorsUnique(t, s)

	// freed LUNs are reused lowest first
	require.NoError(t, client.RemoveVolumesFromVolumeAccessGroup(ctx, groupID, []int{vols[1]}))
	require.NoError(t, client.AddVolumesToVolumeAccessGroup(ctx, groupID, []int{vols[3]}))
	luns, err = client.GetVolumeAccessGroupLunAssignments(ctx, groupID)
	require.NoError(t, err)
	assert.Contains(t, luns, sfclusterops.LunAssignment{VolumeID: vols[3], Lun: 1})

	err = client.ModifyVolumeAccessGroupLunAssignments(ctx, groupID,
		[]sfclusterops.LunAssignment{{VolumeID: vols[0], Lun: 2}})
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))
	require.NoError(t, client.ModifyVolumeAccessGroupLunAssignments(ctx, groupID,
		[]sfclusterops.LunAssignment{{VolumeID: vols[0], Lun: 7}}))

	_, err = client.GetVolumeAccessGroupLunAssignments(ctx, 999)
	assert.True(t, sferrors.IsAPIError(err, sferrors.VolumeAccessGroupIDDoesNotExist))

	require.NoError(t, client.DeleteVolumeAccessGroup(ctx, groupID))
	vol, err := client.GetVolume(ctx, vols[0])
	require.NoError(t, err)
	assert.Empty(t, vol.VolumeAccessGroups)
}

func TestVolumeAccessGroupFullOfLuns(t *testing.T) {
	ctx := context.Background()
	s, client := newTestSimulator(t, Config{Seed: 7})
	accountID, err := client.AddAccount(ctx, "bob", "", "")
	require.NoError(t, err)
	vols, err := client.CreateVolumesForAccount(ctx, accountID, "lun", 2, 4096)
	require.NoError(t, err)
	groupID, err := client.CreateVolumeAccessGroup(ctx, "full", []string{"iqn.full"}, nil)
	require.NoError(t, err)

	// occupy every LUN but one with volumes that only exist in the group
	s.mu.Lock()
	g := s.st.groupByID(groupID)
	for lun := 0; lun < maxLun; lun++ {
		id := 1_000_000 + lun
		g.Luns[id] = lun
		g.Volumes = append(g.Volumes, id)
	}
	s.mu.Unlock()

	err = client.AddVolumesToVolumeAccessGroup(ctx, groupID, vols)
	assert.True(t, sferrors.IsAPIError(err, sferrors.ExceededLimit))
	for _, id := range vols {
		vol, err := client.GetVolume(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, vol.VolumeAccessGroups, "volume %d", id)
	}

	s.mu.Lock()
	assert.Len(t, g.Volumes, maxLun)
	assert.NoError(t, g.checkLunCapacity(vols, true))
	assert.Error(t, g.checkLunCapacity(append(append([]int(nil), g.Volumes...), vols...), true))
	s.mu.Unlock()

	// a rejected modify changes neither the name nor the initiators
	name := "renamed"
	err = client.ModifyVolumeAccessGroup(ctx, groupID, &name, []string{"iqn.other"}, []int{vols[0], 999})
	assert.True(t, sferrors.IsAPIError(err, sferrors.VolumeIDDoesNotExist))
	s.mu.Lock()
	assert.Equal(t, "full", g.Name)
	assert.Equal(t, []string{"iqn.full"}, g.Initiators)
	s.mu.Unlock()

	// the last free LUN still takes one volume
	require.NoError(t, client.AddVolumesToVolumeAccessGroup(ctx, groupID, vols[:1]))
	s.mu.Lock()
	assert.Equal(t, maxLun, g.Luns[vols[0]])
	s.mu.Unlock()
}

func TestSoftwareUpgrade(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSimulator(t, Config{Seed: 7, PendingUpgradeVersion: "9.1.0.20"})

	status, err := client.GetSoftwareUpgradeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, upgradePaused, status.State)
	assert.Equal(t, "9.1.0.20", status.PendingVersion)

	require.NoError(t, client.ResumeClusterSoftwareUpgrade(ctx))
	info, err := client.GetClusterVersionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9.1.0.20", info.ClusterVersion)

	err = client.ResumeClusterSoftwareUpgrade(ctx)
	assert.True(t, sferrors.IsAPIError(err, sferrors.SoftwareInstallNotInProgress))
}

func TestNodeAPI(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSimulator(t, Config{Seed: 7, DrivesPerNode: 5})
	node := client.Node("10.0.0.1")

	cfg, err := node.GetDriveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.NumTotalExpected)
	assert.Equal(t, 1, cfg.NumSliceExpected)
	assert.Equal(t, 4, cfg.NumBlockExpected)

	flags, err := node.GetStartupFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, "true", flags["sf_auto_rtfi"])

	mounts, err := node.ListMountedFileSystems(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, mounts)

	merged, err := node.SetConfig(ctx, map[string]any{"network": map[string]any{"mtu": 9000}})
	require.NoError(t, err)
	network := merged["network"].(map[string]any)
	assert.Equal(t, "10.0.0.1", network["mip"])
	assert.EqualValues(t, 9000, network["mtu"])

	target, err := node.ReadLink(ctx, "/sf/etc/current")
	require.NoError(t, err)
	assert.Equal(t, "/sf/packages/solidfire-element-"+DefaultVersion, target)
	_, err = node.ReadLink(ctx, "/no/such/link")
	assert.True(t, sferrors.IsAPIError(err, sferrors.DBNoSuchPath))

	err = node.AptInstall(ctx, []string{"no-such-package"})
	assert.True(t, sferrors.IsAPIError(err, sferrors.InvalidParameter))
	require.NoError(t, node.AptUpdate(ctx))
	require.NoError(t, node.AptInstall(ctx, []string{"solidfire-telemetry"}))
	versions, err := node.GetVersionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", versions.Packages["solidfire-telemetry"])

	require.NoError(t, node.InvokeSetVersion(ctx, "9.1.0.20"))
	status, err := node.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.RebootRequired)
	require.NoError(t, node.RebootNode(ctx))
	status, err = node.GetSystemStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.RebootRequired)

	_, err = node.GetTime(ctx)
	assert.NoError(t, err)
}
