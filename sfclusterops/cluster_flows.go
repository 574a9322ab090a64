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
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sferrors"
)

// AddNodesByIP adds the pending nodes with the given management IPs and
// returns a map from pending node ID to the newly allocated node ID. With
// autoRTFI the cluster re-images the nodes first, and the call only returns
// once every node is active with the cluster's software version.
func (c *ClusterClient) AddNodesByIP(ctx context.Context, pendingIPs []string, autoRTFI bool) (map[int]int, error) {
	pending, err := c.ListPendingNodes(ctx)
	if err != nil {
		return nil, err
	}
	pendingIDByIP := make(map[string]int, len(pending))
	for i := range pending {
		pendingIDByIP[pending[i].MIP] = pending[i].PendingNodeID
	}
	pendingIDs := make([]int, 0, len(pendingIPs))
	for _, ip := range pendingIPs {
		id, ok := pendingIDByIP[ip]
		if !ok {
			return nil, fmt.Errorf("node %s is not in the list of pending nodes", ip)
		}
		pendingIDs = append(pendingIDs, id)
	}

	c.log.PrintInfo("Adding pending nodes %s (autoRTFI=%t)", strings.Join(pendingIPs, ","), autoRTFI)
	added, err := c.AddNodes(ctx, pendingIDs, autoRTFI)
	if err != nil {
		return nil, err
	}
	newIDs := make(map[int]int, len(added))
	for _, node := range added {
		newIDs[node.PendingNodeID] = node.NodeID
	}
	if !autoRTFI {
		return newIDs, nil
	}

	versionInfo, err := c.GetClusterVersionInfo(ctx)
	if err != nil {
		return nil, err
	}
	want := mapset.NewSet(maps.Values(newIDs)...)
	err = util.PollUntil(ctx, util.PollSpec{
		Operation:       "nodes to finish RTFI",
		IntervalSeconds: util.RTFIPollInterval,
		TimeoutSeconds:  util.RTFIPollTimeout,
	}, func() (bool, error) {
		active, err := c.ListActiveNodes(ctx)
		if err != nil {
			return false, err
		}
		ready := mapset.NewSet[int]()
		for i := range active {
			if active[i].SoftwareVersion == versionInfo.ClusterVersion {
				ready.Add(active[i].NodeID)
			}
		}
		return want.IsSubset(ready), nil
	})
	if err != nil {
		return nil, err
	}
	return newIDs, nil
}

// FindActiveNode returns the active node with the given management IP
func (c *ClusterClient) FindActiveNode(ctx context.Context, nodeIP string) (Node, error) {
	nodes, err := c.ListActiveNodes(ctx)
	if err != nil {
		return Node{}, err
	}
	for i := range nodes {
		if nodes[i].MIP == nodeIP {
			return nodes[i], nil
		}
	}
	return Node{}, sferrors.NewAPIError(sferrors.NodeIDDoesNotExist,
		fmt.Sprintf("no active node has management IP %s", nodeIP)).
		WithCall("ListActiveNodes", nil, c.opts.MVIP, Endpoint(c.opts.apiVersion()))
}

// DrivesOfNode filters drives by owning node and, when status is not empty,
// by status.
func DrivesOfNode(drives []Drive, nodeID int, status string) []Drive {
	var res []Drive
	for i := range drives {
		if drives[i].NodeID == nodeID && (status == "" || drives[i].Status == status) {
			res = append(res, drives[i])
		}
	}
	return res
}

// WaitForAvailableDrives waits until the node at nodeIP reports as many
// available drives as it expects to have, and returns their IDs.
func (c *ClusterClient) WaitForAvailableDrives(ctx context.Context, nodeIP string) ([]int, error) {
	node, err := c.FindActiveNode(ctx, nodeIP)
	if err != nil {
		return nil, err
	}
	driveConfig, err := c.Node(nodeIP).GetDriveConfig(ctx)
	if err != nil {
		return nil, err
	}

	var driveIDs []int
	err = util.PollUntil(ctx, util.PollSpec{
		Operation:       fmt.Sprintf("%d available drives on %s", driveConfig.NumTotalExpected, nodeIP),
		IntervalSeconds: util.DrivePollIntervalSeconds,
		TimeoutSeconds:  util.DrivePollTimeoutSeconds,
	}, func() (bool, error) {
		drives, err := c.ListDrives(ctx)
		if err != nil {
			return false, err
		}
		available := DrivesOfNode(drives, node.NodeID, DriveStatusAvailable)
		c.log.PrintDebug("%s has %d/%d available drives", nodeIP, len(available), driveConfig.NumTotalExpected)
		if len(available) < driveConfig.NumTotalExpected {
			return false, nil
		}
		driveIDs = driveIDs[:0]
		for i := range available {
			driveIDs = append(driveIDs, available[i].DriveID)
		}
		return true, nil
	})
	return driveIDs, err
}

// AddDrivesAndWait adds drives to the cluster. With waitForSync it waits
// until the cluster has finished syncing data onto them.
func (c *ClusterClient) AddDrivesAndWait(ctx context.Context, driveIDs []int, waitForSync bool) error {
	drives := make([]NewDrive, 0, len(driveIDs))
	for _, id := range driveIDs {
		drives = append(drives, NewDrive{DriveID: id})
	}
	if _, err := c.AddDrives(ctx, drives); err != nil {
		return err
	}
	if !waitForSync {
		return nil
	}
	return c.WaitForSync(ctx)
}

// WaitForSync polls until no sync faults remain and every bin is stable
func (c *ClusterClient) WaitForSync(ctx context.Context) error {
	return util.PollUntil(ctx, util.PollSpec{
		Operation:       "cluster sync",
		IntervalSeconds: util.SyncPollIntervalSeconds,
		TimeoutSeconds:  util.SyncPollTimeoutSeconds,
	}, func() (bool, error) {
		return c.IsSynced(ctx)
	})
}

// IsSynced is true when there is no current volumesDegraded or
// bin...Unhealthy fault and every bin service is active.
func (c *ClusterClient) IsSynced(ctx context.Context) (bool, error) {
	faults, err := c.ListClusterFaults(ctx, FaultTypesCurrent)
	if err != nil {
		return false, err
	}
	for i := range faults {
		if !faults[i].Resolved && IsSyncFault(faults[i].Code) {
			c.log.PrintDebug("Waiting for sync, fault %s is present", faults[i].Code)
			return false, nil
		}
	}
	bins, err := c.DownloadBins(ctx)
	if err != nil {
		return false, err
	}
	for _, bin := range bins {
		for _, service := range bin.Services {
			if service.Status != BinServiceActive {
				return false, nil
			}
		}
	}
	return true, nil
}

// IsSyncFault reports whether a fault code means data is still syncing
func IsSyncFault(code string) bool {
	return code == FaultCodeVolumesDegraded ||
		(strings.HasPrefix(code, "bin") && strings.HasSuffix(code, "Unhealthy"))
}

// GetVolume returns an active volume by ID
func (c *ClusterClient) GetVolume(ctx context.Context, volumeID int) (Volume, error) {
	volumes, err := c.ListActiveVolumes(ctx)
	if err != nil {
		return Volume{}, err
	}
	idx := slices.IndexFunc(volumes, func(v Volume) bool { return v.VolumeID == volumeID })
	if idx < 0 {
		return Volume{}, sferrors.NewAPIError(sferrors.VolumeIDDoesNotExist,
			fmt.Sprintf("VolumeID %d does not exist.", volumeID)).
			WithCall("ListActiveVolumes", nil, c.opts.MVIP, Endpoint(c.opts.apiVersion()))
	}
	return volumes[idx], nil
}

// RoundUpVolumeSize rounds a size up to the volume size granularity
func RoundUpVolumeSize(size int64) int64 {
	if rem := size % VolumeSizeMultiple; rem != 0 {
		return size + VolumeSizeMultiple - rem
	}
	return size
}

// ResizeVolume grows a volume to newSize, rounded up to a multiple of 4096.
// Shrinking is refused.
func (c *ClusterClient) ResizeVolume(ctx context.Context, volumeID int, newSize int64) (int64, error) {
	volume, err := c.GetVolume(ctx, volumeID)
	if err != nil {
		return 0, err
	}
	size := RoundUpVolumeSize(newSize)
	if size < volume.TotalSize {
		return 0, sferrors.NewAPIError(sferrors.VolumeShrinkProhibited,
			fmt.Sprintf("cannot shrink volume %d from %d to %d bytes", volumeID, volume.TotalSize, size)).
			WithCall("ModifyVolume", map[string]any{"volumeID": volumeID, "totalSize": size},
				c.opts.MVIP, Endpoint(c.opts.apiVersion()))
	}
	if err := c.ModifyVolume(ctx, volumeID, VolumeModification{TotalSize: &size}); err != nil {
		return 0, err
	}
	return size, nil
}

// MoveVolumeToAccount reassigns a volume to another account
func (c *ClusterClient) MoveVolumeToAccount(ctx context.Context, volumeID, accountID int) error {
	if _, err := c.GetAccountByID(ctx, accountID); err != nil {
		return err
	}
	return c.ModifyVolume(ctx, volumeID, VolumeModification{AccountID: &accountID})
}

// CreateVolumesForAccount creates count volumes named <prefix>-<n>
func (c *ClusterClient) CreateVolumesForAccount(ctx context.Context, accountID int, prefix string,
	count int, size int64) ([]int, error) {
	volumeIDs := make([]int, 0, count)
	for i := 1; i <= count; i++ {
		name := prefix
		if count > 1 {
			name = fmt.Sprintf("%s-%d", prefix, i)
		}
		id, err := c.CreateVolume(ctx, VolumeSpec{Name: name, AccountID: accountID, TotalSize: size})
		if err != nil {
			return volumeIDs, err
		}
		volumeIDs = append(volumeIDs, id)
	}
	return volumeIDs, nil
}

// WaitForAsyncResult polls an async handle until it is no longer running
func (c *ClusterClient) WaitForAsyncResult(ctx context.Context, asyncHandle int) (AsyncResult, error) {
	var res AsyncResult
	err := util.PollUntil(ctx, util.PollSpec{
		Operation:       fmt.Sprintf("async handle %d", asyncHandle),
		IntervalSeconds: util.AsyncResultPollInterval,
		TimeoutSeconds:  util.AsyncResultPollTimeout,
	}, func() (bool, error) {
		var err error
		res, err = c.GetAsyncResult(ctx, asyncHandle)
		if err != nil {
			return false, err
		}
		return res.Status != AsyncStatusRunning, nil
	})
	if err != nil {
		return res, err
	}
	if res.Error != nil {
		return res, fmt.Errorf("async handle %d failed: %v", asyncHandle, res.Error)
	}
	return res, nil
}

// CloneVolumeAndWait clones a volume and waits for the clone to complete
func (c *ClusterClient) CloneVolumeAndWait(ctx context.Context, volumeID int, name string,
	newAccountID int) (int, error) {
	clone, err := c.CloneVolume(ctx, volumeID, name, newAccountID)
	if err != nil {
		return 0, err
	}
	if _, err := c.WaitForAsyncResult(ctx, clone.AsyncHandle); err != nil {
		return 0, err
	}
	return clone.VolumeID, nil
}
