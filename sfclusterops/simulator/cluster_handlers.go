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
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sferrors"
)

const (
	upgradePaused   = "paused"
	upgradeComplete = "complete"
)

var clusterHandlers map[string]handler

func init() {
	clusterHandlers = map[string]handler{
		"GetAPI":                       getAPI,
		"GetClusterInfo":               getClusterInfo,
		"GetClusterVersionInfo":        getClusterVersionInfo,
		"GetClusterMasterNodeID":       getClusterMasterNodeID,
		"ListClusterAdmins":            listClusterAdmins,
		"ListActiveNodes":              listActiveNodes,
		"ListPendingNodes":             listPendingNodes,
		"ListAllNodes":                 listAllNodes,
		"AddNodes":                     addNodes,
		"RemoveNodes":                  removeNodes,
		"ListDrives":                   listDrives,
		"AddDrives":                    addDrives,
		"RemoveDrives":                 removeDrives,
		"ListClusterFaults":            listClusterFaults,
		"ClearClusterFaults":           clearClusterFaults,
		"GetAsyncResult":               getAsyncResult,
		"GetSoftwareUpgradeStatus":     getSoftwareUpgradeStatus,
		"ResumeClusterSoftwareUpgrade": resumeClusterSoftwareUpgrade,
	}
	for method, h := range volumeHandlers {
		clusterHandlers[method] = h
	}
}

func getAPI(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return sfclusterops.APIInfo{
		CurrentVersion:    s.st.HighestAPIVersion,
		SupportedVersions: s.supportedVersions(),
	}, nil
}

func getClusterInfo(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"clusterInfo": s.st.Info}, nil
}

func getClusterVersionInfo(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return sfclusterops.ClusterVersionInfo{
		ClusterAPIVersion: sfclusterops.FormatAPIVersion(s.st.HighestAPIVersion),
		ClusterVersion:    s.st.Version,
	}, nil
}

func getClusterMasterNodeID(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"nodeID": s.st.MasterNodeID}, nil
}

func listClusterAdmins(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"clusterAdmins": s.st.Admins}, nil
}

func activeNodeList(s *Simulator) []sfclusterops.Node {
	nodes := []sfclusterops.Node{}
	for _, n := range s.st.activeNodes() {
		nodes = append(nodes, n.Node)
	}
	return nodes
}

func pendingNodeList(s *Simulator) []sfclusterops.PendingNode {
	nodes := []sfclusterops.PendingNode{}
	for _, n := range s.st.pendingNodes() {
		nodes = append(nodes, sfclusterops.PendingNode{
			PendingNodeID:   n.PendingNodeID,
			Name:            n.Name,
			MIP:             n.MIP,
			CIP:             n.CIP,
			SIP:             n.SIP,
			PlatformInfo:    n.PlatformInfo,
			SoftwareVersion: n.SoftwareVersion,
			UUID:            n.UUID,
		})
	}
	return nodes
}

func listActiveNodes(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"nodes": activeNodeList(s)}, nil
}

func listPendingNodes(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"pendingNodes": pendingNodeList(s)}, nil
}

func listAllNodes(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"nodes": activeNodeList(s), "pendingNodes": pendingNodeList(s)}, nil
}

// addNodes moves pending nodes into the cluster. Every node gets a new ID,
// a master service, and its drives show up as available.
func addNodes(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		PendingNodes *[]int `json:"pendingNodes"`
		AutoRTFI     *bool  `json:"autoRTFI"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.PendingNodes == nil {
		return nil, missingParam("pendingNodes")
	}
	autoRTFI := p.AutoRTFI == nil || *p.AutoRTFI

	// validate everything first so that a bad ID adds nothing
	var toAdd []*nodeState
	for _, pendingID := range *p.PendingNodes {
		node := s.st.pendingNodeByID(pendingID)
		if node == nil {
			return nil, sferrors.NewAPIError(sferrors.NodeIDDoesNotExist,
				fmt.Sprintf("PendingNodeID %d does not exist.", pendingID))
		}
		toAdd = append(toAdd, node)
	}

	added := []sfclusterops.AddedNode{}
	for _, node := range toAdd {
		pendingID := node.PendingNodeID
		node.NodeID = s.st.newNodeID()
		node.Pending = false
		node.PendingNodeID = 0
		node.AssociatedMasterServiceID = s.st.nextID(idService)
		if autoRTFI {
			node.SoftwareVersion = s.st.Version
			node.Packages["solidfire-element"] = s.st.Version
		}
		s.st.materializeDrives(node, sfclusterops.DriveStatusAvailable)
		added = append(added, sfclusterops.AddedNode{NodeID: node.NodeID, PendingNodeID: pendingID})
		s.log.PrintFake("Added node %s as node %d", node.MIP, node.NodeID)
	}
	s.st.pickEnsemble()
	return map[string]any{"nodes": added, "autoRTFI": autoRTFI}, nil
}

// removeNodes puts active nodes back into the pending list. Nodes with
// active drives cannot be removed.
func removeNodes(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Nodes *[]int `json:"nodes"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Nodes == nil {
		return nil, missingParam("nodes")
	}
	var toRemove []*nodeState
	for _, nodeID := range *p.Nodes {
		node := s.st.nodeByID(nodeID)
		if node == nil {
			return nil, sferrors.NewAPIError(sferrors.NodeIDDoesNotExist,
				fmt.Sprintf("NodeID %d does not exist.", nodeID))
		}
		for _, d := range s.st.Drives {
			if d.NodeID == nodeID && d.Status == sfclusterops.DriveStatusActive {
				return nil, invalidParam("NodeID %d still has active drives.", nodeID)
			}
		}
		toRemove = append(toRemove, node)
	}
	for _, node := range toRemove {
		drives := s.st.Drives[:0]
		for _, d := range s.st.Drives {
			if d.NodeID != node.NodeID {
				drives = append(drives, d)
			}
		}
		s.st.Drives = drives
		if s.st.MasterNodeID == node.NodeID {
			s.st.MasterNodeID = 0
		}
		node.Pending = true
		node.NodeID = 0
		node.AssociatedMasterServiceID = 0
		node.PendingNodeID = s.st.nextID(idPendingNode)
	}
	if s.st.MasterNodeID == 0 {
		if active := s.st.activeNodes(); len(active) > 0 {
			s.st.MasterNodeID = active[0].NodeID
		}
	}
	s.st.pickEnsemble()
	return nil, nil
}

func listDrives(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	drives := []sfclusterops.Drive{}
	for _, d := range s.st.Drives {
		drives = append(drives, *d)
	}
	return map[string]any{"drives": drives}, nil
}

func (s *Simulator) completedAsync(result map[string]any) int {
	handle := s.st.nextID(idAsync)
	s.st.AsyncResults[handle] = &sfclusterops.AsyncResult{
		Status: sfclusterops.AsyncStatusComplete,
		Result: result,
	}
	return handle
}

// addDrives activates available drives and starts a bin sync, visible as a
// volumesDegraded fault for the next few fault listings.
func addDrives(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Drives *[]sfclusterops.NewDrive `json:"drives"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Drives == nil {
		return nil, missingParam("drives")
	}
	var toAdd []*sfclusterops.Drive
	for _, nd := range *p.Drives {
		drive := s.st.driveByID(nd.DriveID)
		if drive == nil {
			return nil, sferrors.NewAPIError(sferrors.DriveIDDoesNotExist,
				fmt.Sprintf("DriveID %d does not exist.", nd.DriveID))
		}
		if drive.Status != sfclusterops.DriveStatusAvailable {
			return nil, invalidParam("DriveID %d is %s, not available.", drive.DriveID, drive.Status)
		}
		if s.st.nodeByID(drive.NodeID) == nil {
			return nil, invalidParam("DriveID %d belongs to a node that is not active.", drive.DriveID)
		}
		if nd.Type != "" && nd.Type != drive.Type && nd.Type != "automatic" {
			return nil, sferrors.NewAPIError(sferrors.UnrecognizedEnumString,
				fmt.Sprintf("Invalid drive type %s.", nd.Type))
		}
		toAdd = append(toAdd, drive)
	}
	for _, drive := range toAdd {
		drive.Status = sfclusterops.DriveStatusActive
	}
	if len(toAdd) > 0 {
		s.startSync()
	}
	return map[string]any{"asyncHandle": s.completedAsync(map[string]any{"drives": len(toAdd)})}, nil
}

func (s *Simulator) startSync() {
	s.st.SyncPollsLeft = syncFaultPolls
	for _, f := range s.st.Faults {
		if f.Code == sfclusterops.FaultCodeVolumesDegraded && !f.Resolved {
			return
		}
	}
	fault := s.st.addFault(sfclusterops.FaultCodeVolumesDegraded, sfclusterops.FaultSeverityError, "service", s.now())
	fault.Details = "Volumes are degraded while bins sync onto new drives."
}

// advanceSync moves a running sync one step; it is called on every fault
// listing
func (s *Simulator) advanceSync() {
	if s.st.SyncPollsLeft == 0 {
		return
	}
	s.st.SyncPollsLeft--
	if s.st.SyncPollsLeft > 0 {
		return
	}
	resolvedAt := util.TimestampToStr(s.now().Unix())
	for _, f := range s.st.Faults {
		if f.Code == sfclusterops.FaultCodeVolumesDegraded && !f.Resolved {
			f.Resolved = true
			f.ResolvedDate = resolvedAt
		}
	}
}

func removeDrives(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Drives *[]int `json:"drives"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Drives == nil {
		return nil, missingParam("drives")
	}
	var toRemove []*sfclusterops.Drive
	for _, driveID := range *p.Drives {
		drive := s.st.driveByID(driveID)
		if drive == nil {
			return nil, sferrors.NewAPIError(sferrors.DriveIDDoesNotExist,
				fmt.Sprintf("DriveID %d does not exist.", driveID))
		}
		toRemove = append(toRemove, drive)
	}
	for _, drive := range toRemove {
		drive.Status = sfclusterops.DriveStatusAvailable
	}
	if len(toRemove) > 0 {
		s.startSync()
	}
	return map[string]any{"asyncHandle": s.completedAsync(map[string]any{"drives": len(toRemove)})}, nil
}

func listClusterFaults(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		FaultTypes string `json:"faultTypes"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.FaultTypes == "" {
		p.FaultTypes = sfclusterops.FaultTypesCurrent
	}
	if !isFaultTypes(p.FaultTypes) {
		return nil, sferrors.NewAPIError(sferrors.UnrecognizedEnumString,
			fmt.Sprintf("Unrecognized faultTypes %s.", p.FaultTypes))
	}
	s.advanceSync()
	faults := []sfclusterops.Fault{}
	for _, f := range s.st.Faults {
		if p.FaultTypes == sfclusterops.FaultTypesAll ||
			(p.FaultTypes == sfclusterops.FaultTypesCurrent && !f.Resolved) ||
			(p.FaultTypes == sfclusterops.FaultTypesResolved && f.Resolved) {
			faults = append(faults, *f)
		}
	}
	return map[string]any{"faults": faults}, nil
}

func isFaultTypes(faultTypes string) bool {
	switch faultTypes {
	case sfclusterops.FaultTypesCurrent, sfclusterops.FaultTypesResolved, sfclusterops.FaultTypesAll:
		return true
	}
	return false
}

// clearClusterFaults drops resolved faults; current faults cannot be cleared
func clearClusterFaults(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		FaultTypes string `json:"faultTypes"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.FaultTypes == "" {
		p.FaultTypes = sfclusterops.FaultTypesResolved
	}
	if p.FaultTypes == sfclusterops.FaultTypesCurrent || !isFaultTypes(p.FaultTypes) {
		return nil, sferrors.NewAPIError(sferrors.UnrecognizedEnumString,
			fmt.Sprintf("Unrecognized faultTypes %s.", p.FaultTypes))
	}
	faults := s.st.Faults[:0]
	for _, f := range s.st.Faults {
		if !f.Resolved {
			faults = append(faults, f)
		}
	}
	s.st.Faults = faults
	return nil, nil
}

func getAsyncResult(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		AsyncHandle *int `json:"asyncHandle"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AsyncHandle == nil {
		return nil, missingParam("asyncHandle")
	}
	res, ok := s.st.AsyncResults[*p.AsyncHandle]
	if !ok {
		return nil, invalidParam("Async handle %d does not exist.", *p.AsyncHandle)
	}
	return res, nil
}

func getSoftwareUpgradeStatus(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	status := s.st.Upgrade
	status.CurrentVersion = s.st.Version
	return status, nil
}

func resumeClusterSoftwareUpgrade(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	if s.st.Upgrade.State != upgradePaused {
		return nil, sferrors.NewAPIError(sferrors.SoftwareInstallNotInProgress,
			"There is no software upgrade in progress.")
	}
	s.st.Version = s.st.Upgrade.PendingVersion
	for _, n := range s.st.activeNodes() {
		n.SoftwareVersion = s.st.Version
		n.Packages["solidfire-element"] = s.st.Version
	}
	s.st.Upgrade = sfclusterops.SoftwareUpgradeStatus{State: upgradeComplete, CurrentVersion: s.st.Version}
	return nil, nil
}
