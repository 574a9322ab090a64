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
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
)

// nodeState is one simulated node, pending or active
type nodeState struct {
	sfclusterops.Node
	Pending   bool   `json:"pending"`
	IPMIIP    string `json:"ipmiIP"`
	PoweredOn bool   `json:"poweredOn"`
	NumDrives int    `json:"numDrives"`
	// DriveSerials are generated once so re-adding a node gives it the same
	// physical drives
	DriveSerials      []string          `json:"driveSerials"`
	StartupFlags      map[string]string `json:"startupFlags"`
	Config            map[string]any    `json:"config"`
	Packages          map[string]string `json:"packages"`
	AvailablePackages map[string]string `json:"availablePackages"`
	Links             map[string]string `json:"links"`
	RebootRequired    bool              `json:"rebootRequired"`
}

type groupState struct {
	sfclusterops.VolumeAccessGroup
	// Luns maps volume ID to LUN
	Luns map[int]int `json:"luns"`
}

type clusterState struct {
	Info              sfclusterops.ClusterInfo           `json:"clusterInfo"`
	Version           string                             `json:"version"`
	HighestAPIVersion float64                            `json:"highestAPIVersion"`
	RemovedAPIs       []float64                          `json:"removedAPIVersions"`
	Admins            []sfclusterops.ClusterAdmin        `json:"clusterAdmins"`
	MasterNodeID      int                                `json:"masterNodeID"`
	Nodes             []*nodeState                       `json:"nodes"`
	Drives            []*sfclusterops.Drive              `json:"drives"`
	Accounts          []*sfclusterops.Account            `json:"accounts"`
	Volumes           []*sfclusterops.Volume             `json:"volumes"`
	Groups            []*groupState                      `json:"volumeAccessGroups"`
	Initiators        []*sfclusterops.Initiator          `json:"initiators"`
	Faults            []*sfclusterops.Fault              `json:"faults"`
	AsyncResults      map[int]*sfclusterops.AsyncResult  `json:"asyncResults"`
	Upgrade           sfclusterops.SoftwareUpgradeStatus `json:"softwareUpgrade"`
	SyncPollsLeft     int                                `json:"syncPollsLeft"`
	NextIDs           map[string]int                     `json:"nextIDs"`
}

const (
	idAccount     = "account"
	idVolume      = "volume"
	idGroup       = "group"
	idDrive       = "drive"
	idFault       = "fault"
	idAsync       = "async"
	idInitiator   = "initiator"
	idService     = "service"
	idPendingNode = "pendingNode"
)

// firstAddedNodeID is the smallest ID given to a node added to the cluster
const firstAddedNodeID = 10000

// number of ListClusterFaults calls a sync started by AddDrives lasts
const syncFaultPolls = 2

const gib = int64(1) << 30

var healthyFaultCodes = []string{
	"clusterIOPSAreOverProvisioned",
	"disconnectedClusterPair",
	"ntpTimeNotInSync",
	"unbalancedMixedNodes",
}

var unhealthyFaultCodes = []string{
	"volumesDegraded",
	"binSyncUnhealthy",
	"sliceSyncUnhealthy",
}

var nodePackages = map[string]string{
	"solidfire-element":   "9.0.0.1000",
	"solidfire-san":       "9.0.0.1000",
	"solidfire-telemetry": "1.2.0",
}

var nodeTypes = []string{"SF3010", "SF6010", "SF9010", "SF9605"}

func (st *clusterState) nextID(kind string) int {
	st.NextIDs[kind]++
	return st.NextIDs[kind]
}

// generate builds the initial state from the seeded generator
func generate(cfg *Config, rng *rand.Rand, now time.Time) *clusterState {
	st := &clusterState{
		Info: sfclusterops.ClusterInfo{
			UniqueID: fmt.Sprintf("%04x", rng.Intn(0xffff)),
			Name:     fmt.Sprintf("sim-cluster-%d", cfg.Seed),
			MVIP:     cfg.MVIP,
			SVIP:     cfg.SVIP,
			RepCount: 2,
		},
		Version:           cfg.ClusterVersion,
		HighestAPIVersion: cfg.APIVersion,
		Admins: []sfclusterops.ClusterAdmin{{
			ClusterAdminID: 1,
			Username:       cfg.Username,
			Access:         []string{"administrator"},
			AuthMethod:     "Cluster",
		}},
		AsyncResults: map[int]*sfclusterops.AsyncResult{},
		NextIDs:      map[string]int{idService: 100},
		Upgrade: sfclusterops.SoftwareUpgradeStatus{
			CurrentVersion: cfg.ClusterVersion,
		},
	}
	if cfg.PendingUpgradeVersion != "" {
		st.Upgrade.State = upgradePaused
		st.Upgrade.PendingVersion = cfg.PendingUpgradeVersion
	}

	specs := cfg.Nodes
	if len(specs) == 0 {
		specs = defaultNodeSpecs(cfg)
	}
	for i := range specs {
		st.addNodeFromSpec(&specs[i], cfg, rng)
	}
	st.pickEnsemble()

	st.generateAccounts(cfg, rng, now)
	st.generateGroups(cfg, rng)
	st.generateFaults(cfg, rng, now)
	return st
}

func defaultNodeSpecs(cfg *Config) []NodeSpec {
	var specs []NodeSpec
	for i := 1; i <= cfg.ActiveNodes; i++ {
		specs = append(specs, NodeSpec{
			MIP:    fmt.Sprintf("10.0.0.%d", i),
			IPMIIP: fmt.Sprintf("10.1.0.%d", i),
		})
	}
	for i := 1; i <= cfg.PendingNodes; i++ {
		specs = append(specs, NodeSpec{
			MIP:     fmt.Sprintf("10.0.1.%d", i),
			IPMIIP:  fmt.Sprintf("10.1.1.%d", 100+i),
			Pending: true,
		})
	}
	return specs
}

func (st *clusterState) addNodeFromSpec(spec *NodeSpec, cfg *Config, rng *rand.Rand) {
	ordinal := len(st.Nodes) + 1
	nodeType := spec.NodeType
	if nodeType == "" {
		nodeType = nodeTypes[rng.Intn(len(nodeTypes))]
	}
	numDrives := spec.Drives
	if numDrives <= 0 {
		numDrives = cfg.DrivesPerNode
	}
	version := spec.SoftwareVersion
	if version == "" {
		version = cfg.ClusterVersion
	}
	ipmiIP := spec.IPMIIP
	if ipmiIP == "" {
		ipmiIP = fmt.Sprintf("10.1.0.%d", 100+ordinal)
	}
	nodeUUID, _ := uuid.NewRandomFromReader(rng)

	node := &nodeState{
		Node: sfclusterops.Node{
			Name: fmt.Sprintf("node%d", ordinal),
			MIP:  spec.MIP,
			CIP:  fmt.Sprintf("10.10.0.%d", ordinal),
			SIP:  fmt.Sprintf("10.20.0.%d", ordinal),
			PlatformInfo: sfclusterops.PlatformInfo{
				NodeType:     nodeType,
				ChassisType:  "R620",
				CPUModel:     "Intel(R) Xeon(R) CPU E5-2640 0 @ 2.50GHz",
				NodeMemoryGB: 72,
			},
			SoftwareVersion: version,
			UUID:            nodeUUID.String(),
		},
		Pending:      spec.Pending,
		IPMIIP:       ipmiIP,
		PoweredOn:    true,
		NumDrives:    numDrives,
		StartupFlags: map[string]string{"sf_auto_rtfi": "true", "sf_secure_erase": "false"},
		Config: map[string]any{
			"cluster": map[string]any{"name": st.Info.Name, "role": "Storage"},
			"network": map[string]any{"mip": spec.MIP},
		},
		Packages:          map[string]string{"solidfire-element": version},
		AvailablePackages: nodePackages,
		Links:             map[string]string{"/sf/etc/current": "/sf/packages/solidfire-element-" + version},
	}
	for slot := 0; slot < numDrives; slot++ {
		node.DriveSerials = append(node.DriveSerials, fmt.Sprintf("SF%08d", rng.Intn(100000000)))
	}

	if spec.Pending {
		node.PendingNodeID = spec.PendingNodeID
		if node.PendingNodeID == 0 {
			node.PendingNodeID = st.nextID(idPendingNode)
		} else if node.PendingNodeID > st.NextIDs[idPendingNode] {
			st.NextIDs[idPendingNode] = node.PendingNodeID
		}
	} else {
		node.NodeID = spec.NodeID
		if node.NodeID == 0 {
			node.NodeID = st.maxNodeID() + 1
		}
		node.AssociatedMasterServiceID = st.nextID(idService)
	}
	st.Nodes = append(st.Nodes, node)
	if !spec.Pending {
		st.materializeDrives(node, sfclusterops.DriveStatusActive)
		if st.MasterNodeID == 0 {
			st.MasterNodeID = node.NodeID
		}
	}
}

func (st *clusterState) maxNodeID() int {
	maxID := 0
	for _, n := range st.Nodes {
		if !n.Pending && n.NodeID > maxID {
			maxID = n.NodeID
		}
	}
	return maxID
}

// newNodeID is the ID of a node being added to the cluster
func (st *clusterState) newNodeID() int {
	return max(firstAddedNodeID, st.maxNodeID()+1)
}

// materializeDrives creates the cluster drive records of a node
func (st *clusterState) materializeDrives(node *nodeState, status string) {
	for slot := 0; slot < node.NumDrives; slot++ {
		driveType := sfclusterops.DriveTypeBlock
		capacity := 300 * gib
		if slot == 0 {
			driveType = sfclusterops.DriveTypeSlice
			capacity = 100 * gib
		}
		st.Drives = append(st.Drives, &sfclusterops.Drive{
			DriveID:  st.nextID(idDrive),
			NodeID:   node.NodeID,
			Capacity: capacity,
			Slot:     slot,
			Serial:   node.DriveSerials[slot],
			Type:     driveType,
			Status:   status,
		})
	}
}

// pickEnsemble uses the CIPs of the first three or five active nodes
func (st *clusterState) pickEnsemble() {
	var ensemble []string
	for _, n := range st.activeNodes() {
		ensemble = append(ensemble, n.CIP)
	}
	switch {
	case len(ensemble) >= 5:
		ensemble = ensemble[:5]
	case len(ensemble) >= 3:
		ensemble = ensemble[:3]
	}
	st.Info.Ensemble = ensemble
}

func (st *clusterState) generateAccounts(cfg *Config, rng *rand.Rand, now time.Time) {
	for i := 1; i <= cfg.Accounts; i++ {
		account := &sfclusterops.Account{
			AccountID:       st.nextID(idAccount),
			Username:        fmt.Sprintf("account%d", i),
			Status:          "active",
			InitiatorSecret: randomSecret(rng),
			TargetSecret:    randomSecret(rng),
			Volumes:         []int{},
		}
		st.Accounts = append(st.Accounts, account)
		for j := 1; j <= cfg.VolumesPerAccount; j++ {
			size := sfclusterops.RoundUpVolumeSize(int64(1+rng.Intn(100)) * gib)
			st.createVolume(account, fmt.Sprintf("%s-vol%d", account.Username, j), size, now)
		}
	}
	for i := 0; i < cfg.DeletedVolumes && len(st.Accounts) > 0; i++ {
		account := st.Accounts[rng.Intn(len(st.Accounts))]
		vol := st.createVolume(account, fmt.Sprintf("deleted-vol%d", i+1), 10*gib, now)
		vol.Status = sfclusterops.VolumeStatusDeleted
		vol.DeleteTime = now.Format(time.RFC3339)
		vol.PurgeTime = now.Add(8 * time.Hour).Format(time.RFC3339)
	}
}

func (st *clusterState) generateGroups(cfg *Config, rng *rand.Rand) {
	active := st.volumesWithStatus(sfclusterops.VolumeStatusActive)
	for i := 1; i <= cfg.AccessGroups; i++ {
		var volumeIDs []int
		for _, v := range active {
			if rng.Intn(2) == 0 {
				volumeIDs = append(volumeIDs, v.VolumeID)
			}
		}
		initiators := []string{
			fmt.Sprintf("iqn.1998-01.com.vmware:host%d-%04x", i, rng.Intn(0xffff)),
			fmt.Sprintf("iqn.1998-01.com.vmware:host%d-%04x", i, rng.Intn(0xffff)),
		}
		st.createGroup(fmt.Sprintf("group%d", i), initiators, volumeIDs)
	}
}

func (st *clusterState) generateFaults(cfg *Config, rng *rand.Rand, now time.Time) {
	for i := 0; i < cfg.ResolvedFaults; i++ {
		code := healthyFaultCodes[rng.Intn(len(healthyFaultCodes))]
		date := now.Add(-time.Duration(1+rng.Intn(72)) * time.Hour)
		fault := st.addFault(code, sfclusterops.FaultSeverityWarning, "cluster", date)
		fault.Resolved = true
		fault.ResolvedDate = util.TimestampToStr(date.Add(time.Duration(1+rng.Intn(60)) * time.Minute).Unix())
	}
	for i := 0; i < cfg.UnhealthyFaults; i++ {
		code := unhealthyFaultCodes[rng.Intn(len(unhealthyFaultCodes))]
		st.addFault(code, sfclusterops.FaultSeverityError, "service", now)
	}
}

func (st *clusterState) addFault(code, severity, faultType string, date time.Time) *sfclusterops.Fault {
	fault := &sfclusterops.Fault{
		ClusterFaultID: st.nextID(idFault),
		Code:           code,
		Severity:       severity,
		Type:           faultType,
		Details:        "Simulated " + code + " fault.",
		Date:           util.TimestampToStr(date.Unix()),
	}
	st.Faults = append(st.Faults, fault)
	return fault
}

const secretChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomSecret is 12 to 16 characters long
func randomSecret(rng *rand.Rand) string {
	n := minSecretLen + rng.Intn(maxSecretLen-minSecretLen+1)
	b := make([]byte, n)
	for i := range b {
		b[i] = secretChars[rng.Intn(len(secretChars))]
	}
	return string(b)
}

// lookups

func (st *clusterState) activeNodes() []*nodeState {
	var res []*nodeState
	for _, n := range st.Nodes {
		if !n.Pending {
			res = append(res, n)
		}
	}
	return res
}

func (st *clusterState) pendingNodes() []*nodeState {
	var res []*nodeState
	for _, n := range st.Nodes {
		if n.Pending {
			res = append(res, n)
		}
	}
	return res
}

func (st *clusterState) nodeByID(nodeID int) *nodeState {
	for _, n := range st.Nodes {
		if !n.Pending && n.NodeID == nodeID {
			return n
		}
	}
	return nil
}

func (st *clusterState) pendingNodeByID(pendingID int) *nodeState {
	for _, n := range st.Nodes {
		if n.Pending && n.PendingNodeID == pendingID {
			return n
		}
	}
	return nil
}

func (st *clusterState) nodeByMIP(mip string) *nodeState {
	for _, n := range st.Nodes {
		if n.MIP == mip {
			return n
		}
	}
	return nil
}

func (st *clusterState) nodeByIPMIIP(ip string) *nodeState {
	for _, n := range st.Nodes {
		if n.IPMIIP == ip {
			return n
		}
	}
	return nil
}

func (st *clusterState) driveByID(driveID int) *sfclusterops.Drive {
	for _, d := range st.Drives {
		if d.DriveID == driveID {
			return d
		}
	}
	return nil
}

func (st *clusterState) accountByID(accountID int) *sfclusterops.Account {
	for _, a := range st.Accounts {
		if a.AccountID == accountID {
			return a
		}
	}
	return nil
}

func (st *clusterState) accountByName(username string) *sfclusterops.Account {
	for _, a := range st.Accounts {
		if a.Username == username {
			return a
		}
	}
	return nil
}

func (st *clusterState) volumeByID(volumeID int) *sfclusterops.Volume {
	for _, v := range st.Volumes {
		if v.VolumeID == volumeID {
			return v
		}
	}
	return nil
}

func (st *clusterState) volumesWithStatus(status string) []*sfclusterops.Volume {
	var res []*sfclusterops.Volume
	for _, v := range st.Volumes {
		if v.Status == status {
			res = append(res, v)
		}
	}
	return res
}

func (st *clusterState) groupByID(groupID int) *groupState {
	for _, g := range st.Groups {
		if g.VolumeAccessGroupID == groupID {
			return g
		}
	}
	return nil
}

func (st *clusterState) initiatorByName(name string) *sfclusterops.Initiator {
	for _, i := range st.Initiators {
		if i.InitiatorName == name {
			return i
		}
	}
	return nil
}
