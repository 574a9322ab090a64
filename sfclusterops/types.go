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

// Package sfclusterops talks to a cluster and its nodes: the JSON-RPC
// transport, the cluster and node clients, and IPMI power control.
package sfclusterops

// The types below mirror the JSON objects of the appliance API. Field names
// follow the wire names.

type ClusterInfo struct {
	UniqueID              string   `json:"uniqueID"`
	Name                  string   `json:"name"`
	MVIP                  string   `json:"mvip"`
	SVIP                  string   `json:"svip"`
	Ensemble              []string `json:"ensemble"`
	RepCount              int      `json:"repCount"`
	EncryptionAtRestState string   `json:"encryptionAtRestState,omitempty"`
}

type ClusterAdmin struct {
	ClusterAdminID int      `json:"clusterAdminID"`
	Username       string   `json:"username"`
	Access         []string `json:"access"`
	AuthMethod     string   `json:"authMethod"`
}

type ClusterVersionInfo struct {
	ClusterAPIVersion string `json:"clusterAPIVersion"`
	ClusterVersion    string `json:"clusterVersion"`
}

type APIInfo struct {
	CurrentVersion    float64   `json:"currentVersion"`
	SupportedVersions []float64 `json:"supportedVersions"`
}

type PlatformInfo struct {
	NodeType     string `json:"nodeType"`
	ChassisType  string `json:"chassisType"`
	CPUModel     string `json:"cpuModel"`
	NodeMemoryGB int    `json:"nodeMemoryGB"`
}

// Node is an active cluster member
type Node struct {
	NodeID                    int          `json:"nodeID"`
	PendingNodeID             int          `json:"pendingNodeID,omitempty"`
	Name                      string       `json:"name"`
	MIP                       string       `json:"mip"`
	CIP                       string       `json:"cip"`
	SIP                       string       `json:"sip"`
	PlatformInfo              PlatformInfo `json:"platformInfo"`
	SoftwareVersion           string       `json:"softwareVersion"`
	UUID                      string       `json:"uuid"`
	AssociatedMasterServiceID int          `json:"associatedMasterServiceID"`
}

// PendingNode has been configured but not yet added to the cluster
type PendingNode struct {
	PendingNodeID   int          `json:"pendingNodeID"`
	Name            string       `json:"name"`
	MIP             string       `json:"mip"`
	CIP             string       `json:"cip"`
	SIP             string       `json:"sip"`
	PlatformInfo    PlatformInfo `json:"platformInfo"`
	SoftwareVersion string       `json:"softwareVersion"`
	UUID            string       `json:"uuid"`
}

// AddedNode is one entry of the AddNodes result
type AddedNode struct {
	NodeID        int `json:"nodeID"`
	PendingNodeID int `json:"pendingNodeID"`
}

const (
	DriveTypeSlice = "slice"
	DriveTypeBlock = "block"

	DriveStatusActive    = "active"
	DriveStatusAvailable = "available"
	DriveStatusFailed    = "failed"
	DriveStatusRemoving  = "removing"
)

type Drive struct {
	DriveID  int    `json:"driveID"`
	NodeID   int    `json:"nodeID"`
	Capacity int64  `json:"capacity"`
	Slot     int    `json:"slot"`
	Serial   string `json:"serial"`
	Type     string `json:"type"`
	Status   string `json:"status"`
}

// NewDrive is one entry of the AddDrives request
type NewDrive struct {
	DriveID int    `json:"driveID"`
	Type    string `json:"type,omitempty"`
}

type Account struct {
	AccountID       int    `json:"accountID"`
	Username        string `json:"username"`
	Status          string `json:"status"`
	InitiatorSecret string `json:"initiatorSecret"`
	TargetSecret    string `json:"targetSecret"`
	Volumes         []int  `json:"volumes"`
}

const (
	AccessReadWrite         = "readWrite"
	AccessReadOnly          = "readOnly"
	AccessLocked            = "locked"
	AccessReplicationTarget = "replicationTarget"

	VolumeStatusActive  = "active"
	VolumeStatusDeleted = "deleted"
	VolumeStatusPurged  = "purged"

	// VolumeSizeMultiple is the granularity of volume sizes in bytes
	VolumeSizeMultiple = 4096
)

// VolumeAccessList are the valid volume access modes
var VolumeAccessList = []string{AccessReadWrite, AccessReadOnly, AccessLocked, AccessReplicationTarget}

type QoS struct {
	MinIOPS   int `json:"minIOPS"`
	MaxIOPS   int `json:"maxIOPS"`
	BurstIOPS int `json:"burstIOPS"`
}

type VolumePair struct {
	ClusterPairID    int    `json:"clusterPairID"`
	RemoteVolumeID   int    `json:"remoteVolumeID"`
	RemoteVolumeName string `json:"remoteVolumeName"`
	RemoteSliceID    int    `json:"remoteSliceID"`
	VolumePairUUID   string `json:"volumePairUUID"`
}

type Volume struct {
	VolumeID           int          `json:"volumeID"`
	AccountID          int          `json:"accountID"`
	Name               string       `json:"name"`
	TotalSize          int64        `json:"totalSize"`
	Access             string       `json:"access"`
	Enable512e         bool         `json:"enable512e"`
	QoS                QoS          `json:"qos"`
	VolumePairs        []VolumePair `json:"volumePairs"`
	Status             string       `json:"status"`
	DeleteTime         string       `json:"deleteTime"`
	PurgeTime          string       `json:"purgeTime"`
	CreateTime         string       `json:"createTime"`
	VolumeAccessGroups []int        `json:"volumeAccessGroups"`
}

type VolumeAccessGroup struct {
	VolumeAccessGroupID int      `json:"volumeAccessGroupID"`
	Name                string   `json:"name"`
	Initiators          []string `json:"initiators"`
	Volumes             []int    `json:"volumes"`
}

type LunAssignment struct {
	VolumeID int `json:"volumeID"`
	Lun      int `json:"lun"`
}

type VolumeAccessGroupLunAssignments struct {
	VolumeAccessGroupID int             `json:"volumeAccessGroupID"`
	LunAssignments      []LunAssignment `json:"lunAssignments"`
}

type Initiator struct {
	InitiatorID         int    `json:"initiatorID"`
	InitiatorName       string `json:"initiatorName"`
	VolumeAccessGroupID int    `json:"volumeAccessGroupID,omitempty"`
}

const (
	FaultSeverityWarning  = "warning"
	FaultSeverityError    = "error"
	FaultSeverityCritical = "critical"

	FaultCodeVolumesDegraded = "volumesDegraded"
)

type Fault struct {
	ClusterFaultID int    `json:"clusterFaultID"`
	Code           string `json:"code"`
	Severity       string `json:"severity"`
	Type           string `json:"type"`
	Details        string `json:"details"`
	Resolved       bool   `json:"resolved"`
	Date           string `json:"date"`
	ResolvedDate   string `json:"resolvedDate"`
	NodeID         int    `json:"nodeID"`
	DriveID        int    `json:"driveID"`
	ServiceID      int    `json:"serviceID"`
}

// AsyncResult is the state of a long-running operation such as a clone
type AsyncResult struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  map[string]any `json:"error,omitempty"`
}

const (
	AsyncStatusRunning  = "running"
	AsyncStatusComplete = "complete"
)

type CloneVolumeResult struct {
	VolumeID    int `json:"volumeID"`
	CloneID     int `json:"cloneID"`
	AsyncHandle int `json:"asyncHandle"`
}

type SoftwareUpgradeStatus struct {
	State          string `json:"state"`
	CurrentVersion string `json:"currentVersion"`
	PendingVersion string `json:"pendingVersion"`
}

// BinReport is one entry of /reports/bins.json
type BinReport struct {
	BinID    int          `json:"binID"`
	Services []BinService `json:"services"`
}

type BinService struct {
	ServiceID int    `json:"serviceID"`
	Status    string `json:"status"`
}

// BinServiceActive is the status of a bin service that is fully synced
const BinServiceActive = "bsActive"

// SliceReport is one entry of /reports/slices.json
type SliceReport struct {
	SliceID   int   `json:"sliceID"`
	Primary   int   `json:"primary"`
	Secondary []int `json:"secondary"`
}

// Node API types

type DriveConfig struct {
	NumTotalExpected int         `json:"numTotalExpected"`
	NumTotalActual   int         `json:"numTotalActual"`
	NumSliceExpected int         `json:"numSliceExpected"`
	NumBlockExpected int         `json:"numBlockExpected"`
	Drives           []NodeDrive `json:"drives"`
}

type NodeDrive struct {
	Slot   int    `json:"slot"`
	Type   string `json:"type"`
	Dev    string `json:"dev"`
	Serial string `json:"serial"`
	Size   int64  `json:"size"`
}

type MountedFileSystem struct {
	Device     string `json:"device"`
	MountPoint string `json:"mountPoint"`
	Type       string `json:"type"`
}

type NodeVersionInfo struct {
	SoftwareVersion string            `json:"softwareVersion"`
	Packages        map[string]string `json:"packages"`
}

type SystemStatus struct {
	RebootRequired bool   `json:"rebootRequired"`
	State          string `json:"state"`
}
