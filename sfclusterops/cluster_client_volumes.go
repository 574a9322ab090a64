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

import "context"

// Accounts

func (c *ClusterClient) AddAccount(ctx context.Context, username, initiatorSecret, targetSecret string) (int, error) {
	params := map[string]any{"username": username}
	if initiatorSecret != "" {
		params["initiatorSecret"] = initiatorSecret
	}
	if targetSecret != "" {
		params["targetSecret"] = targetSecret
	}
	var res struct {
		AccountID int `json:"accountID"`
	}
	err := c.Call(ctx, "AddAccount", params, &res)
	return res.AccountID, err
}

func (c *ClusterClient) GetAccountByID(ctx context.Context, accountID int) (Account, error) {
	var res struct {
		Account Account `json:"account"`
	}
	err := c.Call(ctx, "GetAccountByID", map[string]any{"accountID": accountID}, &res)
	return res.Account, err
}

func (c *ClusterClient) GetAccountByName(ctx context.Context, username string) (Account, error) {
	var res struct {
		Account Account `json:"account"`
	}
	err := c.Call(ctx, "GetAccountByName", map[string]any{"username": username}, &res)
	return res.Account, err
}

func (c *ClusterClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var res struct {
		Accounts []Account `json:"accounts"`
	}
	err := c.Call(ctx, "ListAccounts", nil, &res)
	return res.Accounts, err
}

// AccountModification lists the account attributes to change; unset fields
// are left alone.
type AccountModification struct {
	Username        *string
	InitiatorSecret *string
	TargetSecret    *string
}

func (c *ClusterClient) ModifyAccount(ctx context.Context, accountID int, mod AccountModification) error {
	params := map[string]any{"accountID": accountID}
	if mod.Username != nil {
		params["username"] = *mod.Username
	}
	if mod.InitiatorSecret != nil {
		params["initiatorSecret"] = *mod.InitiatorSecret
	}
	if mod.TargetSecret != nil {
		params["targetSecret"] = *mod.TargetSecret
	}
	return c.Call(ctx, "ModifyAccount", params, nil)
}

func (c *ClusterClient) RemoveAccount(ctx context.Context, accountID int) error {
	return c.Call(ctx, "RemoveAccount", map[string]any{"accountID": accountID}, nil)
}

// Volumes

// VolumeSpec describes a volume to create
type VolumeSpec struct {
	Name       string
	AccountID  int
	TotalSize  int64
	Enable512e bool
	Access     string
	QoS        *QoS
}

func (c *ClusterClient) CreateVolume(ctx context.Context, spec VolumeSpec) (int, error) {
	params := map[string]any{
		"name":       spec.Name,
		"accountID":  spec.AccountID,
		"totalSize":  spec.TotalSize,
		"enable512e": spec.Enable512e,
	}
	if spec.Access != "" {
		params["access"] = spec.Access
	}
	if spec.QoS != nil {
		params["qos"] = spec.QoS
	}
	var res struct {
		VolumeID int `json:"volumeID"`
	}
	err := c.Call(ctx, "CreateVolume", params, &res)
	return res.VolumeID, err
}

func (c *ClusterClient) CloneVolume(ctx context.Context, volumeID int, name string, newAccountID int) (CloneVolumeResult, error) {
	params := map[string]any{"volumeID": volumeID, "name": name}
	if newAccountID > 0 {
		params["newAccountID"] = newAccountID
	}
	var res CloneVolumeResult
	err := c.Call(ctx, "CloneVolume", params, &res)
	return res, err
}

func (c *ClusterClient) ListActiveVolumes(ctx context.Context) ([]Volume, error) {
	var res struct {
		Volumes []Volume `json:"volumes"`
	}
	err := c.Call(ctx, "ListActiveVolumes", nil, &res)
	return res.Volumes, err
}

func (c *ClusterClient) ListDeletedVolumes(ctx context.Context) ([]Volume, error) {
	var res struct {
		Volumes []Volume `json:"volumes"`
	}
	err := c.Call(ctx, "ListDeletedVolumes", nil, &res)
	return res.Volumes, err
}

func (c *ClusterClient) ListVolumesForAccount(ctx context.Context, accountID int) ([]Volume, error) {
	var res struct {
		Volumes []Volume `json:"volumes"`
	}
	err := c.Call(ctx, "ListVolumesForAccount", map[string]any{"accountID": accountID}, &res)
	return res.Volumes, err
}

// VolumeModification lists the volume attributes to change; unset fields
// are left alone.
type VolumeModification struct {
	AccountID *int
	TotalSize *int64
	Access    *string
	QoS       *QoS
}

func (c *ClusterClient) ModifyVolume(ctx context.Context, volumeID int, mod VolumeModification) error {
	params := map[string]any{"volumeID": volumeID}
	if mod.AccountID != nil {
		params["accountID"] = *mod.AccountID
	}
	if mod.TotalSize != nil {
		params["totalSize"] = *mod.TotalSize
	}
	if mod.Access != nil {
		params["access"] = *mod.Access
	}
	if mod.QoS != nil {
		params["qos"] = mod.QoS
	}
	return c.Call(ctx, "ModifyVolume", params, nil)
}

func (c *ClusterClient) DeleteVolume(ctx context.Context, volumeID int) error {
	return c.Call(ctx, "DeleteVolume", map[string]any{"volumeID": volumeID}, nil)
}

func (c *ClusterClient) RestoreDeletedVolume(ctx context.Context, volumeID int) error {
	return c.Call(ctx, "RestoreDeletedVolume", map[string]any{"volumeID": volumeID}, nil)
}

func (c *ClusterClient) PurgeDeletedVolume(ctx context.Context, volumeID int) error {
	return c.Call(ctx, "PurgeDeletedVolume", map[string]any{"volumeID": volumeID}, nil)
}

// Volume pairing

func (c *ClusterClient) StartVolumePairing(ctx context.Context, volumeID int, mode string) (string, error) {
	params := map[string]any{"volumeID": volumeID}
	if mode != "" {
		params["mode"] = mode
	}
	var res struct {
		VolumePairingKey string `json:"volumePairingKey"`
	}
	err := c.Call(ctx, "StartVolumePairing", params, &res)
	return res.VolumePairingKey, err
}

func (c *ClusterClient) RemoveVolumePair(ctx context.Context, volumeID int) error {
	return c.Call(ctx, "RemoveVolumePair", map[string]any{"volumeID": volumeID}, nil)
}

func (c *ClusterClient) ListActivePairedVolumes(ctx context.Context) ([]Volume, error) {
	var res struct {
		Volumes []Volume `json:"volumes"`
	}
	err := c.Call(ctx, "ListActivePairedVolumes", nil, &res)
	return res.Volumes, err
}

// Volume access groups

func (c *ClusterClient) CreateVolumeAccessGroup(ctx context.Context, name string, initiators []string, volumeIDs []int) (int, error) {
	params := map[string]any{"name": name}
	if initiators != nil {
		params["initiators"] = initiators
	}
	if volumeIDs != nil {
		params["volumes"] = volumeIDs
	}
	var res struct {
		VolumeAccessGroupID int `json:"volumeAccessGroupID"`
	}
	err := c.Call(ctx, "CreateVolumeAccessGroup", params, &res)
	return res.VolumeAccessGroupID, err
}

// ModifyVolumeAccessGroup changes a group. A nil initiators or volumeIDs
// slice leaves that membership unchanged; an empty one clears it.
func (c *ClusterClient) ModifyVolumeAccessGroup(ctx context.Context, groupID int, name *string,
	initiators []string, volumeIDs []int) error {
	params := map[string]any{"volumeAccessGroupID": groupID}
	if name != nil {
		params["name"] = *name
	}
	if initiators != nil {
		params["initiators"] = initiators
	}
	if volumeIDs != nil {
		params["volumes"] = volumeIDs
	}
	return c.Call(ctx, "ModifyVolumeAccessGroup", params, nil)
}

func (c *ClusterClient) DeleteVolumeAccessGroup(ctx context.Context, groupID int) error {
	return c.Call(ctx, "DeleteVolumeAccessGroup", map[string]any{"volumeAccessGroupID": groupID}, nil)
}

func (c *ClusterClient) ListVolumeAccessGroups(ctx context.Context) ([]VolumeAccessGroup, error) {
	var res struct {
		VolumeAccessGroups []VolumeAccessGroup `json:"volumeAccessGroups"`
	}
	err := c.Call(ctx, "ListVolumeAccessGroups", nil, &res)
	return res.VolumeAccessGroups, err
}

func (c *ClusterClient) AddVolumesToVolumeAccessGroup(ctx context.Context, groupID int, volumeIDs []int) error {
	return c.Call(ctx, "AddVolumesToVolumeAccessGroup",
		map[string]any{"volumeAccessGroupID": groupID, "volumes": volumeIDs}, nil)
}

func (c *ClusterClient) RemoveVolumesFromVolumeAccessGroup(ctx context.Context, groupID int, volumeIDs []int) error {
	return c.Call(ctx, "RemoveVolumesFromVolumeAccessGroup",
		map[string]any{"volumeAccessGroupID": groupID, "volumes": volumeIDs}, nil)
}

func (c *ClusterClient) GetVolumeAccessGroupLunAssignments(ctx context.Context, groupID int) ([]LunAssignment, error) {
	var res struct {
		Assignments VolumeAccessGroupLunAssignments `json:"volumeAccessGroupLunAssignments"`
	}
	err := c.Call(ctx, "GetVolumeAccessGroupLunAssignments",
		map[string]any{"volumeAccessGroupID": groupID}, &res)
	return res.Assignments.LunAssignments, err
}

func (c *ClusterClient) ModifyVolumeAccessGroupLunAssignments(ctx context.Context, groupID int,
	assignments []LunAssignment) error {
	return c.Call(ctx, "ModifyVolumeAccessGroupLunAssignments",
		map[string]any{"volumeAccessGroupID": groupID, "lunAssignments": assignments}, nil)
}

func (c *ClusterClient) ListInitiators(ctx context.Context) ([]Initiator, error) {
	var res struct {
		Initiators []Initiator `json:"initiators"`
	}
	err := c.Call(ctx, "ListInitiators", nil, &res)
	return res.Initiators, err
}
