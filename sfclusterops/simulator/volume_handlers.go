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
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sferrors"
)

const (
	minSecretLen = 12
	maxSecretLen = 16

	maxInitiatorsPerGroup = 64
	maxLun                = 16383
	// deleted volumes are purged automatically after this long
	purgeDelay = 8 * time.Hour
)

var defaultQoS = sfclusterops.QoS{MinIOPS: 50, MaxIOPS: 15000, BurstIOPS: 15000}

var volumePairingModes = []string{"Async", "Sync", "SnapshotsOnly"}

var volumeHandlers = map[string]handler{
	"AddAccount":       addAccount,
	"GetAccountByID":   getAccountByID,
	"GetAccountByName": getAccountByName,
	"ListAccounts":     listAccounts,
	"ModifyAccount":    modifyAccount,
	"RemoveAccount":    removeAccount,

	"CreateVolume":          createVolumeRPC,
	"CloneVolume":           cloneVolume,
	"ListActiveVolumes":     listActiveVolumes,
	"ListDeletedVolumes":    listDeletedVolumes,
	"ListVolumesForAccount": listVolumesForAccount,
	"ModifyVolume":          modifyVolume,
	"DeleteVolume":          deleteVolume,
	"RestoreDeletedVolume":  restoreDeletedVolume,
	"PurgeDeletedVolume":    purgeDeletedVolume,

	"StartVolumePairing":      startVolumePairing,
	"RemoveVolumePair":        removeVolumePair,
	"ListActivePairedVolumes": listActivePairedVolumes,

	"CreateVolumeAccessGroup":               createVolumeAccessGroup,
	"ModifyVolumeAccessGroup":               modifyVolumeAccessGroup,
	"DeleteVolumeAccessGroup":               deleteVolumeAccessGroup,
	"ListVolumeAccessGroups":                listVolumeAccessGroups,
	"AddVolumesToVolumeAccessGroup":         addVolumesToVolumeAccessGroup,
	"RemoveVolumesFromVolumeAccessGroup":    removeVolumesFromVolumeAccessGroup,
	"GetVolumeAccessGroupLunAssignments":    getLunAssignments,
	"ModifyVolumeAccessGroupLunAssignments": modifyLunAssignments,
	"ListInitiators":                        listInitiators,
}

// Accounts

func checkSecret(name, secret string) error {
	if len(secret) < minSecretLen || len(secret) > maxSecretLen {
		return invalidParam("%s must be %d to %d characters long.", name, minSecretLen, maxSecretLen)
	}
	return nil
}

func accountNotFound(accountID int) error {
	return sferrors.NewAPIError(sferrors.AccountIDDoesNotExist,
		fmt.Sprintf("AccountID %d does not exist.", accountID))
}

func addAccount(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Username        string  `json:"username"`
		InitiatorSecret *string `json:"initiatorSecret"`
		TargetSecret    *string `json:"targetSecret"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Username == "" {
		return nil, missingParam("username")
	}
	if s.st.accountByName(p.Username) != nil {
		return nil, invalidParam("Account %s already exists.", p.Username)
	}
	account := &sfclusterops.Account{
		AccountID: s.st.nextID(idAccount),
		Username:  p.Username,
		Status:    "active",
		Volumes:   []int{},
	}
	if p.InitiatorSecret != nil {
		if err := checkSecret("initiatorSecret", *p.InitiatorSecret); err != nil {
			return nil, err
		}
		account.InitiatorSecret = *p.InitiatorSecret
	} else {
		account.InitiatorSecret = randomSecret(s.rng)
	}
	if p.TargetSecret != nil {
		if err := checkSecret("targetSecret", *p.TargetSecret); err != nil {
			return nil, err
		}
		account.TargetSecret = *p.TargetSecret
	} else {
		account.TargetSecret = randomSecret(s.rng)
	}
	s.st.Accounts = append(s.st.Accounts, account)
	return map[string]any{"accountID": account.AccountID, "account": account}, nil
}

func getAccountByID(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		AccountID *int `json:"accountID"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AccountID == nil {
		return nil, missingParam("accountID")
	}
	account := s.st.accountByID(*p.AccountID)
	if account == nil {
		return nil, accountNotFound(*p.AccountID)
	}
	return map[string]any{"account": account}, nil
}

func getAccountByName(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Username string `json:"username"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Username == "" {
		return nil, missingParam("username")
	}
	account := s.st.accountByName(p.Username)
	if account == nil {
		return nil, sferrors.NewAPIError(sferrors.AccountIDDoesNotExist,
			fmt.Sprintf("Account %s does not exist.", p.Username))
	}
	return map[string]any{"account": account}, nil
}

func listAccounts(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	accounts := []sfclusterops.Account{}
	for _, a := range s.st.Accounts {
		accounts = append(accounts, *a)
	}
	return map[string]any{"accounts": accounts}, nil
}

func modifyAccount(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		AccountID       *int    `json:"accountID"`
		Username        *string `json:"username"`
		InitiatorSecret *string `json:"initiatorSecret"`
		TargetSecret    *string `json:"targetSecret"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AccountID == nil {
		return nil, missingParam("accountID")
	}
	account := s.st.accountByID(*p.AccountID)
	if account == nil {
		return nil, accountNotFound(*p.AccountID)
	}
	if p.Username != nil {
		if other := s.st.accountByName(*p.Username); other != nil && other != account {
			return nil, invalidParam("Account %s already exists.", *p.Username)
		}
	}
	if p.InitiatorSecret != nil {
		if err := checkSecret("initiatorSecret", *p.InitiatorSecret); err != nil {
			return nil, err
		}
	}
	if p.TargetSecret != nil {
		if err := checkSecret("targetSecret", *p.TargetSecret); err != nil {
			return nil, err
		}
	}
	if p.Username != nil {
		account.Username = *p.Username
	}
	if p.InitiatorSecret != nil {
		account.InitiatorSecret = *p.InitiatorSecret
	}
	if p.TargetSecret != nil {
		account.TargetSecret = *p.TargetSecret
	}
	return nil, nil
}

// removeAccount refuses to remove an account that still owns volumes
func removeAccount(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		AccountID *int `json:"accountID"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AccountID == nil {
		return nil, missingParam("accountID")
	}
	account := s.st.accountByID(*p.AccountID)
	if account == nil {
		return nil, accountNotFound(*p.AccountID)
	}
	if len(account.Volumes) > 0 {
		return nil, invalidParam("Account %d still has %d volumes.", account.AccountID, len(account.Volumes))
	}
	accounts := s.st.Accounts[:0]
	for _, a := range s.st.Accounts {
		if a != account {
			accounts = append(accounts, a)
		}
	}
	s.st.Accounts = accounts
	return nil, nil
}

// Volumes

func volumeNotFound(volumeID int) error {
	return sferrors.NewAPIError(sferrors.VolumeIDDoesNotExist,
		fmt.Sprintf("VolumeID %d does not exist.", volumeID))
}

// createVolume adds an active volume and links it to its account
func (st *clusterState) createVolume(account *sfclusterops.Account, name string, size int64,
	now time.Time) *sfclusterops.Volume {
	vol := &sfclusterops.Volume{
		VolumeID:           st.nextID(idVolume),
		AccountID:          account.AccountID,
		Name:               name,
		TotalSize:          sfclusterops.RoundUpVolumeSize(size),
		Access:             sfclusterops.AccessReadWrite,
		Enable512e:         true,
		QoS:                defaultQoS,
		VolumePairs:        []sfclusterops.VolumePair{},
		Status:             sfclusterops.VolumeStatusActive,
		CreateTime:         now.Format(time.RFC3339),
		VolumeAccessGroups: []int{},
	}
	st.Volumes = append(st.Volumes, vol)
	account.Volumes = append(account.Volumes, vol.VolumeID)
	return vol
}

func checkAccess(access string) error {
	for _, a := range sfclusterops.VolumeAccessList {
		if a == access {
			return nil
		}
	}
	return sferrors.NewAPIError(sferrors.UnrecognizedEnumString,
		fmt.Sprintf("Unrecognized access %s.", access))
}

func checkQoS(qos *sfclusterops.QoS) error {
	if qos.MinIOPS < 0 || qos.MaxIOPS < qos.MinIOPS || qos.BurstIOPS < qos.MaxIOPS {
		return invalidParam("Invalid QoS settings: min %d, max %d, burst %d.",
			qos.MinIOPS, qos.MaxIOPS, qos.BurstIOPS)
	}
	return nil
}

func createVolumeRPC(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Name       string            `json:"name"`
		AccountID  *int              `json:"accountID"`
		TotalSize  *int64            `json:"totalSize"`
		Enable512e *bool             `json:"enable512e"`
		Access     string            `json:"access"`
		QoS        *sfclusterops.QoS `json:"qos"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	switch {
	case p.Name == "":
		return nil, missingParam("name")
	case p.AccountID == nil:
		return nil, missingParam("accountID")
	case p.TotalSize == nil:
		return nil, missingParam("totalSize")
	}
	if *p.TotalSize <= 0 {
		return nil, invalidParam("totalSize must be positive, not %d.", *p.TotalSize)
	}
	account := s.st.accountByID(*p.AccountID)
	if account == nil {
		return nil, accountNotFound(*p.AccountID)
	}
	if p.Access != "" {
		if err := checkAccess(p.Access); err != nil {
			return nil, err
		}
	}
	if p.QoS != nil {
		if err := checkQoS(p.QoS); err != nil {
			return nil, err
		}
	}

	vol := s.st.createVolume(account, p.Name, *p.TotalSize, s.now())
	if p.Enable512e != nil {
		vol.Enable512e = *p.Enable512e
	}
	if p.Access != "" {
		vol.Access = p.Access
	}
	if p.QoS != nil {
		vol.QoS = *p.QoS
	}
	return map[string]any{"volumeID": vol.VolumeID, "volume": vol}, nil
}

// activeVolume looks up a volume that is not deleted
func (s *Simulator) activeVolume(volumeID int) (*sfclusterops.Volume, error) {
	vol := s.st.volumeByID(volumeID)
	if vol == nil || vol.Status != sfclusterops.VolumeStatusActive {
		return nil, volumeNotFound(volumeID)
	}
	return vol, nil
}

// cloneVolume copies a volume, optionally into another account. The copy
// completes at once.
func cloneVolume(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeID     *int   `json:"volumeID"`
		Name         string `json:"name"`
		NewAccountID *int   `json:"newAccountID"`
		NewSize      *int64 `json:"newSize"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	switch {
	case p.VolumeID == nil:
		return nil, missingParam("volumeID")
	case p.Name == "":
		return nil, missingParam("name")
	}
	src, err := s.activeVolume(*p.VolumeID)
	if err != nil {
		return nil, err
	}
	account := s.st.accountByID(src.AccountID)
	if p.NewAccountID != nil {
		account = s.st.accountByID(*p.NewAccountID)
		if account == nil {
			return nil, accountNotFound(*p.NewAccountID)
		}
	}
	size := src.TotalSize
	if p.NewSize != nil {
		size = sfclusterops.RoundUpVolumeSize(*p.NewSize)
		if size < src.TotalSize {
			return nil, sferrors.NewAPIError(sferrors.VolumeShrinkProhibited,
				fmt.Sprintf("Clone of volume %d cannot be smaller than the source.", src.VolumeID))
		}
	}

	clone := s.st.createVolume(account, p.Name, size, s.now())
	clone.Access = src.Access
	clone.Enable512e = src.Enable512e
	clone.QoS = src.QoS
	cloneID := s.st.nextID("clone")
	handle := s.completedAsync(map[string]any{"cloneID": cloneID, "volumeID": clone.VolumeID})
	return sfclusterops.CloneVolumeResult{VolumeID: clone.VolumeID, CloneID: cloneID, AsyncHandle: handle}, nil
}

func volumeList(vols []*sfclusterops.Volume) []sfclusterops.Volume {
	res := []sfclusterops.Volume{}
	for _, v := range vols {
		res = append(res, *v)
	}
	return res
}

func listActiveVolumes(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"volumes": volumeList(s.st.volumesWithStatus(sfclusterops.VolumeStatusActive))}, nil
}

func listDeletedVolumes(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"volumes": volumeList(s.st.volumesWithStatus(sfclusterops.VolumeStatusDeleted))}, nil
}

func listVolumesForAccount(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		AccountID *int `json:"accountID"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AccountID == nil {
		return nil, missingParam("accountID")
	}
	account := s.st.accountByID(*p.AccountID)
	if account == nil {
		return nil, accountNotFound(*p.AccountID)
	}
	var vols []*sfclusterops.Volume
	for _, id := range account.Volumes {
		if v := s.st.volumeByID(id); v != nil {
			vols = append(vols, v)
		}
	}
	return map[string]any{"volumes": volumeList(vols)}, nil
}

// modifyVolume validates every change before applying any of them. Moving a
// volume to another account updates both accounts in the same step.
func modifyVolume(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeID  *int              `json:"volumeID"`
		AccountID *int              `json:"accountID"`
		TotalSize *int64            `json:"totalSize"`
		Access    *string           `json:"access"`
		QoS       *sfclusterops.QoS `json:"qos"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.VolumeID == nil {
		return nil, missingParam("volumeID")
	}
	vol, err := s.activeVolume(*p.VolumeID)
	if err != nil {
		return nil, err
	}
	var newAccount *sfclusterops.Account
	if p.AccountID != nil {
		newAccount = s.st.accountByID(*p.AccountID)
		if newAccount == nil {
			return nil, accountNotFound(*p.AccountID)
		}
	}
	var newSize int64
	if p.TotalSize != nil {
		newSize = sfclusterops.RoundUpVolumeSize(*p.TotalSize)
		if newSize < vol.TotalSize {
			return nil, sferrors.NewAPIError(sferrors.VolumeShrinkProhibited,
				fmt.Sprintf("Volume %d cannot shrink from %d to %d bytes.", vol.VolumeID, vol.TotalSize, newSize))
		}
	}
	if p.Access != nil {
		if err := checkAccess(*p.Access); err != nil {
			return nil, err
		}
	}
	if p.QoS != nil {
		if err := checkQoS(p.QoS); err != nil {
			return nil, err
		}
	}

	if newAccount != nil && newAccount.AccountID != vol.AccountID {
		if old := s.st.accountByID(vol.AccountID); old != nil {
			old.Volumes = removeInt(old.Volumes, vol.VolumeID)
		}
		newAccount.Volumes = append(newAccount.Volumes, vol.VolumeID)
		vol.AccountID = newAccount.AccountID
	}
	if p.TotalSize != nil {
		vol.TotalSize = newSize
	}
	if p.Access != nil {
		vol.Access = *p.Access
	}
	if p.QoS != nil {
		vol.QoS = *p.QoS
	}
	return nil, nil
}

func deleteVolume(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeID *int `json:"volumeID"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.VolumeID == nil {
		return nil, missingParam("volumeID")
	}
	vol, err := s.activeVolume(*p.VolumeID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	vol.Status = sfclusterops.VolumeStatusDeleted
	vol.DeleteTime = now.Format(time.RFC3339)
	vol.PurgeTime = now.Add(purgeDelay).Format(time.RFC3339)
	for _, groupID := range vol.VolumeAccessGroups {
		if g := s.st.groupByID(groupID); g != nil {
			g.detachVolume(vol.VolumeID)
		}
	}
	vol.VolumeAccessGroups = []int{}
	return nil, nil
}

func deletedVolume(s *Simulator, params jsoniter.RawMessage) (*sfclusterops.Volume, error) {
	var p struct {
		VolumeID *int `json:"volumeID"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.VolumeID == nil {
		return nil, missingParam("volumeID")
	}
	vol := s.st.volumeByID(*p.VolumeID)
	if vol == nil {
		return nil, volumeNotFound(*p.VolumeID)
	}
	if vol.Status != sfclusterops.VolumeStatusDeleted {
		return nil, invalidParam("VolumeID %d is not deleted.", vol.VolumeID)
	}
	return vol, nil
}

func restoreDeletedVolume(s *Simulator, params jsoniter.RawMessage) (any, error) {
	vol, err := deletedVolume(s, params)
	if err != nil {
		return nil, err
	}
	vol.Status = sfclusterops.VolumeStatusActive
	vol.DeleteTime = ""
	vol.PurgeTime = ""
	return nil, nil
}

// purgeDeletedVolume drops the volume and unlinks it from its account
func purgeDeletedVolume(s *Simulator, params jsoniter.RawMessage) (any, error) {
	vol, err := deletedVolume(s, params)
	if err != nil {
		return nil, err
	}
	vol.Status = sfclusterops.VolumeStatusPurged
	if account := s.st.accountByID(vol.AccountID); account != nil {
		account.Volumes = removeInt(account.Volumes, vol.VolumeID)
	}
	vols := s.st.Volumes[:0]
	for _, v := range s.st.Volumes {
		if v != vol {
			vols = append(vols, v)
		}
	}
	s.st.Volumes = vols
	return nil, nil
}

// Volume pairing

func startVolumePairing(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeID *int   `json:"volumeID"`
		Mode     string `json:"mode"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.VolumeID == nil {
		return nil, missingParam("volumeID")
	}
	if p.Mode == "" {
		p.Mode = volumePairingModes[0]
	}
	modeOK := false
	for _, m := range volumePairingModes {
		modeOK = modeOK || m == p.Mode
	}
	if !modeOK {
		return nil, sferrors.NewAPIError(sferrors.UnrecognizedEnumString,
			fmt.Sprintf("Unrecognized pairing mode %s.", p.Mode))
	}
	vol, err := s.activeVolume(*p.VolumeID)
	if err != nil {
		return nil, err
	}
	pairUUID, _ := uuid.NewRandomFromReader(s.rng)
	vol.VolumePairs = append(vol.VolumePairs, sfclusterops.VolumePair{
		ClusterPairID:    1,
		RemoteVolumeID:   vol.VolumeID,
		RemoteVolumeName: vol.Name,
		RemoteSliceID:    vol.VolumeID,
		VolumePairUUID:   pairUUID.String(),
	})
	key := fmt.Sprintf("%x", []byte(pairUUID.String()+":"+p.Mode))
	return map[string]any{"volumePairingKey": key}, nil
}

func removeVolumePair(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeID *int `json:"volumeID"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.VolumeID == nil {
		return nil, missingParam("volumeID")
	}
	vol, err := s.activeVolume(*p.VolumeID)
	if err != nil {
		return nil, err
	}
	if len(vol.VolumePairs) == 0 {
		return nil, sferrors.NewAPIError(sferrors.VolumeNotPaired,
			fmt.Sprintf("VolumeID %d is not paired.", vol.VolumeID))
	}
	vol.VolumePairs = []sfclusterops.VolumePair{}
	return nil, nil
}

func listActivePairedVolumes(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	var paired []*sfclusterops.Volume
	for _, v := range s.st.volumesWithStatus(sfclusterops.VolumeStatusActive) {
		if len(v.VolumePairs) > 0 {
			paired = append(paired, v)
		}
	}
	return map[string]any{"volumes": volumeList(paired)}, nil
}

// Volume access groups

func groupNotFound(groupID int) error {
	return sferrors.NewAPIError(sferrors.VolumeAccessGroupIDDoesNotExist,
		fmt.Sprintf("VolumeAccessGroupID %d does not exist.", groupID))
}

// nextLun is the lowest LUN not used in the group
func (g *groupState) nextLun() int {
	used := mapset.NewSet[int]()
	for _, lun := range g.Luns {
		used.Add(lun)
	}
	for lun := 0; lun <= maxLun; lun++ {
		if !used.Contains(lun) {
			return lun
		}
	}
	return -1
}

func (g *groupState) attachVolume(vol *sfclusterops.Volume) error {
	if _, ok := g.Luns[vol.VolumeID]; ok {
		return nil
	}
	lun := g.nextLun()
	if lun < 0 {
		return sferrors.NewAPIError(sferrors.ExceededLimit,
			fmt.Sprintf("VolumeAccessGroup %d has no free LUN.", g.VolumeAccessGroupID))
	}
	g.Luns[vol.VolumeID] = lun
	g.Volumes = append(g.Volumes, vol.VolumeID)
	vol.VolumeAccessGroups = append(vol.VolumeAccessGroups, g.VolumeAccessGroupID)
	return nil
}

// checkLunCapacity fails when the group would end up with more volumes
// than it has LUNs. With replace the group ends up with exactly volumeIDs,
// otherwise they are added to the current volumes.
func (g *groupState) checkLunCapacity(volumeIDs []int, replace bool) error {
	final := mapset.NewThreadUnsafeSet(volumeIDs...)
	if !replace {
		final.Append(g.Volumes...)
	}
	if final.Cardinality() > maxLun+1 {
		return sferrors.NewAPIError(sferrors.ExceededLimit,
			fmt.Sprintf("VolumeAccessGroup %d has no free LUN.", g.VolumeAccessGroupID))
	}
	return nil
}

func (g *groupState) detachVolume(volumeID int) {
	delete(g.Luns, volumeID)
	g.Volumes = removeInt(g.Volumes, volumeID)
}

// checkInitiators rejects initiator lists that are too long or that name an
// initiator already in another group
func (st *clusterState) checkInitiators(groupID int, initiators []string) error {
	if len(initiators) > maxInitiatorsPerGroup {
		return sferrors.NewAPIError(sferrors.ExceededLimit,
			fmt.Sprintf("A volume access group may have at most %d initiators.", maxInitiatorsPerGroup))
	}
	seen := mapset.NewSet[string]()
	for _, name := range initiators {
		if name == "" {
			return invalidParam("Initiator names cannot be empty.")
		}
		if !seen.Add(name) {
			return invalidParam("Initiator %s is listed twice.", name)
		}
		if i := st.initiatorByName(name); i != nil && i.VolumeAccessGroupID != 0 && i.VolumeAccessGroupID != groupID {
			return invalidParam("Initiator %s already belongs to VolumeAccessGroup %d.", name, i.VolumeAccessGroupID)
		}
	}
	return nil
}

// setInitiators replaces the group's initiators, creating initiator records
// as needed
func (st *clusterState) setInitiators(g *groupState, initiators []string) {
	for _, name := range g.Initiators {
		if i := st.initiatorByName(name); i != nil {
			i.VolumeAccessGroupID = 0
		}
	}
	g.Initiators = []string{}
	for _, name := range initiators {
		i := st.initiatorByName(name)
		if i == nil {
			i = &sfclusterops.Initiator{InitiatorID: st.nextID(idInitiator), InitiatorName: name}
			st.Initiators = append(st.Initiators, i)
		}
		i.VolumeAccessGroupID = g.VolumeAccessGroupID
		g.Initiators = append(g.Initiators, name)
	}
}

func (st *clusterState) activeVolumes(volumeIDs []int) ([]*sfclusterops.Volume, error) {
	var vols []*sfclusterops.Volume
	for _, id := range volumeIDs {
		v := st.volumeByID(id)
		if v == nil || v.Status != sfclusterops.VolumeStatusActive {
			return nil, volumeNotFound(id)
		}
		vols = append(vols, v)
	}
	return vols, nil
}

// createGroup adds a group whose volumes get LUNs in list order. Inputs
// must already be validated.
func (st *clusterState) createGroup(name string, initiators []string, volumeIDs []int) *groupState {
	g := &groupState{
		VolumeAccessGroup: sfclusterops.VolumeAccessGroup{
			VolumeAccessGroupID: st.nextID(idGroup),
			Name:                name,
			Initiators:          []string{},
			Volumes:             []int{},
		},
		Luns: map[int]int{},
	}
	st.Groups = append(st.Groups, g)
	st.setInitiators(g, initiators)
	for _, id := range volumeIDs {
		if v := st.volumeByID(id); v != nil {
			_ = g.attachVolume(v)
		}
	}
	return g
}

func createVolumeAccessGroup(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Name       string   `json:"name"`
		Initiators []string `json:"initiators"`
		Volumes    []int    `json:"volumes"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, missingParam("name")
	}
	if err := s.st.checkInitiators(0, p.Initiators); err != nil {
		return nil, err
	}
	if _, err := s.st.activeVolumes(p.Volumes); err != nil {
		return nil, err
	}
	if len(p.Volumes) > maxLun+1 {
		return nil, sferrors.NewAPIError(sferrors.ExceededLimit, "Too many volumes for one group.")
	}
	g := s.st.createGroup(p.Name, p.Initiators, p.Volumes)
	return map[string]any{"volumeAccessGroupID": g.VolumeAccessGroupID}, nil
}

func (s *Simulator) groupParam(params jsoniter.RawMessage, dst any, groupID **int) (*groupState, error) {
	if err := decodeParams(params, dst); err != nil {
		return nil, err
	}
	if *groupID == nil {
		return nil, missingParam("volumeAccessGroupID")
	}
	g := s.st.groupByID(**groupID)
	if g == nil {
		return nil, groupNotFound(**groupID)
	}
	return g, nil
}

// modifyVolumeAccessGroup treats an absent list as "no change" and an empty
// list as "remove all"
func modifyVolumeAccessGroup(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeAccessGroupID *int      `json:"volumeAccessGroupID"`
		Name                *string   `json:"name"`
		Initiators          *[]string `json:"initiators"`
		Volumes             *[]int    `json:"volumes"`
	}
	g, err := s.groupParam(params, &p, &p.VolumeAccessGroupID)
	if err != nil {
		return nil, err
	}
	if p.Initiators != nil {
		if err := s.st.checkInitiators(g.VolumeAccessGroupID, *p.Initiators); err != nil {
			return nil, err
		}
	}
	var vols []*sfclusterops.Volume
	if p.Volumes != nil {
		if vols, err = s.st.activeVolumes(*p.Volumes); err != nil {
			return nil, err
		}
		if err := g.checkLunCapacity(*p.Volumes, true); err != nil {
			return nil, err
		}
	}

	// nothing below can fail, so a rejected request leaves the group as it was
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Initiators != nil {
		s.st.setInitiators(g, *p.Initiators)
	}
	if p.Volumes != nil {
		keep := mapset.NewSet(*p.Volumes...)
		for _, id := range append([]int(nil), g.Volumes...) {
			if !keep.Contains(id) {
				s.st.unlinkVolume(g, id)
			}
		}
		for _, v := range vols {
			_ = g.attachVolume(v)
		}
	}
	return nil, nil
}

// unlinkVolume removes a volume from a group on both sides
func (st *clusterState) unlinkVolume(g *groupState, volumeID int) {
	g.detachVolume(volumeID)
	if v := st.volumeByID(volumeID); v != nil {
		v.VolumeAccessGroups = removeInt(v.VolumeAccessGroups, g.VolumeAccessGroupID)
	}
}

func deleteVolumeAccessGroup(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeAccessGroupID *int `json:"volumeAccessGroupID"`
	}
	g, err := s.groupParam(params, &p, &p.VolumeAccessGroupID)
	if err != nil {
		return nil, err
	}
	s.st.setInitiators(g, nil)
	for _, id := range append([]int(nil), g.Volumes...) {
		s.st.unlinkVolume(g, id)
	}
	groups := s.st.Groups[:0]
	for _, other := range s.st.Groups {
		if other != g {
			groups = append(groups, other)
		}
	}
	s.st.Groups = groups
	return nil, nil
}

func listVolumeAccessGroups(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	groups := []sfclusterops.VolumeAccessGroup{}
	for _, g := range s.st.Groups {
		groups = append(groups, g.VolumeAccessGroup)
	}
	return map[string]any{"volumeAccessGroups": groups}, nil
}

func addVolumesToVolumeAccessGroup(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeAccessGroupID *int   `json:"volumeAccessGroupID"`
		Volumes             *[]int `json:"volumes"`
	}
	g, err := s.groupParam(params, &p, &p.VolumeAccessGroupID)
	if err != nil {
		return nil, err
	}
	if p.Volumes == nil {
		return nil, missingParam("volumes")
	}
	vols, err := s.st.activeVolumes(*p.Volumes)
	if err != nil {
		return nil, err
	}
	if err := g.checkLunCapacity(*p.Volumes, false); err != nil {
		return nil, err
	}
	for _, v := range vols {
		_ = g.attachVolume(v)
	}
	return map[string]any{"volumeAccessGroup": g.VolumeAccessGroup}, nil
}

func removeVolumesFromVolumeAccessGroup(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeAccessGroupID *int   `json:"volumeAccessGroupID"`
		Volumes             *[]int `json:"volumes"`
	}
	g, err := s.groupParam(params, &p, &p.VolumeAccessGroupID)
	if err != nil {
		return nil, err
	}
	if p.Volumes == nil {
		return nil, missingParam("volumes")
	}
	for _, id := range *p.Volumes {
		if _, ok := g.Luns[id]; !ok {
			return nil, invalidParam("VolumeID %d is not in VolumeAccessGroup %d.", id, g.VolumeAccessGroupID)
		}
	}
	for _, id := range *p.Volumes {
		s.st.unlinkVolume(g, id)
	}
	return map[string]any{"volumeAccessGroup": g.VolumeAccessGroup}, nil
}

func (g *groupState) lunAssignments() sfclusterops.VolumeAccessGroupLunAssignments {
	res := sfclusterops.VolumeAccessGroupLunAssignments{
		VolumeAccessGroupID: g.VolumeAccessGroupID,
		LunAssignments:      []sfclusterops.LunAssignment{},
	}
	for _, id := range g.Volumes {
		res.LunAssignments = append(res.LunAssignments, sfclusterops.LunAssignment{VolumeID: id, Lun: g.Luns[id]})
	}
	return res
}

func getLunAssignments(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeAccessGroupID *int `json:"volumeAccessGroupID"`
	}
	g, err := s.groupParam(params, &p, &p.VolumeAccessGroupID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"volumeAccessGroupLunAssignments": g.lunAssignments()}, nil
}

// modifyLunAssignments changes LUNs of volumes already in the group. The
// resulting LUNs must stay unique.
func modifyLunAssignments(s *Simulator, params jsoniter.RawMessage) (any, error) {
	var p struct {
		VolumeAccessGroupID *int                          `json:"volumeAccessGroupID"`
		LunAssignments      *[]sfclusterops.LunAssignment `json:"lunAssignments"`
	}
	g, err := s.groupParam(params, &p, &p.VolumeAccessGroupID)
	if err != nil {
		return nil, err
	}
	if p.LunAssignments == nil {
		return nil, missingParam("lunAssignments")
	}
	luns := make(map[int]int, len(g.Luns))
	for id, lun := range g.Luns {
		luns[id] = lun
	}
	for _, a := range *p.LunAssignments {
		if _, ok := luns[a.VolumeID]; !ok {
			return nil, invalidParam("VolumeID %d is not in VolumeAccessGroup %d.", a.VolumeID, g.VolumeAccessGroupID)
		}
		if a.Lun < 0 || a.Lun > maxLun {
			return nil, invalidParam("LUN %d is out of range [0, %d].", a.Lun, maxLun)
		}
		luns[a.VolumeID] = a.Lun
	}
	used := mapset.NewSet[int]()
	for _, lun := range luns {
		if !used.Add(lun) {
			return nil, invalidParam("LUN %d is assigned twice.", lun)
		}
	}
	g.Luns = luns
	return map[string]any{"volumeAccessGroupLunAssignments": g.lunAssignments()}, nil
}

func listInitiators(s *Simulator, _ jsoniter.RawMessage) (any, error) {
	initiators := []sfclusterops.Initiator{}
	for _, i := range s.st.Initiators {
		initiators = append(initiators, *i)
	}
	sort.Slice(initiators, func(a, b int) bool { return initiators[a].InitiatorID < initiators[b].InitiatorID })
	return map[string]any{"initiators": initiators}, nil
}

func removeInt(list []int, value int) []int {
	res := make([]int, 0, len(list))
	for _, v := range list {
		if v != value {
			res = append(res, v)
		}
	}
	return res
}
