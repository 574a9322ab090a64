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
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sferrors"
)

const elementPackage = "solidfire-element"

var nodeHandlers = map[string]nodeHandler{
	"GetAPI":                 nodeGetAPI,
	"GetDriveConfig":         getDriveConfig,
	"GetStartupFlags":        getStartupFlags,
	"ListMountedFileSystems": listMountedFileSystems,
	"GetConfig":              getConfig,
	"SetConfig":              setConfig,
	"GetVersionInfo":         getVersionInfo,
	"AptInstall":             aptInstall,
	"AptUpdate":              aptUpdate,
	"RebootNode":             rebootNode,
	"InvokeSetVersion":       invokeSetVersion,
	"GetSystemStatus":        getSystemStatus,
	"GetTime":                getTime,
	"ReadLink":               readLink,
}

func nodeGetAPI(s *Simulator, _ *nodeState, params jsoniter.RawMessage) (any, error) {
	return getAPI(s, params)
}

func getDriveConfig(_ *Simulator, node *nodeState, _ jsoniter.RawMessage) (any, error) {
	cfg := sfclusterops.DriveConfig{
		NumTotalExpected: node.NumDrives,
		NumTotalActual:   len(node.DriveSerials),
		Drives:           []sfclusterops.NodeDrive{},
	}
	for slot, serial := range node.DriveSerials {
		drive := sfclusterops.NodeDrive{
			Slot:   slot,
			Type:   sfclusterops.DriveTypeBlock,
			Dev:    fmt.Sprintf("/dev/sd%c", 'a'+rune(slot%26)),
			Serial: serial,
			Size:   300 * gib,
		}
		if slot == 0 {
			drive.Type = sfclusterops.DriveTypeSlice
			drive.Size = 100 * gib
			cfg.NumSliceExpected++
		} else {
			cfg.NumBlockExpected++
		}
		cfg.Drives = append(cfg.Drives, drive)
	}
	return map[string]any{"driveConfig": cfg}, nil
}

func getStartupFlags(_ *Simulator, node *nodeState, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"startupFlags": node.StartupFlags}, nil
}

func listMountedFileSystems(_ *Simulator, _ *nodeState, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"fileSystems": []sfclusterops.MountedFileSystem{
		{Device: "/dev/sdy1", MountPoint: "/", Type: "ext4"},
		{Device: "/dev/sdy2", MountPoint: "/var/log", Type: "ext4"},
		{Device: "/dev/sdz1", MountPoint: "/sf", Type: "ext4"},
	}}, nil
}

func getConfig(_ *Simulator, node *nodeState, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"config": node.Config}, nil
}

// setConfig merges the given sections into the node configuration
func setConfig(_ *Simulator, node *nodeState, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Config map[string]any `json:"config"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Config == nil {
		return nil, missingParam("config")
	}
	for section, value := range p.Config {
		current, currentIsMap := node.Config[section].(map[string]any)
		update, updateIsMap := value.(map[string]any)
		if currentIsMap && updateIsMap {
			merged := maps.Clone(current)
			maps.Copy(merged, update)
			node.Config[section] = merged
			continue
		}
		node.Config[section] = value
	}
	return map[string]any{"config": node.Config}, nil
}

func getVersionInfo(_ *Simulator, node *nodeState, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"versionInfo": sfclusterops.NodeVersionInfo{
		SoftwareVersion: node.SoftwareVersion,
		Packages:        node.Packages,
	}}, nil
}

// aptInstall installs packages from the node's repository. Installing the
// element package makes a reboot necessary.
func aptInstall(s *Simulator, node *nodeState, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Packages []string `json:"packages"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Packages) == 0 {
		return nil, missingParam("packages")
	}
	for _, name := range p.Packages {
		if _, ok := node.AvailablePackages[name]; !ok {
			return nil, invalidParam("Package %s is not available on %s.", name, node.MIP)
		}
	}
	for _, name := range p.Packages {
		node.Packages[name] = node.AvailablePackages[name]
		if name == elementPackage {
			node.RebootRequired = true
		}
		s.log.PrintFake("Installed %s %s on %s", name, node.AvailablePackages[name], node.MIP)
	}
	return nil, nil
}

func aptUpdate(_ *Simulator, node *nodeState, _ jsoniter.RawMessage) (any, error) {
	names := maps.Keys(node.AvailablePackages)
	slices.Sort(names)
	return map[string]any{"packages": names}, nil
}

// rebootNode models a reboot that completes before the call returns
func rebootNode(s *Simulator, node *nodeState, _ jsoniter.RawMessage) (any, error) {
	node.RebootRequired = false
	s.log.PrintFake("Rebooted %s", node.MIP)
	return nil, nil
}

// invokeSetVersion switches the node to an installed element version
func invokeSetVersion(_ *Simulator, node *nodeState, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Version string `json:"version"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Version == "" {
		return nil, missingParam("version")
	}
	if _, err := sfclusterops.ParseVersion(p.Version); err != nil {
		return nil, invalidParam("Invalid version %s.", p.Version)
	}
	node.SoftwareVersion = p.Version
	node.Packages[elementPackage] = p.Version
	node.Links["/sf/etc/current"] = "/sf/packages/" + elementPackage + "-" + p.Version
	node.RebootRequired = true
	return nil, nil
}

func getSystemStatus(_ *Simulator, node *nodeState, _ jsoniter.RawMessage) (any, error) {
	return sfclusterops.SystemStatus{RebootRequired: node.RebootRequired, State: "running"}, nil
}

func getTime(s *Simulator, _ *nodeState, _ jsoniter.RawMessage) (any, error) {
	return map[string]any{"time": s.now().Format(time.RFC3339)}, nil
}

func readLink(_ *Simulator, node *nodeState, params jsoniter.RawMessage) (any, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, missingParam("path")
	}
	target, ok := node.Links[p.Path]
	if !ok {
		return nil, sferrors.NewAPIError(sferrors.DBNoSuchPath, fmt.Sprintf("No such path %s.", p.Path))
	}
	return map[string]any{"target": target}, nil
}
