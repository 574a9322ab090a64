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

// Package inventory maps node management IPs to the IPs of their BMCs.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
	"github.com/solidfire/sfadmin/sferrors"
	"gopkg.in/yaml.v3"
)

const (
	InventoryDirPerm            = 0755
	InventoryFilePerm           = 0600
	CurrentInventoryFileVersion = 1
)

const InventoryFileName = "sfadmin_inventory.yaml"

// Inventory is the content of an inventory file. It looks like
//
//	inventory_file_version: 1
//	nodes:
//	  - name: node1
//	    address: 10.1.1.5
//	    ipmi_address: 10.2.1.5
type Inventory struct {
	Version int          `yaml:"inventory_file_version"`
	Nodes   []*NodeEntry `yaml:"nodes"`
}

type NodeEntry struct {
	Name        string `yaml:"name,omitempty"`
	Address     string `yaml:"address"`
	IPMIAddress string `yaml:"ipmi_address"`
}

func MakeInventory() Inventory {
	return Inventory{Version: CurrentInventoryFileVersion}
}

// ReadInventory reads and validates an inventory file
func ReadInventory(inventoryPath string, logger vlog.Printer) (Inventory, error) {
	if inventoryPath == "" {
		return Inventory{}, fmt.Errorf("no inventory file provided")
	}
	inventoryBytes, err := os.ReadFile(inventoryPath)
	if err != nil {
		return Inventory{}, fmt.Errorf("fail to read inventory file, details: %w", err)
	}

	var inv Inventory
	if err := yaml.Unmarshal(inventoryBytes, &inv); err != nil {
		return Inventory{}, fmt.Errorf("fail to unmarshal inventory file, details: %w", err)
	}
	for _, node := range inv.Nodes {
		if !util.IsIPv4(node.Address) {
			return Inventory{}, fmt.Errorf("invalid node address %q in %s", node.Address, inventoryPath)
		}
		if !util.IsIPv4(node.IPMIAddress) {
			return Inventory{}, fmt.Errorf("invalid IPMI address %q for node %s in %s",
				node.IPMIAddress, node.Address, inventoryPath)
		}
	}
	logger.Info("Loaded inventory", "path", inventoryPath, "nodes", len(inv.Nodes))
	return inv, nil
}

// WriteInventory writes the inventory to inventoryPath, creating its
// directory if needed.
func (inv *Inventory) WriteInventory(inventoryPath string) error {
	if inv.Version == 0 {
		inv.Version = CurrentInventoryFileVersion
	}
	if err := os.MkdirAll(filepath.Dir(inventoryPath), InventoryDirPerm); err != nil {
		return fmt.Errorf("fail to create inventory directory, details: %w", err)
	}
	inventoryBytes, err := yaml.Marshal(inv)
	if err != nil {
		return fmt.Errorf("fail to marshal inventory data, details: %w", err)
	}
	if err := os.WriteFile(inventoryPath, inventoryBytes, InventoryFilePerm); err != nil {
		return fmt.Errorf("fail to write inventory file, details: %w", err)
	}
	return nil
}

// Add records or replaces the IPMI address of a node
func (inv *Inventory) Add(name, address, ipmiAddress string) {
	for _, node := range inv.Nodes {
		if node.Address == address {
			node.Name = name
			node.IPMIAddress = ipmiAddress
			return
		}
	}
	inv.Nodes = append(inv.Nodes, &NodeEntry{Name: name, Address: address, IPMIAddress: ipmiAddress})
}

// IPMIAddress returns the BMC address of the node with the given management IP
func (inv *Inventory) IPMIAddress(nodeIP string) (string, error) {
	for _, node := range inv.Nodes {
		if node.Address == nodeIP {
			return node.IPMIAddress, nil
		}
	}
	return "", fmt.Errorf("node %s is not in the inventory", nodeIP)
}

// StaticResolver maps node IPs to IPMI IPs given on the command line
type StaticResolver map[string]string

// MakeStaticResolver pairs node IPs with IPMI IPs by position. Both lists
// must have the same length.
func MakeStaticResolver(nodeIPs, ipmiIPs []string) (StaticResolver, error) {
	if len(nodeIPs) != len(ipmiIPs) {
		return nil, sferrors.NewInvalidArgument("ipmi-ips", ipmiIPs,
			"expected %d IPMI addresses to match node-ips, got %d", len(nodeIPs), len(ipmiIPs))
	}
	resolver := make(StaticResolver, len(nodeIPs))
	for i, ip := range nodeIPs {
		resolver[ip] = ipmiIPs[i]
	}
	return resolver, nil
}

func (r StaticResolver) IPMIAddress(nodeIP string) (string, error) {
	ipmiIP, ok := r[nodeIP]
	if !ok {
		return "", fmt.Errorf("no IPMI address given for node %s", nodeIP)
	}
	return ipmiIP, nil
}
