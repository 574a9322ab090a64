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

package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"

	"github.com/solidfire/sfadmin/sfclusterops/vlog"
	"github.com/solidfire/sfadmin/sferrors"
)

func TestReadInventory(t *testing.T) {
	const yamlStr = `inventory_file_version: 1
nodes:
  - name: node1
    address: 10.1.1.5
    ipmi_address: 10.2.1.5
  - address: 10.1.1.6
    ipmi_address: 10.2.1.6
`
	path := filepath.Join(t.TempDir(), InventoryFileName)
	require.NoError(t, os.WriteFile(path, []byte(yamlStr), InventoryFilePerm))

	inv, err := ReadInventory(path, vlog.MakePrinter(buflogr.New(), nil))
	require.NoError(t, err)
	assert.Len(t, inv.Nodes, 2)
	ipmiIP, err := inv.IPMIAddress("10.1.1.6")
	assert.NoError(t, err)
	assert.Equal(t, "10.2.1.6", ipmiIP)
	_, err = inv.IPMIAddress("10.1.1.7")
	assert.ErrorContains(t, err, "not in the inventory")
}

func TestReadInventoryRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), InventoryFileName)
	require.NoError(t, os.WriteFile(path,
		[]byte("nodes:\n  - address: 10.1.1.5\n    ipmi_address: 10.2.1\n"), InventoryFilePerm))
	_, err := ReadInventory(path, vlog.MakePrinter(buflogr.New(), nil))
	assert.ErrorContains(t, err, "invalid IPMI address")

	_, err = ReadInventory("", vlog.MakePrinter(buflogr.New(), nil))
	assert.Error(t, err)
}

func TestWriteThenReadInventory(t *testing.T) {
	inv := MakeInventory()
	inv.Add("node1", "10.1.1.5", "10.2.1.5")
	inv.Add("node1", "10.1.1.5", "10.2.1.9")
	path := filepath.Join(t.TempDir(), "nested", InventoryFileName)
	require.NoError(t, inv.WriteInventory(path))

	read, err := ReadInventory(path, vlog.MakePrinter(buflogr.New(), nil))
	require.NoError(t, err)
	require.Len(t, read.Nodes, 1)
	assert.Equal(t, "10.2.1.9", read.Nodes[0].IPMIAddress)
}

func TestStaticResolver(t *testing.T) {
	_, err := MakeStaticResolver([]string{"10.1.1.5", "10.1.1.6"}, []string{"10.2.1.5"})
	assert.True(t, sferrors.IsInvalidArgument(err))

	r, err := MakeStaticResolver([]string{"10.1.1.5"}, []string{"10.2.1.5"})
	require.NoError(t, err)
	ip, err := r.IPMIAddress("10.1.1.5")
	assert.NoError(t, err)
	assert.Equal(t, "10.2.1.5", ip)
}
