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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUpVolumeSize(t *testing.T) {
	assert.Equal(t, int64(0), RoundUpVolumeSize(0))
	assert.Equal(t, int64(4096), RoundUpVolumeSize(1))
	assert.Equal(t, int64(4096), RoundUpVolumeSize(4096))
	assert.Equal(t, int64(1<<30), RoundUpVolumeSize(1<<30-100))
}

func TestIsSyncFault(t *testing.T) {
	assert.True(t, IsSyncFault(FaultCodeVolumesDegraded))
	assert.True(t, IsSyncFault("binSyncUnhealthy"))
	assert.True(t, IsSyncFault("binUnhealthy"))
	assert.False(t, IsSyncFault("driveFailed"))
	assert.False(t, IsSyncFault("binAssignmentsAreHealthy"))
}

func TestDrivesOfNode(t *testing.T) {
	drives := []Drive{
		{DriveID: 1, NodeID: 1, Status: DriveStatusActive},
		{DriveID: 2, NodeID: 1, Status: DriveStatusAvailable},
		{DriveID: 3, NodeID: 2, Status: DriveStatusAvailable},
	}
	assert.Len(t, DrivesOfNode(drives, 1, ""), 2)
	available := DrivesOfNode(drives, 1, DriveStatusAvailable)
	if assert.Len(t, available, 1) {
		assert.Equal(t, 2, available[0].DriveID)
	}
	assert.Empty(t, DrivesOfNode(drives, 3, ""))
}
