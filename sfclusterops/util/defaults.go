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

package util

import "time"

// this file defines basic default values
const (
	DefaultClusterPort           = 443
	DefaultNodePort              = 442
	DefaultAPIVersion            = 9.0
	DefaultParallelMax           = 16
	DefaultRequestTimeoutSeconds = 300
	DefaultUsername              = "admin"
	DefaultPassword              = "admin"
	DefaultIPMIUsername          = "root"
	DefaultIPMIPassword          = "calvin"
	DefaultPowerDownTimeSeconds  = 0

	// polling constants, in seconds
	DrivePollIntervalSeconds   = 5
	DrivePollTimeoutSeconds    = 600
	SyncPollIntervalSeconds    = 5
	SyncPollTimeoutSeconds     = 3600
	PowerOffPollInterval       = 5
	PowerOffPollTimeout        = 120
	BootPollInterval           = 5
	BootPollTimeout            = 600
	BootConsecutiveUpRounds    = 2
	RTFIPollInterval           = 10
	RTFIPollTimeout            = 3600
	AsyncResultPollInterval    = 2
	AsyncResultPollTimeout     = 600
	RetryInitialIntervalSecond = 1
	RetryMultiplier            = 2
	RetryMaxIntervalSeconds    = 30
	RetryMaxAttempts           = 5
	SuppressHelp               = "SUPPRESS_HELP"
)

// Time units used by every sleep and deadline in sfadmin. Tests set them to
// zero so polling loops run at full speed; they must only be changed before
// any worker starts.
var (
	TimeSecond = time.Second
	TimeMinute = time.Minute
	TimeHour   = time.Hour
)

// SetTimeUnits rescales all time units from the length of one second.
func SetTimeUnits(second time.Duration) {
	TimeSecond = second
	TimeMinute = 60 * second
	TimeHour = 3600 * second
}

// Seconds converts a number of seconds to a duration in the current time unit.
func Seconds(n int) time.Duration {
	return time.Duration(n) * TimeSecond
}

// DefaultsRegistry is the process-wide set of defaults. It is filled once by
// the command launcher from flags, environment and the optional defaults
// file, and is read-only afterwards.
type DefaultsRegistry struct {
	MVIP         string
	Username     string
	Password     string
	IPMIUsername string
	IPMIPassword string
	ParallelMax  int
	APIVersion   float64
	// command line prefix of the chassis commands, e.g. "ipmitool -Ilanplus"
	IPMICommand string
	// path of an optional YAML file mapping node IPs to IPMI IPs
	InventoryPath string
}

// Defaults is the process-wide defaults registry
var Defaults = MakeDefaultsRegistry()

func MakeDefaultsRegistry() DefaultsRegistry {
	return DefaultsRegistry{
		Username:     DefaultUsername,
		Password:     DefaultPassword,
		IPMIUsername: DefaultIPMIUsername,
		IPMIPassword: DefaultIPMIPassword,
		ParallelMax:  DefaultParallelMax,
		APIVersion:   DefaultAPIVersion,
	}
}

var OutputFormatList = []string{"human", "bash", "json"}
var NodeStateList = []string{"all", "active", "pending"}
