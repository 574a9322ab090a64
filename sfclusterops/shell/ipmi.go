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

package shell

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/solidfire/sfadmin/sferrors"
)

// PowerAction is the last word of an ipmitool chassis power command
type PowerAction string

const (
	PowerOn     PowerAction = "on"
	PowerOff    PowerAction = "off"
	PowerStatus PowerAction = "status"
	PowerCycle  PowerAction = "cycle"
)

// PowerState is the chassis power reported by the BMC
type PowerState string

const (
	PowerStateOn      PowerState = "on"
	PowerStateOff     PowerState = "off"
	PowerStateUnknown PowerState = "unknown"
)

// DefaultIPMICommand is the command line prefix of every chassis command.
// Operators can replace it, e.g. to go through sudo or another interface.
const DefaultIPMICommand = "ipmitool -Ilanplus"

var powerStatusRe = regexp.MustCompile(`Chassis Power is (on|off)`)

// IPMI builds and runs ipmitool commands against node BMCs
type IPMI struct {
	Runner   Runner
	Username string
	Password string
	// Tool is the argv prefix placed before the credentials. Empty means
	// DefaultIPMICommand.
	Tool []string
}

// NewIPMI builds an IPMI whose command prefix is parsed from commandLine
func NewIPMI(runner Runner, commandLine, username, password string) (*IPMI, error) {
	if strings.TrimSpace(commandLine) == "" {
		commandLine = DefaultIPMICommand
	}
	tool, err := ParseCommandLine(commandLine)
	if err != nil {
		return nil, fmt.Errorf("invalid ipmi command %q: %w", commandLine, err)
	}
	return &IPMI{
		Runner:   runner,
		Username: username,
		Password: password,
		Tool:     tool,
	}, nil
}

// Command returns the ipmitool argv for action on the BMC at ip
func (i *IPMI) Command(ip string, action PowerAction) []string {
	tool := i.Tool
	if len(tool) == 0 {
		tool = strings.Fields(DefaultIPMICommand)
	}
	argv := make([]string, 0, len(tool)+6)
	argv = append(argv, tool...)
	return append(argv,
		"-U"+i.Username,
		"-P"+i.Password,
		"-H"+ip,
		"chassis", "power", string(action),
	)
}

// Chassis runs one chassis power command and returns its output
func (i *IPMI) Chassis(ctx context.Context, ip string, action PowerAction) (string, error) {
	res, err := i.Runner.Run(ctx, i.Command(ip, action), DefaultTimeout)
	if err != nil {
		return "", i.maskPassword(err)
	}
	return res.Stdout, nil
}

// Status asks the BMC for the chassis power state
func (i *IPMI) Status(ctx context.Context, ip string) (PowerState, error) {
	out, err := i.Chassis(ctx, ip, PowerStatus)
	if err != nil {
		return PowerStateUnknown, err
	}
	return ParsePowerStatus(out)
}

// ParsePowerStatus reads the output of "chassis power status"
func ParsePowerStatus(out string) (PowerState, error) {
	m := powerStatusRe.FindStringSubmatch(out)
	if m == nil {
		return PowerStateUnknown, fmt.Errorf("unexpected ipmitool output %q", strings.TrimSpace(out))
	}
	return PowerState(m[1]), nil
}

// the password must never end up in a log record
func (i *IPMI) maskPassword(err error) error {
	var cmdErr *sferrors.CommandError
	if i.Password == "" || !errors.As(err, &cmdErr) {
		return err
	}
	masked := *cmdErr
	masked.Command = strings.ReplaceAll(cmdErr.Command, "-P"+i.Password, "-P******")
	return &masked
}
