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
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/solidfire/sfadmin/sfclusterops/shell"
	"github.com/solidfire/sfadmin/sferrors"
)

// ShellRunner answers ipmitool and ping against the simulated power state.
// Any other command fails.
func (s *Simulator) ShellRunner() shell.Runner {
	return shellRunner{s}
}

type shellRunner struct {
	s *Simulator
}

func (r shellRunner) Run(ctx context.Context, argv []string, _ time.Duration) (shell.Result, error) {
	if err := ctx.Err(); err != nil {
		return shell.Result{}, err
	}
	if len(argv) == 0 {
		return shell.Result{}, errors.New("empty command")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if argv[0] == "ping" {
		return r.s.ping(argv)
	}
	if i := slices.IndexFunc(argv, isIPMITool); i >= 0 && onlyWrappers(argv[:i]) {
		return r.s.ipmitool(argv, argv[i+1:])
	}
	return commandFailed(argv, 127, fmt.Sprintf("%s: command not found", argv[0]))
}

func isIPMITool(arg string) bool {
	return path.Base(arg) == "ipmitool"
}

// sudo and env may front the tool, with their own options
func onlyWrappers(prefix []string) bool {
	for _, arg := range prefix {
		if arg != "sudo" && arg != "env" && !strings.HasPrefix(arg, "-") {
			return false
		}
	}
	return true
}

func commandFailed(argv []string, exitCode int, stderr string) (shell.Result, error) {
	res := shell.Result{Stderr: stderr + "\n", ExitCode: exitCode}
	return res, &sferrors.CommandError{
		Command:  strings.Join(argv, " "),
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

const ipmiSessionError = "Error: Unable to establish IPMI v2 / RMCP+ session"

// ipmitool handles "ipmitool -Ilanplus -U<user> -P<pass> -H<ip> chassis power <action>".
// args is what follows the tool name. -I and -L are accepted in both the
// joined and the separate form and otherwise ignored.
func (s *Simulator) ipmitool(argv, args []string) (shell.Result, error) {
	s.ipmiCommands = append(s.ipmiCommands, append([]string(nil), argv...))

	var user, pass, host string
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-I" || arg == "-L":
			i++
		case strings.HasPrefix(arg, "-U"):
			user = arg[2:]
		case strings.HasPrefix(arg, "-P"):
			pass = arg[2:]
		case strings.HasPrefix(arg, "-H"):
			host = arg[2:]
		case strings.HasPrefix(arg, "-I"), strings.HasPrefix(arg, "-L"):
		default:
			rest = append(rest, arg)
		}
	}
	node := s.st.nodeByIPMIIP(host)
	if node == nil || user != s.cfg.IPMIUsername || pass != s.cfg.IPMIPassword {
		return commandFailed(argv, 1, ipmiSessionError)
	}
	if len(rest) != 3 || rest[0] != "chassis" || rest[1] != "power" {
		return commandFailed(argv, 1, fmt.Sprintf("Invalid command %q", strings.Join(rest, " ")))
	}

	var out string
	switch shell.PowerAction(rest[2]) {
	case shell.PowerStatus:
		out = "Chassis Power is off"
		if node.PoweredOn {
			out = "Chassis Power is on"
		}
	case shell.PowerOn:
		node.PoweredOn = true
		out = "Chassis Power Control: Up/On"
	case shell.PowerOff:
		node.PoweredOn = false
		out = "Chassis Power Control: Down/Off"
	case shell.PowerCycle:
		if !node.PoweredOn {
			return commandFailed(argv, 1, "Set Chassis Power Control to Cycle failed: Command not supported in present state")
		}
		out = "Chassis Power Control: Cycle"
	default:
		return commandFailed(argv, 1, fmt.Sprintf("Invalid chassis power command: %s", rest[2]))
	}
	if rest[2] != string(shell.PowerStatus) {
		s.log.PrintFake("ipmitool chassis power %s on %s (node %s)", rest[2], host, node.MIP)
	}
	return shell.Result{Stdout: out + "\n"}, nil
}

// ping answers for powered-on nodes and the cluster MVIP
func (s *Simulator) ping(argv []string) (shell.Result, error) {
	ip := argv[len(argv)-1]
	up := ip == s.cfg.MVIP
	if node := s.st.nodeByMIP(ip); node != nil {
		up = node.PoweredOn
	}
	if !up {
		return commandFailed(argv, 1, fmt.Sprintf("PING %s: 1 packets transmitted, 0 received, 100%% packet loss", ip))
	}
	return shell.Result{Stdout: fmt.Sprintf("PING %s: 1 packets transmitted, 1 received, 0%% packet loss\n", ip)}, nil
}
