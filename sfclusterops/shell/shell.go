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

// Package shell runs the few external commands sfadmin needs: ipmitool for
// chassis power and ping for reachability.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/solidfire/sfadmin/sferrors"
)

// DefaultTimeout bounds every subprocess unless the caller asks otherwise
const DefaultTimeout = 60 * time.Second

// Result is what a finished command printed
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes one command. A non-zero exit status is reported as a
// *sferrors.CommandError and an expired timeout as a *sferrors.TimeoutError.
type Runner interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error)
}

// ExecRunner runs commands as local subprocesses
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("empty command")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, &sferrors.TimeoutError{Operation: argv[0], Timeout: timeout}
	}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, &sferrors.CommandError{
			Command:  strings.Join(argv, " "),
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(res.Stderr),
			Err:      err,
		}
	}
	return res, nil
}

// ParseCommandLine splits a command line the way a POSIX shell would,
// honoring quotes and escapes.
func ParseCommandLine(line string) ([]string, error) {
	argv, err := shellwords.Parse(line)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	return argv, nil
}

// Ping sends one ICMP echo to ip and reports whether it answered
func Ping(ctx context.Context, runner Runner, ip string) bool {
	_, err := runner.Run(ctx, PingCommand(ip), 5*time.Second)
	return err == nil
}

// PingCommand is the argv of a single ping
func PingCommand(ip string) []string {
	return []string{"ping", "-c", "1", "-W", "2", ip}
}
