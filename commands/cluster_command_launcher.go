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

// Package commands is the sfadmin command line: one cobra subcommand per
// action, the shared flag handling and the output formats.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/shell"
	"github.com/solidfire/sfadmin/sferrors"
)

const CLIVersion = "1.0.0"

// *Flag is for the flag name, *Key is for viper key name
// They are bound together
const (
	mvipFlag                   = "mvip"
	mvipKey                    = "mvip"
	usernameFlag               = "username"
	usernameKey                = "username"
	passwordFlag               = "password"
	passwordKey                = "password"
	passwordFileFlag           = "password-file"
	readPasswordFromPromptFlag = "read-password-from-prompt"
	ipmiUsernameFlag           = "ipmi-username"
	ipmiUsernameKey            = "ipmiUsername"
	ipmiPasswordFlag           = "ipmi-password"
	ipmiPasswordKey            = "ipmiPassword"
	ipmiCommandFlag            = "ipmi-command"
	ipmiCommandKey             = "ipmiCommand"
	inventoryFlag              = "inventory"
	inventoryKey               = "inventory"
	parallelMaxFlag            = "parallel-max"
	parallelMaxKey             = "parallelMax"
	apiVersionFlag             = "api-version"
	apiVersionKey              = "apiVersion"
	logPathFlag                = "log-path"
	logPathKey                 = "logPath"
	configFlag                 = "config"
	configKey                  = "config"
	verboseFlag                = "verbose"
	verboseKey                 = "verbose"
	outputFormatFlag           = "output-format"
)

// environment variables read through viper
const (
	sfMVIPEnv        = "SFMVIP"
	sfUsernameEnv    = "SFUSERNAME"
	sfPasswordEnv    = "SFPASSWORD"
	sfIPMIUserEnv    = "SFIPMI_USER"
	sfIPMIPassEnv    = "SFIPMI_PASS"
	sfIPMICommandEnv = "SFIPMI_COMMAND"
	sfLogPathEnv     = "SFLOG_PATH"
	sfParallelMaxEnv = "SFPARALLEL_MAX"
	sfInventoryEnv   = "SFINVENTORY"
	sfConfigEnv      = "SFCONFIG"
)

// flags to viper key map
var flagKeyMap = map[string]string{
	mvipFlag:         mvipKey,
	usernameFlag:     usernameKey,
	passwordFlag:     passwordKey,
	ipmiUsernameFlag: ipmiUsernameKey,
	ipmiPasswordFlag: ipmiPasswordKey,
	ipmiCommandFlag:  ipmiCommandKey,
	inventoryFlag:    inventoryKey,
	parallelMaxFlag:  parallelMaxKey,
	apiVersionFlag:   apiVersionKey,
	logPathFlag:      logPathKey,
	configFlag:       configKey,
	verboseFlag:      verboseKey,
}

// viper key to environment variable map
var keyEnvMap = map[string]string{
	mvipKey:         sfMVIPEnv,
	usernameKey:     sfUsernameEnv,
	passwordKey:     sfPasswordEnv,
	ipmiUsernameKey: sfIPMIUserEnv,
	ipmiPasswordKey: sfIPMIPassEnv,
	ipmiCommandKey:  sfIPMICommandEnv,
	logPathKey:      sfLogPathEnv,
	parallelMaxKey:  sfParallelMaxEnv,
	inventoryKey:    sfInventoryEnv,
	configKey:       sfConfigEnv,
}

const (
	clusterAddNodesSubCmd      = "cluster-add-nodes"
	clusterListNodesSubCmd     = "cluster-list-nodes"
	clusterAddDrivesSubCmd     = "cluster-add-available-drives"
	clusterListFaultsSubCmd    = "cluster-list-faults"
	clusterGetVersionSubCmd    = "cluster-get-version"
	nodeGetDriveCountSubCmd    = "node-get-drive-count"
	nodePowerCycleSubCmd       = "node-power-cycle"
	nodePowerOffSubCmd         = "node-power-off"
	nodePowerOnSubCmd          = "node-power-on"
	accountCreateSubCmd        = "account-create"
	volumeCreateSubCmd         = "volume-create"
	volumeDeleteSubCmd         = "volume-delete"
	volgroupCreateSubCmd       = "volgroup-create"
)

// process exit codes
const (
	exitPassed          = 0
	exitFailed          = 1
	exitInvalidArgument = 2
)

// Env is what a command run talks to. Tests replace the HTTP client and the
// shell runner with the ones of the simulator.
type Env struct {
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	HTTPClient sfclusterops.HTTPDoer
	Runner     shell.Runner
	Color      bool
}

// DefaultEnv talks to real clusters and BMCs
func DefaultEnv() Env {
	return Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Runner: shell.ExecRunner{},
		Color:  term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// cmdInterface is an interface that every sfadmin action needs to implement
// for making a basic cobra command
type cmdInterface interface {
	// setLocalFlags declares the flags specific to the action
	setLocalFlags(cmd *cobra.Command)
	// Parse validates and coerces the flag values. It only returns
	// argument errors.
	Parse() error
	Run(ctx context.Context) (Result, error)
	getBase() *CmdBase
}

// reportedError is an error the action framework has already written out
type reportedError struct {
	err error
}

func (e reportedError) Error() string {
	return e.err.Error()
}

func (e reportedError) Unwrap() error {
	return e.err
}

// Execute runs the command line of the process and returns its exit code
func Execute(ctx context.Context) int {
	return Run(ctx, os.Args[1:], DefaultEnv())
}

// Run executes one sfadmin command line and returns the exit code
func Run(ctx context.Context, args []string, env Env) int {
	rootCmd := makeRootCmd(&env)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(env.Stdin)
	rootCmd.SetOut(env.Stdout)
	rootCmd.SetErr(env.Stderr)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(env.Stderr, "Error: %s\n", err)
		}
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitPassed
	case sferrors.IsInvalidArgument(err):
		return exitInvalidArgument
	default:
		return exitFailed
	}
}

func makeRootCmd(env *Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sfadmin",
		Short: "Administer a SolidFire cluster",
		Long: `This CLI is used to administer a SolidFire storage cluster through its JSON-RPC API.
It talks to the cluster API on the MVIP, to the per-node API of each node, and to
the node BMCs over IPMI.

It combines API calls to provide these administrator operations:
- Add pending nodes and their drives to a cluster
- List the nodes, faults and version of a cluster
- Power cycle, power off and power on nodes
- Create accounts, volumes and volume access groups`,
		Version:       CLIVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetFlagErrorFunc(flagError)
	for _, cmd := range constructCmds(env) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.SetGlobalNormalizationFunc(normalizeNoFlags)
	return rootCmd
}

// flagError turns cobra and pflag parse failures into argument errors
func flagError(cmd *cobra.Command, err error) error {
	return &sferrors.InvalidArgumentError{Name: cmd.CommandPath(), Reason: err.Error()}
}

// negatableFlags are the names of the options declared as --no-<name>
var negatableFlags = mapset.NewSet[string]()

// normalizeNoFlags accepts --nortfi for --no-rtfi
func normalizeNoFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if strings.HasPrefix(name, "no") && negatableFlags.Contains(name[2:]) {
		return pflag.NormalizedName("no-" + name[2:])
	}
	return pflag.NormalizedName(name)
}

// makeBasicCobraCmd can make a basic cobra command for all sfadmin actions
func makeBasicCobraCmd(env *Env, i cmdInterface, use, short, long string, commonFlags []string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &sferrors.InvalidArgumentError{Name: cmd.CommandPath(),
					Reason: fmt.Sprintf("unexpected positional arguments %q", args)}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, i)
		},
	}
	c := i.getBase()
	c.env = env
	c.setCommonFlags(cmd, commonFlags)
	i.setLocalFlags(cmd)
	return cmd
}

// constructCmds returns the list of actions
func constructCmds(env *Env) []*cobra.Command {
	return []*cobra.Command{
		// cluster-scope actions
		makeCmdClusterAddNodes(env),
		makeCmdClusterListNodes(env),
		makeCmdClusterAddAvailableDrives(env),
		makeCmdClusterListFaults(env),
		makeCmdClusterGetVersion(env),
		// node-scope actions
		makeCmdNodeGetDriveCount(env),
		makeCmdNodePowerCycle(env),
		makeCmdNodePowerOff(env),
		makeCmdNodePowerOn(env),
		// volume-scope actions
		makeCmdAccountCreate(env),
		makeCmdVolumeCreate(env),
		makeCmdVolumeDelete(env),
		makeCmdVolumeAccessGroupCreate(env),
	}
}

// hideLocalFlags can hide help and usage of local flags in a command
func hideLocalFlags(cmd *cobra.Command, flags []string) {
	for _, flag := range flags {
		err := cmd.Flags().MarkHidden(flag)
		if err != nil {
			fmt.Printf("Warning: fail to hide flag %q, details: %v\n", flag, err)
		}
	}
}

// markFlagsFileName will require some local flags to be file name
func markFlagsFileName(cmd *cobra.Command, flagsWithExts map[string][]string) {
	for flag, ext := range flagsWithExts {
		err := cmd.MarkFlagFilename(flag, ext...)
		if err != nil {
			fmt.Printf("Warning: fail to mark flag %q to be a file name, details: %v\n", flag, err)
		}
	}
}
