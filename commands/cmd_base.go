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

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/inventory"
	"github.com/solidfire/sfadmin/sfclusterops/shell"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
	"github.com/solidfire/sfadmin/sferrors"
)

const (
	outputHuman = "human"
	outputBash  = "bash"
	outputJSON  = "json"
)

// common flag sets passed to makeBasicCobraCmd. Node actions accept --mvip
// like every action but do not require it.
var (
	clusterFlags = []string{mvipFlag, usernameFlag, passwordFlag, apiVersionFlag}
	nodeFlags    = []string{mvipFlag, usernameFlag, passwordFlag, apiVersionFlag}
	ipmiFlags    = []string{mvipFlag, usernameFlag, passwordFlag, apiVersionFlag,
		ipmiUsernameFlag, ipmiPasswordFlag, ipmiCommandFlag, inventoryFlag, parallelMaxFlag}
)

/* CmdBase
 *
 * Basic/common fields of sfadmin actions
 */
type CmdBase struct {
	env    *Env
	parser *cobra.Command
	log    vlog.Printer

	mvip                   string
	username               string
	password               string
	passwordFile           string
	readPasswordFromPrompt bool
	ipmiUsername           string
	ipmiPassword           string
	ipmiCommand            string
	ipmiTool               *shell.IPMI
	inventoryPath          string
	parallelMax            int
	apiVersion             float64
	logPath                string
	configPath             string
	verbose                bool
	outputFormat           string

	rawAPIVersion string
	commonFlags   []string
}

func (c *CmdBase) getBase() *CmdBase {
	return c
}

// setCommonFlags is a helper function to let actions set some shared flags among them
func (c *CmdBase) setCommonFlags(cmd *cobra.Command, flags []string) {
	c.parser = cmd
	c.commonFlags = flags
	if util.StringInArray(mvipFlag, flags) {
		cmd.Flags().StringVar(
			&c.mvip,
			mvipFlag,
			"",
			"Management virtual IP of the cluster",
		)
	}
	if util.StringInArray(usernameFlag, flags) {
		cmd.Flags().StringVarP(
			&c.username,
			usernameFlag,
			"u",
			util.DefaultUsername,
			"Cluster admin username",
		)
	}
	if util.StringInArray(passwordFlag, flags) {
		c.setPasswordFlags(cmd)
	}
	if util.StringInArray(apiVersionFlag, flags) {
		cmd.Flags().StringVar(
			&c.rawAPIVersion,
			apiVersionFlag,
			sfclusterops.FormatAPIVersion(util.DefaultAPIVersion),
			"API version to request from the cluster",
		)
		hideLocalFlags(cmd, []string{apiVersionFlag})
	}
	if util.StringInArray(ipmiCommandFlag, flags) {
		cmd.Flags().StringVar(
			&c.ipmiCommand,
			ipmiCommandFlag,
			shell.DefaultIPMICommand,
			"Command line that runs ipmitool, credentials and chassis command are appended to it",
		)
	}
	if util.StringInArray(ipmiUsernameFlag, flags) {
		cmd.Flags().StringVar(
			&c.ipmiUsername,
			ipmiUsernameFlag,
			util.DefaultIPMIUsername,
			"IPMI username of the node BMCs",
		)
		cmd.Flags().StringVar(
			&c.ipmiPassword,
			ipmiPasswordFlag,
			util.DefaultIPMIPassword,
			"IPMI password of the node BMCs",
		)
		cmd.Flags().StringVar(
			&c.inventoryPath,
			inventoryFlag,
			"",
			util.GetOptionalFlagMsg("Path to a YAML file mapping node IPs to IPMI IPs"),
		)
		markFlagsFileName(cmd, map[string][]string{inventoryFlag: {"yaml"}})
		cmd.Flags().IntVar(
			&c.parallelMax,
			parallelMaxFlag,
			util.DefaultParallelMax,
			"Maximum number of nodes to work on at the same time",
		)
	}

	// the flags below are shared by every action
	cmd.Flags().StringVar(
		&c.outputFormat,
		outputFormatFlag,
		outputHuman,
		fmt.Sprintf("Output format, one of {%s}", strings.Join(util.OutputFormatList, ", ")),
	)
	cmd.Flags().StringVarP(
		&c.logPath,
		logPathFlag,
		"l",
		vlog.DefaultLogPath(),
		"Path location used for the debug logs",
	)
	markFlagsFileName(cmd, map[string][]string{logPathFlag: {"log"}})
	cmd.Flags().StringVarP(
		&c.configPath,
		configFlag,
		"c",
		"",
		util.GetOptionalFlagMsg("Path to a YAML file with default values for the common flags"),
	)
	markFlagsFileName(cmd, map[string][]string{configFlag: {"yaml"}})
	cmd.Flags().BoolVar(
		&c.verbose,
		verboseFlag,
		false,
		"Show debug records in the console",
	)
}

// setPasswordFlags sets all the password flags
func (c *CmdBase) setPasswordFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(
		&c.password,
		passwordFlag,
		"p",
		util.DefaultPassword,
		"Cluster admin password",
	)
	cmd.Flags().StringVar(
		&c.passwordFile,
		passwordFileFlag,
		"",
		"Path to the file to read the password from. "+
			"If - is passed, the password is read from stdin",
	)
	cmd.Flags().BoolVar(
		&c.readPasswordFromPrompt,
		readPasswordFromPromptFlag,
		false,
		"Prompt the user to enter the password",
	)
}

// negatedBool backs a --no-<name> flag. Giving the flag turns the option off.
type negatedBool struct {
	enabled *bool
}

func (b negatedBool) String() string {
	if b.enabled == nil {
		return "false"
	}
	return strconv.FormatBool(!*b.enabled)
}

func (b negatedBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.enabled = !v
	return nil
}

func (b negatedBool) Type() string {
	return "bool"
}

// setNoFlag declares --no-<name> for an option that is on by default
func setNoFlag(cmd *cobra.Command, enabled *bool, name, usage string) {
	*enabled = true
	negatableFlags.Add(name)
	flag := cmd.Flags().VarPF(negatedBool{enabled}, "no-"+name, "", usage)
	flag.NoOptDefVal = "true"
}

// configViper loads the common options using this order:
// user input -> environment variables -> config file -> flag default
func (c *CmdBase) configViper(cmd *cobra.Command) error {
	v := viper.New()
	flags := append([]string{logPathFlag, configFlag, verboseFlag}, c.commonFlags...)
	for _, flag := range flags {
		key, ok := flagKeyMap[flag]
		if !ok {
			continue
		}
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("fail to bind viper key %q to flag %q: %w", key, flag, err)
		}
		if envVar, ok := keyEnvMap[key]; ok {
			if err := v.BindEnv(key, envVar); err != nil {
				return fmt.Errorf("fail to bind viper key %q to environment variable %q: %w", key, envVar, err)
			}
		}
	}
	if err := loadConfigToViper(v, v.GetString(configKey)); err != nil {
		return err
	}
	return c.setOptionsUsingViper(v)
}

// setOptionsUsingViper assigns the viper values of the common options and
// fills the process-wide defaults registry from them
func (c *CmdBase) setOptionsUsingViper(v *viper.Viper) error {
	var err error
	if c.outputFormat, err = util.ParseSelection(outputFormatFlag, c.outputFormat, util.OutputFormatList); err != nil {
		return err
	}
	if c.logPath, err = resolvePath(logPathFlag, v.GetString(logPathKey)); err != nil {
		return err
	}
	c.verbose = v.GetBool(verboseKey)

	registry := util.MakeDefaultsRegistry()
	if util.StringInArray(mvipFlag, c.commonFlags) {
		c.mvip = v.GetString(mvipKey)
		registry.MVIP = c.mvip
	}
	if util.StringInArray(usernameFlag, c.commonFlags) {
		c.username = v.GetString(usernameKey)
		registry.Username = c.username
	}
	if util.StringInArray(passwordFlag, c.commonFlags) {
		if err = c.setPassword(v); err != nil {
			return err
		}
		registry.Password = c.password
	}
	if util.StringInArray(apiVersionFlag, c.commonFlags) {
		if c.apiVersion, err = sfclusterops.ParseAPIVersion(v.GetString(apiVersionKey)); err != nil {
			return sferrors.NewInvalidArgument(apiVersionFlag, v.GetString(apiVersionKey), "not an API version")
		}
		registry.APIVersion = c.apiVersion
	}
	if util.StringInArray(ipmiUsernameFlag, c.commonFlags) {
		c.ipmiUsername = v.GetString(ipmiUsernameKey)
		c.ipmiPassword = v.GetString(ipmiPasswordKey)
		if c.inventoryPath, err = resolvePath(inventoryFlag, v.GetString(inventoryKey)); err != nil {
			return err
		}
		if c.parallelMax, err = util.ParsePositiveInt(parallelMaxFlag, v.Get(parallelMaxKey)); err != nil {
			return err
		}
		registry.IPMIUsername = c.ipmiUsername
		registry.IPMIPassword = c.ipmiPassword
		registry.InventoryPath = c.inventoryPath
		registry.ParallelMax = c.parallelMax
	}
	if util.StringInArray(ipmiCommandFlag, c.commonFlags) {
		c.ipmiCommand = v.GetString(ipmiCommandKey)
		c.ipmiTool, err = shell.NewIPMI(c.env.Runner, c.ipmiCommand, c.ipmiUsername, c.ipmiPassword)
		if err != nil {
			return sferrors.NewInvalidArgument(ipmiCommandFlag, c.ipmiCommand, "%v", err)
		}
		registry.IPMICommand = c.ipmiCommand
	}
	// written once, before any worker starts
	util.Defaults = registry
	return nil
}

// resolvePath makes a file argument absolute and expands a leading ~. An
// empty path stays empty.
func resolvePath(flag, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := util.ResolveToAbsPath(path)
	if err != nil {
		return "", sferrors.NewInvalidArgument(flag, path, "%v", err)
	}
	return abs, nil
}

// setPassword picks the password from --password-file, the prompt, or
// the viper value of --password, in that order
func (c *CmdBase) setPassword(v *viper.Viper) error {
	given := 0
	for _, flag := range []string{passwordFlag, passwordFileFlag, readPasswordFromPromptFlag} {
		if c.parser.Flags().Changed(flag) {
			given++
		}
	}
	if given > 1 {
		return sferrors.NewInvalidArgument(passwordFlag, "******",
			"only one of --%s, --%s and --%s can be given", passwordFlag, passwordFileFlag, readPasswordFromPromptFlag)
	}
	switch {
	case c.parser.Flags().Changed(passwordFileFlag):
		password, err := c.passwordFileHelper(c.passwordFile)
		if err != nil {
			return err
		}
		c.password = password
	case c.readPasswordFromPrompt:
		password, err := readPasswordFromPrompt(c.env.Stdin, c.env.Stderr)
		if err != nil {
			return err
		}
		c.password = password
	default:
		c.password = v.GetString(passwordKey)
	}
	return nil
}

func (c *CmdBase) passwordFileHelper(passwordFile string) (string, error) {
	if passwordFile == "" {
		return "", sferrors.NewInvalidArgument(passwordFileFlag, passwordFile, "password file path is empty")
	}
	// hyphen(`-`) is used to indicate that input should come
	// from stdin rather than from a file
	if passwordFile == "-" {
		passwordBytes, err := io.ReadAll(c.env.Stdin)
		if err != nil {
			return "", fmt.Errorf("error reading password from stdin: %w", err)
		}
		return strings.TrimSuffix(string(passwordBytes), "\n"), nil
	}

	passwordBytes, err := os.ReadFile(passwordFile)
	if err != nil {
		return "", fmt.Errorf("error reading password from file %q: %w", passwordFile, err)
	}
	// Convert bytes to string, removing any newline characters
	return strings.TrimSuffix(string(passwordBytes), "\n"), nil
}

func readPasswordFromPrompt(in io.Reader, out io.Writer) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("cannot prompt for the password, stdin is not a terminal")
	}
	fmt.Fprint(out, "Password: ")
	passwordBytes, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("fail to read the password: %w", err)
	}
	return string(passwordBytes), nil
}

// parseMVIP validates the cluster address. Every cluster-scope action needs it.
func (c *CmdBase) parseMVIP() error {
	if c.mvip == "" {
		return sferrors.NewInvalidArgument(mvipFlag, c.mvip,
			"is required, pass --%s or set %s", mvipFlag, sfMVIPEnv)
	}
	_, err := util.ParseIPv4(mvipFlag, c.mvip)
	return err
}

// parseOptionalMVIP checks --mvip on actions that accept it without needing it
func (c *CmdBase) parseOptionalMVIP() error {
	if c.mvip == "" {
		return nil
	}
	_, err := util.ParseIPv4(mvipFlag, c.mvip)
	return err
}

func (c *CmdBase) connectionOptions() sfclusterops.ConnectionOptions {
	opts := sfclusterops.DefaultConnectionOptions()
	opts.HTTPClient = c.env.HTTPClient
	return opts
}

func (c *CmdBase) clusterClient() *sfclusterops.ClusterClient {
	return sfclusterops.NewClusterClient(c.connectionOptions(), c.log)
}

func (c *CmdBase) nodeClient(nodeIP string) *sfclusterops.NodeClient {
	return sfclusterops.NewNodeClient(nodeIP, c.connectionOptions(), c.log)
}

func (c *CmdBase) ipmi() *shell.IPMI {
	return c.ipmiTool
}

// ipmiResolver pairs --node-ips with --ipmi-ips when both are given, and
// falls back to the inventory file otherwise
func (c *CmdBase) ipmiResolver(nodeIPs, ipmiIPs []string) (sfclusterops.IPMIResolver, error) {
	if len(ipmiIPs) > 0 {
		return inventory.MakeStaticResolver(nodeIPs, ipmiIPs)
	}
	if c.inventoryPath == "" {
		return nil, sferrors.NewInvalidArgument("ipmi-ips", "",
			"is required when no --%s file is given", inventoryFlag)
	}
	if !util.CheckPathExist(c.inventoryPath) {
		return nil, sferrors.NewInvalidArgument(inventoryFlag, c.inventoryPath, "file does not exist")
	}
	inv, err := inventory.ReadInventory(c.inventoryPath, c.log)
	if err != nil {
		return nil, sferrors.NewInvalidArgument(inventoryFlag, c.inventoryPath, "%v", err)
	}
	return &inv, nil
}

// runAction is the body shared by every action: load the common options,
// set up the logger, validate, run, and write the outcome
func runAction(cmd *cobra.Command, i cmdInterface) error {
	c := i.getBase()
	if err := c.configViper(cmd); err != nil {
		return err
	}
	log, err := vlog.Setup(c.logPath, c.env.Stderr)
	if err != nil {
		return err
	}
	log.SetColor(c.env.Color)
	log.SetVerbose(c.verbose)
	if c.outputFormat != outputHuman {
		log.Silence()
	}
	c.log = log.WithName(cmd.Name())
	c.log.Info("New sfadmin command", "action", cmd.Name(), "outputFormat", c.outputFormat)

	var res Result
	err = i.Parse()
	if err == nil {
		res, err = i.Run(cmd.Context())
	}
	return c.emit(cmd.Name(), res, err)
}

// emit writes the outcome of an action in the selected output format. On
// failure nothing is written to stdout.
func (c *CmdBase) emit(action string, res Result, runErr error) error {
	if runErr != nil {
		c.log.Error(runErr, "action failed", "action", action)
		if c.outputFormat == outputHuman {
			c.log.PrintFailed("%s failed: %v", action, runErr)
		} else {
			fmt.Fprintf(c.env.Stderr, "Error: %s failed: %v\n", action, runErr)
		}
		return reportedError{runErr}
	}
	switch c.outputFormat {
	case outputBash:
		fmt.Fprintln(c.env.Stdout, res.bashLine())
	case outputJSON:
		line, err := res.jsonLine()
		if err != nil {
			return err
		}
		fmt.Fprintln(c.env.Stdout, line)
	default:
		summary := res.Summary
		if summary == "" {
			summary = action + " passed"
		}
		c.log.PrintPassed("%s", summary)
	}
	return nil
}

// trimList drops the blanks pflag leaves around the elements of a
// comma-separated list flag
func trimList(items []string) []string {
	if len(items) == 0 {
		return items
	}
	return util.SplitList(strings.Join(items, ","))
}

// withCancel is used by actions that fan out, so the first failure stops
// the workers that have not started yet
func withCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithCancel(ctx)
}
