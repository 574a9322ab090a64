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
	"fmt"

	"github.com/spf13/viper"
)

// DefaultsConfig is the content of the optional defaults file given with
// --config or SFCONFIG. Every key is optional, e.g.
//
//	mvip: 10.0.0.100
//	username: admin
//	ipmiUsername: root
//	ipmiCommand: sudo -n ipmitool -I lanplus
//	inventory: /etc/sfadmin/sfadmin_inventory.yaml
//	parallelMax: 8
//
// The file is never written by sfadmin.
type DefaultsConfig struct {
	MVIP         string `yaml:"mvip" mapstructure:"mvip"`
	Username     string `yaml:"username" mapstructure:"username"`
	Password     string `yaml:"password" mapstructure:"password"`
	IPMIUsername string `yaml:"ipmiUsername" mapstructure:"ipmiUsername"`
	IPMIPassword string `yaml:"ipmiPassword" mapstructure:"ipmiPassword"`
	IPMICommand  string `yaml:"ipmiCommand" mapstructure:"ipmiCommand"`
	Inventory    string `yaml:"inventory" mapstructure:"inventory"`
	ParallelMax  int    `yaml:"parallelMax" mapstructure:"parallelMax"`
	APIVersion   string `yaml:"apiVersion" mapstructure:"apiVersion"`
	LogPath      string `yaml:"logPath" mapstructure:"logPath"`
}

// loadConfigToViper can fill viper keys using the defaults file. Values
// given on the command line or in the environment still take precedence.
func loadConfigToViper(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("fail to read configuration file %q: %w", configPath, err)
	}

	// reject files whose values do not have the expected types
	var cfg DefaultsConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("fail to unmarshal configuration file %q: %w", configPath, err)
	}
	return nil
}
