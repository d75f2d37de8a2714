/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package opts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the configuration bundle handed unchanged to every pass.
//
//	passes       = ["PeepholePass"]
//	workers      = 4
//	testing_mode = false
//
//	[pass.PeepholePass]
//	disabled_rules = ["Arith_MulLit_Pow2"]
type Config struct {
	Passes      []string                          `toml:"passes"`
	Workers     int                               `toml:"workers"`
	TestingMode bool                              `toml:"testing_mode"`
	Pass        map[string]map[string]interface{} `toml:"pass"`
}

// ConfigError is returned for a configuration bundle that cannot be used.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (self *ConfigError) Error() string {
	if self.Err == nil {
		return fmt.Sprintf("config %s: %s", self.Path, self.Reason)
	} else {
		return fmt.Sprintf("config %s: %s: %v", self.Path, self.Reason, self.Err)
	}
}

func (self *ConfigError) Unwrap() error {
	return self.Err
}

func NewConfig() *Config {
	return &Config{Pass: make(map[string]map[string]interface{})}
}

// LoadConfig reads a TOML configuration bundle from a file.
func LoadConfig(path string) (*Config, error) {
	ret := NewConfig()
	md, err := toml.DecodeFile(path, ret)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "cannot decode", Err: err}
	}
	return ret.validate(path, md)
}

// ParseConfig decodes a TOML configuration bundle from a string.
func ParseConfig(src string) (*Config, error) {
	ret := NewConfig()
	md, err := toml.Decode(src, ret)
	if err != nil {
		return nil, &ConfigError{Path: "<string>", Reason: "cannot decode", Err: err}
	}
	return ret.validate("<string>", md)
}

func (self *Config) validate(path string, md toml.MetaData) (*Config, error) {
	var keys []string

	/* reject unknown keys outside of the per-pass tables */
	for _, k := range md.Undecoded() {
		if len(k) == 0 || k[0] != "pass" {
			keys = append(keys, k.String())
		}
	}
	if len(keys) != 0 {
		sort.Strings(keys)
		return nil, &ConfigError{Path: path, Reason: "unknown keys " + strings.Join(keys, ", ")}
	}

	/* worker count */
	if self.Workers < 0 {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("invalid worker count %d", self.Workers)}
	}
	if self.Pass == nil {
		self.Pass = make(map[string]map[string]interface{})
	}
	return self, nil
}

// ForPass returns the settings table of a pass, which may be empty.
func (self *Config) ForPass(name string) map[string]interface{} {
	if self == nil || self.Pass[name] == nil {
		return map[string]interface{}{}
	}
	return self.Pass[name]
}

// Strings reads a string list setting of a pass.
func (self *Config) Strings(pass string, key string) ([]string, error) {
	v, ok := self.ForPass(pass)[key]
	if !ok {
		return nil, nil
	}
	vv, ok := v.([]interface{})
	if !ok {
		return nil, &ConfigError{Path: pass, Reason: fmt.Sprintf("%s must be a list of strings", key)}
	}
	ret := make([]string, 0, len(vv))
	for _, x := range vv {
		s, ok := x.(string)
		if !ok {
			return nil, &ConfigError{Path: pass, Reason: fmt.Sprintf("%s must be a list of strings", key)}
		}
		ret = append(ret, s)
	}
	return ret, nil
}
