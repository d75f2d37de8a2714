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
	"go.uber.org/zap"
)

type Options struct {
	Workers     int
	TestingMode bool
	Logger      *zap.Logger
	Config      *Config
}

func (self *Options) Parallel() bool {
	return self.Workers > 1
}

// Apply merges the settings of a configuration bundle. Values the bundle
// leaves unset keep their current setting.
func (self *Options) Apply(conf *Config) {
	if conf == nil {
		return
	}
	if conf.Workers != 0 {
		self.Workers = conf.Workers
	}
	if conf.TestingMode {
		self.TestingMode = true
	}
	self.Config = conf
}

func GetDefaultOptions() Options {
	return Options{
		Workers:     Workers,
		TestingMode: false,
		Logger:      zap.NewNop(),
		Config:      NewConfig(),
	}
}
