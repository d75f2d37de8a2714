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

package redex

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yimq/redex/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithWorkers sets the number of goroutines a pass may use to process
// methods in parallel.
//
// Every method is owned by exactly one worker, so passes never see a code
// unit being modified concurrently.
//
// The default value of this option is "1", which processes methods serially.
func WithWorkers(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("redex: invalid worker count: %d", n))
	} else {
		return func(o *opts.Options) { o.Workers = n }
	}
}

// WithTestingMode disables the invariant checks between passes. The program
// is still checked before the first pass.
func WithTestingMode(v bool) Option {
	return func(o *opts.Options) { o.TestingMode = v }
}

// WithLogger sets the logger for the pass manager and every pass.
func WithLogger(log *zap.Logger) Option {
	if log == nil {
		panic("redex: nil logger")
	} else {
		return func(o *opts.Options) { o.Logger = log }
	}
}

// WithConfig applies a configuration bundle. The bundle selects the
// pipeline, and is handed unchanged to every pass.
func WithConfig(conf *opts.Config) Option {
	return func(o *opts.Options) { o.Apply(conf) }
}

// LoadConfig reads a TOML configuration bundle.
func LoadConfig(path string) (*opts.Config, error) {
	return opts.LoadConfig(path)
}

// SetDefaultWorkers sets the default worker count for all runs from now on.
//
// This value can also be configured with the `REDEX_WORKERS` environment
// variable.
//
// Returns the old opts.Workers value.
func SetDefaultWorkers(n int) int {
	n, opts.Workers = opts.Workers, n
	return n
}
