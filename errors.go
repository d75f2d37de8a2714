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

	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/dex/asm"
	"github.com/yimq/redex/internal/opts"
	"github.com/yimq/redex/internal/passmgr"
	"github.com/yimq/redex/internal/snapshot"
)

type (
	// PassError occurs when a pass fails. No later pass has run.
	PassError = passmgr.PassError

	// PreconditionError occurs when the program is rejected before any pass runs.
	PreconditionError = passmgr.PreconditionError

	// SyntaxError occurs when failed to parse the assembly form of a program.
	SyntaxError = asm.SyntaxError

	// ConfigError occurs when a configuration bundle cannot be used.
	ConfigError = opts.ConfigError

	// FormatError occurs when a snapshot does not describe a valid program.
	FormatError = snapshot.FormatError

	// InstrError describes one malformed instruction found by the verifier.
	InstrError = dex.InstrError
)

// UnknownPassError occurs when a pipeline names a pass that does not exist.
type UnknownPassError struct {
	Name string
}

func (self UnknownPassError) Error() string {
	return fmt.Sprintf("unknown pass: %s", self.Name)
}
