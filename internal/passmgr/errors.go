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

package passmgr

import (
	"errors"
	"fmt"
)

// PassError reports a pass that failed, halting the pipeline.
type PassError struct {
	Pass   string
	Method string
	Err    error
}

func (self *PassError) Error() string {
	if self.Method == "" {
		return fmt.Sprintf("pass %s failed: %v", self.Pass, self.Err)
	} else {
		return fmt.Sprintf("pass %s failed on %s: %v", self.Pass, self.Method, self.Err)
	}
}

func (self *PassError) Unwrap() error {
	return self.Err
}

// PreconditionError reports a program that cannot be optimized at all. No
// pass has run when it is returned.
type PreconditionError struct {
	Method string
	Err    error
}

func (self *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated by %s: %v", self.Method, self.Err)
}

func (self *PreconditionError) Unwrap() error {
	return self.Err
}

var errNoCode = errors.New("concrete method has no code")
