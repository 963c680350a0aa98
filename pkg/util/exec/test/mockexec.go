/*
Copyright 2025 The Rook Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package test provides a mock command executor for unit tests.
package test

import "time"

// MockExecutor substitutes canned responses for external commands.
type MockExecutor struct {
	MockExecuteCommandWithOutput         func(command string, arg ...string) (string, error)
	MockExecuteCommandWithCombinedOutput func(command string, arg ...string) (string, error)
	MockExecuteCommandWithTimeout        func(timeout time.Duration, command string, arg ...string) (string, error)
	MockExecuteCommandWithStdin          func(timeout time.Duration, stdin, command string, arg ...string) (string, error)
}

// ExecuteCommandWithOutput mocks ExecuteCommandWithOutput.
func (e *MockExecutor) ExecuteCommandWithOutput(command string, arg ...string) (string, error) {
	if e.MockExecuteCommandWithOutput != nil {
		return e.MockExecuteCommandWithOutput(command, arg...)
	}
	return "", nil
}

// ExecuteCommandWithCombinedOutput mocks ExecuteCommandWithCombinedOutput.
func (e *MockExecutor) ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error) {
	if e.MockExecuteCommandWithCombinedOutput != nil {
		return e.MockExecuteCommandWithCombinedOutput(command, arg...)
	}
	return "", nil
}

// ExecuteCommandWithTimeout mocks ExecuteCommandWithTimeout.
func (e *MockExecutor) ExecuteCommandWithTimeout(timeout time.Duration, command string, arg ...string) (string, error) {
	if e.MockExecuteCommandWithTimeout != nil {
		return e.MockExecuteCommandWithTimeout(timeout, command, arg...)
	}
	return "", nil
}

// ExecuteCommandWithStdin mocks ExecuteCommandWithStdin.
func (e *MockExecutor) ExecuteCommandWithStdin(timeout time.Duration, stdin, command string, arg ...string) (string, error) {
	if e.MockExecuteCommandWithStdin != nil {
		return e.MockExecuteCommandWithStdin(timeout, stdin, command, arg...)
	}
	return "", nil
}
