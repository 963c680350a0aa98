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

// Package exec runs the external CLI tools the harness drives (kubectl, ceph
// via the toolbox, ssh helpers) and reports their output and exit status.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/pkg/capnslog"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "exec")

// Executor is the subset of command execution the harness needs. Scenarios
// and clients depend on this interface so unit tests can substitute
// exectest.MockExecutor.
type Executor interface {
	ExecuteCommandWithOutput(command string, arg ...string) (string, error)
	ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error)
	ExecuteCommandWithTimeout(timeout time.Duration, command string, arg ...string) (string, error)
	ExecuteCommandWithStdin(timeout time.Duration, stdin, command string, arg ...string) (string, error)
}

// CommandExecutor runs commands on the host running the harness.
type CommandExecutor struct{}

// ExecuteCommandWithOutput runs a command and returns its trimmed stdout.
// A nonzero exit returns a CommandError carrying the exit status and stderr.
func (*CommandExecutor) ExecuteCommandWithOutput(command string, arg ...string) (string, error) {
	logCommand(command, arg...)
	cmd := exec.Command(command, arg...)
	return runWithOutput(cmd, false)
}

// ExecuteCommandWithCombinedOutput runs a command and returns interleaved
// stdout and stderr, which is what gets captured as evidence.
func (*CommandExecutor) ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error) {
	logCommand(command, arg...)
	cmd := exec.Command(command, arg...)
	return runWithOutput(cmd, true)
}

// ExecuteCommandWithTimeout runs a command, killing it if it outlives the
// timeout.
func (*CommandExecutor) ExecuteCommandWithTimeout(timeout time.Duration, command string, arg ...string) (string, error) {
	logCommand(command, arg...)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, command, arg...)
	out, err := runWithOutput(cmd, true)
	if ctx.Err() == context.DeadlineExceeded {
		return out, &CommandError{command: commandLine(command, arg...), err: ctx.Err()}
	}
	return out, err
}

// ExecuteCommandWithStdin runs a command with the given string piped to its
// standard input, e.g. `kubectl apply -f -` with a rendered manifest.
func (*CommandExecutor) ExecuteCommandWithStdin(timeout time.Duration, stdin, command string, arg ...string) (string, error) {
	logCommand(command, arg...)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, command, arg...)
	cmd.Stdin = strings.NewReader(stdin)
	out, err := runWithOutput(cmd, true)
	if ctx.Err() == context.DeadlineExceeded {
		return out, &CommandError{command: commandLine(command, arg...), err: ctx.Err()}
	}
	return out, err
}

func runWithOutput(cmd *exec.Cmd, combined bool) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if combined {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if err != nil {
		return out, &CommandError{
			command: strings.Join(cmd.Args, " "),
			stderr:  strings.TrimSpace(stderr.String()),
			err:     err,
		}
	}
	return out, nil
}

// CommandError reports a failed external command along with its exit status
// and captured stderr. Scenarios treat these as fail-fast by default; polls
// that opt into retry-on-error see them as "condition not yet met".
type CommandError struct {
	command string
	stderr  string
	err     error
}

func (e *CommandError) Error() string {
	if e.stderr != "" {
		return fmt.Sprintf("command %q failed: %v. stderr: %s", e.command, e.err, e.stderr)
	}
	return fmt.Sprintf("command %q failed: %v", e.command, e.err)
}

func (e *CommandError) Unwrap() error { return e.err }

// ExitStatus returns the command's exit code, or -1 when it did not run to
// completion.
func (e *CommandError) ExitStatus() int {
	exitErr, ok := e.err.(*exec.ExitError)
	if !ok {
		return -1
	}
	waitStatus, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return -1
	}
	return waitStatus.ExitStatus()
}

// Stderr returns the captured standard error of the failed command.
func (e *CommandError) Stderr() string { return e.stderr }

func commandLine(command string, arg ...string) string {
	return strings.TrimSpace(command + " " + strings.Join(arg, " "))
}

func logCommand(command string, arg ...string) {
	logger.Infof("Running command: %s %s", command, strings.Join(arg, " "))
}
