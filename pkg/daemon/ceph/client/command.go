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

// Package client queries Ceph daemon state through the rook-ceph toolbox pod.
// The harness never links librados; every Ceph interaction is the same
// `kubectl exec ... ceph` the toolbox documentation prescribes, parsed from
// its JSON output.
package client

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rook/ceph-chaos/pkg/util/exec"
)

const (
	// CephTool is the name of the 'ceph' CLI inside the toolbox.
	CephTool = "ceph"
	// toolboxDeployment is the deployment the rook toolbox manifest creates.
	toolboxDeployment = "deploy/rook-ceph-tools"

	defaultCommandTimeout = 60 * time.Second
)

// ToolboxCommander shells Ceph commands into the toolbox pod of a cluster
// namespace.
type ToolboxCommander struct {
	Executor  exec.Executor
	Namespace string
	// Timeout bounds each toolbox command; zero means the default.
	Timeout time.Duration
}

// NewToolboxCommander returns a commander for the given cluster namespace.
func NewToolboxCommander(executor exec.Executor, namespace string) *ToolboxCommander {
	return &ToolboxCommander{Executor: executor, Namespace: namespace}
}

// Ceph runs a ceph CLI command in the toolbox and returns its output.
func (c *ToolboxCommander) Ceph(args ...string) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultCommandTimeout
	}
	cmdArgs := append([]string{"-n", c.Namespace, "exec", toolboxDeployment, "--", CephTool}, args...)
	out, err := c.Executor.ExecuteCommandWithTimeout(timeout, "kubectl", cmdArgs...)
	if err != nil {
		return out, errors.Wrapf(err, "failed to run ceph %v in toolbox", args)
	}
	return out, nil
}

// CephJSON runs a ceph CLI command with JSON output format.
func (c *ToolboxCommander) CephJSON(args ...string) (string, error) {
	return c.Ceph(append(args, "--format", "json")...)
}
