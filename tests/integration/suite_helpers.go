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

// Package integration holds the chaos scenarios. Each suite disrupts one
// layer of a live Rook/Ceph cluster (nodes, Ceph daemons, volumes, the
// monitoring stack) and polls until the cluster recovers, persisting evidence
// along the way. The suites skip unless CHAOS_TEST_ENABLED is set, since they
// are destructive to the cluster they run against.
package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/stretchr/testify/require"

	"github.com/rook/ceph-chaos/pkg/evidence"
	"github.com/rook/ceph-chaos/pkg/poller"
	"github.com/rook/ceph-chaos/pkg/util/exec"
	"github.com/rook/ceph-chaos/pkg/util/ssh"
	"github.com/rook/ceph-chaos/tests/framework/clients"
	"github.com/rook/ceph-chaos/tests/framework/config"
	"github.com/rook/ceph-chaos/tests/framework/utils"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "integration")

const (
	// cephfsTesterLabel selects the long-running CephFS workload pods the
	// cluster deployment scripts create in the test namespace.
	cephfsTesterLabel = "app=cephfs-tester"
	cephfsMountPath   = "/mnt/cephfs"

	operatorDeployment = "rook-ceph-operator"
	mgrPodLabel        = "app=rook-ceph-mgr"
	cephfsPluginLabel  = "app=csi-cephfsplugin"

	cephRulesName = "prometheus-ceph-rules"
)

// harness bundles the clients every chaos suite needs.
type harness struct {
	settings config.Settings
	k8sh     *utils.K8sHelper
	ceph     *clients.CephClusterClient
	rec      *evidence.Recorder
}

// newHarness connects to the cluster under test and fails the suite if the
// connection cannot be made.
func newHarness(t *testing.T) *harness {
	settings := config.FromEnv()
	k8sh, err := utils.CreateK8sHelper(settings)
	require.NoError(t, err, "failed to connect to the cluster under test")

	h := &harness{
		settings: settings,
		k8sh:     k8sh,
		ceph:     clients.CreateCephClusterClient(&exec.CommandExecutor{}, settings.RookNamespace, settings.PollInterval),
		rec:      evidence.NewRecorder(settings.ArtifactsDir),
	}
	logger.Infof("chaos run %s, evidence in %s", h.rec.RunID(), h.rec.Root())
	return h
}

// nodeClient returns an SSH client for the node, resolving its InternalIP.
func (h *harness) nodeClient(t *testing.T, nodeName string) *ssh.Client {
	ip, err := h.k8sh.GetNodeInternalIP(nodeName)
	require.NoError(t, err)
	client, err := ssh.NewClient(ip, h.settings.SSH)
	require.NoError(t, err, "node scenarios need SSH_USER and SSH_PASS or SSH_KEY")
	return client
}

// testerPod returns one of the CephFS workload pods and the node it runs on.
func (h *harness) testerPod(t *testing.T) (pod, node string) {
	pods, err := h.k8sh.GetPodNamesByLabel(h.settings.TestNamespace, cephfsTesterLabel)
	require.NoError(t, err)
	require.NotEmpty(t, pods, "no %s pods in %s; deploy the workload first", cephfsTesterLabel, h.settings.TestNamespace)
	pod = pods[0]
	node, err = h.k8sh.GetPodNode(h.settings.TestNamespace, pod)
	require.NoError(t, err)
	return pod, node
}

// requireSatisfied fails the test when a polled condition did not come true,
// naming the condition, how long was waited, and where the evidence went.
func (h *harness) requireSatisfied(t *testing.T, outcome poller.Outcome, err error, condition string) {
	require.NoError(t, err, "polling for %s failed", condition)
	require.Truef(t, outcome.Satisfied, "%s not reached after %s (last observation: %s); evidence in %s",
		condition, outcome.Elapsed.Round(time.Second), outcome.LastObservation, h.rec.Root())
	logger.Infof("%s after %s", condition, outcome.Elapsed.Round(time.Second))
}

// writeProbeFile writes a small file into the tester pod and returns its md5,
// used for before/after data integrity checks.
func (h *harness) writeProbeFile(t *testing.T, scenario, pod, path string) string {
	// fsync so the probe survives even a hard node reset
	_, err := h.k8sh.ExecInPod(h.settings.TestNamespace, pod,
		"dd", "if=/dev/urandom", "of="+path, "bs=1M", "count=8", "conv=fsync")
	require.NoError(t, err)
	sum, err := h.k8sh.Md5InPod(h.settings.TestNamespace, pod, path)
	require.NoError(t, err)
	h.rec.LogStep(scenario, fmt.Sprintf("wrote probe file %s in %s, md5 %s", path, pod, sum))
	return sum
}
