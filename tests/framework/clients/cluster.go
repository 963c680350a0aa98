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

// Package clients holds the Ceph-level checks the chaos scenarios poll:
// cluster health through the toolbox and monitoring rules through the
// prometheus-operator API.
package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/pkg/capnslog"

	cephclient "github.com/rook/ceph-chaos/pkg/daemon/ceph/client"
	"github.com/rook/ceph-chaos/pkg/evidence"
	"github.com/rook/ceph-chaos/pkg/poller"
	"github.com/rook/ceph-chaos/pkg/util/exec"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "clients")

// CephClusterClient performs Ceph cluster-level checks for scenarios.
type CephClusterClient struct {
	commander    *cephclient.ToolboxCommander
	pollInterval time.Duration
}

// CreateCephClusterClient returns a client talking to the toolbox in the
// given rook namespace.
func CreateCephClusterClient(executor exec.Executor, rookNamespace string, pollInterval time.Duration) *CephClusterClient {
	return &CephClusterClient{
		commander:    cephclient.NewToolboxCommander(executor, rookNamespace),
		pollInterval: pollInterval,
	}
}

// Status fetches the parsed cluster status.
func (c *CephClusterClient) Status() (cephclient.CephStatus, error) {
	return cephclient.Status(c.commander)
}

// IsClusterClean reports whether the cluster is fully healthy, with a
// human-readable observation either way.
func (c *CephClusterClient) IsClusterClean() (bool, string, error) {
	status, err := c.Status()
	if err != nil {
		return false, "", err
	}
	if err := cephclient.IsClusterClean(status); err != nil {
		return false, err.Error(), nil
	}
	return true, cephclient.HealthSummary(status), nil
}

// WaitForClusterClean polls until the cluster is healthy again after a
// disruption. Status fetch errors are retried rather than fatal: the toolbox
// pod itself may be rescheduling while the cluster recovers.
func (c *CephClusterClient) WaitForClusterClean(ctx context.Context, timeout time.Duration) (poller.Outcome, error) {
	settings := poller.Settings{Timeout: timeout, Interval: c.pollInterval, RetryOnError: true}
	return poller.Poll(ctx, settings, "ceph cluster clean", func() (bool, string, error) {
		return c.IsClusterClean()
	})
}

// WaitForOsdDown polls until the named OSD is reported down, confirming a
// failure injection took effect before the scenario measures recovery.
func (c *CephClusterClient) WaitForOsdDown(ctx context.Context, osdName string, timeout time.Duration) (poller.Outcome, error) {
	settings := poller.Settings{Timeout: timeout, Interval: c.pollInterval, RetryOnError: true}
	return poller.Poll(ctx, settings, fmt.Sprintf("osd %s down", osdName), func() (bool, string, error) {
		tree, err := c.OsdTree()
		if err != nil {
			return false, "", err
		}
		for _, down := range tree.DownOsds() {
			if down == osdName {
				return true, fmt.Sprintf("%s is down", osdName), nil
			}
		}
		return false, fmt.Sprintf("%s still up", osdName), nil
	})
}

// WaitForMgrFailover polls until the active mgr differs from the given one.
func (c *CephClusterClient) WaitForMgrFailover(ctx context.Context, previousActive string, timeout time.Duration) (poller.Outcome, error) {
	settings := poller.Settings{Timeout: timeout, Interval: c.pollInterval, RetryOnError: true}
	return poller.Poll(ctx, settings, fmt.Sprintf("mgr failover away from %s", previousActive), func() (bool, string, error) {
		status, err := c.Status()
		if err != nil {
			return false, "", err
		}
		active := status.MgrMap.ActiveName
		if status.MgrMap.Available && active != "" && active != previousActive {
			return true, fmt.Sprintf("active mgr is now %s", active), nil
		}
		return false, fmt.Sprintf("active mgr is %s, available=%t", active, status.MgrMap.Available), nil
	})
}

// WaitForQuorumWithout polls until quorum has reformed without the named mon
// while still holding at least minSize members.
func (c *CephClusterClient) WaitForQuorumWithout(ctx context.Context, monName string, minSize int, timeout time.Duration) (poller.Outcome, error) {
	settings := poller.Settings{Timeout: timeout, Interval: c.pollInterval, RetryOnError: true}
	return poller.Poll(ctx, settings, fmt.Sprintf("quorum without mon %s", monName), func() (bool, string, error) {
		status, err := c.Status()
		if err != nil {
			return false, "", err
		}
		observation := fmt.Sprintf("quorum %v", status.QuorumNames)
		if len(status.QuorumNames) < minSize {
			return false, fmt.Sprintf("quorum below %d members: %v", minSize, status.QuorumNames), nil
		}
		for _, name := range status.QuorumNames {
			if name == monName {
				return false, observation, nil
			}
		}
		return true, observation, nil
	})
}

// WaitForMonInQuorum polls until the named mon is back in quorum.
func (c *CephClusterClient) WaitForMonInQuorum(ctx context.Context, monName string, timeout time.Duration) (poller.Outcome, error) {
	settings := poller.Settings{Timeout: timeout, Interval: c.pollInterval, RetryOnError: true}
	return poller.Poll(ctx, settings, fmt.Sprintf("mon %s in quorum", monName), func() (bool, string, error) {
		status, err := c.Status()
		if err != nil {
			return false, "", err
		}
		for _, name := range status.QuorumNames {
			if name == monName {
				return true, fmt.Sprintf("quorum %v", status.QuorumNames), nil
			}
		}
		return false, fmt.Sprintf("quorum %v", status.QuorumNames), nil
	})
}

// OsdTree fetches the OSD tree.
func (c *CephClusterClient) OsdTree() (cephclient.OsdTree, error) {
	return cephclient.GetOsdTree(c.commander)
}

// Ceph runs a raw ceph command in the toolbox, for the scenario steps that
// only want the text as evidence.
func (c *CephClusterClient) Ceph(args ...string) (string, error) {
	return c.commander.Ceph(args...)
}

// CaptureStatusEvidence snapshots `ceph status` and `ceph osd tree` into the
// evidence directory. Failures are logged, never escalated.
func (c *CephClusterClient) CaptureStatusEvidence(rec *evidence.Recorder, scenario, tag string) {
	out, err := c.Ceph("status")
	if err != nil {
		out = fmt.Sprintf("ceph status failed: %v", err)
	}
	if err := rec.Capture(scenario, tag+"_ceph_status", out); err != nil {
		logger.Errorf("%s: failed to capture ceph status. %v", scenario, err)
	}

	out, err = c.Ceph("osd", "tree")
	if err != nil {
		out = fmt.Sprintf("ceph osd tree failed: %v", err)
	}
	if err := rec.Capture(scenario, tag+"_osd_tree", out); err != nil {
		logger.Errorf("%s: failed to capture osd tree. %v", scenario, err)
	}
}
