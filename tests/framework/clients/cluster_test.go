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

package clients

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rook/ceph-chaos/pkg/evidence"
	exectest "github.com/rook/ceph-chaos/pkg/util/exec/test"
)

const degradedStatusRaw = `{
	"health": {"status": "HEALTH_WARN", "checks": {
		"OSD_DOWN": {"severity": "HEALTH_WARN", "summary": {"message": "1 osds down"}}}},
	"quorum": [0, 1, 2],
	"quorum_names": ["a", "b", "c"],
	"monmap": {"mons": [{"rank": 0, "name": "a"}, {"rank": 1, "name": "b"}, {"rank": 2, "name": "c"}]},
	"osdmap": {"num_osds": 3, "num_up_osds": 2, "num_in_osds": 3},
	"pgmap": {"pgs_by_state": [{"state_name": "active+undersized", "count": 28},
		{"state_name": "active+clean", "count": 100}], "num_pgs": 128},
	"mgrmap": {"available": true, "active_name": "a"}
}`

const cleanStatusRaw = `{
	"health": {"status": "HEALTH_OK", "checks": {}},
	"quorum": [0, 1, 2],
	"quorum_names": ["a", "b", "c"],
	"monmap": {"mons": [{"rank": 0, "name": "a"}, {"rank": 1, "name": "b"}, {"rank": 2, "name": "c"}]},
	"osdmap": {"num_osds": 3, "num_up_osds": 3, "num_in_osds": 3},
	"pgmap": {"pgs_by_state": [{"state_name": "active+clean", "count": 128}], "num_pgs": 128},
	"mgrmap": {"available": true, "active_name": "b"}
}`

func statusSequenceClient(t *testing.T, responses ...string) *CephClusterClient {
	t.Helper()
	var call int64
	executor := &exectest.MockExecutor{
		MockExecuteCommandWithTimeout: func(timeout time.Duration, command string, arg ...string) (string, error) {
			n := atomic.AddInt64(&call, 1)
			if int(n) > len(responses) {
				return responses[len(responses)-1], nil
			}
			return responses[n-1], nil
		},
	}
	return CreateCephClusterClient(executor, "rook-ceph", 10*time.Millisecond)
}

func TestIsClusterCleanObservation(t *testing.T) {
	c := statusSequenceClient(t, degradedStatusRaw)
	clean, observation, err := c.IsClusterClean()
	require.NoError(t, err)
	assert.False(t, clean)
	assert.Contains(t, observation, "up")
}

func TestWaitForClusterCleanRecovers(t *testing.T) {
	c := statusSequenceClient(t, degradedStatusRaw, degradedStatusRaw, cleanStatusRaw)
	outcome, err := c.WaitForClusterClean(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Satisfied)
	assert.Contains(t, outcome.LastObservation, "HEALTH_OK")
}

func TestWaitForClusterCleanTimesOut(t *testing.T) {
	c := statusSequenceClient(t, degradedStatusRaw)
	outcome, err := c.WaitForClusterClean(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, outcome.Satisfied)
	assert.NotEmpty(t, outcome.LastObservation)
}

func TestWaitForMgrFailover(t *testing.T) {
	// active mgr is "a" in the degraded fixture and "b" in the clean one
	c := statusSequenceClient(t, degradedStatusRaw, cleanStatusRaw)
	outcome, err := c.WaitForMgrFailover(context.Background(), "a", time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Satisfied)
	assert.Contains(t, outcome.LastObservation, "b")
}

func TestWaitForQuorumWithout(t *testing.T) {
	reformedRaw := strings.Replace(cleanStatusRaw, `"quorum_names": ["a", "b", "c"]`, `"quorum_names": ["b", "c"]`, 1)
	c := statusSequenceClient(t, cleanStatusRaw, reformedRaw)
	outcome, err := c.WaitForQuorumWithout(context.Background(), "a", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Satisfied)
	assert.Contains(t, outcome.LastObservation, "[b c]")
}

func TestWaitForMonInQuorum(t *testing.T) {
	c := statusSequenceClient(t, cleanStatusRaw)
	outcome, err := c.WaitForMonInQuorum(context.Background(), "b", time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Satisfied)
}

func TestWaitForClusterCleanSurvivesToolboxErrors(t *testing.T) {
	var call int64
	executor := &exectest.MockExecutor{
		MockExecuteCommandWithTimeout: func(timeout time.Duration, command string, arg ...string) (string, error) {
			if atomic.AddInt64(&call, 1) == 1 {
				return "", assert.AnError
			}
			return cleanStatusRaw, nil
		},
	}
	c := CreateCephClusterClient(executor, "rook-ceph", 10*time.Millisecond)
	outcome, err := c.WaitForClusterClean(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Satisfied)
}

func TestCaptureStatusEvidence(t *testing.T) {
	executor := &exectest.MockExecutor{
		MockExecuteCommandWithTimeout: func(timeout time.Duration, command string, arg ...string) (string, error) {
			joined := strings.Join(arg, " ")
			if strings.Contains(joined, "osd tree") {
				return "ID CLASS WEIGHT", nil
			}
			return "cluster: HEALTH_OK", nil
		},
	}
	c := CreateCephClusterClient(executor, "rook-ceph", 10*time.Millisecond)
	root := t.TempDir()
	rec := evidence.NewRecorder(root)

	c.CaptureStatusEvidence(rec, "S02", "pre")

	raw, err := os.ReadFile(filepath.Join(root, "S02_pre_ceph_status.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "HEALTH_OK")
	raw, err = os.ReadFile(filepath.Join(root, "S02_pre_osd_tree.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ID CLASS")
}
