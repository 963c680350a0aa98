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

package workload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddOutput = `500+0 records in
500+0 records out
524288000 bytes (524 MB, 500 MiB) copied, 1.23456 s, 424 MB/s`

type fakeExecer struct {
	mu        sync.Mutex
	inFlight  int
	maxSeen   int
	calls     []string
	delay     time.Duration
	failOnPod string
	output    string
}

func (f *fakeExecer) ExecInPod(namespace, podName string, command ...string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.calls = append(f.calls, podName+": "+strings.Join(command, " "))
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if podName == f.failOnPod {
		return "", fmt.Errorf("pod %s exploded", podName)
	}
	if f.output != "" {
		return f.output, nil
	}
	return ddOutput, nil
}

func TestParseDDThroughput(t *testing.T) {
	assert.Equal(t, 424.0, ParseDDThroughput(ddOutput))
	assert.Equal(t, 0.0, ParseDDThroughput("no summary here"))
	assert.Equal(t, 0.0, ParseDDThroughput(""))
	// GB/s summaries are not converted, just skipped
	assert.Equal(t, 0.0, ParseDDThroughput("1048576000 bytes copied, 0.5 s, 2.1 GB/s"))
}

func TestSequentialWrite(t *testing.T) {
	execer := &fakeExecer{}
	result, err := SequentialWrite(execer, WriteSpec{Namespace: "test-cephfs", Pod: "writer-0", Path: "/data/file0", SizeMB: 500})
	require.NoError(t, err)
	assert.Equal(t, "writer-0", result.Pod)
	assert.Equal(t, 424.0, result.ThroughputMBps)
	require.Len(t, execer.calls, 1)
	assert.Contains(t, execer.calls[0], "dd if=/dev/zero of=/data/file0 bs=1M count=500 oflag=direct conv=fsync")
}

func TestSequentialRead(t *testing.T) {
	execer := &fakeExecer{}
	result, err := SequentialRead(execer, WriteSpec{Namespace: "test-cephfs", Pod: "reader-0", Path: "/data/file0", SizeMB: 500})
	require.NoError(t, err)
	assert.Equal(t, 424.0, result.ThroughputMBps)
	require.Len(t, execer.calls, 1)
	assert.Contains(t, execer.calls[0], "dd if=/data/file0 of=/dev/null bs=1M count=500 iflag=direct")
}

func TestSequentialWriteFailure(t *testing.T) {
	execer := &fakeExecer{failOnPod: "writer-0"}
	_, err := SequentialWrite(execer, WriteSpec{Namespace: "test-cephfs", Pod: "writer-0", Path: "/data/f", SizeMB: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writer-0")
}

func specsForPods(count int) []WriteSpec {
	specs := make([]WriteSpec, count)
	for i := range specs {
		specs[i] = WriteSpec{
			Namespace: "test-cephfs",
			Pod:       fmt.Sprintf("writer-%d", i),
			Path:      fmt.Sprintf("/data/file%d", i),
			SizeMB:    10,
		}
	}
	return specs
}

func TestRunParallelWritesPreservesOrder(t *testing.T) {
	execer := &fakeExecer{}
	results, err := RunParallelWrites(context.Background(), execer, specsForPods(4), 2)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("writer-%d", i), r.Pod)
		assert.Equal(t, 424.0, r.ThroughputMBps)
	}
}

func TestRunParallelWritesRespectsLimit(t *testing.T) {
	execer := &fakeExecer{delay: 20 * time.Millisecond}
	_, err := RunParallelWrites(context.Background(), execer, specsForPods(6), 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, execer.maxSeen, 2)
	assert.Len(t, execer.calls, 6)
}

func TestRunParallelWritesPropagatesFirstError(t *testing.T) {
	execer := &fakeExecer{failOnPod: "writer-2"}
	results, err := RunParallelWrites(context.Background(), execer, specsForPods(4), 4)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "writer-2")
}

func TestRunParallelWritesZeroLimitRunsAll(t *testing.T) {
	execer := &fakeExecer{}
	results, err := RunParallelWrites(context.Background(), execer, specsForPods(3), 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestMaxLatency(t *testing.T) {
	results := []WriteResult{
		{Pod: "a", Latency: 10 * time.Millisecond},
		{Pod: "b", Latency: 30 * time.Millisecond},
		{Pod: "c", Latency: 20 * time.Millisecond},
	}
	assert.Equal(t, 30*time.Millisecond, MaxLatency(results))
	assert.Equal(t, time.Duration(0), MaxLatency(nil))
}
