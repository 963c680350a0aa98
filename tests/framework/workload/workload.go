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

// Package workload drives I/O against storage-backed pods: a single-pod
// sequential throughput measurement and a bounded fan-out of concurrent
// writers for the mixed-workload scenario. Each task targets its own pod and
// file, so the tasks share nothing and just get joined at the end.
package workload

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "workload")

// PodExecer runs a command inside a pod. *utils.K8sHelper satisfies this.
type PodExecer interface {
	ExecInPod(namespace, podName string, command ...string) (string, error)
}

// WriteSpec describes one dd-based write task.
type WriteSpec struct {
	Namespace string
	Pod       string
	// Path of the file to write inside the pod.
	Path string
	// SizeMB is written as 1MB blocks with direct I/O.
	SizeMB int
}

// WriteResult is the outcome of one write task.
type WriteResult struct {
	Pod     string
	Latency time.Duration
	// ThroughputMBps is parsed from dd's transfer summary; zero if the
	// summary was missing.
	ThroughputMBps float64
}

// SequentialWrite performs one dd write and reports its result.
func SequentialWrite(execer PodExecer, spec WriteSpec) (WriteResult, error) {
	start := time.Now()
	out, err := execer.ExecInPod(spec.Namespace, spec.Pod,
		"dd", "if=/dev/zero", "of="+spec.Path, "bs=1M", fmt.Sprintf("count=%d", spec.SizeMB), "oflag=direct", "conv=fsync")
	latency := time.Since(start)
	if err != nil {
		return WriteResult{}, errors.Wrapf(err, "write of %dMB failed in pod %s", spec.SizeMB, spec.Pod)
	}
	return WriteResult{Pod: spec.Pod, Latency: latency, ThroughputMBps: ParseDDThroughput(out)}, nil
}

// SequentialRead reads a file back with dd and reports its throughput.
func SequentialRead(execer PodExecer, spec WriteSpec) (WriteResult, error) {
	start := time.Now()
	out, err := execer.ExecInPod(spec.Namespace, spec.Pod,
		"dd", "if="+spec.Path, "of=/dev/null", "bs=1M", fmt.Sprintf("count=%d", spec.SizeMB), "iflag=direct")
	latency := time.Since(start)
	if err != nil {
		return WriteResult{}, errors.Wrapf(err, "read of %dMB failed in pod %s", spec.SizeMB, spec.Pod)
	}
	return WriteResult{Pod: spec.Pod, Latency: latency, ThroughputMBps: ParseDDThroughput(out)}, nil
}

// RunParallelWrites dispatches the write tasks with at most maxConcurrency
// in flight, waits for all of them, and returns one result per task in task
// order. The first failed write cancels the remaining tasks and is returned.
func RunParallelWrites(ctx context.Context, execer PodExecer, specs []WriteSpec, maxConcurrency int) ([]WriteResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = len(specs)
	}
	results := make([]WriteResult, len(specs))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrency)
	for i := range specs {
		i := i
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := SequentialWrite(execer, specs[i])
			if err != nil {
				return err
			}
			logger.Infof("pod %s wrote %dMB in %v (%.1f MB/s)",
				specs[i].Pod, specs[i].SizeMB, result.Latency, result.ThroughputMBps)
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MaxLatency returns the slowest task's latency.
func MaxLatency(results []WriteResult) time.Duration {
	max := time.Duration(0)
	for _, r := range results {
		if r.Latency > max {
			max = r.Latency
		}
	}
	return max
}

// ParseDDThroughput extracts the MB/s figure from dd's transfer summary,
// e.g. "524288000 bytes (524 MB, 500 MiB) copied, 1.234 s, 424 MB/s".
// Returns 0 when no summary is present.
func ParseDDThroughput(output string) float64 {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "copied") || !strings.Contains(line, "MB/s") {
			continue
		}
		parts := strings.Split(line, ",")
		last := strings.TrimSpace(parts[len(parts)-1])
		fields := strings.Fields(last)
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		return value
	}
	return 0
}
