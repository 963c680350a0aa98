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

// Package config collects the environment the harness runs against. The
// environment is read exactly once into an explicit Settings value that gets
// threaded through constructors, so nothing deeper in the harness touches
// ambient process state.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/rook/ceph-chaos/pkg/util/ssh"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "config")

// Settings describe the cluster under test and the harness defaults.
type Settings struct {
	// ArtifactsDir is where evidence is persisted.
	ArtifactsDir string
	// TestNamespace hosts the workload pods the scenarios disrupt.
	TestNamespace string
	// RookNamespace hosts the rook operator, daemons and toolbox.
	RookNamespace string
	// BlockStorageClass provisions RBD volumes.
	BlockStorageClass string
	// FilesystemStorageClass provisions CephFS volumes.
	FilesystemStorageClass string
	// SnapshotClass names the VolumeSnapshotClass for snapshot scenarios;
	// empty skips them.
	SnapshotClass string
	// AllowOrchestration permits scenarios that stop Ceph daemons through
	// the orchestrator (destructive beyond pod deletion).
	AllowOrchestration bool

	// PollInterval and RecoveryTimeout are the scenario-wide polling
	// defaults; individual waits scale them where recovery is known to be
	// slower (node reboots).
	PollInterval    time.Duration
	RecoveryTimeout time.Duration

	SSH ssh.Settings
}

// Environment variable names, kept compatible with the original harness
// deployment scripts.
const (
	envArtifactsDir    = "ARTIFACTS_DIR"
	envTestNamespace   = "TEST_NS"
	envRookNamespace   = "ROOK_NS"
	envBlockSC         = "RBD_SC"
	envFilesystemSC    = "CEPHFS_SC"
	envSnapshotClass   = "SNAPSHOT_CLASS"
	envAllowOrch       = "CEPH_ALLOW_ORCH"
	envPollInterval    = "POLL_INTERVAL_SECONDS"
	envRecoveryTimeout = "RECOVERY_TIMEOUT_SECONDS"
	envSSHUser         = "SSH_USER"
	envSSHPass         = "SSH_PASS"
	envSSHKey          = "SSH_KEY"
	envSSHPort         = "SSH_PORT"

	// EnvChaosEnabled gates the integration suites; they skip unless it is
	// set to a true value.
	EnvChaosEnabled = "CHAOS_TEST_ENABLED"
)

// FromEnv reads the harness settings from the environment once.
func FromEnv() Settings {
	return Settings{
		ArtifactsDir:           getEnvVarWithDefault(envArtifactsDir, "artifacts"),
		TestNamespace:          getEnvVarWithDefault(envTestNamespace, "test-cephfs"),
		RookNamespace:          getEnvVarWithDefault(envRookNamespace, "rook-ceph"),
		BlockStorageClass:      getEnvVarWithDefault(envBlockSC, "rook-ceph-block"),
		FilesystemStorageClass: getEnvVarWithDefault(envFilesystemSC, "rook-cephfs"),
		SnapshotClass:          os.Getenv(envSnapshotClass),
		AllowOrchestration:     isTruthy(os.Getenv(envAllowOrch)),
		PollInterval:           secondsEnv(envPollInterval, 5*time.Second),
		RecoveryTimeout:        secondsEnv(envRecoveryTimeout, 5*time.Minute),
		SSH: ssh.Settings{
			User:     os.Getenv(envSSHUser),
			Password: os.Getenv(envSSHPass),
			KeyPath:  os.Getenv(envSSHKey),
			Port:     intEnv(envSSHPort, 22),
		},
	}
}

// ChaosEnabled reports whether the destructive integration suites may run.
func ChaosEnabled() bool {
	return isTruthy(os.Getenv(EnvChaosEnabled))
}

func getEnvVarWithDefault(env, defaultValue string) string {
	val := os.Getenv(env)
	if val == "" {
		logger.Debugf("environment variable (default) %q=%q", env, defaultValue)
		return defaultValue
	}
	logger.Debugf("environment variable %q=%q", env, val)
	return val
}

func isTruthy(val string) bool {
	switch val {
	case "1", "true", "TRUE", "True", "yes", "YES":
		return true
	}
	return false
}

func intEnv(env string, defaultValue int) int {
	val := os.Getenv(env)
	if val == "" {
		return defaultValue
	}
	number, err := strconv.Atoi(val)
	if err != nil {
		logger.Warningf("ignoring non-numeric %s=%q, using %d", env, val, defaultValue)
		return defaultValue
	}
	return number
}

func secondsEnv(env string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(env)
	if val == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(val)
	if err != nil || seconds <= 0 {
		logger.Warningf("ignoring invalid %s=%q, using %s", env, val, defaultValue)
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
