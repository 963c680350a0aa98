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

// Package evidence persists the textual output of diagnostic steps taken
// during a chaos scenario so failures can be diagnosed after the fact.
// Evidence capture is diagnostic, never load-bearing: every write failure is
// reported to the caller but must not decide a test outcome.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "evidence")

const (
	manifestsSubdir   = "manifests"
	screenshotsSubdir = "screenshots"
)

// Recorder writes evidence files under a single artifacts directory. Files
// are namespaced by (scenario, tag), so distinct scenarios can never collide.
type Recorder struct {
	root  string
	runID string

	// guards the per-scenario run logs so concurrent steps of one scenario
	// keep their ordering
	mu sync.Mutex
}

// NewRecorder returns a recorder rooted at the given artifacts directory.
// The directory does not need to exist yet.
func NewRecorder(root string) *Recorder {
	return &Recorder{root: root, runID: uuid.New().String()}
}

// RunID identifies this recorder instance. It is stamped into each
// scenario's run log so overlapping harness runs can be told apart.
func (r *Recorder) RunID() string {
	return r.runID
}

// Root returns the artifacts directory, for failure messages that point the
// operator at the captured evidence.
func (r *Recorder) Root() string {
	return r.root
}

// Capture persists a block of text for one diagnostic step. The write is
// last-write-wins for a given (scenario, tag) pair and is flushed to disk
// before returning.
func (r *Recorder) Capture(scenario, tag, text string) error {
	path := filepath.Join(r.root, fmt.Sprintf("%s_%s.log", scenario, tag))
	return writeFileSynced(path, []byte(text), false)
}

// AppendLog appends one line to the scenario's running log file, preserving
// the order of prior writes.
func (r *Recorder) AppendLog(scenario, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	path := filepath.Join(r.root, fmt.Sprintf("%s_test.log", scenario))
	return writeFileSynced(path, []byte(line+"\n"), true)
}

// LogStep records a scenario step in the running log and the package log.
// Write failures are logged and swallowed so a full disk cannot mask the
// outcome of the scenario itself.
func (r *Recorder) LogStep(scenario, msg string) {
	logger.Infof("%s: %s", scenario, msg)
	if err := r.AppendLog(scenario, msg); err != nil {
		logger.Errorf("%s: failed to record step %q. %v", scenario, msg, err)
	}
}

// SaveManifest serializes an object to YAML under the manifests subtree.
func (r *Recorder) SaveManifest(scenario, name string, obj interface{}) (string, error) {
	raw, err := yaml.Marshal(obj)
	if err != nil {
		return "", errors.Wrapf(err, "failed to serialize manifest %s for %s", name, scenario)
	}
	path := filepath.Join(r.root, manifestsSubdir, fmt.Sprintf("%s_%s.yaml", scenario, name))
	if err := writeFileSynced(path, raw, false); err != nil {
		return "", err
	}
	return path, nil
}

// Placeholder records a stand-in for a manual verification step.
func (r *Recorder) Placeholder(scenario, name, text string) (string, error) {
	path := filepath.Join(r.root, screenshotsSubdir, fmt.Sprintf("%s_%s.txt", scenario, name))
	body := fmt.Sprintf("%s :: %s\n%s\n", scenario, name, text)
	if err := writeFileSynced(path, []byte(body), false); err != nil {
		return "", err
	}
	return path, nil
}

func writeFileSynced(path string, data []byte, appendMode bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create evidence dir for %s", path)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open evidence file %s", path)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return errors.Wrapf(err, "failed to write evidence file %s", path)
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "failed to flush evidence file %s", path)
	}
	return nil
}
