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

// Package poller waits for a condition on a live external system to become
// true, at a fixed cadence, until a wall-clock deadline.
package poller

import (
	"context"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "poller")

// Predicate performs a single check against external state. It returns
// whether the condition is satisfied, a textual observation of what was seen
// (kept as evidence for the final timeout report), and an error if the check
// itself could not be performed.
type Predicate func() (satisfied bool, observation string, err error)

// Settings control a single polling invocation.
type Settings struct {
	// Timeout is the maximum wall-clock time to wait for the predicate.
	Timeout time.Duration
	// Interval is the pause between successive predicate evaluations.
	Interval time.Duration
	// RetryOnError treats a predicate error as "condition not yet met"
	// instead of aborting the poll. The error text becomes the observation
	// for that tick. Off by default: a failing collaborator usually means
	// the scenario is broken, not slow.
	RetryOnError bool
}

// Validate enforces the settings invariant: both durations strictly positive
// and the interval no longer than the timeout.
func (s Settings) Validate() error {
	if s.Timeout <= 0 {
		return errors.Errorf("invalid poll settings: timeout %v must be positive", s.Timeout)
	}
	if s.Interval <= 0 {
		return errors.Errorf("invalid poll settings: interval %v must be positive", s.Interval)
	}
	if s.Interval > s.Timeout {
		return errors.Errorf("invalid poll settings: interval %v exceeds timeout %v", s.Interval, s.Timeout)
	}
	return nil
}

// Outcome is the terminal state of one polling invocation.
type Outcome struct {
	// Satisfied is true if the predicate reported success before the deadline.
	Satisfied bool
	// Elapsed is the wall-clock time since the first evaluation.
	Elapsed time.Duration
	// LastObservation is the most recent observation returned by the
	// predicate, kept to aid debugging after a timeout.
	LastObservation string
}

// Poll evaluates the predicate at a fixed cadence until it is satisfied or
// the deadline expires. The predicate runs at most once per tick, in strict
// chronological order. The inter-tick sleep yields and is cancelled by the
// context, in which case the context error is returned.
//
// A predicate error aborts the poll immediately unless RetryOnError is set.
// The returned error wraps the predicate's so callers can still match the
// underlying failure (for example exec.CommandError).
func Poll(ctx context.Context, settings Settings, description string, predicate Predicate) (Outcome, error) {
	if err := settings.Validate(); err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	lastObservation := ""
	for attempt := 1; ; attempt++ {
		satisfied, observation, err := predicate()
		if err != nil {
			if !settings.RetryOnError {
				return Outcome{Elapsed: time.Since(start), LastObservation: lastObservation},
					errors.Wrapf(err, "%s: check failed on attempt %d", description, attempt)
			}
			observation = err.Error()
		}
		if observation != "" {
			lastObservation = observation
		}
		if satisfied {
			elapsed := time.Since(start)
			logger.Infof("%s: satisfied after %v on attempt %d", description, elapsed, attempt)
			return Outcome{Satisfied: true, Elapsed: elapsed, LastObservation: lastObservation}, nil
		}

		elapsed := time.Since(start)
		if elapsed >= settings.Timeout {
			logger.Warningf("%s: giving up after %v (%d attempts). last observation: %s",
				description, elapsed, attempt, lastObservation)
			return Outcome{Elapsed: elapsed, LastObservation: lastObservation}, nil
		}
		logger.Debugf("%s: not yet satisfied on attempt %d, retrying in %v", description, attempt, settings.Interval)

		if err := sleep(ctx, settings.Interval); err != nil {
			return Outcome{Elapsed: time.Since(start), LastObservation: lastObservation}, err
		}
		// The deadline may have passed during the sleep. Bail out here so a
		// condition that can never be met does not get a free extra tick.
		if elapsed := time.Since(start); elapsed >= settings.Timeout {
			logger.Warningf("%s: giving up after %v (%d attempts). last observation: %s",
				description, elapsed, attempt, lastObservation)
			return Outcome{Elapsed: elapsed, LastObservation: lastObservation}, nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
