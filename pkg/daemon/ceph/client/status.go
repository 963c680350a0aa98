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

package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	// CephHealthOK denotes the status of ceph cluster when healthy.
	CephHealthOK = "HEALTH_OK"
	// CephHealthWarn denotes the status of ceph cluster when unhealthy but recovering.
	CephHealthWarn = "HEALTH_WARN"
	// CephHealthErr denotes the status of ceph cluster when unhealthy and in need
	// of manual intervention.
	CephHealthErr = "HEALTH_ERR"

	activeClean = "active+clean"
)

// CephStatus is the parsed output of `ceph status --format json`.
type CephStatus struct {
	Health        HealthStatus `json:"health"`
	FSID          string       `json:"fsid"`
	ElectionEpoch int          `json:"election_epoch"`
	Quorum        []int        `json:"quorum"`
	QuorumNames   []string     `json:"quorum_names"`
	MonMap        MonMap       `json:"monmap"`
	OsdMap        OsdMap       `json:"osdmap"`
	PgMap         PgMap        `json:"pgmap"`
	MgrMap        MgrMap       `json:"mgrmap"`
}

type HealthStatus struct {
	Status string                  `json:"status"`
	Checks map[string]CheckMessage `json:"checks"`
}

type CheckMessage struct {
	Severity string `json:"severity"`
	Summary  struct {
		Message string `json:"message"`
	} `json:"summary"`
}

type MonMap struct {
	Epoch int           `json:"epoch"`
	FSID  string        `json:"fsid"`
	Mons  []MonMapEntry `json:"mons"`
}

type MonMapEntry struct {
	Name    string `json:"name"`
	Rank    int    `json:"rank"`
	Address string `json:"addr"`
}

type MgrMap struct {
	Available  bool   `json:"available"`
	ActiveName string `json:"active_name"`
	NumStandby int    `json:"num_standbys"`
}

type OsdMap struct {
	Epoch          int  `json:"epoch"`
	NumOsd         int  `json:"num_osds"`
	NumUpOsd       int  `json:"num_up_osds"`
	NumInOsd       int  `json:"num_in_osds"`
	Full           bool `json:"full"`
	NearFull       bool `json:"nearfull"`
	NumRemappedPgs int  `json:"num_remapped_pgs"`
}

type PgMap struct {
	PgsByState     []PgStateEntry `json:"pgs_by_state"`
	NumPgs         int            `json:"num_pgs"`
	DataBytes      uint64         `json:"data_bytes"`
	UsedBytes      uint64         `json:"bytes_used"`
	AvailableBytes uint64         `json:"bytes_avail"`
	TotalBytes     uint64         `json:"bytes_total"`
}

type PgStateEntry struct {
	StateName string `json:"state_name"`
	Count     int    `json:"count"`
}

// Status fetches and parses the cluster status from the toolbox.
func Status(c *ToolboxCommander) (CephStatus, error) {
	out, err := c.CephJSON("status")
	if err != nil {
		return CephStatus{}, errors.Wrap(err, "failed to get ceph status")
	}
	var status CephStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		return CephStatus{}, errors.Wrap(err, "failed to unmarshal ceph status")
	}
	return status, nil
}

// IsClusterClean returns nil if the cluster is fully healthy: all mons in
// quorum, all OSDs up and in, an active MGR, and every PG active+clean.
// Otherwise it returns an error describing the first check that failed,
// which polling callers surface as the last observation.
func IsClusterClean(status CephStatus) error {
	if len(status.Quorum) == 0 {
		return errors.New("no monitors in quorum")
	}
	for _, mon := range status.MonMap.Mons {
		if !monInQuorum(mon, status.Quorum) {
			return errors.Errorf("mon %s not in quorum %v", mon.Name, status.Quorum)
		}
	}

	if status.OsdMap.NumOsd == 0 {
		return errors.New("no OSDs in the cluster")
	}
	if status.OsdMap.NumUpOsd != status.OsdMap.NumOsd || status.OsdMap.NumInOsd != status.OsdMap.NumOsd {
		return errors.Errorf("not all OSDs are up/in: %d up, %d in of %d",
			status.OsdMap.NumUpOsd, status.OsdMap.NumInOsd, status.OsdMap.NumOsd)
	}

	if !status.MgrMap.Available {
		return errors.New("no active mgr")
	}

	// 0 PGs means no pools exist yet, which is clean
	if status.PgMap.NumPgs > 0 {
		clean := 0
		for _, pg := range status.PgMap.PgsByState {
			if pg.StateName == activeClean {
				clean = pg.Count
				break
			}
		}
		if clean != status.PgMap.NumPgs {
			return errors.Errorf("not all PGs are active+clean: %s", describePgStates(status.PgMap))
		}
	}
	return nil
}

// HealthSummary renders a one-line description of the health checks for
// evidence and failure messages. Checks are sorted by name so two captures of
// the same cluster state produce identical text.
func HealthSummary(status CephStatus) string {
	if len(status.Health.Checks) == 0 {
		return status.Health.Status
	}
	names := make([]string, 0, len(status.Health.Checks))
	for name := range status.Health.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, fmt.Sprintf("%s: %s", name, status.Health.Checks[name].Summary.Message))
	}
	return fmt.Sprintf("%s (%s)", status.Health.Status, strings.Join(messages, "; "))
}

func monInQuorum(mon MonMapEntry, quorum []int) bool {
	for _, rank := range quorum {
		if rank == mon.Rank {
			return true
		}
	}
	return false
}

func describePgStates(pgMap PgMap) string {
	states := make([]string, 0, len(pgMap.PgsByState))
	for _, entry := range pgMap.PgsByState {
		states = append(states, fmt.Sprintf("%d %s", entry.Count, entry.StateName))
	}
	return strings.Join(states, ", ")
}
