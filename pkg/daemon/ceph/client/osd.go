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

	"github.com/pkg/errors"
)

// OsdTree is the parsed output of `ceph osd tree --format json`.
type OsdTree struct {
	Nodes []OsdTreeNode `json:"nodes"`
}

type OsdTreeNode struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Children []int  `json:"children"`
}

// GetOsdTree fetches the OSD tree from the toolbox.
func GetOsdTree(c *ToolboxCommander) (OsdTree, error) {
	out, err := c.CephJSON("osd", "tree")
	if err != nil {
		return OsdTree{}, errors.Wrap(err, "failed to get osd tree")
	}
	var tree OsdTree
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		return OsdTree{}, errors.Wrap(err, "failed to unmarshal osd tree")
	}
	return tree, nil
}

// DownOsds returns the names of OSDs the tree reports as down.
func (t OsdTree) DownOsds() []string {
	var down []string
	for _, node := range t.Nodes {
		if node.Type == "osd" && node.Status == "down" {
			down = append(down, node.Name)
		}
	}
	return down
}

// OsdCount returns the number of OSD entries in the tree.
func (t OsdTree) OsdCount() int {
	count := 0
	for _, node := range t.Nodes {
		if node.Type == "osd" {
			count++
		}
	}
	return count
}
