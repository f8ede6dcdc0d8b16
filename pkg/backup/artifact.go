// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package backup

import (
	"sort"
)

// Artifact is a single backup file of one database.
type Artifact struct {
	Database string `json:"database"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Identity string `json:"identity"`
	Tier     Tier   `json:"tier"`
	Size     int64  `json:"size"`
}

func (a Artifact) String() string {
	return a.Name
}

// newer reports whether a sorts before b in the descending lineage walk:
// identity descending, then tier precedence descending, then file name descending.
func newer(a, b Artifact) bool {
	if a.Identity != b.Identity {
		return a.Identity > b.Identity
	}
	if a.Tier != b.Tier {
		return a.Tier > b.Tier
	}
	return a.Name > b.Name
}

// SortNewestFirst orders artifacts for the lineage walk.
func SortNewestFirst(artifacts []Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		return newer(artifacts[i], artifacts[j])
	})
}

// SortOldestFirst orders artifacts by ascending identity.
func SortOldestFirst(artifacts []Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		return newer(artifacts[j], artifacts[i])
	})
}
