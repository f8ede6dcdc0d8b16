// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package backup

// Plan is the outcome of lineage resolution for one database.
type Plan struct {
	// Restore holds the artifacts to apply, oldest first.
	Restore []Artifact `json:"restore"`
	// Delete holds artifacts superseded by a newer Full or Differential,
	// oldest first.
	Delete []Artifact `json:"delete"`
}

func (p Plan) Empty() bool {
	return len(p.Restore) == 0
}

// HasFull reports whether the restore chain starts from a Full backup.
func (p Plan) HasFull() bool {
	return len(p.Restore) > 0 && p.Restore[0].Tier == Full
}

// Resolve walks the artifacts newest first. A Differential makes every older
// Differential and TransactionLog obsolete; a Full makes everything older
// obsolete. The result contains at most one Full and one Differential and
// the restore chain is in ascending identity order.
//
// Without any Full the chain is still returned: it resumes from whatever
// state the target database is in.
func Resolve(artifacts []Artifact) Plan {
	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	SortNewestFirst(sorted)

	var (
		plan     Plan
		obsolete = make(map[Tier]bool, len(Tiers))
	)
	for _, a := range sorted {
		if obsolete[a.Tier] {
			plan.Delete = append(plan.Delete, a)
			continue
		}
		plan.Restore = append(plan.Restore, a)
		switch a.Tier {
		case Differential:
			obsolete[Differential] = true
			obsolete[TransactionLog] = true
		case Full:
			obsolete[Full] = true
			obsolete[Differential] = true
			obsolete[TransactionLog] = true
		}
	}

	reverse(plan.Restore)
	reverse(plan.Delete)
	return plan
}

func reverse(artifacts []Artifact) {
	for i, j := 0, len(artifacts)-1; i < j; i, j = i+1, j-1 {
		artifacts[i], artifacts[j] = artifacts[j], artifacts[i]
	}
}
