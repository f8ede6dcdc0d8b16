// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package backup

import (
	"fmt"
	"strings"
)

// Tier is the kind of a backup artifact.
type Tier int

const (
	Full Tier = iota
	Differential
	TransactionLog
)

func (t Tier) String() string {
	switch t {
	case Full:
		return "full"
	case Differential:
		return "diff"
	case TransactionLog:
		return "tlog"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// MarshalText lets tiers appear by name in yaml and json reports.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	for _, known := range Tiers {
		if string(text) == known.String() {
			*t = known
			return nil
		}
	}
	return fmt.Errorf("unknown backup tier %q", text)
}

// Tiers lists every tier in ascending restore precedence.
var Tiers = []Tier{Full, Differential, TransactionLog}

// Suffixes maps each tier to the file extension (without the dot) it is stored under.
type Suffixes struct {
	Full           string `koanf:"full" json:"full" validate:"required,excludesall=./"`
	Differential   string `koanf:"diff" json:"diff" validate:"required,excludesall=./"`
	TransactionLog string `koanf:"tlog" json:"tlog" validate:"required,excludesall=./"`
}

func DefaultSuffixes() Suffixes {
	return Suffixes{
		Full:           "bak",
		Differential:   "dif",
		TransactionLog: "trn",
	}
}

func (s Suffixes) For(t Tier) string {
	switch t {
	case Full:
		return s.Full
	case Differential:
		return s.Differential
	case TransactionLog:
		return s.TransactionLog
	}
	return ""
}

// Validate reports suffixes that are empty or shared between tiers.
func (s Suffixes) Validate() error {
	seen := make(map[string]Tier, len(Tiers))
	for _, t := range Tiers {
		suffix := strings.ToLower(s.For(t))
		if suffix == "" {
			return fmt.Errorf("suffix for tier %s is empty", t)
		}
		if other, ok := seen[suffix]; ok {
			return fmt.Errorf("suffix %q is used by both %s and %s", suffix, other, t)
		}
		seen[suffix] = t
	}
	return nil
}

// Classify returns the tier and identity of a file name. Suffix matching is
// case-insensitive; ok is false for names that carry no known suffix or
// nothing but the suffix.
func (s Suffixes) Classify(name string) (tier Tier, identity string, ok bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return 0, "", false
	}
	ext := name[dot+1:]
	for _, t := range Tiers {
		if strings.EqualFold(ext, s.For(t)) {
			return t, name[:dot], true
		}
	}
	return 0, "", false
}
