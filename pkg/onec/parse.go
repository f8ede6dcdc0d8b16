// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package onec

import (
	"strings"
)

// Record is one block of rac output: "key : value" lines up to a blank line.
type Record map[string]string

// ParseRecords splits rac output into records. Quoted values are unquoted and
// lines without a separator are ignored.
func ParseRecords(lines []string) []Record {
	var (
		records []Record
		current Record
	)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if current != nil {
				records = append(records, current)
				current = nil
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = strings.ReplaceAll(value[1:len(value)-1], `""`, `"`)
		}
		if current == nil {
			current = Record{}
		}
		if _, seen := current[key]; !seen {
			current[key] = value
		}
	}
	if current != nil {
		records = append(records, current)
	}
	return records
}
