// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package winpath joins paths that are interpreted by another host, usually
// the Windows server running SQL Server and the 1C tools, so the separator
// follows the base path rather than the local OS.
package winpath

import "strings"

// Separator returns the separator used by base: backslash when base contains
// one, forward slash otherwise.
func Separator(base string) string {
	if strings.Contains(base, `\`) {
		return `\`
	}
	return "/"
}

// Join appends elem to base using base's separator.
func Join(base string, elem ...string) string {
	sep := Separator(base)
	out := base
	for _, e := range elem {
		e = strings.Trim(e, `\/`)
		if e == "" {
			continue
		}
		if out == "" {
			out = e
			continue
		}
		if !strings.HasSuffix(out, `\`) && !strings.HasSuffix(out, "/") {
			out += sep
		}
		out += e
	}
	return out
}
