// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package onec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRecords(t *testing.T) {
	lines := []string{
		"connection     : " + connectionID,
		"conn-id        : 1",
		"host           : ws-01",
		"process        : " + processID,
		`application    : "1CV8C"`,
		"",
		"",
		"connection     : 2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6e",
		"process        : " + processID,
		`infobase-name  : "say ""hi"""`,
		"garbage without separator",
		"endpoint       : tcp://ws-02:1560",
	}

	records := ParseRecords(lines)

	require.Equal(t, []Record{
		{
			"connection":  connectionID,
			"conn-id":     "1",
			"host":        "ws-01",
			"process":     processID,
			"application": "1CV8C",
		},
		{
			"connection":    "2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6e",
			"process":       processID,
			"infobase-name": `say "hi"`,
			"endpoint":      "tcp://ws-02:1560",
		},
	}, records)
}

func TestParseRecordsEmpty(t *testing.T) {
	require.Empty(t, ParseRecords(nil))
	require.Empty(t, ParseRecords([]string{"", "  "}))
}
