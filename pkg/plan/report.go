// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"sigs.k8s.io/yaml"
)

type StepReport struct {
	Task     string `json:"task"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// Report is the outcome of one plan.
type Report struct {
	Plan     string       `json:"plan"`
	Database string       `json:"database"`
	Started  time.Time    `json:"started"`
	Duration string       `json:"duration"`
	Steps    []StepReport `json:"steps"`
	Error    string       `json:"error,omitempty"`
	Err      error        `json:"-"`
}

func (r *Report) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

func (r *Report) OK() bool {
	return r.Err == nil
}

type BatchReport struct {
	RunID   string    `json:"run_id"`
	Reports []*Report `json:"reports"`
}

// Write renders v as yaml or json.
func Write(w io.Writer, format string, v any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = yaml.Marshal(v)
	case "json":
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
