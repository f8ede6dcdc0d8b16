// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package task

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/vmware/dr-promote/pkg/mssql"
)

// StateReader reads the state of a database.
type StateReader interface {
	DatabaseState(ctx context.Context, name string) (mssql.DatabaseState, error)
}

// WaitStateTask polls the database until it reaches Want.
type WaitStateTask struct {
	SQL      StateReader
	Want     mssql.DatabaseState
	Timeout  time.Duration
	Interval time.Duration
	Clock    clock.Clock
}

func (t *WaitStateTask) Name() string {
	return "WaitState"
}

func (t *WaitStateTask) Run(ctx context.Context, job *Job) (string, error) {
	var (
		clk      = t.Clock
		timeout  = t.Timeout
		interval = t.Interval
	)
	if clk == nil {
		clk = clock.RealClock{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	start := clk.Now()
	var (
		state   mssql.DatabaseState
		lasterr error
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		state, lasterr = t.SQL.DatabaseState(ctx, job.Database)
		if lasterr == nil && state == t.Want {
			return fmt.Sprintf("%s after %s", state, clk.Since(start).Round(time.Second)), nil
		}
		if lasterr != nil {
			job.Log.WithError(lasterr).Warnf("Reading state of %s failed", job.Database)
		} else {
			job.Log.Debugf("Database %s is %q, waiting for %s", job.Database, state, t.Want)
		}
		if clk.Since(start) >= timeout {
			break
		}
		clk.Sleep(interval)
	}

	if lasterr != nil {
		return "", fmt.Errorf("database %s did not reach %s within %s: %w", job.Database, t.Want, timeout, lasterr)
	}
	return "", fmt.Errorf("database %s did not reach %s within %s, last state %q", job.Database, t.Want, timeout, state)
}
