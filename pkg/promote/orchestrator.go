// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package promote turns a passive SQL Server replica into the serving one:
// databases are restored from their backup chains, recovered, and given a
// published 1C infobase.
package promote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/mssql"
	"github.com/vmware/dr-promote/pkg/plan"
	"github.com/vmware/dr-promote/pkg/task"
)

type Mode string

const (
	// ModeRestore applies the backup chains and leaves the databases restoring.
	ModeRestore Mode = "restore"
	// ModeOnline recovers every restoring database and publishes its infobase.
	ModeOnline Mode = "online"
	// ModePromote restores, recovers and publishes.
	ModePromote Mode = "promote"
)

// ErrNoAdmin is returned for modes that need the 1C cluster when none is configured.
var ErrNoAdmin = errors.New("infobase administration is not configured")

// Catalog lists backup databases and artifacts.
type Catalog interface {
	task.Lister
	Databases(root string) ([]string, error)
}

// SQL is the database channel the orchestrator needs.
type SQL interface {
	task.StateExecer
	RestoringDatabases(ctx context.Context) ([]string, error)
}

// Orchestrator builds and runs one execution plan per database.
type Orchestrator struct {
	Catalog  Catalog
	Root     string
	Executor task.Restorer
	SQL      SQL
	// Admin and Drainer are only needed by ModeOnline and ModePromote.
	Admin   task.InfobaseAdmin
	Drainer task.Drainer
	// Selected filters batch runs; nil selects everything.
	Selected func(database string) bool
	// OnlineTimeout bounds the wait for a recovered database to come online.
	OnlineTimeout time.Duration
	Clock         clock.Clock
	Log           logrus.FieldLogger
}

// Databases returns the databases a batch run of mode covers: the backup
// directories for restore and promote, the restoring databases for online.
func (o *Orchestrator) Databases(ctx context.Context, mode Mode) ([]string, error) {
	var (
		names []string
		err   error
	)
	switch mode {
	case ModeRestore, ModePromote:
		names, err = o.Catalog.Databases(o.Root)
	case ModeOnline:
		names, err = o.SQL.RestoringDatabases(ctx)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	return o.Filter(names), nil
}

// Filter drops the names Selected rejects. The input slice is not modified.
func (o *Orchestrator) Filter(names []string) []string {
	if o.Selected == nil {
		return names
	}
	selected := make([]string, 0, len(names))
	for _, name := range names {
		if o.Selected(name) {
			selected = append(selected, name)
		} else {
			o.Log.Debugf("Skipping %s: not selected", name)
		}
	}
	return selected
}

// Plan returns the tasks of mode for one database.
func (o *Orchestrator) Plan(mode Mode, database string) (*plan.ExecutionPlan, error) {
	if mode != ModeRestore && (o.Admin == nil || o.Drainer == nil) {
		return nil, ErrNoAdmin
	}

	resolve := &task.ResolveLineageTask{Catalog: o.Catalog, Root: o.Root}
	restoreChain := &task.RestoreChainTask{Executor: o.Executor}
	recoverDB := &task.RecoverDatabaseTask{SQL: o.SQL}
	online := &task.WaitStateTask{SQL: o.SQL, Want: mssql.StateOnline, Timeout: o.OnlineTimeout, Clock: o.Clock}
	ensure := &task.EnsureInfobaseTask{Admin: o.Admin}
	publish := &task.PublishInfobaseTask{Admin: o.Admin}

	var tasks []task.Task
	switch mode {
	case ModeRestore:
		tasks = []task.Task{resolve, restoreChain}
	case ModeOnline:
		tasks = []task.Task{recoverDB, online, ensure, publish}
	case ModePromote:
		drained := &task.DrainedTask{Admin: o.Admin, Drainer: o.Drainer, Tasks: []task.Task{restoreChain, recoverDB}}
		tasks = []task.Task{resolve, drained, online, ensure, publish}
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	return &plan.ExecutionPlan{Name: string(mode), Database: database, Tasks: tasks}, nil
}

// Run executes mode for the given databases, or for every database of the
// mode when none are given. A failing database does not stop the others.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, runID string, databases []string) (*plan.BatchReport, error) {
	if len(databases) == 0 {
		var err error
		if databases, err = o.Databases(ctx, mode); err != nil {
			return nil, fmt.Errorf("list databases: %w", err)
		}
	}
	if len(databases) == 0 {
		o.Log.Warnf("No databases to %s", mode)
	}

	plans := make([]*plan.ExecutionPlan, 0, len(databases))
	for _, database := range databases {
		p, err := o.Plan(mode, database)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plan.Batch(ctx, runID, plans, o.Log), nil
}

// DryRun resolves the lineage of each database without touching anything.
func (o *Orchestrator) DryRun(ctx context.Context, databases []string) ([]plan.DryRun, error) {
	if len(databases) == 0 {
		var err error
		if databases, err = o.Databases(ctx, ModeRestore); err != nil {
			return nil, fmt.Errorf("list databases: %w", err)
		}
	}
	runs := make([]plan.DryRun, 0, len(databases))
	for _, database := range databases {
		run := plan.DryRun{Database: database}
		artifacts, err := o.Catalog.List(o.Root, database)
		if err != nil {
			run.Error = err.Error()
		} else {
			run.Plan = backup.Resolve(artifacts)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
