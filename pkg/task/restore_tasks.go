// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/mssql"
	"github.com/vmware/dr-promote/pkg/restore"
	"github.com/vmware/dr-promote/pkg/winpath"
)

// Lister lists the backup artifacts of a database.
type Lister interface {
	List(root, database string) ([]backup.Artifact, error)
}

// ResolveLineageTask lists the backup directory of the database and computes
// its restore plan.
type ResolveLineageTask struct {
	Catalog Lister
	Root    string
}

func (t *ResolveLineageTask) Name() string {
	return "ResolveLineage"
}

func (t *ResolveLineageTask) Run(_ context.Context, job *Job) (string, error) {
	artifacts, err := t.Catalog.List(t.Root, job.Database)
	if err != nil {
		return "", err
	}
	job.Plan = backup.Resolve(artifacts)
	return fmt.Sprintf("%d to restore, %d obsolete", len(job.Plan.Restore), len(job.Plan.Delete)), nil
}

// Restorer applies a restore plan.
type Restorer interface {
	Run(ctx context.Context, database string, plan backup.Plan) (*restore.Result, error)
}

// RestoreChainTask applies the plan computed by ResolveLineageTask.
type RestoreChainTask struct {
	Executor Restorer
}

func (t *RestoreChainTask) Name() string {
	return "RestoreChain"
}

func (t *RestoreChainTask) Run(ctx context.Context, job *Job) (string, error) {
	result, err := t.Executor.Run(ctx, job.Database, job.Plan)
	job.Restore = result
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf("applied %d, removed %d", len(result.Applied), len(result.Removed))
	if result.CleanupErr != nil {
		job.Log.WithError(result.CleanupErr).Warn("Some backup files were not removed")
		out += " (cleanup incomplete)"
	}
	return out, nil
}

// StateExecer reads database state and runs statements.
type StateExecer interface {
	DatabaseState(ctx context.Context, name string) (mssql.DatabaseState, error)
	Exec(ctx context.Context, stmt mssql.Statement) error
}

// RecoverDatabaseTask brings a database left in RESTORING state online. A
// database that is already online is left alone.
type RecoverDatabaseTask struct {
	SQL StateExecer
}

func (t *RecoverDatabaseTask) Name() string {
	return "RecoverDatabase"
}

func (t *RecoverDatabaseTask) Run(ctx context.Context, job *Job) (string, error) {
	state, err := t.SQL.DatabaseState(ctx, job.Database)
	if err != nil {
		return "", err
	}
	switch state {
	case mssql.StateOnline:
		return "already online", nil
	case mssql.StateMissing:
		return "", fmt.Errorf("database %s does not exist", job.Database)
	}
	if err := t.SQL.Exec(ctx, &mssql.RecoverDatabase{Database: job.Database}); err != nil {
		return "", err
	}
	return fmt.Sprintf("recovered from %s", state), nil
}

// BackupDatabaseTask writes a full backup of the database to Dir.
type BackupDatabaseTask struct {
	SQL interface {
		Exec(ctx context.Context, stmt mssql.Statement) error
	}
	// Dir is the database backup directory as seen by SQL Server.
	Dir string
	// File is the file name without suffix.
	File   string
	Suffix string
}

func (t *BackupDatabaseTask) Name() string {
	return "BackupDatabase"
}

func (t *BackupDatabaseTask) Run(ctx context.Context, job *Job) (string, error) {
	if t.Dir == "" || t.File == "" {
		return "", errors.New("backup target is not set")
	}
	target := winpath.Join(t.Dir, t.File+"."+t.Suffix)
	if err := t.SQL.Exec(ctx, &mssql.BackupDatabase{Database: job.Database, Target: target}); err != nil {
		return "", err
	}
	return target, nil
}
