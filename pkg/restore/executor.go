// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package restore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/mssql"
	"github.com/vmware/dr-promote/pkg/winpath"
)

// ErrNoFullBackup is returned under PolicyRequireFull when the chain does not
// start from a Full backup.
var ErrNoFullBackup = errors.New("restore chain has no full backup")

// RestoreFailedError is returned when applying an artifact fails.
type RestoreFailedError struct {
	Artifact backup.Artifact
	Cause    error
}

func (e *RestoreFailedError) Error() string {
	return fmt.Sprintf("restore of %s failed: %v", e.Artifact.Path, e.Cause)
}

func (e *RestoreFailedError) Unwrap() error {
	return e.Cause
}

// MissingFullPolicy decides what to do with a chain that has no Full backup.
type MissingFullPolicy string

const (
	// PolicyResume applies the chain on top of whatever the target database holds.
	PolicyResume MissingFullPolicy = "resume"
	// PolicyRequireFull refuses the chain.
	PolicyRequireFull MissingFullPolicy = "fail"
)

// SQL is the part of the SQL channel the executor needs.
type SQL interface {
	Exec(ctx context.Context, stmt mssql.Statement) error
	LogicalFiles(ctx context.Context, source string) ([]mssql.LogicalFile, error)
}

// Storage removes consumed and obsolete artifacts.
type Storage interface {
	Remove(a backup.Artifact) error
}

type Options struct {
	// DataPath is the server directory the data and log files are moved to.
	DataPath string
	// ServerRoot is the backup root as seen by SQL Server. When empty the
	// artifact paths are passed as they were listed.
	ServerRoot string
	// DiscoverLogicalNames reads the logical file names from the first
	// artifact instead of assuming <db> and <db>_log.
	DiscoverLogicalNames bool
	MissingFull          MissingFullPolicy
	Stats                int
}

// Result describes a finished restore.
type Result struct {
	Applied []backup.Artifact `json:"applied"`
	Removed []backup.Artifact `json:"removed"`
	// CleanupErr collects artifacts that could not be removed. It does not
	// make the restore itself fail.
	CleanupErr error `json:"-"`
}

// Executor applies a resolved restore chain to one database.
type Executor struct {
	sql     SQL
	storage Storage
	opts    Options
	log     logrus.FieldLogger
}

func NewExecutor(sql SQL, storage Storage, opts Options, log logrus.FieldLogger) *Executor {
	if opts.MissingFull == "" {
		opts.MissingFull = PolicyResume
	}
	return &Executor{sql: sql, storage: storage, opts: opts, log: log}
}

// Run applies plan.Restore oldest first, leaving the database in RESTORING
// state. Only when every artifact has been applied are the obsolete
// artifacts and then the applied ones removed from storage. On failure
// nothing is removed.
func (e *Executor) Run(ctx context.Context, database string, plan backup.Plan) (*Result, error) {
	log := e.log.WithField("database", database)
	result := &Result{}

	if plan.Empty() {
		log.Info("Nothing to restore")
		return result, nil
	}
	if !plan.HasFull() {
		if e.opts.MissingFull == PolicyRequireFull {
			return result, fmt.Errorf("database %s: %w", database, ErrNoFullBackup)
		}
		log.Warnf("No full backup found, applying %d artifacts on top of the existing database", len(plan.Restore))
	}
	for _, a := range plan.Restore {
		log.Infof("Selected for restore: %s (%s, %s)", a.Name, a.Tier, humanize.Bytes(uint64(a.Size)))
	}
	for _, a := range plan.Delete {
		log.Infof("Obsolete: %s", a.Name)
	}

	moves, err := e.fileMoves(ctx, database, plan.Restore[0])
	if err != nil {
		return result, &RestoreFailedError{Artifact: plan.Restore[0], Cause: err}
	}

	start := time.Now()
	for _, a := range plan.Restore {
		stmt := &mssql.RestoreDatabase{
			Database: database,
			Source:   e.serverPath(a),
			Moves:    moves,
			Log:      a.Tier == backup.TransactionLog,
			Stats:    e.opts.Stats,
		}
		if err := e.sql.Exec(ctx, stmt); err != nil {
			log.WithError(err).Errorf("Restore of %s failed, %d artifacts applied", a.Name, len(result.Applied))
			return result, &RestoreFailedError{Artifact: a, Cause: err}
		}
		result.Applied = append(result.Applied, a)
	}
	log.Infof("Applied %d artifacts in %s", len(result.Applied), time.Since(start).Round(time.Millisecond))

	var cleanup *multierror.Error
	for _, a := range append(append([]backup.Artifact{}, plan.Delete...), result.Applied...) {
		if err := e.storage.Remove(a); err != nil {
			log.WithError(err).Warnf("Failed to remove %s", a.Path)
			cleanup = multierror.Append(cleanup, err)
			continue
		}
		log.Infof("Removed %s", a.Path)
		result.Removed = append(result.Removed, a)
	}
	result.CleanupErr = cleanup.ErrorOrNil()
	return result, nil
}

func (e *Executor) serverPath(a backup.Artifact) string {
	if e.opts.ServerRoot == "" {
		return a.Path
	}
	return winpath.Join(e.opts.ServerRoot, a.Database, a.Name)
}

func (e *Executor) fileMoves(ctx context.Context, database string, first backup.Artifact) ([]mssql.FileMove, error) {
	if e.opts.DataPath == "" {
		return nil, errors.New("no data path configured")
	}
	if !e.opts.DiscoverLogicalNames {
		return []mssql.FileMove{
			{LogicalName: database, PhysicalPath: winpath.Join(e.opts.DataPath, database+".mdf")},
			{LogicalName: database + "_log", PhysicalPath: winpath.Join(e.opts.DataPath, database+"_log.ldf")},
		}, nil
	}

	files, err := e.sql.LogicalFiles(ctx, e.serverPath(first))
	if err != nil {
		return nil, err
	}
	var (
		moves      []mssql.FileMove
		data, logs int
	)
	for _, f := range files {
		name := database
		ext := ".mdf"
		if f.Type == "L" {
			name += "_log"
			ext = ".ldf"
			if logs++; logs > 1 {
				name = fmt.Sprintf("%s_log%d", database, logs)
			}
		} else {
			if data++; data > 1 {
				name = fmt.Sprintf("%s_%d", database, data)
				ext = ".ndf"
			}
		}
		moves = append(moves, mssql.FileMove{LogicalName: f.LogicalName, PhysicalPath: winpath.Join(e.opts.DataPath, name+ext)})
	}
	return moves, nil
}
