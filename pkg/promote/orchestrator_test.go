// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package promote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/config"
	"github.com/vmware/dr-promote/pkg/drain"
	"github.com/vmware/dr-promote/pkg/mssql"
	"github.com/vmware/dr-promote/pkg/onec"
	"github.com/vmware/dr-promote/pkg/restore"
)

const (
	clusterID = "6b1e4d9a-3d2c-11ee-8b4f-0242ac120002"
	buhID     = "a4f3b1f0-1c2d-4e5f-9a8b-7c6d5e4f3a2b"
	newID     = "9d8c7b6a-5f4e-4d3c-2b1a-0f9e8d7c6b5a"
)

// sqlServer keeps database states the way SQL Server would after each statement.
type sqlServer struct {
	states   map[string]mssql.DatabaseState
	restored map[string][]string
}

func newSQLServer() *sqlServer {
	return &sqlServer{states: map[string]mssql.DatabaseState{}, restored: map[string][]string{}}
}

func (s *sqlServer) Exec(_ context.Context, stmt mssql.Statement) error {
	switch st := stmt.(type) {
	case *mssql.RestoreDatabase:
		if strings.Contains(st.Source, "broken") {
			return errors.New("the media family on device is incorrectly formed")
		}
		s.states[st.Database] = mssql.StateRestoring
		s.restored[st.Database] = append(s.restored[st.Database], st.Source)
	case *mssql.RecoverDatabase:
		s.states[st.Database] = mssql.StateOnline
	default:
		return fmt.Errorf("unexpected statement %s", stmt)
	}
	return nil
}

func (s *sqlServer) LogicalFiles(context.Context, string) ([]mssql.LogicalFile, error) {
	return nil, nil
}

func (s *sqlServer) DatabaseState(_ context.Context, name string) (mssql.DatabaseState, error) {
	return s.states[name], nil
}

func (s *sqlServer) RestoringDatabases(context.Context) ([]string, error) {
	var names []string
	for name, state := range s.states {
		if state == mssql.StateRestoring {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// racRunner answers the admin tools like a cluster with one infobase, buh.
type racRunner struct {
	calls []string
}

func (r *racRunner) Run(_ context.Context, program string, args []string) ([]byte, []byte, error) {
	line := program + " " + strings.Join(args, " ")
	r.calls = append(r.calls, line)
	switch {
	case strings.HasPrefix(line, "rac cluster list"):
		return []byte("cluster : " + clusterID + "\nname : \"DR\"\n"), nil, nil
	case strings.HasPrefix(line, "rac infobase summary list"):
		return []byte("infobase : " + buhID + "\nname : buh\n"), nil, nil
	case strings.HasPrefix(line, "rac infobase create"):
		return []byte("infobase : " + newID + "\n"), nil, nil
	}
	return nil, nil, nil
}

func (r *racRunner) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fixture struct {
	fs     afero.Fs
	sql    *sqlServer
	runner *racRunner
	orch   *Orchestrator
}

func newFixture(t *testing.T, files map[string][]string) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	fs := afero.NewMemMapFs()
	for database, names := range files {
		require.NoError(t, fs.MkdirAll("/backups/"+database, 0o755))
		for _, name := range names {
			require.NoError(t, afero.WriteFile(fs, "/backups/"+database+"/"+name, []byte(name), 0o644))
		}
	}
	catalog := backup.NewCatalog(fs, backup.DefaultSuffixes(), log)
	sql := newSQLServer()
	runner := &racRunner{}

	cfg := onec.Config{
		Server:   "app01",
		DBMS:     "MSSQLServer",
		DBServer: "sql01",
		Web:      onec.WebConfig{Enabled: true, Server: "iis", Root: `C:\inetpub\wwwroot`},
	}
	session, err := onec.NewAdmin(onec.NewCLI(runner, "", "", log), cfg, log).Open(context.Background())
	require.NoError(t, err)

	clk := testingclock.NewFakeClock(time.Now())
	return &fixture{
		fs:     fs,
		sql:    sql,
		runner: runner,
		orch: &Orchestrator{
			Catalog:  catalog,
			Root:     "/backups",
			Executor: restore.NewExecutor(sql, catalog, restore.Options{DataPath: `D:\Data`}, log),
			SQL:      sql,
			Admin:    session,
			Drainer:  drain.NewController(drain.Options{Pause: time.Second, Timeout: time.Minute}, clk, log),
			Clock:    clk,
			Log:      log,
		},
	}
}

func (f *fixture) exists(t *testing.T, path string) bool {
	ok, err := afero.Exists(f.fs, path)
	require.NoError(t, err)
	return ok
}

func TestPromoteBatch(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"buh": {"20231201.bak", "20240101.bak", "20240103.dif", "20240104.trn", "20240105.trn"},
		"hrm": {"20240101.bak", "20240102-broken.trn"},
		"zup": {"20240101.bak"},
	})

	batch, err := f.orch.Run(context.Background(), ModePromote, "run-1", nil)
	require.NoError(t, err)
	require.Len(t, batch.Reports, 3)

	byDB := map[string]bool{}
	for _, r := range batch.Reports {
		byDB[r.Database] = r.OK()
	}
	require.Equal(t, map[string]bool{"buh": true, "hrm": false, "zup": true}, byDB)

	var failed *restore.RestoreFailedError
	require.ErrorAs(t, batch.Err(), &failed)
	require.Equal(t, "20240102-broken.trn", failed.Artifact.Name)

	// buh: chain applied oldest first, every file consumed
	require.Equal(t, []string{
		"/backups/buh/20240101.bak",
		"/backups/buh/20240103.dif",
		"/backups/buh/20240104.trn",
		"/backups/buh/20240105.trn",
	}, f.sql.restored["buh"])
	require.Equal(t, mssql.StateOnline, f.sql.states["buh"])
	require.False(t, f.exists(t, "/backups/buh/20231201.bak"))
	require.False(t, f.exists(t, "/backups/buh/20240105.trn"))

	// hrm: failed, nothing deleted, left restoring
	require.True(t, f.exists(t, "/backups/hrm/20240101.bak"))
	require.True(t, f.exists(t, "/backups/hrm/20240102-broken.trn"))
	require.Equal(t, mssql.StateRestoring, f.sql.states["hrm"])

	// buh existed and was drained, zup was created, both published
	require.Equal(t, 1, f.runner.count("rac infobase create"))
	require.Contains(t, f.runner.calls[len(f.runner.calls)-1], "-wsdir zup")
	require.Equal(t, 2, f.runner.count("rac infobase update"))
	require.Equal(t, 2, f.runner.count("webinst -publish"))
}

func TestPromoteIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string][]string{"zup": {"20240101.bak"}})

	for i := 0; i < 2; i++ {
		batch, err := f.orch.Run(context.Background(), ModePromote, "run", []string{"zup"})
		require.NoError(t, err)
		require.NoError(t, batch.Err())
	}
	require.Equal(t, 1, f.runner.count("rac infobase create"))
	require.Len(t, f.sql.restored["zup"], 1)
	// the second run drains the infobase created by the first one
	require.Equal(t, 2, f.runner.count("rac infobase update"))
}

func TestRestoreThenOnline(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"buh": {"20240101.bak", "20240102.trn"},
		"zup": {"20240101.bak"},
	})
	f.orch.Selected = func(name string) bool { return name != "zup" }

	batch, err := f.orch.Run(context.Background(), ModeRestore, "run", nil)
	require.NoError(t, err)
	require.Len(t, batch.Reports, 1)
	require.NoError(t, batch.Err())
	require.Equal(t, mssql.StateRestoring, f.sql.states["buh"])
	require.Zero(t, f.runner.count("webinst"))

	batch, err = f.orch.Run(context.Background(), ModeOnline, "run", nil)
	require.NoError(t, err)
	require.Len(t, batch.Reports, 1)
	require.NoError(t, batch.Err())
	require.Equal(t, mssql.StateOnline, f.sql.states["buh"])
	require.Equal(t, "recovered from RESTORING", batch.Reports[0].Steps[0].Output)
	require.Equal(t, 1, f.runner.count("webinst -publish"))
}

func TestFilterAppliesExclusions(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := config.BackupConfig{Databases: []string{"buh", "hrm", "zup"}, Exclude: []string{"HRM"}}
	orch := &Orchestrator{Selected: cfg.Selected, Log: log}

	require.Equal(t, []string{"buh", "zup"}, orch.Filter(cfg.Databases))
	require.Equal(t, []string{"buh", "hrm", "zup"}, cfg.Databases)
	require.Equal(t, []string{"hrm"}, (&Orchestrator{}).Filter([]string{"hrm"}))
}

func TestEmptyBackupDirectoryIsNoop(t *testing.T) {
	f := newFixture(t, map[string][]string{"buh": nil})

	batch, err := f.orch.Run(context.Background(), ModeRestore, "run", nil)
	require.NoError(t, err)
	require.NoError(t, batch.Err())
	require.Empty(t, f.sql.restored)
	require.Equal(t, "0 to restore, 0 obsolete", batch.Reports[0].Steps[0].Output)
}

func TestPlanRequiresAdmin(t *testing.T) {
	orch := &Orchestrator{}
	_, err := orch.Plan(ModePromote, "buh")
	require.ErrorIs(t, err, ErrNoAdmin)

	p, err := orch.Plan(ModeRestore, "buh")
	require.NoError(t, err)
	require.Len(t, p.Tasks, 2)

	_, err = (&Orchestrator{Admin: &onec.Session{}, Drainer: &drain.Controller{}}).Plan("teleport", "buh")
	require.Error(t, err)
}

func TestDryRun(t *testing.T) {
	f := newFixture(t, map[string][]string{"buh": {"20240101.bak", "20240102.trn"}})

	runs, err := f.orch.DryRun(context.Background(), []string{"buh", "missing"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Len(t, runs[0].Plan.Restore, 2)
	require.Empty(t, runs[0].Error)
	require.Contains(t, runs[1].Error, "missing")
	require.True(t, f.exists(t, "/backups/buh/20240101.bak"))
}
