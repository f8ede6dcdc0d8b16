// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/drain"
	"github.com/vmware/dr-promote/pkg/mssql"
	"github.com/vmware/dr-promote/pkg/restore"
)

func newJob(database string) *Job {
	log, _ := test.NewNullLogger()
	return &Job{Database: database, Log: log}
}

func TestResolveLineageTask(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"20231201.bak", "20240101.bak", "20240103.dif", "20240104.trn"} {
		require.NoError(t, afero.WriteFile(fs, "/backups/buh/"+name, []byte("x"), 0o644))
	}
	log, _ := test.NewNullLogger()
	job := newJob("buh")

	out, err := (&ResolveLineageTask{Catalog: backup.NewCatalog(fs, backup.DefaultSuffixes(), log), Root: "/backups"}).Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "3 to restore, 1 obsolete", out)
	require.Equal(t, "20240101.bak", job.Plan.Restore[0].Name)

	_, err = (&ResolveLineageTask{Catalog: backup.NewCatalog(fs, backup.DefaultSuffixes(), log), Root: "/backups"}).Run(context.Background(), newJob("zup"))
	var unavailable *backup.CatalogUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

type fakeRestorer struct {
	result *restore.Result
	err    error
}

func (f *fakeRestorer) Run(context.Context, string, backup.Plan) (*restore.Result, error) {
	return f.result, f.err
}

func TestRestoreChainTask(t *testing.T) {
	applied := []backup.Artifact{{Name: "a.bak"}, {Name: "b.trn"}}
	job := newJob("buh")
	out, err := (&RestoreChainTask{Executor: &fakeRestorer{result: &restore.Result{
		Applied:    applied,
		Removed:    applied[:1],
		CleanupErr: errors.New("locked"),
	}}}).Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "applied 2, removed 1 (cleanup incomplete)", out)
	require.Len(t, job.Restore.Applied, 2)

	failure := &restore.RestoreFailedError{Artifact: applied[1], Cause: errors.New("media is damaged")}
	_, err = (&RestoreChainTask{Executor: &fakeRestorer{result: &restore.Result{}, err: failure}}).Run(context.Background(), newJob("buh"))
	require.ErrorAs(t, err, &failure)
}

type fakeSQL struct {
	states []mssql.DatabaseState
	err    error
	execs  []string
}

func (f *fakeSQL) DatabaseState(context.Context, string) (mssql.DatabaseState, error) {
	if f.err != nil {
		return "", f.err
	}
	state := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return state, nil
}

func (f *fakeSQL) Exec(_ context.Context, stmt mssql.Statement) error {
	f.execs = append(f.execs, stmt.SQL())
	return nil
}

func TestRecoverDatabaseTask(t *testing.T) {
	sql := &fakeSQL{states: []mssql.DatabaseState{mssql.StateRestoring}}
	out, err := (&RecoverDatabaseTask{SQL: sql}).Run(context.Background(), newJob("buh"))
	require.NoError(t, err)
	require.Equal(t, "recovered from RESTORING", out)
	require.Equal(t, []string{"RESTORE DATABASE [buh] WITH RECOVERY"}, sql.execs)

	sql = &fakeSQL{states: []mssql.DatabaseState{mssql.StateOnline}}
	out, err = (&RecoverDatabaseTask{SQL: sql}).Run(context.Background(), newJob("buh"))
	require.NoError(t, err)
	require.Equal(t, "already online", out)
	require.Empty(t, sql.execs)

	sql = &fakeSQL{states: []mssql.DatabaseState{mssql.StateMissing}}
	_, err = (&RecoverDatabaseTask{SQL: sql}).Run(context.Background(), newJob("buh"))
	require.ErrorContains(t, err, "does not exist")
}

func TestBackupDatabaseTask(t *testing.T) {
	sql := &fakeSQL{}
	out, err := (&BackupDatabaseTask{SQL: sql, Dir: `D:\Backups\buh`, File: "20240105", Suffix: "bak"}).Run(context.Background(), newJob("buh"))
	require.NoError(t, err)
	require.Equal(t, `D:\Backups\buh\20240105.bak`, out)
	require.Len(t, sql.execs, 1)
	require.Contains(t, sql.execs[0], `BACKUP DATABASE [buh] TO DISK = N'D:\Backups\buh\20240105.bak'`)

	_, err = (&BackupDatabaseTask{SQL: sql}).Run(context.Background(), newJob("buh"))
	require.Error(t, err)
}

func TestWaitStateTask(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	sql := &fakeSQL{states: []mssql.DatabaseState{mssql.StateRestoring, "RECOVERING", mssql.StateOnline}}
	task := &WaitStateTask{SQL: sql, Want: mssql.StateOnline, Timeout: time.Minute, Interval: 10 * time.Second, Clock: clk}

	out, err := task.Run(context.Background(), newJob("buh"))
	require.NoError(t, err)
	require.Equal(t, "ONLINE after 20s", out)

	sql = &fakeSQL{states: []mssql.DatabaseState{mssql.StateRestoring}}
	task.SQL = sql
	_, err = task.Run(context.Background(), newJob("buh"))
	require.ErrorContains(t, err, `last state "RESTORING"`)

	task.SQL = &fakeSQL{err: errors.New("login failed")}
	_, err = task.Run(context.Background(), newJob("buh"))
	require.ErrorContains(t, err, "login failed")
}

type fakeAdmin struct {
	infobases   map[string]string
	published   []string
	target      *fakeTarget
	webDisabled bool
}

func (f *fakeAdmin) EnsureInfobase(_ context.Context, name string) (string, bool, error) {
	if id, ok := f.infobases[name]; ok {
		return id, false, nil
	}
	f.infobases[name] = "new-" + name
	return f.infobases[name], true, nil
}

func (f *fakeAdmin) Publish(_ context.Context, name string) (bool, error) {
	if f.webDisabled {
		return false, nil
	}
	f.published = append(f.published, name)
	return true, nil
}

func (f *fakeAdmin) DrainTarget(name string) (drain.Target, bool) {
	if _, ok := f.infobases[name]; !ok {
		return nil, false
	}
	f.target = &fakeTarget{name: name}
	return f.target, true
}

type fakeTarget struct {
	name  string
	locks []drain.LockState
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) SetLocks(_ context.Context, locks drain.LockState) error {
	f.locks = append(f.locks, locks)
	return nil
}

func (f *fakeTarget) Sessions(context.Context) ([]drain.Session, error) { return nil, nil }

func (f *fakeTarget) Close(context.Context, drain.Session) error { return nil }

func TestEnsureAndPublishInfobase(t *testing.T) {
	admin := &fakeAdmin{infobases: map[string]string{"buh": "id-buh"}}

	job := newJob("buh")
	out, err := (&EnsureInfobaseTask{Admin: admin}).Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "exists id-buh", out)
	require.False(t, job.InfobaseCreated)

	job = newJob("zup")
	out, err = (&EnsureInfobaseTask{Admin: admin}).Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "created new-zup", out)
	require.True(t, job.InfobaseCreated)

	out, err = (&PublishInfobaseTask{Admin: admin}).Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "published", out)
	require.Equal(t, []string{"zup"}, admin.published)
}

func TestPublishInfobaseDisabled(t *testing.T) {
	admin := &fakeAdmin{infobases: map[string]string{"buh": "id-buh"}, webDisabled: true}
	log, hook := test.NewNullLogger()
	job := &Job{Database: "buh", Log: log}

	out, err := (&PublishInfobaseTask{Admin: admin}).Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "skipped: web publishing disabled", out)
	require.Empty(t, admin.published)
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

type stubTask struct {
	name string
	err  error
	ran  int
}

func (s *stubTask) Name() string { return s.name }

func (s *stubTask) Run(context.Context, *Job) (string, error) {
	s.ran++
	return "ok", s.err
}

func TestDrainedTask(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctrl := drain.NewController(drain.Options{Pause: time.Millisecond, Timeout: time.Second}, nil, log)
	admin := &fakeAdmin{infobases: map[string]string{"buh": "id-buh"}}
	first, second := &stubTask{name: "First"}, &stubTask{name: "Second"}
	task := &DrainedTask{Admin: admin, Drainer: ctrl, Tasks: []Task{first, second}}
	require.Equal(t, "Drained(First,Second)", task.Name())

	out, err := task.Run(context.Background(), newJob("buh"))
	require.NoError(t, err)
	require.Equal(t, "drained; First: ok; Second: ok", out)
	require.Equal(t, []drain.LockState{
		{SessionsDenied: true, ScheduledJobsDenied: true},
		{},
	}, admin.target.locks)

	// no infobase yet, nothing to drain
	out, err = task.Run(context.Background(), newJob("zup"))
	require.NoError(t, err)
	require.Equal(t, "First: ok; Second: ok", out)

	first.err = errors.New("boom")
	_, err = task.Run(context.Background(), newJob("buh"))
	require.ErrorContains(t, err, "First: boom")
	require.Equal(t, 3, first.ran)
	require.Equal(t, 2, second.ran)
	require.Len(t, admin.target.locks, 2)
}
