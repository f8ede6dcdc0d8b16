// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package onec

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const (
	clusterID    = "6b1e4d9a-3d2c-11ee-8b4f-0242ac120002"
	infobaseID   = "a4f3b1f0-1c2d-4e5f-9a8b-7c6d5e4f3a2b"
	processID    = "0f8e7d6c-5b4a-4938-8271-6a5b4c3d2e1f"
	connectionID = "1a2b3c4d-5e6f-4a8b-9c0d-1e2f3a4b5c6d"
)

func TestInfobaseCreateArgs(t *testing.T) {
	cmd := InfobaseCreate{
		Cluster:             clusterID,
		ClusterAuth:         Credentials{User: "admin", Password: "secret"},
		Name:                "buh",
		DBMS:                "MSSQLServer",
		DBServer:            "sql01",
		DBName:              "buh",
		DBAuth:              Credentials{User: "sa", Password: "pwd"},
		Locale:              "ru",
		DateOffset:          2000,
		SecurityLevel:       1,
		LicenseDistribution: true,
	}

	require.NoError(t, cmd.Validate())
	require.Equal(t, []string{
		"infobase", "create", "--cluster=" + clusterID,
		"--cluster-user=admin", "--cluster-pwd=secret",
		"--name=buh", "--dbms=MSSQLServer", "--db-server=sql01", "--db-name=buh",
		"--locale=ru", "--date-offset=2000", "--security-level=1", "--license-distribution=allow",
		"--db-user=sa", "--db-pwd=pwd",
	}, cmd.Args())
}

func TestInfobaseUpdateLocksArgs(t *testing.T) {
	lock := InfobaseUpdateLocks{
		Cluster:           clusterID,
		Infobase:          infobaseID,
		InfobaseAuth:      Credentials{User: "Administrator"},
		SessionsDeny:      true,
		ScheduledJobsDeny: true,
		DeniedMessage:     "DR switchover",
		PermissionCode:    "0451",
	}
	require.Equal(t, []string{
		"infobase", "update", "--cluster=" + clusterID, "--infobase=" + infobaseID,
		"--infobase-user=Administrator",
		"--sessions-deny=on", "--scheduled-jobs-deny=on",
		"--denied-message=DR switchover", "--permission-code=0451",
	}, lock.Args())

	unlock := InfobaseUpdateLocks{Cluster: clusterID, Infobase: infobaseID, DeniedMessage: "ignored"}
	require.Equal(t, []string{
		"infobase", "update", "--cluster=" + clusterID, "--infobase=" + infobaseID,
		"--sessions-deny=off", "--scheduled-jobs-deny=off",
	}, unlock.Args())
}

func TestConnectionArgs(t *testing.T) {
	list := ConnectionList{Cluster: clusterID, Infobase: infobaseID}
	require.NoError(t, list.Validate())
	require.Equal(t, []string{"connection", "list", "--cluster=" + clusterID, "--infobase=" + infobaseID}, list.Args())

	disconnect := ConnectionDisconnect{Cluster: clusterID, Process: processID, Connection: connectionID}
	require.NoError(t, disconnect.Validate())
	require.Equal(t, []string{
		"connection", "disconnect", "--cluster=" + clusterID,
		"--process=" + processID, "--connection=" + connectionID,
	}, disconnect.Args())
}

func TestWebPublishArgs(t *testing.T) {
	cmd := WebPublish{
		WebServer:  "iis",
		Name:       "buh",
		Dir:        `C:\inetpub\wwwroot\buh`,
		ConnString: ConnString("localhost", "buh"),
		Descriptor: `C:\templates\default.vrd`,
	}
	require.NoError(t, cmd.Validate())
	require.Equal(t, []string{
		"-publish", "-iis", "-wsdir", "buh", "-dir", `C:\inetpub\wwwroot\buh`,
		"-connstr", "Srvr=localhost;Ref=buh;", "-descriptor", `C:\templates\default.vrd`,
	}, cmd.Args())

	cmd.WebServer = "nginx"
	require.Error(t, cmd.Validate())
}

func TestDesignerRestoreArgs(t *testing.T) {
	cmd := DesignerRestore{
		Server:   "localhost",
		Infobase: "demo",
		Auth:     Credentials{User: "Admin", Password: "x"},
		File:     `C:\dumps\demo.dt`,
	}
	require.NoError(t, cmd.Validate())
	require.Equal(t, []string{
		"DESIGNER", "/S", `localhost\demo`, "/N", "Admin", "/P", "x",
		"/DisableStartupDialogs", "/RestoreIB", `C:\dumps\demo.dt`,
	}, cmd.Args())
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{name: "summary without cluster", cmd: InfobaseSummaryList{}},
		{name: "cluster is not a uuid", cmd: InfobaseSummaryList{Cluster: "local"}},
		{name: "create without name", cmd: InfobaseCreate{Cluster: clusterID, DBMS: "MSSQLServer", DBServer: "s", DBName: "d", Locale: "ru"}},
		{name: "create with bad date offset", cmd: InfobaseCreate{Cluster: clusterID, Name: "n", DBMS: "MSSQLServer", DBServer: "s", DBName: "d", Locale: "ru", DateOffset: 1}},
		{name: "update without infobase", cmd: InfobaseUpdateLocks{Cluster: clusterID}},
		{name: "disconnect with bad process", cmd: ConnectionDisconnect{Cluster: clusterID, Process: "p", Connection: connectionID}},
		{name: "designer without file", cmd: DesignerRestore{Server: "s", Infobase: "i"}},
		{name: "name with newline", cmd: WebPublish{WebServer: "iis", Name: "a\nb", Dir: "d", ConnString: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cmd.Validate())
		})
	}
}

func TestRedact(t *testing.T) {
	args := []string{"--cluster-user=admin", "--cluster-pwd=secret", "--db-pwd=pwd", "/N", "Admin", "/P", "x"}
	require.Equal(t, []string{"--cluster-user=admin", "--cluster-pwd=***", "--db-pwd=***", "/N", "Admin", "/P", "***"}, Redact(args))
	require.Equal(t, "secret", args[1][len("--cluster-pwd="):])
}

func TestCommandLine(t *testing.T) {
	require.Equal(t,
		`"C:\Program Files\1cv8\bin\webinst" -publish -dir "C:\inet pub" -connstr "" "say \"hi\""`,
		CommandLine(`C:\Program Files\1cv8\bin\webinst`, []string{"-publish", "-dir", `C:\inet pub`, "-connstr", "", `say "hi"`}))
}

type recordingExecutor struct {
	lines []string
}

func (e *recordingExecutor) Exec(_ context.Context, cmd string) ([]byte, []byte, error) {
	e.lines = append(e.lines, cmd)
	return []byte("ok\r\n"), nil, nil
}

func TestRemoteRunner(t *testing.T) {
	exec := &recordingExecutor{}
	log, _ := test.NewNullLogger()
	cli := NewCLI(RemoteRunner{Client: exec}, `C:\Program Files\1cv8\bin`, "localhost:1545", log)

	lines, err := cli.Run(context.Background(), ClusterList{})
	require.NoError(t, err)
	require.Equal(t, []string{"ok"}, lines)
	require.Equal(t, []string{`"C:\Program Files\1cv8\bin\rac" localhost:1545 cluster list`}, exec.lines)
}
