// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/afero/sftpfs"
	"k8s.io/utils/clock"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/cliui"
	"github.com/vmware/dr-promote/pkg/config"
	"github.com/vmware/dr-promote/pkg/drain"
	"github.com/vmware/dr-promote/pkg/mssql"
	"github.com/vmware/dr-promote/pkg/onec"
	"github.com/vmware/dr-promote/pkg/promote"
	"github.com/vmware/dr-promote/pkg/restore"
	"github.com/vmware/dr-promote/pkg/ssh"
)

// env holds everything one command invocation talks to.
type env struct {
	cfg   *config.Config
	runID string
	log   *logrus.Entry

	sql     *mssql.Client
	catalog *backup.Catalog
	remote  *ssh.Client
	admin   *onec.Session
	drainer *drain.Controller

	closers []io.Closer
}

type needs struct {
	sql   bool
	admin bool
}

func newEnv(ctx context.Context, n needs) (*env, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := newLogger(cfg.Log, verbose, os.Stderr)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, runID: uuid.NewString(), closers: []io.Closer{logCloser}}
	e.log = logger.WithField("run_id", e.runID)
	printLog("Run %s with configuration %s", e.runID, configFile)

	if err := e.connect(ctx, n); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) connect(ctx context.Context, n needs) error {
	cfg := e.cfg

	if cfg.Remote.Enabled() {
		if interactive && cfg.Remote.HostKeyPolicy == ssh.PolicyAsk {
			cb, err := ssh.HostKeyCallback(cfg.Remote.HostKeyPolicy, cfg.Remote.KnownHosts, confirmHostKey, e.log)
			if err != nil {
				return err
			}
			cfg.Remote.SetHostKeyCallback(cb)
		}
		client, err := ssh.Dial(ctx, &cfg.Remote, e.log.WithField("host", cfg.Remote.Host))
		if err != nil {
			return err
		}
		e.remote = client
		e.closers = append(e.closers, client)
	}

	fs, err := e.backupFs()
	if err != nil {
		return err
	}
	e.catalog = backup.NewCatalog(fs, cfg.Backup.Suffixes, e.log)

	if n.sql {
		client, err := mssql.Open(ctx, cfg.SQL, e.log.WithField("server", cfg.SQL.Server))
		if err != nil {
			return err
		}
		e.sql = client
		e.closers = append(e.closers, client)
	}

	if n.admin {
		if err := e.openAdmin(ctx); err != nil {
			return err
		}
	}
	return nil
}

// backupFs is the local disk, or the remote host over SFTP when one is configured.
func (e *env) backupFs() (afero.Fs, error) {
	if e.remote == nil {
		return afero.NewOsFs(), nil
	}
	sc, err := e.remote.SFTP()
	if err != nil {
		return nil, fmt.Errorf("open sftp session: %w", err)
	}
	e.closers = append(e.closers, sc)
	return sftpfs.New(sc), nil
}

func (e *env) openAdmin(ctx context.Context) error {
	cfg := e.cfg.OneC
	log := e.log.WithField("component", "onec")

	var runner onec.Runner = onec.LocalRunner{}
	if e.remote != nil {
		runner = onec.RemoteRunner{Client: e.remote}
	}
	cli := onec.NewCLI(runner, cfg.BinDir, cfg.RASAddress, log)

	if cfg.StartRAS {
		guard := &onec.RASGuard{Program: cli.Program(onec.ToolRAS), Port: cfg.RASPort, Log: log}
		if err := guard.Ensure(ctx); err != nil {
			return err
		}
	}

	session, err := onec.NewAdmin(cli, cfg, log).Open(ctx)
	if err != nil {
		return err
	}
	e.admin = session
	e.drainer = drain.NewController(e.cfg.Drain, clock.RealClock{}, e.log.WithField("component", "drain"))
	return nil
}

func (e *env) orchestrator(ctx context.Context) (*promote.Orchestrator, error) {
	opts := e.cfg.RestoreOptions()
	if opts.DataPath == "" {
		path, err := e.sql.DefaultDataPath(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve default data path: %w", err)
		}
		opts.DataPath = path
	}

	o := &promote.Orchestrator{
		Catalog:  e.catalog,
		Root:     e.cfg.Backup.Root,
		Executor: restore.NewExecutor(e.sql, e.catalog, opts, e.log),
		SQL:      e.sql,
		Selected: e.cfg.Backup.Selected,
		Clock:    clock.RealClock{},
		Log:      e.log,
	}
	// nil interface values must stay nil for the orchestrator to notice them
	if e.admin != nil {
		o.Admin = e.admin
		o.Drainer = e.drainer
	}
	return o, nil
}

func (e *env) Close() error {
	var result *multierror.Error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func confirmHostKey(question string) (bool, error) {
	return cliui.Confirm(question)
}

// pickDatabase lets the operator choose one of the candidate databases.
func pickDatabase(title string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, errors.New("no databases to choose from")
	}
	_, database, err := cliui.Select(title, candidates)
	if err != nil {
		return nil, err
	}
	return []string{database}, nil
}
