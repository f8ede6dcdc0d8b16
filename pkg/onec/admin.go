// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package onec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vmware/dr-promote/pkg/drain"
	"github.com/vmware/dr-promote/pkg/winpath"
)

// Config describes the 1C server cluster and how infobases are created and published.
type Config struct {
	// BinDir holds rac, ras, webinst and 1cv8. Empty means they are on PATH.
	BinDir     string `koanf:"bin_dir" json:"bin_dir"`
	RASAddress string `koanf:"ras_address" json:"ras_address"`
	RASPort    int    `koanf:"ras_port" json:"ras_port" validate:"min=0,max=65535"`
	StartRAS   bool   `koanf:"start_ras" json:"start_ras"`
	// Cluster selects a cluster by id or name, the first listed one when empty.
	Cluster      string      `koanf:"cluster" json:"cluster"`
	ClusterAuth  Credentials `koanf:"cluster_auth" json:"cluster_auth"`
	InfobaseAuth Credentials `koanf:"infobase_auth" json:"infobase_auth"`
	// Server is the 1C server name used in connection strings.
	Server string `koanf:"server" json:"server" validate:"required"`

	DBMS                string      `koanf:"dbms" json:"dbms" validate:"required"`
	DBServer            string      `koanf:"db_server" json:"db_server"`
	DBAuth              Credentials `koanf:"db_auth" json:"db_auth"`
	Locale              string      `koanf:"locale" json:"locale"`
	DateOffset          int         `koanf:"date_offset" json:"date_offset" validate:"oneof=0 2000"`
	SecurityLevel       int         `koanf:"security_level" json:"security_level" validate:"min=0,max=3"`
	LicenseDistribution bool        `koanf:"license_distribution" json:"license_distribution"`
	CreateDatabase      bool        `koanf:"create_database" json:"create_database"`

	DeniedMessage  string `koanf:"denied_message" json:"denied_message"`
	PermissionCode string `koanf:"permission_code" json:"-"`
	// DesignerLog is where the designer writes its log during DT restores.
	DesignerLog string `koanf:"designer_log" json:"designer_log"`

	Web WebConfig `koanf:"web" json:"web"`
}

type WebConfig struct {
	Enabled    bool   `koanf:"enabled" json:"enabled"`
	Server     string `koanf:"server" json:"server" validate:"omitempty,oneof=iis apache2 apache22 apache24"`
	Root       string `koanf:"root" json:"root"`
	Descriptor string `koanf:"descriptor" json:"descriptor"`
}

// Admin opens sessions against the cluster through the rac, webinst and
// designer tools.
type Admin struct {
	cli *CLI
	cfg Config
	log logrus.FieldLogger
}

func NewAdmin(cli *CLI, cfg Config, log logrus.FieldLogger) *Admin {
	return &Admin{cli: cli, cfg: cfg, log: log}
}

// Session is the cluster and infobase view of one run. It is passed to
// every caller instead of being rediscovered.
type Session struct {
	admin     *Admin
	cluster   string
	infobases map[string]string
	log       logrus.FieldLogger
}

// Open discovers the cluster and the infobases registered in it.
func (a *Admin) Open(ctx context.Context) (*Session, error) {
	lines, err := a.cli.Run(ctx, ClusterList{})
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	cluster, err := a.pickCluster(ParseRecords(lines))
	if err != nil {
		return nil, err
	}
	a.log.Infof("Using cluster %s", cluster)

	s := &Session{admin: a, cluster: cluster, log: a.log.WithField("cluster", cluster)}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *Admin) pickCluster(records []Record) (string, error) {
	for _, r := range records {
		id := r["cluster"]
		if id == "" {
			continue
		}
		if a.cfg.Cluster == "" || strings.EqualFold(a.cfg.Cluster, id) || a.cfg.Cluster == r["name"] {
			return id, nil
		}
	}
	if a.cfg.Cluster != "" {
		return "", fmt.Errorf("cluster %q not found", a.cfg.Cluster)
	}
	return "", errors.New("no clusters registered on the server")
}

func (s *Session) Cluster() string {
	return s.cluster
}

// Refresh reloads the infobase name to id map.
func (s *Session) Refresh(ctx context.Context) error {
	lines, err := s.admin.cli.Run(ctx, InfobaseSummaryList{Cluster: s.cluster, ClusterAuth: s.admin.cfg.ClusterAuth})
	if err != nil {
		return fmt.Errorf("list infobases: %w", err)
	}
	s.infobases = make(map[string]string)
	for _, r := range ParseRecords(lines) {
		if r["infobase"] != "" && r["name"] != "" {
			s.infobases[r["name"]] = r["infobase"]
		}
	}
	s.log.Infof("Found %d infobases", len(s.infobases))
	return nil
}

// Infobases returns the registered infobase names, sorted.
func (s *Session) Infobases() []string {
	names := make([]string, 0, len(s.infobases))
	for name := range s.infobases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) InfobaseID(name string) (string, bool) {
	id, ok := s.infobases[name]
	return id, ok
}

// EnsureInfobase creates an infobase bound to the SQL database of the same
// name unless one with that name is already registered.
func (s *Session) EnsureInfobase(ctx context.Context, name string) (id string, created bool, err error) {
	if id, ok := s.infobases[name]; ok {
		s.log.Infof("Infobase %s is already registered", name)
		return id, false, nil
	}

	cfg := s.admin.cfg
	lines, err := s.admin.cli.Run(ctx, InfobaseCreate{
		Cluster:             s.cluster,
		ClusterAuth:         cfg.ClusterAuth,
		Name:                name,
		DBMS:                cfg.DBMS,
		DBServer:            cfg.DBServer,
		DBName:              name,
		DBAuth:              cfg.DBAuth,
		Locale:              cfg.Locale,
		DateOffset:          cfg.DateOffset,
		SecurityLevel:       cfg.SecurityLevel,
		LicenseDistribution: cfg.LicenseDistribution,
		CreateDatabase:      cfg.CreateDatabase,
	})
	if err != nil {
		return "", false, fmt.Errorf("create infobase %s: %w", name, err)
	}
	for _, r := range ParseRecords(lines) {
		if id = r["infobase"]; id != "" {
			break
		}
	}
	if id == "" {
		return "", false, fmt.Errorf("create infobase %s: no infobase id in output", name)
	}
	s.infobases[name] = id
	s.log.Infof("Created infobase %s (%s)", name, id)
	return id, true, nil
}

// Publish publishes the infobase to the web server. Publishing again
// overwrites the previous publication. published is false when web
// publishing is disabled.
func (s *Session) Publish(ctx context.Context, name string) (published bool, err error) {
	web := s.admin.cfg.Web
	if !web.Enabled {
		s.log.Warnf("Web publishing disabled, %s is not published", name)
		return false, nil
	}
	_, err = s.admin.cli.Run(ctx, WebPublish{
		WebServer:  web.Server,
		Name:       name,
		Dir:        winpath.Join(web.Root, name),
		ConnString: ConnString(s.admin.cfg.Server, name),
		Descriptor: web.Descriptor,
	})
	if err != nil {
		return false, fmt.Errorf("publish infobase %s: %w", name, err)
	}
	s.log.Infof("Published infobase %s", name)
	return true, nil
}

func (s *Session) mustID(name string) (string, error) {
	id, ok := s.infobases[name]
	if !ok {
		return "", fmt.Errorf("infobase %s is not registered in cluster %s", name, s.cluster)
	}
	return id, nil
}

// SetLocks sets or clears the sessions-deny and scheduled-jobs-deny flags.
func (s *Session) SetLocks(ctx context.Context, name string, locks drain.LockState) error {
	id, err := s.mustID(name)
	if err != nil {
		return err
	}
	cfg := s.admin.cfg
	_, err = s.admin.cli.Run(ctx, InfobaseUpdateLocks{
		Cluster:           s.cluster,
		ClusterAuth:       cfg.ClusterAuth,
		Infobase:          id,
		InfobaseAuth:      cfg.InfobaseAuth,
		SessionsDeny:      locks.SessionsDenied,
		ScheduledJobsDeny: locks.ScheduledJobsDenied,
		DeniedMessage:     cfg.DeniedMessage,
		PermissionCode:    cfg.PermissionCode,
	})
	return err
}

// Connections lists the live connections of an infobase.
func (s *Session) Connections(ctx context.Context, name string) ([]drain.Session, error) {
	id, err := s.mustID(name)
	if err != nil {
		return nil, err
	}
	lines, err := s.admin.cli.Run(ctx, ConnectionList{Cluster: s.cluster, ClusterAuth: s.admin.cfg.ClusterAuth, Infobase: id})
	if err != nil {
		return nil, err
	}
	var sessions []drain.Session
	for _, r := range ParseRecords(lines) {
		if r["connection"] == "" || r["process"] == "" {
			continue
		}
		sessions = append(sessions, drain.Session{
			Connection:  r["connection"],
			Process:     r["process"],
			Application: r["application"],
			Host:        r["host"],
		})
	}
	return sessions, nil
}

// Disconnect closes one connection.
func (s *Session) Disconnect(ctx context.Context, conn drain.Session) error {
	cfg := s.admin.cfg
	_, err := s.admin.cli.Run(ctx, ConnectionDisconnect{
		Cluster:      s.cluster,
		ClusterAuth:  cfg.ClusterAuth,
		Process:      conn.Process,
		Connection:   conn.Connection,
		InfobaseAuth: cfg.InfobaseAuth,
	})
	return err
}

// DrainTarget adapts a registered infobase to the drain protocol. ok is
// false when no infobase with that name exists.
func (s *Session) DrainTarget(name string) (drain.Target, bool) {
	if _, ok := s.infobases[name]; !ok {
		return nil, false
	}
	return &infobaseTarget{session: s, name: name}, true
}

// RestoreDT replaces the content of an infobase with a .dt dump. New sessions
// are denied and live ones closed for the duration of the restore.
func (s *Session) RestoreDT(ctx context.Context, ctrl *drain.Controller, name, file string) error {
	target, ok := s.DrainTarget(name)
	if !ok {
		return fmt.Errorf("infobase %s is not registered in cluster %s", name, s.cluster)
	}
	cfg := s.admin.cfg
	return ctrl.Run(ctx, target, func(ctx context.Context) error {
		s.log.Infof("Restoring infobase %s from %s", name, file)
		_, err := s.admin.cli.Run(ctx, DesignerRestore{
			Server:   cfg.Server,
			Infobase: name,
			Auth:     cfg.InfobaseAuth,
			File:     file,
			OutFile:  cfg.DesignerLog,
		})
		if err != nil {
			return fmt.Errorf("restore infobase %s from %s: %w", name, file, err)
		}
		return nil
	})
}

type infobaseTarget struct {
	session *Session
	name    string
}

func (t *infobaseTarget) Name() string { return t.name }

func (t *infobaseTarget) SetLocks(ctx context.Context, locks drain.LockState) error {
	return t.session.SetLocks(ctx, t.name, locks)
}

func (t *infobaseTarget) Sessions(ctx context.Context) ([]drain.Session, error) {
	return t.session.Connections(ctx, t.name)
}

func (t *infobaseTarget) Close(ctx context.Context, conn drain.Session) error {
	return t.session.Disconnect(ctx, conn)
}
