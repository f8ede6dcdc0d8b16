// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/denisenkom/go-mssqldb"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPort           = 1433
	DefaultConnectTimeout = 30 * time.Second
	DefaultConnectRetries = 3
)

// Config describes how to reach the target SQL Server instance.
type Config struct {
	Server         string        `koanf:"server" json:"server" validate:"required"`
	Port           int           `koanf:"port" json:"port" validate:"min=0,max=65535"`
	Instance       string        `koanf:"instance" json:"instance,omitempty"`
	User           string        `koanf:"user" json:"user" validate:"required"`
	Password       string        `koanf:"password" json:"-"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout"`
	ConnectRetries int           `koanf:"connect_retries" json:"connect_retries" validate:"min=0"`
	// DataPath is where restored data and log files go. Empty means the
	// instance default data path.
	DataPath string `koanf:"data_path" json:"data_path"`
}

// DSN renders the go-mssqldb connection URL. Statements always run against master.
func (c Config) DSN() string {
	host := c.Server
	if c.Port > 0 && c.Instance == "" {
		host = net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
	}
	query := url.Values{}
	query.Set("database", "master")
	query.Set("app name", "dr-promote")
	if c.ConnectTimeout > 0 {
		query.Set("connection timeout", strconv.Itoa(int(c.ConnectTimeout/time.Second)))
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     host,
		RawQuery: query.Encode(),
	}
	if c.Instance != "" {
		u.Path = c.Instance
	}
	return u.String()
}

// DatabaseState is the state_desc of sys.databases.
type DatabaseState string

const (
	StateOnline    DatabaseState = "ONLINE"
	StateRestoring DatabaseState = "RESTORING"
	StateMissing   DatabaseState = ""
)

// LogicalFile is one row of RESTORE FILELISTONLY.
type LogicalFile struct {
	LogicalName  string
	PhysicalName string
	// Type is D for data files and L for log files.
	Type string
}

type Client struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewClient wraps an already opened database handle.
func NewClient(db *sql.DB, log logrus.FieldLogger) *Client {
	return &Client{db: db, log: log}
}

// Open connects to the server, retrying the initial ping with exponential backoff.
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Client, error) {
	db, err := sql.Open("sqlserver", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sql connection to %s: %w", cfg.Server, err)
	}
	// restores must not interleave on separate connections
	db.SetMaxOpenConns(1)

	retries := cfg.ConnectRetries
	if retries == 0 {
		retries = DefaultConnectRetries
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	ping := func() error {
		return db.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		log.Warnf("SQL Server %s is not reachable, retrying in %s: %v", cfg.Server, wait.Round(time.Millisecond), err)
	}
	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sql server %s: %w", cfg.Server, err)
	}

	log.Infof("Connected to SQL Server %s", cfg.Server)
	return NewClient(db, log), nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Exec validates and runs a statement, waiting for the server to finish it.
func (c *Client) Exec(ctx context.Context, stmt Statement) error {
	if err := stmt.Validate(); err != nil {
		return fmt.Errorf("invalid statement %q: %w", stmt.String(), err)
	}
	query := stmt.SQL()
	c.log.WithField("sql", query).Infof("About to %s", stmt.String())

	start := time.Now()
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		c.log.WithError(err).Errorf("Failed to %s", stmt.String())
		return fmt.Errorf("%s: %w", stmt.String(), err)
	}
	c.log.Infof("Finished %s in %s", stmt.String(), time.Since(start).Round(time.Millisecond))
	return nil
}

// DefaultDataPath returns the instance default data directory.
func (c *Client) DefaultDataPath(ctx context.Context) (string, error) {
	var path sql.NullString
	err := c.db.QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('InstanceDefaultDataPath') AS nvarchar(4000))").Scan(&path)
	if err != nil {
		return "", fmt.Errorf("query default data path: %w", err)
	}
	if !path.Valid || path.String == "" {
		return "", errors.New("server reports no default data path")
	}
	return path.String, nil
}

// DatabaseState returns StateMissing when the database does not exist.
func (c *Client) DatabaseState(ctx context.Context, name string) (DatabaseState, error) {
	var state string
	err := c.db.QueryRowContext(ctx, "SELECT state_desc FROM sys.databases WHERE name = @p1", name).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return StateMissing, nil
	}
	if err != nil {
		return StateMissing, fmt.Errorf("query state of database %s: %w", name, err)
	}
	return DatabaseState(state), nil
}

// RestoringDatabases lists the databases left in RESTORING state, sorted by name.
func (c *Client) RestoringDatabases(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT name FROM sys.databases WHERE state_desc = @p1 ORDER BY name", string(StateRestoring))
	if err != nil {
		return nil, fmt.Errorf("query restoring databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan restoring databases: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LogicalFiles reads the file list of a backup. Only the columns needed to
// build MOVE clauses are picked up since the column set differs between
// server versions.
func (c *Client) LogicalFiles(ctx context.Context, source string) ([]LogicalFile, error) {
	rows, err := c.db.QueryContext(ctx, "RESTORE FILELISTONLY FROM DISK = "+QuoteLiteral(source))
	if err != nil {
		return nil, fmt.Errorf("read file list of %s: %w", source, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read file list columns of %s: %w", source, err)
	}
	index := map[string]int{"LogicalName": -1, "PhysicalName": -1, "Type": -1}
	for i, name := range columns {
		if _, ok := index[name]; ok {
			index[name] = i
		}
	}
	if index["LogicalName"] < 0 || index["Type"] < 0 {
		return nil, fmt.Errorf("file list of %s has no LogicalName or Type column", source)
	}

	var files []LogicalFile
	for rows.Next() {
		values := make([]sql.RawBytes, len(columns))
		args := make([]any, len(columns))
		for i := range values {
			args[i] = &values[i]
		}
		if err := rows.Scan(args...); err != nil {
			return nil, fmt.Errorf("scan file list of %s: %w", source, err)
		}
		f := LogicalFile{
			LogicalName: string(values[index["LogicalName"]]),
			Type:        strings.ToUpper(string(values[index["Type"]])),
		}
		if i := index["PhysicalName"]; i >= 0 {
			f.PhysicalName = string(values[i])
		}
		if f.LogicalName == "" || (f.Type != "D" && f.Type != "L") {
			continue
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read file list of %s: %w", source, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("file list of %s has no data or log files", source)
	}
	return files, nil
}
