// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/vmware/dr-promote/pkg/backup"
	"github.com/vmware/dr-promote/pkg/drain"
	"github.com/vmware/dr-promote/pkg/mssql"
	"github.com/vmware/dr-promote/pkg/onec"
	"github.com/vmware/dr-promote/pkg/restore"
	"github.com/vmware/dr-promote/pkg/ssh"
)

const (
	DefaultConfigFilename = "dr-promote.yaml"
	EnvPrefix             = "DRPROMOTE_"
)

type Config struct {
	Backup BackupConfig  `koanf:"backup" json:"backup"`
	SQL    mssql.Config  `koanf:"sql" json:"sql"`
	OneC   onec.Config   `koanf:"onec" json:"onec"`
	Drain  drain.Options `koanf:"drain" json:"drain"`
	Remote ssh.Config    `koanf:"remote" json:"remote"`
	Log    LogConfig     `koanf:"log" json:"log"`
}

type BackupConfig struct {
	// Root holds one directory of backup files per database.
	Root string `koanf:"root" json:"root" validate:"required"`
	// ServerRoot is Root as seen by SQL Server, when the two differ.
	ServerRoot           string                    `koanf:"server_root" json:"server_root"`
	Suffixes             backup.Suffixes           `koanf:"suffixes" json:"suffixes"`
	MissingFull          restore.MissingFullPolicy `koanf:"missing_full" json:"missing_full" validate:"oneof=resume fail"`
	DiscoverLogicalNames bool                      `koanf:"discover_logical_names" json:"discover_logical_names"`
	Stats                int                       `koanf:"stats" json:"stats" validate:"min=0,max=100"`
	// Databases limits batch runs to these names. Empty means every directory under Root.
	Databases []string `koanf:"databases" json:"databases"`
	Exclude   []string `koanf:"exclude" json:"exclude"`
}

type LogConfig struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" json:"format" validate:"oneof=text json"`
	// File appends log entries to a file instead of stdout.
	File string `koanf:"file" json:"file"`
}

// defaultStats makes SQL Server report restore progress every 5 percent.
const defaultStats = 5

func defaultConfig() *Config {
	return &Config{
		Backup: BackupConfig{
			Suffixes:    backup.DefaultSuffixes(),
			MissingFull: restore.PolicyResume,
			Stats:       defaultStats,
		},
		SQL: mssql.Config{
			Server:         "localhost",
			ConnectTimeout: mssql.DefaultConnectTimeout,
			ConnectRetries: mssql.DefaultConnectRetries,
		},
		OneC: onec.Config{
			RASPort:       1545,
			Server:        "localhost",
			DBMS:          "MSSQLServer",
			Locale:        "ru",
			DateOffset:    2000,
			DeniedMessage: "Database is being restored",
			Web: onec.WebConfig{
				Server: "iis",
			},
		},
		Drain: drain.Options{
			Pause:   drain.DefaultPause,
			Timeout: drain.DefaultTimeout,
		},
		Remote: ssh.Config{
			Port:          ssh.DefaultPort,
			HostKeyPolicy: ssh.PolicyAsk,
			Timeout:       ssh.DefaultTimeout,
			DialRetries:   ssh.DefaultDialRetries,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads defaults, then the YAML file at path, then DRPROMOTE_ environment
// variables. A missing file is only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps DRPROMOTE_SQL__PASSWORD to sql.password.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// applyDerived fills values that default to other sections.
func (c *Config) applyDerived() {
	if c.OneC.DBServer == "" {
		c.OneC.DBServer = c.SQL.Server
		if c.SQL.Instance != "" {
			c.OneC.DBServer += `\` + c.SQL.Instance
		}
	}
	if c.OneC.DBAuth.User == "" {
		c.OneC.DBAuth = onec.Credentials{User: c.SQL.User, Password: c.SQL.Password}
	}
	if c.OneC.RASAddress == "" && c.OneC.RASPort > 0 {
		c.OneC.RASAddress = fmt.Sprintf("localhost:%d", c.OneC.RASPort)
	}
}

// Validate checks field constraints and the rules spanning several fields.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			result = multierror.Append(result, fmt.Errorf("%s: failed on %q", fe.Namespace(), fe.Tag()))
		}
	}
	if err := c.Backup.Suffixes.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("backup.suffixes: %w", err))
	}
	if c.OneC.Web.Enabled && c.OneC.Web.Root == "" {
		result = multierror.Append(result, errors.New("onec.web.root is required when publishing is enabled"))
	}
	if c.Remote.Enabled() && c.Remote.Password == "" && c.Remote.PrivateKey == "" {
		result = multierror.Append(result, errors.New("remote: a password or a private key is required"))
	}
	if c.Remote.Enabled() && c.OneC.StartRAS {
		result = multierror.Append(result, errors.New("onec.start_ras only works on the local host"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RestoreOptions returns the executor options for this configuration.
func (c *Config) RestoreOptions() restore.Options {
	return restore.Options{
		DataPath:             c.SQL.DataPath,
		ServerRoot:           c.Backup.ServerRoot,
		DiscoverLogicalNames: c.Backup.DiscoverLogicalNames,
		MissingFull:          c.Backup.MissingFull,
		Stats:                c.Backup.Stats,
	}
}

// Selected reports whether a database takes part in batch runs.
func (b BackupConfig) Selected(database string) bool {
	for _, name := range b.Exclude {
		if strings.EqualFold(name, database) {
			return false
		}
	}
	if len(b.Databases) == 0 {
		return true
	}
	for _, name := range b.Databases {
		if strings.EqualFold(name, database) {
			return true
		}
	}
	return false
}
