// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package mssql

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Statement is a typed T-SQL command. Validate is called by the client
// before SQL is rendered and sent to the server.
type Statement interface {
	Validate() error
	SQL() string
	String() string
}

// FileMove relocates one logical file of a backup to a physical path.
type FileMove struct {
	LogicalName  string
	PhysicalPath string
}

// RestoreDatabase restores a database or transaction log backup from disk.
type RestoreDatabase struct {
	Database string
	Source   string
	Moves    []FileMove
	// Log restores a transaction log backup (RESTORE LOG).
	Log bool
	// Recovery brings the database online after the restore. Chains are
	// applied with Recovery false and finished with RecoverDatabase.
	Recovery bool
	// Stats is the progress reporting interval in percent, 0 disables it.
	Stats int
}

func (s *RestoreDatabase) Validate() error {
	if err := validateName(s.Database); err != nil {
		return err
	}
	if strings.TrimSpace(s.Source) == "" {
		return errors.New("restore source is empty")
	}
	if s.Stats < 0 || s.Stats > 100 {
		return fmt.Errorf("stats interval %d is out of range", s.Stats)
	}
	for _, m := range s.Moves {
		if m.LogicalName == "" || m.PhysicalPath == "" {
			return fmt.Errorf("incomplete file move %q -> %q", m.LogicalName, m.PhysicalPath)
		}
	}
	return nil
}

func (s *RestoreDatabase) SQL() string {
	kind := "DATABASE"
	if s.Log {
		kind = "LOG"
	}

	options := []string{"FILE = 1"}
	for _, m := range s.Moves {
		options = append(options, fmt.Sprintf("MOVE %s TO %s", QuoteLiteral(m.LogicalName), QuoteLiteral(m.PhysicalPath)))
	}
	options = append(options, "NOUNLOAD")
	if !s.Log {
		options = append(options, "REPLACE")
	}
	if s.Recovery {
		options = append(options, "RECOVERY")
	} else {
		options = append(options, "NORECOVERY")
	}
	if s.Stats > 0 {
		options = append(options, fmt.Sprintf("STATS = %d", s.Stats))
	}

	return fmt.Sprintf("RESTORE %s %s FROM DISK = %s WITH %s",
		kind, QuoteName(s.Database), QuoteLiteral(s.Source), strings.Join(options, ", "))
}

func (s *RestoreDatabase) String() string {
	kind := "database"
	if s.Log {
		kind = "log"
	}
	return fmt.Sprintf("restore %s %s from %s", kind, s.Database, s.Source)
}

// RecoverDatabase brings a database left in RESTORING state online.
type RecoverDatabase struct {
	Database string
}

func (s *RecoverDatabase) Validate() error {
	return validateName(s.Database)
}

func (s *RecoverDatabase) SQL() string {
	return fmt.Sprintf("RESTORE DATABASE %s WITH RECOVERY", QuoteName(s.Database))
}

func (s *RecoverDatabase) String() string {
	return "recover database " + s.Database
}

// BackupDatabase writes a full backup of a database to disk.
type BackupDatabase struct {
	Database string
	Target   string
	Name     string
}

func (s *BackupDatabase) Validate() error {
	if err := validateName(s.Database); err != nil {
		return err
	}
	if strings.TrimSpace(s.Target) == "" {
		return errors.New("backup target is empty")
	}
	return nil
}

func (s *BackupDatabase) SQL() string {
	name := s.Name
	if name == "" {
		name = s.Database + "-Full Database Backup"
	}
	return fmt.Sprintf("BACKUP DATABASE %s TO DISK = %s WITH NOFORMAT, NOINIT, NAME = %s, SKIP, REWIND, NOUNLOAD, STATS = 10",
		QuoteName(s.Database), QuoteLiteral(s.Target), QuoteLiteral(name))
}

func (s *BackupDatabase) String() string {
	return fmt.Sprintf("backup database %s to %s", s.Database, s.Target)
}

// QuoteName returns a bracket-delimited identifier.
func QuoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteLiteral returns an N-prefixed unicode string literal.
func QuoteLiteral(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("database name is empty")
	}
	if len([]rune(name)) > 128 {
		return fmt.Errorf("database name %q is longer than 128 characters", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("database name %q contains control characters", name)
		}
	}
	return nil
}
