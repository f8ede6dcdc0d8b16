// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package onec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Tool is an executable of the 1C platform.
type Tool string

const (
	ToolRAC      Tool = "rac"
	ToolRAS      Tool = "ras"
	ToolWebinst  Tool = "webinst"
	ToolDesigner Tool = "1cv8"
)

// Command is a typed invocation of a platform tool. Args does not include
// the executable nor, for rac, the server address.
type Command interface {
	Tool() Tool
	Validate() error
	Args() []string
}

// Credentials are passed to rac as --<scope>-user/--<scope>-pwd.
type Credentials struct {
	User     string `koanf:"user" json:"user"`
	Password string `koanf:"password" json:"-"`
}

func (c Credentials) args(scope string) []string {
	if c.User == "" {
		return nil
	}
	args := []string{fmt.Sprintf("--%s-user=%s", scope, c.User)}
	if c.Password != "" {
		args = append(args, fmt.Sprintf("--%s-pwd=%s", scope, c.Password))
	}
	return args
}

type ClusterList struct{}

func (ClusterList) Tool() Tool      { return ToolRAC }
func (ClusterList) Validate() error { return nil }
func (ClusterList) Args() []string  { return []string{"cluster", "list"} }

type InfobaseSummaryList struct {
	Cluster     string
	ClusterAuth Credentials
}

func (c InfobaseSummaryList) Tool() Tool      { return ToolRAC }
func (c InfobaseSummaryList) Validate() error { return validateID("cluster", c.Cluster) }

func (c InfobaseSummaryList) Args() []string {
	args := []string{"infobase", "summary", "list", "--cluster=" + c.Cluster}
	return append(args, c.ClusterAuth.args("cluster")...)
}

// InfobaseCreate registers an infobase bound to an existing SQL database.
type InfobaseCreate struct {
	Cluster       string
	ClusterAuth   Credentials
	Name          string
	DBMS          string
	DBServer      string
	DBName        string
	DBAuth        Credentials
	Locale        string
	DateOffset    int
	SecurityLevel int
	// CreateDatabase lets the cluster create the SQL database when it is missing.
	CreateDatabase      bool
	LicenseDistribution bool
}

func (c InfobaseCreate) Tool() Tool { return ToolRAC }

func (c InfobaseCreate) Validate() error {
	if err := validateID("cluster", c.Cluster); err != nil {
		return err
	}
	for field, value := range map[string]string{"name": c.Name, "dbms": c.DBMS, "db-server": c.DBServer, "db-name": c.DBName} {
		if err := validateValue(field, value); err != nil {
			return err
		}
	}
	if c.DateOffset != 0 && c.DateOffset != 2000 {
		return fmt.Errorf("date offset %d must be 0 or 2000", c.DateOffset)
	}
	if c.SecurityLevel < 0 || c.SecurityLevel > 3 {
		return fmt.Errorf("security level %d is out of range", c.SecurityLevel)
	}
	return nil
}

func (c InfobaseCreate) Args() []string {
	args := []string{"infobase", "create", "--cluster=" + c.Cluster}
	args = append(args, c.ClusterAuth.args("cluster")...)
	if c.CreateDatabase {
		args = append(args, "--create-database")
	}
	args = append(args,
		"--name="+c.Name,
		"--dbms="+c.DBMS,
		"--db-server="+c.DBServer,
		"--db-name="+c.DBName,
	)
	if c.Locale != "" {
		args = append(args, "--locale="+c.Locale)
	}
	args = append(args,
		"--date-offset="+strconv.Itoa(c.DateOffset),
		"--security-level="+strconv.Itoa(c.SecurityLevel),
		"--license-distribution="+allowDeny(c.LicenseDistribution),
	)
	return append(args, c.DBAuth.args("db")...)
}

// InfobaseUpdateLocks toggles the sessions-deny and scheduled-jobs-deny flags.
type InfobaseUpdateLocks struct {
	Cluster           string
	ClusterAuth       Credentials
	Infobase          string
	InfobaseAuth      Credentials
	SessionsDeny      bool
	ScheduledJobsDeny bool
	DeniedMessage     string
	PermissionCode    string
}

func (c InfobaseUpdateLocks) Tool() Tool { return ToolRAC }

func (c InfobaseUpdateLocks) Validate() error {
	if err := validateID("cluster", c.Cluster); err != nil {
		return err
	}
	return validateID("infobase", c.Infobase)
}

func (c InfobaseUpdateLocks) Args() []string {
	args := []string{"infobase", "update", "--cluster=" + c.Cluster}
	args = append(args, c.ClusterAuth.args("cluster")...)
	args = append(args, "--infobase="+c.Infobase)
	args = append(args, c.InfobaseAuth.args("infobase")...)
	args = append(args,
		"--sessions-deny="+onOff(c.SessionsDeny),
		"--scheduled-jobs-deny="+onOff(c.ScheduledJobsDeny),
	)
	if c.SessionsDeny && c.DeniedMessage != "" {
		args = append(args, "--denied-message="+c.DeniedMessage)
	}
	if c.SessionsDeny && c.PermissionCode != "" {
		args = append(args, "--permission-code="+c.PermissionCode)
	}
	return args
}

type ConnectionList struct {
	Cluster     string
	ClusterAuth Credentials
	Infobase    string
}

func (c ConnectionList) Tool() Tool { return ToolRAC }

func (c ConnectionList) Validate() error {
	if err := validateID("cluster", c.Cluster); err != nil {
		return err
	}
	return validateID("infobase", c.Infobase)
}

func (c ConnectionList) Args() []string {
	args := []string{"connection", "list", "--cluster=" + c.Cluster}
	args = append(args, c.ClusterAuth.args("cluster")...)
	return append(args, "--infobase="+c.Infobase)
}

type ConnectionDisconnect struct {
	Cluster      string
	ClusterAuth  Credentials
	Process      string
	Connection   string
	InfobaseAuth Credentials
}

func (c ConnectionDisconnect) Tool() Tool { return ToolRAC }

func (c ConnectionDisconnect) Validate() error {
	for field, value := range map[string]string{"cluster": c.Cluster, "process": c.Process, "connection": c.Connection} {
		if err := validateID(field, value); err != nil {
			return err
		}
	}
	return nil
}

func (c ConnectionDisconnect) Args() []string {
	args := []string{"connection", "disconnect", "--cluster=" + c.Cluster}
	args = append(args, c.ClusterAuth.args("cluster")...)
	args = append(args, "--process="+c.Process, "--connection="+c.Connection)
	return append(args, c.InfobaseAuth.args("infobase")...)
}

// WebPublish publishes an infobase to a web server with webinst.
type WebPublish struct {
	WebServer  string
	Name       string
	Dir        string
	ConnString string
	Descriptor string
}

func (c WebPublish) Tool() Tool { return ToolWebinst }

func (c WebPublish) Validate() error {
	switch c.WebServer {
	case "iis", "apache2", "apache22", "apache24":
	default:
		return fmt.Errorf("unsupported web server %q", c.WebServer)
	}
	for field, value := range map[string]string{"wsdir": c.Name, "dir": c.Dir, "connstr": c.ConnString} {
		if err := validateValue(field, value); err != nil {
			return err
		}
	}
	return nil
}

func (c WebPublish) Args() []string {
	args := []string{"-publish", "-" + c.WebServer, "-wsdir", c.Name, "-dir", c.Dir, "-connstr", c.ConnString}
	if c.Descriptor != "" {
		args = append(args, "-descriptor", c.Descriptor)
	}
	return args
}

// DesignerRestore loads a .dt dump into an infobase through the designer.
type DesignerRestore struct {
	Server   string
	Infobase string
	Auth     Credentials
	File     string
	// OutFile receives the designer's own log.
	OutFile string
}

func (c DesignerRestore) Tool() Tool { return ToolDesigner }

func (c DesignerRestore) Validate() error {
	for field, value := range map[string]string{"server": c.Server, "infobase": c.Infobase, "file": c.File} {
		if err := validateValue(field, value); err != nil {
			return err
		}
	}
	return nil
}

func (c DesignerRestore) Args() []string {
	args := []string{"DESIGNER", "/S", c.Server + `\` + c.Infobase}
	if c.Auth.User != "" {
		args = append(args, "/N", c.Auth.User)
		if c.Auth.Password != "" {
			args = append(args, "/P", c.Auth.Password)
		}
	}
	args = append(args, "/DisableStartupDialogs", "/RestoreIB", c.File)
	if c.OutFile != "" {
		args = append(args, "/Out", c.OutFile)
	}
	return args
}

// ConnString is the server connection string of an infobase.
func ConnString(server, infobase string) string {
	return fmt.Sprintf("Srvr=%s;Ref=%s;", server, infobase)
}

// Redact masks password values so an argv can be logged.
func Redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, a := range out {
		if strings.HasPrefix(a, "--") && strings.Contains(a, "-pwd=") {
			out[i] = a[:strings.Index(a, "=")+1] + "***"
		}
		if a == "/P" && i+1 < len(out) {
			out[i+1] = "***"
		}
	}
	return out
}

func validateID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s id is empty", field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%s id %q: %w", field, value, err)
	}
	return nil
}

func validateValue(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is empty", field)
	}
	if strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return errors.New(field + " contains control characters")
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func allowDeny(b bool) string {
	if b {
		return "allow"
	}
	return "deny"
}
