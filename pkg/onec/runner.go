// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package onec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vmware/dr-promote/pkg/ssh"
	"github.com/vmware/dr-promote/pkg/winpath"
)

// ExternalToolError is returned when a tool exits with an error or writes
// anything to standard error.
type ExternalToolError struct {
	Command string
	Stderr  string
	Cause   error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Command)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Cause
}

// Runner executes a program and captures its output.
type Runner interface {
	Run(ctx context.Context, program string, args []string) (stdout, stderr []byte, err error)
}

// LocalRunner runs programs on this host.
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, program string, args []string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Executor runs a command line on a remote host. It is satisfied by *ssh.Client.
type Executor interface {
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, err error)
}

var _ Executor = (*ssh.Client)(nil)

// RemoteRunner runs programs on the 1C server over SSH. The remote shell is
// expected to be cmd.exe, as with the default Windows OpenSSH server.
type RemoteRunner struct {
	Client Executor
}

func (r RemoteRunner) Run(ctx context.Context, program string, args []string) ([]byte, []byte, error) {
	return r.Client.Exec(ctx, CommandLine(program, args))
}

// CommandLine joins program and args into a single command line, quoting
// arguments that contain blanks or quotes.
func CommandLine(program string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{program}, args...) {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(a string) string {
	if a != "" && !strings.ContainsAny(a, " \t\"") {
		return a
	}
	return `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
}

// CLI runs typed commands through a Runner.
type CLI struct {
	runner     Runner
	binDir     string
	rasAddress string
	log        logrus.FieldLogger
}

func NewCLI(runner Runner, binDir, rasAddress string, log logrus.FieldLogger) *CLI {
	return &CLI{runner: runner, binDir: binDir, rasAddress: rasAddress, log: log}
}

// Program is the executable path of a tool.
func (c *CLI) Program(tool Tool) string {
	if c.binDir == "" {
		return string(tool)
	}
	return winpath.Join(c.binDir, string(tool))
}

// Argv returns the full argument list of cmd without the executable.
func (c *CLI) Argv(cmd Command) []string {
	args := cmd.Args()
	if cmd.Tool() == ToolRAC && c.rasAddress != "" {
		args = append([]string{c.rasAddress}, args...)
	}
	return args
}

// Run validates and executes cmd, returning its standard output split into lines.
func (c *CLI) Run(ctx context.Context, cmd Command) ([]string, error) {
	program := c.Program(cmd.Tool())
	args := c.Argv(cmd)
	printable := CommandLine(program, Redact(args))
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command %s: %w", printable, err)
	}

	log := c.log.WithField("command", printable)
	log.Debug("About to run")
	start := time.Now()
	stdout, stderr, err := c.runner.Run(ctx, program, args)
	msg := strings.TrimSpace(string(stderr))
	if err != nil || msg != "" {
		log.WithError(err).Errorf("Command failed: %s", msg)
		return nil, &ExternalToolError{Command: printable, Stderr: msg, Cause: err}
	}
	lines := splitLines(stdout)
	log.Debugf("Finished in %s, %d lines of output", time.Since(start).Round(time.Millisecond), len(lines))
	return lines, nil
}

func splitLines(out []byte) []string {
	text := strings.ReplaceAll(string(out), "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
