// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package onec

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

// RASGuard makes sure the RAS service rac talks to is running on this host.
type RASGuard struct {
	Program string
	Port    int
	Log     logrus.FieldLogger

	// ListProcesses and Start default to gopsutil and os/exec.
	ListProcesses func(ctx context.Context) ([]string, error)
	Start         func(program string, args []string) error
}

// Ensure starts RAS in cluster mode unless a ras process is already running.
func (g *RASGuard) Ensure(ctx context.Context) error {
	list := g.ListProcesses
	if list == nil {
		list = processNames
	}
	start := g.Start
	if start == nil {
		start = startDetached
	}

	g.Log.Info("Checking if RAS is running")
	names, err := list(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	for _, name := range names {
		if strings.EqualFold(strings.TrimSuffix(strings.ToLower(name), ".exe"), string(ToolRAS)) {
			g.Log.Debug("RAS is running")
			return nil
		}
	}

	args := []string{"cluster"}
	if g.Port > 0 {
		args = append(args, "--port="+strconv.Itoa(g.Port))
	}
	g.Log.Infof("RAS is not running, starting %s", CommandLine(g.Program, args))
	if err := start(g.Program, args); err != nil {
		return fmt.Errorf("start RAS: %w", err)
	}
	return nil
}

func processNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		// processes may exit or be inaccessible while listing
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func startDetached(program string, args []string) error {
	cmd := exec.Command(program, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
