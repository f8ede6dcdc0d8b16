// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmware/dr-promote/pkg/drain"
)

// InfobaseAdmin is the part of an infobase admin session the tasks need.
// It is satisfied by *onec.Session.
type InfobaseAdmin interface {
	EnsureInfobase(ctx context.Context, name string) (id string, created bool, err error)
	Publish(ctx context.Context, name string) (published bool, err error)
	DrainTarget(name string) (drain.Target, bool)
}

// Drainer runs an operation on a drained target. It is satisfied by
// *drain.Controller.
type Drainer interface {
	Run(ctx context.Context, t drain.Target, op func(ctx context.Context) error) error
}

// EnsureInfobaseTask creates the infobase bound to the database unless one
// with the same name exists.
type EnsureInfobaseTask struct {
	Admin InfobaseAdmin
}

func (t *EnsureInfobaseTask) Name() string {
	return "EnsureInfobase"
}

func (t *EnsureInfobaseTask) Run(ctx context.Context, job *Job) (string, error) {
	id, created, err := t.Admin.EnsureInfobase(ctx, job.Database)
	if err != nil {
		return "", err
	}
	job.InfobaseID, job.InfobaseCreated = id, created
	if created {
		return "created " + id, nil
	}
	return "exists " + id, nil
}

// PublishInfobaseTask publishes the infobase on the web server.
type PublishInfobaseTask struct {
	Admin InfobaseAdmin
}

func (t *PublishInfobaseTask) Name() string {
	return "PublishInfobase"
}

func (t *PublishInfobaseTask) Run(ctx context.Context, job *Job) (string, error) {
	published, err := t.Admin.Publish(ctx, job.Database)
	if err != nil {
		return "", err
	}
	if !published {
		job.Log.Warnf("Infobase %s is not published: web publishing disabled", job.Database)
		return "skipped: web publishing disabled", nil
	}
	return "published", nil
}

// DrainedTask runs Tasks while the infobase of the database is locked and
// drained. When the database has no infobase yet there is nobody to evict
// and Tasks run directly.
type DrainedTask struct {
	Admin   InfobaseAdmin
	Drainer Drainer
	Tasks   []Task
}

func (t *DrainedTask) Name() string {
	names := make([]string, 0, len(t.Tasks))
	for _, inner := range t.Tasks {
		names = append(names, inner.Name())
	}
	return "Drained(" + strings.Join(names, ",") + ")"
}

func (t *DrainedTask) Run(ctx context.Context, job *Job) (string, error) {
	var outputs []string
	runAll := func(ctx context.Context) error {
		for _, inner := range t.Tasks {
			out, err := inner.Run(ctx, job)
			if err != nil {
				return fmt.Errorf("%s: %w", inner.Name(), err)
			}
			outputs = append(outputs, inner.Name()+": "+out)
		}
		return nil
	}

	target, ok := t.Admin.DrainTarget(job.Database)
	if !ok {
		job.Log.Debug("No infobase to drain")
		if err := runAll(ctx); err != nil {
			return "", err
		}
		return strings.Join(outputs, "; "), nil
	}
	if err := t.Drainer.Run(ctx, target, runAll); err != nil {
		return "", err
	}
	return "drained; " + strings.Join(outputs, "; "), nil
}
