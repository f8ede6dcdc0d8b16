// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/vmware/dr-promote/pkg/task"
)

// Execute runs the tasks in order and stops at the first failure. The
// returned report is never nil; its Err holds the failure.
func (p *ExecutionPlan) Execute(ctx context.Context, log logrus.FieldLogger) *Report {
	log = log.WithField("database", p.Database)
	job := &task.Job{Database: p.Database, Log: log}
	report := &Report{Plan: p.Name, Database: p.Database, Started: time.Now()}
	defer func() {
		report.Duration = time.Since(report.Started).Round(time.Millisecond).String()
	}()

	log.Infof("Executing plan %s", p.Name)
	for _, t := range p.Tasks {
		if err := ctx.Err(); err != nil {
			report.fail(fmt.Errorf("%s not started: %w", t.Name(), err))
			return report
		}
		step := StepReport{Task: t.Name()}
		start := time.Now()
		log.WithField("task", t.Name()).Debug("About to run")
		out, err := t.Run(ctx, job)
		step.Duration = time.Since(start).Round(time.Millisecond).String()
		step.Output = out
		if err != nil {
			step.Error = err.Error()
			report.Steps = append(report.Steps, step)
			log.WithField("task", t.Name()).WithError(err).Error("Task failed")
			report.fail(fmt.Errorf("%s: %w", t.Name(), err))
			return report
		}
		log.WithField("task", t.Name()).Infof("Done: %s", out)
		report.Steps = append(report.Steps, step)
	}
	log.Infof("Plan %s finished", p.Name)
	return report
}

// Batch runs every plan, each one independently of the failure of the
// others. Only a cancelled context stops the batch early; the plans not
// started are reported as failed.
func Batch(ctx context.Context, runID string, plans []*ExecutionPlan, log logrus.FieldLogger) *BatchReport {
	batch := &BatchReport{RunID: runID}
	for i, p := range plans {
		if err := ctx.Err(); err != nil {
			for _, rest := range plans[i:] {
				r := &Report{Plan: rest.Name, Database: rest.Database}
				r.fail(fmt.Errorf("not started: %w", err))
				batch.Reports = append(batch.Reports, r)
			}
			break
		}
		batch.Reports = append(batch.Reports, p.Execute(ctx, log))
	}

	ok, failed := batch.Count()
	log.Infof("Batch finished: %d succeeded, %d failed", ok, failed)
	return batch
}

// Err aggregates the failures of all plans.
func (b *BatchReport) Err() error {
	var result *multierror.Error
	for _, r := range b.Reports {
		if r.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.Database, r.Err))
		}
	}
	return result.ErrorOrNil()
}

func (b *BatchReport) Count() (ok, failed int) {
	for _, r := range b.Reports {
		if r.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}
