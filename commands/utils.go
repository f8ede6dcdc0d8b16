// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/vmware/dr-promote/pkg/cliui"
	"github.com/vmware/dr-promote/pkg/config"
	"github.com/vmware/dr-promote/pkg/plan"
)

func printLog(format string, v ...any) {
	if verbose {
		log.Printf(format, v...)
	}
}

// newLogger builds the run logger. The returned closer releases the log
// file, if any.
func newLogger(cfg config.LogConfig, verbose bool, stdout io.Writer) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetOutput(stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		return logger, io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f, nil
}

// writeBatch prints a batch report in the selected output format and
// returns the aggregated failure.
func writeBatch(w io.Writer, batch *plan.BatchReport) error {
	if output == "text" {
		fmt.Fprint(w, cliui.BatchSummary(batch))
	} else if err := plan.Write(w, output, batch); err != nil {
		return err
	}
	return batch.Err()
}
