// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package drain

import (
	"fmt"
	"time"
)

// LockUnavailableError means the deny flags could not be set. Nothing was
// drained and nothing needs unlocking.
type LockUnavailableError struct {
	Target string
	Cause  error
}

func (e *LockUnavailableError) Error() string {
	return fmt.Sprintf("cannot lock %s: %v", e.Target, e.Cause)
}

func (e *LockUnavailableError) Unwrap() error {
	return e.Cause
}

// DrainTimeoutError means sessions were still present when the drain budget ran out.
type DrainTimeoutError struct {
	Target    string
	Attempts  int
	Remaining int
	Elapsed   time.Duration
}

func (e *DrainTimeoutError) Error() string {
	return fmt.Sprintf("%s still has %d active sessions after %d attempts in %s",
		e.Target, e.Remaining, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// UnlockFailedError means the deny flags could not be cleared after an
// otherwise successful drain. The target still refuses new sessions.
type UnlockFailedError struct {
	Target string
	Cause  error
}

func (e *UnlockFailedError) Error() string {
	return fmt.Sprintf("cannot unlock %s: %v", e.Target, e.Cause)
}

func (e *UnlockFailedError) Unwrap() error {
	return e.Cause
}
