// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package drain

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

const (
	DefaultPause   = 5 * time.Second
	DefaultTimeout = 2 * time.Minute
)

// State is the position of a target in the drain protocol.
type State int

const (
	Unlocked State = iota
	Locking
	Draining
	Unlocking
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "Unlocked"
	case Locking:
		return "Locking"
	case Draining:
		return "Draining"
	case Unlocking:
		return "Unlocking"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LockState holds the deny flags of a target.
type LockState struct {
	SessionsDenied      bool
	ScheduledJobsDenied bool
}

// Session is one live connection and the server process hosting it.
type Session struct {
	Connection  string
	Process     string
	Application string
	Host        string
}

func (s Session) String() string {
	return fmt.Sprintf("connection %s (process %s, %s@%s)", s.Connection, s.Process, s.Application, s.Host)
}

// Target is an object whose sessions can be locked out and closed.
type Target interface {
	Name() string
	SetLocks(ctx context.Context, locks LockState) error
	Sessions(ctx context.Context) ([]Session, error)
	Close(ctx context.Context, s Session) error
}

// Options bound the drain loop. Zero values fall back to the defaults.
type Options struct {
	Pause   time.Duration `koanf:"pause" json:"pause"`
	Timeout time.Duration `koanf:"timeout" json:"timeout"`
	// MaxAttempts caps the number of list and close rounds, 0 means no cap.
	MaxAttempts int `koanf:"max_attempts" json:"max_attempts" validate:"min=0"`
}

// Controller runs the Unlocked, Locking, Draining, Unlocking protocol.
type Controller struct {
	opts  Options
	clock clock.Clock
	log   logrus.FieldLogger

	// OnTransition, when set, is called on every state change.
	OnTransition func(target string, from, to State)
}

func NewController(opts Options, clk clock.Clock, log logrus.FieldLogger) *Controller {
	if opts.Pause <= 0 {
		opts.Pause = DefaultPause
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Controller{opts: opts, clock: clk, log: log}
}

// Drain locks the target, evicts every session and unlocks it again.
func (c *Controller) Drain(ctx context.Context, t Target) error {
	return c.Run(ctx, t, nil)
}

// Run locks the target and drains it. When the drain succeeds op runs while
// the locks are still held. Whatever happens after locking succeeded, the
// locks are cleared exactly once before Run returns. A failure to clear them
// is returned as UnlockFailedError unless the drain or op already failed.
func (c *Controller) Run(ctx context.Context, t Target, op func(ctx context.Context) error) error {
	log := c.log.WithField("target", t.Name())
	state := Unlocked

	c.transition(t, &state, Locking)
	if err := t.SetLocks(ctx, LockState{SessionsDenied: true, ScheduledJobsDenied: true}); err != nil {
		c.transition(t, &state, Unlocked)
		log.WithError(err).Error("Failed to deny new sessions and scheduled jobs")
		return &LockUnavailableError{Target: t.Name(), Cause: err}
	}
	log.Info("New sessions and scheduled jobs denied")

	c.transition(t, &state, Draining)
	err := c.drain(ctx, t, log)
	if err == nil && op != nil {
		err = op(ctx)
	}

	c.transition(t, &state, Unlocking)
	if uerr := t.SetLocks(context.WithoutCancel(ctx), LockState{}); uerr != nil {
		log.WithError(uerr).Error("Failed to allow sessions and scheduled jobs again")
		if err == nil {
			err = &UnlockFailedError{Target: t.Name(), Cause: uerr}
		}
	} else {
		log.Info("Sessions and scheduled jobs allowed")
	}
	c.transition(t, &state, Unlocked)
	return err
}

func (c *Controller) drain(ctx context.Context, t Target, log logrus.FieldLogger) error {
	start := c.clock.Now()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sessions, err := t.Sessions(ctx)
		if err != nil {
			return fmt.Errorf("list sessions of %s: %w", t.Name(), err)
		}
		if len(sessions) == 0 {
			log.Infof("No active sessions left after %d attempts", attempt)
			return nil
		}

		elapsed := c.clock.Since(start)
		if elapsed >= c.opts.Timeout || (c.opts.MaxAttempts > 0 && attempt > c.opts.MaxAttempts) {
			return &DrainTimeoutError{Target: t.Name(), Attempts: attempt - 1, Remaining: len(sessions), Elapsed: elapsed}
		}

		log.Infof("Attempt %d: closing %d sessions", attempt, len(sessions))
		for _, s := range sessions {
			if err := t.Close(ctx, s); err != nil {
				log.WithError(err).Warnf("Failed to close %s", s)
				continue
			}
			log.Debugf("Closed %s", s)
		}

		c.clock.Sleep(c.opts.Pause)
	}
}

func (c *Controller) transition(t Target, state *State, to State) {
	from := *state
	*state = to
	c.log.WithField("target", t.Name()).Debugf("%s -> %s", from, to)
	if c.OnTransition != nil {
		c.OnTransition(t.Name(), from, to)
	}
}
