// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package drain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type fakeTarget struct {
	// rounds[i] is what the i-th Sessions call returns; past the end the
	// last entry repeats.
	rounds    [][]Session
	lockErr   error
	closeErr  map[string]error
	unlockErr error

	listed int
	closed []string
	locks  []LockState
}

func (f *fakeTarget) Name() string { return "demo" }

func (f *fakeTarget) SetLocks(_ context.Context, l LockState) error {
	f.locks = append(f.locks, l)
	if l.SessionsDenied {
		return f.lockErr
	}
	return f.unlockErr
}

func (f *fakeTarget) Sessions(context.Context) ([]Session, error) {
	i := f.listed
	f.listed++
	if len(f.rounds) == 0 {
		return nil, nil
	}
	if i >= len(f.rounds) {
		i = len(f.rounds) - 1
	}
	return f.rounds[i], nil
}

func (f *fakeTarget) Close(_ context.Context, s Session) error {
	if err := f.closeErr[s.Connection]; err != nil {
		return err
	}
	f.closed = append(f.closed, s.Connection)
	return nil
}

func (f *fakeTarget) unlocks() int {
	n := 0
	for _, l := range f.locks {
		if !l.SessionsDenied && !l.ScheduledJobsDenied {
			n++
		}
	}
	return n
}

func sessions(ids ...string) []Session {
	var out []Session
	for _, id := range ids {
		out = append(out, Session{Connection: id, Process: "p-" + id})
	}
	return out
}

func newTestController(opts Options) (*Controller, *testingclock.FakeClock, *[]State) {
	clk := testingclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	log, _ := test.NewNullLogger()
	c := NewController(opts, clk, log)
	var states []State
	c.OnTransition = func(_ string, _, to State) { states = append(states, to) }
	return c, clk, &states
}

func TestDrainSucceeds(t *testing.T) {
	c, clk, states := newTestController(Options{Pause: time.Second, Timeout: time.Minute})
	start := clk.Now()
	target := &fakeTarget{rounds: [][]Session{sessions("a", "b"), sessions("b"), nil}}

	require.NoError(t, c.Drain(context.Background(), target))

	require.Equal(t, []string{"a", "b", "b"}, target.closed)
	require.Equal(t, 3, target.listed)
	require.Equal(t, 1, target.unlocks())
	require.Equal(t, []State{Locking, Draining, Unlocking, Unlocked}, *states)
	require.Equal(t, 2*time.Second, clk.Since(start))
}

func TestDrainAlreadyEmpty(t *testing.T) {
	c, _, _ := newTestController(Options{})
	target := &fakeTarget{}

	require.NoError(t, c.Drain(context.Background(), target))
	require.Equal(t, 1, target.listed)
	require.Empty(t, target.closed)
	require.Equal(t, []LockState{{SessionsDenied: true, ScheduledJobsDenied: true}, {}}, target.locks)
}

func TestDrainTimeout(t *testing.T) {
	c, _, states := newTestController(Options{Pause: 10 * time.Second, Timeout: 30 * time.Second})
	target := &fakeTarget{rounds: [][]Session{sessions("stuck")}}

	err := c.Drain(context.Background(), target)

	var timeout *DrainTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, 3, timeout.Attempts)
	require.Equal(t, 1, timeout.Remaining)
	require.Equal(t, 30*time.Second, timeout.Elapsed)
	require.Equal(t, 1, target.unlocks())
	require.Equal(t, []State{Locking, Draining, Unlocking, Unlocked}, *states)
}

func TestDrainMaxAttempts(t *testing.T) {
	for limit := 1; limit <= 4; limit++ {
		t.Run(fmt.Sprintf("max=%d", limit), func(t *testing.T) {
			c, _, _ := newTestController(Options{Pause: time.Second, Timeout: time.Hour, MaxAttempts: limit})

			// empties after exactly max close rounds
			rounds := make([][]Session, limit)
			for i := range rounds {
				rounds[i] = sessions("s")
			}
			target := &fakeTarget{rounds: append(rounds, nil)}
			require.NoError(t, c.Drain(context.Background(), target))
			require.Equal(t, 1, target.unlocks())

			// never empties
			target = &fakeTarget{rounds: [][]Session{sessions("s")}}
			var timeout *DrainTimeoutError
			require.ErrorAs(t, c.Drain(context.Background(), target), &timeout)
			require.Equal(t, limit, timeout.Attempts)
			require.Equal(t, 1, target.unlocks())
		})
	}
}

func TestDrainLockUnavailable(t *testing.T) {
	c, _, states := newTestController(Options{})
	target := &fakeTarget{lockErr: errors.New("access denied"), rounds: [][]Session{sessions("a")}}

	err := c.Drain(context.Background(), target)

	var lockErr *LockUnavailableError
	require.ErrorAs(t, err, &lockErr)
	require.Zero(t, target.listed)
	require.Zero(t, target.unlocks())
	require.Equal(t, []State{Locking, Unlocked}, *states)
}

func TestDrainSkipsCloseFailures(t *testing.T) {
	c, _, _ := newTestController(Options{Pause: time.Second, Timeout: time.Minute})
	target := &fakeTarget{
		rounds:   [][]Session{sessions("gone", "b"), nil},
		closeErr: map[string]error{"gone": errors.New("connection not found")},
	}

	require.NoError(t, c.Drain(context.Background(), target))
	require.Equal(t, []string{"b"}, target.closed)
}

func TestDrainUnlockFailure(t *testing.T) {
	c, _, _ := newTestController(Options{Pause: time.Second, Timeout: time.Minute})

	target := &fakeTarget{unlockErr: errors.New("cluster unreachable")}
	var ran bool
	err := c.Run(context.Background(), target, func(context.Context) error {
		ran = true
		return nil
	})
	require.True(t, ran)
	var unlockErr *UnlockFailedError
	require.ErrorAs(t, err, &unlockErr)
	require.Equal(t, target.Name(), unlockErr.Target)
	require.ErrorContains(t, err, "cluster unreachable")

	target = &fakeTarget{unlockErr: errors.New("cluster unreachable"), rounds: [][]Session{sessions("x")}}
	err = c.Drain(context.Background(), target)
	var timeout *DrainTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.False(t, errors.As(err, &unlockErr))
}

func TestRunOperationWhileLocked(t *testing.T) {
	c, _, _ := newTestController(Options{})
	target := &fakeTarget{}

	var locksDuringOp int
	err := c.Run(context.Background(), target, func(context.Context) error {
		locksDuringOp = len(target.locks)
		return errors.New("restore failed")
	})

	require.EqualError(t, err, "restore failed")
	require.Equal(t, 1, locksDuringOp)
	require.Equal(t, 1, target.unlocks())
}

func TestRunSkipsOperationOnTimeout(t *testing.T) {
	c, _, _ := newTestController(Options{Pause: time.Second, Timeout: 2 * time.Second})
	target := &fakeTarget{rounds: [][]Session{sessions("x")}}

	called := false
	err := c.Run(context.Background(), target, func(context.Context) error {
		called = true
		return nil
	})

	var timeout *DrainTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.False(t, called)
}

func TestDrainCancelledContextStillUnlocks(t *testing.T) {
	c, _, _ := newTestController(Options{})
	target := &fakeTarget{rounds: [][]Session{sessions("x")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, c.Drain(ctx, target), context.Canceled)
	require.Equal(t, 1, target.unlocks())
}
