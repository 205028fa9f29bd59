package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

func TestTimerFiresOnce(t *testing.T) {
	mock := quartz.NewMock(t)
	f := NewTimerFabric(mock, testLogger())

	var fired atomic.Int32
	f.Schedule("tbl-1", TimerAction, time.Second, func() { fired.Add(1) })
	require.True(t, f.Pending("tbl-1", TimerAction))

	mock.Advance(time.Second).MustWait(context.Background())
	require.Equal(t, int32(1), fired.Load())
	require.False(t, f.Pending("tbl-1", TimerAction))
}

func TestTimerCancelPreventsFire(t *testing.T) {
	mock := quartz.NewMock(t)
	f := NewTimerFabric(mock, testLogger())

	var fired atomic.Int32
	f.Schedule("tbl-1", TimerAction, time.Second, func() { fired.Add(1) })
	f.Cancel("tbl-1", TimerAction)
	require.False(t, f.Pending("tbl-1", TimerAction))

	mock.Advance(2 * time.Second)
	require.Equal(t, int32(0), fired.Load())
}

func TestScheduleReplacesPriorTimer(t *testing.T) {
	mock := quartz.NewMock(t)
	f := NewTimerFabric(mock, testLogger())

	var first, second atomic.Int32
	f.Schedule("tbl-1", TimerAction, time.Second, func() { first.Add(1) })
	f.Schedule("tbl-1", TimerAction, 3*time.Second, func() { second.Add(1) })

	mock.Advance(time.Second)
	require.Equal(t, int32(0), first.Load())

	mock.Advance(2 * time.Second).MustWait(context.Background())
	require.Equal(t, int32(0), first.Load())
	require.Equal(t, int32(1), second.Load())
}

func TestTimerClassesAreIndependent(t *testing.T) {
	mock := quartz.NewMock(t)
	f := NewTimerFabric(mock, testLogger())

	var action, nextHand atomic.Int32
	f.Schedule("tbl-1", TimerAction, time.Second, func() { action.Add(1) })
	f.Schedule("tbl-1", TimerNextHand, time.Second, func() { nextHand.Add(1) })
	f.Cancel("tbl-1", TimerAction)

	mock.Advance(time.Second).MustWait(context.Background())
	require.Equal(t, int32(0), action.Load())
	require.Equal(t, int32(1), nextHand.Load())
}

func TestCancelAllStopsEveryTableTimer(t *testing.T) {
	mock := quartz.NewMock(t)
	f := NewTimerFabric(mock, testLogger())

	var mine, theirs atomic.Int32
	f.Schedule("tbl-1", TimerAction, time.Second, func() { mine.Add(1) })
	f.Schedule("tbl-1", TimerAbandon, time.Second, func() { mine.Add(1) })
	f.Schedule("tbl-2", TimerAction, time.Second, func() { theirs.Add(1) })

	f.CancelAll("tbl-1")
	require.False(t, f.Pending("tbl-1", TimerAction))
	require.False(t, f.Pending("tbl-1", TimerAbandon))
	require.True(t, f.Pending("tbl-2", TimerAction))

	mock.Advance(time.Second).MustWait(context.Background())
	require.Equal(t, int32(0), mine.Load())
	require.Equal(t, int32(1), theirs.Load())
}
