package schedule_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/schedule"
)

func TestRegisterAndList(t *testing.T) {
	s := schedule.New()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Daily().At("08:30").Name("rates:sync").Run(noop))
	require.NoError(t, s.Every(5).Minutes().Name("stock:sweep").Run(noop))

	assert.Equal(t, []string{
		"rates:sync  [30 8 * * *]",
		"stock:sweep  [@every 5m0s]",
	}, s.List())
}

func TestRunRejectsBadSpecAndDuplicates(t *testing.T) {
	s := schedule.New()
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Daily().At("25:99").Name("bad").Run(noop))
	assert.Error(t, s.Cron("not a cron").Run(noop))

	require.NoError(t, s.Hourly().Name("x").Run(noop))
	assert.Error(t, s.Hourly().Name("x").Run(noop))
}

func TestRunNow(t *testing.T) {
	s := schedule.New()
	boom := errors.New("boom")
	require.NoError(t, s.Hourly().Name("fail").Run(func(context.Context) error { return boom }))

	assert.ErrorIs(t, s.RunNow(context.Background(), "fail"), boom)
	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestStartFiresIntervalTasks(t *testing.T) {
	s := schedule.New()
	var runs atomic.Int32
	require.NoError(t, s.Every(1).Seconds().Name("tick").WithoutOverlapping().Run(func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Start(ctx))

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}
