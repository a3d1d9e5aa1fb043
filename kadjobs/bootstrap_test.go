package kadjobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBootstrapJobPeriodicAsap(t *testing.T) {
	job := NewBootstrapJob(time.Hour, time.Hour)
	now := time.Unix(0, 0)
	require.False(t, job.Poll(now))

	job.Asap()
	require.True(t, job.Poll(now))
	require.False(t, job.Poll(now))
}

func TestBootstrapJobAutomaticTriggerRespectsThrottle(t *testing.T) {
	job := NewBootstrapJob(0, time.Minute)
	now := time.Unix(0, 0)

	job.NotifyRoutingUpdated(now)
	require.True(t, job.Poll(now), "first automatic trigger fires immediately")

	job.NotifyRoutingUpdated(now.Add(time.Second))
	require.False(t, job.Poll(now.Add(time.Second)), "throttle window has not elapsed")

	later := now.Add(2 * time.Minute)
	job.NotifyRoutingUpdated(later)
	require.True(t, job.Poll(later), "throttle window elapsed, trigger fires again")
}

func TestBootstrapJobAutomaticTriggerDisabledWhenThrottleZero(t *testing.T) {
	job := NewBootstrapJob(0, 0)
	now := time.Unix(0, 0)
	job.NotifyRoutingUpdated(now)
	require.False(t, job.Poll(now))
}
