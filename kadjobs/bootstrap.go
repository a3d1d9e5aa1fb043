package kadjobs

import "time"

// BootstrapJob drives both the periodic full bootstrap and the
// automatic-on-routing-change bootstrap described in spec §4.6: a full
// bootstrap walk fires every periodic_bootstrap_interval regardless of
// other activity, and additionally whenever the routing table is updated
// from outside a query (e.g. an inbound connection adds a new peer) no more
// often than automatic_bootstrap_throttle. Grounded in the upstream
// startRefreshing/doRefresh ticker-plus-trigger-channel shape, adapted to
// the single poll-driven model rather than a background goroutine.
type BootstrapJob struct {
	periodic *Ticker
	throttle time.Duration

	hasLastAuto bool
	lastAuto    time.Time
	autoPending bool
}

// NewBootstrapJob builds a job with the given periodic interval and
// automatic-trigger throttle; either may be <= 0 to disable that trigger.
func NewBootstrapJob(periodicInterval, throttle time.Duration) *BootstrapJob {
	return &BootstrapJob{
		periodic: NewTicker(periodicInterval),
		throttle: throttle,
	}
}

// NotifyRoutingUpdated records that the routing table changed outside a
// query. It arms an automatic bootstrap run on the next Poll unless one ran
// more recently than the configured throttle.
func (j *BootstrapJob) NotifyRoutingUpdated(now time.Time) {
	if j.throttle <= 0 {
		return
	}
	if j.hasLastAuto && now.Sub(j.lastAuto) < j.throttle {
		return
	}
	j.autoPending = true
}

// Asap requests an out-of-schedule full bootstrap on the next Poll.
func (j *BootstrapJob) Asap() {
	j.periodic.Asap()
}

// Stop releases the job's ticker resources.
func (j *BootstrapJob) Stop() {
	j.periodic.Stop()
}

// Poll reports whether a bootstrap walk should be started now, either
// because the periodic interval elapsed or because an automatic trigger is
// pending and its throttle window has passed.
func (j *BootstrapJob) Poll(now time.Time) bool {
	due := j.periodic.Due()
	if j.autoPending {
		due = true
		j.autoPending = false
		j.lastAuto = now
		j.hasLastAuto = true
	}
	if due {
		log.Debug("bootstrap: starting walk")
	}
	return due
}
