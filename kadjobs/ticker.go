// Package kadjobs implements the periodic replication, provider-republish
// and bootstrap background jobs of spec §4.6.
package kadjobs

import (
	"time"

	logging "github.com/ipfs/go-log"
)

var log = logging.Logger("kadjobs")

// Ticker wraps a time.Ticker with a non-blocking Due check and an asap()
// trigger, so a job's tick is consumed from the owner's single poll loop
// rather than from a goroutine racing with its state (spec §5). A zero
// interval disables the periodic tick; Asap still works.
type Ticker struct {
	interval time.Duration
	t        *time.Ticker
	trigger  chan struct{}
}

// NewTicker builds a ticker that fires every interval; interval <= 0
// disables the periodic tick (Due then reports ready only after Asap,
// matching "none disables" for the periodic_bootstrap_interval knob of
// spec §6).
func NewTicker(interval time.Duration) *Ticker {
	tk := &Ticker{interval: interval, trigger: make(chan struct{}, 1)}
	if interval > 0 {
		tk.t = time.NewTicker(interval)
	}
	return tk
}

// Due performs a non-blocking check of whether the ticker fired or was
// asked to fire asap since the last call.
func (t *Ticker) Due() bool {
	select {
	case <-t.trigger:
		return true
	default:
	}
	if t.t == nil {
		return false
	}
	select {
	case <-t.t.C:
		return true
	default:
		return false
	}
}

// Asap schedules an immediate tick on the next Due() check.
func (t *Ticker) Asap() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

// Enabled reports whether the ticker has a positive interval.
func (t *Ticker) Enabled() bool {
	return t.interval > 0
}

// Stop releases the underlying time.Ticker, if any.
func (t *Ticker) Stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
