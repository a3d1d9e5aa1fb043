package kad

import (
	"time"

	process "github.com/jbenet/goprocess"
	processctx "github.com/jbenet/goprocess/context"
)

// Run starts a background goroutine, owned by proc, that drives Poll once
// per tick and forwards whatever it produces onto the returned channels.
// Poll itself stays fully synchronous and goroutine-free (spec §5 "only
// poll suspends"); Run is the optional convenience for a host application
// that would rather receive channels than call Poll itself, grounded on
// the upstream startRefreshing ticker-plus-goprocess shape. Once Run has
// started, every other call into b (OnOutboundResponse, GetRecord, ...)
// must happen from Run's own goroutine; the Behaviour has a single owner,
// never a mutex.
func (b *Behaviour) Run(proc process.Process, tick time.Duration) (<-chan Event, <-chan ToSwarm) {
	events := make(chan Event, 16)
	toSwarm := make(chan ToSwarm, 16)

	proc.Go(func(proc process.Process) {
		defer close(events)
		defer close(toSwarm)

		ctx := processctx.OnClosingContext(proc)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				evs, cmds := b.Poll(now)
				for _, ev := range evs {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
				for _, c := range cmds {
					select {
					case toSwarm <- c:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	})

	return events, toSwarm
}
