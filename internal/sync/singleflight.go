package sync

import "sync"

// flightGroup deduplicates concurrent syncs per profile: the first
// caller runs the pipeline, later callers with the same key block until
// it finishes and share its outcome.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

type flightCall struct {
	done    chan struct{}
	outcome Outcome
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*flightCall)}
}

// do runs fn under key, or waits for the in-flight run. The bool result
// reports whether the outcome was shared from another caller's run.
func (g *flightGroup) do(key string, fn func() Outcome) (Outcome, bool) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.outcome, true
	}

	c := &flightCall{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.outcome = fn()

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
	close(c.done)

	return c.outcome, false
}
