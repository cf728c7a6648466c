package colada

// Subscribe registers fn to run after any observable change to the entry:
// a committed fetch, SetData/UpdateData, Invalidate, or a hydration
// overwrite. Callbacks run synchronously on the mutating goroutine, after
// the entry lock is released, so they may read the entry freely but should
// return quickly. The returned cancel function removes the subscription and
// is safe to call more than once.
//
// The cache imposes no observation mechanism beyond this registry; the
// integration layer decides whether to poll or subscribe.
func (e *Entry) Subscribe(fn func(*Entry)) (cancel func()) {
	e.mu.Lock()
	if e.listeners == nil {
		e.listeners = make(map[uint64]func(*Entry))
	}
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// listenersLocked snapshots the current callbacks. Callers must hold e.mu.
func (e *Entry) listenersLocked() []func(*Entry) {
	if len(e.listeners) == 0 {
		return nil
	}
	out := make([]func(*Entry), 0, len(e.listeners))
	for _, fn := range e.listeners {
		out = append(out, fn)
	}
	return out
}

// notify invokes a listener snapshot. Must be called without e.mu held.
func (e *Entry) notify(listeners []func(*Entry)) {
	for _, fn := range listeners {
		fn(e)
	}
}
