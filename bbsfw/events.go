package bbsfw

import "sync"

// EventLogEntry is one unsolicited log message pushed by the controller.
// Entries are plain values; the session forwards them to subscribers and
// keeps nothing.
type EventLogEntry struct {
	Code    byte
	Data    uint16
	HasData bool
}

// observers fans notifications out to every registered callback,
// synchronously and in registration order, from the receive goroutine.
type observers struct {
	mu           sync.Mutex
	connected    []func(VersionInfo)
	disconnected []func()
	event        []func(EventLogEntry)
}

func (o *observers) onConnected(fn func(VersionInfo)) {
	o.mu.Lock()
	o.connected = append(o.connected, fn)
	o.mu.Unlock()
}

func (o *observers) onDisconnected(fn func()) {
	o.mu.Lock()
	o.disconnected = append(o.disconnected, fn)
	o.mu.Unlock()
}

func (o *observers) onEvent(fn func(EventLogEntry)) {
	o.mu.Lock()
	o.event = append(o.event, fn)
	o.mu.Unlock()
}

func (o *observers) notifyConnected(v VersionInfo) {
	o.mu.Lock()
	fns := append(([]func(VersionInfo))(nil), o.connected...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (o *observers) notifyDisconnected() {
	o.mu.Lock()
	fns := append(([]func())(nil), o.disconnected...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (o *observers) notifyEvent(e EventLogEntry) {
	o.mu.Lock()
	fns := append(([]func(EventLogEntry))(nil), o.event...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}
