// Package bbsfw implements the host side of the binary serial protocol
// spoken by the open source BBSHD/BBS02 motor controller firmware: the
// connect handshake, configuration record exchange and the unsolicited
// event log stream.
package bbsfw

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// handshakeInterval is the cadence of the firmware-version probe sent
	// while a Connect is waiting for the controller to answer.
	handshakeInterval = 200 * time.Millisecond

	// staleAfter is the receive gap after which a pending partial frame is
	// treated as abandoned and dropped before new bytes are appended.
	staleAfter = 100 * time.Millisecond
)

var (
	// ErrNotConnected is returned for requests issued on a session that has
	// not completed its handshake.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyOpen is returned by Connect when the session already holds a
	// transport. Sessions do not resume; Close first, then Connect again.
	ErrAlreadyOpen = errors.New("connection already open")

	// ErrTimeout is returned when the controller does not answer within the
	// caller's deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrConfigRejected is returned when the controller answers a
	// configuration write but refuses the record.
	ErrConfigRejected = errors.New("controller rejected configuration")
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// VersionInfo is the firmware identity reported by the controller during the
// connect handshake.
type VersionInfo struct {
	Version       string // "major.minor.patch"
	ConfigVersion byte   // configuration layout version the firmware expects
}

// Codec encodes and decodes the controller's fixed-layout configuration
// record. The session treats the record as opaque: only the declared layout
// version and serialized size take part in frame validation. Decode must not
// retain data past the call; the slice aliases the receive buffer.
type Codec[C any] interface {
	Version() byte
	Size() int
	Decode(data []byte) (C, error)
	Encode(cfg C) ([]byte, error)
}

// Connection is a session with one controller over one serial or TCP link.
//
// A Connection is safe for concurrent use, with one restriction inherited
// from the wire protocol: responses carry no correlation id, so at most one
// request of each kind may be outstanding at a time. A second concurrent
// ReadConfiguration (or WriteConfiguration) can be answered with the first
// call's response.
type Connection[C any] struct {
	codec Codec[C]

	mu     sync.Mutex // guards port, state, rx, lastRx, fw, done
	wmu    sync.Mutex // serializes transport writes
	port   io.ReadWriteCloser
	state  State
	rx     []byte
	lastRx time.Time
	fw     VersionInfo
	done   chan struct{}

	handshake slot[VersionInfo]
	read      slot[C]
	write     slot[bool]

	obs observers
}

// NewConnection returns an unconnected session using codec for the
// configuration record.
func NewConnection[C any](codec Codec[C]) *Connection[C] {
	return &Connection[C]{codec: codec}
}

// State returns the session's current lifecycle state.
func (c *Connection[C]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FirmwareVersion returns the identity reported by the last completed
// handshake, or the zero value before the first one.
func (c *Connection[C]) FirmwareVersion() VersionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fw
}

// OnConnected registers fn to run after every completed handshake.
// Notification callbacks run synchronously in registration order on the
// session's receive goroutine, so they must not call the blocking request
// methods.
func (c *Connection[C]) OnConnected(fn func(VersionInfo)) { c.obs.onConnected(fn) }

// OnDisconnected registers fn to run when a connected session closes.
func (c *Connection[C]) OnDisconnected(fn func()) { c.obs.onDisconnected(fn) }

// OnEventLog registers fn for unsolicited event log entries.
func (c *Connection[C]) OnEventLog(fn func(EventLogEntry)) { c.obs.onEvent(fn) }

// Connect opens the transport behind link and probes the controller with a
// firmware-version request every 200ms until it answers or timeout elapses.
// It never reports success without having seen a checksum-valid version
// frame. On failure the transport is released again.
func (c *Connection[C]) Connect(link string, timeout time.Duration) (VersionInfo, error) {
	port, err := openLink(link)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("open %s: %w", link, err)
	}

	c.mu.Lock()
	if c.port != nil {
		c.mu.Unlock()
		port.Close()
		return VersionInfo{}, ErrAlreadyOpen
	}
	c.port = port
	c.state = StateConnecting
	c.rx = c.rx[:0]
	c.lastRx = time.Now()
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	log.Debugf("connecting to %s", link)
	go c.readLoop(port, done)

	deadline := time.Now().Add(timeout)
	for {
		c.handshake.arm()
		if err := c.send(readRequest(opFirmwareVersion)); err != nil {
			c.handshake.disarm()
			c.Close()
			return VersionInfo{}, fmt.Errorf("handshake: %w", err)
		}
		if v, ok := c.handshake.wait(handshakeInterval); ok {
			log.Infof("connected to %s, firmware %s (config v%d)", link, v.Version, v.ConfigVersion)
			return v, nil
		}

		// The answer may have landed between the wait giving up and the
		// receive path completing the slot.
		c.mu.Lock()
		state, v := c.state, c.fw
		c.mu.Unlock()
		if state == StateConnected {
			return v, nil
		}

		if time.Now().After(deadline) {
			c.Close()
			return VersionInfo{}, fmt.Errorf("no answer from controller after %v: %w", timeout, ErrTimeout)
		}
	}
}

// Close releases the transport and resets the session to Disconnected. It is
// safe to call on an already-closed or never-opened session. The
// disconnected notification fires at most once per completed handshake.
func (c *Connection[C]) Close() error {
	c.mu.Lock()
	port := c.port
	wasConnected := c.state == StateConnected
	c.port = nil
	c.state = StateDisconnected
	c.rx = c.rx[:0]
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	if wasConnected {
		c.obs.notifyDisconnected()
	}
	return err
}

// ReadConfiguration asks the controller for its configuration record and
// blocks until the decoded record arrives or timeout elapses. The request is
// sent exactly once; retry policy is the caller's.
func (c *Connection[C]) ReadConfiguration(timeout time.Duration) (C, error) {
	var zero C
	if c.State() != StateConnected {
		return zero, ErrNotConnected
	}
	c.read.arm()
	if err := c.send(readRequest(opConfig)); err != nil {
		c.read.disarm()
		return zero, err
	}
	cfg, ok := c.read.wait(timeout)
	if !ok {
		return zero, fmt.Errorf("read configuration: %w", ErrTimeout)
	}
	return cfg, nil
}

// WriteConfiguration sends cfg to the controller and blocks until it is
// acknowledged or timeout elapses. ErrConfigRejected means the controller
// answered and refused the record.
func (c *Connection[C]) WriteConfiguration(cfg C, timeout time.Duration) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	payload, err := c.codec.Encode(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	c.write.arm()
	if err := c.send(writeConfigRequest(c.codec.Version(), payload)); err != nil {
		c.write.disarm()
		return err
	}
	ok, answered := c.write.wait(timeout)
	if !answered {
		return fmt.Errorf("write configuration: %w", ErrTimeout)
	}
	if !ok {
		return ErrConfigRejected
	}
	return nil
}

// SetEventLogging turns the controller's event log stream on or off. The
// write is fire-and-forget: the controller's acknowledgement carries no
// information and is not waited for.
func (c *Connection[C]) SetEventLogging(enable bool) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.send(writeEventLogRequest(enable))
}

func (c *Connection[C]) send(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}

	log.Debugf("tx '%# x'", b)
	if _, err := port.Write(b); err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}

// readLoop delivers transport bytes to handleData until the transport
// errors. A read failure outside a deliberate Close forces the session
// closed.
func (c *Connection[C]) readLoop(port io.Reader, done chan struct{}) {
	buf := make([]byte, 512)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			log.Debugf("rx '%# x'", buf[:n])
			c.handleData(buf[:n])
		}
		if err != nil {
			select {
			case <-done:
			default:
				log.Errorf("transport read failed: %v", err)
				c.Close()
			}
			return
		}
	}
}

// handleData is the byte-arrival path. Stale check, append and parse happen
// as one unit under the session mutex; slot completions and notifications
// run after the buffer state is settled.
func (c *Connection[C]) handleData(data []byte) {
	c.mu.Lock()

	now := time.Now()
	if len(c.rx) > 0 && now.Sub(c.lastRx) > staleAfter {
		log.Debugf("dropping stale fragment '%# x' after %v", c.rx, now.Sub(c.lastRx))
		c.rx = c.rx[:0]
	}
	c.lastRx = now
	c.rx = append(c.rx, data...)

	action, f := parseFrame(c.rx, c.codec.Version(), c.codec.Size())
	if action == parseKeep {
		c.mu.Unlock()
		return
	}
	if action == parseDiscard {
		log.Debugf("discarding '%# x'", c.rx)
		c.rx = c.rx[:0]
		c.mu.Unlock()
		return
	}
	c.rx = c.rx[:0]

	connected := false
	if f.kind == frameVersion && c.state == StateConnecting {
		c.state = StateConnected
		c.fw = f.version
		connected = true
	}
	c.mu.Unlock()

	switch f.kind {
	case frameVersion:
		if connected {
			c.obs.notifyConnected(f.version)
			c.handshake.complete(f.version)
		}
	case frameConfigData:
		cfg, err := c.codec.Decode(f.payload)
		if err != nil {
			log.Warnf("undecodable configuration frame: %v", err)
			return
		}
		c.read.complete(cfg)
	case frameConfigResult:
		c.write.complete(f.ok)
	case frameEvent:
		c.obs.notifyEvent(f.event)
	}
}
