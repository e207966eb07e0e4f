package protocol

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const (
	// DefaultReplyTimeout bounds one read reply, SENDDELAY included
	DefaultReplyTimeout = 100 * time.Millisecond
)

// Transport is the byte-level UART collaborator.
// Receive must fill buf completely or fail with an error wrapping ErrTimeout.
type Transport interface {
	Transmit(b []byte) error
	Receive(buf []byte, timeout time.Duration) error
}

// BusStats counts exchanges on a bus
type BusStats struct {
	Writes   uint32
	Reads    uint32
	Timeouts uint32
	Failures uint32
}

// Bus serializes datagram exchanges on one UART shared by up to four nodes.
// Replies carry no transaction ID, so only one exchange may be in flight.
type Bus struct {
	transport Transport
	timeout   time.Duration
	echo      bool
	log       logr.Logger

	mu     sync.Mutex
	closed bool
	echoed [MaxDatagramLen]byte

	writes   *atomic.Uint32
	reads    *atomic.Uint32
	timeouts *atomic.Uint32
	failures *atomic.Uint32
}

// BusOption configures a Bus
type BusOption func(*Bus)

// WithReplyTimeout sets how long to wait for a read reply
func WithReplyTimeout(d time.Duration) BusOption {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithEcho discards the local echo a single-wire UART returns for every transmitted byte
func WithEcho(echo bool) BusOption {
	return func(b *Bus) {
		b.echo = echo
	}
}

// WithBusLogger sets the logger used for per-exchange tracing
func WithBusLogger(log logr.Logger) BusOption {
	return func(b *Bus) {
		b.log = log
	}
}

// NewBus creates a Bus over t
func NewBus(t Transport, opts ...BusOption) *Bus {
	b := &Bus{
		transport: t,
		timeout:   DefaultReplyTimeout,
		log:       logr.Discard(),
		writes:    atomic.NewUint32(0),
		reads:     atomic.NewUint32(0),
		timeouts:  atomic.NewUint32(0),
		failures:  atomic.NewUint32(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Timeout returns the reply timeout
func (b *Bus) Timeout() time.Duration {
	return b.timeout
}

// Send transmits a write datagram. Writes are never answered.
func (b *Bus) Send(req []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.writes.Inc()
	if err := b.transmit(req); err != nil {
		return b.fail(err)
	}
	b.log.V(4).Info("Sent datagram", "bytes", req)
	return nil
}

// Exchange transmits a read request and receives exactly len(reply) bytes
func (b *Bus) Exchange(req []byte, reply []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.reads.Inc()
	if err := b.transmit(req); err != nil {
		return b.fail(err)
	}
	if err := b.transport.Receive(reply, b.timeout); err != nil {
		return b.fail(errors.Wrap(err, "receive reply"))
	}
	b.log.V(4).Info("Exchanged datagram", "request", req, "reply", reply)
	return nil
}

func (b *Bus) transmit(req []byte) error {
	if err := b.transport.Transmit(req); err != nil {
		return errors.Wrap(err, "transmit")
	}
	if !b.echo {
		return nil
	}
	if len(req) > len(b.echoed) {
		return &FrameError{Reason: "request longer than echo buffer"}
	}
	echo := b.echoed[:len(req)]
	if err := b.transport.Receive(echo, b.timeout); err != nil {
		return errors.Wrap(err, "receive echo")
	}
	if !bytes.Equal(echo, req) {
		return &FrameError{Reason: "local echo does not match request"}
	}
	return nil
}

func (b *Bus) fail(err error) error {
	if errors.Is(err, ErrTimeout) {
		b.timeouts.Inc()
	} else {
		b.failures.Inc()
	}
	b.log.V(2).Info("Bus exchange failed", "error", err)
	return err
}

// Stats returns a snapshot of the bus counters
func (b *Bus) Stats() BusStats {
	return BusStats{
		Writes:   b.writes.Load(),
		Reads:    b.reads.Load(),
		Timeouts: b.timeouts.Load(),
		Failures: b.failures.Load(),
	}
}

// Close marks the bus closed and closes the transport if it is an io.Closer
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if c, ok := b.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StreamTransport adapts a serial port that returns short or empty reads
// when its own read timeout expires.
type StreamTransport struct {
	RW io.ReadWriter
}

// Transmit writes b completely
func (s *StreamTransport) Transmit(b []byte) error {
	n, err := s.RW.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errors.Errorf("incomplete write: %d/%d bytes", n, len(b))
	}
	return nil
}

// Receive reads until buf is full or timeout elapses
func (s *StreamTransport) Receive(buf []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	got := 0
	for got < len(buf) {
		n, err := s.RW.Read(buf[got:])
		got += n
		if err != nil && err != io.EOF {
			return err
		}
		if got < len(buf) && time.Now().After(deadline) {
			return errors.Wrapf(ErrTimeout, "received %d/%d bytes", got, len(buf))
		}
	}
	return nil
}

// Close closes the underlying port if it supports it
func (s *StreamTransport) Close() error {
	if c, ok := s.RW.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
