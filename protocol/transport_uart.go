package protocol

import (
	"runtime"
	"time"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers"
)

// UARTTransport drives the bus from a TinyGo UART (machine.UART satisfies
// drivers.UART). Reception polls Buffered() so a silent node times out
// instead of blocking forever.
type UARTTransport struct {
	UART drivers.UART
}

// NewUARTTransport wraps uart
func NewUARTTransport(uart drivers.UART) *UARTTransport {
	return &UARTTransport{UART: uart}
}

// Transmit writes b completely
func (u *UARTTransport) Transmit(b []byte) error {
	n, err := u.UART.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errors.Errorf("incomplete write: %d/%d bytes", n, len(b))
	}
	return nil
}

// Receive waits for len(buf) bytes to arrive
func (u *UARTTransport) Receive(buf []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	got := 0
	for got < len(buf) {
		if u.UART.Buffered() == 0 {
			if time.Now().After(deadline) {
				return errors.Wrapf(ErrTimeout, "received %d/%d bytes", got, len(buf))
			}
			runtime.Gosched()
			continue
		}
		n, err := u.UART.Read(buf[got:])
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}
