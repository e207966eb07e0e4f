package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned when the transport does not complete an exchange in time
	ErrTimeout = errors.New("uart timeout")

	// ErrBusClosed is returned by a Bus after Close
	ErrBusClosed = errors.New("bus closed")
)

// ChecksumError indicates that a received datagram's trailing CRC byte
// does not match the CRC of the bytes preceding it.
type ChecksumError struct {
	Expected uint8
	Actual   uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("datagram checksum mismatch: computed 0x%02X, received 0x%02X", e.Expected, e.Actual)
}

// FrameError indicates a datagram with the wrong length or framing bytes.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "malformed datagram: " + e.Reason
}

// OutOfRangeError indicates that a value does not fit the field or range it targets.
type OutOfRangeError struct {
	Quantity string
	Value    int64
	Min      int64
	Max      int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d is out of range: valid range is %d..%d", e.Quantity, e.Value, e.Min, e.Max)
}

// IsChecksumError returns true if err is or wraps a ChecksumError.
func IsChecksumError(err error) bool {
	var ce *ChecksumError
	return errors.As(err, &ce)
}

// IsOutOfRange returns true if err is or wraps an OutOfRangeError.
func IsOutOfRange(err error) bool {
	var oe *OutOfRangeError
	return errors.As(err, &oe)
}
