package core

import (
	"fmt"

	"github.com/pkg/errors"

	"tmcuart/protocol"
)

var (
	// ErrInvalidState is returned by every operation on a device that has not been initialized
	ErrInvalidState = errors.New("device not initialized")

	// ErrUnsupported is returned for operations the driver cannot perform over UART
	ErrUnsupported = errors.New("operation not supported")

	// ErrWriteNotAcknowledged is returned when IFCNT did not advance after a write
	ErrWriteNotAcknowledged = errors.New("write not acknowledged by node")
)

// ReplyMismatchError indicates a well-formed reply for a different node or register
// than the one requested, usually two nodes configured with the same address.
type ReplyMismatchError struct {
	Node     protocol.NodeAddress
	Register protocol.ReadRegister
	GotNode  uint8
	GotReg   protocol.ReadRegister
}

func (e *ReplyMismatchError) Error() string {
	return fmt.Sprintf("reply mismatch: requested %s from node %d, received %s from node %d",
		e.Register, e.Node, e.GotReg, e.GotNode)
}

// IsReplyMismatch returns true if err is or wraps a ReplyMismatchError.
func IsReplyMismatch(err error) bool {
	var me *ReplyMismatchError
	return errors.As(err, &me)
}
