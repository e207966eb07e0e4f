package core

import (
	"github.com/pkg/errors"

	"tmcuart/protocol"
)

// Access records one register read: the masked field value, the raw
// register contents, and both datagrams as they crossed the wire.
type Access struct {
	Value    uint32
	Raw      uint32
	Sent     protocol.Datagram
	Received protocol.Datagram
}

// FieldValue is one field assignment of a merged write
type FieldValue struct {
	Field protocol.Field
	Value uint32
}

// ReadAccess reads r from the node and returns the full exchange
func (d *Device) ReadAccess(r protocol.ReadRegister) (Access, error) {
	var a Access
	if !d.ready {
		return a, ErrInvalidState
	}

	req, err := d.codec.BuildReadRequest(d.node, r)
	if err != nil {
		return a, err
	}
	a.Sent = req

	reply := d.reply[:d.codec.ReplyLen()]
	if err := d.bus.Exchange(req.Bytes(), reply); err != nil {
		d.log.V(2).Info("Read failed", "register", r.String(), "error", err)
		return a, errors.Wrapf(err, "read %s from node %d", r, d.node)
	}
	a.Received = protocol.NewDatagram(reply)

	rep, err := d.codec.ParseReadReply(reply)
	if err != nil {
		d.log.V(2).Info("Invalid reply", "register", r.String(), "reply", a.Received.String(), "error", err)
		return a, errors.Wrapf(err, "read %s from node %d", r, d.node)
	}
	if rep.Register != r&protocol.RegisterMask ||
		(d.codec.Framing == protocol.FramingPadded && rep.Node != uint8(d.node)) {
		return a, &ReplyMismatchError{Node: d.node, Register: r, GotNode: rep.Node, GotReg: rep.Register}
	}

	switch r {
	case protocol.ReadGCONF:
		d.shadow.GCONF = rep.Data
	case protocol.ReadCHOPCONF:
		d.shadow.CHOPCONF = rep.Data
	}

	a.Raw = rep.Data
	a.Value = protocol.MaskFor(r).Extract(rep.Data)
	d.log.V(4).Info("Read register", "register", r.String(), "raw", a.Raw, "value", a.Value)
	return a, nil
}

// Read reads r and returns its field of interest
func (d *Device) Read(r protocol.ReadRegister) (uint32, error) {
	a, err := d.ReadAccess(r)
	return a.Value, err
}

// ReadRaw reads r and returns the unmasked register contents
func (d *Device) ReadRaw(r protocol.ReadRegister) (uint32, error) {
	a, err := d.ReadAccess(r)
	return a.Raw, err
}

// WriteAccess writes v into field f of r. Registers with a shadow are merged
// with it, others start from zero. The shadow is updated only once the
// datagram went out.
func (d *Device) WriteAccess(r protocol.WriteRegister, f protocol.Field, v uint32) (protocol.Datagram, error) {
	return d.WriteFields(r, FieldValue{Field: f, Value: v})
}

// Write writes the whole register r
func (d *Device) Write(r protocol.WriteRegister, v uint32) error {
	_, err := d.WriteAccess(r, protocol.WholeRegister, v)
	return err
}

// WriteFields merges several field assignments into one write of r
func (d *Device) WriteFields(r protocol.WriteRegister, values ...FieldValue) (protocol.Datagram, error) {
	var dg protocol.Datagram
	if !d.ready {
		return dg, ErrInvalidState
	}

	shadow := d.shadowFor(r)
	var merged uint32
	if shadow != nil {
		merged = *shadow
	}
	for _, fv := range values {
		var err error
		if merged, err = fv.Field.Insert(merged, fv.Value); err != nil {
			return dg, errors.Wrapf(err, "write %s", r)
		}
	}

	dg, err := d.codec.BuildWriteDatagram(d.node, r, merged)
	if err != nil {
		return dg, err
	}

	var before uint32
	if d.verifyWrites {
		if before, err = d.Read(protocol.ReadIFCNT); err != nil {
			return dg, errors.Wrap(err, "verify write")
		}
	}

	if err := d.bus.Send(dg.Bytes()); err != nil {
		d.log.V(2).Info("Write failed", "register", r.String(), "error", err)
		return dg, errors.Wrapf(err, "write %s to node %d", r, d.node)
	}
	if shadow != nil {
		*shadow = merged
	}
	d.log.V(4).Info("Wrote register", "register", r.String(), "value", merged, "datagram", dg.String())

	if d.verifyWrites {
		after, err := d.Read(protocol.ReadIFCNT)
		if err != nil {
			return dg, errors.Wrap(err, "verify write")
		}
		if uint8(after-before) != 1 {
			return dg, errors.Wrapf(ErrWriteNotAcknowledged, "%s: IFCNT %d -> %d", r, before, after)
		}
	}
	return dg, nil
}

func (d *Device) shadowFor(r protocol.WriteRegister) *uint32 {
	switch r {
	case protocol.WriteGCONF:
		return &d.shadow.GCONF
	case protocol.WriteNODECONF:
		return &d.shadow.NODECONF
	case protocol.WriteCHOPCONF:
		return &d.shadow.CHOPCONF
	}
	return nil
}

// SyncShadows refreshes the GCONF and CHOPCONF shadows from the chip.
// NODECONF is write-only and keeps its last written value. When MRES is
// register-selected the device adopts the chip's resolution.
func (d *Device) SyncShadows() error {
	if _, err := d.ReadAccess(protocol.ReadGCONF); err != nil {
		return err
	}
	chop, err := d.ReadAccess(protocol.ReadCHOPCONF)
	if err != nil {
		return err
	}
	if protocol.GCONFMstepRegSelect.Extract(d.shadow.GCONF) == 0 {
		return nil
	}
	if m := MicrostepResolution(chop.Value); m.Valid() && m != d.mres {
		d.applyResolution(m)
		d.log.V(2).Info("Adopted chip resolution", "resolution", m.String())
	}
	return nil
}
