// Package bus gives access to the cabinet 8-bit I/O port space.
// Peripheral drivers (kdc, muart, rtc, sound) only need Bus.
package bus

import (
	"fmt"

	"github.com/temoto/cabinet-hmi/crc"
)

type Bus interface {
	Out(port, value byte) error
	In(port byte) (byte, error)
}

// Interrupter delivers edges of the peripheral interrupt line.
// Receives are coalesced: one pending value means "at least one edge".
type Interrupter interface {
	IRQ() <-chan struct{}
}

type Op byte

const (
	OpOut Op = 0x01
	OpIn  Op = 0x02
)

func (op Op) String() string {
	switch op {
	case OpOut:
		return "out"
	case OpIn:
		return "in"
	}
	return fmt.Sprintf("op(%02x)", byte(op))
}

type Status byte

const (
	StatusOk       Status = 0x00
	StatusBusy     Status = 0x01
	StatusCRC      Status = 0x02
	StatusUnknown  Status = 0x03
	StatusNotReady Status = 0xff
)

const (
	requestLength  = 4
	responseLength = 3
	// one padding byte lets bridge latch the port read
	frameLength = requestLength + 1 + responseLength
)

type request struct {
	op    Op
	port  byte
	value byte
}

func (r request) encode(buf []byte) {
	buf[0] = byte(r.op)
	buf[1] = r.port
	buf[2] = r.value
	buf[3] = crc.CRC8_p93_n(0, buf[:3])
}

func (r request) String() string {
	return fmt.Sprintf("%s port=%02x value=%02x", r.op.String(), r.port, r.value)
}

type response struct {
	status Status
	value  byte
}

func parseResponse(b []byte) (response, error) {
	if len(b) < responseLength {
		return response{}, fmt.Errorf("bus response length=%d expected=%d", len(b), responseLength)
	}
	if expect := crc.CRC8_p93_n(0, b[:2]); expect != b[2] {
		return response{}, fmt.Errorf("bus response crc=%02x expected=%02x frame=%x", b[2], expect, b[:responseLength])
	}
	return response{status: Status(b[0]), value: b[1]}, nil
}
