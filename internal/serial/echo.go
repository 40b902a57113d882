// Package serial echoes bytes received on cabinet UART.
package serial

import (
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/log2"
)

type UART interface {
	ReceiveReady() (bool, error)
	ReadByte() (byte, error)
	WriteByte(byte) error // blocks until transmitter is ready
}

type Echo struct {
	Log   *log2.Log
	uart  UART
	count uint32
}

func NewEcho(uart UART, log *log2.Log) *Echo {
	return &Echo{Log: log, uart: uart}
}

// Poll echoes at most one byte.
func (self *Echo) Poll() error {
	ready, err := self.uart.ReceiveReady()
	if err != nil {
		return errors.Annotate(err, "echo")
	}
	if !ready {
		return nil
	}
	b, err := self.uart.ReadByte()
	if err != nil {
		return errors.Annotate(err, "echo read")
	}
	if err = self.uart.WriteByte(b); err != nil {
		return errors.Annotatef(err, "echo write=%02x", b)
	}
	atomic.AddUint32(&self.count, 1)
	return nil
}

func (self *Echo) Count() uint32 { return atomic.LoadUint32(&self.count) }
