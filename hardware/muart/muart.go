// Package muart drives Intel 8256 multifunction UART.
package muart

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/bus"
	"github.com/temoto/cabinet-hmi/log2"
)

const DefaultBase byte = 0x60

// Register offsets from base port.
const (
	RegCmd1   byte = 0x00
	RegCmd2   byte = 0x01
	RegCmd3   byte = 0x02
	RegMode   byte = 0x03
	RegPort1C byte = 0x04
	RegIntEn  byte = 0x05
	RegIntAd  byte = 0x06
	RegBuffer byte = 0x07
	RegPort1  byte = 0x08
	RegPort2  byte = 0x09
	RegTimer1 byte = 0x0a
	RegStatus byte = 0x0f
)

const (
	StatusFramingError byte = 0x01
	StatusOverrun      byte = 0x02
	StatusParityError  byte = 0x04
	StatusBreak        byte = 0x08
	StatusTRE          byte = 0x10 // transmitter register empty
	StatusTBE          byte = 0x20 // transmit buffer empty
	StatusRBF          byte = 0x40 // receive buffer full
	StatusInterrupt    byte = 0x80
)

const (
	Cmd3Reset byte = 0x01
	Cmd3RxE   byte = 0x40
	Cmd3Set   byte = 0x80
)

type Config struct {
	Cmd1   byte // 8 data bits, 1 stop bit: 0x00
	Cmd2   byte // baud rate select and parity
	Mode   byte
	Port1C byte // port1 direction, 1 = output
}

type Device struct {
	Log  *log2.Log
	bus  bus.Bus
	base byte
	mu   sync.Mutex
}

func New(b bus.Bus, base byte, log *log2.Log) *Device {
	return &Device{Log: log, bus: b, base: base}
}

func (self *Device) Init(c Config) error {
	seq := []struct{ reg, value byte }{
		{RegCmd3, Cmd3Set | Cmd3Reset},
		{RegCmd1, c.Cmd1},
		{RegCmd2, c.Cmd2},
		{RegMode, c.Mode},
		{RegPort1C, c.Port1C},
		{RegCmd3, Cmd3Set | Cmd3RxE},
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, x := range seq {
		if err := self.bus.Out(self.base+x.reg, x.value); err != nil {
			return errors.Annotatef(err, "muart init reg=%02x", x.reg)
		}
	}
	return nil
}

func (self *Device) Status() (byte, error) {
	b, err := self.bus.In(self.base + RegStatus)
	return b, errors.Annotate(err, "muart status")
}

func (self *Device) ReceiveReady() (bool, error) {
	s, err := self.Status()
	return s&StatusRBF != 0, err
}

// ReadByte must be called only after ReceiveReady.
func (self *Device) ReadByte() (byte, error) {
	b, err := self.bus.In(self.base + RegBuffer)
	return b, errors.Annotate(err, "muart read")
}

// WriteByte polls status until transmit buffer is empty, without timeout.
func (self *Device) WriteByte(b byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	for {
		s, err := self.Status()
		if err != nil {
			return err
		}
		if s&StatusTBE != 0 {
			break
		}
	}
	return errors.Annotate(self.bus.Out(self.base+RegBuffer, b), "muart write")
}

func (self *Device) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := self.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (self *Device) ReadPort1() (byte, error) { return self.readReg(RegPort1) }
func (self *Device) ReadPort2() (byte, error) { return self.readReg(RegPort2) }

func (self *Device) WritePort1(v byte) error {
	return errors.Annotate(self.bus.Out(self.base+RegPort1, v), "muart port1")
}

func (self *Device) readReg(reg byte) (byte, error) {
	b, err := self.bus.In(self.base + reg)
	return b, errors.Annotatef(err, "muart reg=%02x", reg)
}
