// Package kdc drives Intel 8279 keyboard/display controller.
// Display RAM 0..7 are lamp lines, 8..15 are digit pairs (money<<4 | service).
// Sensor RAM holds 8 rows of the button matrix.
package kdc

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/bus"
	"github.com/temoto/cabinet-hmi/log2"
)

const (
	DefaultPortData byte = 0x50
	DefaultPortCmd  byte = 0x51

	DefaultClockDivider = 30
)

const (
	CmdModeSet      byte = 0x00
	CmdClockDivider byte = 0x20
	CmdReadSensor   byte = 0x40
	CmdReadDisplay  byte = 0x60
	CmdWriteDisplay byte = 0x80
	CmdClear        byte = 0xc0
	CmdEndInterrupt byte = 0xe0

	FlagAutoIncrement byte = 0x10

	ModeDisplay16Left byte = 0x08
	ModeSensorMatrix  byte = 0x04

	ClearToFF  byte = 0x0c
	ClearAll   byte = 0x01
	cmdMask    byte = 0xe0
	addrMask   byte = 0x0f
	sensorMask byte = 0x07
)

const (
	LampBase    = 0
	DisplayBase = 8
	Lines       = 8
	Rows        = 8
)

type Device struct {
	Log      *log2.Log
	bus      bus.Bus
	portData byte
	portCmd  byte
	mu       sync.Mutex
}

func New(b bus.Bus, portData, portCmd byte, log *log2.Log) *Device {
	return &Device{
		Log:      log,
		bus:      b,
		portData: portData,
		portCmd:  portCmd,
	}
}

func (self *Device) WriteCommand(cmd byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.writeCommand(cmd)
}

func (self *Device) WriteData(b byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.writeData(b)
}

func (self *Device) ReadData() (byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.readData()
}

// Init sets 16 digit left entry display, encoded sensor matrix scan,
// clock prescaler, clears display RAM to FF and acknowledges stale interrupt.
func (self *Device) Init(divider int) error {
	if divider < 2 {
		divider = 2
	} else if divider > 31 {
		divider = 31
	}
	cmds := []byte{
		CmdModeSet | ModeDisplay16Left | ModeSensorMatrix,
		CmdClockDivider | byte(divider),
		CmdClear | ClearToFF | ClearAll,
		CmdEndInterrupt,
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, c := range cmds {
		if err := self.writeCommand(c); err != nil {
			return errors.Annotate(err, "kdc init")
		}
	}
	self.Log.Debugf("kdc init divider=%d", divider)
	return nil
}

func (self *Device) ReadSensorRow(row int) (byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := self.writeCommand(CmdReadSensor | byte(row)&sensorMask); err != nil {
		return 0, err
	}
	return self.readData()
}

// ReadSensorRows reads whole sensor RAM in one auto-increment burst.
func (self *Device) ReadSensorRows() ([Rows]byte, error) {
	var rows [Rows]byte
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := self.writeCommand(CmdReadSensor | FlagAutoIncrement); err != nil {
		return rows, err
	}
	for i := range rows {
		b, err := self.readData()
		if err != nil {
			return rows, errors.Annotatef(err, "kdc sensor row=%d", i)
		}
		rows[i] = b
	}
	return rows, nil
}

// WriteDisplay writes data to display RAM starting at addr with auto-increment.
func (self *Device) WriteDisplay(addr int, data ...byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := self.writeCommand(CmdWriteDisplay | FlagAutoIncrement | byte(addr)&addrMask); err != nil {
		return err
	}
	for _, b := range data {
		if err := self.writeData(b); err != nil {
			return err
		}
	}
	return nil
}

func (self *Device) WriteLamps(line int, v byte) error {
	if line < 0 || line >= Lines {
		return errors.NotValidf("lamp line=%d", line)
	}
	return self.WriteDisplay(LampBase+line, v)
}

func (self *Device) EndInterrupt() error {
	return self.WriteCommand(CmdEndInterrupt)
}

func (self *Device) writeCommand(cmd byte) error {
	return errors.Annotatef(self.bus.Out(self.portCmd, cmd), "kdc command=%02x", cmd)
}

func (self *Device) writeData(b byte) error {
	return errors.Annotatef(self.bus.Out(self.portData, b), "kdc data=%02x", b)
}

func (self *Device) readData() (byte, error) {
	b, err := self.bus.In(self.portData)
	return b, errors.Annotate(err, "kdc read data")
}
