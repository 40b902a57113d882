package kdc

import (
	"sync"

	"github.com/temoto/cabinet-hmi/hardware/bus"
)

// Sim emulates 8279 RAM and pointers on top of bus.Mock.
// Auto-increment sensor read locks sensor RAM until end interrupt,
// matrix changes meanwhile are latched on EndInterrupt.
type Sim struct {
	mu         sync.Mutex
	display    [16]byte
	sensor     [Rows]byte
	matrix     [Rows]byte
	locked     bool
	ptr        byte
	ai         bool
	readSensor bool
	eoi        int
	commands   []byte
}

func NewSim(m *bus.Mock, portData, portCmd byte) *Sim {
	self := &Sim{}
	m.OnOut(portCmd, self.command)
	m.OnOut(portData, self.writeData)
	m.OnIn(portData, self.readData)
	m.OnIn(portCmd, func() byte { return 0 }) // FIFO status: empty, display available
	return self
}

func (self *Sim) command(cmd byte) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.commands = append(self.commands, cmd)
	switch cmd & cmdMask {
	case CmdReadSensor:
		self.readSensor = true
		self.ptr = cmd & sensorMask
		self.ai = cmd&FlagAutoIncrement != 0
	case CmdReadDisplay, CmdWriteDisplay:
		self.readSensor = false
		self.ptr = cmd & addrMask
		self.ai = cmd&FlagAutoIncrement != 0
	case CmdClear:
		fill := byte(0)
		if cmd&ClearToFF == ClearToFF {
			fill = 0xff
		}
		for i := range self.display {
			self.display[i] = fill
		}
	case CmdEndInterrupt:
		self.eoi++
		self.locked = false
		self.sensor = self.matrix
	}
}

func (self *Sim) writeData(b byte) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.display[self.ptr&addrMask] = b
	if self.ai {
		self.ptr = (self.ptr + 1) & addrMask
	}
}

func (self *Sim) readData() byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	var b byte
	if self.readSensor {
		b = self.sensor[self.ptr&sensorMask]
		if self.ai {
			self.ptr = (self.ptr + 1) & sensorMask
			self.locked = true
		}
	} else {
		b = self.display[self.ptr&addrMask]
		if self.ai {
			self.ptr = (self.ptr + 1) & addrMask
		}
	}
	return b
}

func (self *Sim) SetSensor(row int, v byte) {
	self.mu.Lock()
	self.matrix[row&int(sensorMask)] = v
	self.latch()
	self.mu.Unlock()
}

// Press sets (row, column) bit in button matrix, Release clears it.
func (self *Sim) Press(row, column int) {
	self.mu.Lock()
	self.matrix[row&int(sensorMask)] |= 1 << uint(column&7)
	self.latch()
	self.mu.Unlock()
}

func (self *Sim) Release(row, column int) {
	self.mu.Lock()
	self.matrix[row&int(sensorMask)] &^= 1 << uint(column&7)
	self.latch()
	self.mu.Unlock()
}

// Locked reports sensor RAM waiting for end interrupt.
func (self *Sim) Locked() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.locked
}

// caller must hold lock
func (self *Sim) latch() {
	if !self.locked {
		self.sensor = self.matrix
	}
}

func (self *Sim) Display() [16]byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.display
}

// Digits returns display RAM holding digit pairs.
func (self *Sim) Digits() [Lines]byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	var r [Lines]byte
	copy(r[:], self.display[DisplayBase:])
	return r
}

func (self *Sim) Lamps() [Lines]byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	var r [Lines]byte
	copy(r[:], self.display[LampBase:])
	return r
}

func (self *Sim) EndInterrupts() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.eoi
}

func (self *Sim) Commands() []byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	r := make([]byte, len(self.commands))
	copy(r, self.commands)
	return r
}
