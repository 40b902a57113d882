package rtc

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/bus"
	"github.com/temoto/cabinet-hmi/log2"
)

const (
	DefaultPortAddr byte = 0x70
	DefaultPortData byte = 0x71
)

// MC146818 register map, alarm registers unused.
const (
	RegSeconds byte = 0x00
	RegMinutes byte = 0x02
	RegHours   byte = 0x04
	RegDay     byte = 0x07
	RegMonth   byte = 0x08
	RegYear    byte = 0x09
	RegA       byte = 0x0a
	RegB       byte = 0x0b
)

const (
	RegAUpdateInProgress byte = 0x80
	RegBSet              byte = 0x80
	RegBBinary           byte = 0x04
	RegB24h              byte = 0x02
)

const uipTries = 1000

var fieldRegs = [...]byte{
	FieldSeconds: RegSeconds,
	FieldMinutes: RegMinutes,
	FieldHours:   RegHours,
	FieldDay:     RegDay,
	FieldMonth:   RegMonth,
	FieldYear:    RegYear,
}

type MC146818 struct {
	Log      *log2.Log
	bus      bus.Bus
	portAddr byte
	portData byte
	mu       sync.Mutex
}

var _ Device = new(MC146818)

func NewMC146818(b bus.Bus, portAddr, portData byte, log *log2.Log) *MC146818 {
	return &MC146818{Log: log, bus: b, portAddr: portAddr, portData: portData}
}

// Init selects binary 24 hour mode and lets clock run.
func (self *MC146818) Init() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return errors.Annotate(self.writeReg(RegB, RegBBinary|RegB24h), "rtc init")
}

func (self *MC146818) Read() (State, error) {
	var s State
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := self.waitUpdate(); err != nil {
		return s, err
	}
	for f := FieldSeconds; f <= FieldYear; f++ {
		v, err := self.readReg(fieldRegs[f])
		if err != nil {
			return s, errors.Annotatef(err, "rtc read %s", f.String())
		}
		*s.Ptr(f) = v
	}
	return s, nil
}

func (self *MC146818) Write(s State) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	for f := FieldSeconds; f <= FieldYear; f++ {
		if err := self.writeReg(fieldRegs[f], s.Get(f)); err != nil {
			return errors.Annotatef(err, "rtc write %s", f.String())
		}
	}
	self.Log.Debugf("rtc write %s", s.String())
	return nil
}

func (self *MC146818) Freeze(freeze bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	b, err := self.readReg(RegB)
	if err != nil {
		return errors.Annotate(err, "rtc freeze")
	}
	if freeze {
		b |= RegBSet
	} else {
		b &^= RegBSet
	}
	return errors.Annotate(self.writeReg(RegB, b), "rtc freeze")
}

func (self *MC146818) waitUpdate() error {
	for i := 0; i < uipTries; i++ {
		a, err := self.readReg(RegA)
		if err != nil {
			return errors.Annotate(err, "rtc status")
		}
		if a&RegAUpdateInProgress == 0 {
			return nil
		}
	}
	return errors.Timeoutf("rtc update in progress")
}

func (self *MC146818) readReg(r byte) (byte, error) {
	if err := self.bus.Out(self.portAddr, r); err != nil {
		return 0, err
	}
	return self.bus.In(self.portData)
}

func (self *MC146818) writeReg(r, v byte) error {
	if err := self.bus.Out(self.portAddr, r); err != nil {
		return err
	}
	return self.bus.Out(self.portData, v)
}
