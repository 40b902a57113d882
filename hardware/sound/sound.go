// Package sound drives tone generator: code byte on sound port,
// then short pulse on start line triggers playback.
package sound

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/bus"
	"github.com/temoto/cabinet-hmi/log2"
	gpio "github.com/temoto/gpio-cdev-go"
)

const (
	DefaultPort  byte = 0x72
	DefaultPulse      = 20 * time.Millisecond
)

type Starter interface {
	SetStart(on bool) error
}

type Output struct {
	Log   *log2.Log
	Sleep func(time.Duration)
	bus   bus.Bus
	port  byte
	start Starter
	pulse time.Duration
}

func New(b bus.Bus, port byte, start Starter, pulse time.Duration, log *log2.Log) *Output {
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return &Output{
		Log:   log,
		Sleep: time.Sleep,
		bus:   b,
		port:  port,
		start: start,
		pulse: pulse,
	}
}

func (self *Output) Play(code byte) error {
	self.Log.Debugf("sound play code=%02x", code)
	return errors.Annotatef(self.bus.Out(self.port, code), "sound play code=%02x", code)
}

// Start pulses start line. Without starter it is no-op.
func (self *Output) Start() error {
	if self.start == nil {
		return nil
	}
	if err := self.start.SetStart(true); err != nil {
		return errors.Annotate(err, "sound start")
	}
	self.Sleep(self.pulse)
	return errors.Annotate(self.start.SetStart(false), "sound start release")
}

// BusStarter drives start bit as mask on output port shared with other lines.
type BusStarter struct {
	bus    bus.Bus
	port   byte
	mask   byte
	mu     sync.Mutex
	shadow byte
}

func NewBusStarter(b bus.Bus, port, mask, initial byte) *BusStarter {
	return &BusStarter{bus: b, port: port, mask: mask, shadow: initial &^ mask}
}

func (self *BusStarter) SetStart(on bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if on {
		self.shadow |= self.mask
	} else {
		self.shadow &^= self.mask
	}
	return self.bus.Out(self.port, self.shadow)
}

type GPIOStarter struct {
	lines gpio.Lineser
	set   gpio.LineSetFunc
	chip  gpio.Chiper // only for resource cleanup
}

func OpenGPIOStarter(chipPath string, line uint32) (*GPIOStarter, error) {
	chip, err := gpio.Open(chipPath, "cabinet-hmi")
	if err != nil {
		return nil, errors.Annotatef(err, "sound start chip=%s", chipPath)
	}
	self, err := NewGPIOStarter(chip, line)
	if err != nil {
		chip.Close()
		return nil, err
	}
	self.chip = chip
	return self, nil
}

func NewGPIOStarter(chip gpio.Chiper, line uint32) (*GPIOStarter, error) {
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, "cabinet-hmi-sound", line)
	if err != nil {
		return nil, errors.Annotatef(err, "sound start line=%d", line)
	}
	return &GPIOStarter{lines: lines, set: lines.SetFunc(line)}, nil
}

func (self *GPIOStarter) SetStart(on bool) error {
	var v byte
	if on {
		v = 1
	}
	self.set(v)
	return self.lines.Flush()
}

func (self *GPIOStarter) Close() error {
	err := self.lines.Close()
	if self.chip != nil {
		if e := self.chip.Close(); err == nil {
			err = e
		}
	}
	return err
}
