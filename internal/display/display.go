// Package display composes money and service digit rows into
// 8279 display RAM and blinks the selected digit.
//
// Buffer entry low nibble is digit value, nonzero upper nibble marks
// the digit for blinking. Setters only touch buffers; device sees
// changes on next tick or explicit Redraw.
package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/kdc"
	"github.com/temoto/cabinet-hmi/log2"
)

const (
	Digits = 8
	Blank  = 0x0f

	DefaultBlinkPeriod = 250 * time.Millisecond
)

const (
	valueMask byte = 0x0f
	markMask  byte = 0xf0
	mark      byte = 0x10
)

type Device interface {
	WriteDisplay(addr int, data ...byte) error
}

type Buffer [Digits]byte

type State struct {
	Money   Buffer
	Service Buffer
	Blink   bool
	Lamps   byte
}

func (s State) String() string {
	return fmt.Sprintf("money=% 02x service=% 02x blink=%t lamps=%02x", s.Money[:], s.Service[:], s.Blink, s.Lamps)
}

// Composed returns bytes as sent to display RAM.
func (s State) Composed() Buffer {
	var b Buffer
	for i := range b {
		b[i] = Compose(s.Money[i], s.Service[i], s.Blink)
	}
	return b
}

type Compositor struct {
	Log     *log2.Log
	mu      sync.Mutex
	dev     Device
	money   Buffer
	service Buffer
	blink   bool
	lamps   byte
	upd     chan<- State
}

func New(dev Device, log *log2.Log) *Compositor {
	self := &Compositor{Log: log, dev: dev}
	for i := 0; i < Digits; i++ {
		self.money[i] = Blank
		self.service[i] = Blank
	}
	return self
}

func (self *Compositor) SetMoney(digit int, value byte) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.set(&self.money, digit, value)
}

func (self *Compositor) SetService(digit int, value byte) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.set(&self.service, digit, value)
}

func (self *Compositor) SetBoth(digit int, value byte) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.set(&self.money, digit, value)
	self.set(&self.service, digit, value)
}

// WriteSerie shows v as hundreds, tens, ones at pos, pos-1, pos-2 on both rows.
func (self *Compositor) WriteSerie(pos int, v int) {
	h, t, o := Split(v)
	self.mu.Lock()
	defer self.mu.Unlock()
	for i, d := range [3]byte{h, t, o} {
		if p := pos - i; p >= 0 {
			self.set(&self.money, p, d)
			self.set(&self.service, p, d)
		}
	}
}

// Blank sets all digits to blank code, blink marks are kept.
func (self *Compositor) Blank() {
	self.mu.Lock()
	defer self.mu.Unlock()
	for i := 0; i < Digits; i++ {
		self.set(&self.money, i, Blank)
		self.set(&self.service, i, Blank)
	}
}

// MarkSelected leaves exactly one digit (both rows) blink-marked, -1 clears all.
func (self *Compositor) MarkSelected(digit int) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for i := 0; i < Digits; i++ {
		self.money[i] &= valueMask
		self.service[i] &= valueMask
	}
	if digit >= 0 && digit < Digits {
		self.money[digit] |= mark
		self.service[digit] |= mark
	}
}

// OnTick toggles blink flag and redraws.
func (self *Compositor) OnTick() error {
	self.mu.Lock()
	self.blink = !self.blink
	s, upd, err := self.redraw()
	self.mu.Unlock()
	notify(upd, s)
	return err
}

func (self *Compositor) Redraw() error {
	self.mu.Lock()
	s, upd, err := self.redraw()
	self.mu.Unlock()
	notify(upd, s)
	return err
}

// Lamps sets all lamp lines to v.
func (self *Compositor) Lamps(v byte) error {
	var b [kdc.Lines]byte
	for i := range b {
		b[i] = v
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	self.lamps = v
	return errors.Annotate(self.dev.WriteDisplay(kdc.LampBase, b[:]...), "display lamps")
}

func (self *Compositor) State() State {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state()
}

// SetUpdateChan receives state after every redraw.
// Send happens outside of lock: slow receiver delays only the redrawing caller.
func (self *Compositor) SetUpdateChan(ch chan<- State) {
	self.mu.Lock()
	self.upd = ch
	self.mu.Unlock()
}

// Run is periodic blink task, until stop is closed.
func (self *Compositor) Run(period time.Duration, stop <-chan struct{}) {
	if period <= 0 {
		period = DefaultBlinkPeriod
	}
	tmr := time.NewTicker(period)
	defer tmr.Stop()
	for {
		select {
		case <-tmr.C:
			if err := self.OnTick(); err != nil {
				self.Log.Error(errors.ErrorStack(err))
			}
		case <-stop:
			return
		}
	}
}

func (self *Compositor) set(buf *Buffer, digit int, value byte) {
	if digit < 0 || digit >= Digits {
		self.Log.Errorf("code error display digit=%d", digit)
		return
	}
	buf[digit] = buf[digit]&markMask | value&valueMask
}

func (self *Compositor) state() State {
	return State{
		Money:   self.money,
		Service: self.service,
		Blink:   self.blink,
		Lamps:   self.lamps,
	}
}

// caller must hold lock
func (self *Compositor) redraw() (State, chan<- State, error) {
	s := self.state()
	b := s.Composed()
	err := self.dev.WriteDisplay(kdc.DisplayBase, b[:]...)
	return s, self.upd, errors.Annotate(err, "display redraw")
}

func notify(upd chan<- State, s State) {
	if upd != nil {
		upd <- s
	}
}

// Compose packs one digit pair, blink-marked entries are blank while blink is set.
func Compose(money, service byte, blink bool) byte {
	return show(money, blink)<<4 | show(service, blink)
}

func show(entry byte, blink bool) byte {
	if blink && entry&markMask != 0 {
		return Blank
	}
	return entry & valueMask
}

// Split returns decimal hundreds, tens, ones of v.
func Split(v int) (hundreds, tens, ones byte) {
	if v < 0 {
		v = -v
	}
	return byte(v / 100 % 10), byte(v / 10 % 10), byte(v % 10)
}
