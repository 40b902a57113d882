// Package scan keeps latest complete copy of the 8x8 sensor matrix.
// Refresh is the only writer; everything else reads a copy.
package scan

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/helpers"
	"github.com/temoto/cabinet-hmi/log2"
)

const Rows = 8

type Snapshot [Rows]byte

func (s Snapshot) String() string { return fmt.Sprintf("% 02x", s[:]) }

type Button struct {
	Row      uint8
	Column   uint8
	Inverted bool
}

// Read is pure function of snapshot.
func (b Button) Read(s Snapshot) bool {
	on := (s[b.Row%Rows]>>(b.Column%8))&1 == 1
	return on != b.Inverted
}

func (b Button) String() string {
	inv := ""
	if b.Inverted {
		inv = "!"
	}
	return fmt.Sprintf("%s%d.%d", inv, b.Row, b.Column)
}

type Device interface {
	ReadSensorRows() ([Rows]byte, error)
	EndInterrupt() error
}

type Scanner struct {
	Log       *log2.Log
	dev       Device
	mu        sync.RWMutex
	raw       Snapshot
	override  Snapshot
	published Snapshot
	refreshes uint32
}

func New(dev Device, log *log2.Log) *Scanner {
	return &Scanner{Log: log, dev: dev}
}

// Refresh reads all rows and publishes them at once.
// On error previous snapshot stays.
func (self *Scanner) Refresh() error {
	rows, err := self.dev.ReadSensorRows()
	if err != nil {
		return errors.Annotate(err, "scan refresh")
	}
	self.mu.Lock()
	self.raw = rows
	self.publish()
	self.mu.Unlock()
	atomic.AddUint32(&self.refreshes, 1)
	return nil
}

// Poll is Refresh followed by end interrupt acknowledge.
// 8279 keeps sensor RAM locked after burst read until end interrupt.
func (self *Scanner) Poll() error {
	errRefresh := self.Refresh()
	var errEOI error
	if err := self.dev.EndInterrupt(); err != nil {
		errEOI = errors.Annotate(err, "scan end interrupt")
	}
	return helpers.FoldErrors([]error{errRefresh, errEOI})
}

func (self *Scanner) Snapshot() Snapshot {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return self.published
}

func (self *Scanner) Read(b Button) bool { return b.Read(self.Snapshot()) }

func (self *Scanner) Refreshes() uint32 { return atomic.LoadUint32(&self.refreshes) }

// SetOverride forces (row, column) on top of scanned matrix,
// used by bench keypad.
func (self *Scanner) SetOverride(row, column int, pressed bool) {
	if row < 0 || row >= Rows || column < 0 || column >= 8 {
		self.Log.Errorf("scan override invalid row=%d column=%d", row, column)
		return
	}
	self.mu.Lock()
	if pressed {
		self.override[row] |= 1 << uint(column)
	} else {
		self.override[row] &^= 1 << uint(column)
	}
	self.publish()
	self.mu.Unlock()
}

// Run is scan-complete task: Poll on every interrupt until stop is closed.
func (self *Scanner) Run(irq <-chan struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-irq:
			if err := self.Poll(); err != nil {
				self.Log.Error(errors.ErrorStack(err))
			}
		}
	}
}

// caller must hold lock
func (self *Scanner) publish() {
	for i := range self.published {
		self.published[i] = self.raw[i] | self.override[i]
	}
}
