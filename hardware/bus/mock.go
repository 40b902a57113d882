package bus

import (
	"sync"

	"github.com/juju/errors"
)

type IO struct {
	Port  byte
	Value byte
}

// Mock is in-memory Bus for tests of peripheral drivers.
// Reads of port without OnIn handler return error.
type Mock struct {
	mu    sync.Mutex
	ins   map[byte]func() byte
	outs  map[byte]func(byte)
	trace []IO
	irq   chan struct{}
}

var _ Bus = new(Mock)
var _ Interrupter = new(Mock)

func NewMock() *Mock {
	return &Mock{
		ins:  make(map[byte]func() byte),
		outs: make(map[byte]func(byte)),
		irq:  make(chan struct{}, 1),
	}
}

func (self *Mock) OnIn(port byte, f func() byte) {
	self.mu.Lock()
	self.ins[port] = f
	self.mu.Unlock()
}

func (self *Mock) OnOut(port byte, f func(byte)) {
	self.mu.Lock()
	self.outs[port] = f
	self.mu.Unlock()
}

func (self *Mock) Out(port, value byte) error {
	self.mu.Lock()
	self.trace = append(self.trace, IO{Port: port, Value: value})
	f := self.outs[port]
	self.mu.Unlock()
	if f != nil {
		f(value)
	}
	return nil
}

func (self *Mock) In(port byte) (byte, error) {
	self.mu.Lock()
	f := self.ins[port]
	self.mu.Unlock()
	if f == nil {
		return 0, errors.NotFoundf("bus mock in port=%02x", port)
	}
	return f(), nil
}

// Outs returns copy of all Out calls since last Reset.
func (self *Mock) Outs() []IO {
	self.mu.Lock()
	defer self.mu.Unlock()
	r := make([]IO, len(self.trace))
	copy(r, self.trace)
	return r
}

// OutValues returns values written to port, in order.
func (self *Mock) OutValues(port byte) []byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	r := make([]byte, 0, len(self.trace))
	for _, io := range self.trace {
		if io.Port == port {
			r = append(r, io.Value)
		}
	}
	return r
}

func (self *Mock) Reset() {
	self.mu.Lock()
	self.trace = nil
	self.mu.Unlock()
}

func (self *Mock) IRQ() <-chan struct{} { return self.irq }

func (self *Mock) FireIRQ() {
	select {
	case self.irq <- struct{}{}:
	default:
	}
}
