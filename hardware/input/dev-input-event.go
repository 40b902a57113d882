// Package input feeds bench keypad presses into sensor matrix overrides,
// so cabinet can be operated without physical button matrix.
package input

import (
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/log2"
	"github.com/temoto/inputevent-go"
)

const DevInputEventTag = "dev-input-event"

// linux/input-event-codes.h
const evKey uint16 = 0x01

type Position struct {
	Row    int
	Column int
}

type Keymap map[uint16]Position

// Sink is sensor matrix override layer.
type Sink interface {
	SetOverride(row, column int, pressed bool)
}

type DevInputEventSource struct {
	Log    *log2.Log
	f      io.ReadCloser
	keymap Keymap
}

func NewDevInputEventSource(device string, keymap Keymap, log *log2.Log) (*DevInputEventSource, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Annotatef(err, "%s open %s", DevInputEventTag, device)
	}
	return &DevInputEventSource{Log: log, f: f, keymap: keymap}, nil
}

func (self *DevInputEventSource) String() string { return DevInputEventTag }

func (self *DevInputEventSource) Close() error { return self.f.Close() }

// Run forwards mapped key events to sink until read fails.
// Close source to stop.
func (self *DevInputEventSource) Run(sink Sink) error {
	for {
		ie, err := inputevent.ReadOne(self.f)
		if err != nil {
			if err == io.EOF || errors.Cause(err) == os.ErrClosed {
				return nil
			}
			return errors.Annotate(err, DevInputEventTag)
		}
		if ie.Type != evKey {
			continue
		}
		pos, ok := self.keymap[ie.Code]
		if !ok {
			self.Log.Debugf("%s unmapped key=%d", DevInputEventTag, ie.Code)
			continue
		}
		pressed := ie.Value != int32(inputevent.KeyStateUp)
		self.Log.Debugf("%s key=%d row=%d column=%d pressed=%t", DevInputEventTag, ie.Code, pos.Row, pos.Column, pressed)
		sink.SetOverride(pos.Row, pos.Column, pressed)
	}
}
