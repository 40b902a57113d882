package ui

import (
	"fmt"

	"github.com/temoto/alive/v2"
	"github.com/temoto/cabinet-hmi/internal/scan"
)

type Mode uint32

const (
	ModeIdle Mode = iota
	ModeDateEdit
	ModeTimeEdit
	ModePlaying // transient, while track runs
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDateEdit:
		return "date-edit"
	case ModeTimeEdit:
		return "time-edit"
	case ModePlaying:
		return "playing"
	}
	return fmt.Sprintf("mode(%d)", uint32(m))
}

func (m Mode) Editing() bool { return m == ModeDateEdit || m == ModeTimeEdit }

type input struct {
	snap  scan.Snapshot
	left  bool
	right bool
	sel   bool
	ret   bool
}

func (self *Controller) read() input {
	if self.sync {
		self.logError(self.Scanner.Poll())
	}
	snap := self.Scanner.Snapshot()
	return input{
		snap:  snap,
		left:  self.buttons.Left.Read(snap),
		right: self.buttons.Right.Read(snap),
		sel:   self.buttons.Select.Read(snap),
		ret:   self.buttons.Return.Read(snap),
	}
}

// Step is one iteration of control loop.
// No edge detection: button held past settle delay repeats.
func (self *Controller) Step() {
	in := self.read()
	mode := self.Status().Mode
	if mode.Editing() {
		self.stepEdit(mode, in)
	} else {
		self.stepIdle(in)
	}
	if self.Echo != nil {
		self.logError(self.Echo.Poll())
	}
	if self.XXX_testHook != nil {
		self.XXX_testHook(self.Status())
	}
}

// Loop runs Step until a stops.
func (self *Controller) Loop(a *alive.Alive) {
	if !a.Add(1) {
		return
	}
	defer a.Done()
	for a.IsRunning() {
		self.Step()
		if self.poll > 0 {
			self.Clock.Sleep(self.poll)
		}
	}
	self.Log.Debugf("ui loop end")
}
