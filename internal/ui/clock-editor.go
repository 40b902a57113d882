package ui

import (
	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/rtc"
	"github.com/temoto/cabinet-hmi/internal/display"
)

// Edit layout: fields at digits 7-6, 4-3, 1-0, separators at 5 and 2.
const (
	cursorMax = 7
	cursorMin = 0
	sepHigh   = 5
	sepLow    = 2
)

var (
	timeFields = [3]rtc.Field{rtc.FieldHours, rtc.FieldMinutes, rtc.FieldSeconds}
	dateFields = [3]rtc.Field{rtc.FieldDay, rtc.FieldMonth, rtc.FieldYear}
)

func editFields(m Mode) [3]rtc.Field {
	if m == ModeDateEdit {
		return dateFields
	}
	return timeFields
}

// CursorLeft moves to next higher position, skipping separators.
func CursorLeft(c int) int {
	if c >= cursorMax {
		return cursorMax
	}
	c++
	if c == sepLow || c == sepHigh {
		c++
	}
	return c
}

// CursorRight moves to next lower position, skipping separators.
func CursorRight(c int) int {
	if c <= cursorMin {
		return cursorMin
	}
	c--
	if c == sepLow || c == sepHigh {
		c--
	}
	return c
}

// fieldAt returns field index and place under cursor.
func fieldAt(cursor int) (index int, tens bool) {
	switch cursor {
	case 7, 6:
		return 0, cursor == 7
	case 4, 3:
		return 1, cursor == 4
	case 1, 0:
		return 2, cursor == 1
	}
	panic(errors.Errorf("code error cursor=%d not on field", cursor))
}

// Increment bumps tens or ones place of v within field range.
// Tens overflow of day and month restarts at 01, hours are capped at 23.
func Increment(f rtc.Field, v uint8, tens bool) uint8 {
	max, min := f.Max(), f.Min()
	if tens {
		t := v/10 + 1
		if t > max/10 {
			t = 0
		}
		v = t*10 + v%10
		if v > max {
			switch f {
			case rtc.FieldHours:
				v = max
			default:
				v = 1
			}
		}
	} else {
		v = v/10*10 + (v%10+1)%10
		if v > max {
			v = v / 10 * 10
		}
	}
	if v < min {
		v = min
	}
	return v
}

func (self *Controller) enterEdit(m Mode) {
	self.logError(errors.Annotate(self.RTC.Freeze(true), "ui rtc freeze"))
	if s, err := self.RTC.Read(); err != nil {
		self.logError(errors.Annotate(err, "ui rtc read"))
	} else {
		self.setRTC(s)
	}
	self.setMode(m)
	self.setCursor(cursorMax)
	self.showEdit(m)
	self.Display.MarkSelected(cursorMax)
}

func (self *Controller) showEdit(m Mode) {
	st := self.Status()
	fields := editFields(m)
	for i, pos := range [3]int{7, 4, 1} {
		v := st.RTC.Get(fields[i])
		self.Display.SetBoth(pos, v/10)
		self.Display.SetBoth(pos-1, v%10)
	}
	self.Display.SetBoth(sepHigh, display.Blank)
	self.Display.SetBoth(sepLow, display.Blank)
}

func (self *Controller) stepEdit(m Mode, in input) {
	if in.left {
		self.moveCursor(m, CursorLeft(self.Status().Cursor))
		self.settleDelay()
	}
	if in.right {
		self.moveCursor(m, CursorRight(self.Status().Cursor))
		self.settleDelay()
	}
	if in.sel {
		st := self.Status()
		index, tens := fieldAt(st.Cursor)
		f := editFields(m)[index]
		p := st.RTC.Ptr(f)
		*p = Increment(f, *p, tens)
		self.setRTC(st.RTC)
		self.showEdit(m)
		self.settleDelay()
	}
	if in.ret {
		self.exitEdit(m)
	}
}

func (self *Controller) moveCursor(m Mode, c int) {
	self.setCursor(c)
	self.showEdit(m)
	self.Display.MarkSelected(c)
}

// exitEdit commits clamped fields and restarts the clock.
func (self *Controller) exitEdit(m Mode) {
	st := self.Status()
	st.RTC.Clamp()
	self.setRTC(st.RTC)
	self.setCursor(-1)
	self.Display.MarkSelected(-1)
	self.showEdit(m)
	self.logError(self.Display.Redraw())
	self.logError(errors.Annotate(self.RTC.Write(st.RTC), "ui rtc write"))
	self.logError(errors.Annotate(self.RTC.Freeze(false), "ui rtc unfreeze"))
	self.setMode(ModeIdle)
	self.Log.Debugf("ui edit %s done rtc=%s", m.String(), st.RTC.String())
}
