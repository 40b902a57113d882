package ui

import "github.com/temoto/cabinet-hmi/internal/display"

const (
	ItemDate  = 2
	ItemTime  = 3
	ItemTrack = 5
	ItemLamps = 7
)

// Digit 7 shows item, 6..4 its sensor row value, rest blank.
func (self *Controller) showIdle(in input) {
	item := self.Status().Item
	self.Display.SetBoth(7, byte(item))
	self.Display.WriteSerie(6, int(in.snap[item]))
	for d := 3; d >= 0; d-- {
		self.Display.SetBoth(d, display.Blank)
	}
}

func (self *Controller) stepIdle(in input) {
	self.showIdle(in)
	if in.left {
		self.setItem(self.Status().Item - 1)
		self.settleDelay()
	}
	if in.right {
		self.setItem(self.Status().Item + 1)
		self.settleDelay()
	}
	if in.ret {
		self.setItem(0)
		self.settleDelay()
	}
	if in.sel {
		self.dispatch(self.Status().Item)
		self.settleDelay()
	}
}

func (self *Controller) dispatch(item int) {
	self.Log.Debugf("ui select item=%d", item)
	switch item {
	case ItemDate:
		self.enterEdit(ModeDateEdit)
	case ItemTime:
		self.enterEdit(ModeTimeEdit)
	case ItemTrack:
		self.setMode(ModePlaying)
		self.logError(self.Player.Play())
		self.setMode(ModeIdle)
	case ItemLamps:
		self.logError(self.Display.Lamps(0xff))
	}
}
