// Package ui is the cabinet control loop: idle menu, date/time editor
// and track playback driven by four logical buttons.
package ui

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/rtc"
	"github.com/temoto/cabinet-hmi/helpers"
	"github.com/temoto/cabinet-hmi/internal/clock"
	"github.com/temoto/cabinet-hmi/internal/scan"
	ui_config "github.com/temoto/cabinet-hmi/internal/ui/config"
	"github.com/temoto/cabinet-hmi/log2"
)

const (
	DefaultSettle = 200 * time.Millisecond
	DefaultPoll   = 5 * time.Millisecond

	Items = 8
)

type Buttons struct {
	Left   scan.Button
	Right  scan.Button
	Select scan.Button
	Return scan.Button
}

var DefaultButtons = Buttons{
	Left:   scan.Button{Row: 0, Column: 0},
	Right:  scan.Button{Row: 0, Column: 1},
	Select: scan.Button{Row: 0, Column: 2},
	Return: scan.Button{Row: 1, Column: 0},
}

type Scanner interface {
	Snapshot() scan.Snapshot
	Poll() error
}

type Display interface {
	SetBoth(digit int, value byte)
	WriteSerie(pos int, v int)
	MarkSelected(digit int)
	Blank()
	Redraw() error
	Lamps(v byte) error
}

type Player interface {
	Play() error
}

type Echo interface {
	Poll() error
}

type Deps struct {
	Scanner Scanner
	Display Display
	Player  Player
	Echo    Echo // optional
	RTC     rtc.Device
	Clock   clock.Clock
}

// Controller is whole mutable state of the control loop.
// Only loop goroutine changes it, Status is safe from any goroutine.
type Controller struct {
	Log     *log2.Log
	buttons Buttons
	settle  time.Duration
	poll    time.Duration
	sync    bool

	Deps

	mu     sync.Mutex
	mode   Mode
	item   int
	cursor int
	rtc    rtc.State

	XXX_testHook func(Status)
}

type Status struct {
	Mode   Mode
	Item   int
	Cursor int
	RTC    rtc.State
}

func New(c *ui_config.Config, deps Deps, log *log2.Log) (*Controller, error) {
	if deps.Scanner == nil || deps.Display == nil || deps.Player == nil || deps.RTC == nil {
		return nil, errors.NotValidf("ui deps scanner/display/player/rtc required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	buttons, err := ButtonsFromConfig(c)
	if err != nil {
		return nil, err
	}
	self := &Controller{
		Log:     log,
		buttons: buttons,
		settle:  helpers.IntMillisecondDefault(c.SettleMs, DefaultSettle),
		poll:    helpers.IntMillisecondDefault(c.PollMs, DefaultPoll),
		sync:    c.SyncScan,
		Deps:    deps,
		mode:    ModeIdle,
		cursor:  -1,
	}
	return self, nil
}

func ButtonsFromConfig(c *ui_config.Config) (Buttons, error) {
	b := DefaultButtons
	errs := make([]error, 0, 4)
	set := func(name string, dst *scan.Button, src *ui_config.Button) {
		if src == nil {
			return
		}
		if src.Row < 0 || src.Row >= scan.Rows || src.Column < 0 || src.Column >= 8 {
			errs = append(errs, errors.NotValidf("ui button %s row=%d column=%d", name, src.Row, src.Column))
			return
		}
		*dst = scan.Button{Row: uint8(src.Row), Column: uint8(src.Column), Inverted: src.Inverted}
	}
	set("left", &b.Left, c.Buttons.Left)
	set("right", &b.Right, c.Buttons.Right)
	set("select", &b.Select, c.Buttons.Select)
	set("return", &b.Return, c.Buttons.Return)
	return b, helpers.FoldErrors(errs)
}

// Start shows blank digits, turns lamps off, takes first sensor
// snapshot and current clock.
func (self *Controller) Start() error {
	errs := make([]error, 0, 4)
	self.Display.Blank()
	self.Display.MarkSelected(-1)
	errs = append(errs, self.Display.Lamps(0))
	errs = append(errs, self.Scanner.Poll())
	s, err := self.RTC.Read()
	if err == nil {
		self.setRTC(s)
	}
	errs = append(errs, err)
	errs = append(errs, self.Display.Redraw())
	return errors.Annotate(helpers.FoldErrors(errs), "ui start")
}

func (self *Controller) Status() Status {
	self.mu.Lock()
	defer self.mu.Unlock()
	return Status{Mode: self.mode, Item: self.item, Cursor: self.cursor, RTC: self.rtc}
}

func (self *Controller) Buttons() Buttons { return self.buttons }

func (self *Controller) setMode(m Mode) {
	self.mu.Lock()
	self.mode = m
	self.mu.Unlock()
}

func (self *Controller) setItem(i int) {
	self.mu.Lock()
	self.item = ((i % Items) + Items) % Items
	self.mu.Unlock()
}

func (self *Controller) setCursor(c int) {
	self.mu.Lock()
	self.cursor = c
	self.mu.Unlock()
}

func (self *Controller) setRTC(s rtc.State) {
	self.mu.Lock()
	self.rtc = s
	self.mu.Unlock()
}

func (self *Controller) settleDelay() { self.Clock.Sleep(self.settle) }

// logError keeps loop running on collaborator failures.
func (self *Controller) logError(err error) {
	if err != nil {
		self.Log.Error(errors.ErrorStack(err))
	}
}
