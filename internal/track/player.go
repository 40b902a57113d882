package track

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/paulrosania/go-charset/charset"
	_ "github.com/paulrosania/go-charset/data"
	"github.com/temoto/cabinet-hmi/internal/clock"
	"github.com/temoto/cabinet-hmi/log2"
)

type Sound interface {
	Play(code byte) error
	Start() error
}

type Digits interface {
	SetBoth(digit int, value byte)
}

type ByteWriter interface {
	WriteByte(byte) error
}

type PlayerConfig struct {
	LengthUnit time.Duration
	EchoLyrics bool
	Codepage   string
}

// Player runs whole table each Play, not interruptible.
type Player struct {
	Log    *log2.Log
	mu     sync.Mutex
	table  Table
	sound  Sound
	digits Digits
	out    ByteWriter
	clock  clock.Clock
	unit   time.Duration
	echo   bool
	tr     charset.Translator
}

// out may be nil, then lyrics are not echoed.
func NewPlayer(c PlayerConfig, table Table, sound Sound, digits Digits, out ByteWriter, clk clock.Clock, log *log2.Log) (*Player, error) {
	self := &Player{
		Log:    log,
		table:  table,
		sound:  sound,
		digits: digits,
		out:    out,
		clock:  clk,
		unit:   c.LengthUnit,
		echo:   c.EchoLyrics && out != nil,
	}
	if self.unit <= 0 {
		self.unit = DefaultLengthUnit
	}
	if c.Codepage != "" {
		tr, err := charset.TranslatorTo(c.Codepage)
		if err != nil {
			return nil, errors.Annotatef(err, "track codepage=%s", c.Codepage)
		}
		self.tr = tr
	}
	return self, nil
}

func (self *Player) Table() Table {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.table.Copy()
}

func (self *Player) SetTable(t Table) {
	self.mu.Lock()
	self.table = t.Copy()
	self.mu.Unlock()
}

// Play sequences all entries. Collaborator errors are logged and
// playback goes on, first error is returned at the end.
func (self *Player) Play() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	var first error
	keep := func(err error) {
		if err == nil {
			return
		}
		self.Log.Error(err)
		if first == nil {
			first = err
		}
	}
	for i, e := range self.table {
		self.Log.Debugf("track %d/%d %s code=%02x", i+1, len(self.table), e.String(), e.Code())
		keep(self.sound.Play(e.Code()))
		keep(self.sound.Start())
		self.show(e)
		if self.echo && e.Lyric != "" {
			keep(self.writeLyric(e.Lyric))
		}
		self.clock.Sleep(e.Delay(self.unit))
	}
	return errors.Annotate(first, "track play")
}

func (self *Player) show(e Entry) {
	self.digits.SetBoth(4, byte(e.Note))
	self.digits.SetBoth(3, byte(e.Octave))
	self.digits.SetBoth(2, byte(e.Duration))
	self.digits.SetBoth(1, e.Length>>4)
	self.digits.SetBoth(0, e.Length&0x0f)
}

func (self *Player) writeLyric(s string) error {
	b := []byte(s + " ")
	if self.tr != nil {
		_, tb, err := self.tr.Translate(b, true)
		if err != nil {
			return errors.Annotatef(err, "track lyric=%s", s)
		}
		b = tb
	}
	for _, c := range b {
		if err := self.out.WriteByte(c); err != nil {
			return errors.Annotate(err, "track lyric")
		}
	}
	return nil
}
