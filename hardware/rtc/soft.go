package rtc

import (
	"encoding/binary"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/log2"
	"github.com/temoto/extremofile"
)

const offsetLength = 8

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Soft is RTC emulated with host clock plus persistent offset,
// for boards without MC146818.
type Soft struct {
	Log      *log2.Log
	mu       sync.Mutex
	now      func() time.Time
	offset   time.Duration
	frozen   bool
	frozenAt State
	storage  storage
}

var _ Device = new(Soft)

// NewSoft with empty dir keeps offset in memory only.
func NewSoft(dir string, now func() time.Time, log *log2.Log) (*Soft, error) {
	if now == nil {
		now = time.Now
	}
	self := &Soft{Log: log, now: now}
	if dir == "" {
		return self, nil
	}
	self.storage = extremofile.New(extremofile.Config{
		Dir:      filepath.Join(dir, "rtc"),
		DirPerm:  0755,
		FilePerm: 0644,
	})
	if err := self.load(); err != nil {
		return nil, err
	}
	return self, nil
}

func (self *Soft) Read() (State, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.frozen {
		return self.frozenAt, nil
	}
	return StateFromTime(self.now().Add(self.offset)), nil
}

func (self *Soft) Write(s State) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.offset = s.Time().Sub(self.now())
	if self.frozen {
		self.frozenAt = s
	}
	self.Log.Debugf("rtc soft write %s offset=%v", s.String(), self.offset)
	return self.store()
}

func (self *Soft) Freeze(freeze bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if freeze && !self.frozen {
		self.frozenAt = StateFromTime(self.now().Add(self.offset))
	}
	self.frozen = freeze
	return nil
}

func (self *Soft) Offset() time.Duration {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.offset
}

func (self *Soft) load() error {
	b, err := self.storage.Read()
	if b == nil {
		if err != nil && !extremofile.IsCritical(err) {
			self.Log.Errorf("rtc soft ignore storage err=%v", err)
			err = nil
		}
		return errors.Annotate(err, "rtc soft load")
	}
	if err != nil {
		self.Log.Errorf("rtc soft ignore non-critical storage err=%v", err)
	}
	if len(b) != offsetLength {
		return errors.NotValidf("rtc soft offset length=%d", len(b))
	}
	self.offset = time.Duration(int64(binary.BigEndian.Uint64(b)))
	return nil
}

func (self *Soft) store() error {
	if self.storage == nil {
		return nil
	}
	// fixed length, storage does not truncate
	var b [offsetLength]byte
	binary.BigEndian.PutUint64(b[:], uint64(self.offset))
	_, err := self.storage.Write(b[:])
	return errors.Annotate(err, "rtc soft store")
}

// StateFromTime reads t in UTC, same as State.Time.
func StateFromTime(t time.Time) State {
	t = t.UTC()
	return State{
		Seconds: uint8(t.Second()),
		Minutes: uint8(t.Minute()),
		Hours:   uint8(t.Hour()),
		Day:     uint8(t.Day()),
		Month:   uint8(t.Month()),
		Year:    uint8(t.Year() % 100),
	}
}

// Time converts clamped state to UTC time, day is limited by month length.
func (s State) Time() time.Time {
	c := s
	c.Clamp()
	year := 2000 + int(c.Year)
	if days := DaysIn(time.Month(c.Month), year); int(c.Day) > days {
		c.Day = uint8(days)
	}
	return time.Date(year, time.Month(c.Month), int(c.Day), int(c.Hours), int(c.Minutes), int(c.Seconds), 0, time.UTC)
}

func DaysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
