// Package rtc keeps calendar time for the cabinet.
// Values are plain decimal, year is 0..99 within 2000..2099.
package rtc

import "fmt"

type State struct {
	Seconds uint8
	Minutes uint8
	Hours   uint8
	Day     uint8
	Month   uint8
	Year    uint8
}

type Device interface {
	Read() (State, error)
	Write(State) error
	// Freeze stops clock update while fields are edited.
	Freeze(bool) error
}

type Field uint8

const (
	FieldSeconds Field = iota
	FieldMinutes
	FieldHours
	FieldDay
	FieldMonth
	FieldYear
)

var fieldRanges = [...]struct{ min, max uint8 }{
	FieldSeconds: {0, 59},
	FieldMinutes: {0, 59},
	FieldHours:   {0, 23},
	FieldDay:     {1, 31},
	FieldMonth:   {1, 12},
	FieldYear:    {0, 99},
}

func (f Field) Min() uint8 { return fieldRanges[f].min }
func (f Field) Max() uint8 { return fieldRanges[f].max }

func (f Field) String() string {
	switch f {
	case FieldSeconds:
		return "seconds"
	case FieldMinutes:
		return "minutes"
	case FieldHours:
		return "hours"
	case FieldDay:
		return "day"
	case FieldMonth:
		return "month"
	case FieldYear:
		return "year"
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

func (s *State) Ptr(f Field) *uint8 {
	switch f {
	case FieldSeconds:
		return &s.Seconds
	case FieldMinutes:
		return &s.Minutes
	case FieldHours:
		return &s.Hours
	case FieldDay:
		return &s.Day
	case FieldMonth:
		return &s.Month
	case FieldYear:
		return &s.Year
	}
	panic(fmt.Sprintf("code error rtc field=%d", f))
}

func (s State) Get(f Field) uint8 { return *s.Ptr(f) }

func Clamp(f Field, v uint8) uint8 {
	if v < f.Min() {
		return f.Min()
	}
	if v > f.Max() {
		return f.Max()
	}
	return v
}

// Clamp brings every field into valid range. No calendar validation.
func (s *State) Clamp() {
	for f := FieldSeconds; f <= FieldYear; f++ {
		p := s.Ptr(f)
		*p = Clamp(f, *p)
	}
}

func (s State) Valid() bool {
	c := s
	c.Clamp()
	return c == s
}

func (s State) String() string {
	return fmt.Sprintf("20%02d-%02d-%02d %02d:%02d:%02d", s.Year, s.Month, s.Day, s.Hours, s.Minutes, s.Seconds)
}
