// Package track is note table for the tone generator.
package track

import (
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
)

const DefaultLengthUnit = 8 * time.Millisecond

type Note uint8

const (
	NoteInvalid Note = iota
	NoteC
	NoteB
	NoteAS
	NoteA
	NoteGS
	NoteG
	NoteFS
	NoteF
	NoteE
	NoteDS
	NoteD
	NoteCS
)

var noteNames = [...]string{"-", "C", "B", "AS", "A", "GS", "G", "FS", "F", "E", "DS", "D", "CS"}

func (n Note) String() string {
	if int(n) < len(noteNames) {
		return noteNames[n]
	}
	return fmt.Sprintf("note(%d)", uint8(n))
}

type Octave uint8

const (
	OctaveA8 Octave = iota
	OctaveA7
	OctaveA6
	OctaveA5
)

var octaveNames = [...]string{"A8", "A7", "A6", "A5"}

func (o Octave) String() string {
	if int(o) < len(octaveNames) {
		return octaveNames[o]
	}
	return fmt.Sprintf("octave(%d)", uint8(o))
}

type Duration uint8

const (
	DurationEighth Duration = iota
	DurationQuarter
	DurationHalf
	DurationWhole
)

var durationNames = [...]string{"eighth", "quarter", "half", "whole"}

func (d Duration) String() string {
	if int(d) < len(durationNames) {
		return durationNames[d]
	}
	return fmt.Sprintf("duration(%d)", uint8(d))
}

type Entry struct {
	Note     Note
	Octave   Octave
	Duration Duration
	Length   uint8 // pause after note, in length units
	Lyric    string
}

// Code packs note (bits 0-3), duration (bits 4-5), octave (bits 6-7).
func (e Entry) Code() byte {
	return byte(e.Note)&0x0f | byte(e.Duration&3)<<4 | byte(e.Octave&3)<<6
}

func (e Entry) Delay(unit time.Duration) time.Duration {
	if unit <= 0 {
		unit = DefaultLengthUnit
	}
	return time.Duration(e.Length) * unit
}

func (e Entry) String() string {
	return fmt.Sprintf("%s/%s/%s/%d %s", e.Note, e.Octave, e.Duration, e.Length, e.Lyric)
}

type Table []Entry

func (t Table) Copy() Table { return append(Table(nil), t...) }

func ParseNote(s string) (Note, error) {
	for i, name := range noteNames {
		if i > 0 && strings.EqualFold(s, name) {
			return Note(i), nil
		}
	}
	return NoteInvalid, errors.NotValidf("note=%s", s)
}

func ParseOctave(s string) (Octave, error) {
	for i, name := range octaveNames {
		if strings.EqualFold(s, name) {
			return Octave(i), nil
		}
	}
	return 0, errors.NotValidf("octave=%s", s)
}

func ParseDuration(s string) (Duration, error) {
	for i, name := range durationNames {
		if strings.EqualFold(s, name) {
			return Duration(i), nil
		}
	}
	return 0, errors.NotValidf("duration=%s", s)
}

type fileEntry struct {
	Name     string `hcl:"name,key"`
	Note     string `hcl:"note"`
	Octave   string `hcl:"octave"`
	Duration string `hcl:"duration"`
	Length   int    `hcl:"length"`
	Lyric    string `hcl:"lyric"`
}

type file struct {
	Entries []fileEntry `hcl:"entry"`
}

// Parse reads table from HCL, entries are played in file order:
//
//	entry "1" { note = "A" octave = "A7" duration = "quarter" length = 100 lyric = "SA" }
//	entry "2" { note = "B" octave = "A7" duration = "half" length = 200 }
func Parse(b []byte) (Table, error) {
	var f file
	if err := hcl.Decode(&f, string(b)); err != nil {
		return nil, errors.Annotate(err, "track parse")
	}
	t := make(Table, 0, len(f.Entries))
	for i, fe := range f.Entries {
		e, err := fe.entry()
		if err != nil {
			return nil, errors.Annotatef(err, "track entry=%d name=%s", i, fe.Name)
		}
		t = append(t, e)
	}
	return t, nil
}

func LoadFile(path string) (Table, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "track load")
	}
	t, err := Parse(b)
	return t, errors.Annotate(err, path)
}

func (fe fileEntry) entry() (Entry, error) {
	var e Entry
	var err error
	if e.Note, err = ParseNote(fe.Note); err != nil {
		return e, err
	}
	if e.Octave, err = ParseOctave(fe.Octave); err != nil {
		return e, err
	}
	if e.Duration, err = ParseDuration(fe.Duration); err != nil {
		return e, err
	}
	if fe.Length < 0 || fe.Length > 0xff {
		return e, errors.NotValidf("length=%d", fe.Length)
	}
	e.Length = uint8(fe.Length)
	e.Lyric = fe.Lyric
	return e, nil
}
