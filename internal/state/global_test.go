package state_test

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/cabinet-hmi/hardware/kdc"
	"github.com/temoto/cabinet-hmi/hardware/rtc"
	"github.com/temoto/cabinet-hmi/hardware/sound"
	"github.com/temoto/cabinet-hmi/internal/clock"
	state_new "github.com/temoto/cabinet-hmi/internal/state/new"
	"github.com/temoto/cabinet-hmi/internal/track"
	"github.com/temoto/cabinet-hmi/internal/ui"
)

func TestInitMock(t *testing.T) {
	t.Parallel()
	_, g := state_new.NewTestContext(t, "")

	sim := g.Hardware.Bus.Sim
	require.NotNil(t, sim)
	assert.Equal(t, [kdc.Lines]byte{}, sim.Lamps(), "lamps off")
	assert.Equal(t, [kdc.Lines]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, sim.Digits(), "digits blank")
	assert.NotNil(t, g.Echo)
	assert.Equal(t, ui.ModeIdle, g.UI.Status().Mode)
	assert.Equal(t, -1, g.UI.Status().Cursor)
	assert.Equal(t, len(track.Default), len(g.Player.Table()))

	st := g.UI.Status().RTC
	assert.Equal(t, rtc.State{Day: 1, Month: 1, Year: 26}, st, "soft rtc follows injected clock")
}

func TestInitAsyncScan(t *testing.T) {
	t.Parallel()
	_, g := state_new.NewTestContext(t, `ui { sync_scan = false }`)
	assert.False(t, g.Config.UI.SyncScan, "mock bus has interrupt line")
}

func TestInitTrackFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tune.hcl")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
entry "1" { note = "A" octave = "A7" duration = "quarter" length = 100 lyric = "SA" }
entry "2" { note = "C" octave = "A6" duration = "half" length = 50 }
`), 0644))
	_, g := state_new.NewTestContext(t, `track { path = "`+path+`" }`)
	require.Equal(t, track.Table{
		{Note: track.NoteA, Octave: track.OctaveA7, Duration: track.DurationQuarter, Length: 100, Lyric: "SA"},
		{Note: track.NoteC, Octave: track.OctaveA6, Duration: track.DurationHalf, Length: 50},
	}, g.Player.Table())

	m := g.Hardware.Bus.Mock
	m.Reset()
	require.NoError(t, g.Player.Play())
	tbl := g.Player.Table()
	assert.Equal(t, []byte{tbl[0].Code(), tbl[1].Code()}, m.OutValues(sound.DefaultPort))
	fake := g.Clock.(*clock.Fake)
	assert.Contains(t, fake.Sleeps(), 100*track.DefaultLengthUnit)
	assert.Contains(t, fake.Sleeps(), sound.DefaultPulse)
}

func TestRunStop(t *testing.T) {
	t.Parallel()
	_, g := state_new.NewTestContext(t, `ui { blink_ms = 5 }`)
	steps := 0
	g.UI.XXX_testHook = func(ui.Status) {
		steps++
		if steps == 10 {
			g.Hardware.Bus.Sim.Press(0, 1)
			g.Hardware.Bus.Mock.FireIRQ()
		}
		if g.UI.Status().Item == 1 {
			g.Stop()
		}
	}
	done := make(chan struct{})
	go func() {
		g.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.True(t, steps >= 10)
	assert.True(t, g.Hardware.Bus.Sim.EndInterrupts() >= 1, "scan task acknowledges interrupt")
}
