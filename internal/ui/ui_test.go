package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/cabinet-hmi/hardware/bus"
	"github.com/temoto/cabinet-hmi/hardware/kdc"
	"github.com/temoto/cabinet-hmi/hardware/rtc"
	"github.com/temoto/cabinet-hmi/internal/clock"
	"github.com/temoto/cabinet-hmi/internal/display"
	"github.com/temoto/cabinet-hmi/internal/scan"
	ui_config "github.com/temoto/cabinet-hmi/internal/ui/config"
	"github.com/temoto/cabinet-hmi/log2"
)

type fakeRTC struct {
	sync.Mutex
	state   rtc.State
	frozen  bool
	writes  []rtc.State
	freezes []bool
}

func (f *fakeRTC) Read() (rtc.State, error) {
	f.Lock()
	defer f.Unlock()
	return f.state, nil
}

func (f *fakeRTC) Write(s rtc.State) error {
	f.Lock()
	defer f.Unlock()
	f.state = s
	f.writes = append(f.writes, s)
	return nil
}

func (f *fakeRTC) Freeze(b bool) error {
	f.Lock()
	defer f.Unlock()
	f.frozen = b
	f.freezes = append(f.freezes, b)
	return nil
}

type fakePlayer struct{ plays int }

func (p *fakePlayer) Play() error { p.plays++; return nil }

type tenv struct {
	t       testing.TB
	sim     *kdc.Sim
	display *display.Compositor
	scanner *scan.Scanner
	rtc     *fakeRTC
	player  *fakePlayer
	clock   *clock.Fake
	ui      *Controller
}

func newTestEnv(t testing.TB, c *ui_config.Config) *tenv {
	log := log2.NewTest(t, log2.LDebug)
	m := bus.NewMock()
	env := &tenv{
		t:      t,
		sim:    kdc.NewSim(m, kdc.DefaultPortData, kdc.DefaultPortCmd),
		rtc:    &fakeRTC{state: rtc.State{Seconds: 56, Minutes: 34, Hours: 12, Day: 19, Month: 10, Year: 26}},
		player: &fakePlayer{},
		clock:  clock.NewFake(time.Date(2026, 10, 19, 12, 34, 56, 0, time.UTC)),
	}
	dev := kdc.New(m, kdc.DefaultPortData, kdc.DefaultPortCmd, log)
	env.display = display.New(dev, log)
	env.scanner = scan.New(dev, log)
	if c == nil {
		c = &ui_config.Config{SyncScan: true}
	}
	var err error
	env.ui, err = New(c, Deps{
		Scanner: env.scanner,
		Display: env.display,
		Player:  env.player,
		RTC:     env.rtc,
		Clock:   env.clock,
	}, log)
	require.NoError(t, err)
	require.NoError(t, env.ui.Start())
	return env
}

func (env *tenv) hold(bs ...scan.Button) {
	for r := 0; r < scan.Rows; r++ {
		env.sim.SetSensor(r, 0)
	}
	for _, b := range bs {
		env.sim.Press(int(b.Row), int(b.Column))
	}
}

// press holds buttons for exactly one loop iteration
func (env *tenv) press(bs ...scan.Button) Status {
	env.hold(bs...)
	env.ui.Step()
	env.hold()
	return env.ui.Status()
}

func (env *tenv) digits() display.Buffer {
	require.NoError(env.t, env.display.Redraw())
	b := env.display.State().Composed()
	assert.Equal(env.t, b, display.Buffer(env.sim.Digits()))
	return b
}

func TestCursorNavigation(t *testing.T) {
	t.Parallel()
	type Case struct {
		from, left, right int
	}
	cases := []Case{
		{7, 7, 6},
		{6, 7, 4},
		{4, 6, 3},
		{3, 4, 1},
		{1, 3, 0},
		{0, 1, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.left, CursorLeft(c.from), "left from=%d", c.from)
		assert.Equal(t, c.right, CursorRight(c.from), "right from=%d", c.from)
	}
	for _, start := range []int{0, 1, 3, 4, 6, 7} {
		l, r := start, start
		for i := 0; i < 10; i++ {
			l, r = CursorLeft(l), CursorRight(r)
			assert.NotContains(t, []int{2, 5}, l)
			assert.NotContains(t, []int{2, 5}, r)
		}
		assert.Equal(t, 7, l)
		assert.Equal(t, 0, r)
	}
}

func TestIncrement(t *testing.T) {
	t.Parallel()
	type Case struct {
		field  rtc.Field
		v      uint8
		tens   bool
		expect uint8
	}
	cases := []Case{
		{rtc.FieldDay, 31, true, 1},
		{rtc.FieldDay, 9, true, 19},
		{rtc.FieldDay, 25, true, 1},
		{rtc.FieldDay, 31, false, 30},
		{rtc.FieldDay, 9, false, 1},
		{rtc.FieldMonth, 12, true, 2},
		{rtc.FieldMonth, 9, true, 1},
		{rtc.FieldMonth, 12, false, 10},
		{rtc.FieldHours, 19, true, 23},
		{rtc.FieldHours, 23, true, 3},
		{rtc.FieldHours, 23, false, 20},
		{rtc.FieldMinutes, 59, true, 9},
		{rtc.FieldMinutes, 59, false, 50},
		{rtc.FieldSeconds, 0, false, 1},
		{rtc.FieldYear, 99, true, 9},
		{rtc.FieldYear, 99, false, 90},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, Increment(c.field, c.v, c.tens), "field=%s v=%d tens=%t", c.field, c.v, c.tens)
	}
	for f := rtc.FieldSeconds; f <= rtc.FieldYear; f++ {
		for v := f.Min(); v <= f.Max(); v++ {
			for _, tens := range []bool{true, false} {
				r := Increment(f, v, tens)
				assert.True(t, r >= f.Min() && r <= f.Max(), "field=%s v=%d tens=%t result=%d", f, v, tens, r)
			}
		}
	}
}

func TestItemWrap(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	b := env.ui.Buttons()
	assert.Equal(t, 7, env.press(b.Left).Item)
	assert.Equal(t, 0, env.press(b.Right).Item)
	for i := 0; i < 7; i++ {
		env.press(b.Right)
	}
	assert.Equal(t, 7, env.ui.Status().Item)
	assert.Equal(t, 0, env.press(b.Right).Item)
	env.press(b.Right)
	assert.Equal(t, 0, env.press(b.Return).Item)
	assert.Equal(t, 12, len(env.clock.Sleeps()))
}

func TestIdleDisplay(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	b := env.ui.Buttons()
	env.press(b.Right)
	env.press(b.Right)
	env.hold()
	env.sim.SetSensor(2, 123)
	env.ui.Step()
	assert.Equal(t, display.Buffer{0xff, 0xff, 0xff, 0xff, 0x33, 0x22, 0x11, 0x22}, env.digits())
}

func TestTimeEditEntry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	b := env.ui.Buttons()
	for i := 0; i < 3; i++ {
		env.press(b.Right)
	}
	require.Equal(t, 3, env.ui.Status().Item)
	st := env.press(b.Select)
	assert.Equal(t, ModeTimeEdit, st.Mode)
	assert.Equal(t, 7, st.Cursor)
	assert.Equal(t, []bool{true}, env.rtc.freezes)
	// 12:34:56, digit 0 is rightmost
	assert.Equal(t, display.Buffer{0x66, 0x55, 0xff, 0x44, 0x33, 0xff, 0x22, 0x11}, env.digits())

	s := env.display.State()
	assert.Equal(t, byte(0x10), s.Money[7]&0xf0, "cursor digit blink-marked")
	for i := 0; i < 7; i++ {
		assert.Equal(t, byte(0), s.Money[i]&0xf0, "digit=%d", i)
	}
	require.NoError(t, env.display.OnTick())
	assert.Equal(t, byte(0xff), env.display.State().Composed()[7], "blink on")
	require.NoError(t, env.display.OnTick())
	assert.Equal(t, byte(0x11), env.display.State().Composed()[7], "blink off")
}

func TestDateEditDayWrap(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.rtc.state.Day = 31
	b := env.ui.Buttons()
	env.press(b.Right)
	env.press(b.Right)
	st := env.press(b.Select)
	require.Equal(t, ModeDateEdit, st.Mode)
	require.Equal(t, uint8(31), st.RTC.Day)

	st = env.press(b.Select)
	assert.Equal(t, uint8(1), st.RTC.Day)
	assert.Equal(t, display.Buffer{0x66, 0x22, 0xff, 0x00, 0x11, 0xff, 0x11, 0x00}, env.digits())
}

func TestEditSequence(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	b := env.ui.Buttons()
	type step struct {
		press   scan.Button
		cursor  int
		hours   uint8
		seconds uint8
	}
	env.press(b.Right)
	env.press(b.Right)
	env.press(b.Right)
	env.press(b.Select)
	steps := []step{
		{b.Select, 7, 22, 56},
		{b.Select, 7, 2, 56},
		{b.Right, 6, 2, 56},
		{b.Select, 6, 3, 56},
		{b.Right, 4, 3, 56},
		{b.Right, 3, 3, 56},
		{b.Right, 1, 3, 56},
		{b.Select, 1, 3, 6},
		{b.Right, 0, 3, 6},
		{b.Right, 0, 3, 6},
		{b.Select, 0, 3, 7},
		{b.Left, 1, 3, 7},
		{b.Left, 3, 3, 7},
	}
	for i, s := range steps {
		st := env.press(s.press)
		assert.Equal(t, ModeTimeEdit, st.Mode, "step=%d", i)
		assert.Equal(t, s.cursor, st.Cursor, "step=%d", i)
		assert.Equal(t, s.hours, st.RTC.Hours, "step=%d", i)
		assert.Equal(t, s.seconds, st.RTC.Seconds, "step=%d", i)
		assert.Equal(t, uint8(34), st.RTC.Minutes, "step=%d", i)
	}
	final := rtc.State{Seconds: 7, Minutes: 34, Hours: 3, Day: 19, Month: 10, Year: 26}
	sleeps := len(env.clock.Sleeps())
	st := env.press(b.Return)
	assert.Equal(t, ModeIdle, st.Mode)
	assert.Equal(t, -1, st.Cursor)
	assert.Equal(t, sleeps, len(env.clock.Sleeps()), "return has no settle delay")
	assert.Equal(t, []rtc.State{final}, env.rtc.writes)
	assert.Equal(t, []bool{true, false}, env.rtc.freezes)
	for i, e := range env.display.State().Money {
		assert.Equal(t, byte(0), e&0xf0, "digit=%d blink mark after exit", i)
	}
}

func TestEditExitClamps(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.rtc.state = rtc.State{Seconds: 75, Minutes: 60, Hours: 30, Day: 0, Month: 15, Year: 99}
	b := env.ui.Buttons()
	env.press(b.Right)
	env.press(b.Right)
	env.press(b.Select)
	st := env.press(b.Return)
	expect := rtc.State{Seconds: 59, Minutes: 59, Hours: 23, Day: 1, Month: 12, Year: 99}
	assert.Equal(t, expect, st.RTC)
	assert.Equal(t, expect, env.rtc.state)
	assert.True(t, st.RTC.Valid())
	assert.False(t, env.rtc.frozen)
}

func TestSelectTrackAndLamps(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	b := env.ui.Buttons()
	for i := 0; i < 5; i++ {
		env.press(b.Right)
	}
	env.clock.Reset()
	st := env.press(b.Select)
	assert.Equal(t, ModeIdle, st.Mode)
	assert.Equal(t, 1, env.player.plays)
	assert.Equal(t, []time.Duration{DefaultSettle}, env.clock.Sleeps())

	env.press(b.Right)
	env.press(b.Right)
	assert.Equal(t, [kdc.Lines]byte{}, env.sim.Lamps())
	env.press(b.Select)
	assert.Equal(t, [kdc.Lines]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, env.sim.Lamps())

	// items without action only settle
	env.press(b.Return)
	st = env.press(b.Select)
	assert.Equal(t, ModeIdle, st.Mode)
	assert.Equal(t, 1, env.player.plays)
}

func TestRepeatWhileHeld(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &ui_config.Config{SyncScan: true, SettleMs: 50})
	b := env.ui.Buttons()
	env.hold(b.Right)
	env.ui.Step()
	env.ui.Step()
	env.ui.Step()
	assert.Equal(t, 3, env.ui.Status().Item)
	assert.Equal(t, 150*time.Millisecond, env.clock.Slept())
}

func TestSyncScanAcknowledges(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	b := env.ui.Buttons()
	assert.Equal(t, 1, env.sim.EndInterrupts(), "start")
	type Step struct {
		button scan.Button
		item   int
	}
	steps := []Step{{b.Right, 1}, {b.Right, 2}, {b.Left, 1}, {b.Right, 2}, {b.Right, 3}}
	for i, s := range steps {
		assert.Equal(t, s.item, env.press(s.button).Item, "step=%d", i)
		assert.Equal(t, i+2, env.sim.EndInterrupts(), "step=%d", i)
		assert.False(t, env.sim.Locked())
	}
}

func TestAsyncScan(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &ui_config.Config{SyncScan: false})
	b := env.ui.Buttons()
	env.hold(b.Right)
	env.ui.Step()
	assert.Equal(t, 0, env.ui.Status().Item, "snapshot not refreshed yet")
	require.NoError(t, env.scanner.Poll())
	env.ui.Step()
	assert.Equal(t, 1, env.ui.Status().Item)
}

type failEcho struct{ n int }

func (e *failEcho) Poll() error { e.n++; return errors.New("uart gone") }

func TestLoop(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	echo := &failEcho{}
	env.ui.Echo = echo
	a := alive.NewAlive()
	steps := 0
	env.ui.XXX_testHook = func(Status) {
		steps++
		if steps == 3 {
			a.Stop()
		}
	}
	env.ui.Loop(a)
	a.Wait()
	assert.Equal(t, 3, steps)
	assert.Equal(t, 3, echo.n, "echo error does not stop loop")
}

func TestButtonsFromConfig(t *testing.T) {
	t.Parallel()
	c := &ui_config.Config{}
	bs, err := ButtonsFromConfig(c)
	require.NoError(t, err)
	assert.Equal(t, DefaultButtons, bs)

	c.Buttons.Select = &ui_config.Button{Row: 7, Column: 7, Inverted: true}
	bs, err = ButtonsFromConfig(c)
	require.NoError(t, err)
	assert.Equal(t, scan.Button{Row: 7, Column: 7, Inverted: true}, bs.Select)

	c.Buttons.Left = &ui_config.Button{Row: 8}
	_, err = ButtonsFromConfig(c)
	assert.Error(t, err)
}
