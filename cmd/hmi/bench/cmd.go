// Bench tool: drive cabinet peripherals by hand.
package bench

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/cmd/hmi/subcmd"
	"github.com/temoto/cabinet-hmi/hardware/rtc"
	"github.com/temoto/cabinet-hmi/helpers"
	"github.com/temoto/cabinet-hmi/helpers/cli"
	"github.com/temoto/cabinet-hmi/internal/display"
	"github.com/temoto/cabinet-hmi/internal/state"
)

const usage = `syntax: commands separated by whitespace
(main)
- rows          refresh and print sensor matrix rows
- dN=V          set digit N (0-7) to hex value V on both rows, redraw
- mark=N        blink digit N, -1 stops blinking
- lamps=V       set all lamp lines to hex value V
- blank         blank all digits
- play          play track table
- rtc           print clock
- rtc=YYMMDDhhmmss  set clock
- echo          poll serial echo once
- sN            pause N milliseconds

(meta)
- loop=N        repeat N times all commands on this line
`

var Mod = subcmd.Mod{Name: "cli", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	blink := helpers.IntMillisecondDefault(g.Config.UI.BlinkMs, display.DefaultBlinkPeriod)
	g.Go(func() { g.Display.Run(blink, g.Alive.StopChan()) })
	g.Log.Debugf("bench init complete")

	cli.MainLoop("hmi-cli", newExecutor(g), newCompleter(), func(os.Signal) { g.StopWait(time.Second) })
	g.StopWait(time.Second)
	return nil
}

type command struct {
	name string
	f    func() error
}

func newCompleter() prompt.Completer {
	suggests := []prompt.Suggest{
		{Text: "rows", Description: "print sensor matrix"},
		{Text: "d7=", Description: "set digit"},
		{Text: "mark=", Description: "blink digit"},
		{Text: "lamps=ff", Description: "lamp test"},
		{Text: "blank", Description: "blank digits"},
		{Text: "play", Description: "play track"},
		{Text: "rtc", Description: "print clock"},
		{Text: "rtc=", Description: "set clock YYMMDDhhmmss"},
		{Text: "echo", Description: "serial echo poll"},
		{Text: "loop=", Description: "repeat line"},
		{Text: "help"},
	}
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(g *state.Global) func(string) {
	return func(line string) {
		cmds, loopn, err := parseLine(g, line)
		if err != nil {
			g.Log.Errorf(errors.ErrorStack(err))
			return
		}
		tbegin := time.Now()
		if err = execute(cmds, loopn); err != nil {
			g.Log.Errorf(errors.ErrorStack(err))
		}
		if len(cmds) != 0 {
			g.Log.Infof("duration=%v", time.Since(tbegin))
		}
	}
}

func execute(cmds []command, loopn uint) error {
	if loopn == 0 {
		loopn = 1
	}
	for i := uint(0); i < loopn; i++ {
		for _, c := range cmds {
			if err := c.f(); err != nil {
				return errors.Annotatef(err, "command=%s iteration=%d", c.name, i+1)
			}
		}
	}
	return nil
}

func parseLine(g *state.Global, line string) ([]command, uint, error) {
	words := strings.Fields(line)
	loopn := uint(0)
	cmds := make([]command, 0, len(words))
	errs := make([]error, 0, 4)
	for _, word := range words {
		switch {
		case word == "help" || word == "/help":
			g.Log.Infof(usage)
			return nil, 0, nil

		case strings.HasPrefix(word, "loop="):
			if loopn != 0 {
				return nil, 0, errors.Errorf("multiple loop commands, expected at most one")
			}
			i, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, 0, errors.Annotatef(err, "word=%s", word)
			}
			loopn = uint(i)

		default:
			c, err := parseCommand(g, word)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			cmds = append(cmds, c)
		}
	}
	if len(errs) != 0 {
		return nil, 0, helpers.FoldErrors(errs)
	}
	return cmds, loopn, nil
}

func parseCommand(g *state.Global, word string) (command, error) {
	c := command{name: word}
	switch {
	case word == "rows":
		c.f = func() error {
			if err := g.Scanner.Poll(); err != nil {
				return err
			}
			snap := g.Scanner.Snapshot()
			for i, b := range snap {
				g.Log.Infof("row %d = %08b %02x", i, b, b)
			}
			return nil
		}

	case word == "blank":
		c.f = func() error {
			g.Display.Blank()
			return g.Display.Redraw()
		}

	case word == "play":
		c.f = g.Player.Play

	case word == "echo":
		c.f = func() error {
			if g.Echo == nil {
				return errors.NotFoundf("uart disabled")
			}
			return g.Echo.Poll()
		}

	case word == "rtc":
		c.f = func() error {
			s, err := g.Hardware.RTC.Device.Read()
			if err == nil {
				g.Log.Infof("rtc %s", s.String())
			}
			return err
		}

	case strings.HasPrefix(word, "rtc="):
		s, err := parseRTC(word[4:])
		if err != nil {
			return c, errors.Annotatef(err, "word=%s", word)
		}
		c.f = func() error {
			dev := g.Hardware.RTC.Device
			errs := []error{dev.Freeze(true), dev.Write(s), dev.Freeze(false)}
			return helpers.FoldErrors(errs)
		}

	case strings.HasPrefix(word, "lamps="):
		v, err := strconv.ParseUint(word[6:], 16, 8)
		if err != nil {
			return c, errors.Annotatef(err, "word=%s", word)
		}
		c.f = func() error { return g.Display.Lamps(byte(v)) }

	case strings.HasPrefix(word, "mark="):
		n, err := strconv.Atoi(word[5:])
		if err != nil || n < -1 || n >= display.Digits {
			return c, errors.NotValidf("word=%s digit", word)
		}
		c.f = func() error {
			g.Display.MarkSelected(n)
			return g.Display.Redraw()
		}

	case len(word) >= 4 && word[0] == 'd' && word[2] == '=':
		n, err := strconv.Atoi(word[1:2])
		if err != nil || n >= display.Digits {
			return c, errors.NotValidf("word=%s digit", word)
		}
		v, err := strconv.ParseUint(word[3:], 16, 4)
		if err != nil {
			return c, errors.Annotatef(err, "word=%s", word)
		}
		c.f = func() error {
			g.Display.SetBoth(n, byte(v))
			return g.Display.Redraw()
		}

	case word[0] == 's':
		i, err := strconv.ParseUint(word[1:], 10, 32)
		if err != nil {
			return c, errors.Annotatef(err, "word=%s", word)
		}
		c.f = func() error {
			g.Clock.Sleep(time.Duration(i) * time.Millisecond)
			return nil
		}

	default:
		return c, errors.NotFoundf("command=%s", word)
	}
	return c, nil
}

// parseRTC reads YYMMDDhhmmss.
func parseRTC(s string) (rtc.State, error) {
	var st rtc.State
	if len(s) != 12 {
		return st, errors.NotValidf("rtc=%s expected YYMMDDhhmmss", s)
	}
	fields := []*uint8{&st.Year, &st.Month, &st.Day, &st.Hours, &st.Minutes, &st.Seconds}
	for i, p := range fields {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 10, 8)
		if err != nil {
			return st, errors.Annotatef(err, "rtc=%s", s)
		}
		*p = uint8(v)
	}
	if !st.Valid() {
		return st, errors.NotValidf("rtc=%s out of range", s)
	}
	return st, nil
}
