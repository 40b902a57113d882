package state

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/cabinet-hmi/helpers"
	"github.com/temoto/cabinet-hmi/internal/clock"
	"github.com/temoto/cabinet-hmi/internal/display"
	"github.com/temoto/cabinet-hmi/internal/scan"
	"github.com/temoto/cabinet-hmi/internal/serial"
	"github.com/temoto/cabinet-hmi/internal/track"
	"github.com/temoto/cabinet-hmi/internal/ui"
	"github.com/temoto/cabinet-hmi/log2"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Clock        clock.Clock
	Config       *Config
	Hardware     hardware // hardware.go
	Log          *log2.Log

	Scanner *scan.Scanner
	Display *display.Compositor
	Player  *track.Player
	Echo    *serial.Echo // nil: uart disabled
	UI      *ui.Controller

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if g.Config.Persist.Root == "" {
		g.Config.Persist.Root = "./tmp-hmi-db"
		g.Log.Errorf("config: persist.root=empty changed=%s", g.Config.Persist.Root)
	}
	g.Log.Debugf("config: persist.root=%s", g.Config.Persist.Root)
	if g.Clock == nil {
		g.Clock = clock.System{}
	}

	// display controller is required, nothing works without it
	kdcDev, err := g.Kdc()
	if err != nil {
		return err
	}
	g.Scanner = scan.New(kdcDev, g.Log)
	g.Display = display.New(kdcDev, g.Log)
	if g.Hardware.Bus.IRQ == nil && !g.Config.UI.SyncScan {
		g.Log.Infof("config: no scan interrupt line, using ui.sync_scan")
		g.Config.UI.SyncScan = true
	}

	errs := make([]error, 0, 8)
	rtcDev, err := g.RTC()
	if err != nil {
		return err
	}
	snd, err := g.Sound()
	if err != nil {
		return err
	}
	snd.Sleep = g.Clock.Sleep

	uart, err := g.Uart()
	if err != nil {
		// serial line is optional, cabinet runs without echo
		errs = append(errs, err)
		uart = nil
	}
	if uart != nil {
		g.Echo = serial.NewEcho(uart, g.Log)
	}

	table := track.Default
	if g.Config.Track.Path != "" {
		if table, err = track.LoadFile(g.Config.Track.Path); err != nil {
			return err
		}
	}
	playerConfig := track.PlayerConfig{
		LengthUnit: helpers.IntMillisecondDefault(g.Config.Track.LengthUnitMs, track.DefaultLengthUnit),
		EchoLyrics: g.Config.Track.EchoLyrics,
		Codepage:   g.Config.Track.Codepage,
	}
	g.Player, err = track.NewPlayer(playerConfig, table, snd, g.Display, uart, g.Clock, g.Log)
	if err != nil {
		return err
	}

	deps := ui.Deps{
		Scanner: g.Scanner,
		Display: g.Display,
		Player:  g.Player,
		RTC:     rtcDev,
		Clock:   g.Clock,
	}
	if g.Echo != nil {
		deps.Echo = g.Echo
	}
	if g.UI, err = ui.New(&g.Config.UI, deps, g.Log); err != nil {
		return err
	}

	if _, err = g.InputSource(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, g.UI.Start())
	return helpers.FoldErrors(errs)
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Fatal(err)
	}
}

// Run starts blink, scan and input tasks, then runs control loop
// until Alive is stopped. Hardware is closed on return.
func (g *Global) Run() {
	stop := g.Alive.StopChan()
	blink := helpers.IntMillisecondDefault(g.Config.UI.BlinkMs, display.DefaultBlinkPeriod)
	g.Go(func() { g.Display.Run(blink, stop) })
	if irq := g.Hardware.Bus.IRQ; irq != nil && !g.Config.UI.SyncScan {
		g.Go(func() { g.Scanner.Run(irq.IRQ(), stop) })
	}
	if src := g.Hardware.Input.source; src != nil {
		g.Go(func() {
			if err := src.Run(g.Scanner); err != nil && g.Alive.IsRunning() {
				g.Error(err)
			}
		})
		g.Go(func() {
			<-stop
			_ = src.Close()
		})
	}
	g.Log.Debugf("hmi running")
	g.UI.Loop(g.Alive)
	g.Alive.Wait()
	g.Error(g.closeHardware(), "hardware close")
}

// Go runs f as task tracked by Alive, no-op after Stop.
func (g *Global) Go(f func()) {
	if !g.Alive.Add(1) {
		return
	}
	go func() {
		defer g.Alive.Done()
		f()
	}()
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(errors.ErrorStack(err))
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(err)
		os.Exit(1)
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}
