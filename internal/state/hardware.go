package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/bus"
	"github.com/temoto/cabinet-hmi/hardware/input"
	"github.com/temoto/cabinet-hmi/hardware/kdc"
	"github.com/temoto/cabinet-hmi/hardware/muart"
	"github.com/temoto/cabinet-hmi/hardware/rtc"
	"github.com/temoto/cabinet-hmi/hardware/sound"
	"github.com/temoto/cabinet-hmi/helpers"
	"github.com/temoto/cabinet-hmi/internal/serial"
	"github.com/temoto/cabinet-hmi/log2"
)

type hardware struct {
	Bus struct {
		once
		Bus bus.Bus
		IRQ bus.Interrupter // nil: no interrupt line, scanner must be polled

		// mock driver only
		Mock *bus.Mock
		Sim  *kdc.Sim
	}
	Kdc struct {
		once
		dev *kdc.Device
	}
	Muart struct {
		once
		dev *muart.Device
	}
	Uart struct {
		once
		uart serial.UART // nil: disabled
	}
	RTC struct {
		once
		Device rtc.Device
	}
	Sound struct {
		once
		out *sound.Output
	}
	Input struct {
		once
		source *input.DevInputEventSource // nil: disabled
	}

	closers []func() error
}

// driverLog returns per-driver logger, debug level only when asked in config.
func (g *Global) driverLog(debug bool) *log2.Log {
	log := g.Log.Clone(log2.LInfo)
	if debug {
		log.SetLevel(log2.LDebug)
	}
	return log
}

func (g *Global) onClose(f func() error) {
	g.Hardware.closers = append(g.Hardware.closers, f)
}

func (g *Global) Bus() (bus.Bus, error) {
	x := &g.Hardware.Bus // short alias
	_ = x.do(func() error {
		if x.Bus != nil { // state-new testing mode
			return nil
		}

		cfg := &g.Config.Hardware.Bus
		switch cfg.Driver {
		case BusDriverBridge, "":
			bridgeConfig := &bus.Config{
				SpiBus:        cfg.Spi,
				SpiMode:       cfg.SpiMode,
				SpiSpeed:      cfg.SpiSpeed,
				NotifyPinChip: cfg.PinChip,
				NotifyPinName: cfg.Pin,
			}
			b, err := bus.NewBridge(bridgeConfig, g.driverLog(cfg.LogDebug))
			if err != nil {
				return errors.Annotatef(err, "bus config=%#v", bridgeConfig)
			}
			g.onClose(b.Close)
			x.Bus = b
			if cfg.Pin != "" {
				x.IRQ = b
			}

		case BusDriverMock:
			m := bus.NewMock()
			x.Sim = kdc.NewSim(m,
				byteDefault(g.Config.Hardware.Kdc.PortData, kdc.DefaultPortData),
				byteDefault(g.Config.Hardware.Kdc.PortCmd, kdc.DefaultPortCmd))
			muartBase := byteDefault(g.Config.Hardware.Muart.Base, muart.DefaultBase)
			m.OnIn(muartBase+muart.RegStatus, func() byte { return muart.StatusTBE | muart.StatusTRE })
			x.Bus, x.IRQ, x.Mock = m, m, m

		default:
			return errors.NotValidf("config: hardware.bus.driver=%s", cfg.Driver)
		}
		return nil
	})
	return x.Bus, x.err
}

func (g *Global) Kdc() (*kdc.Device, error) {
	x := &g.Hardware.Kdc
	_ = x.do(func() error {
		b, err := g.Bus()
		if err != nil {
			return errors.Annotate(err, "kdc")
		}
		cfg := &g.Config.Hardware.Kdc
		x.dev = kdc.New(b,
			byteDefault(cfg.PortData, kdc.DefaultPortData),
			byteDefault(cfg.PortCmd, kdc.DefaultPortCmd),
			g.driverLog(cfg.LogDebug))
		divider := cfg.ClockDivider
		if divider == 0 {
			divider = kdc.DefaultClockDivider
		}
		return errors.Annotate(x.dev.Init(divider), "kdc init")
	})
	return x.dev, x.err
}

func (g *Global) Muart() (*muart.Device, error) {
	x := &g.Hardware.Muart
	_ = x.do(func() error {
		b, err := g.Bus()
		if err != nil {
			return errors.Annotate(err, "muart")
		}
		cfg := &g.Config.Hardware.Muart
		x.dev = muart.New(b, byteDefault(cfg.Base, muart.DefaultBase), g.driverLog(cfg.LogDebug))
		return errors.Annotate(x.dev.Init(muart.Config{
			Cmd1:   byte(cfg.Cmd1),
			Cmd2:   byte(cfg.Cmd2),
			Mode:   byte(cfg.Mode),
			Port1C: byte(cfg.Port1C),
		}), "muart init")
	})
	return x.dev, x.err
}

// Uart returns nil, nil when serial line is disabled.
func (g *Global) Uart() (serial.UART, error) {
	x := &g.Hardware.Uart
	_ = x.do(func() error {
		if x.uart != nil { // state-new testing mode
			return nil
		}
		cfg := &g.Config.Hardware.Uart
		switch cfg.Driver {
		case UartDriverMuart, "":
			m, err := g.Muart()
			if err != nil {
				return errors.Annotate(err, "uart driver=muart")
			}
			x.uart = m

		case UartDriverTty:
			u, err := openTty(cfg.Device, cfg.Baud, g.Log.Clone(log2.LInfo))
			if err != nil {
				return errors.Annotatef(err, "uart driver=tty device=%s", cfg.Device)
			}
			g.onClose(u.Close)
			x.uart = u

		case UartDriverNone:
			g.Log.Infof("uart disabled")

		default:
			return errors.NotValidf("config: hardware.uart.driver=%s", cfg.Driver)
		}
		return nil
	})
	return x.uart, x.err
}

func (g *Global) RTC() (rtc.Device, error) {
	x := &g.Hardware.RTC
	_ = x.do(func() error {
		if x.Device != nil { // state-new testing mode
			return nil
		}
		cfg := &g.Config.Hardware.Rtc
		log := g.driverLog(cfg.LogDebug)
		switch cfg.Driver {
		case RtcDriverMC146818, "":
			b, err := g.Bus()
			if err != nil {
				return errors.Annotate(err, "rtc")
			}
			dev := rtc.NewMC146818(b,
				byteDefault(cfg.PortAddr, rtc.DefaultPortAddr),
				byteDefault(cfg.PortData, rtc.DefaultPortData),
				log)
			if err = dev.Init(); err != nil {
				return errors.Annotate(err, "rtc init")
			}
			x.Device = dev

		case RtcDriverSoft:
			now := time.Now
			if g.Clock != nil {
				now = g.Clock.Now
			}
			dev, err := rtc.NewSoft(g.Config.Persist.Root, now, log)
			if err != nil {
				return errors.Annotate(err, "rtc driver=soft")
			}
			x.Device = dev

		default:
			return errors.NotValidf("config: hardware.rtc.driver=%s", cfg.Driver)
		}
		return nil
	})
	return x.Device, x.err
}

func (g *Global) Sound() (*sound.Output, error) {
	x := &g.Hardware.Sound
	_ = x.do(func() error {
		b, err := g.Bus()
		if err != nil {
			return errors.Annotate(err, "sound")
		}
		cfg := &g.Config.Hardware.Sound
		var starter sound.Starter
		switch cfg.StartDriver {
		case StartDriverBus, "":
			mask := byte(cfg.StartMask)
			if mask == 0 {
				mask = 0x01
			}
			base := byteDefault(g.Config.Hardware.Muart.Base, muart.DefaultBase)
			starter = sound.NewBusStarter(b, base+muart.RegPort1, mask, 0)

		case StartDriverGpio:
			gs, err := sound.OpenGPIOStarter(cfg.StartChip, uint32(cfg.StartLine))
			if err != nil {
				return errors.Annotatef(err, "sound start chip=%s line=%d", cfg.StartChip, cfg.StartLine)
			}
			g.onClose(gs.Close)
			starter = gs

		case StartDriverNone:

		default:
			return errors.NotValidf("config: hardware.sound.start_driver=%s", cfg.StartDriver)
		}
		x.out = sound.New(b,
			byteDefault(cfg.Port, sound.DefaultPort),
			starter,
			helpers.IntMillisecondDefault(cfg.PulseMs, sound.DefaultPulse),
			g.driverLog(cfg.LogDebug))
		return nil
	})
	return x.out, x.err
}

// InputSource returns nil, nil when bench keypad is disabled.
func (g *Global) InputSource() (*input.DevInputEventSource, error) {
	x := &g.Hardware.Input
	_ = x.do(func() error {
		cfg := &g.Config.Hardware.Input.DevInputEvent
		if !cfg.Enable {
			g.Log.Infof("input=%s disabled", input.DevInputEventTag)
			return nil
		}
		keymap := make(input.Keymap, len(cfg.Keys))
		for _, k := range cfg.Keys {
			code, err := k.KeyCode()
			if err != nil {
				return errors.Annotatef(err, "input=%s", input.DevInputEventTag)
			}
			keymap[code] = input.Position{Row: k.Row, Column: k.Column}
		}
		src, err := input.NewDevInputEventSource(cfg.Device, keymap, g.Log.Clone(log2.LInfo))
		if err != nil {
			return errors.Annotatef(err, "input=%s", input.DevInputEventTag)
		}
		x.source = src // closed by Run on stop
		return nil
	})
	return x.source, x.err
}

func (g *Global) closeHardware() error {
	errs := make([]error, 0, len(g.Hardware.closers))
	for i := len(g.Hardware.closers) - 1; i >= 0; i-- {
		errs = append(errs, g.Hardware.closers[i]())
	}
	g.Hardware.closers = nil
	return helpers.FoldErrors(errs)
}

// byteDefault maps config zero to default port.
func byteDefault(x int, def byte) byte {
	if x == 0 {
		return def
	}
	return byte(x)
}

type once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *once) done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *once) do(f func() error) error {
	if o.done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}
