package state

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/helpers"
	"github.com/temoto/cabinet-hmi/internal/ui"
	ui_config "github.com/temoto/cabinet-hmi/internal/ui/config"
	"github.com/temoto/cabinet-hmi/log2"
)

const (
	BusDriverBridge = "bridge"
	BusDriverMock   = "mock"

	UartDriverNone  = "none"
	UartDriverMuart = "muart"
	UartDriverTty   = "tty"

	RtcDriverMC146818 = "mc146818"
	RtcDriverSoft     = "soft"

	StartDriverNone = "none"
	StartDriverBus  = "bus"
	StartDriverGpio = "gpio"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Hardware struct {
		Bus struct {
			Driver   string `hcl:"driver"`
			LogDebug bool   `hcl:"log_debug"`
			Spi      string `hcl:"spi"`
			SpiMode  int    `hcl:"spi_mode"`
			SpiSpeed string `hcl:"spi_speed"`
			PinChip  string `hcl:"pin_chip"`
			Pin      string `hcl:"pin"`
		}
		Kdc struct {
			LogDebug     bool `hcl:"log_debug"`
			PortData     int  `hcl:"port_data"`
			PortCmd      int  `hcl:"port_cmd"`
			ClockDivider int  `hcl:"clock_divider"`
		}
		Muart struct {
			LogDebug bool `hcl:"log_debug"`
			Base     int  `hcl:"base"`
			Cmd1     int  `hcl:"cmd1"`
			Cmd2     int  `hcl:"cmd2"`
			Mode     int  `hcl:"mode"`
			Port1C   int  `hcl:"port1_direction"`
		}
		Uart struct {
			Driver string `hcl:"driver"`
			Device string `hcl:"device"`
			Baud   int    `hcl:"baud"`
		}
		Rtc struct {
			Driver   string `hcl:"driver"`
			LogDebug bool   `hcl:"log_debug"`
			PortAddr int    `hcl:"port_addr"`
			PortData int    `hcl:"port_data"`
		}
		Sound struct {
			LogDebug    bool   `hcl:"log_debug"`
			Port        int    `hcl:"port"`
			PulseMs     int    `hcl:"pulse_ms"`
			StartDriver string `hcl:"start_driver"`
			StartChip   string `hcl:"start_chip"`
			StartLine   int    `hcl:"start_line"`
			StartMask   int    `hcl:"start_mask"`
		}
		Input struct {
			DevInputEvent struct {
				Enable bool        `hcl:"enable"`
				Device string      `hcl:"device"`
				Keys   []KeyConfig `hcl:"key"`
			} `hcl:"dev_input_event"`
		}
	}

	Persist struct {
		Root string `hcl:"root"`
	}

	Track struct {
		Path         string `hcl:"path"`
		LengthUnitMs int    `hcl:"length_unit_ms"`
		EchoLyrics   bool   `hcl:"echo_lyrics"`
		Codepage     string `hcl:"codepage"`
	}

	UI ui_config.Config `hcl:"ui"`

	_copy_guard sync.Mutex //nolint:unused
}

// KeyConfig binds input key code to sensor matrix position:
//
//	key "105" { row = 0 column = 0 }
type KeyConfig struct {
	Code   string `hcl:"code,key"`
	Row    int    `hcl:"row"`
	Column int    `hcl:"column"`
}

// KeyCode parses decimal or 0x hex key code.
func (k KeyConfig) KeyCode() (uint16, error) {
	x, err := strconv.ParseUint(k.Code, 0, 16)
	if err != nil {
		return 0, errors.NotValidf("input key=%q", k.Code)
	}
	return uint16(x), nil
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// Validate checks config before any hardware is touched.
func (c *Config) Validate() error {
	errs := make([]error, 0, 8)
	oneOf := func(name, value string, valid ...string) {
		for _, v := range valid {
			if value == v {
				return
			}
		}
		errs = append(errs, errors.NotValidf("config: %s=%q valid: %v", name, value, valid))
	}
	port := func(name string, v int) {
		if v < 0 || v > 0xff {
			errs = append(errs, errors.NotValidf("config: %s=%d", name, v))
		}
	}

	hw := &c.Hardware
	oneOf("hardware.bus.driver", hw.Bus.Driver, "", BusDriverBridge, BusDriverMock)
	oneOf("hardware.uart.driver", hw.Uart.Driver, "", UartDriverNone, UartDriverMuart, UartDriverTty)
	oneOf("hardware.rtc.driver", hw.Rtc.Driver, "", RtcDriverMC146818, RtcDriverSoft)
	oneOf("hardware.sound.start_driver", hw.Sound.StartDriver, "", StartDriverNone, StartDriverBus, StartDriverGpio)
	port("hardware.kdc.port_data", hw.Kdc.PortData)
	port("hardware.kdc.port_cmd", hw.Kdc.PortCmd)
	port("hardware.muart.base", hw.Muart.Base)
	port("hardware.rtc.port_addr", hw.Rtc.PortAddr)
	port("hardware.rtc.port_data", hw.Rtc.PortData)
	port("hardware.sound.port", hw.Sound.Port)
	port("hardware.sound.start_mask", hw.Sound.StartMask)
	if hw.Uart.Driver == UartDriverTty && hw.Uart.Device == "" {
		errs = append(errs, errors.NotValidf("config: hardware.uart.driver=tty requires device"))
	}
	if hw.Sound.StartDriver == StartDriverGpio && hw.Sound.StartChip == "" {
		errs = append(errs, errors.NotValidf("config: hardware.sound.start_driver=gpio requires start_chip"))
	}
	for _, k := range hw.Input.DevInputEvent.Keys {
		if _, err := k.KeyCode(); err != nil {
			errs = append(errs, errors.Annotate(err, "config"))
		}
		if k.Row < 0 || k.Row > 7 || k.Column < 0 || k.Column > 7 {
			errs = append(errs, errors.NotValidf("config: input key=%s row=%d column=%d", k.Code, k.Row, k.Column))
		}
	}
	if _, err := ui.ButtonsFromConfig(&c.UI); err != nil {
		errs = append(errs, errors.Annotate(err, "config"))
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) String() string {
	return fmt.Sprintf("bus=%s uart=%s rtc=%s persist=%s", c.Hardware.Bus.Driver, c.Hardware.Uart.Driver, c.Hardware.Rtc.Driver, c.Persist.Root)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if dir != "" {
			osfs.SetBase(dir)
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
