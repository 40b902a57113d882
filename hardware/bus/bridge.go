package bus

import (
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/cabinet-hmi/helpers"
	"github.com/temoto/cabinet-hmi/log2"
	gpio "github.com/temoto/gpio-cdev-go"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const modName string = "bus-bridge"

const DefaultSpiSpeed = 200 * physic.KiloHertz

const (
	txTries       = 3
	busyPause     = 500 * time.Microsecond
	notifyTimeout = time.Second
)

var ErrBusy = errors.New("bus bridge busy")

type Config struct {
	SpiBus        string
	SpiMode       int
	SpiSpeed      string
	NotifyPinChip string
	NotifyPinName string // empty: no interrupt line, IRQ() never fires

	testhw *hardware
}

type SpiTxFunc func(send, recv []byte) error

type hardware struct {
	spiTx    SpiTxFunc    // used
	notifier gpio.Eventer // used, may be nil

	spiPort  spi.PortCloser // only for resource cleanup
	gpioChip gpio.Chiper    // only for resource cleanup
}

// Bridge tunnels port I/O over SPI to the bus bridge controller.
// Bridge notify pin follows 8279 IRQ output.
type Bridge struct {
	Log   *log2.Log
	alive *alive.Alive
	hw    hardware
	irq   chan struct{}
	txlk  sync.Mutex
	stat  Stat
}

type Stat struct {
	Request uint32
	Retry   uint32
	Error   uint32
	IRQ     uint32
}

// compile-time interface compliance test
var _ Bus = new(Bridge)
var _ Interrupter = new(Bridge)

func NewBridge(c *Config, log *log2.Log) (*Bridge, error) {
	self := &Bridge{
		Log:   log,
		alive: alive.NewAlive(),
		irq:   make(chan struct{}, 1),
	}
	if err := self.hw.open(c); err != nil {
		_ = self.hw.Close()
		return nil, errors.Annotate(err, modName)
	}
	if self.hw.notifier != nil {
		self.alive.Add(1)
		go self.notifyLoop()
	}
	return self, nil
}

func (self *Bridge) Close() error {
	self.alive.Stop()
	err := self.hw.Close()
	self.alive.Wait()
	return err
}

func (self *Bridge) IRQ() <-chan struct{} { return self.irq }

func (self *Bridge) Stat() Stat {
	return Stat{
		Request: atomic.LoadUint32(&self.stat.Request),
		Retry:   atomic.LoadUint32(&self.stat.Retry),
		Error:   atomic.LoadUint32(&self.stat.Error),
		IRQ:     atomic.LoadUint32(&self.stat.IRQ),
	}
}

func (self *Bridge) Out(port, value byte) error {
	_, err := self.tx(request{op: OpOut, port: port, value: value})
	return err
}

func (self *Bridge) In(port byte) (byte, error) {
	return self.tx(request{op: OpIn, port: port})
}

func (self *Bridge) tx(rq request) (byte, error) {
	self.txlk.Lock()
	defer self.txlk.Unlock()
	atomic.AddUint32(&self.stat.Request, 1)

	var buf [frameLength]byte
	var err error
	for try := 1; try <= txTries; try++ {
		if try > 1 {
			atomic.AddUint32(&self.stat.Retry, 1)
		}
		for i := range buf {
			buf[i] = 0
		}
		rq.encode(buf[:requestLength])
		if err = self.hw.spiTx(buf[:], buf[:]); err != nil {
			atomic.AddUint32(&self.stat.Error, 1)
			return 0, errors.Annotatef(err, "%s spi tx %s", modName, rq.String())
		}
		var rs response
		rs, err = parseResponse(buf[requestLength+1:])
		if err != nil {
			self.Log.Errorf("%s %s try=%d err=%v", modName, rq.String(), try, err)
			continue
		}
		switch rs.status {
		case StatusOk:
			self.Log.Debugf("%s %s -> %02x", modName, rq.String(), rs.value)
			return rs.value, nil
		case StatusBusy, StatusNotReady:
			err = ErrBusy
			time.Sleep(busyPause)
			continue
		case StatusCRC:
			err = errors.Errorf("%s bridge reported request crc error", modName)
			continue
		default:
			atomic.AddUint32(&self.stat.Error, 1)
			return 0, errors.Errorf("%s %s status=%02x", modName, rq.String(), byte(rs.status))
		}
	}
	atomic.AddUint32(&self.stat.Error, 1)
	return 0, errors.Annotatef(err, "%s %s tries=%d", modName, rq.String(), txTries)
}

func (self *Bridge) notifyLoop() {
	defer self.alive.Done()
	for self.alive.IsRunning() {
		edge, err := self.hw.notifier.Wait(notifyTimeout)
		if err != nil {
			if gpio.IsTimeout(err) {
				continue
			}
			if !self.alive.IsRunning() || gpio.IsClosed(err) {
				return
			}
			self.Log.Errorf("%s notify wait err=%v", modName, err)
			time.Sleep(notifyTimeout)
			continue
		}
		if edge.ID != gpio.GPIOEVENT_EVENT_RISING_EDGE {
			continue
		}
		atomic.AddUint32(&self.stat.IRQ, 1)
		select {
		case self.irq <- struct{}{}:
		default: // previous edge not consumed yet
		}
	}
}

// Converts config strings to useful hardware talking functions.
func (h *hardware) open(c *Config) error {
	if c.testhw != nil {
		*h = *c.testhw
		return nil
	}

	var err error
	if _, err = host.Init(); err != nil {
		return errors.Annotate(err, "periph/init")
	}

	var spiPort spi.PortCloser
	spiPort, err = spireg.Open(c.SpiBus)
	if err != nil {
		return errors.Annotatef(err, "SPI Open bus=%s", c.SpiBus)
	}
	h.spiPort = spiPort
	spiSpeed := DefaultSpiSpeed
	if c.SpiSpeed != "" {
		if err = spiSpeed.Set(c.SpiSpeed); err != nil {
			return errors.Annotate(err, "SPI speed parse")
		}
	}
	var spiConn spi.Conn
	spiConn, err = spiPort.Connect(spiSpeed, spi.Mode(c.SpiMode), 8)
	if err != nil {
		return errors.Annotate(err, "SPI Connect")
	}
	h.spiTx = spiConn.Tx

	if c.NotifyPinName == "" {
		return nil
	}
	var notifyLine uint64
	notifyLine, err = strconv.ParseUint(c.NotifyPinName, 10, 16)
	if err != nil {
		return errors.Annotate(err, "notify pin must be line number")
	}
	h.gpioChip, err = gpio.Open(c.NotifyPinChip, "cabinet-hmi")
	if err != nil {
		return errors.Annotatef(err, "notify pin open chip=%s", c.NotifyPinChip)
	}
	h.notifier, err = h.gpioChip.GetLineEvent(uint32(notifyLine), 0,
		gpio.GPIOEVENT_REQUEST_RISING_EDGE, "cabinet-hmi-irq")
	if err != nil {
		return errors.Annotate(err, "gpio.GetLineEvent")
	}
	return nil
}

func (h *hardware) Close() error {
	closers := make([]io.Closer, 0, 3)
	if h.spiPort != nil {
		closers = append(closers, h.spiPort)
	}
	if h.notifier != nil {
		closers = append(closers, h.notifier)
	}
	if h.gpioChip != nil {
		closers = append(closers, h.gpioChip)
	}
	errs := make([]error, len(closers))
	for i, c := range closers {
		errs[i] = c.Close()
	}
	return helpers.FoldErrors(errs)
}
