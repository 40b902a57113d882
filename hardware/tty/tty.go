//go:build linux
// +build linux

// Package tty is Linux serial port with 8256-compatible status bits,
// used when echo terminal is attached to host UART instead of MUART.
package tty

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/hardware/muart"
	"github.com/temoto/cabinet-hmi/log2"
	"golang.org/x/sys/unix"
)

const DefaultBaud = 9600

const drainPoll = time.Millisecond

var bauds = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

type Port struct {
	Log  *log2.Log
	fd   int
	path string
	mu   sync.Mutex
}

func Open(path string, baud int, log *log2.Log) (*Port, error) {
	speed, err := baudFlag(baud)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, errors.Annotatef(err, "tty open %s", path)
	}
	t := rawTermios(speed)
	if err = unix.IoctlSetTermios(fd, unix.TCSETSF, &t); err != nil {
		unix.Close(fd)
		return nil, errors.Annotatef(err, "tty termios %s", path)
	}
	log.Debugf("tty %s baud=%d", path, baud)
	return &Port{Log: log, fd: fd, path: path}, nil
}

func (self *Port) Close() error { return unix.Close(self.fd) }

// Status maps kernel queue lengths to muart status bits.
func (self *Port) Status() (byte, error) {
	inq, err := unix.IoctlGetInt(self.fd, unix.TIOCINQ)
	if err != nil {
		return 0, errors.Annotate(err, "TIOCINQ")
	}
	outq, err := unix.IoctlGetInt(self.fd, unix.TIOCOUTQ)
	if err != nil {
		return 0, errors.Annotate(err, "TIOCOUTQ")
	}
	return statusBits(inq, outq), nil
}

func (self *Port) ReceiveReady() (bool, error) {
	s, err := self.Status()
	return s&muart.StatusRBF != 0, err
}

func (self *Port) ReadByte() (byte, error) {
	var buf [1]byte
	n, err := unix.Read(self.fd, buf[:])
	if err != nil {
		return 0, errors.Annotatef(err, "tty read %s", self.path)
	}
	if n != 1 {
		return 0, errors.Errorf("tty read %s n=%d", self.path, n)
	}
	return buf[0], nil
}

// WriteByte waits for output queue to drain, like MUART TBE poll.
func (self *Port) WriteByte(b byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	for {
		s, err := self.Status()
		if err != nil {
			return err
		}
		if s&muart.StatusTBE != 0 {
			break
		}
		time.Sleep(drainPoll)
	}
	_, err := unix.Write(self.fd, []byte{b})
	return errors.Annotatef(err, "tty write %s", self.path)
}

func statusBits(inq, outq int) byte {
	var s byte
	if inq > 0 {
		s |= muart.StatusRBF
	}
	if outq == 0 {
		s |= muart.StatusTBE | muart.StatusTRE
	}
	return s
}

func baudFlag(baud int) (uint32, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	if f, ok := bauds[baud]; ok {
		return f, nil
	}
	return 0, errors.NotSupportedf("tty baud=%d", baud)
}

func rawTermios(speed uint32) unix.Termios {
	t := unix.Termios{
		Cflag:  unix.CS8 | unix.CREAD | unix.CLOCAL | speed,
		Ispeed: speed,
		Ospeed: speed,
	}
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return t
}
