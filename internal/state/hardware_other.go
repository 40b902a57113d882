//go:build !linux
// +build !linux

package state

import (
	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/internal/serial"
	"github.com/temoto/cabinet-hmi/log2"
)

type closerUART interface {
	serial.UART
	Close() error
}

func openTty(path string, baud int, log *log2.Log) (closerUART, error) {
	return nil, errors.NotSupportedf("tty uart on this platform")
}
