package state

import (
	"github.com/temoto/cabinet-hmi/hardware/tty"
	"github.com/temoto/cabinet-hmi/log2"
)

func openTty(path string, baud int, log *log2.Log) (*tty.Port, error) {
	if baud == 0 {
		baud = tty.DefaultBaud
	}
	return tty.Open(path, baud, log)
}
