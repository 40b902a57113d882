//go:build linux
// +build linux

package tty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/temoto/cabinet-hmi/hardware/muart"
)

func TestStatusBits(t *testing.T) {
	t.Parallel()
	type Case struct {
		inq, outq int
		expect    byte
	}
	cases := []Case{
		{0, 0, muart.StatusTBE | muart.StatusTRE},
		{1, 0, muart.StatusRBF | muart.StatusTBE | muart.StatusTRE},
		{0, 5, 0},
		{3, 5, muart.StatusRBF},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, statusBits(c.inq, c.outq), "inq=%d outq=%d", c.inq, c.outq)
	}
}

func TestBaudFlag(t *testing.T) {
	t.Parallel()
	f, err := baudFlag(0)
	assert.NoError(t, err)
	assert.Equal(t, bauds[DefaultBaud], f)
	_, err = baudFlag(31337)
	assert.Error(t, err)
}
