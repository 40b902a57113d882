package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/temoto/cabinet-hmi/crc"
	"github.com/temoto/cabinet-hmi/log2"
	gpio "github.com/temoto/gpio-cdev-go"
	gpio_mock "github.com/temoto/gpio-cdev-go/mock"
)

// fakeBridge emulates bridge controller with flat port memory.
type fakeBridge struct {
	sync.Mutex
	mem      [256]byte
	requests int
	corrupt  int // number of next responses to damage
	status   Status
}

func (f *fakeBridge) Tx(send, recv []byte) error {
	f.Lock()
	defer f.Unlock()
	if len(send) != frameLength {
		return fmt.Errorf("frame length=%d", len(send))
	}
	f.requests++
	op, port, value := Op(send[0]), send[1], send[2]
	status := f.status
	if crc.CRC8_p93_n(0, send[:3]) != send[3] {
		status = StatusCRC
	}
	var out byte
	if status == StatusOk {
		switch op {
		case OpOut:
			f.mem[port] = value
		case OpIn:
			out = f.mem[port]
		default:
			status = StatusUnknown
		}
	}
	for i := range recv {
		recv[i] = 0
	}
	r := recv[requestLength+1:]
	r[0], r[1] = byte(status), out
	r[2] = crc.CRC8_p93_n(0, r[:2])
	if f.corrupt > 0 {
		f.corrupt--
		r[2] ^= 0xff
	}
	return nil
}

func testBridge(t testing.TB, fake *fakeBridge, notifier gpio.Eventer) *Bridge {
	c := &Config{testhw: &hardware{spiTx: fake.Tx, notifier: notifier}}
	b, err := NewBridge(c, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	return b
}

func TestBridgeOutIn(t *testing.T) {
	t.Parallel()
	fake := &fakeBridge{}
	b := testBridge(t, fake, nil)
	defer b.Close()

	require.NoError(t, b.Out(0x50, 0x42))
	assert.Equal(t, byte(0x42), fake.mem[0x50])
	fake.mem[0x6f] = 0x20
	v, err := b.In(0x6f)
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), v)
	assert.Equal(t, uint32(2), b.Stat().Request)
}

func TestBridgeRetry(t *testing.T) {
	t.Parallel()
	type Case struct {
		name    string
		corrupt int
		status  Status
		expect  string
	}
	cases := []Case{
		{"once", 1, StatusOk, ""},
		{"twice", 2, StatusOk, ""},
		{"always", txTries, StatusOk, "crc"},
		{"busy", 0, StatusBusy, ErrBusy.Error()},
		{"unknown", 0, StatusUnknown, "status=03"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			fake := &fakeBridge{corrupt: c.corrupt, status: c.status}
			fake.mem[1] = 0x99
			b := testBridge(t, fake, nil)
			defer b.Close()
			v, err := b.In(1)
			if c.expect == "" {
				require.NoError(t, err)
				assert.Equal(t, byte(0x99), v)
				assert.Equal(t, c.corrupt+1, fake.requests)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expect)
			}
		})
	}
}

func TestBridgeSpiError(t *testing.T) {
	t.Parallel()
	c := &Config{testhw: &hardware{spiTx: func(send, recv []byte) error { return errors.New("spi fail") }}}
	b, err := NewBridge(c, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	defer b.Close()
	err = b.Out(1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spi fail")
	assert.Equal(t, uint32(1), b.Stat().Error)
}

func TestBridgeIRQ(t *testing.T) {
	t.Parallel()
	notifyMock := &gpio_mock.MockEvent{}
	notifyMock.On("Close").Return(nil)
	notifyMock.On("Wait", mock.AnythingOfType("time.Duration")).
		Return(gpio.EventData{ID: gpio.GPIOEVENT_EVENT_RISING_EDGE}, nil).Once()
	notifyMock.On("Wait", mock.AnythingOfType("time.Duration")).
		Return(gpio.EventData{}, gpio.ErrTimeout).After(10 * time.Millisecond)

	b := testBridge(t, &fakeBridge{}, notifyMock)
	select {
	case <-b.IRQ():
	case <-time.After(time.Second):
		t.Fatal("IRQ not delivered")
	}
	require.NoError(t, b.Close())
	assert.Equal(t, uint32(1), b.Stat().IRQ)
	notifyMock.AssertCalled(t, "Close")
}
