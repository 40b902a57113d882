package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/cabinet-hmi/hardware/bus"
	"github.com/temoto/cabinet-hmi/hardware/kdc"
	"github.com/temoto/cabinet-hmi/log2"
)

func testScanner(t testing.TB) (*Scanner, *kdc.Sim, *bus.Mock) {
	m := bus.NewMock()
	sim := kdc.NewSim(m, kdc.DefaultPortData, kdc.DefaultPortCmd)
	log := log2.NewTest(t, log2.LDebug)
	dev := kdc.New(m, kdc.DefaultPortData, kdc.DefaultPortCmd, log)
	return New(dev, log), sim, m
}

func TestButtonRead(t *testing.T) {
	t.Parallel()
	type Case struct {
		snap   Snapshot
		button Button
		expect bool
	}
	cases := []Case{
		{Snapshot{}, Button{0, 0, false}, false},
		{Snapshot{}, Button{0, 0, true}, true},
		{Snapshot{0x01}, Button{0, 0, false}, true},
		{Snapshot{0x01}, Button{0, 0, true}, false},
		{Snapshot{0, 0x80}, Button{1, 7, false}, true},
		{Snapshot{0, 0x7f}, Button{1, 7, false}, false},
		{Snapshot{7: 0x04}, Button{7, 2, false}, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, c.button.Read(c.snap), "snap=%s button=%s", c.snap, c.button)
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	s, sim, _ := testScanner(t)
	sim.SetSensor(1, 0x10)
	sim.Press(0, 2)
	require.NoError(t, s.Refresh())
	assert.Equal(t, Snapshot{0x04, 0x10}, s.Snapshot())
	assert.True(t, s.Read(Button{Row: 0, Column: 2}))
	assert.False(t, s.Read(Button{Row: 0, Column: 1}))
	assert.Equal(t, uint32(1), s.Refreshes())
}

func TestPoll(t *testing.T) {
	t.Parallel()
	s, sim, _ := testScanner(t)
	sim.Press(0, 2)
	require.NoError(t, s.Refresh())
	sim.Release(0, 2)
	require.NoError(t, s.Refresh())
	assert.Equal(t, Snapshot{0x04}, s.Snapshot(), "no end interrupt, sensor RAM locked")

	require.NoError(t, s.Poll())
	assert.Equal(t, 1, sim.EndInterrupts())
	require.NoError(t, s.Poll())
	assert.Equal(t, Snapshot{}, s.Snapshot())
	sim.Press(5, 0)
	require.NoError(t, s.Poll())
	assert.Equal(t, Snapshot{5: 0x01}, s.Snapshot())
	assert.Equal(t, 3, sim.EndInterrupts())
	assert.False(t, sim.Locked())
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	t.Parallel()
	m := bus.NewMock()
	log := log2.NewTest(t, log2.LDebug)
	s := New(kdc.New(m, kdc.DefaultPortData, kdc.DefaultPortCmd, log), log)
	s.SetOverride(3, 3, true)
	assert.Error(t, s.Refresh())
	assert.Equal(t, Snapshot{3: 0x08}, s.Snapshot())
}

func TestOverride(t *testing.T) {
	t.Parallel()
	s, sim, _ := testScanner(t)
	sim.Press(0, 1)
	require.NoError(t, s.Refresh())
	s.SetOverride(0, 0, true)
	assert.Equal(t, byte(0x03), s.Snapshot()[0])
	require.NoError(t, s.Refresh())
	assert.Equal(t, byte(0x03), s.Snapshot()[0], "override survives refresh")
	s.SetOverride(0, 0, false)
	assert.Equal(t, byte(0x02), s.Snapshot()[0])
	s.SetOverride(9, 0, true)
	assert.Equal(t, byte(0x02), s.Snapshot()[0])
}

func TestRun(t *testing.T) {
	t.Parallel()
	s, sim, m := testScanner(t)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.Run(m.IRQ(), stop)
		close(done)
	}()

	sim.Press(2, 5)
	m.FireIRQ()
	require.Eventually(t, func() bool { return sim.EndInterrupts() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Snapshot{2: 0x20}, s.Snapshot())

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
