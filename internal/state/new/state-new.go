// Sorry, workaround to import cycles.
package state_new

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/temoto/alive/v2"
	"github.com/temoto/cabinet-hmi/internal/clock"
	"github.com/temoto/cabinet-hmi/internal/state"
	"github.com/temoto/cabinet-hmi/log2"
)

func NewContext(log *log2.Log) (context.Context, *state.Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &state.Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, state.ContextKey, g)

	return ctx, g
}

// NewTestContext runs Init on simulated hardware: mock bus with 8279 model,
// software RTC in temporary dir, fake clock.
func NewTestContext(t testing.TB, confString string) (context.Context, *state.Global) {
	fs := state.NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	var log *log2.Log
	if os.Getenv("hmi_test_log_stderr") == "1" {
		log = log2.NewStderr(log2.LDebug) // useful with panics
	} else {
		log = log2.NewTest(t, log2.LDebug)
	}
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log)
	g.BuildVersion = "test"
	g.Clock = clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	cfg := state.MustReadConfig(log, fs, "test-inline")
	if cfg.Hardware.Bus.Driver == "" {
		cfg.Hardware.Bus.Driver = state.BusDriverMock
	}
	if cfg.Hardware.Rtc.Driver == "" {
		cfg.Hardware.Rtc.Driver = state.RtcDriverSoft
	}
	if cfg.Persist.Root == "" {
		cfg.Persist.Root = t.TempDir()
	}
	g.MustInit(ctx, cfg)
	return ctx, g
}
