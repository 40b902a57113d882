// Cabinet service: control loop on real hardware until signal.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/temoto/cabinet-hmi/cmd/hmi/subcmd"
	"github.com/temoto/cabinet-hmi/internal/state"
)

var Mod = subcmd.Mod{Name: "run", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	g.Log.Debugf("config=%s", g.Config.String())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		g.Log.Infof("signal=%v stopping", s)
		subcmd.SdNotify(daemon.SdNotifyStopping)
		g.Stop()
	}()

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Debugf("hmi init complete")
	g.Run()
	return nil
}
