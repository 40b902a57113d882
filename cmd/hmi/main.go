package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/cabinet-hmi/cmd/hmi/bench"
	"github.com/temoto/cabinet-hmi/cmd/hmi/run"
	"github.com/temoto/cabinet-hmi/cmd/hmi/subcmd"
	"github.com/temoto/cabinet-hmi/internal/state"
	state_new "github.com/temoto/cabinet-hmi/internal/state/new"
	"github.com/temoto/cabinet-hmi/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

var modules = []subcmd.Mod{
	run.Mod,
	bench.Mod,
}

func main() {
	log := log2.NewStderr(log2.LDebug)
	log.SetFlags(log2.LInteractiveFlags)

	flagset := flag.NewFlagSet("hmi", flag.ExitOnError)
	flagConfig := flagset.String("config", "hmi.hcl", "")
	flagset.Usage = func() {
		fmt.Fprintf(flagset.Output(), "Usage: %s [options] command\nCommands: %s\nOptions:\n", os.Args[0], subcmd.Names(modules))
		flagset.PrintDefaults()
	}
	if err := flagset.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	mod, err := subcmd.Parse(flagset.Arg(0), modules)
	if err != nil {
		flagset.Usage()
		log.Fatal(err)
	}

	if mod.Name == run.Mod.Name && subcmd.SdNotify("start") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	}
	log.Debugf("hmi version=%s command=%s", BuildVersion, mod.Name)

	ctx, g := state_new.NewContext(log)
	g.BuildVersion = BuildVersion
	config := state.MustReadConfig(log, state.NewOsFullReader("."), *flagConfig)
	if err := mod.Main(ctx, config); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
