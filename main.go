/*
This is an example of application that will use the
engine package to run the compute testbed
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spaghettifunk/cgpu/engine"
	"github.com/spaghettifunk/cgpu/engine/core"
	"github.com/spaghettifunk/cgpu/engine/gpu/vulkan"
	"github.com/spaghettifunk/cgpu/testbed"
)

func init() {
	// The glfw loader must run on the main OS thread
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "config.toml", "path of the TOML configuration")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("loading configuration: %s", err)
	}

	loader, err := vulkan.LoaderByName(cfg.Instance.Loader)
	if err != nil {
		core.LogFatal(err.Error())
	}

	tb := testbed.NewTestGame(cfg.Testbed)
	e, err := engine.New(cfg, vulkan.New(loader), tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal(err.Error())
	}

	// capture sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogError(runErr.Error())
		stop()
		os.Exit(1)
	}
}
