package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/duochat/internal/config"
	"github.com/matheus3301/duochat/internal/daemon"
	"github.com/matheus3301/duochat/internal/session"
	"go.uber.org/fx"
)

func main() {
	dataDirFlag := flag.String("data-dir", "", "data directory (overrides config)")
	socketFlag := flag.String("socket", "", "unix socket path (overrides config)")
	listenFlag := flag.String("listen", "", "additional TCP address to serve, e.g. 127.0.0.1:7400")
	quietFlag := flag.Bool("quiet", false, "log to file only")
	flag.Parse()

	config.LoadEnv()
	cfg := config.LoadOrDefault(session.ConfigPath())
	cfg.ApplyEnv()

	if *dataDirFlag != "" {
		cfg.Store.DataDir = *dataDirFlag
	}
	if *socketFlag != "" {
		cfg.Store.Socket = *socketFlag
	}
	if *listenFlag != "" {
		cfg.Store.Listen = *listenFlag
	}

	p := daemon.Params{
		DataDir:    session.DataDir(cfg),
		SocketPath: session.DaemonSocket(cfg),
		Listen:     cfg.Store.Listen,
		Console:    !*quietFlag,
	}
	if err := os.MkdirAll(p.DataDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(p),
	)

	app.Run()
}
