package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/duochat/internal/client"
	"github.com/matheus3301/duochat/internal/config"
	"github.com/matheus3301/duochat/internal/logging"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
	"github.com/matheus3301/duochat/internal/tui"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "local profile (overrides config default)")
	addressFlag := flag.String("address", "", "duochatd address: socket path or host:port")
	flag.Parse()

	config.LoadEnv()
	cfg := config.LoadOrDefault(session.ConfigPath())
	cfg.ApplyEnv()
	if *addressFlag != "" {
		cfg.Store.Address = *addressFlag
	}

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateProfile(profile); err != nil {
		fatal(err)
	}
	if err := session.EnsureDir(profile); err != nil {
		fatal(err)
	}

	// Console output would draw over the UI.
	logger, err := logging.New(logging.Options{
		Path:      session.LogPath("duochat-" + profile),
		Component: "duochat",
	})
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	target := session.StoreTarget(cfg)
	if !probeDaemon(target) {
		// Only the local socket can be brought up from here.
		if cfg.Store.Address != "" {
			fatal(fmt.Errorf("duochatd not reachable at %s", target))
		}
		fmt.Fprintf(os.Stderr, "duochatd not running, starting...\n")
		if err := startDaemon(target); err != nil {
			fatal(fmt.Errorf("failed to start duochatd: %w", err))
		}
		if !waitForDaemon(target, 10*time.Second) {
			fatal(fmt.Errorf("duochatd did not become ready"))
		}
	}

	opts := client.OptionsFromConfig(cfg, profile)
	opts.Logger = logger
	c, err := client.New(opts)
	if err != nil {
		fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		fatal(err)
	}
	logger.Info("client started", zap.String("profile", profile), zap.String("target", target))

	runErr := tui.NewApp(c, profile, logger).Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		logger.Warn("close client", zap.Error(err))
	}
	if runErr != nil {
		fatal(runErr)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// probeDaemon checks that duochatd answers a status call, not just that the
// socket exists.
func probeDaemon(target string) bool {
	cc, err := rtdb.Dial(target)
	if err != nil {
		return false
	}
	defer func() { _ = cc.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = rtdb.FetchStatus(ctx, cc)
	return err == nil
}

func startDaemon(socketPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	duochatd := filepath.Join(filepath.Dir(executable), "duochatd")

	if _, err := os.Stat(duochatd); err != nil {
		duochatd = "duochatd"
	}

	cmd := exec.Command(duochatd, "-socket", socketPath, "-quiet")
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(target string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(target) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
