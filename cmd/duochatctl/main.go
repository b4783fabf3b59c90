package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/client"
	"github.com/matheus3301/duochat/internal/config"
	"github.com/matheus3301/duochat/internal/session"
	"github.com/spf13/cobra"
)

var (
	flagProfile string
	flagAddress string
	flagJSON    bool
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "duochatctl",
	Short:         "Inspect and drive a duochat store from the shell",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagProfile, "profile", "", "local profile (overrides config default)")
	flags.StringVar(&flagAddress, "address", "", "duochatd address: socket path or host:port")
	flags.BoolVar(&flagJSON, "json", false, "output in JSON format")
	flags.DurationVar(&flagTimeout, "timeout", 10*time.Second, "how long to wait for the store")

	rootCmd.AddCommand(
		statusCmd,
		loginCmd,
		logoutCmd,
		whoamiCmd,
		sendCmd,
		messagesCmd,
		usersCmd,
		unsendCmd,
		editCmd,
		watchCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is the resolved configuration for one invocation.
type env struct {
	cfg     *config.Config
	profile string
}

func resolve() (*env, error) {
	config.LoadEnv()
	cfg := config.LoadOrDefault(session.ConfigPath())
	cfg.ApplyEnv()
	if flagAddress != "" {
		cfg.Store.Address = flagAddress
	}
	profile := session.Resolve(flagProfile)
	if err := session.ValidateProfile(profile); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, profile: profile}, nil
}

func (e *env) target() string {
	return session.StoreTarget(e.cfg)
}

// connect starts a full client and waits until the store is reachable and
// the thread has been mirrored once.
func (e *env) connect(ctx context.Context) (*client.Client, error) {
	if err := session.EnsureDir(e.profile); err != nil {
		return nil, err
	}
	c, err := client.New(client.OptionsFromConfig(e.cfg, e.profile))
	if err != nil {
		return nil, err
	}
	mirrored, unsubscribe := c.Bus.Subscribe(bus.ChatUpdated, 1)
	defer unsubscribe()

	if err := c.Start(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	if err := waitOnline(ctx, c); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	select {
	case <-mirrored:
	case <-ctx.Done():
		_ = c.Close(context.Background())
		return nil, fmt.Errorf("waiting for messages: %w", ctx.Err())
	}
	return c, nil
}

func waitOnline(ctx context.Context, c *client.Client) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !c.Conn.Online() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("store unreachable (%s): %w", c.Conn.Current(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// disconnect lets queued writes finish before returning.
func disconnect(c *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Close(ctx)
}

func requireIdentity(c *client.Client) (session.Identity, error) {
	id, ok := c.Session.Current()
	if !ok {
		return session.Identity{}, errors.New("not logged in; run duochatctl login <name>")
	}
	return id, nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
