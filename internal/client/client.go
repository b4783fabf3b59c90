// Package client assembles a duochat client: the store connection, the
// connectivity signal, the write dispatcher, the session and the three
// synchronizers.
package client

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/chat"
	"github.com/matheus3301/duochat/internal/config"
	"github.com/matheus3301/duochat/internal/outbox"
	"github.com/matheus3301/duochat/internal/presence"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
	"github.com/matheus3301/duochat/internal/status"
	"github.com/matheus3301/duochat/internal/typing"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Options configures a Client.
type Options struct {
	// Target is the duochatd address: a socket path or host:port.
	Target       string
	IdentityPath string
	Verifier     session.Verifier
	Timing       config.Timing
	Clock        clock.Clock
	Logger       *zap.Logger
}

// OptionsFromConfig resolves Options for profile from cfg.
func OptionsFromConfig(cfg *config.Config, profile string) Options {
	return Options{
		Target:       session.StoreTarget(cfg),
		IdentityPath: session.IdentityPath(profile),
		Verifier:     session.StaticVerifier(cfg.Credentials),
		Timing:       cfg.Timing,
	}
}

// Client is one user's view of the shared store.
type Client struct {
	Bus      *bus.Bus
	Conn     *status.Machine
	Store    *rtdb.Remote
	Session  *session.Manager
	Presence *presence.Synchronizer
	Typing   *typing.Synchronizer
	Chat     *chat.Synchronizer

	cc         *grpc.ClientConn
	dispatcher *outbox.Dispatcher
	logger     *zap.Logger
	cancel     context.CancelFunc
}

// New dials the store and wires the components. Nothing runs until Start.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cc, err := rtdb.Dial(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("dial store: %w", err)
	}

	b := bus.New()
	machine := status.NewMachine(b)
	store := rtdb.NewRemote(cc, logger.Named("rtdb"))
	dispatcher := outbox.NewDispatcher(machine, b, logger.Named("outbox"))

	c := &Client{
		Bus:        b,
		Conn:       machine,
		Store:      store,
		cc:         cc,
		dispatcher: dispatcher,
		logger:     logger,
	}
	c.Presence = presence.New(store, dispatcher, presence.Options{
		Interval: opts.Timing.Heartbeat.Duration,
		Clock:    opts.Clock,
		Bus:      b,
		Logger:   logger.Named("presence"),
	})
	c.Typing = typing.New(store, dispatcher, typing.Options{
		StopAfter: opts.Timing.TypingStop.Duration,
		Stale:     opts.Timing.TypingStale.Duration,
		Clock:     opts.Clock,
		Bus:       b,
		Logger:    logger.Named("typing"),
	})
	c.Chat = chat.New(store, dispatcher, chat.Options{
		DeliveredAfter: opts.Timing.DeliveredAfter.Duration,
		Gate:           machine,
		Clock:          opts.Clock,
		Bus:            b,
		Logger:         logger.Named("chat"),
	})

	c.Session = session.NewManager(opts.IdentityPath, opts.Verifier, b, logger.Named("session"))
	c.Session.AddHook(c.Presence)
	c.Session.AddHook(c.Typing)
	c.Session.AddHook(c.Chat)
	return c, nil
}

// Start connects, begins mirroring and restores a persisted identity. A
// missing identity is not an error; check Session.Current.
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	events, unsubscribe := c.Bus.Subscribe(bus.ConnChanged, 8)
	go c.followConn(ctx, events, unsubscribe)
	go c.Conn.Watch(ctx, c.cc)
	c.dispatcher.Start(ctx)
	for _, start := range []func(context.Context) error{c.Presence.Start, c.Typing.Start, c.Chat.Start} {
		if err := start(ctx); err != nil {
			c.cancel()
			return err
		}
	}

	if id, err := c.Session.Restore(); err == nil {
		c.logger.Info("session restored", zap.String("user", id.Name))
	}
	return nil
}

// followConn refreshes presence and re-runs the status scans when the store
// comes back.
func (c *Client) followConn(ctx context.Context, events <-chan bus.Event, unsubscribe func()) {
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			change, ok := evt.Payload.(status.StatusChange)
			if !ok {
				continue
			}
			c.logger.Info("connectivity changed", zap.String("from", string(change.From)), zap.String("to", string(change.To)))
			if change.To == status.Online {
				c.Presence.Refresh()
				c.Chat.Rescan()
			}
		}
	}
}

// Login verifies and activates an identity.
func (c *Client) Login(name, passcode string) (session.Identity, error) {
	return c.Session.Login(name, passcode)
}

// Logout marks the user offline and forgets the identity.
func (c *Client) Logout() error {
	return c.Session.Logout()
}

// Send clears the typing flag and sends text.
func (c *Client) Send(text string) error {
	c.Typing.Sent()
	return c.Chat.Send(text)
}

// Close detaches the session, keeping the identity on disk, and gives the
// final writes until ctx expires.
func (c *Client) Close(ctx context.Context) error {
	c.Session.Shutdown()
	c.dispatcher.Stop(ctx)
	if c.cancel != nil {
		c.cancel()
	}
	return c.cc.Close()
}
