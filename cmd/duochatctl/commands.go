package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/duochat/internal/chat"
	"github.com/matheus3301/duochat/internal/presence"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show duochatd status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := resolve()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		cc, err := rtdb.Dial(e.target())
		if err != nil {
			return err
		}
		defer func() { _ = cc.Close() }()
		st, err := rtdb.FetchStatus(ctx, cc)
		if err != nil {
			return fmt.Errorf("cannot reach duochatd at %s: %w", e.target(), err)
		}
		if flagJSON {
			outputJSON(st)
			return nil
		}
		fmt.Printf("Address:     %s\n", e.target())
		fmt.Printf("Uptime:      %vms\n", st["uptime_ms"])
		fmt.Printf("Records:     %v\n", st["records"])
		fmt.Printf("Persistent:  %v\n", st["persistent"])
		fmt.Printf("Subscribers: %v\n", st["subscribers"])
		if collections, ok := st["collections"].(map[string]any); ok {
			names := make([]string, 0, len(collections))
			for name := range collections {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-10s %v\n", name, collections[name])
			}
		}
		return nil
	},
}

var loginPasscode string

var loginCmd = &cobra.Command{
	Use:   "login <name>",
	Short: "Log in and remember the identity for this profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolve()
		if err != nil {
			return err
		}
		passcode := loginPasscode
		if passcode == "" {
			fmt.Fprint(os.Stderr, "Passcode: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return err
			}
			passcode = strings.TrimRight(line, "\r\n")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()
		c, err := e.connect(ctx)
		if err != nil {
			return err
		}
		defer disconnect(c)

		id, err := c.Login(args[0], passcode)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (profile %s)\n", id.Name, e.profile)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Mark the user offline and forget the identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := resolve()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()
		c, err := e.connect(ctx)
		if err != nil {
			return err
		}
		defer disconnect(c)

		if err := c.Logout(); err != nil {
			if errors.Is(err, session.ErrNoIdentity) {
				return errors.New("not logged in")
			}
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the remembered identity",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		e, err := resolve()
		if err != nil {
			return err
		}
		// No hooks: reading the identity must not touch presence.
		id, err := session.NewManager(session.IdentityPath(e.profile), nil, nil, zap.NewNop()).Restore()
		if err != nil {
			return errors.New("not logged in")
		}
		if flagJSON {
			outputJSON(id)
			return nil
		}
		fmt.Println(id.Name)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Send a message as the remembered identity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolve()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()
		c, err := e.connect(ctx)
		if err != nil {
			return err
		}
		defer disconnect(c)

		if _, err := requireIdentity(c); err != nil {
			return err
		}
		return c.Send(strings.Join(args, " "))
	},
}

var messagesLimit int

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List the thread without marking anything read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		snap, err := readPath(cmd.Context(), chat.Collection)
		if err != nil {
			return err
		}
		msgs := chat.Thread(snap)
		if messagesLimit > 0 && len(msgs) > messagesLimit {
			msgs = msgs[len(msgs)-messagesLimit:]
		}
		if flagJSON {
			outputJSON(msgs)
			return nil
		}
		if len(msgs) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, m := range msgs {
			fmt.Println(formatMessage(m))
		}
		return nil
	},
}

func formatMessage(m chat.Message) string {
	var flags []string
	if m.Edited && !m.Deleted {
		flags = append(flags, "edited")
	}
	flags = append(flags, string(m.Status))
	return fmt.Sprintf("%s  %s  %-10s %s  (%s)",
		m.ID, m.Created().Local().Format("15:04"), m.Sender+":", m.Text, strings.Join(flags, ", "))
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List presence records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := resolve()
		if err != nil {
			return err
		}
		snap, err := readPath(cmd.Context(), presence.Collection)
		if err != nil {
			return err
		}
		var users []presence.Record
		for _, name := range snap.Children() {
			var r presence.Record
			if err := snap.Child(name).Decode(&r); err != nil {
				continue
			}
			if r.Name == "" {
				r.Name = name
			}
			users = append(users, r)
		}
		if flagJSON {
			outputJSON(users)
			return nil
		}
		now := time.Now()
		for _, r := range users {
			state := "offline"
			if r.Live(now, e.cfg.Timing.Heartbeat.Duration) {
				state = "online"
			} else if r.IsOnline {
				state = "stale"
			}
			fmt.Printf("%-12s %-8s last seen %s\n", r.Name, state, r.LastSeenTime().Local().Format(time.DateTime))
		}
		return nil
	},
}

var unsendCmd = &cobra.Command{
	Use:   "unsend <id>",
	Short: "Replace one of your messages with the deleted placeholder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ownMessage(cmd, args[0], func(s *chat.Synchronizer) error {
			return s.Unsend(args[0])
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <text>...",
	Short: "Replace the text of one of your messages",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ownMessage(cmd, args[0], func(s *chat.Synchronizer) error {
			return s.Edit(args[0], strings.Join(args[1:], " "))
		})
	},
}

// ownMessage runs fn after checking the remembered identity sent id.
func ownMessage(cmd *cobra.Command, id string, fn func(*chat.Synchronizer) error) error {
	e, err := resolve()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()
	c, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(c)

	self, err := requireIdentity(c)
	if err != nil {
		return err
	}
	m, ok := c.Chat.Get(id)
	if !ok {
		return chat.ErrUnknownMessage
	}
	if !m.Mine(self.Name) {
		return fmt.Errorf("message %s was sent by %s", id, m.Sender)
	}
	return fn(c.Chat)
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Stream snapshots of a store path as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := resolve()
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cc, err := rtdb.Dial(e.target())
		if err != nil {
			return err
		}
		defer func() { _ = cc.Close() }()
		snaps, err := rtdb.NewRemote(cc, nil).Subscribe(ctx, path)
		if err != nil {
			return err
		}
		for snap := range snaps {
			outputJSON(map[string]any{"path": snap.Path, "value": snap.Value})
		}
		return nil
	},
}

// readPath fetches one snapshot without starting a client, so nothing is
// marked read or delivered.
func readPath(ctx context.Context, path string) (rtdb.Snapshot, error) {
	e, err := resolve()
	if err != nil {
		return rtdb.Snapshot{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()
	cc, err := rtdb.Dial(e.target())
	if err != nil {
		return rtdb.Snapshot{}, err
	}
	defer func() { _ = cc.Close() }()
	return rtdb.NewRemote(cc, nil).Get(ctx, path)
}

func init() {
	loginCmd.Flags().StringVar(&loginPasscode, "passcode", "", "passcode (prompted when empty)")
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 0, "show only the last n messages")
}
