package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"presencegofer/internal/chat"
	"presencegofer/internal/config"
	"presencegofer/internal/wsclient"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp returns the commandline application
func newApp() *cli.App {
	return &cli.App{
		Name:                   "presencewatch",
		Usage:                  "Watch and publish friend presence on a PresenceGofer server.",
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				EnvVars: []string{"PRESENCEWATCH_URL"},
				Value:   "ws://localhost:8547/ws",
				Usage:   "Presence server WebSocket URL.",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"PRESENCEWATCH_CONFIG"},
				Usage:   "Config file to read reconnect settings from.",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "watch",
				Usage:     "Print status changes of a friend until interrupted.",
				ArgsUsage: "<friend-id>",
				Action:    watch,
			},
			{
				Name:      "set",
				Usage:     "Publish the presence of a friend.",
				ArgsUsage: "<friend-id> <online|offline>",
				Action:    set,
			},
		},
	}
}

func watch(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return cli.Exit("watch needs exactly one friend id", 2)
	}
	id, err := parseFriendID(cliCtx.Args().Get(0))
	if err != nil {
		return err
	}

	logger := newLogger(cliCtx)
	client, err := connect(cliCtx, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	client.SetStatusHandler(func(s chat.Status) {
		state := "Offline"
		if s.IsOnline {
			state = "Online"
		}
		logger.Info().
			Int64("friendID", int64(s.FriendID)).
			Time("updatedAt", s.UpdatedAt).
			Msg(state)
	})
	client.SetOnReconnected(func() {
		logger.Info().Int64("reconnects", client.Reconnects()).Msg("reconnected")
	})

	ctx, cancel := context.WithTimeout(cliCtx.Context, wsclient.DefaultRebindTimeout)
	rendered, err := client.Bind(ctx, id)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to bind friend %d: %w", id, err)
	}
	logger.Info().Int64("friendID", int64(id)).Msg(rendered)

	ctx, stop := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func set(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 2 {
		return cli.Exit("set needs a friend id and online or offline", 2)
	}
	id, err := parseFriendID(cliCtx.Args().Get(0))
	if err != nil {
		return err
	}

	var online bool
	switch state := cliCtx.Args().Get(1); state {
	case "online":
		online = true
	case "offline":
	default:
		return cli.Exit(fmt.Sprintf("unknown presence %q, want online or offline", state), 2)
	}

	logger := newLogger(cliCtx)
	client, err := connect(cliCtx, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cliCtx.Context, wsclient.DefaultRebindTimeout)
	defer cancel()
	if err := client.SetPresence(ctx, id, online); err != nil {
		return fmt.Errorf("failed to publish presence: %w", err)
	}
	logger.Info().Int64("friendID", int64(id)).Bool("online", online).Msg("presence published")
	return nil
}

func parseFriendID(s string) (chat.FriendID, error) {
	var id int64
	if _, err := fmt.Sscan(s, &id); err != nil {
		return 0, cli.Exit(fmt.Sprintf("invalid friend id %q", s), 2)
	}
	return chat.FriendID(id), nil
}

func newLogger(cliCtx *cli.Context) zerolog.Logger {
	level := zerolog.InfoLevel
	if cliCtx.Bool("debug") {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func connect(cliCtx *cli.Context, logger zerolog.Logger) (*wsclient.Client, error) {
	cfg := config.Default()
	if path := cliCtx.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	client := wsclient.New(wsclient.Options{
		URL:             cliCtx.String("url"),
		InitialInterval: cfg.GetReconnectInitialIntervalDuration(),
		MaxInterval:     cfg.GetReconnectMaxIntervalDuration(),
		PingInterval:    wsclient.DefaultPingInterval,
	}, logger)

	ctx, cancel := context.WithTimeout(cliCtx.Context, wsclient.DefaultHandshakeTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
