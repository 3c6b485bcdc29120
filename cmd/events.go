package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
)

// EventsCommand creates a CLI command that tails the state events of a
// running server session and writes them to stdout as NDJSON.
//
// Typical usage:
//
//	serp events --session 6f1c...           (session id from the serp_session cookie)
//	serp events --server http://host:8080 | jq -r 'select(.event.kind=="done")'
//
// The command reconnects with exponential backoff when the server is not
// yet available or the connection drops.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Stream search state events (NDJSON) from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server base URL (defaults to http://<listen> from config)",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session id to follow",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Also print the init message carrying the full state",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON instead of raw single-line",
			},
			&cli.BoolFlag{
				Name:  "no-retry",
				Usage: "Do not retry on failures; exit on first connection error",
			},
			&cli.DurationFlag{
				Name:  "initial-backoff",
				Usage: "Initial reconnect backoff",
				Value: 1 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "max-backoff",
				Usage: "Maximum reconnect backoff",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			server := c.String("server")
			if server == "" {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				server = "http://" + cfg.Listen
			}
			wsURL, err := eventsURL(server)
			if err != nil {
				return err
			}

			opts := eventsTailOptions{
				url:            wsURL,
				session:        c.String("session"),
				includeAll:     c.Bool("all"),
				pretty:         c.Bool("pretty"),
				noRetry:        c.Bool("no-retry"),
				initialBackoff: c.Duration("initial-backoff"),
				maxBackoff:     c.Duration("max-backoff"),
				stdout:         os.Stdout,
				stderr:         os.Stderr,
			}
			return tailEvents(ctx, opts)
		},
	}
}

type eventsTailOptions struct {
	url            string
	session        string
	includeAll     bool
	pretty         bool
	noRetry        bool
	initialBackoff time.Duration
	maxBackoff     time.Duration
	stdout         io.Writer
	stderr         io.Writer
}

// eventsURL turns a server base URL into its websocket events URL.
func eventsURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path += "/api/search/events"
	return u.String(), nil
}

func tailEvents(ctx context.Context, opts eventsTailOptions) error {
	if opts.initialBackoff <= 0 {
		opts.initialBackoff = time.Second
	}
	if opts.maxBackoff < opts.initialBackoff {
		opts.maxBackoff = 30 * time.Second
	}

	header := http.Header{}
	if opts.session != "" {
		header.Set("Cookie", "serp_session="+opts.session)
	}

	_, _ = fmt.Fprintf(opts.stderr, "Events: connecting to %s\n", opts.url)
	backoff := opts.initialBackoff

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.url, header)
		if err != nil {
			if opts.noRetry || ctx.Err() != nil {
				return fmt.Errorf("dial: %w", err)
			}
			_, _ = fmt.Fprintf(opts.stderr, "Events: dial failed (%v), retrying in %s\n", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > opts.maxBackoff {
				backoff = opts.maxBackoff
			}
			continue
		}

		_, _ = fmt.Fprintf(opts.stderr, "Events: connected (backoff reset)\n")
		backoff = opts.initialBackoff

		err = streamStateEvents(ctx, conn, opts)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if opts.noRetry {
			return err
		}
		_, _ = fmt.Fprintf(opts.stderr, "Events: disconnected (%v), reconnecting...\n", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func streamStateEvents(ctx context.Context, conn *websocket.Conn, opts eventsTailOptions) error {
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read error: %w", err)
		}

		if !opts.includeAll {
			var msg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "event" {
				continue
			}
		}

		if opts.pretty {
			var anyJSON any
			if err := json.Unmarshal(data, &anyJSON); err == nil {
				if b, err := json.MarshalIndent(anyJSON, "", "  "); err == nil {
					data = b
				}
			}
		}
		_, _ = fmt.Fprintln(opts.stdout, strings.TrimSpace(string(data)))
	}
}
