// ABOUTME: Entry point for the neora terminal client
// ABOUTME: Wires transport, stream channel, session, cache, and coordinator

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/lmajedshbeir/neora-client/internal/api"
	"github.com/lmajedshbeir/neora-client/internal/chat"
	"github.com/lmajedshbeir/neora-client/internal/config"
	"github.com/lmajedshbeir/neora-client/internal/history"
	"github.com/lmajedshbeir/neora-client/internal/session"
	"github.com/lmajedshbeir/neora-client/internal/stream"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _ __   ___  ___  _ __ __ _
 | '_ \ / _ \/ _ \| '__/ _' |
 | | | |  __/ (_) | | | (_| |
 |_| |_|\___|\___/|_|  \__,_|
`

// getConfigPath returns the path to the client config file.
// Priority: NEORA_CONFIG env var > XDG_CONFIG_HOME/neora/client.yaml > ~/.config/neora/client.yaml
func getConfigPath() string {
	if envPath := os.Getenv("NEORA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "client.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "neora", "client.yaml")
}

func main() {
	configPath := flag.String("config", "", "Config file path (default: "+getConfigPath()+")")
	apiURL := flag.String("api", "", "API base URL (overrides config)")
	streamURL := flag.String("ws", "", "Stream websocket URL (overrides config)")
	launch := flag.String("launch", "", "Launch query parameters, e.g. \"message=verified\"")
	flag.Parse()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *apiURL, *streamURL, *launch); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath, apiURL, streamURL, launch string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.Server.APIBaseURL = apiURL
	}
	if streamURL != "" {
		cfg.Server.StreamURL = streamURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	launchQuery, err := url.ParseQuery(launch)
	if err != nil {
		return fmt.Errorf("parsing launch query: %w", err)
	}

	sess := session.New(cfg.Session.Path, logger)
	if err := sess.Rehydrate(launchQuery); err != nil {
		logger.Warn("session rehydrate failed", "error", err)
	}

	client, err := api.New(cfg.Server.APIBaseURL, nil, logger)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	var cache *history.Cache
	if cfg.History.Path != "" {
		cache, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			logger.Warn("history cache unavailable", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	rend := newRenderer()

	// The coordinator and the channel reference each other; the closures
	// below resolve after both exist.
	var coord *chat.Coordinator

	channel := stream.New(stream.Options{
		URL:            cfg.Server.StreamURL,
		HTTPClient:     client.HTTPClient(),
		Token:          client.StreamToken,
		Authenticated:  sess.Authenticated,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		Logger:         logger,
		OnOpen: func() {
			logger.Debug("stream connected")
		},
		OnEvent: func(ev stream.Event) {
			coord.HandleEvent(ev)
		},
		OnAuthError: func() {
			sess.Clear()
			rend.Notice("Session expired. Use /login to sign in again.")
		},
	})

	var coordCfg chat.Config
	coordCfg.ResponseTimeout = cfg.Chat.ResponseTimeout
	coordCfg.MinDisplayTarget = cfg.Chat.MinDisplayTarget
	coordCfg.MinDisplayFloor = cfg.Chat.MinDisplayFloor
	coordCfg.HistoryLimit = cfg.Chat.HistoryLimit
	coordCfg.Language = sess.LanguageName
	coordCfg.StreamOpen = channel.Open
	coordCfg.Logger = logger
	coordCfg.OnChange = rend.Apply
	if cache != nil {
		coordCfg.History = cache
	}
	coord = chat.NewCoordinator(&apiMessenger{client: client}, coordCfg)
	go coord.Run(ctx)

	client.SetSignOutHook(func() {
		sess.Clear()
		channel.Disconnect()
		rend.Notice("Signed out: your session could not be renewed.")
	})

	if sess.Authenticated() {
		if cache != nil {
			if cached, err := cache.Load(ctx); err == nil && len(cached) > 0 {
				coord.Seed(cached)
				rend.Transcript(cached)
			}
		}
		coord.SetUser(sess.UserID())
		channel.Connect()
	}

	defer channel.Disconnect()

	repl := &repl{
		cfg:     cfg,
		client:  client,
		sess:    sess,
		coord:   coord,
		channel: channel,
		rend:    rend,
		logger:  logger,
	}
	return repl.run(ctx)
}

// loadConfig reads the config file when present and falls back to defaults
// so the client can run from flags alone.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = getConfigPath()
		if _, err := os.Stat(path); err != nil {
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes. Logs
// go to stderr so they do not interleave with the transcript on stdout.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
