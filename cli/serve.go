package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/dispenser/adapter"
	"github.com/justapithecus/dispenser/adapter/redis"
	"github.com/justapithecus/dispenser/adapter/webhook"
	"github.com/justapithecus/dispenser/assign"
	"github.com/justapithecus/dispenser/config"
	"github.com/justapithecus/dispenser/dispatch"
	"github.com/justapithecus/dispenser/liveness"
	"github.com/justapithecus/dispenser/log"
	"github.com/justapithecus/dispenser/metrics"
	"github.com/justapithecus/dispenser/tui"
	"github.com/justapithecus/dispenser/types"
)

// dispatcher is the subset of Immediate[string]/Batching[string] the CLI
// needs; it lets ServeCommand build either discipline behind one
// interface instead of duplicating the ingestion loop per kind.
type dispatcher interface {
	Append(events []types.Event) int
	Ask(sub string, n int)
	Unsubscribe(sub string) error
	Stats() dispatch.Stats
	Shutdown()
}

// ingestLine is one line of newline-delimited JSON read from stdin.
// Exactly one of Event or Demand is meaningful per line: a line with
// "event" appends that event to the buffer; a line with "demand" records
// that many units of demand for "subscriber".
type ingestLine struct {
	Subscriber string `json:"subscriber"`
	Event      any    `json:"event,omitempty"`
	Demand     int    `json:"demand,omitempty"`
}

// ServeCommand starts a dispatcher from a dispenser.yaml config and feeds
// it newline-delimited JSON records read from stdin until interrupted.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run a dispatcher, ingesting events/demand from stdin",
		Flags:  []cli.Flag{ConfigFlag, NameFlag, TUIFlag},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("load config: %v", err), 1)
	}

	name := c.String("name")
	logger := log.NewLogger(log.Identity{Name: name, Kind: cfg.Dispatcher.Kind})
	collector := metrics.NewCollector(name, cfg.Dispatcher.Kind)

	publisher, err := buildPublisher(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("build adapter: %v", err), 1)
	}
	async := adapter.NewAsync(publisher, 4, 256, logger)
	defer func() { _ = async.Close() }()

	d, err := buildDispatcher(cfg, name, logger, collector, async.DeliveryFunc())
	if err != nil {
		return cli.Exit(fmt.Sprintf("build dispatcher: %v", err), 1)
	}
	defer d.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- ingest(ctx, os.Stdin, d, logger) }()

	if c.Bool("tui") {
		go func() {
			if err := tui.Run(name, d.Stats, 0); err != nil {
				logger.Warn("tui exited", map[string]any{"error": err.Error()})
			}
			cancel()
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-done:
		if err != nil {
			return cli.Exit(fmt.Sprintf("ingest: %v", err), 1)
		}
	}

	return nil
}

func ingest(ctx context.Context, r io.Reader, d dispatcher, logger *log.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in ingestLine
		if err := json.Unmarshal(line, &in); err != nil {
			logger.Warn("skipping malformed line", map[string]any{"error": err.Error()})
			continue
		}
		if in.Demand > 0 {
			d.Ask(in.Subscriber, in.Demand)
			continue
		}
		dropped := d.Append([]types.Event{in.Event})
		if dropped > 0 {
			logger.Warn("events dropped on overflow", map[string]any{"dropped": dropped})
		}
	}
	return scanner.Err()
}

func buildPublisher(cfg config.AdapterConfig) (adapter.Publisher, error) {
	retries := webhook.DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "", "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter.type %q", cfg.Type)
	}
}

// newWatcherFactory builds the liveness mechanism matching the delivery
// adapter: a Redis deployment gets TTL-heartbeat liveness for free off
// the same connection string; anything else falls back to a manual
// watcher, since this CLI has no other liveness signal of its own.
func newWatcherFactory(cfg config.AdapterConfig) (func(onDown func(sub string, token liveness.Token)) liveness.Watcher[string], error) {
	if cfg.Type != "redis" {
		return func(onDown func(sub string, token liveness.Token)) liveness.Watcher[string] {
			return liveness.NewManualWatcher(onDown)
		}, nil
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for liveness watcher: %w", err)
	}
	client := goredis.NewClient(opts)

	return func(onDown func(sub string, token liveness.Token)) liveness.Watcher[string] {
		return redis.NewWatcher(client, redis.WatcherConfig{}, onDown)
	}, nil
}

func buildDispatcher(cfg *config.Config, name string, logger *log.Logger, collector *metrics.Collector, deliver dispatch.DeliveryFunc[string]) (dispatcher, error) {
	policyName, err := cfg.PolicyName()
	if err != nil {
		return nil, err
	}
	policy, err := assign.ByName[string](policyName)
	if err != nil {
		return nil, err
	}
	dropStrategy, err := cfg.DropStrategyValue()
	if err != nil {
		return nil, err
	}
	newWatcher, err := newWatcherFactory(cfg.Adapter)
	if err != nil {
		return nil, err
	}

	base := dispatch.Config[string]{
		Capacity:     cfg.Capacity,
		DropStrategy: dropStrategy,
		Policy:       policy,
		NewWatcher:   newWatcher,
		Deliver:      deliver,
		Logger:       logger,
		Metrics:      collector,
	}

	switch cfg.Dispatcher.Kind {
	case "", "immediate":
		return dispatch.NewImmediate(base)
	case "batching":
		return dispatch.NewBatching(dispatch.BatchConfig[string]{
			Config:    base,
			BatchSize: cfg.Dispatcher.BatchSize,
			MaxDelay:  cfg.Dispatcher.MaxDelay.Duration,
		})
	default:
		return nil, fmt.Errorf("unknown dispatcher.kind %q", cfg.Dispatcher.Kind)
	}
}
