// Package redis implements a Redis pub/sub delivery adapter, plus a
// liveness watcher backed by Redis key TTL heartbeats.
//
// The delivery adapter publishes assignments as JSON to a configurable
// channel, retrying with exponential backoff on connection errors. The
// liveness watcher treats the presence of a per-subscriber key as its
// heartbeat: Watch sets the key with a TTL, and a poller notices when
// the key expires without being refreshed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/dispenser/adapter"
	"github.com/justapithecus/dispenser/liveness"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "dispenser:assignments"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub delivery adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: dispenser:assignments).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure. New applies no
	// default: 0 means a single attempt.
	Retries int
}

// Adapter publishes assignments via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config. Returns an
// error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the delivery as a JSON PUBLISH to the configured
// channel. Retries with exponential backoff on failures.
func (a *Adapter) Publish(ctx context.Context, d *adapter.Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("redis: marshal delivery: %w", err)
	}

	var lastErr error
	attempts := 1 + a.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		lastErr = a.client.Publish(publishCtx, a.config.Channel, body).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Publisher = (*Adapter)(nil)

// WatcherConfig configures the TTL-heartbeat liveness watcher.
type WatcherConfig struct {
	// KeyPrefix namespaces heartbeat keys (default: "dispenser:alive:").
	KeyPrefix string
	// TTL is how long a heartbeat key survives without renewal before
	// the subscriber is considered gone (default 10s).
	TTL time.Duration
	// PollInterval controls how often the watcher checks for expired
	// keys (default TTL/2).
	PollInterval time.Duration
}

// Watcher implements liveness.Watcher[string] backed by Redis key TTLs.
// Watch sets a heartbeat key; an external process is expected to keep
// refreshing it (e.g. via EXPIRE) for as long as the subscriber is
// alive. A background poller notices keys that have expired and raises
// the onDown callback with the token on file at the time of expiry.
type Watcher struct {
	client *goredis.Client
	cfg    WatcherConfig
	onDown func(sub string, token liveness.Token)

	mu      sync.Mutex
	tokens  map[string]liveness.Token
	stopped chan struct{}
}

// NewWatcher creates a Watcher and starts its background poller.
func NewWatcher(client *goredis.Client, cfg WatcherConfig, onDown func(sub string, token liveness.Token)) *Watcher {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "dispenser:alive:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = cfg.TTL / 2
	}
	w := &Watcher{
		client:  client,
		cfg:     cfg,
		onDown:  onDown,
		tokens:  make(map[string]liveness.Token),
		stopped: make(chan struct{}),
	}
	go w.poll()
	return w
}

func (w *Watcher) key(sub string) string {
	return w.cfg.KeyPrefix + sub
}

// Watch implements liveness.Watcher. It (re)sets sub's heartbeat key
// with the configured TTL and returns a fresh token.
func (w *Watcher) Watch(sub string) liveness.Token {
	w.mu.Lock()
	defer w.mu.Unlock()
	token := liveness.NewToken()
	w.tokens[sub] = token
	w.client.Set(context.Background(), w.key(sub), string(token), w.cfg.TTL)
	return token
}

// Unwatch implements liveness.Watcher. It removes sub's heartbeat key.
func (w *Watcher) Unwatch(sub string) {
	w.mu.Lock()
	delete(w.tokens, sub)
	w.mu.Unlock()
	w.client.Del(context.Background(), w.key(sub))
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopped:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Watcher) sweep() {
	w.mu.Lock()
	subs := make([]string, 0, len(w.tokens))
	for sub := range w.tokens {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	for _, sub := range subs {
		exists, err := w.client.Exists(context.Background(), w.key(sub)).Result()
		if err != nil || exists > 0 {
			continue
		}
		w.mu.Lock()
		token, ok := w.tokens[sub]
		if ok {
			delete(w.tokens, sub)
		}
		w.mu.Unlock()
		if ok {
			w.onDown(sub, token)
		}
	}
}

// Stop halts the background poller.
func (w *Watcher) Stop() {
	close(w.stopped)
}

var _ liveness.Watcher[string] = (*Watcher)(nil)
