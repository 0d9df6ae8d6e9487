// Package watch keeps an up-to-date view of a make.conf file. Each change on
// disk triggers a reload that produces a fresh immutable ConfigSet; readers
// always see either the previous or the new set, never a partial one.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vaeth/layman/internal/makeconf"
)

const (
	defaultReloadRate  = 2.0
	defaultReloadBurst = 1
)

// Option configures a Holder.
type Option func(*Holder)

// WithRateLimit bounds how often file events may trigger reloads. Events that
// arrive faster are coalesced into a single delayed reload.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Holder) {
		if perSecond <= 0 {
			perSecond = defaultReloadRate
		}
		if burst <= 0 {
			burst = defaultReloadBurst
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLoaderOptions forwards options to every makeconf.Load call.
func WithLoaderOptions(opts ...makeconf.Option) Option {
	return func(h *Holder) {
		h.loaderOpts = opts
	}
}

// Holder owns the current ConfigSet for a watched path and swaps it
// atomically on successful reloads.
type Holder struct {
	path       string
	logger     *zap.Logger
	limiter    *rate.Limiter
	loaderOpts []makeconf.Option

	mu      sync.RWMutex
	current *makeconf.ConfigSet

	subMu       sync.Mutex
	subscribers []chan<- *makeconf.ConfigSet

	watcher *fsnotify.Watcher
}

// New loads the file once and returns a Holder primed with the result.
func New(path string, logger *zap.Logger, opts ...Option) (*Holder, error) {
	h := &Holder{
		path:    path,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(defaultReloadRate), defaultReloadBurst),
	}
	for _, opt := range opts {
		opt(h)
	}

	initial, err := makeconf.Load(path, h.loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}
	h.current = initial
	return h, nil
}

// Current returns the most recently loaded ConfigSet.
func (h *Holder) Current() *makeconf.ConfigSet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers a channel that receives every successfully reloaded
// set. Sends are non-blocking; a slow subscriber misses intermediate sets.
func (h *Holder) Subscribe(ch chan<- *makeconf.ConfigSet) {
	h.subMu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.subMu.Unlock()
}

// Reload re-reads the file. On failure the previous set stays in place.
func (h *Holder) Reload() error {
	set, err := makeconf.Load(h.path, h.loaderOpts...)
	if err != nil {
		h.logger.Error("config reload failed, keeping previous configuration",
			zap.String("path", h.path),
			zap.Error(err),
		)
		return fmt.Errorf("reload %s: %w", h.path, err)
	}

	h.mu.Lock()
	h.current = set
	h.mu.Unlock()

	h.notify(set)
	h.logger.Info("configuration reloaded",
		zap.String("path", h.path),
		zap.Int("keys", set.Len()),
	)
	return nil
}

// Start begins watching the file for changes until ctx is cancelled.
func (h *Holder) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(h.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", h.path, err)
	}
	h.watcher = watcher

	h.logger.Info("watching configuration file", zap.String("path", h.path))
	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	defer func() {
		_ = h.watcher.Close()
	}()

	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			h.logger.Info("configuration watcher stopped", zap.String("path", h.path))
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				h.rearm()
			}
			if pendingC != nil {
				continue // a reload is already scheduled; coalesce
			}
			delay := h.limiter.Reserve().Delay()
			pending = time.NewTimer(delay)
			pendingC = pending.C

		case <-pendingC:
			pending = nil
			pendingC = nil
			_ = h.Reload()

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// rearm re-establishes the watch after editors replace the file via
// rename-over (vim, sed -i).
func (h *Holder) rearm() {
	_ = h.watcher.Remove(h.path)
	if err := h.watcher.Add(h.path); err != nil {
		h.logger.Warn("unable to re-add watch", zap.String("path", h.path), zap.Error(err))
	}
}

func (h *Holder) notify(set *makeconf.ConfigSet) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- set:
		default:
		}
	}
}
