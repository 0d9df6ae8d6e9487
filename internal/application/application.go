package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vaeth/layman/internal/config"
	"github.com/vaeth/layman/internal/makeconf"
	"github.com/vaeth/layman/internal/overlay"
	"github.com/vaeth/layman/internal/watch"
)

// ErrKeyNotAssigned is returned by Get when the requested key never appears
// in the configuration file.
var ErrKeyNotAssigned = errors.New("key is not assigned in the configuration file")

// App encapsulates the command implementations behind the CLI.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	loaderOpts []makeconf.Option
}

// AppOption configures App behaviour.
type AppOption func(*App)

// WithLoaderOptions forwards options to every make.conf load, primarily so
// tests can pin the interpolation environment.
func WithLoaderOptions(opts ...makeconf.Option) AppOption {
	return func(a *App) {
		a.loaderOpts = opts
	}
}

// New constructs an App writing command output to out.
func New(cfg config.Config, logger *zap.Logger, out io.Writer, opts ...AppOption) *App {
	a := &App{
		cfg:    cfg,
		logger: logger,
		out:    out,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) load() (*makeconf.ConfigSet, error) {
	set, err := makeconf.Load(a.cfg.MakeConfPath, a.loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.cfg.MakeConfPath, err)
	}
	return set, nil
}

// Get prints the resolved value of a single key.
func (a *App) Get(key string) error {
	set, err := a.load()
	if err != nil {
		return err
	}

	value, ok := set.Get(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrKeyNotAssigned)
	}
	fmt.Fprintln(a.out, value)
	return nil
}

// Keys prints every assigned key in definition order.
func (a *App) Keys() error {
	set, err := a.load()
	if err != nil {
		return err
	}

	for _, key := range set.Keys() {
		fmt.Fprintln(a.out, key)
	}
	return nil
}

// Dump re-serializes the whole configuration in the configured format.
func (a *App) Dump() error {
	set, err := a.load()
	if err != nil {
		return err
	}

	switch a.cfg.DumpFormat {
	case config.FormatConf:
		return set.Encode(a.out)
	case config.FormatYAML:
		data, err := yaml.Marshal(set.Map())
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = a.out.Write(data)
		return err
	case config.FormatJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(set.Map())
	default:
		return fmt.Errorf("unknown dump format %q", a.cfg.DumpFormat)
	}
}

// Check loads the configuration sources and reports what was found. The
// overlay list is only checked when it exists.
func (a *App) Check() error {
	set, err := a.load()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: ok (%d keys)\n", a.cfg.MakeConfPath, set.Len())

	if _, err := os.Stat(a.cfg.OverlaysPath); err != nil {
		a.logger.Debug("overlay list not present, skipping", zap.String("path", a.cfg.OverlaysPath))
		return nil
	}

	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: ok (%d overlays)\n", a.cfg.OverlaysPath, reg.Len())
	return nil
}

// Overlays prints the overlay list sorted by priority.
func (a *App) Overlays() error {
	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}

	for _, o := range reg.All() {
		marker := " "
		if o.Official() {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %-20s %4d  %s\n", marker, o.Name, o.Priority, o.Source)
	}
	return nil
}

func (a *App) loadRegistry() (*overlay.Registry, error) {
	opts := []overlay.Option{overlay.WithLogger(a.logger)}
	if a.cfg.IgnoreMissing {
		opts = append(opts, overlay.WithIgnoreMissing())
	}
	reg, err := overlay.LoadRegistry(a.cfg.OverlaysPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.cfg.OverlaysPath, err)
	}
	return reg, nil
}

// Watch follows the make.conf file until ctx is cancelled, printing the keys
// whose values changed on every reload.
func (a *App) Watch(ctx context.Context) error {
	holder, err := watch.New(a.cfg.MakeConfPath, a.logger,
		watch.WithRateLimit(a.cfg.WatchRate, a.cfg.WatchBurst),
		watch.WithLoaderOptions(a.loaderOpts...),
	)
	if err != nil {
		return err
	}

	updates := make(chan *makeconf.ConfigSet, 1)
	holder.Subscribe(updates)

	if err := holder.Start(ctx); err != nil {
		return err
	}

	previous := holder.Current()
	fmt.Fprintf(a.out, "watching %s (%d keys)\n", a.cfg.MakeConfPath, previous.Len())

	for {
		select {
		case <-ctx.Done():
			return nil
		case set := <-updates:
			for _, key := range changedKeys(previous, set) {
				fmt.Fprintf(a.out, "%s=%s\n", key, set.Value(key))
			}
			previous = set
		}
	}
}

// changedKeys lists keys that were added, removed, or assigned a new value,
// in the next set's definition order (removed keys last).
func changedKeys(prev, next *makeconf.ConfigSet) []string {
	var keys []string
	for _, key := range next.Keys() {
		prevValue, ok := prev.Get(key)
		if !ok || prevValue != next.Value(key) {
			keys = append(keys, key)
		}
	}
	for _, key := range prev.Keys() {
		if _, ok := next.Get(key); !ok {
			keys = append(keys, key)
		}
	}
	return keys
}
