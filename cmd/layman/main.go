package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/vaeth/layman/internal/application"
	"github.com/vaeth/layman/internal/config"
	"github.com/vaeth/layman/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	cli := kingpin.New("layman", "Inspect the make.conf style configuration of a source-based package manager")
	configFile := cli.Flag("config", "Path to YAML configuration file").String()
	makeConf := cli.Flag("make-conf", "Path to the make.conf file").String()
	overlaysPath := cli.Flag("overlays", "Path to the overlay list XML file").String()
	logLevel := cli.Flag("log-level", "Minimum log level (debug, info, warn, error)").String()
	noColor := cli.Flag("no-color", "Disable colored log output").Bool()
	ignoreMissing := cli.Flag("ignore-missing", "Tolerate overlays without owner or description").Bool()

	getCmd := cli.Command("get", "Print the resolved value of a single key")
	getKey := getCmd.Arg("key", "Configuration key, e.g. CFLAGS").Required().String()

	keysCmd := cli.Command("keys", "List assigned keys in definition order")

	dumpCmd := cli.Command("dump", "Print the whole configuration")
	dumpFormat := dumpCmd.Flag("format", "Output format (conf, yaml, json)").String()

	checkCmd := cli.Command("check", "Validate the configuration sources")

	overlaysCmd := cli.Command("overlays", "List configured overlays by priority")

	watchCmd := cli.Command("watch", "Watch make.conf and print value changes until interrupted")
	watchRate := watchCmd.Flag("rate", "Maximum reloads per second").Default("-1").Float64()
	watchBurst := watchCmd.Flag("burst", "Reload burst capacity").Default("-1").Int()

	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}
	if *makeConf != "" {
		overrides.MakeConf = makeConf
	}
	if *overlaysPath != "" {
		overrides.Overlays = overlaysPath
	}
	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}
	if *noColor {
		overrides.NoColor = noColor
	}
	if *ignoreMissing {
		overrides.IgnoreMissing = ignoreMissing
	}
	if *dumpFormat != "" {
		overrides.DumpFormat = dumpFormat
	}
	if *watchRate >= 0 {
		overrides.WatchRate = watchRate
	}
	if *watchBurst >= 0 {
		overrides.WatchBurst = watchBurst
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	levelOpt, err := logging.WithLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to configure logging: %v", err))
	}
	logger, err := logging.New(levelOpt, logging.WithConsole(cfg.Color))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := application.New(cfg, logger, os.Stdout)

	switch command {
	case getCmd.FullCommand():
		err = app.Get(*getKey)
	case keysCmd.FullCommand():
		err = app.Keys()
	case dumpCmd.FullCommand():
		err = app.Dump()
	case checkCmd.FullCommand():
		err = app.Check()
	case overlaysCmd.FullCommand():
		err = app.Overlays()
	case watchCmd.FullCommand():
		ctx, cancel := watchContext()
		defer cancel()
		err = app.Watch(ctx)
	}

	if err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

// watchContext returns a context cancelled by SIGINT or SIGTERM.
func watchContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		cancel()
	}()

	return ctx, cancel
}
