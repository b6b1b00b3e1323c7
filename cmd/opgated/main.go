// SPDX-License-Identifier: MIT

// Command opgated runs the operation gate daemon: it tracks the configured
// global operations through their event sources and relays start/stop
// notifications to the configured sinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/opgate/internal/api"
	"github.com/ManuGH/opgate/internal/config"
	"github.com/ManuGH/opgate/internal/coordinator"
	"github.com/ManuGH/opgate/internal/daemon"
	"github.com/ManuGH/opgate/internal/journal"
	oplog "github.com/ManuGH/opgate/internal/log"
	"github.com/ManuGH/opgate/internal/notify"
	"github.com/ManuGH/opgate/internal/source"
	"github.com/ManuGH/opgate/internal/statefile"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("opgated %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		l := oplog.Base()
		l.Error().Err(err).Msg("daemon failed")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	oplog.Configure(oplog.Config{Level: cfg.LogLevel, Service: "opgate"})
	logger := oplog.WithComponent("main")
	logger.Info().
		Str("version", version).
		Int("operations", len(cfg.Operations)).
		Msg("starting opgated")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event sources, one per configured operation.
	sources := make(map[string]source.Source, len(cfg.Operations))
	manual := make(map[string]*source.Manual)
	bindings := make([]coordinator.Binding, 0, len(cfg.Operations))
	var fileSources []*source.File

	for _, op := range cfg.Operations {
		var src source.Source
		switch op.Source {
		case config.SourceManual:
			m := source.NewManual(op.Active)
			manual[op.Name] = m
			src = m
		case config.SourceFile:
			f, err := source.NewFile(op.Path)
			if err != nil {
				return fmt.Errorf("operation %q: %w", op.Name, err)
			}
			fileSources = append(fileSources, f)
			src = f
		case config.SourceStatic:
			src = source.Static(op.Active)
		}
		sources[op.Name] = src
		bindings = append(bindings, coordinator.Binding{Name: op.Name, Source: src})
	}

	// Notification sinks. The tracker is always present: it feeds the API
	// and the busy gauges.
	tracker := notify.NewTracker()
	sinks := []notify.Sink{notify.NewLogSink(), tracker}
	var checkers []api.Checker

	var j *journal.Journal
	if cfg.JournalPath != "" {
		j, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		sinks = append(sinks, j)
		checkers = append(checkers, api.Checker{Name: "journal", Check: j.HealthCheck})
	}

	var redisSink *notify.RedisSink
	if cfg.Redis != nil {
		redisSink, err = notify.NewRedisSink(notify.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return fmt.Errorf("connect redis sink: %w", err)
		}
		defer redisSink.Close()
		sinks = append(sinks, redisSink)
		checkers = append(checkers, api.Checker{Name: "redis", Check: redisSink.HealthCheck})
	}

	coord, err := coordinator.New(ctx, notify.NewFanout(sinks...), bindings)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}

	apiServer := api.New(api.Deps{
		Tracker:    tracker,
		Operations: cfg.Operations,
		Sources:    sources,
		Manual:     manual,
		Journal:    j,
		Checkers:   checkers,
		Version:    version,
	})

	mgr, err := daemon.NewManager(
		daemon.DefaultServerConfig(cfg.ListenAddr, cfg.MetricsAddr),
		apiServer.Handler(),
		promhttp.Handler(),
	)
	if err != nil {
		return fmt.Errorf("build daemon manager: %w", err)
	}

	// Optional state file follower fed by tracker snapshots.
	var stateCh chan notify.Snapshot
	if cfg.StateFile != "" {
		stateCh = make(chan notify.Snapshot, 16)
		tracker.RegisterListener(stateCh)
	}

	// Teardown order: coordinator first so open registrations are released
	// while the sinks are still alive, then the sources, then the followers.
	mgr.RegisterShutdownHook("state-file", func(context.Context) error {
		if stateCh != nil {
			close(stateCh)
		}
		return nil
	})
	mgr.RegisterShutdownHook("file-sources", func(context.Context) error {
		for _, f := range fileSources {
			if err := f.Close(); err != nil {
				return err
			}
		}
		return nil
	})
	mgr.RegisterShutdownHook("coordinator", func(context.Context) error {
		coord.Close()
		return nil
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Start(ctx) })
	if stateCh != nil {
		writer := statefile.NewWriter(cfg.StateFile)
		ch := stateCh
		g.Go(func() error {
			writer.Follow(ch)
			return nil
		})
	}
	return g.Wait()
}
