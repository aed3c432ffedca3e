// Command eth-sensor keeps a networked sensor's clock synchronized against a
// network time source and its MQTT session alive, answering remote
// configuration queries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/eth-sensor/internal/config"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"/etc/eth-sensor/config.yaml"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Run struct{} `cmd:"" default:"1" help:"Run the sensor daemon"`

	PrintConfig struct{} `cmd:"" help:"Print the device configuration stores as JSON"`

	ResetConfig struct {
		Store string   `required:"" enum:"mqtt,ethernet,sensor" help:"Store to reset (mqtt, ethernet, sensor)"`
		Key   []string `help:"Key to reset; repeatable. Without keys the whole store is reset"`
	} `cmd:"" help:"Restore device configuration to its defaults"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("eth-sensor"),
		kong.Description("Networked sensor daemon: time sync and MQTT session."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eth-sensor: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Log.Level
	if CLI.Verbose {
		level = "debug"
	}
	logger := config.NewLogger(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := dispatch(kctx.Command(), cfg, logger); err != nil {
		logger.Error("fatal", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func dispatch(command string, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStores(cfg.DataDir, logger)
	if err != nil {
		return err
	}

	switch command {
	case "run":
		return runDaemon(cfg, logger, st)
	case "print-config":
		return printConfig(os.Stdout, st)
	case "reset-config":
		return resetConfig(st, CLI.ResetConfig.Store, CLI.ResetConfig.Key, logger)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runDaemon(cfg *config.Config, logger *slog.Logger, st *stores) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d, err := newDaemon(cfg, logger, st, daemonOptions{Registry: reg})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return d.run(ctx)
}
