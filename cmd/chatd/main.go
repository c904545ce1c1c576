package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/chatd/internal/config"
	"github.com/matheus3301/chatd/internal/paths"
	"github.com/matheus3301/chatd/internal/server"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	configFlag := flag.String("config", "", "config file (default <data-dir>/chatd.toml)")
	dataDirFlag := flag.String("data-dir", "", "data directory (overrides config)")
	debugFlag := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		dir := *dataDirFlag
		if dir == "" {
			dir = paths.DefaultDataDir()
		}
		configPath = paths.ConfigPath(dir)
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
	}

	app := fx.New(
		server.Module(server.Params{Config: cfg, Debug: *debugFlag}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	app.Run()
}
