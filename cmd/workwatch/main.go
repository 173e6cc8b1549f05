package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/workwatch/internal/cli"
	"github.com/dmitrijs2005/workwatch/internal/config"
	"github.com/dmitrijs2005/workwatch/internal/flagx"
	"github.com/dmitrijs2005/workwatch/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	global, cmd, rest := flagx.SplitCommand(os.Args[1:], config.FlagArgs())

	cfg, err := config.LoadConfig(global)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger, closer, err := logging.New(cfg.LogOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 2
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, cli.Deps{})
	if err != nil {
		logger.Error(ctx, "init failed", "error", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer app.Close()

	if err := app.Run(ctx, cmd, rest); err != nil {
		logger.Debug(ctx, "command failed", "command", cmd, "error", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		return cli.ExitCode(err)
	}
	return 0
}
