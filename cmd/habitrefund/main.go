package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"habitrefund/internal/config"
)

const usage = `usage: habitrefund [flags] <command> [args]

commands:
  serve                 run the presentation shell (default)
  login                 sign in (native handoff, then demo exchange)
  logout                drop the stored session
  challenges            list the effective challenge catalog
  deposit <id>          pay the deposit for a challenge
  proof <id> [photo]    submit today's proof
  history [id]          list settlements, or show one
`

func main() {
	configFile := flag.String("config", "", "Configuration file path (JSON)")
	envFile := flag.String("env", ".env", "Dotenv file loaded before the environment is read")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(*envFile); err != nil {
		logger.Error("failed to load dotenv file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if err := a.run(ctx, cmd, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.Close()
		os.Exit(1)
	}
}
