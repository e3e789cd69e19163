package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"firmament/internal/config"
)

const usageText = `Usage: booker [-config FILE] COMMAND [ARGS]

Commands:
  book      book a consultation in the terminal
  bot       run the Telegram bot
  admin     schedule administration (booker admin help)
  health    check that the API answers
`

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	configPath := flag.String("config", "", "config file (default $"+config.PathEnv+" or configs/config.yaml)")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usageText) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = logger.Level(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	args := flag.Args()
	switch args[0] {
	case "book":
		err = runBook(ctx, a)
	case "bot":
		err = runBot(ctx, a)
	case "admin":
		err = runAdmin(ctx, a, args[1:], os.Stdin, os.Stdout)
	case "health":
		if err = a.client.HealthCheck(ctx); err == nil {
			fmt.Println("ok", a.client.BaseURL())
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	default:
		logger.Error().Err(err).Str("command", args[0]).Msg("command failed")
		os.Exit(1)
	}
}
