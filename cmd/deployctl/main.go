package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/deployctl/internal/deploy"
	"github.com/danmuck/deployctl/internal/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load()
	logging.ConfigureRuntime()
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn().Err(envErr).Msg("deployctl.env load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		if errors.Is(err, deploy.ErrInterrupted) {
			log.Warn().Msg("deployctl.interrupted")
		}
		fmt.Fprintf(os.Stderr, "deployctl: %v\n", err)
	}
	os.Exit(deploy.ExitCode(err))
}
