// Command pass runs one pick pass and exits with a status describing how it
// ended: 0 success, 2 upstream unavailable, 3 surface schema mismatch,
// 4 another pass holds the lock, 1 anything else.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/app"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/config"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/logging"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"

	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.MustLoad()
	logging.Setup(cfg.IsDevelopment(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize pipeline")
		return apperrors.ExitCode(err)
	}
	defer a.Close()

	report, err := a.Runner(time.Now()).RunPass(ctx)

	if cfg.PushgatewayURL != "" {
		if perr := metrics.Push(cfg.PushgatewayURL, "pick_pass"); perr != nil {
			log.Warn().Err(perr).Msg("Failed to push metrics")
		}
	}

	code := apperrors.ExitCode(err)
	log.Info().
		Str("pass_id", report.PassID).
		Int("exit_code", code).
		Msg("Pass finished")
	return code
}
