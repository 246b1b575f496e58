// Command worker runs pick passes on a schedule and serves metrics, health
// and pick lookup endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/app"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/config"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/logging"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/pipeline"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/scheduler"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.IsDevelopment(), cfg.LogLevel)

	log.Info().
		Str("env", cfg.AppEnv).
		Str("schedule", cfg.PassCron).
		Msg("Starting pick pipeline worker")

	// Create context that listens for cancellation
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}
	defer a.Close()

	sched := scheduler.NewScheduler(cfg.PassCron, cfg.RunOnStart, func(now time.Time) scheduler.PassRunner {
		return a.Runner(now)
	})

	var server *http.Server
	if cfg.EnableMetrics {
		server = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           newRouter(a, a.Publisher, sched),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", server.Addr).Msg("Starting metrics server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	if cfg.EnableScheduler {
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	} else {
		log.Warn().Msg("Scheduler disabled, serving metrics only")
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, gracefully shutting down...")

	if cfg.EnableScheduler {
		sched.Stop()
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	log.Info().Msg("Worker shutdown complete")
}

type healthChecker interface {
	Health(ctx context.Context) map[string]string
}

type pickLookup interface {
	Lookup(ctx context.Context, gameID string) (*models.PublishedPick, error)
}

type passHistory interface {
	Last() (*pipeline.Report, error)
}

func newRouter(health healthChecker, picks pickLookup, passes passHistory) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := health.Health(req.Context())
		code := http.StatusOK
		for _, s := range status {
			if s != "ok" {
				code = http.StatusServiceUnavailable
			}
		}

		body := map[string]interface{}{"backends": status}
		if report, err := passes.Last(); report != nil {
			last := map[string]interface{}{
				"pass_id":      report.PassID,
				"season":       report.Season,
				"current_week": report.CurrentWeek,
				"duration":     report.Duration.String(),
			}
			if err != nil {
				last["error"] = err.Error()
			}
			if rec := report.Record; rec != nil {
				last["record"] = map[string]interface{}{
					"wins":     rec.Wins,
					"losses":   rec.Losses,
					"pushes":   rec.Pushes,
					"win_rate": rec.WinRate(),
				}
			}
			body["last_pass"] = last
		}
		writeJSON(w, code, body)
	}).Methods(http.MethodGet)

	r.HandleFunc("/picks/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		pick, err := picks.Lookup(req.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("game_id", id).Msg("Pick lookup failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		if pick == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "pick not found"})
			return
		}
		writeJSON(w, http.StatusOK, pick)
	}).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
