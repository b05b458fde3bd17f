package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/alecgard/huddle/internal/api"
	"github.com/alecgard/huddle/internal/config"
	"github.com/alecgard/huddle/internal/events"
	"github.com/alecgard/huddle/internal/group"
	"github.com/alecgard/huddle/internal/metrics"
	"github.com/alecgard/huddle/internal/ratelimit"
	"github.com/alecgard/huddle/internal/realtime"
	"github.com/alecgard/huddle/internal/task"
	"github.com/alecgard/huddle/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Huddle API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return err
	}
	if cfg.Database.QueryTimeout > 0 {
		// Bound every statement server-side so a wedged query fails
		// instead of hanging the request.
		poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.Database.QueryTimeout.Milliseconds(), 10)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.ServerStartTime.Set(float64(time.Now().Unix()))
	m.RegisterDBPool(func() (total, idle, acquired int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	})

	userStore := user.NewStore(pool, cfg.Auth.SessionTTL)
	groupStore := group.NewStore(pool, cfg.Invites.LinkBase, cfg.Invites.TTL)
	taskStore := task.NewStore(pool)
	eventStore := events.NewStore(pool)

	hub := realtime.NewHub()

	audit := events.NewAuditWriter(eventStore, cfg.Audit.BatchSize, cfg.Audit.FlushInterval, func(count int, err error) {
		if err != nil {
			m.AuditFlushesTotal.WithLabelValues("error").Inc()
			slog.Error("audit flush failed", "error", err, "events", count)
			return
		}
		m.AuditFlushesTotal.WithLabelValues("ok").Inc()
	})
	go audit.Start(ctx)

	dispatcher := events.NewDispatcher(hub, audit, func(eventType string, delivered, dropped int) {
		m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
		if dropped > 0 {
			m.EventsDroppedTotal.Add(float64(dropped))
		}
	})

	limiter := ratelimit.New(cfg.RateLimit.Rate, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		Users:          userStore,
		Groups:         groupStore,
		Tasks:          taskStore,
		Events:         dispatcher,
		Audit:          eventStore,
		Sessions:       user.NewAuthAdapter(userStore),
		Limiter:        limiter,
		Hub:            hub,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	audit.Stop()

	return srv.Shutdown(shutdownCtx)
}
