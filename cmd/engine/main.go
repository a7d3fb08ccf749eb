// Command engine runs the interpreter auto-assignment engine: an HTTP API
// plus an embedded Scheduler, Pool Processor, and background components,
// under a spf13/cobra root so ops can also drive the engine from the
// command line without going through HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"interpreter-engine/internal/config"
	"interpreter-engine/internal/dbpostgres"
	"interpreter-engine/internal/dbredis"
	"interpreter-engine/internal/dynamicpool"
	"interpreter-engine/internal/emergency"
	"interpreter-engine/internal/engine"
	"interpreter-engine/internal/events"
	"interpreter-engine/internal/handlers"
	"interpreter-engine/internal/metrics"
	"interpreter-engine/internal/observability"
	"interpreter-engine/internal/pool"
	"interpreter-engine/internal/recovery"
	"interpreter-engine/internal/repository"
	"interpreter-engine/internal/runner"
	"interpreter-engine/internal/scheduler"
)

func getMetricsPort() string {
	if p := os.Getenv("METRICS_PORT"); p != "" {
		return p
	}
	return "9100"
}

// components bundles everything built by wire() so both the HTTP server and
// the CLI subcommands can share one construction path.
type components struct {
	cfg       *config.Config
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	publisher *events.Publisher
}

func wire() (*components, error) {
	cfg := config.New()

	db, err := dbpostgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connecting to database: %s", err)
		go dbpostgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	redisClient, err := dbredis.New(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var publisher *events.Publisher
	rmqConn, err := events.Connect(cfg.RabbitMQCfg)
	if err != nil {
		slog.Warn("notification publisher disabled, RabbitMQ unavailable", "error", err)
	} else {
		publisher = events.NewPublisher(rmqConn)
	}

	policyRepo := repository.NewPolicyRepository(db)
	priorityRepo := repository.NewPriorityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	interpreterRepo := repository.NewInterpreterRepository(db)
	poolRepo := repository.NewPoolRepository(db)
	logRepo := repository.NewLogRepository(db)
	txRunner := repository.NewTxRunner(db)

	dynamicMgr := dynamicpool.New(redisClient)

	logger := slog.Default()

	// A typed-nil *Publisher must not leak into the Notifier interface or the
	// nil guards downstream stop working.
	var notifier events.Notifier
	if publisher != nil {
		notifier = publisher
	}

	r := runner.New(policyRepo, priorityRepo, bookingRepo, interpreterRepo, poolRepo, logRepo, txRunner, dynamicMgr, notifier, logger)
	processor := pool.New(poolRepo, policyRepo, logRepo, txRunner, r, notifier, logger, cfg.PoolBatchSize)
	override := emergency.New(poolRepo, logRepo, txRunner, r, redisClient, notifier, logger)
	recoveryMgr := recovery.New(poolRepo, logRepo, txRunner, logger)

	sched := scheduler.New(func(ctx context.Context) {
		report := processor.Drain(ctx, cfg.TickBudget)
		logger.Info("pool tick completed", "claimed", report.Claimed, "assigned", report.Assigned, "escalated", report.Escalated, "failed", report.Failed)
	}, redisClient, logger)

	eng := engine.New(policyRepo, priorityRepo, bookingRepo, interpreterRepo, poolRepo, r, processor, sched, override, recoveryMgr, logger)

	return &components{cfg: cfg, engine: eng, scheduler: sched, publisher: publisher}, nil
}

func runServer() error {
	metrics.Init("interpreter_engine")
	if err := observability.Init(context.Background(), observability.Config{
		Enabled:     os.Getenv("TRACING_ENABLED") == "true",
		ServiceName: "interpreter-engine",
		SampleRate:  1.0,
	}); err != nil {
		slog.Warn("tracing disabled", "error", err)
	}
	defer observability.Shutdown(context.Background())

	c, err := wire()
	if err != nil {
		return err
	}

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%s", getMetricsPort())
		if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
			slog.Error("metrics listener stopped", "error", err)
		}
	}()

	policy, err := c.engine.GetPolicy()
	if err == nil {
		c.scheduler.Start(config.ModeInterval(policy.Mode, policy.CustomIntervalMinutes))
	} else {
		slog.Warn("could not load policy at startup, scheduler not started", "error", err)
	}

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	app.Get("/checkhealth", func(ctx fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).SendString("interpreter-engine is healthy")
	})

	handlers.NewEngineHandler(c.engine).Register(app)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("starting server on port %s", c.cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", c.cfg.Port)); err != nil {
			log.Fatalf("error starting server: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("shutting down server...")
	c.scheduler.Stop()
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "enginectl",
		Short: "Interpreter auto-assignment engine",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and embedded scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	processNowCmd := &cobra.Command{
		Use:   "process-now",
		Short: "Trigger one out-of-band pool drain pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wire()
			if err != nil {
				return err
			}
			report, err := c.engine.ProcessPoolNow(context.Background(), 60*time.Second)
			if err != nil {
				return err
			}
			fmt.Printf("drain complete: claimed=%d assigned=%d escalated=%d failed=%d\n",
				report.Claimed, report.Assigned, report.Escalated, report.Failed)
			return nil
		},
	}

	emergencyCmd := &cobra.Command{
		Use:   "emergency [reason]",
		Short: "Trigger a full emergency pool drain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wire()
			if err != nil {
				return err
			}
			report, err := c.engine.EmergencyProcess(context.Background(), args[0], "enginectl")
			if err != nil {
				return err
			}
			fmt.Printf("emergency drain complete: %d entries processed\n", len(report.Entries))
			return nil
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Run a health check and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wire()
			if err != nil {
				return err
			}
			status := c.engine.HealthCheck()
			fmt.Printf("healthy=%v detail=%s\n", status.Healthy, status.Detail)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, processNowCmd, emergencyCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("enginectl failed: %v", err)
	}
}
