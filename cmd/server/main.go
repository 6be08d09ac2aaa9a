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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iliyamo/doctors-appointment/internal/availability"
	"github.com/iliyamo/doctors-appointment/internal/config"
	"github.com/iliyamo/doctors-appointment/internal/database"
	"github.com/iliyamo/doctors-appointment/internal/handler"
	"github.com/iliyamo/doctors-appointment/internal/logging"
	"github.com/iliyamo/doctors-appointment/internal/metrics"
	"github.com/iliyamo/doctors-appointment/internal/middleware"
	"github.com/iliyamo/doctors-appointment/internal/model"
	"github.com/iliyamo/doctors-appointment/internal/notify"
	"github.com/iliyamo/doctors-appointment/internal/payment"
	"github.com/iliyamo/doctors-appointment/internal/queue"
	"github.com/iliyamo/doctors-appointment/internal/repository"
	"github.com/iliyamo/doctors-appointment/internal/router"
	"github.com/iliyamo/doctors-appointment/internal/service"
	"github.com/iliyamo/doctors-appointment/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "doctors",
		Short:         "Doctors appointment booking API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(workerCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger shared by every
// command.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.Env), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return runServer(cfg, log)
		},
	}
}

func runServer(cfg config.Config, log zerolog.Logger) error {
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return err
	}

	// Redis is optional: without it the cache and the limiter pass through.
	var rdb *redis.Client
	if client, err := config.NewRedisClient(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable; caching and rate limiting disabled")
	} else {
		rdb = client
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bridge, err := payment.New(cfg, log)
	if err != nil {
		return fmt.Errorf("payment bridge: %w", err)
	}

	treatments := repository.NewTreatmentRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	users := repository.NewUserRepo(db)
	doctors := repository.NewDoctorRepo(db)
	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.AccessTTLMin)

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	svc := service.NewBookingService(db, bookings, payments, service.BookingOptions{
		Publisher:    service.NewQueuePublisher(cfg.RabbitURL, log),
		Cache:        cache,
		Metrics:      m,
		Logger:       log,
		Currency:     cfg.PaymentCurrency,
		UpsertOnMiss: cfg.UpsertOnMiss,
	})

	e := router.New(router.Deps{
		Logger:    log,
		Registry:  reg,
		Metrics:   m,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:     cache,
		Tokens:    tokens,
		Admins:    users,

		Appointments: &handler.AppointmentHandler{
			Engine:     availability.NewEngine(treatments, bookings),
			Treatments: treatments,
		},
		Bookings: &handler.BookingHandler{Bookings: bookings, Service: svc},
		Payments: &handler.PaymentHandler{Bridge: bridge, Service: svc, Currency: cfg.PaymentCurrency},
		Users: &handler.UserHandler{
			Users:  users,
			Admin:  service.NewAdminService(db, users, cfg.UpsertOnMiss),
			Tokens: tokens,
		},
		Doctors: &handler.DoctorHandler{Doctors: doctors},
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("driver", cfg.DBDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	svc.Wait() // drain in-flight event publishes
	log.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables for the configured driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db, cfg.DBDriver); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.DBDriver).Msg("schema up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert treatment offerings from a JSON file",
		Long: `seed reads a JSON array of treatments, for example
  [{"name": "Teeth Cleaning", "slots": ["08:00 AM - 08:30 AM"], "price": 5000}]
and creates or replaces each one by name.  Prices are in cents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var items []model.Treatment
			if err := json.Unmarshal(raw, &items); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			ctx := cmd.Context()
			if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
				return err
			}

			repo := repository.NewTreatmentRepo(db)
			for i := range items {
				if items[i].Name == "" {
					return fmt.Errorf("treatment %d: name required", i)
				}
				if err := repo.Upsert(ctx, &items[i]); err != nil {
					return fmt.Errorf("upsert %q: %w", items[i].Name, err)
				}
				log.Info().Str("treatment", items[i].Name).Int("slots", len(items[i].Slots)).Msg("seeded")
			}
			return nil
		},
	}
	cmd.Flags().String("file", "treatments.json", "Path to the treatments JSON file")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume booking events: log them and send confirmation emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			mail := notify.New(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.MailFrom,
				FromName:  cfg.MailFromName,
			}, log)
			proc := queue.NewProcessor(cfg.LogDir, mail, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = queue.NewConsumer(cfg.RabbitURL, proc, log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("worker stopped")
				return nil
			}
			return err
		},
	}
}
