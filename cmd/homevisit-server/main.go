package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/homevisit/homevisit/internal/config"
	"github.com/homevisit/homevisit/internal/domain/consistency"
	"github.com/homevisit/homevisit/internal/domain/encounter"
	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/domain/scheduling"
	"github.com/homevisit/homevisit/internal/platform/clock"
	"github.com/homevisit/homevisit/internal/platform/db"
	"github.com/homevisit/homevisit/internal/platform/event"
	"github.com/homevisit/homevisit/internal/platform/middleware"
)

// appointmentServiceAdapter exposes an appointment's booked services to the
// encounter package without a scheduling import there.
type appointmentServiceAdapter struct {
	appointments scheduling.AppointmentRepository
}

func (a *appointmentServiceAdapter) ServicesFor(ctx context.Context, appointmentID uuid.UUID) ([]uuid.UUID, error) {
	appt, err := a.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return appt.ServiceIDs, nil
}

// availabilityIndexAdapter recomputes a med tech's free intervals after a
// registry mutation, keeping the in-memory index in step with storage. A
// deactivated med tech keeps no capacity at all.
type availabilityIndexAdapter struct {
	index        *scheduling.Index
	medTechs     registry.MedTechRepository
	appointments scheduling.AppointmentRepository
}

func (a *availabilityIndexAdapter) RebuildMedTech(ctx context.Context, medTechID uuid.UUID) error {
	mt, err := a.medTechs.GetByID(ctx, medTechID)
	if err != nil {
		return err
	}
	if !mt.Active {
		a.index.Forget(medTechID)
		return nil
	}
	appts, err := a.appointments.ListByMedTech(ctx, medTechID)
	if err != nil {
		return err
	}
	return a.index.Rebuild(mt, appts)
}

// serviceDefAdapter answers the appointment-required flag for a service
// definition.
type serviceDefAdapter struct {
	defs registry.ServiceDefRepository
}

func (a *serviceDefAdapter) AppointmentRequired(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	def, err := a.defs.GetByID(ctx, serviceID)
	if err != nil {
		return false, err
	}
	return def.AppointmentRequired, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "homevisit-server",
		Short: "Home-visit scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Repositories
	patients := registry.NewPatientRepoPG(pool)
	practitioners := registry.NewPractitionerRepoPG(pool)
	medTechs := registry.NewMedTechRepoPG(pool)
	locations := registry.NewLocationRepoPG(pool)
	organizations := registry.NewOrganizationRepoPG(pool)
	serviceDefs := registry.NewServiceDefRepoPG(pool)
	devices := registry.NewDeviceRepoPG(pool)
	laboratories := registry.NewLaboratoryRepoPG(pool)
	requests := scheduling.NewServiceRequestRepoPG(pool)
	appointments := scheduling.NewAppointmentRepoPG(pool)
	encounters := encounter.NewEncounterRepoPG(pool)
	observations := encounter.NewObservationRepoPG(pool)
	deliveries := encounter.NewDeliveryRepoPG(pool)

	// Consistency gate shared by every service
	gate := consistency.NewValidator(consistency.Repos{
		Patients:      patients,
		Practitioners: practitioners,
		MedTechs:      medTechs,
		Locations:     locations,
		Organizations: organizations,
		ServiceDefs:   serviceDefs,
		Devices:       devices,
		Laboratories:  laboratories,
		Requests:      requests,
		Appointments:  appointments,
		Encounters:    encounters,
	})

	// Availability index, rebuilt from storage at startup
	index := scheduling.NewIndex()
	if err := scheduling.Warm(ctx, index, medTechs, appointments); err != nil {
		logger.Fatal().Err(err).Msg("failed to warm availability index")
	}
	logger.Info().Msg("availability index warmed")

	clk := clock.System{}
	bus := event.NewBus(logger)

	// Services
	registrySvc := registry.NewService(registry.Deps{
		Patients:           patients,
		Practitioners:      practitioners,
		MedTechs:           medTechs,
		Locations:          locations,
		Organizations:      organizations,
		Services:           serviceDefs,
		Devices:            devices,
		Laboratories:       laboratories,
		Gate:               gate,
		Index:              &availabilityIndexAdapter{index: index, medTechs: medTechs, appointments: appointments},
		RequireContactInfo: cfg.RequireContactInfo,
	})

	booking := scheduling.NewBooking(scheduling.BookingDeps{
		Requests:     requests,
		Appointments: appointments,
		Encounters:   encounters,
		Deliveries:   deliveries,
		Index:        index,
		Gate:         gate,
		Events:       bus,
		Clock:        clk,
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
		Logger: logger,
	})

	matcher := scheduling.NewMatcher(medTechs, patients, locations, index, clk, cfg.MatchHorizon())

	encounterSvc := encounter.NewService(encounter.Deps{
		Encounters:   encounters,
		Observations: observations,
		Deliveries:   deliveries,
		Appointment:  &appointmentServiceAdapter{appointments: appointments},
		Defs:         &serviceDefAdapter{defs: serviceDefs},
		Gate:         gate,
		Events:       bus,
		Clock:        clk,
		Logger:       logger,
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")
	registry.NewHandler(registrySvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(booking, matcher).RegisterRoutes(apiV1)
	encounter.NewHandler(encounterSvc).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
