package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/config"
	"github.com/medchain/medchain/internal/domain/hospital"
	"github.com/medchain/medchain/internal/domain/medication"
	"github.com/medchain/medchain/internal/domain/patient"
	"github.com/medchain/medchain/internal/domain/scan"
	"github.com/medchain/medchain/internal/gateway"
	"github.com/medchain/medchain/internal/platform/db"
	"github.com/medchain/medchain/internal/platform/middleware"
	"github.com/medchain/medchain/internal/session"
)

// app holds the wired services shared by the server and the subcommands.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	gateway     *gateway.Client
	store       *session.LevelStore
	sessions    *session.Manager
	pipeline    *scan.Pipeline
	patients    *patient.Service
	medications *medication.Service
	hospitals   *hospital.Service
	pool        db.Pool
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// newCore wires what every command needs: the gateway, the durable session,
// the database pool if one is configured and the verification services.
// Patient records are left to newApp.
func newCore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gw, err := gateway.New(gateway.Config{BaseURL: cfg.APIURL, Timeout: cfg.GatewayTimeout}, logger)
	if err != nil {
		return nil, err
	}

	store, err := session.OpenLevelStore(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state in %s (is another medchain process running?): %w", cfg.StateDir, err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		gateway:  gw,
		store:    store,
		sessions: session.NewManager(store, gw, logger),
		pipeline: scan.NewPipeline(gw, gw, logger),
	}

	if cfg.UsesDatabase() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.pool = pool
		logger.Info().Msg("connected to database")
	}

	var ledger medication.Ledger
	switch cfg.MedicationSource {
	case config.MedicationSourceFixture:
		ledger = medication.NewFixtureLedger(cfg.SimulatedLatency, medication.Fixtures()...)
	case config.MedicationSourcePostgres:
		pg := medication.NewLedgerPG(a.pool)
		if cfg.SeedFixtures {
			for _, m := range medication.Fixtures() {
				if err := pg.Register(ctx, m); err != nil {
					a.Close()
					return nil, fmt.Errorf("seed medications: %w", err)
				}
			}
		}
		ledger = pg
	default:
		ledger = medication.NewRemoteLedger(gw)
	}
	a.medications = medication.NewService(ledger, a.pipeline, logger)
	a.hospitals = hospital.NewService(hospital.NewHederaNetwork(cfg.HederaNetwork), logger)

	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a, err := newCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var repo patient.Repository
	if cfg.RecordStore == config.RecordStorePostgres {
		repo = patient.NewRepoPG(a.pool)
	} else {
		repo = patient.NewMemoryRepo(cfg.SimulatedLatency)
	}
	if cfg.SeedFixtures {
		n, err := patient.Seed(ctx, repo)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed patients: %w", err)
		}
		logger.Debug().Int("count", n).Msg("seeded fixture patients")
	}
	a.patients = patient.NewService(repo, a.gateway, a.gateway, cfg.CurrentHospital, logger)

	return a, nil
}

// Close waits for background credential issuance, then releases storage.
func (a *app) Close() {
	if a.patients != nil {
		a.patients.Wait()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error().Err(err).Msg("close state store")
		}
	}
}

// router builds the HTTP API served to the web and mobile shells.
func (a *app) router(startup session.Startup) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	var pinger db.Pinger
	if a.pool != nil {
		pinger = a.pool
	}
	e.GET("/health", db.HealthHandler(pinger))

	// Gate per route so unknown paths still answer 404.
	api := e.Group("/api/v1")
	gate := middleware.RequireSession(a.sessions)

	session.NewHandler(a.sessions, startup).RegisterRoutes(api, gate)
	scan.NewHandler(a.pipeline).RegisterRoutes(api, gate)
	medication.NewHandler(a.medications).RegisterRoutes(api, gate)
	patient.NewHandler(a.patients).RegisterRoutes(api, gate)
	hospital.NewHandler(a.hospitals).RegisterRoutes(api, gate)

	return e
}
