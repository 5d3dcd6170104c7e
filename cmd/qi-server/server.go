package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/agedcare/qi-submit/internal/config"
	"github.com/agedcare/qi-submit/internal/domain/apicall"
	"github.com/agedcare/qi-submit/internal/domain/submission"
	"github.com/agedcare/qi-submit/internal/domain/transport"
	"github.com/agedcare/qi-submit/internal/platform/auth"
	"github.com/agedcare/qi-submit/internal/platform/db"
	"github.com/agedcare/qi-submit/internal/platform/govapi"
	"github.com/agedcare/qi-submit/internal/platform/middleware"
)

// stores are the persistence dependencies of the server.
type stores struct {
	submissions submission.Repository
	ledger      apicall.Ledger
	pool        *pgxpool.Pool
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (stores, func(), error) {
	if cfg.Store != config.StorePostgres {
		logger.Info().Msg("using in-memory submission store")
		return stores{submissions: submission.NewMemoryRepo(), ledger: apicall.NewMemoryLedger()}, func() {}, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return stores{}, nil, err
	}
	logger.Info().Msg("connected to database")
	return stores{
		submissions: submission.NewRepoPG(pool),
		ledger:      apicall.NewLedgerPG(pool),
		pool:        pool,
	}, pool.Close, nil
}

func newServer(cfg *config.Config, logger zerolog.Logger, st stores, now func() time.Time) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.HeaderUserEmail, auth.HeaderFederatedID},
	}))

	// Health checks stay outside authentication.
	e.GET("/health", db.LivenessHandler(cfg.Store))
	if st.pool != nil {
		e.GET("/health/db", db.HealthHandler(st.pool, logger))
	}

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	intake := govapi.NewSimulator(govapi.SimulatorConfig{
		ClientID:         cfg.GovAPIClientID,
		SigningKey:       []byte(cfg.GovAPISigningKey),
		OrganizationID:   cfg.GovAPIOrganizationID,
		OrganizationName: cfg.GovAPIOrganizationName,
		ServiceIDs:       cfg.GovAPIServiceIDs,
		QuestionnaireID:  cfg.QuestionnaireID,
		Now:              now,
	})

	// Answer edits and transport actions take the same per-submission lock.
	locks := submission.NewKeyedMutex()

	submissionSvc := submission.NewService(st.submissions,
		submission.WithServiceLocks(locks),
		submission.WithServiceClock(now),
		submission.WithServiceLogger(logger.With().Str("component", "submission").Logger()),
		submission.WithQuestionnaire(govapi.QuestionnaireCanonical(cfg.QuestionnaireID)),
	)
	submission.NewHandler(submissionSvc).RegisterRoutes(apiV1)

	machine := transport.NewMachine(st.submissions, st.ledger, intake, cfg.QuestionnaireID,
		transport.WithClock(now),
		transport.WithLocks(locks),
		transport.WithLogger(logger.With().Str("component", "transport").Logger()),
	)
	transport.NewHandler(machine).RegisterRoutes(apiV1)

	apicall.NewHandler(st.ledger).RegisterRoutes(apiV1)

	return e
}
