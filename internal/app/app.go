// Package app wires the stores, the inventory coordinator, the services and
// the HTTP router into one running library service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"schoolshelf/internal/auth"
	"schoolshelf/internal/catalog"
	"schoolshelf/internal/circulation"
	"schoolshelf/internal/clients/googlebooks"
	"schoolshelf/internal/config"
	"schoolshelf/internal/inventory"
	"schoolshelf/internal/journal"
	"schoolshelf/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
)

// App holds one process's worth of state. Nothing is global: every component
// receives the stores it works on.
type App struct {
	Books       *catalog.Store
	Loans       *circulation.Repository
	Coordinator *inventory.Coordinator
	Journal     journal.Recorder
	Catalog     catalog.Service
	Circulation circulation.Service

	handler http.Handler
	db      *sql.DB
	logger  *slog.Logger
}

// New builds the service from configuration. With DATABASE_URL set the audit
// journal lives in Postgres, otherwise in memory.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		pj := journal.NewPostgresJournal(db)
		if err := pj.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.Journal = pj
		logger.Info("audit journal backed by postgres")
	} else {
		a.Journal = journal.NewMemoryJournal()
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	lookup := googlebooks.NewClient(googlebooks.Config{
		BaseURL:       cfg.GoogleBooksURL,
		APIKey:        cfg.GoogleBooksAPIKey,
		Language:      cfg.GoogleBooksLang,
		Timeout:       cfg.LookupTimeout,
		RatePerMinute: cfg.LookupRatePerMinute,
	}, logger)

	a.Books = catalog.NewStore()
	a.Loans = circulation.NewRepository()
	a.Coordinator = inventory.NewCoordinator(a.Books, a.Loans, a.Journal, logger)
	a.Catalog = catalog.NewService(a.Books, a.Coordinator, lookup, a.Journal, logger)
	a.Circulation = circulation.NewService(a.Loans, a.Books, a.Coordinator, a.Journal, logger)

	if cfg.SeedCatalog {
		books, err := catalog.Seed(ctx, a.Catalog)
		if err != nil {
			a.Close()
			return nil, err
		}
		loans, err := circulation.Seed(ctx, a.Circulation, books)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("catalog seeded", "books", len(books), "loans", len(loans))
	}

	respond := NewResponder(logger)
	guard := auth.NewGuard(verifier, respond, logger, cfg.AdminEvery, cfg.AdminBurst)
	a.handler = a.routes(respond, guard, logger)
	return a, nil
}

// NewResponder maps every domain error to its HTTP status.
func NewResponder(logger *slog.Logger) *web.Responder {
	return web.NewResponder(logger,
		web.Rule{Err: catalog.ErrValidation, Status: http.StatusUnprocessableEntity},
		web.Rule{Err: circulation.ErrValidation, Status: http.StatusUnprocessableEntity},
		web.Rule{Err: catalog.ErrNotFound, Status: http.StatusNotFound},
		web.Rule{Err: circulation.ErrLoanNotFound, Status: http.StatusNotFound},
		web.Rule{Err: inventory.ErrOutOfStock, Status: http.StatusConflict},
		web.Rule{Err: inventory.ErrBookOnLoan, Status: http.StatusConflict},
		web.Rule{Err: circulation.ErrAlreadyReturned, Status: http.StatusConflict},
		web.Rule{Err: auth.ErrUnauthorized, Status: http.StatusUnauthorized},
		web.Rule{Err: auth.ErrRateLimited, Status: http.StatusTooManyRequests},
		web.Rule{Err: googlebooks.ErrLookupFailed, Status: http.StatusBadGateway},
		web.Rule{Err: catalog.ErrNoSource, Status: http.StatusServiceUnavailable},
	)
}

func newVerifier(cfg config.Config) (*auth.Verifier, error) {
	if cfg.AdminPINHash != "" {
		v, err := auth.NewVerifier(cfg.AdminPINHash)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_PIN_HASH: %w", err)
		}
		return v, nil
	}
	return auth.NewVerifierFromPIN(cfg.AdminPIN)
}

func (a *App) routes(respond *web.Responder, guard *auth.Guard, logger *slog.Logger) http.Handler {
	books := catalog.NewHandler(a.Catalog, respond)
	loans := circulation.NewHandler(a.Circulation, respond)
	stock := inventory.NewHandler(a.Coordinator, respond)
	events := journal.NewHandler(a.Journal, respond)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	books.PublicRoutes(r)
	loans.PublicRoutes(r)

	r.Route("/admin", func(r chi.Router) {
		r.Use(guard.RequireAdmin)
		books.AdminRoutes(r)
		loans.AdminRoutes(r)
		stock.AdminRoutes(r)
		events.AdminRoutes(r)
	})

	return r
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close releases the database handle, if any.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
