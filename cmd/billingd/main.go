// billingd is a standalone subscription lifecycle server: it exposes the
// billing webhook endpoint and the user-facing billing commands over HTTP,
// backed by Postgres and Stripe. Intended both as a deployable service and as
// a reference wiring of the billingkit packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/billingkit/migrations"
	"github.com/dmitrymomot/billingkit/modules/billing"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type serverConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// CompanyHeader names the trusted header carrying the acting company ID.
	// In production this is set by the authenticating reverse proxy or the
	// host application's session middleware.
	CompanyHeader string `env:"COMPANY_ID_HEADER" envDefault:"X-Company-ID"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("billingd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		srvCfg    serverConfig
		pgCfg     pg.Config
		stripeCfg subscription.StripeConfig
	)
	if err := env.Parse(&srvCfg); err != nil {
		return err
	}
	if err := env.Parse(&pgCfg); err != nil {
		return err
	}
	if err := env.Parse(&stripeCfg); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, log); err != nil {
		return err
	}

	provider, err := subscription.NewStripeProvider(stripeCfg, log)
	if err != nil {
		return err
	}

	store := subscription.NewPostgresStore(pool)
	svc := subscription.NewService(subscription.DefaultCatalog(), provider, store, store,
		subscription.WithLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler(pg.Healthcheck(pool)))
	r.Mount("/billing", billing.Router(billing.RouterOptions{
		Service:        svc,
		ResolveCompany: headerCompanyResolver(srvCfg.CompanyHeader),
		Logger:         log,
	}))

	server := &http.Server{
		Addr:         srvCfg.Addr,
		Handler:      r,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("billingd listening", "addr", srvCfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// headerCompanyResolver trusts an upstream-injected header for company
// identity. Suitable behind an authenticating proxy; not for direct exposure.
func headerCompanyResolver(header string) billing.CompanyResolver {
	return func(r *http.Request) (uuid.UUID, error) {
		return uuid.Parse(r.Header.Get(header))
	}
}

func healthHandler(probe func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := probe(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
