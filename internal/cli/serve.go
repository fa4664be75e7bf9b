package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neomorfeo/marketflow/internal/adapter/fsm"
	handler "github.com/neomorfeo/marketflow/internal/adapter/http"
	oteladapter "github.com/neomorfeo/marketflow/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/marketflow/internal/adapter/river"
	"github.com/neomorfeo/marketflow/internal/adapter/sqlite"
	"github.com/neomorfeo/marketflow/internal/app"
	"github.com/neomorfeo/marketflow/internal/config"
	"github.com/neomorfeo/marketflow/internal/process"
)

const serviceName = "marketflow"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the transition job queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serve runs the service until ctx is cancelled, then shuts everything down
// in reverse order.
func serve(ctx context.Context, cfg *config.Config) error {
	// --- Telemetry ---
	providers, err := oteladapter.Setup(ctx, oteladapter.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.OTel.Environment,
		Exporter:       cfg.OTel.Exporter,
		Insecure:       cfg.OTel.Insecure,
		ProcessNames:   process.Names(),
		GraphIDs:       process.GraphIDs(),
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer repo.Close()

	riverClient, err := riveradapter.Setup(ctx, db, cfg.River.Workers)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	// River stops on its own when its start context ends; Stop below drains it instead.
	if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			log.Printf("river shutdown: %v", err)
		}
	}()

	// --- Application ---
	svc := app.NewTransactionService(
		oteladapter.NewTracingRepository(repo),
		oteladapter.NewTracingPublisher(riveradapter.NewPublisher(riverClient)),
		oteladapter.NewTracingValidator(fsm.New()),
	)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	api := humachi.New(router, huma.DefaultConfig(serviceName, version))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s listening on :%s", serviceName, cfg.HTTP.Port)
		log.Printf("API docs: http://localhost:%s/docs", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	log.Println("stopped")
	return nil
}
