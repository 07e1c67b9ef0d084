package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/MikhailRaia/paylink/internal/auth"
	"github.com/MikhailRaia/paylink/internal/config"
	"github.com/MikhailRaia/paylink/internal/handler"
	"github.com/MikhailRaia/paylink/internal/metrics"
	"github.com/MikhailRaia/paylink/internal/middleware"
	"github.com/MikhailRaia/paylink/internal/proto"
	"github.com/MikhailRaia/paylink/internal/service"
	"github.com/MikhailRaia/paylink/internal/storage"
	"github.com/MikhailRaia/paylink/internal/storage/file"
	"github.com/MikhailRaia/paylink/internal/storage/memory"
	"github.com/MikhailRaia/paylink/internal/storage/postgres"
	"github.com/MikhailRaia/paylink/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config       *config.Config
	handler      http.Handler
	grpcServer   *grpc.Server
	workerPool   *worker.CancelWorkerPool
	closeStorage func()
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	linkStorage, pinger, closeStorage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics()
	paymentService := service.NewPaymentService(linkStorage, cfg, m)

	workerPool := worker.NewCancelWorkerPool(paymentService, worker.DefaultConfig())

	jwtService := auth.NewJWTService(cfg.SecretKey)

	httpHandler := handler.NewHandler(paymentService, handler.Options{
		DBPinger:      pinger,
		Canceller:     workerPool,
		Auth:          middleware.NewAuthMiddleware(jwtService),
		Metrics:       m,
		TrustedSubnet: cfg.TrustedSubnet,
	})

	a := &App{
		config:       cfg,
		handler:      httpHandler.RegisterRoutes(),
		workerPool:   workerPool,
		closeStorage: closeStorage,
	}

	if cfg.GRPCAddress != "" {
		a.grpcServer = grpc.NewServer(
			grpc.ForceServerCodec(proto.Codec{}),
			grpc.ChainUnaryInterceptor(middleware.NewGRPCAuthMiddleware(jwtService).UnaryInterceptor),
		)
		proto.RegisterPaymentLinkServiceServer(a.grpcServer, handler.NewPaymentLinkGRPCServer(paymentService))
	}

	return a, nil
}

// newStorage picks PostgreSQL when a DSN is configured, then the file journal,
// then memory.
func newStorage(ctx context.Context, cfg *config.Config) (storage.LinkStorage, handler.DBPinger, func(), error) {
	if cfg.DatabaseDSN != "" {
		pg, err := postgres.NewStorage(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize database storage: %w", err)
		}
		log.Info().Msg("Using PostgreSQL storage")
		return pg, pg, pg.Close, nil
	}

	if cfg.FileStoragePath != "" {
		fs, err := file.NewStorage(cfg.FileStoragePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		log.Info().Str("path", cfg.FileStoragePath).Msg("Using file storage")
		return fs, nil, func() {}, nil
	}

	log.Info().Msg("Using in-memory storage")
	return memory.NewStorage(), nil, func() {}, nil
}

// Run serves HTTP and, when configured, gRPC until ctx is done or the process
// receives SIGINT, SIGTERM or SIGQUIT, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a.workerPool.Start()

	server := &http.Server{
		Addr:              a.config.ServerAddress,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		log.Info().
			Str("address", a.config.ServerAddress).
			Str("baseURL", a.config.BaseURL).
			Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.config.GRPCAddress)
		if err != nil {
			errCh <- fmt.Errorf("grpc listen: %w", err)
		} else {
			go func() {
				log.Info().Str("address", a.config.GRPCAddress).Msg("Starting gRPC server")
				if err := a.grpcServer.Serve(lis); err != nil {
					errCh <- fmt.Errorf("grpc server: %w", err)
				}
			}()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Server failed")
	}

	return errors.Join(runErr, a.shutdown(server))
}

func (a *App) shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	if err := a.workerPool.Shutdown(shutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("worker pool shutdown: %w", err))
	}

	a.closeStorage()
	log.Info().Msg("Server stopped")

	return errors.Join(errs...)
}
