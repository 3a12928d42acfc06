package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/config"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/database"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/handler"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/logging"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/middleware"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository/memory"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/router"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/service"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/telemetry"
)

const serviceName = "gym-booking"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := logging.New(os.Stdout, cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// members is what the ledger and the admin handler need from the member
// directory.
type members interface {
	service.MemberDirectory
	handler.MemberWriter
}

// wallets is what the ledger and the admin handler need from the payment
// service.
type wallets interface {
	service.PaymentService
	handler.WalletAdmin
}

// storage bundles the backends selected by STORE_DRIVER.
type storage struct {
	store   repository.Store
	members members
	wallets wallets
	pingers []handler.Pinger
	closers []func() error
}

func (s *storage) close() {
	for _, c := range s.closers {
		_ = c()
	}
}

func openStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return &storage{store: memory.New(), members: memory.NewDirectory(), wallets: memory.NewWallets()}, nil

	case config.DriverMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.Booking.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		st := &storage{
			store:   repository.NewSQLStore(db, database.MySQL),
			members: repository.NewMemberRepo(db),
			wallets: repository.NewWalletRepo(db, database.MySQL),
			pingers: []handler.Pinger{db},
			closers: []func() error{db.Close},
		}
		if err := database.Migrate(ctx, db, database.MySQL); err != nil {
			st.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if err := database.MigrateWallet(ctx, db, database.MySQL); err != nil {
			st.close()
			return nil, fmt.Errorf("migrate wallet: %w", err)
		}
		return st, nil

	case config.DriverSQLite:
		// the wallet lives in its own file: a drop-in charge runs while
		// the booking transaction holds the only scheduling connection
		db, err := openSQLiteFile(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		walletDB, err := openSQLiteFile(cfg.WalletSQLitePath)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		st := &storage{
			store:   repository.NewSQLStore(db, database.SQLite),
			members: repository.NewMemberRepo(db),
			wallets: repository.NewWalletRepo(walletDB, database.SQLite),
			pingers: []handler.Pinger{db, walletDB},
			closers: []func() error{db.Close, walletDB.Close},
		}
		if err := database.Migrate(ctx, db, database.SQLite); err != nil {
			st.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if err := database.MigrateWallet(ctx, walletDB, database.SQLite); err != nil {
			st.close()
			return nil, fmt.Errorf("migrate wallet: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openSQLiteFile(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

func policy(b config.BookingConfig) service.Policy {
	return service.Policy{
		CancelCutoff:        b.CancelCutoff,
		LatestBookingOffset: b.LatestOffset,
		BookingOpensBefore:  b.OpensBefore,
		CheckInOpensBefore:  b.CheckInOpensBefore,
		LockTimeout:         b.LockTimeout,
		RatingEditWindow:    b.RatingEditWindow,
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	logger.Info("storage ready", "driver", cfg.StoreDriver)

	// Redis is optional: without it rate limiting and caching are off and
	// every instance sweeps on its own.
	rdb := config.NewRedisClient(cfg.Redis)
	var locker service.Locker
	if rdb != nil {
		defer rdb.Close()
		locker = repository.NewRedisLocker(rdb, "gym:lock")
	} else {
		logger.Warn("redis unreachable, rate limiting and caching disabled", "addr", cfg.Redis.Address())
	}

	opts := []service.Option{service.WithLogger(logger), service.WithTracer(telemetry.Tracer())}
	var (
		dispatcher *queue.Dispatcher
		publisher  *queue.AMQPPublisher
	)
	if cfg.NotifyEnabled {
		publisher = queue.NewAMQPPublisher(cfg.RabbitMQURL, logger)
		defer publisher.Close()
		dispatcher = queue.NewDispatcher(publisher, cfg.NotifyBuffer, logger)
		dispatcher.Start(ctx)
		opts = append(opts, service.WithNotifier(dispatcher))

		go func() {
			if err := queue.StartNotificationConsumer(ctx, cfg.RabbitMQURL, cfg.NotifyLogPath, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
	}

	ledger := service.NewLedger(st.store, st.members, st.wallets, policy(cfg.Booking), opts...)
	catalog := service.NewCatalog(st.store, time.Now)
	packages := service.NewPackageLedger(st.store, time.Now)

	sweeper := service.NewSweeper(ledger, locker, cfg.SweepInterval, cfg.ReconcileInterval, logger)
	sweeper.Start(ctx)

	e := newServer(cfg, logger, rdb, st, ledger, catalog, packages)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			sweeper.Wait()
			return err
		}
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	sweeper.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return nil
}

func newServer(cfg config.Config, logger *slog.Logger, rdb *redis.Client, st *storage,
	ledger *service.Ledger, catalog *service.Catalog, packages *service.PackageLedger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	router.RegisterRoutes(e, st.pingers...)
	router.RegisterPublic(e, handler.NewPublicHandler(ledger, catalog, packages), middleware.NewRedisCache(cfg.Cache, rdb))
	router.RegisterMember(e, handler.NewMemberHandler(ledger, packages), cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb, logger))
	router.RegisterAdmin(e, handler.NewAdminHandler(ledger, catalog, packages, st.members, st.wallets), cfg.JWTSecret)
	return e
}
