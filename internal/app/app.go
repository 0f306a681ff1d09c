package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/LLMConfigService/internal/config"
	"github.com/router-for-me/LLMConfigService/internal/db"
	"github.com/router-for-me/LLMConfigService/internal/http/api"
	"github.com/router-for-me/LLMConfigService/internal/locking"
	"github.com/router-for-me/LLMConfigService/internal/proxy"
	"github.com/router-for-me/LLMConfigService/internal/registry"
	"github.com/router-for-me/LLMConfigService/internal/sdksync"
	"github.com/router-for-me/LLMConfigService/internal/service"
	"github.com/router-for-me/LLMConfigService/internal/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// App holds the process-scoped components.
type App struct {
	Config  config.AppConfig
	DB      *gorm.DB
	Locks   *locking.Manager
	Service *service.Service
	Engine  *gin.Engine
}

// ConfigureLogging applies the configured logrus level and format.
func ConfigureLogging(cfg config.LogConfig) error {
	level, errParse := log.ParseLevel(cfg.Level)
	if errParse != nil {
		return fmt.Errorf("log level: %w", errParse)
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// Build opens the database, migrates it and wires the service and HTTP engine.
func Build(ctx context.Context, cfg config.AppConfig) (*App, error) {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	ready, errReady := SchemaReady(conn)
	if errReady != nil {
		closeDB(conn)
		return nil, errReady
	}
	if !ready {
		log.WithField("dialect", db.DialectName(conn)).Info("initializing database schema")
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		closeDB(conn)
		return nil, errMigrate
	}

	locks := locking.NewManager(locking.Settings{
		RedisAddr:     cfg.Lock.RedisAddr,
		RedisPassword: cfg.Lock.RedisPassword,
		RedisDB:       cfg.Lock.RedisDB,
		RedisPrefix:   cfg.Lock.RedisPrefix,
		TTL:           cfg.Lock.TTL,
	}, nil, nil)

	st := store.NewGormStore(conn)
	var syncer service.Syncer
	if cfg.SDKConfigPath != "" {
		syncer = sdksync.NewSyncer(cfg.SDKConfigPath)
	}
	svc := service.New(st, registry.New(st, locks, nil), proxy.NewResolver(st), syncer)

	engine := api.NewEngine()
	api.RegisterRoutes(engine, svc, cfg.Auth.Secret)

	return &App{
		Config:  cfg,
		DB:      conn,
		Locks:   locks,
		Service: svc,
		Engine:  engine,
	}, nil
}

// Close releases the lock backend and database handle.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Locks != nil {
		if errClose := a.Locks.Close(); errClose != nil {
			errs = append(errs, errClose)
		}
	}
	if a.DB != nil {
		if sqlDB, errDB := a.DB.DB(); errDB == nil {
			if errClose := sqlDB.Close(); errClose != nil {
				errs = append(errs, errClose)
			}
		}
	}
	return errors.Join(errs...)
}

// RunServer serves the HTTP boundary until ctx is cancelled or a termination signal arrives.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	gin.SetMode(gin.ReleaseMode)
	if errLog := ConfigureLogging(cfg.Log); errLog != nil {
		return errLog
	}

	application, errBuild := Build(ctx, cfg)
	if errBuild != nil {
		return errBuild
	}
	defer func() {
		if errClose := application.Close(); errClose != nil {
			log.WithError(errClose).Warn("close application")
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           application.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithFields(log.Fields{"listen": cfg.Listen, "config": cfg.ConfigPath}).Info("starting llm config service")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", errServe)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down llm config service")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func closeDB(conn *gorm.DB) {
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}
