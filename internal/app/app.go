package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/migasfree/migasfree-backend/internal/admission"
	"github.com/migasfree/migasfree-backend/internal/config"
	"github.com/migasfree/migasfree-backend/internal/envelope"
	"github.com/migasfree/migasfree-backend/internal/httpserver"
	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/keystore"
	"github.com/migasfree/migasfree-backend/internal/logger"
	"github.com/migasfree/migasfree-backend/internal/notify"
	"github.com/migasfree/migasfree-backend/internal/policy"
	"github.com/migasfree/migasfree-backend/internal/redis"
	bundb "github.com/migasfree/migasfree-backend/internal/store/bun"
	redisstore "github.com/migasfree/migasfree-backend/internal/store/redis"
	msync "github.com/migasfree/migasfree-backend/internal/sync"
	"github.com/migasfree/migasfree-backend/internal/taskqueue"
	"github.com/migasfree/migasfree-backend/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	db          *bundb.DB
	admission   *admission.Controller
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	db, repos, err := bundb.New(cfg.DatabasePath, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open database at %s: %v", cfg.DatabasePath, err)
		os.Exit(1)
	}
	loggerClient.Info("Database initialized", logger.String("path", cfg.DatabasePath))

	keys := keystore.New(cfg.KeysDir, loggerClient)
	if err := keys.EnsurePair(keystore.ServerKeyName); err != nil {
		loggerClient.Errorf("Failed to provision server keypair: %v", err)
		os.Exit(1)
	}
	if err := keys.EnsurePair(keystore.PackagerKeyName); err != nil {
		loggerClient.Errorf("Failed to provision packager keypair: %v", err)
		os.Exit(1)
	}

	pol := policy.Default()
	if cfg.PolicyFile != "" {
		pol, err = policy.Load(cfg.PolicyFile)
		if err != nil {
			loggerClient.Errorf("Failed to load policy file %s: %v", cfg.PolicyFile, err)
			os.Exit(1)
		}
		loggerClient.Info("sync policy loaded", logger.String("file", cfg.PolicyFile))
	}

	redisStore := redisstore.NewStore(redisClient)
	queue := taskqueue.NewRedisQueue(redisClient)
	notifier := notify.NewLogNotifier(loggerClient)
	verifier := &msync.StaticVerifier{
		Username:      cfg.AdminUser,
		Password:      cfg.AdminPassword,
		AllowRegister: true,
		AllowPackage:  true,
	}

	syncHandler := msync.NewHandler(msync.Deps{
		Repos:    repos,
		Keys:     keys,
		Codec:    envelope.NewLegacyCodec(cfg.SpoolDir, cfg.UseSHA256),
		Queue:    queue,
		Notifier: notifier,
		Verifier: verifier,
		Stats:    redisStore,
		Log:      loggerClient,
	}, msync.Config{
		AutoRegister:   cfg.AutoRegister,
		HardwarePeriod: cfg.HardwarePeriod,
		Notify: msync.NotifyConfig{
			NewComputer: cfg.NotifyNew,
			NameChange:  cfg.NotifyName,
			IPChange:    cfg.NotifyIP,
			UUIDChange:  cfg.NotifyUUID,
		},
		NotifyUnexpected: cfg.NotifyUnexpected,
		PlatformAllowed:  pol.PlatformAllowed,
	})
	syncHandler.Reconciler().TransitionAllowed = pol.TransitionAllowed

	admissionCtl := admission.New(redisStore, db, loggerClient, admission.Config{
		MaxDBLatency:    cfg.AdmissionMaxDBLatency,
		MaxLoad:         cfg.AdmissionMaxLoad,
		MaxConcurrency:  int64(cfg.AdmissionMaxInflight),
		ProcessInterval: cfg.AdmissionInterval,
		DrainBatch:      cfg.AdmissionDrainBatch,
	})

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		RedisClient:  redisClient,
		DB:           db,
		Repos:        repos,
		Keys:         keys,
		Sync:         syncHandler,
		Verifier:     verifier,
		Admission:    admissionCtl,
		TokenSecret:  cfg.TokenSecret,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		db:          db,
		admission:   admissionCtl,
	}
}

func (a *App) Run() error {
	a.logger.Infof("Starting migasfree backend v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("migasfree %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start admission drain loop
	if err := a.admission.Start(ctx); err != nil {
		return fmt.Errorf("failed to start admission controller: %w", err)
	}
	a.logger.Info("admission controller started",
		logger.Duration("interval", a.cfg.AdmissionInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.admission.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.db.Close(); err != nil {
		a.logger.Warnf("failed to close database: %v", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("Redis closed cleanly")
		}
	}

	a.logger.Info("migasfree backend stopped cleanly")
	return nil
}
