package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webauth/pkg/broker"
	"webauth/pkg/cache"
	"webauth/pkg/config"
	"webauth/pkg/database"
	"webauth/pkg/flash"
	"webauth/pkg/handlers"
	"webauth/pkg/hub"
	"webauth/pkg/logger"
	"webauth/pkg/metrics"
	"webauth/pkg/middleware"
	"webauth/pkg/repository"
	"webauth/pkg/server"
	"webauth/pkg/services"
	"webauth/pkg/token"

	"go.uber.org/zap"
)

const appName = "webauth"

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.LogLevel, !cfg.Production(), appName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	log.Info("database ready")

	var (
		store     cache.Store = cache.Nop{}
		flashOpts []flash.Option
	)

	watchers := hub.New(log)
	publishers := broker.Fanout{watchers}
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("redis connect failed", zap.Error(err))
		}
		defer rdb.Close()
		store = rdb
		flashOpts = append(flashOpts, flash.WithStorage(rdb.Sessions("flash:")))
		publishers = append(publishers, broker.NewRedis(rdb.Client(), cfg.Events.Channel))
		log.Info("redis connected")
	}
	if len(cfg.Events.KafkaBrokers) > 0 {
		publishers = append(publishers, broker.NewKafka(cfg.Events.KafkaBrokers, cfg.Events.Channel))
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.Events.KafkaBrokers))
	}
	events := broker.NewLogged(publishers, log)
	defer events.Close()

	codec, err := token.NewCodec(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		log.Fatal("token codec", zap.Error(err))
	}
	issuer := token.NewIssuer(codec, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())

	m := metrics.New()
	users := repository.NewCachedUserRepository(repository.NewUserRepository(db), store, cfg.UserCacheTTL, log)
	svc := services.NewAuthService(users, issuer, events, m, log)
	profiles := services.NewProfileService(repository.NewProfileRepository(db), events, log)

	if cfg.Admin.Username != "" {
		if err := svc.SeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			log.Fatal("admin seed failed", zap.Error(err))
		}
	}

	cookies := middleware.NewCookieCodec(cfg.Production(), cfg.Auth.CookieDomain)
	fl := flash.NewStore(cfg.Production(), flashOpts...)
	checker := middleware.IdentityChecker{Codec: codec, Cookies: cookies}

	app := server.NewApp(appName, cfg.CORSOrigins, log)
	server.Mount(app, server.Routes{
		Auth:    handlers.NewAuth(svc, cookies, checker, fl, log),
		Admin:   handlers.NewAdmin(svc, log),
		Profile: handlers.NewProfile(profiles, fl, log),
		Session: middleware.Session(middleware.SessionConfig{
			Issuer:  issuer,
			Cookies: cookies,
			Paths:   middleware.NewPathPolicy(cfg.Auth.PublicPaths, cfg.Auth.PublicPrefixes),
			Flash:   fl,
			Metrics: m,
			Logger:  log,
		}),
		Flash:   fl,
		Metrics: m,
		Hub:     watchers,
		Logger:  log,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	log.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
