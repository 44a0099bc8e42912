package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/assacalos/megvie/internal/config"
	"github.com/assacalos/megvie/internal/handler"
	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/metrics"
	"github.com/assacalos/megvie/internal/middleware"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/service"
	"github.com/assacalos/megvie/internal/sms"
	"github.com/assacalos/megvie/internal/storage"
	"github.com/assacalos/megvie/internal/tokens"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)
	if err := cfg.CheckJWTSecret(); err != nil {
		logger.Error("insecure config", "err", err)
		os.Exit(1)
	}
	if cfg.WellKnownJWTSecret() {
		logger.Warn("auth.jwt_secret is a well-known value, tokens can be forged; set JWT_SECRET")
	}

	db, err := cfg.OpenGormDB()
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	if cfg.Database.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}
	}

	var revoked tokens.Store = tokens.NewDBStore(db)
	if cfg.Redis.Addr != "" {
		rs, err := tokens.NewRedisStore(tokens.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			logger.Error("redis connect failed", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(1)
		}
		defer rs.Close()
		revoked = rs
		logger.Info("token denylist on redis", "addr", cfg.Redis.Addr)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("storage init failed", "type", cfg.Storage.Type, "err", err)
		os.Exit(1)
	}

	gateway := sms.NewHTTPGateway(sms.Config{
		APIKey:                   cfg.SMS.APIKey,
		APIURL:                   cfg.SMS.APIURL,
		DefaultCountryCode:       cfg.SMS.DefaultCountryCode,
		Timeout:                  cfg.SMSTimeout(),
		SimulateWhenUnconfigured: cfg.SMS.SimulateWhenUnconfigured,
	})
	if !gateway.IsConfigured() {
		logger.Warn("sms gateway not configured", "simulate", cfg.SMS.SimulateWhenUnconfigured)
	}

	m := metrics.New()
	authSvc := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.TokenTTL(), revoked)
	users := service.NewUserService(db)
	h := handler.NewHandlers(
		authSvc,
		service.NewMemberService(db, store),
		service.NewFollowUpService(db),
		service.NewActionService(db),
		users,
		service.NewCraftService(db),
		service.NewSmsService(db, gateway, m),
	)

	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLog())
	if cfg.Metrics.Enabled {
		r.Use(m.Middleware())
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"X-New-Token"},
		AllowCredentials: !allowsAny(cfg.Server.CORSOrigins),
	}))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Storage.Type != "s3" {
		r.Static(cfg.Storage.URLPrefix, cfg.Storage.LocalDir)
	}
	handler.Register(r, authSvc, h)

	logger.Info("server starting", "addr", cfg.Addr(), "db", cfg.Database.Driver, "storage", cfg.Storage.Type)
	if err := r.Run(cfg.Addr()); err != nil {
		logger.Error("server failed", "err", err)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Type == "s3" {
		return storage.NewS3(context.Background(), storage.S3Config{
			Region:    cfg.Storage.S3Region,
			Bucket:    cfg.Storage.S3Bucket,
			Prefix:    cfg.Storage.S3Prefix,
			Endpoint:  cfg.Storage.S3Endpoint,
			PublicURL: cfg.Storage.S3URL,
		})
	}
	return storage.NewLocal(cfg.Storage.LocalDir, cfg.StorageURL())
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
