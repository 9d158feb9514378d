package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/wrale/keycloak-device-bot/cmd/keycloak-device-bot/handlers/webhook"
	"github.com/wrale/keycloak-device-bot/internal/bot"
	"github.com/wrale/keycloak-device-bot/internal/chat"
	"github.com/wrale/keycloak-device-bot/internal/claims"
	"github.com/wrale/keycloak-device-bot/internal/deviceflow"
	"github.com/wrale/keycloak-device-bot/internal/oauth"
	"github.com/wrale/keycloak-device-bot/internal/telegram"
	"github.com/wrale/keycloak-device-bot/internal/templates"
)

// Version is set by the build process
var Version = "dev"

func main() {
	// A .env file is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		lvl,
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	provider, err := oauth.NewKeycloakProvider(oauth.KeycloakConfig{
		Config: oauth.Config{
			ClientID:     cfg.KeycloakClientID,
			ClientSecret: cfg.KeycloakClientSecret,
			BaseURL:      cfg.KeycloakURL,
			Timeout:      cfg.ProviderTimeout,
		},
		Realm: cfg.KeycloakRealm,
	})
	if err != nil {
		return fmt.Errorf("creating keycloak provider: %w", err)
	}

	extractor, err := newExtractor(ctx, cfg, provider, logger)
	if err != nil {
		return err
	}

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	flow := deviceflow.NewFlow(store, provider, extractor,
		deviceflow.WithDefaultExpiry(cfg.SessionExpiry),
		deviceflow.WithLogger(logger.Named("flow")),
		deviceflow.WithMetrics(deviceflow.NewMetrics(registry)),
	)

	// The Bot API library reports polling retries through its own logger
	if err := tgbotapi.SetLogger(zap.NewStdLog(logger.Named("tgbotapi"))); err != nil {
		return fmt.Errorf("setting Bot API logger: %w", err)
	}

	tg, err := telegram.NewClient(cfg.TelegramToken, telegram.WithBaseURL(cfg.TelegramAPIURL))
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}
	logger.Info("connected to Telegram", zap.String("bot", tg.Username()))

	tmpl, err := templates.LoadTemplates()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	dispatcher := chat.NewDispatcher()
	bot.New(flow, tg, tmpl,
		bot.WithLogger(logger.Named("bot")),
		bot.WithQRCode(cfg.SendQRCode),
	).Register(dispatcher)

	handleUpdate := telegram.Dispatch(dispatcher, logger.Named("telegram"))

	var webhookHandler http.Handler
	if cfg.UpdateMode == modeWebhook {
		webhookHandler = webhook.New(cfg.WebhookSecret, tg, handleUpdate, logger.Named("webhook"))
	}

	srv := newServer(flow, registry, webhookHandler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.Int("port", cfg.Port), zap.String("update_mode", cfg.UpdateMode))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down server", zap.Error(err))
			return httpServer.Close()
		}
		return nil
	})

	if cfg.UpdateMode == modePolling {
		poller := telegram.NewPoller(tg, handleUpdate, logger.Named("poller"))
		g.Go(func() error {
			if err := poller.Run(ctx); err != nil {
				return fmt.Errorf("polling updates: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// newExtractor verifies token signatures against the realm's JWKS unless disabled
func newExtractor(ctx context.Context, cfg Config, provider *oauth.KeycloakProvider, logger *zap.Logger) (*claims.Extractor, error) {
	if !cfg.VerifyTokenSignature {
		logger.Warn("access token signatures are not verified; identities are display only")
		return claims.NewExtractor(), nil
	}

	keys, err := claims.NewJWKSKeySet(ctx, provider.CertsURL(), provider.HTTPClient())
	if err != nil {
		return nil, fmt.Errorf("creating key set: %w", err)
	}
	return claims.NewExtractor(claims.WithKeySet(keys), claims.WithIssuer(provider.Issuer())), nil
}

// newStore uses Redis when REDIS_URL is set and process memory otherwise
func newStore(ctx context.Context, cfg Config, logger *zap.Logger) (deviceflow.Store, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory session store")
		return deviceflow.NewMemoryStore(time.Minute), func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	logger.Info("using redis session store")
	return deviceflow.NewRedisStore(redisClient), func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("error closing Redis connection", zap.Error(err))
		}
	}, nil
}
