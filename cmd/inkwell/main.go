package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/adapter/cache"
	"github.com/inkwellhq/inkwell/internal/adapter/provider"
	"github.com/inkwellhq/inkwell/internal/bootstrap"
	"github.com/inkwellhq/inkwell/internal/config"
	httptransport "github.com/inkwellhq/inkwell/internal/http"
	"github.com/inkwellhq/inkwell/internal/http/handler"
	httpmiddleware "github.com/inkwellhq/inkwell/internal/http/middleware"
	apimiddleware "github.com/inkwellhq/inkwell/internal/middleware"
	"github.com/inkwellhq/inkwell/internal/oauth"
	"github.com/inkwellhq/inkwell/internal/repository"
	"github.com/inkwellhq/inkwell/internal/server"
	"github.com/inkwellhq/inkwell/internal/service"
	"github.com/inkwellhq/inkwell/internal/telemetry"
	"github.com/inkwellhq/inkwell/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newRefreshTokenRepository,
			newPostRepository,
			newCategoryRepository,
			newRedisClient,
			newProviderClient,
			newKeySource,
			newRateLimiter,
			token.NewService,
			newExchanger,
			newOneTapVerifier,
			service.NewAuthService,
			newContentService,
			handler.NewAuthHandler,
			handler.NewContentHandler,
			newSessionMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	tp, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return tp.Shutdown(stopCtx)
		},
	})

	return tp, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newRefreshTokenRepository(pool *pgxpool.Pool) repository.RefreshTokenRepository {
	return repository.NewPostgresRefreshTokenRepo(pool)
}

func newPostRepository(pool *pgxpool.Pool) repository.PostRepository {
	return repository.NewPostgresPostRepo(pool)
}

func newCategoryRepository(pool *pgxpool.Pool) repository.CategoryRepository {
	return repository.NewPostgresCategoryRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newProviderClient(cfg config.Config) *provider.HTTPClient {
	return provider.NewHTTPClient(nil, cfg.Google, cfg.GitHub)
}

func newKeySource(client redis.UniversalClient, httpClient *provider.HTTPClient) provider.KeySource {
	return cache.NewRedisKeyCache(client, httpClient)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newExchanger(client *provider.HTTPClient, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *oauth.Exchanger {
	return oauth.NewExchanger(client, users, node, logger)
}

func newOneTapVerifier(keys provider.KeySource, cfg config.Config) *oauth.OneTapVerifier {
	return oauth.NewOneTapVerifier(keys, cfg.Google.ClientID)
}

func newContentService(posts repository.PostRepository, categories repository.CategoryRepository, node *snowflake.Node, logger *zap.Logger) *service.ContentService {
	return service.NewContentService(posts, categories, node, logger)
}

func newSessionMiddleware(tokens *token.Service, auth *service.AuthService) *httpmiddleware.Session {
	return &httpmiddleware.Session{Tokens: tokens, Auth: auth}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			logger.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
