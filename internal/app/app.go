package app

import (
	"fmt"
	"strings"
	"time"

	"devhub/pkg/activity"
	"devhub/pkg/storage"
	"devhub/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	SessionTTL  time.Duration
	RefreshTTL  time.Duration

	// Injectable for tests and local development.
	Store         store.Store
	Objects       storage.ObjectStore
	Sessions      store.SessionStore
	RefreshTokens store.RefreshTokenStore
	Feed          activity.Feed
}

// App is the core application service wiring together persistence,
// artifact storage, sessions, and the activity feed.
type App struct {
	store         store.Store
	objects       storage.ObjectStore
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	feed          activity.Feed
	refreshTTL    time.Duration
	presignExpiry time.Duration
}

// New constructs the application. Dependencies not provided in cfg are
// built from the connection settings.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	objects := cfg.Objects
	if objects == nil {
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for sessions")
		}
		revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		var err error
		sessions, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
	}

	refreshTokens := cfg.RefreshTokens
	if refreshTokens == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for refresh tokens")
		}
		refreshTokens = store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
	}

	feed := cfg.Feed
	if feed == nil {
		var err error
		feed, err = activity.NewRedisFeed(activity.RedisFeedConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("init activity feed: %w", err)
		}
	}

	return &App{
		store:         dataStore,
		objects:       objects,
		sessions:      sessions,
		refreshTokens: refreshTokens,
		feed:          feed,
		refreshTTL:    cfg.RefreshTTL,
		presignExpiry: 15 * time.Minute,
	}, nil
}
