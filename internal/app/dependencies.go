package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/xmoney-playground/internal/config"
	"github.com/noah-isme/xmoney-playground/internal/credentials"
	"github.com/noah-isme/xmoney-playground/internal/events"
	"github.com/noah-isme/xmoney-playground/internal/notify"
	"github.com/noah-isme/xmoney-playground/internal/obs"
	"github.com/noah-isme/xmoney-playground/internal/ratelimit"
	"github.com/noah-isme/xmoney-playground/internal/resilience"
	"github.com/noah-isme/xmoney-playground/internal/signing"
	"github.com/noah-isme/xmoney-playground/internal/xmoney"
)

// Dependencies enumerates the components shared across handlers.
type Dependencies struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Redis       *redis.Client
	Signer      signing.Signer
	XMoney      *xmoney.Client
	Credentials credentials.Store
	Events      *events.Bus
	Limiter     ratelimit.Limiter
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
}

// Build assembles Dependencies from cfg. rdb may be nil when no redis is configured.
func Build(cfg *config.Config, logger zerolog.Logger, rdb *redis.Client) (*Dependencies, error) {
	signer, err := NewSigner(cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewCredentialStore(cfg, rdb)
	if err != nil {
		return nil, err
	}
	limiter, err := NewLimiter(cfg, rdb)
	if err != nil {
		return nil, err
	}
	bus, err := NewEventBus(cfg, rdb, logger)
	if err != nil {
		return nil, err
	}
	return &Dependencies{
		Config:      cfg,
		Logger:      logger,
		Redis:       rdb,
		Signer:      signer,
		XMoney:      NewXMoneyClient(cfg, logger),
		Credentials: store,
		Events:      bus,
		Limiter:     limiter,
	}, nil
}

// NewRedis connects to REDIS_URL and instruments the client. An empty url
// returns a nil client.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewSigner maps the SIGNING_* settings onto a Signer.
func NewSigner(cfg *config.Config) (signing.Signer, error) {
	canon, err := signing.CanonicalizerByName(cfg.SigningCanonical)
	if err != nil {
		return signing.Signer{}, err
	}
	scheme, err := signing.ParseScheme(cfg.SigningScheme)
	if err != nil {
		return signing.Signer{}, err
	}
	enc, err := signing.ParseEncoding(cfg.SigningEncoding)
	if err != nil {
		return signing.Signer{}, err
	}
	return signing.Signer{Canonicalizer: canon, Scheme: scheme, Encoding: enc}, nil
}

// NewCredentialStore selects the backend named by CREDENTIALS_STORE.
func NewCredentialStore(cfg *config.Config, rdb *redis.Client) (credentials.Store, error) {
	switch cfg.CredentialsStore {
	case config.StoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("credentials store %q needs redis", cfg.CredentialsStore)
		}
		return credentials.NewRedisStore(rdb), nil
	case config.StoreEnv:
		return credentials.NewEnvStore()
	default:
		return credentials.NewMemoryStore(), nil
	}
}

// NewLimiter picks the RATE_LIMIT_STRATEGY backend. Without redis every
// strategy degrades to an in-process fixed window.
func NewLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.Limiter, error) {
	switch {
	case rdb == nil:
		return ratelimit.NewMemory("xmoney:ratelimit"), nil
	case cfg.RateLimitStrategy == config.RateLimitFixed:
		return ratelimit.NewRedisFixed(rdb, "xmoney:ratelimit:fixed")
	default:
		return ratelimit.SlidingWindow{Client: rdb, Prefix: "xmoney:ratelimit:"}, nil
	}
}

// NewXMoneyClient builds the REST client from the outbound settings.
func NewXMoneyClient(cfg *config.Config, logger zerolog.Logger) *xmoney.Client {
	return xmoney.NewClient(xmoney.Config{
		LiveBaseURL: cfg.XMoneyLiveBaseURL,
		TestBaseURL: cfg.XMoneyTestBaseURL,
		Timeout:     cfg.OutboundTimeout,
		MaxAttempts: cfg.RetryMaxAttempts,
		Breaker: resilience.Settings{
			MinRequests:  cfg.CircuitMinRequests,
			FailureRatio: cfg.CircuitFailureRatio,
			OpenFor:      cfg.CircuitOpenFor,
			Target:       "xmoney",
		},
		Logger: &logger,
	})
}

// NewEventBus keeps recent widget events in redis when available and adds the
// merchant webhook when WIDGET_WEBHOOK_URL is set.
func NewEventBus(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (*events.Bus, error) {
	var store events.EventStore = &events.MemoryStore{}
	if rdb != nil {
		store = events.RedisStore{R: rdb}
	}
	bus := &events.Bus{
		Store: store,
		Notifiers: []events.Notifier{
			events.LogNotifier{Logger: logger},
			events.MetricsNotifier{},
		},
	}
	if cfg.WidgetWebhookURL == "" {
		return bus, nil
	}
	hook, err := notify.NewWebhook(cfg.WidgetWebhookURL, cfg.WidgetWebhookSecret, cfg.WidgetWebhookTopics, cfg.WidgetWebhookTimeout)
	if err != nil {
		return nil, fmt.Errorf("widget webhook: %w", err)
	}
	hook.HTTP.Logger = &logger
	hook.ReplayTTL = 24 * time.Hour
	if rdb != nil {
		hook.Replay = notify.RedisReplay{Client: rdb}
	} else {
		hook.Replay = &notify.MemoryReplay{}
	}
	bus.Notifiers = append(bus.Notifiers, hook)
	return bus, nil
}
