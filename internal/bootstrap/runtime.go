// Package bootstrap assembles the ledger runtime from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"credledger/internal/cache"
	"credledger/internal/config"
	"credledger/internal/contentstore"
	"credledger/internal/database"
	"credledger/internal/featureflags"
	"credledger/internal/ledger"
	"credledger/internal/models"
	"credledger/internal/notifications"
	"credledger/internal/observability"
	"credledger/internal/oracle"
	"credledger/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// InMemory skips the database: nothing is journaled or restored.
	InMemory bool
	// ServiceName labels traces; defaults to "credledger".
	ServiceName string
}

// Runtime holds the wired collaborators of one process.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Ledger *ledger.Ledger
	// Oracle serves write transitions and always asks the upstream.
	Oracle oracle.Oracle
	// ProfileOracle serves read paths and may answer from cache.
	ProfileOracle oracle.Oracle
	Store         contentstore.Store
	Hub           *notifications.Hub
	Flags         *featureflags.Manager

	cancel  context.CancelFunc
	closers []func() error
}

// InitRuntime connects the configured stores, restores the ledger from the
// journal and starts the event subscriber feeding the WebSocket hub.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (rt *Runtime, err error) {
	observability.SetLogger(observability.NewLogger(cfg.Env, cfg.LogLevel))

	rt = &Runtime{
		Config: cfg,
		Hub:    notifications.NewHub(),
		Flags:  featureflags.NewManager(cfg.FeatureFlags),
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel

	if err := rt.initTracing(opts); err != nil {
		return nil, err
	}

	cache.InitRedis(cfg.RedisURL)
	rt.Redis = cache.GetClient()
	if rt.Redis != nil {
		rt.closers = append(rt.closers, cache.Close)
	}

	if rt.Oracle, err = newOracle(cfg); err != nil {
		return nil, err
	}
	rt.ProfileOracle = rt.Oracle
	if rt.Redis != nil {
		rt.ProfileOracle = oracle.NewCached(rt.Oracle, cfg.ReputationCacheTTL)
	}

	if rt.Store, err = newStore(cfg); err != nil {
		return nil, err
	}

	weight, err := ledger.NewWeightPolicy(cfg.WeightPolicy, cfg.WeightDivisor, cfg.WeightMin, cfg.WeightMax)
	if err != nil {
		return nil, err
	}
	publisher, err := rt.initEvents(bg)
	if err != nil {
		return nil, err
	}

	lcfg := ledger.Config{
		PostThreshold:  cfg.PostThreshold,
		MaxTitleLength: cfg.TitleMaxLength,
		Weight:         weight,
		ProfileOracle:  rt.ProfileOracle,
		Publisher:      publisher,
		SilentRevote:   rt.Flags.For(featureflags.SilentRevote),
	}

	var repo repository.LedgerRepository
	if !opts.InMemory {
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		rt.DB = db
		rt.closers = append(rt.closers, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		repo = repository.NewLedgerRepository(db)
		lcfg.Journal = repo
	}

	rt.Ledger = ledger.New(rt.Oracle, lcfg)

	if repo != nil {
		snap, err := repo.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		if err := rt.Ledger.Restore(snap); err != nil {
			return nil, fmt.Errorf("restore ledger: %w", err)
		}
		observability.Logger.Info("ledger restored",
			slog.Int("posts", len(snap.Posts)),
			slog.Int("votes", len(snap.Votes)),
			slog.Int("follows", len(snap.Follows)),
		)
	}

	return rt, nil
}

func (rt *Runtime) initTracing(opts Options) error {
	cfg := rt.Config
	name := opts.ServiceName
	if name == "" {
		name = "credledger"
	}
	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    name,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	if shutdown != nil {
		rt.closers = append(rt.closers, func() error { return shutdown(context.Background()) })
	}
	return nil
}

// initEvents picks the ledger's publisher. With a bus, the hub is fed by the
// bus subscriber so every instance sees every event; without one, the ledger
// publishes to the hub directly.
func (rt *Runtime) initEvents(ctx context.Context) (ledger.Publisher, error) {
	cfg := rt.Config

	type bus interface {
		ledger.Publisher
		StartSubscriber(ctx context.Context, onEvent func(evt models.LedgerEvent)) error
	}

	var b bus
	switch cfg.EventBus {
	case "nats":
		np, err := notifications.ConnectNATS(cfg.NATSURL, cfg.EventChannel)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, np.Close)
		b = np
	case "redis":
		if rt.Redis == nil {
			observability.Logger.Warn("redis unavailable, events stay in-process")
			return rt.Hub, nil
		}
		b = notifications.NewNotifier(rt.Redis, cfg.EventChannel)
	default:
		return rt.Hub, nil
	}

	if err := b.StartSubscriber(ctx, rt.Hub.Deliver); err != nil {
		observability.Logger.Warn("event subscriber failed, delivering locally", "error", err)
		return notifications.Fanout{b, rt.Hub}, nil
	}
	return b, nil
}

func newOracle(cfg *config.Config) (oracle.Oracle, error) {
	switch {
	case cfg.OracleStatic != "":
		return oracle.ParseStatic(cfg.OracleStatic)
	case cfg.OracleURL != "":
		return oracle.NewHTTPOracle(oracle.HTTPConfig{
			BaseURL: cfg.OracleURL,
			Timeout: cfg.OracleTimeout,
			RPS:     cfg.OracleRPS,
			APIKey:  cfg.OracleAPIKey,
		})
	default:
		observability.Logger.Warn("no reputation oracle configured, every account has reputation 0")
		return oracle.NewStatic(nil), nil
	}
}

func newStore(cfg *config.Config) (contentstore.Store, error) {
	switch cfg.ContentStore {
	case "pinata":
		return contentstore.NewPinata(contentstore.PinataConfig{
			APIURL:     cfg.PinataAPIURL,
			GatewayURL: cfg.PinataGatewayURL,
			APIKey:     cfg.PinataAPIKey,
			APISecret:  cfg.PinataAPISecret,
		})
	default:
		return contentstore.NewMemory(), nil
	}
}

// Close stops the subscriber, detaches event clients and releases every
// connection in reverse order of acquisition.
func (rt *Runtime) Close() error {
	if rt.cancel != nil {
		rt.cancel()
	}
	if rt.Hub != nil {
		rt.Hub.Shutdown()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
