package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/internal/config"
	"github.com/aretw0/webflow/pkg/adapters/file"
	flowdocs "github.com/aretw0/webflow/pkg/adapters/loam"
	"github.com/aretw0/webflow/pkg/adapters/memory"
	"github.com/aretw0/webflow/pkg/adapters/redis"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/expr"
	"github.com/aretw0/webflow/pkg/observability"
	"github.com/aretw0/webflow/pkg/persistence/middleware"
	"github.com/aretw0/webflow/pkg/ports"
)

// Stack is an engine together with the parts the commands inspect or close.
type Stack struct {
	Engine  *webflow.Engine
	Locator *flowdocs.Locator
	Store   ports.ExecutionStore
	// Metrics and Registry are set when metrics were requested.
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	closers []io.Closer
}

// Close releases connections opened for the store.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// StackOptions tunes what NewStack wires in.
type StackOptions struct {
	Metrics bool
	// Listeners are added after the logging and metrics listeners.
	Listeners []domain.Listener
}

// NewLocator opens the flow documents under cfg.Definitions with the
// built-in actions.
func NewLocator(cfg *config.Config, logger *slog.Logger) (*flowdocs.Locator, error) {
	return flowdocs.Open(cfg.Definitions,
		flowdocs.WithActions(BuiltinActions(logger)),
		flowdocs.WithExpressions(expr.NewEnv()),
	)
}

// NewStack initializes an engine following cfg.
func NewStack(cfg *config.Config, logger *slog.Logger, opts StackOptions) (*Stack, error) {
	locator, err := NewLocator(cfg, logger)
	if err != nil {
		return nil, err
	}

	stack := &Stack{Locator: locator}
	store, locker, err := stack.newStore(cfg)
	if err != nil {
		return nil, err
	}
	stack.Store = store

	listeners := []domain.Listener{observability.NewLogger(logger)}
	if opts.Metrics {
		stack.Registry = prometheus.NewRegistry()
		stack.Metrics = observability.NewMetrics(stack.Registry)
		listeners = append(listeners, stack.Metrics)
	}
	listeners = append(listeners, opts.Listeners...)

	engineOpts := []webflow.Option{
		webflow.WithLogger(logger),
		webflow.WithStore(store),
		webflow.WithLockTTL(cfg.LockTTL),
		webflow.WithListeners(listeners...),
	}
	if locker != nil {
		engineOpts = append(engineOpts, webflow.WithLocker(locker))
	}

	engine, err := webflow.New(locator, engineOpts...)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	stack.Engine = engine
	return stack, nil
}

func (s *Stack) newStore(cfg *config.Config) (ports.ExecutionStore, ports.DistributedLocker, error) {
	var (
		store  ports.ExecutionStore
		locker ports.DistributedLocker
	)
	switch cfg.Store.Backend {
	case config.BackendFile:
		store = file.New(cfg.Store.Path)
	case config.BackendRedis:
		rc := cfg.Store.Redis
		client := goredis.NewClient(&goredis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		s.closers = append(s.closers, client)
		store = redis.NewFromClient(client,
			redis.WithPrefix(rc.Prefix+"execution:"),
			redis.WithTTL(rc.TTL),
		)
		locker = redis.NewLocker(client, rc.Prefix)
	case config.BackendMemory:
		store = memory.NewStore()
	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidBackend, cfg.Store.Backend)
	}

	var mws []middleware.Middleware
	if len(cfg.Security.PIIPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Security.PIIPatterns))
	}
	active, fallback, err := cfg.Security.Keys()
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(store, mws...), locker, nil
}
