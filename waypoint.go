package waypoint

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/internal/validator"
	loamAdapter "github.com/aretw0/waypoint/pkg/adapters/loam"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/adapters/webhook"
	"github.com/aretw0/waypoint/pkg/admin"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/registry"
)

// Version is the library version reported by the CLI and the HTTP /info endpoint.
const Version = "0.4.0"

// DefaultTenant owns definition files that do not name a tenant.
const DefaultTenant = "default"

// EnrollRequest places an object under a config.
type EnrollRequest = runtime.EnrollRequest

// Engine is the high-level entry point of the library. It wires the transition
// runtime, the admin service, the config cache and the action registry.
type Engine struct {
	runtime  *runtime.Engine
	admin    *admin.Service
	configs  ports.ConfigRepository
	statuses ports.StatusStore
	cache    *middleware.Cache
	registry *registry.Registry
	audit    ports.AuditLog
	locker   ports.Locker

	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	defaultTenant string
	cacheOpts     []middleware.CacheOption
	noCache       bool
	piiPatterns   []string
	webhookOpts   []webhook.Option
	runtimeOpts   []runtime.EngineOption
	Name          string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithConfigRepository sets the authoritative config store (default: in memory).
func WithConfigRepository(repo ports.ConfigRepository) Option {
	return func(e *Engine) { e.configs = repo }
}

// WithStatusStore sets the object status store (default: in memory).
func WithStatusStore(store ports.StatusStore) Option {
	return func(e *Engine) { e.statuses = store }
}

// WithAuditLog sets the audit sink (default: in memory, mirrored to the logger).
func WithAuditLog(audit ports.AuditLog) Option {
	return func(e *Engine) { e.audit = audit }
}

// WithLocker sets the lock serializing admin edits of one config (default: in process).
func WithLocker(l ports.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithExecutor registers exec for actionType, replacing any previous executor.
func WithExecutor(actionType domain.ActionType, exec ports.ActionExecutor) Option {
	return func(e *Engine) { e.registry.Register(actionType, exec) }
}

// WithWebhookOptions configures the built-in webhook executor.
func WithWebhookOptions(opts ...webhook.Option) Option {
	return func(e *Engine) { e.webhookOpts = append(e.webhookOpts, opts...) }
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = e.hooks.Merge(hooks) }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithDefaultTenant sets the tenant of definition files without tenant_id.
func WithDefaultTenant(tenant string) Option {
	return func(e *Engine) { e.defaultTenant = tenant }
}

// WithCacheTTL bounds how long a cached definition is served (0 keeps it until invalidated).
func WithCacheTTL(d time.Duration) Option {
	return func(e *Engine) { e.cacheOpts = append(e.cacheOpts, middleware.WithTTL(d)) }
}

// WithoutCache makes every transition read the config store directly.
func WithoutCache() Option {
	return func(e *Engine) { e.noCache = true }
}

// WithPIIMasking masks audit payload keys matching any of the regular expressions.
func WithPIIMasking(patterns ...string) Option {
	return func(e *Engine) { e.piiPatterns = append(e.piiPatterns, patterns...) }
}

// WithActionTimeout sets the default timeout of actions that do not set one.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) { e.runtimeOpts = append(e.runtimeOpts, runtime.WithActionTimeout(d)) }
}

// WithSyncEntryActions runs entry actions before ApplyTransition returns.
func WithSyncEntryActions() Option {
	return func(e *Engine) { e.runtimeOpts = append(e.runtimeOpts, runtime.WithSyncEntryActions()) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now)) }
}

// New initializes an Engine. When definitionsDir is not empty, every definition found
// there (Markdown frontmatter, YAML or JSON) is imported into the config store.
func New(definitionsDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		registry:      registry.NewRegistry(),
		defaultTenant: DefaultTenant,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if definitionsDir != "" {
		absPath, err := filepath.Abs(definitionsDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)
		eng.logger = eng.logger.With("definitions", eng.Name)
	}
	if eng.configs == nil {
		eng.configs = memory.NewRepository()
	}
	if eng.statuses == nil {
		eng.statuses = memory.NewStore()
	}
	if eng.audit == nil {
		eng.audit = memory.NewAuditLog(eng.logger)
	}
	if len(eng.piiPatterns) > 0 {
		eng.audit = middleware.NewPIIMiddleware(eng.piiPatterns)(eng.audit)
	}
	if eng.locker == nil {
		eng.locker = memory.NewLocker()
	}
	if !eng.registry.Has(domain.ActionWebhook) {
		webhookOpts := append([]webhook.Option{webhook.WithLogger(eng.logger)}, eng.webhookOpts...)
		eng.registry.Register(domain.ActionWebhook, webhook.NewExecutor(webhookOpts...))
	}

	reads := eng.configs
	adminOpts := []admin.Option{
		admin.WithAuditLog(eng.audit),
		admin.WithLocker(eng.locker),
		admin.WithLogger(eng.logger),
	}
	if !eng.noCache {
		eng.cache = middleware.NewCache(eng.configs, eng.cacheOpts...)
		reads = eng.cache
		adminOpts = append(adminOpts, admin.WithInvalidator(eng.cache))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithAuditLog(eng.audit),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(reads, eng.statuses, eng.registry, runtimeOpts...)
	eng.admin = admin.NewService(eng.configs, eng.statuses, eng.runtime, adminOpts...)

	if definitionsDir != "" {
		if _, err := eng.ImportDir(context.Background(), definitionsDir); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// ImportDir upserts every definition of dir into the config store and returns how many
// were imported.
func (e *Engine) ImportDir(ctx context.Context, dir string) (int, error) {
	source, err := loamAdapter.Open(dir, e.defaultTenant)
	if err != nil {
		return 0, err
	}
	defs, err := source.List(ctx)
	if err != nil {
		return 0, err
	}
	caller := admin.Caller{TenantID: e.defaultTenant, Actor: domain.SystemActor}
	if err := e.admin.Import(ctx, caller, defs); err != nil {
		return 0, fmt.Errorf("failed to import definitions from %s: %w", dir, err)
	}
	e.logger.Info("definitions imported", "count", len(defs))
	return len(defs), nil
}

// Enroll places an object at the initial state of an active config.
func (e *Engine) Enroll(ctx context.Context, req EnrollRequest) (*domain.ObjectLifecycleStatus, error) {
	return e.runtime.Enroll(ctx, req)
}

// ApplyTransition fires a named transition on an object if its guard holds.
func (e *Engine) ApplyTransition(ctx context.Context, req domain.ApplyRequest) (*domain.TransitionResult, error) {
	return e.runtime.ApplyTransition(ctx, req)
}

// GetStatus returns the current state and history of an object.
func (e *Engine) GetStatus(ctx context.Context, objectID string) (*domain.ObjectLifecycleStatus, error) {
	return e.runtime.GetStatus(ctx, objectID)
}

// Evaluate dry-runs the guard of a transition.
func (e *Engine) Evaluate(ctx context.Context, tenantID, configID, transitionID string, data map[string]any) (domain.Evaluation, error) {
	return e.runtime.Evaluate(ctx, tenantID, configID, transitionID, data)
}

// Wait blocks until background entry actions have finished.
func (e *Engine) Wait() {
	e.runtime.Wait()
}

// Admin returns the config management service.
func (e *Engine) Admin() *admin.Service {
	return e.admin
}

// Registry returns the action executor registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// AuditLog returns the audit sink in use.
func (e *Engine) AuditLog() ports.AuditLog {
	return e.audit
}

// Validate checks the structural rules of a definition.
func Validate(def *domain.Definition) (validator.Report, error) {
	return validator.Validate(def)
}
