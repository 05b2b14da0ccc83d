// Package admin manages lifecycle configs and exposes the runtime operations to
// administrative surfaces. Every config mutation is validated, serialized per config,
// written to the audit log and evicted from the config cache.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/internal/validator"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

const lockTTL = 30 * time.Second

// Caller identifies who performs an operation and on behalf of which tenant.
type Caller struct {
	TenantID string
	Actor    string
}

func (c Caller) actor() string {
	if strings.TrimSpace(c.Actor) == "" {
		return domain.SystemActor
	}
	return c.Actor
}

// Invalidator evicts a cached config definition.
type Invalidator interface {
	Invalidate(tenantID, configID string)
}

// Service implements the administrative operations.
type Service struct {
	configs     ports.ConfigRepository
	statuses    ports.StatusStore
	engine      *runtime.Engine
	audit       ports.AuditLog
	locker      ports.Locker
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithAuditLog(audit ports.AuditLog) Option {
	return func(s *Service) { s.audit = audit }
}

// WithLocker replaces the in-process locker, e.g. with a Redis one shared by replicas.
func WithLocker(l ports.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithInvalidator registers the cache the engine reads configs through.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the admin service. configs should be the authoritative
// repository, not a cached view of it.
func NewService(configs ports.ConfigRepository, statuses ports.StatusStore, engine *runtime.Engine, opts ...Option) *Service {
	s := &Service{
		configs:  configs,
		statuses: statuses,
		engine:   engine,
		locker:   memory.NewLocker(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// check validates a definition about to be saved. Drafts and disabled configs may
// still lack an initial state; everything else must hold.
func check(def *domain.Definition) error {
	_, err := validator.Validate(def)
	if err == nil {
		return nil
	}
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	if def.Config.Status == domain.ConfigActive {
		return ve
	}
	if rest := ve.Without(domain.CodeInitialState); rest != nil {
		return rest
	}
	return nil
}

// mutation describes one audited change to a config.
type mutation struct {
	action       string
	resourceType string
	resourceID   string
	payload      map[string]any
}

// mutate runs fn on the stored definition under the config lock, then validates,
// saves, evicts and audits the result.
func (s *Service) mutate(ctx context.Context, caller Caller, configID string, m mutation, fn func(def *domain.Definition) error) (*domain.Definition, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(caller.TenantID, configID), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock config %s: %w", configID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release config lock", "config_id", configID, "error", err)
		}
	}()

	def, err := s.configs.Get(ctx, caller.TenantID, configID)
	if err != nil {
		return nil, err
	}
	if err := fn(def); err != nil {
		return nil, err
	}
	def.Config.UpdatedAt = s.now().UTC()
	if err := check(def); err != nil {
		return nil, err
	}
	if err := s.configs.Save(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to save config %s: %w", configID, err)
	}
	s.committed(ctx, caller, configID, m)
	return def, nil
}

func (s *Service) committed(ctx context.Context, caller Caller, configID string, m mutation) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(caller.TenantID, configID)
	}
	s.logger.InfoContext(ctx, "config mutated",
		"tenant_id", caller.TenantID,
		"config_id", configID,
		"action", m.action,
		"actor", caller.actor())
	if s.audit == nil {
		return
	}
	payload := m.payload
	if payload == nil {
		payload = map[string]any{}
	}
	payload["config_id"] = configID
	err := s.audit.Record(ctx, domain.AuditEvent{
		OccurredAt:   s.now().UTC(),
		TenantID:     caller.TenantID,
		Actor:        caller.actor(),
		Action:       m.action,
		ResourceType: m.resourceType,
		ResourceID:   m.resourceID,
		Payload:      payload,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to write audit event", "action", m.action, "error", err)
	}
}

func lockKey(tenantID, configID string) string {
	return "config:" + tenantID + ":" + configID
}

func missing(path string) error {
	return &domain.ValidationError{Violations: []domain.Violation{{
		Code:    domain.CodeMissingField,
		Path:    path,
		Message: path + " is required",
	}}}
}
