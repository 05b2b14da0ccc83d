package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/waypoint/internal/validator"
	"github.com/aretw0/waypoint/pkg/domain"
)

// ConfigInput carries the editable header fields of a config.
type ConfigInput struct {
	ID         string `json:"id"`
	ObjectType string `json:"object_type"`
	Name       string `json:"name"`
}

// CreateConfig stores a new, empty draft config.
func (s *Service) CreateConfig(ctx context.Context, caller Caller, in ConfigInput) (*domain.Definition, error) {
	if strings.TrimSpace(caller.TenantID) == "" {
		return nil, missing("tenant_id")
	}
	now := s.now().UTC()
	def := &domain.Definition{
		Config: domain.LifecycleConfig{
			ID:         in.ID,
			TenantID:   caller.TenantID,
			ObjectType: in.ObjectType,
			Name:       in.Name,
			Status:     domain.ConfigDraft,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		States:      []domain.State{},
		Transitions: []domain.Transition{},
	}
	if err := check(def); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(caller.TenantID, in.ID), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock config %s: %w", in.ID, err)
	}
	defer func() { _ = unlock(context.WithoutCancel(ctx)) }()

	if _, err := s.configs.Get(ctx, caller.TenantID, in.ID); err == nil {
		return nil, fmt.Errorf("config %s: %w", in.ID, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := s.configs.Save(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to save config %s: %w", in.ID, err)
	}
	s.committed(ctx, caller, in.ID, mutation{
		action:       domain.AuditConfigCreated,
		resourceType: "config",
		resourceID:   in.ID,
		payload:      map[string]any{"object_type": in.ObjectType, "name": in.Name},
	})
	return def, nil
}

func (s *Service) ListConfigs(ctx context.Context, caller Caller) ([]domain.LifecycleConfig, error) {
	return s.configs.List(ctx, caller.TenantID)
}

func (s *Service) GetConfig(ctx context.Context, caller Caller, configID string) (*domain.Definition, error) {
	return s.configs.Get(ctx, caller.TenantID, configID)
}

// UpdateConfig changes the name and object type. The id is immutable.
func (s *Service) UpdateConfig(ctx context.Context, caller Caller, configID string, in ConfigInput) (*domain.Definition, error) {
	return s.mutate(ctx, caller, configID, mutation{
		action:       domain.AuditConfigUpdated,
		resourceType: "config",
		resourceID:   configID,
		payload:      map[string]any{"object_type": in.ObjectType, "name": in.Name},
	}, func(def *domain.Definition) error {
		if in.ID != "" && in.ID != configID {
			return &domain.ValidationError{Violations: []domain.Violation{{
				Code: domain.CodeInvalidValue, Path: "id", Message: "config id cannot change",
			}}}
		}
		if in.Name != "" {
			def.Config.Name = in.Name
		}
		if in.ObjectType != "" {
			def.Config.ObjectType = in.ObjectType
		}
		return nil
	})
}

// DeleteConfig removes a config nobody is enrolled in.
func (s *Service) DeleteConfig(ctx context.Context, caller Caller, configID string) error {
	unlock, err := s.locker.Lock(ctx, lockKey(caller.TenantID, configID), lockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock config %s: %w", configID, err)
	}
	defer func() { _ = unlock(context.WithoutCancel(ctx)) }()

	n, err := s.statuses.CountByConfig(ctx, caller.TenantID, configID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d objects are governed by config %q", domain.ErrConfigInUse, n, configID)
	}
	if err := s.configs.Delete(ctx, caller.TenantID, configID); err != nil {
		return err
	}
	s.committed(ctx, caller, configID, mutation{
		action:       domain.AuditConfigDeleted,
		resourceType: "config",
		resourceID:   configID,
	})
	return nil
}

// ActivateConfig validates the whole definition and promotes it to active.
// It returns the validator's warnings alongside the definition.
func (s *Service) ActivateConfig(ctx context.Context, caller Caller, configID string) (*domain.Definition, validator.Report, error) {
	var report validator.Report
	def, err := s.mutate(ctx, caller, configID, mutation{
		action:       domain.AuditConfigActivated,
		resourceType: "config",
		resourceID:   configID,
	}, func(def *domain.Definition) error {
		def.Config.Status = domain.ConfigActive
		r, err := validator.Validate(def)
		report = r
		return err
	})
	return def, report, err
}

// DisableConfig stops intake; history and enrollments are kept.
func (s *Service) DisableConfig(ctx context.Context, caller Caller, configID string) (*domain.Definition, error) {
	return s.mutate(ctx, caller, configID, mutation{
		action:       domain.AuditConfigDisabled,
		resourceType: "config",
		resourceID:   configID,
	}, func(def *domain.Definition) error {
		def.Config.Status = domain.ConfigDisabled
		return nil
	})
}

// Import upserts whole definitions, e.g. from a definitions directory at startup.
// Each one must be fully valid unless it is a draft.
func (s *Service) Import(ctx context.Context, caller Caller, defs []*domain.Definition) error {
	var errs []error
	for _, def := range defs {
		if err := s.importOne(ctx, caller, def); err != nil {
			errs = append(errs, fmt.Errorf("config %s: %w", def.Config.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) importOne(ctx context.Context, caller Caller, def *domain.Definition) error {
	def = def.Clone()
	if def.Config.TenantID == "" {
		def.Config.TenantID = caller.TenantID
	}
	now := s.now().UTC()
	if def.Config.CreatedAt.IsZero() {
		def.Config.CreatedAt = now
	}
	def.Config.UpdatedAt = now
	if err := check(def); err != nil {
		return err
	}

	owner := Caller{TenantID: def.Config.TenantID, Actor: caller.Actor}
	unlock, err := s.locker.Lock(ctx, lockKey(owner.TenantID, def.Config.ID), lockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = unlock(context.WithoutCancel(ctx)) }()

	action := domain.AuditConfigCreated
	if existing, err := s.configs.Get(ctx, owner.TenantID, def.Config.ID); err == nil {
		action = domain.AuditConfigUpdated
		def.Config.CreatedAt = existing.Config.CreatedAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := s.configs.Save(ctx, def); err != nil {
		return err
	}
	s.committed(ctx, owner, def.Config.ID, mutation{
		action:       action,
		resourceType: "config",
		resourceID:   def.Config.ID,
		payload:      map[string]any{"source": "import", "status": string(def.Config.Status)},
	})
	return nil
}
