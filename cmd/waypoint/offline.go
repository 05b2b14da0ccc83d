package main

import (
	"context"
	"fmt"

	"github.com/aretw0/waypoint"
	loamAdapter "github.com/aretw0/waypoint/pkg/adapters/loam"
	"github.com/aretw0/waypoint/pkg/domain"
)

// loadDefinitions reads every definition under dir without touching a store.
func loadDefinitions(ctx context.Context, dir, defaultTenant string) ([]*domain.Definition, error) {
	source, err := loamAdapter.Open(dir, defaultTenant)
	if err != nil {
		return nil, err
	}
	return source.List(ctx)
}

// findDefinition picks the config of tenant out of dir.
func findDefinition(ctx context.Context, dir, tenant, configID string) (*domain.Definition, error) {
	if tenant == "" {
		tenant = waypoint.DefaultTenant
	}
	defs, err := loadDefinitions(ctx, dir, tenant)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Config.ID == configID && def.Config.TenantID == tenant {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: config %q for tenant %q in %s", domain.ErrNotFound, configID, tenant, dir)
}
