package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Source adapts a Loam repository of definition documents (Markdown frontmatter,
// YAML or JSON) into lifecycle definitions.
type Source struct {
	Repo          *loam.TypedRepository[DefinitionMetadata]
	DefaultTenant string
}

// New creates a new Loam definition source. Documents without tenant_id are assigned
// to defaultTenant.
func New(repo *loam.TypedRepository[DefinitionMetadata], defaultTenant string) *Source {
	return &Source{Repo: repo, DefaultTenant: defaultTenant}
}

// Open initializes a read-only, strict Loam repository at dir.
// Strict mode makes every adapter return json.Number for numerics, so condition values
// decode the same way whatever the file format.
func Open(dir, defaultTenant string) (*Source, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[DefinitionMetadata](repo), defaultTenant), nil
}

// Get loads one definition by document id ("onboarding" finds onboarding.md).
func (s *Source) Get(ctx context.Context, id string) (*domain.Definition, error) {
	doc, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return s.convert(doc.ID, doc.Data)
}

// List loads every definition of the repository, ordered by config id.
func (s *Source) List(ctx context.Context) ([]*domain.Definition, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	defs := make([]*domain.Definition, 0, len(docs))
	for _, doc := range docs {
		def, err := s.convert(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		key := def.Config.TenantID + "/" + def.Config.ID
		// Collision Detection
		if existingPath, ok := seen[key]; ok {
			return nil, fmt.Errorf("collision detected: config '%s' is defined in both '%s' and '%s'", key, existingPath, doc.ID)
		}
		seen[key] = doc.ID
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Config.ID < defs[j].Config.ID })
	return defs, nil
}

func (s *Source) convert(docID string, meta DefinitionMetadata) (*domain.Definition, error) {
	configID := meta.ID
	if configID == "" {
		configID = docID
	}
	configID = trimExtension(configID)

	tenant := meta.TenantID
	if tenant == "" {
		tenant = s.DefaultTenant
	}
	status := domain.ConfigStatus(strings.ToLower(meta.Status))
	if status == "" {
		status = domain.ConfigDraft
	}
	name := meta.Name
	if name == "" {
		name = configID
	}

	def := &domain.Definition{
		Config: domain.LifecycleConfig{
			ID:         configID,
			TenantID:   tenant,
			ObjectType: meta.ObjectType,
			Name:       name,
			Status:     status,
		},
		Conditions: map[string][]domain.Condition{},
		Actions:    map[string][]domain.StateAction{},
	}

	for _, sm := range meta.States {
		stateName := sm.Name
		if stateName == "" {
			stateName = sm.ID
		}
		def.States = append(def.States, domain.State{
			ID:         sm.ID,
			ConfigID:   configID,
			Name:       stateName,
			IsInitial:  sm.Initial,
			IsTerminal: sm.Terminal,
		})
		actions, err := convertActions(configID, sm)
		if err != nil {
			return nil, err
		}
		if len(actions) > 0 {
			def.Actions[sm.ID] = actions
		}
	}

	for _, tm := range meta.Transitions {
		name := tm.Name
		if name == "" {
			name = tm.ID
		}
		def.Transitions = append(def.Transitions, domain.Transition{
			ID:               tm.ID,
			ConfigID:         configID,
			Name:             name,
			FromStateID:      tm.From,
			ToStateID:        tm.To,
			RequiresApproval: tm.RequiresApproval,
		})
		for i, cm := range tm.Conditions {
			value, err := domain.ValueOf(cm.Value)
			if err != nil {
				return nil, fmt.Errorf("config %s: transition %s condition %d: %w", configID, tm.ID, i, err)
			}
			id := cm.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d", tm.ID, i+1)
			}
			def.Conditions[tm.ID] = append(def.Conditions[tm.ID], domain.Condition{
				ID:           id,
				TransitionID: tm.ID,
				Attribute:    cm.Attribute,
				Operator:     domain.Operator(strings.ToLower(cm.Operator)),
				Value:        value,
			})
		}
	}
	return def, nil
}

func convertActions(configID string, sm StateMetadata) ([]domain.StateAction, error) {
	var out []domain.StateAction
	counters := map[string]int{}
	for _, am := range sm.Actions {
		trigger := strings.ToLower(am.Trigger)
		order := counters[trigger]
		counters[trigger]++
		if am.Order != nil {
			order = *am.Order
		}
		policy := domain.FailurePolicy(strings.ToLower(am.FailurePolicy))
		if policy == "" {
			policy = domain.PolicyContinue
		}

		action := domain.StateAction{
			ID:            am.ID,
			StateID:       sm.ID,
			Type:          domain.ActionType(am.Type),
			Trigger:       domain.Trigger(trigger),
			Order:         order,
			FailurePolicy: policy,
		}
		if am.Timeout != "" {
			d, err := time.ParseDuration(am.Timeout)
			if err != nil {
				return nil, fmt.Errorf("config %s: action %s: invalid timeout: %w", configID, am.ID, err)
			}
			action.Timeout = d
		}
		if err := action.SetConfig(am.Config); err != nil {
			return nil, fmt.Errorf("config %s: %w", configID, err)
		}
		out = append(out, action)
	}
	return out, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
