package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements ports.StatusStore on PostgreSQL.
// CompareAndSwap is a conditional UPDATE on the version column; the row lock taken by
// the first writer makes concurrent callers re-check the predicate and miss.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const insertStatusSQL = `
INSERT INTO object_lifecycle_status (object_id, tenant_id, config_id, current_state_id, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (s *Store) Create(ctx context.Context, status *domain.ObjectLifecycleStatus) error {
	_, err := s.pool.Exec(ctx, insertStatusSQL,
		status.ObjectID, status.TenantID, status.ConfigID, status.CurrentStateID,
		status.Version, status.CreatedAt, status.UpdatedAt)
	if isDuplicateKey(err) {
		return fmt.Errorf("status of %s: %w", status.ObjectID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert status: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, objectID string) (*domain.ObjectLifecycleStatus, error) {
	return load(ctx, s.pool, objectID)
}

const selectStatusSQL = `
SELECT object_id, tenant_id, config_id, current_state_id, version, created_at, updated_at
FROM object_lifecycle_status WHERE object_id = $1`

const selectHistorySQL = `
SELECT id, from_state_id, to_state_id, transition_id, triggered_by, at, outcomes
FROM lifecycle_history WHERE object_id = $1 ORDER BY seq`

func load(ctx context.Context, q querier, objectID string) (*domain.ObjectLifecycleStatus, error) {
	var st domain.ObjectLifecycleStatus
	err := q.QueryRow(ctx, selectStatusSQL, objectID).Scan(
		&st.ObjectID, &st.TenantID, &st.ConfigID, &st.CurrentStateID, &st.Version, &st.CreatedAt, &st.UpdatedAt)
	if isNotFound(err) {
		return nil, fmt.Errorf("status of %s: %w", objectID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query status: %w", err)
	}

	rows, err := q.Query(ctx, selectHistorySQL, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	st.History = []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		var outcomes []byte
		if err := rows.Scan(&e.ID, &e.FromStateID, &e.ToStateID, &e.TransitionID, &e.TriggeredBy, &e.At, &outcomes); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if err := json.Unmarshal(outcomes, &e.Outcomes); err != nil {
			return nil, fmt.Errorf("failed to decode outcomes of %s: %w", e.ID, err)
		}
		if len(e.Outcomes) == 0 {
			e.Outcomes = nil
		}
		st.History = append(st.History, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &st, nil
}

const casStatusSQL = `
UPDATE object_lifecycle_status
SET current_state_id = $3, version = version + 1, updated_at = $4
WHERE object_id = $1 AND version = $2`

const insertHistorySQL = `
INSERT INTO lifecycle_history (id, object_id, from_state_id, to_state_id, transition_id, triggered_by, at, outcomes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *Store) CompareAndSwap(ctx context.Context, objectID string, expectedVersion int64, newStateID string, entry domain.HistoryEntry) (*domain.ObjectLifecycleStatus, error) {
	outcomes, err := encodeOutcomes(entry.Outcomes)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, casStatusSQL, objectID, expectedVersion, newStateID, entry.At)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current int64
		err := tx.QueryRow(ctx, `SELECT version FROM object_lifecycle_status WHERE object_id = $1`, objectID).Scan(&current)
		if isNotFound(err) {
			return nil, fmt.Errorf("status of %s: %w", objectID, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query status: %w", err)
		}
		return nil, fmt.Errorf("status of %s is at version %d, expected %d: %w",
			objectID, current, expectedVersion, domain.ErrConcurrentModification)
	}

	_, err = tx.Exec(ctx, insertHistorySQL,
		entry.ID, objectID, entry.FromStateID, entry.ToStateID, entry.TransitionID, entry.TriggeredBy, entry.At, outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history: %w", err)
	}

	updated, err := load(ctx, tx, objectID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return updated, nil
}

const appendOutcomesSQL = `
UPDATE lifecycle_history SET outcomes = outcomes || $3::jsonb
WHERE object_id = $1 AND id = $2`

func (s *Store) RecordOutcomes(ctx context.Context, objectID, entryID string, outcomes []domain.ActionOutcome) error {
	raw, err := encodeOutcomes(outcomes)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, appendOutcomesSQL, objectID, entryID, raw)
	if err != nil {
		return fmt.Errorf("failed to record outcomes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("history entry %s of %s: %w", entryID, objectID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CountByConfig(ctx context.Context, tenantID, configID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM object_lifecycle_status WHERE tenant_id = $1 AND config_id = $2`,
		tenantID, configID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count objects: %w", err)
	}
	return n, nil
}

func encodeOutcomes(outcomes []domain.ActionOutcome) (string, error) {
	if outcomes == nil {
		outcomes = []domain.ActionOutcome{}
	}
	raw, err := json.Marshal(outcomes)
	if err != nil {
		return "", errors.Join(errors.New("failed to encode outcomes"), err)
	}
	return string(raw), nil
}
