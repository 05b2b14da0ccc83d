package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "waypoint:"

const maxOutcomeRetries = 5

// Store implements ports.StatusStore using Redis.
// Compare-and-swap uses WATCH/MULTI on the status key.
type Store struct {
	client *backend.Client
	prefix string

	// beforeCommit runs inside the WATCH window of CompareAndSwap; set by tests only.
	beforeCommit func()
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(objectID string) string {
	return s.prefix + "status:" + objectID
}

func (s *Store) configIndexKey(tenantID, configID string) string {
	return s.prefix + "objects:" + tenantID + ":" + configID
}

// Create stores a fresh status record with SET NX.
func (s *Store) Create(ctx context.Context, status *domain.ObjectLifecycleStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(status.ObjectID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create status in redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("status of %s: %w", status.ObjectID, domain.ErrAlreadyExists)
	}
	if err := s.client.SAdd(ctx, s.configIndexKey(status.TenantID, status.ConfigID), status.ObjectID).Err(); err != nil {
		return fmt.Errorf("failed to index status: %w", err)
	}
	return nil
}

// Load retrieves the status from Redis.
func (s *Store) Load(ctx context.Context, objectID string) (*domain.ObjectLifecycleStatus, error) {
	return s.load(ctx, s.client, objectID)
}

func (s *Store) load(ctx context.Context, cmd backend.Cmdable, objectID string) (*domain.ObjectLifecycleStatus, error) {
	val, err := cmd.Get(ctx, s.key(objectID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("status of %s: %w", objectID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var status domain.ObjectLifecycleStatus
	if err := json.Unmarshal(val, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

// CompareAndSwap commits a transition if the stored version still matches.
// A WATCH failure caused by a writer that left the version alone (RecordOutcomes) is
// retried; only a moved version is reported as a conflict.
func (s *Store) CompareAndSwap(ctx context.Context, objectID string, expectedVersion int64, newStateID string, entry domain.HistoryEntry) (*domain.ObjectLifecycleStatus, error) {
	var updated *domain.ObjectLifecycleStatus
	key := s.key(objectID)

	commit := func(tx *backend.Tx) error {
		status, err := s.load(ctx, tx, objectID)
		if err != nil {
			return err
		}
		if status.Version != expectedVersion {
			return fmt.Errorf("status of %s is at version %d, expected %d: %w",
				objectID, status.Version, expectedVersion, domain.ErrConcurrentModification)
		}
		status.Apply(newStateID, entry)
		data, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		if s.beforeCommit != nil {
			s.beforeCommit()
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = status
		return nil
	}

	for attempt := 0; attempt < maxOutcomeRetries; attempt++ {
		err := s.client.Watch(ctx, commit, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("status of %s kept changing during commit: %w", objectID, domain.ErrConcurrentModification)
}

// RecordOutcomes attaches outcomes to a history entry. It retries when a concurrent
// writer touches the record, since late outcomes must not be dropped.
func (s *Store) RecordOutcomes(ctx context.Context, objectID, entryID string, outcomes []domain.ActionOutcome) error {
	key := s.key(objectID)
	for attempt := 0; attempt < maxOutcomeRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *backend.Tx) error {
			status, err := s.load(ctx, tx, objectID)
			if err != nil {
				return err
			}
			if !status.AttachOutcomes(entryID, outcomes) {
				return fmt.Errorf("history entry %s of %s: %w", entryID, objectID, domain.ErrNotFound)
			}
			data, err := json.Marshal(status)
			if err != nil {
				return fmt.Errorf("failed to marshal status: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to record outcomes on %s after %d attempts: %w", objectID, maxOutcomeRetries, domain.ErrConcurrentModification)
}

// CountByConfig returns how many objects a config governs.
func (s *Store) CountByConfig(ctx context.Context, tenantID, configID string) (int, error) {
	n, err := s.client.SCard(ctx, s.configIndexKey(tenantID, configID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count objects: %w", err)
	}
	return int(n), nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
