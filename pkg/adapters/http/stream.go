package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/go-chi/chi/v5"
)

const pingInterval = 15 * time.Second

// TransitionMessage is the payload pushed to subscribers of an object's events.
type TransitionMessage struct {
	TenantID string              `json:"tenant_id"`
	ObjectID string              `json:"object_id"`
	ConfigID string              `json:"config_id"`
	Entry    domain.HistoryEntry `json:"entry"`
	At       time.Time           `json:"at"`
}

type subscription struct {
	tenantID string
	ch       chan string
}

// StreamManager fans committed transitions out to SSE subscribers, keyed by object id.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscription]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[*subscription]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for objectID within tenantID.
// The returned func must be called to release it.
func (sm *StreamManager) Subscribe(tenantID, objectID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sub := &subscription{tenantID: tenantID, ch: make(chan string, 10)}
	if _, ok := sm.subscribers[objectID]; !ok {
		sm.subscribers[objectID] = make(map[*subscription]struct{})
	}
	sm.subscribers[objectID][sub] = struct{}{}

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[objectID]; ok {
				delete(subs, sub)
				close(sub.ch)
				if len(subs) == 0 {
					delete(sm.subscribers, objectID)
				}
			}
		})
	}
}

// Subscribers returns the number of listeners of objectID.
func (sm *StreamManager) Subscribers(objectID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[objectID])
}

// Broadcast delivers msg to the listeners of objectID in tenantID.
// Slow listeners whose buffer is full miss the message.
func (sm *StreamManager) Broadcast(tenantID, objectID, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for sub := range sm.subscribers[objectID] {
		if sub.tenantID != tenantID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			sm.logger.Warn("sse client buffer full, dropping message", "object_id", objectID)
		}
	}
}

// Hooks publishes every committed transition to the object's subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			body, err := json.Marshal(TransitionMessage{
				TenantID: e.TenantID,
				ObjectID: e.ObjectID,
				ConfigID: e.ConfigID,
				Entry:    e.Entry,
				At:       e.Timestamp,
			})
			if err != nil {
				sm.logger.Error("encode transition event", "object_id", e.ObjectID, "error", err)
				return
			}
			sm.Broadcast(e.TenantID, e.ObjectID, string(body))
		},
	}
}

// subscribeEvents handles GET /v1/objects/{objectID}/events.
func (s *server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	caller := callerFrom(r)
	objectID := chi.URLParam(r, "objectID")
	if _, err := s.svc.GetStatus(r.Context(), caller, objectID); err != nil {
		writeError(w, r, err)
		return
	}

	ch, cancel := s.streams.Subscribe(caller.TenantID, objectID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	s.logger.Debug("sse client connected", "object_id", objectID)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "object_id", objectID)
			return
		case <-ticker.C:
			fmt.Fprintf(w, "event: ping\ndata: keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: transition\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
