// Package webhook delivers webhook state actions over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
)

// Event is the JSON body posted to the webhook endpoint.
type Event struct {
	Event        string         `json:"event"`
	DeliveryID   string         `json:"delivery_id"`
	ActionID     string         `json:"action_id"`
	Phase        domain.Trigger `json:"phase"`
	TenantID     string         `json:"tenant_id"`
	ObjectID     string         `json:"object_id"`
	ConfigID     string         `json:"config_id"`
	TransitionID string         `json:"transition_id"`
	FromStateID  string         `json:"from_state_id"`
	ToStateID    string         `json:"to_state_id"`
	Context      map[string]any `json:"context,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}

// Executor implements ports.ActionExecutor for webhook actions.
// Retries stay inside the deadline of the context the dispatcher hands in.
type Executor struct {
	client     *http.Client
	secret     string
	maxRetries int
	backoff    Backoff
	userAgent  string
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Executor)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithSigningSecret signs every delivery whose action does not carry its own secret.
func WithSigningSecret(secret string) Option {
	return func(e *Executor) { e.secret = secret }
}

// WithMaxRetries sets how many times a temporary failure is retried.
func WithMaxRetries(n int) Option {
	return func(e *Executor) { e.maxRetries = max(n, 0) }
}

func WithBackoff(b Backoff) Option {
	return func(e *Executor) { e.backoff = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxRetries: 2,
		backoff:    DefaultBackoff(),
		userAgent:  "waypoint-webhook/1.0",
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute delivers req.Action. Actions of another type are rejected.
func (e *Executor) Execute(ctx context.Context, req domain.ActionRequest) error {
	action := req.Action
	if action.Type != domain.ActionWebhook || action.Webhook == nil {
		return fmt.Errorf("%w: action %s is not a webhook", ErrInvalidConfiguration, action.ID)
	}
	cfg := action.Webhook
	if err := validateURL(cfg.URL); err != nil {
		return err
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}

	deliveryID := uuid.NewString()
	body, err := json.Marshal(Event{
		Event:        "lifecycle." + string(req.Phase),
		DeliveryID:   deliveryID,
		ActionID:     action.ID,
		Phase:        req.Phase,
		TenantID:     req.TenantID,
		ObjectID:     req.ObjectID,
		ConfigID:     req.ConfigID,
		TransitionID: req.TransitionID,
		FromStateID:  req.FromStateID,
		ToStateID:    req.ToStateID,
		Context:      req.Context,
		Payload:      cfg.Payload,
		SentAt:       e.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	secret := cfg.Secret
	if secret == "" {
		secret = e.secret
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(fmt.Errorf("%w after %d attempts", ErrDeliveryFailed, attempt), lastErr, ctx.Err())
			case <-time.After(e.backoff.NextInterval(attempt)):
			}
		}

		status, err := e.attempt(ctx, method, cfg, secret, deliveryID, body)
		if err == nil {
			e.logger.DebugContext(ctx, "webhook delivered",
				"action_id", action.ID, "url", cfg.URL, "status", status, "attempt", attempt+1)
			return nil
		}
		lastErr = err
		e.logger.WarnContext(ctx, "webhook attempt failed",
			"action_id", action.ID, "url", cfg.URL, "status", status, "attempt", attempt+1, "error", err)

		if isPermanent(status) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, e.maxRetries+1, lastErr)
}

func (e *Executor) attempt(ctx context.Context, method string, cfg *domain.WebhookConfig, secret, deliveryID string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set(HeaderDelivery, deliveryID)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if secret != "" {
		ts := e.now().Unix()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, Sign(secret, ts, body))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.ReplaceAll(strings.TrimSpace(string(snippet)), "\n", " ")
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, msg)
}

// isPermanent reports 4xx responses that will not change on retry.
func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}
