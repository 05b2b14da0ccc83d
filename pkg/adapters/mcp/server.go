// Package mcp exposes the runtime operations of the lifecycle service as Model Context
// Protocol tools, so agents can inspect and move objects through their lifecycles.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/internal/presentation/graph"
	"github.com/aretw0/waypoint/pkg/admin"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultActor is recorded as the trigger of transitions applied through MCP.
const DefaultActor = "mcp"

// GraphResponse carries a Mermaid rendering of a config.
type GraphResponse struct {
	ConfigID string `json:"config_id" jsonschema_description:"The rendered config"`
	Mermaid  string `json:"mermaid" jsonschema_description:"Mermaid flowchart source"`
}

// Server wraps the lifecycle service and exposes it as an MCP server.
type Server struct {
	svc       *admin.Service
	actor     string
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithActor sets the identity recorded on history entries.
func WithActor(actor string) Option {
	return func(s *Server) { s.actor = actor }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates an MCP server reporting version.
func NewServer(svc *admin.Service, version string, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		actor:  DefaultActor,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("waypoint-mcp", strings.TrimSpace(version),
		server.WithToolCapabilities(false))
	s.registerTools()
	return s
}

// ServeStdio serves on Stdin/Stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on addr using SSE until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop mcp server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	tenant := mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant owning the object or config"))
	ctxArg := mcp.WithString("context", mcp.Description("JSON object the guard conditions are evaluated against"))

	s.mcpServer.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Get the current state and transition history of an object."),
		tenant,
		mcp.WithString("object_id", mcp.Required(), mcp.Description("Object id")),
		mcp.WithOutputSchema[domain.ObjectLifecycleStatus](),
	), mcp.NewStructuredToolHandler(s.handleGetStatus))

	s.mcpServer.AddTool(mcp.NewTool("enroll_object",
		mcp.WithDescription("Place an object under an active lifecycle config, at its initial state."),
		tenant,
		mcp.WithString("object_id", mcp.Required(), mcp.Description("Object id")),
		mcp.WithString("config_id", mcp.Required(), mcp.Description("Lifecycle config id")),
		mcp.WithOutputSchema[domain.ObjectLifecycleStatus](),
	), mcp.NewStructuredToolHandler(s.handleEnroll))

	s.mcpServer.AddTool(mcp.NewTool("evaluate_transition",
		mcp.WithDescription("Dry-run the guard of a transition without changing anything."),
		tenant,
		mcp.WithString("config_id", mcp.Required(), mcp.Description("Lifecycle config id")),
		mcp.WithString("transition_id", mcp.Required(), mcp.Description("Transition id")),
		ctxArg,
		mcp.WithOutputSchema[domain.Evaluation](),
	), mcp.NewStructuredToolHandler(s.handleEvaluate))

	s.mcpServer.AddTool(mcp.NewTool("apply_transition",
		mcp.WithDescription("Move an object along a named transition if its guard holds."),
		tenant,
		mcp.WithString("object_id", mcp.Required(), mcp.Description("Object id")),
		mcp.WithString("config_id", mcp.Required(), mcp.Description("Lifecycle config id")),
		mcp.WithString("transition_id", mcp.Required(), mcp.Description("Transition id")),
		ctxArg,
		mcp.WithOutputSchema[domain.TransitionResult](),
	), mcp.NewStructuredToolHandler(s.handleApply))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Render a lifecycle config as a Mermaid flowchart, optionally highlighting an object's path."),
		tenant,
		mcp.WithString("config_id", mcp.Required(), mcp.Description("Lifecycle config id")),
		mcp.WithString("object_id", mcp.Description("Object whose visited states are highlighted")),
		mcp.WithOutputSchema[GraphResponse](),
	), mcp.NewStructuredToolHandler(s.handleGraph))
}

func (s *Server) caller(args map[string]any) admin.Caller {
	tenant, _ := args["tenant_id"].(string)
	return admin.Caller{TenantID: tenant, Actor: s.actor}
}

func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.ObjectLifecycleStatus, error) {
	objectID, _ := args["object_id"].(string)
	status, err := s.svc.GetStatus(ctx, s.caller(args), objectID)
	if err != nil {
		return domain.ObjectLifecycleStatus{}, fmt.Errorf("get status failed: %w", err)
	}
	return *status, nil
}

func (s *Server) handleEnroll(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.ObjectLifecycleStatus, error) {
	objectID, _ := args["object_id"].(string)
	configID, _ := args["config_id"].(string)
	status, err := s.svc.Enroll(ctx, s.caller(args), objectID, configID)
	if err != nil {
		return domain.ObjectLifecycleStatus{}, fmt.Errorf("enroll failed: %w", err)
	}
	return *status, nil
}

func (s *Server) handleEvaluate(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Evaluation, error) {
	configID, _ := args["config_id"].(string)
	transitionID, _ := args["transition_id"].(string)
	data, err := contextArg(args)
	if err != nil {
		return domain.Evaluation{}, err
	}
	eval, err := s.svc.Evaluate(ctx, s.caller(args), configID, transitionID, data)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate failed: %w", err)
	}
	return eval, nil
}

func (s *Server) handleApply(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.TransitionResult, error) {
	data, err := contextArg(args)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	req := domain.ApplyRequest{Context: data, TriggeredBy: s.actor}
	req.ObjectID, _ = args["object_id"].(string)
	req.ConfigID, _ = args["config_id"].(string)
	req.TransitionID, _ = args["transition_id"].(string)

	result, err := s.svc.ApplyTransition(ctx, s.caller(args), req)
	if err != nil {
		s.logger.Debug("mcp apply_transition rejected", "object_id", req.ObjectID, "error", err)
		return domain.TransitionResult{}, fmt.Errorf("apply transition failed: %w", err)
	}
	return *result, nil
}

func (s *Server) handleGraph(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (GraphResponse, error) {
	caller := s.caller(args)
	configID, _ := args["config_id"].(string)
	def, err := s.svc.GetConfig(ctx, caller, configID)
	if err != nil {
		return GraphResponse{}, fmt.Errorf("get config failed: %w", err)
	}
	var overlay *graph.GraphOverlay
	if objectID, _ := args["object_id"].(string); objectID != "" {
		status, err := s.svc.GetStatus(ctx, caller, objectID)
		if err != nil {
			return GraphResponse{}, fmt.Errorf("get status failed: %w", err)
		}
		overlay = graph.OverlayFor(status)
	}
	return GraphResponse{ConfigID: configID, Mermaid: graph.GenerateMermaid(def, overlay)}, nil
}

// contextArg accepts the transition context either as a JSON object or as its string encoding.
func contextArg(args map[string]any) (map[string]any, error) {
	switch raw := args["context"].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return raw, nil
	case string:
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var out map[string]any
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("context must be a JSON object: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("context must be a JSON object, got %T", raw)
	}
}
