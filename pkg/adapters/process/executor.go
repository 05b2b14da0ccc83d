// Package process runs allow-listed local commands as state actions.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
)

// ActionType routes state actions to the process executor.
const ActionType domain.ActionType = "process"

// EnvPrefix prefixes every variable the executor sets for the child process.
const EnvPrefix = "WAYPOINT_"

// ErrNotRegistered is returned when an action names a command outside the allow-list.
var ErrNotRegistered = errors.New("process command not registered")

// ActionConfig is the config payload of a process action.
type ActionConfig struct {
	Command string            `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
}

// Executor implements ports.ActionExecutor by running registered commands.
// Action configs can only name a command; the binary and its arguments come from
// the allow-list. Transition data reaches the child through environment variables.
type Executor struct {
	commands map[string]CommandConfig
	baseDir  string
	logger   *slog.Logger
}

type Option func(*Executor)

// WithCommands populates the allow-list from a loaded commands file.
func WithCommands(commands map[string]CommandConfig) Option {
	return func(e *Executor) {
		for name, c := range commands {
			c.Name = name
			e.commands[name] = c
		}
	}
}

// WithBaseDir sets the working directory of executed commands.
func WithBaseDir(dir string) Option {
	return func(e *Executor) { e.baseDir = dir }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		commands: make(map[string]CommandConfig),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a trusted command to the allow-list.
func (e *Executor) Register(name, command string, args ...string) {
	e.commands[name] = CommandConfig{Name: name, Command: command, Args: args}
}

// Execute runs the command named by the action config. A non-zero exit is an error
// carrying the trimmed stderr of the child.
func (e *Executor) Execute(ctx context.Context, req domain.ActionRequest) error {
	var cfg ActionConfig
	if len(req.Action.Raw) == 0 {
		return fmt.Errorf("process action %s has no config", req.Action.ID)
	}
	if err := json.Unmarshal(req.Action.Raw, &cfg); err != nil {
		return fmt.Errorf("invalid process action config: %w", err)
	}
	proc, ok := e.commands[cfg.Command]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, cfg.Command)
	}

	env, err := environment(req, proc.Environment, cfg.Env)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = e.baseDir
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s failed: %w: %s", cfg.Command, err, strings.TrimSpace(stderr.String()))
	}
	e.logger.Debug("process action finished",
		"action_id", req.Action.ID,
		"command", cfg.Command,
		"object_id", req.ObjectID,
		"output", strings.TrimSpace(stdout.String()))
	return nil
}

// environment flattens the request into KEY=VALUE pairs. The evaluation context is
// passed as one JSON document so nested values survive.
func environment(req domain.ActionRequest, static, perAction map[string]string) ([]string, error) {
	contextJSON, err := json.Marshal(req.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to encode context: %w", err)
	}
	vars := map[string]string{
		"ACTION_ID":     req.Action.ID,
		"PHASE":         string(req.Phase),
		"TENANT_ID":     req.TenantID,
		"OBJECT_ID":     req.ObjectID,
		"CONFIG_ID":     req.ConfigID,
		"TRANSITION_ID": req.TransitionID,
		"FROM_STATE":    req.FromStateID,
		"TO_STATE":      req.ToStateID,
		"CONTEXT":       string(contextJSON),
	}

	env := make([]string, 0, len(vars)+len(static)+len(perAction))
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for k, v := range perAction {
		env = append(env, EnvPrefix+"ENV_"+strings.ToUpper(k)+"="+v)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, EnvPrefix+k+"="+vars[k])
	}
	return env, nil
}
