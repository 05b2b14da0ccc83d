package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aretw0/waypoint/internal/presentation/graph"
	"github.com/aretw0/waypoint/pkg/admin"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/go-chi/chi/v5"
)

type stateBody struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsInitial  bool   `json:"is_initial"`
	IsTerminal bool   `json:"is_terminal"`
}

type transitionBody struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	FromStateID      string `json:"from_state_id"`
	ToStateID        string `json:"to_state_id"`
	RequiresApproval bool   `json:"requires_approval"`
}

type conditionsBody struct {
	Conditions []domain.Condition `json:"conditions"`
}

type actionsBody struct {
	Actions []domain.StateAction `json:"actions"`
}

type contextBody struct {
	Context map[string]any `json:"context"`
}

type enrollBody struct {
	ObjectID string `json:"object_id"`
	ConfigID string `json:"config_id"`
}

type applyBody struct {
	ConfigID     string         `json:"config_id"`
	TransitionID string         `json:"transition_id"`
	Context      map[string]any `json:"context"`
}

type activateResponse struct {
	*domain.Definition
	Warnings []domain.Violation `json:"warnings,omitempty"`
}

// decode reads a JSON body, keeping numbers as json.Number.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func (s *server) listConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.svc.ListConfigs(r.Context(), callerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if configs == nil {
		configs = []domain.LifecycleConfig{}
	}
	writeJSON(w, r, http.StatusOK, configs)
}

func (s *server) createConfig(w http.ResponseWriter, r *http.Request) {
	var body admin.ConfigInput
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	def, err := s.svc.CreateConfig(r.Context(), callerFrom(r), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, def)
}

func (s *server) getConfig(w http.ResponseWriter, r *http.Request) {
	def, err := s.svc.GetConfig(r.Context(), callerFrom(r), chi.URLParam(r, "configID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

func (s *server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var body admin.ConfigInput
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	def, err := s.svc.UpdateConfig(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

func (s *server) deleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteConfig(r.Context(), callerFrom(r), chi.URLParam(r, "configID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) activateConfig(w http.ResponseWriter, r *http.Request) {
	def, report, err := s.svc.ActivateConfig(r.Context(), callerFrom(r), chi.URLParam(r, "configID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, activateResponse{Definition: def, Warnings: report.Warnings})
}

func (s *server) disableConfig(w http.ResponseWriter, r *http.Request) {
	def, err := s.svc.DisableConfig(r.Context(), callerFrom(r), chi.URLParam(r, "configID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

func (s *server) getGraph(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	def, err := s.svc.GetConfig(r.Context(), caller, chi.URLParam(r, "configID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var overlay *graph.GraphOverlay
	if objectID := r.URL.Query().Get("object_id"); objectID != "" {
		status, err := s.svc.GetStatus(r.Context(), caller, objectID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		overlay = graph.OverlayFor(status)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(def, overlay))
}

func (s *server) addState(w http.ResponseWriter, r *http.Request) {
	var body stateBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	def, err := s.svc.AddState(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), domain.State{
		ID:         body.ID,
		Name:       body.Name,
		IsInitial:  body.IsInitial,
		IsTerminal: body.IsTerminal,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, def)
}

func (s *server) updateState(w http.ResponseWriter, r *http.Request) {
	var body stateBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	stateID := chi.URLParam(r, "stateID")
	def, err := s.svc.UpdateState(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), stateID, domain.State{
		ID:         stateID,
		Name:       body.Name,
		IsInitial:  body.IsInitial,
		IsTerminal: body.IsTerminal,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

func (s *server) deleteState(w http.ResponseWriter, r *http.Request) {
	def, err := s.svc.DeleteState(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), chi.URLParam(r, "stateID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

func (s *server) getActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.svc.GetActions(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), chi.URLParam(r, "stateID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, actionsBody{Actions: nonNil(actions)})
}

func (s *server) replaceActions(w http.ResponseWriter, r *http.Request) {
	var body actionsBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	actions, err := s.svc.ReplaceActions(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), chi.URLParam(r, "stateID"), body.Actions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, actionsBody{Actions: nonNil(actions)})
}

func (s *server) addTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	def, err := s.svc.AddTransition(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), domain.Transition{
		ID:               body.ID,
		Name:             body.Name,
		FromStateID:      body.FromStateID,
		ToStateID:        body.ToStateID,
		RequiresApproval: body.RequiresApproval,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, def)
}

func (s *server) deleteTransition(w http.ResponseWriter, r *http.Request) {
	def, err := s.svc.DeleteTransition(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), chi.URLParam(r, "transitionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

func (s *server) getConditions(w http.ResponseWriter, r *http.Request) {
	conditions, err := s.svc.GetConditions(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), chi.URLParam(r, "transitionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conditionsBody{Conditions: nonNil(conditions)})
}

func (s *server) replaceConditions(w http.ResponseWriter, r *http.Request) {
	var body conditionsBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	conditions, err := s.svc.ReplaceConditions(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), chi.URLParam(r, "transitionID"), body.Conditions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conditionsBody{Conditions: nonNil(conditions)})
}

func (s *server) evaluate(w http.ResponseWriter, r *http.Request) {
	var body contextBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	eval, err := s.svc.Evaluate(r.Context(), callerFrom(r), chi.URLParam(r, "configID"), chi.URLParam(r, "transitionID"), body.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, eval)
}

func (s *server) enroll(w http.ResponseWriter, r *http.Request) {
	var body enrollBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := s.svc.Enroll(r.Context(), callerFrom(r), body.ObjectID, body.ConfigID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, status)
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.GetStatus(r.Context(), callerFrom(r), chi.URLParam(r, "objectID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (s *server) applyTransition(w http.ResponseWriter, r *http.Request) {
	var body applyBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	caller := callerFrom(r)
	result, err := s.svc.ApplyTransition(r.Context(), caller, domain.ApplyRequest{
		ObjectID:     chi.URLParam(r, "objectID"),
		ConfigID:     body.ConfigID,
		TransitionID: body.TransitionID,
		Context:      body.Context,
		TriggeredBy:  caller.Actor,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
