// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
	"github.com/go-chi/chi/v5"
)

type healthBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type rootBody struct {
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
	Health  string `json:"health"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, rootBody{
		Message: "Wine Emulator Low-Code Platform API",
		Version: s.deps.Version,
		Health:  "/health",
	}, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, healthBody{Status: "healthy", Service: ServiceName}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.Warn("not ready", "component", "store", "error", err)
		respondJSON(w, api.ErrorBody{Error: "service not ready: " + err.Error()}, http.StatusServiceUnavailable)
		return
	}
	if st := s.deps.Emulator.Status(ctx); !st.Available() {
		s.logger.Warn("not ready", "component", "emulator", "status", st.Status, "error", st.Error)
		respondJSON(w, api.ErrorBody{Error: "service not ready: emulator " + st.Status}, http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, healthBody{Status: "ready", Service: ServiceName}, http.StatusOK)
}

func (s *Server) handleEmulatorStatus(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Emulator.Status(r.Context())
	code := http.StatusOK
	if !st.Available() {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, st, code)
}

func (s *Server) handleEmulatorInfo(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, s.deps.Emulator.Info(), http.StatusOK)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	shot := s.deps.Emulator.Screenshot(r.Context())
	if shot.Error != "" {
		s.writeError(w, r, fmt.Errorf("%w: %s", errdefs.ErrDispatchFailure, shot.Error))
		return
	}
	respondJSON(w, shot, http.StatusOK)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req api.ExecuteRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		s.writeError(w, r, fmt.Errorf("%w: command is required", errdefs.ErrInvalid))
		return
	}
	if req.Args == nil {
		req.Args = []string{}
	}
	respondJSON(w, s.deps.Emulator.Execute(r.Context(), req), http.StatusOK)
}

func appID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: application id must be an integer", errdefs.ErrInvalid)
	}
	return id, nil
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	apps, err := s.deps.Store.ListApplications(r.Context(), skip, limit, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []*api.Application{}
	}
	respondJSON(w, apps, http.StatusOK)
}

func (s *Server) decodeApplication(w http.ResponseWriter, r *http.Request) (api.ApplicationInput, error) {
	var in api.ApplicationInput
	if err := decodeBody(w, r, &in); err != nil {
		return in, err
	}
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("%w: %w", errdefs.ErrInvalid, err)
	}
	return in, nil
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeApplication(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.deps.Store.CreateApplication(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("application created", "application_id", app.ID, "name", app.Name)
	respondJSON(w, app, http.StatusCreated)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := appID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.deps.Store.GetApplication(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, app, http.StatusOK)
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	id, err := appID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := s.decodeApplication(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.deps.Store.UpdateApplication(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, app, http.StatusOK)
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, err := appID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Store.DeactivateApplication(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("application deactivated", "application_id", id)
	respondJSON(w, api.Message{Message: "Application deleted successfully"}, http.StatusOK)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.Sessions.List(r.Context(), api.SessionStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*api.Session{}
	}
	respondJSON(w, sessions, http.StatusOK)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.deps.Sessions.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, sess, http.StatusCreated)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, sess, http.StatusOK)
}

func (s *Server) handleTerminateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Terminate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, sess, http.StatusOK)
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, api.Templates(), http.StatusOK)
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	typ := api.ComponentType(r.URL.Query().Get("component_type"))
	if typ != "" && !typ.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown component_type %q", errdefs.ErrInvalid, typ))
		return
	}
	comps, err := s.deps.Store.ListComponents(r.Context(), typ)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if comps == nil {
		comps = []*api.Component{}
	}
	respondJSON(w, comps, http.StatusOK)
}

func (s *Server) decodeComponent(w http.ResponseWriter, r *http.Request) (api.ComponentInput, error) {
	var in api.ComponentInput
	if err := decodeBody(w, r, &in); err != nil {
		return in, err
	}
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("%w: %w", errdefs.ErrInvalid, err)
	}
	return in, nil
}

func (s *Server) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeComponent(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := s.Now()
	c := &api.Component{
		ID:        s.NewID(),
		Name:      in.Name,
		Type:      in.Type,
		Config:    in.Config,
		Position:  in.Position,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Config == nil {
		c.Config = map[string]any{}
	}
	if err := s.deps.Store.CreateComponent(r.Context(), c); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, c, http.StatusCreated)
}

func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Store.GetComponent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, c, http.StatusOK)
}

func (s *Server) handleUpdateComponent(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeComponent(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.deps.Store.UpdateComponent(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, c, http.StatusOK)
}

func (s *Server) handleDeleteComponent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteComponent(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, api.Message{Message: "Component deleted successfully"}, http.StatusOK)
}

func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf api.Workflow
	if err := decodeBody(w, r, &wf); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.deps.Workflows.Compile(&wf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, api.WorkflowValidation{Valid: true, Order: plan.Order}, http.StatusOK)
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf api.Workflow
	if err := decodeBody(w, r, &wf); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Workflows.Execute(r.Context(), &wf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, res, http.StatusOK)
}
