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

// Package server exposes sessions, applications, components, workflows and
// the emulator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/logging"
	"github.com/eminwux/wemu/internal/metrics"
	"github.com/eminwux/wemu/internal/store"
	"github.com/eminwux/wemu/internal/workflow"
	"github.com/eminwux/wemu/pkg/api"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ServiceName     = "wine-emulator-api"
	shutdownTimeout = 10 * time.Second
	readyTimeout    = 5 * time.Second
	maxBodyBytes    = 1 << 20
)

// Workflows is the part of the workflow engine the API needs.
type Workflows interface {
	Compile(wf *api.Workflow) (*workflow.Plan, error)
	Execute(ctx context.Context, wf *api.Workflow) (*api.WorkflowResult, error)
}

type Deps struct {
	Store       store.Store
	Sessions    api.SessionController
	Workflows   Workflows
	Emulator    dispatcher.Dispatcher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	CORSOrigins []string
	Version     string
}

type Server struct {
	deps   Deps
	logger *slog.Logger
	router chi.Router

	NewID func() string
	Now   func() time.Time
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	s := &Server{
		deps:   deps,
		logger: logger,
		NewID:  uuid.NewString,
		Now:    func() time.Time { return time.Now().UTC() },
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.deps.CORSOrigins))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/emulator", func(r chi.Router) {
			r.Get("/status", s.handleEmulatorStatus)
			r.Get("/info", s.handleEmulatorInfo)
			r.Get("/screenshot", s.handleScreenshot)
			r.Post("/execute", s.handleExecute)
		})
		r.Route("/applications", func(r chi.Router) {
			r.Get("/", s.handleListApplications)
			r.Post("/", s.handleCreateApplication)
			r.Get("/{id}", s.handleGetApplication)
			r.Put("/{id}", s.handleUpdateApplication)
			r.Delete("/{id}", s.handleDeleteApplication)
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleTerminateSession)
		})
		r.Route("/lowcode", func(r chi.Router) {
			r.Get("/templates", s.handleTemplates)
			r.Get("/components", s.handleListComponents)
			r.Post("/components", s.handleCreateComponent)
			r.Get("/components/{id}", s.handleGetComponent)
			r.Put("/components/{id}", s.handleUpdateComponent)
			r.Delete("/components/{id}", s.handleDeleteComponent)
			r.Post("/workflow/validate", s.handleValidateWorkflow)
			r.Post("/workflow/execute", s.handleExecuteWorkflow)
		})
	})
	return r
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrServerExited, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%w: %w", errdefs.ErrServerExited, err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrServerExited, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%w: %w", errdefs.ErrServerExited, err)
	}
	return nil
}
