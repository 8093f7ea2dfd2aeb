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

package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/eminwux/wemu/cmd/wemu/config"
	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/env"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/metrics"
	"github.com/eminwux/wemu/internal/server"
	"github.com/eminwux/wemu/internal/session"
	"github.com/eminwux/wemu/internal/slotpool"
	"github.com/eminwux/wemu/internal/store"
	"github.com/eminwux/wemu/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

type flagBinding struct {
	name  string
	usage string
	v     env.Var
}

//nolint:gochecknoglobals // static flag table
var serveFlags = []flagBinding{
	{"listen", "Address the HTTP API listens on", env.LISTEN_ADDR},
	{"store-driver", "Persistence backend: bolt|sqlite|memory", env.STORE_DRIVER},
	{"store-path", "Database file for the bolt and sqlite drivers", env.STORE_PATH},
	{"wine-url", "Base URL of the Wine emulator service", env.WINE_SERVICE_URL},
	{"status-timeout", "Timeout for emulator health probes", env.STATUS_TIMEOUT},
	{"execute-timeout", "Timeout for emulator launch and execute calls", env.EXECUTE_TIMEOUT},
	{"slots", "Number of concurrent emulation slots", env.SLOT_COUNT},
	{"slot-base", "First X display number", env.SLOT_BASE},
	{"vnc-base-port", "VNC port of display 0", env.VNC_BASE_PORT},
	{"sweep-interval", "How often expired sessions are reclaimed", env.SWEEP_INTERVAL},
	{"max-duration", "Upper bound on a session lifetime in minutes", env.MAX_DURATION},
	{"max-loop-iterations", "Cap on workflow loop iterations", env.MAX_LOOP_ITERATIONS},
	{"workflow-timeout", "Deadline for one workflow run", env.WORKFLOW_TIMEOUT},
	{"cors-origins", "Comma separated list of allowed CORS origins, or *", env.CORS_ORIGINS},
}

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the emulation API server",
		Long: `Run the HTTP API: session lifecycle, application catalog, emulator proxy
and the low-code workflow engine.

Every flag can also be set with a WEMU_* environment variable or in the
config file.

Examples:
  wemu serve
  wemu serve --listen :9000 --store-driver sqlite --store-path /var/lib/wemu/wemu.db
  WEMU_SLOT_COUNT=4 wemu serve --wine-url http://127.0.0.1:8080
`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	for _, f := range serveFlags {
		// defaults live on env.Var so flags only override when changed
		cmd.Flags().String(f.name, "", f.usage)
		_ = viper.BindPFlag(f.v.ViperKey, cmd.Flags().Lookup(f.name))
	}
	_ = cmd.MarkFlagFilename("store-path")
	return cmd
}

// Config is everything serve needs, resolved from flags, env and file.
type Config struct {
	ListenAddr     string
	StoreDriver    string
	StorePath      string
	CORSOrigins    []string
	Dispatcher     dispatcher.Config
	Slots          slotpool.Config
	Sessions       session.Config
	Workflow       workflow.Config
	ShutdownSignal []os.Signal
}

func loadServeConfig() (Config, error) {
	cfg := Config{
		ListenAddr:     env.LISTEN_ADDR.ValueOrDefault(),
		StoreDriver:    env.STORE_DRIVER.ValueOrDefault(),
		StorePath:      env.STORE_PATH.ValueOrDefault(),
		CORSOrigins:    server.ParseOrigins(env.CORS_ORIGINS.ValueOrDefault()),
		ShutdownSignal: []os.Signal{os.Interrupt, unix.SIGTERM},
	}
	if cfg.ListenAddr == "" {
		return cfg, fmt.Errorf("%w: %s must not be empty", errdefs.ErrConfig, env.LISTEN_ADDR.Key)
	}

	var errs []error
	integer := func(v env.Var, least int) int {
		n, err := config.Int(v)
		if err != nil {
			errs = append(errs, err)
			return 0
		}
		if n < least {
			errs = append(errs, fmt.Errorf("%w: %s must be at least %d, got %d", errdefs.ErrConfig, v.Key, least, n))
		}
		return n
	}
	duration := func(v env.Var) time.Duration {
		d, err := config.Duration(v)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg.Slots = slotpool.Config{
		Base:        integer(env.SLOT_BASE, 0),
		Size:        integer(env.SLOT_COUNT, 1),
		VNCBasePort: integer(env.VNC_BASE_PORT, 1),
	}
	cfg.Sessions = session.Config{
		MaxDurationMinutes: integer(env.MAX_DURATION, 1),
		SweepInterval:      duration(env.SWEEP_INTERVAL),
	}
	cfg.Workflow = workflow.Config{
		MaxLoopIterations: integer(env.MAX_LOOP_ITERATIONS, 1),
		Timeout:           duration(env.WORKFLOW_TIMEOUT),
	}
	cfg.Dispatcher = dispatcher.Config{
		BaseURL:        env.WINE_SERVICE_URL.ValueOrDefault(),
		StatusTimeout:  duration(env.STATUS_TIMEOUT),
		ExecuteTimeout: duration(env.EXECUTE_TIMEOUT),
		VNCPort:        cfg.Slots.VNCBasePort,
	}
	if cfg.Dispatcher.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%w: %s must not be empty", errdefs.ErrConfig, env.WINE_SERVICE_URL.Key))
	}
	return cfg, errors.Join(errs...)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errdefs.ErrTooManyArguments
	}
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), cfg.ShutdownSignal...)
	defer stop()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrServerExited, err)
	}
	return Serve(ctx, cfg, ln, logger)
}

// Serve wires the store, slot pool, dispatcher, session manager and workflow
// engine behind the HTTP API on ln. It returns when ctx is done or when the
// server or sweeper fails.
func Serve(ctx context.Context, cfg Config, ln net.Listener, logger *slog.Logger) error {
	st, err := store.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("closing store", "error", cerr)
		}
	}()
	logger.Info("store opened", "driver", cfg.StoreDriver, "path", cfg.StorePath)

	pool, err := slotpool.New(cfg.Slots)
	if err != nil {
		_ = ln.Close()
		return err
	}

	m := metrics.New()
	disp := dispatcher.NewHTTP(cfg.Dispatcher, nil, logger.With("component", "dispatcher"), m)
	mgr := session.NewManager(cfg.Sessions, st, pool, disp, logger.With("component", "sessions"), m)
	if _, err := mgr.Restore(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	engine := workflow.New(cfg.Workflow, disp, nil, logger.With("component", "workflow"), m)

	srv := server.New(server.Deps{
		Store:       st,
		Sessions:    mgr,
		Workflows:   engine,
		Emulator:    disp,
		Metrics:     m,
		Logger:      logger.With("component", "http"),
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	g.Go(func() error {
		return mgr.RunSweeper(gctx)
	})

	logger.Info("wemu serving",
		"addr", ln.Addr().String(),
		"slots", cfg.Slots.Size,
		"emulator", cfg.Dispatcher.BaseURL,
	)
	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
