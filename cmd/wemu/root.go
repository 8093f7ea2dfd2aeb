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

package main

import (
	"fmt"
	"io"

	"github.com/eminwux/wemu/cmd/wemu/apps"
	"github.com/eminwux/wemu/cmd/wemu/autocomplete"
	"github.com/eminwux/wemu/cmd/wemu/config"
	"github.com/eminwux/wemu/cmd/wemu/emulator"
	"github.com/eminwux/wemu/cmd/wemu/serve"
	"github.com/eminwux/wemu/cmd/wemu/sessions"
	"github.com/eminwux/wemu/cmd/wemu/templates"
	"github.com/eminwux/wemu/cmd/wemu/workflows"
	"github.com/eminwux/wemu/internal/env"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "wemu",
		Short: "wemu runs Windows applications in Wine emulation sessions",
		Long: `wemu serves an HTTP API that hands out Wine display slots as time-bounded
sessions, proxies the Wine emulator service, and runs low-code workflows
built from UI, logic and Wine components.

You can see available options and commands with:
  wemu help

Examples:
  wemu serve
  wemu sessions create --app 1 --duration 30
  wemu workflow run -f install-notepad.yaml
  wemu emulator status
`,
		SilenceUsage: true,
		Version:      config.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(); err != nil {
				return err
			}
			level := env.LOG_LEVEL.ValueOrDefault()
			if file := env.LOG_FILE.ValueOrDefault(); file != "" {
				if err := logging.SetupFileLogger(cmd, file, level); err != nil {
					return fmt.Errorf("%w: log file: %w", errdefs.ErrConfig, err)
				}
				return nil
			}
			logging.SetupLogger(cmd, cmd.ErrOrStderr(), level)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if c, _ := cmd.Context().Value(logging.CtxCloser).(io.Closer); c != nil {
				_ = c.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	if err := setupRootCmd(rootCmd); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

func setupRootCmd(rootCmd *cobra.Command) error {
	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(sessions.NewSessionsCmd())
	rootCmd.AddCommand(apps.NewAppsCmd())
	rootCmd.AddCommand(workflows.NewWorkflowCmd())
	rootCmd.AddCommand(emulator.NewEmulatorCmd())
	rootCmd.AddCommand(templates.NewTemplatesCmd())
	rootCmd.AddCommand(autocomplete.NewAutoCompleteCmd(rootCmd))

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.wemu/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().String("server", "", "wemu server URL (default is http://localhost:8000)")
	_ = rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	_ = rootCmd.MarkPersistentFlagFilename("log-file")

	for flag, v := range map[string]env.Var{
		"config":    env.CONFIG_FILE,
		"log-level": env.LOG_LEVEL,
		"log-file":  env.LOG_FILE,
		"server":    env.SERVER_URL,
	} {
		if err := viper.BindPFlag(v.ViperKey, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}
