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

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/eminwux/wemu/internal/env"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/logging"
	"github.com/eminwux/wemu/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags.
//
//nolint:gochecknoglobals // set by the linker
var Version = "dev"

func DefaultHome() string {
	base, err := os.UserHomeDir()
	if err != nil {
		// fallback to tmp if home dir cannot be determined
		base = os.TempDir()
	}
	return filepath.Join(base, ".wemu")
}

func DefaultConfigFile() string { return filepath.Join(DefaultHome(), "config.yaml") }

func DefaultStorePath() string { return filepath.Join(DefaultHome(), "wemu.db") }

// LoadConfig binds every WEMU_* variable, installs defaults and reads the
// config file. A missing default config file is not an error; a missing
// file named explicitly is.
func LoadConfig() error {
	_ = env.CONFIG_FILE.BindEnv()
	if file := viper.GetString(env.CONFIG_FILE.ViperKey); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DefaultHome())
	}

	env.STORE_PATH.SetDefault(DefaultStorePath())
	for _, v := range env.All() {
		if err := v.BindEnv(); err != nil {
			return fmt.Errorf("%w: bind %s: %w", errdefs.ErrConfig, v.Key, err)
		}
		if def, ok := v.DefaultValue(); ok {
			v.SetDefault(def)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("%w: %w", errdefs.ErrConfig, err)
		}
	}
	return nil
}

// Logger returns the logger installed on the command context.
func Logger(cmd *cobra.Command) (*slog.Logger, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	logger, ok := ctx.Value(logging.CtxLogger).(*slog.Logger)
	if !ok || logger == nil {
		return nil, errdefs.ErrLoggerNotFound
	}
	return logger, nil
}

// WithLogger is a convenience for tests and main.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, logging.CtxLogger, logger)
}

// Client returns an API client for the configured server URL.
func Client() client.Client {
	return client.New(env.SERVER_URL.ValueOrDefault())
}

func Int(v env.Var) (int, error) {
	raw := v.ValueOrDefault()
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", errdefs.ErrConfig, v.Key, raw)
	}
	return n, nil
}

func Duration(v env.Var) (time.Duration, error) {
	raw := v.ValueOrDefault()
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s=%q is not a positive duration", errdefs.ErrConfig, v.Key, raw)
	}
	return d, nil
}

// AddOutputFlag registers -o/--output bound to viperKey.
func AddOutputFlag(cmd *cobra.Command, viperKey string) {
	cmd.Flags().StringP("output", "o", "", "Output format: json|yaml (default: human-readable)")
	_ = viper.BindPFlag(viperKey, cmd.Flags().Lookup("output"))
	_ = cmd.RegisterFlagCompletionFunc(
		"output",
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
		},
	)
}
