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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eminwux/wemu/internal/env"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/logging"
	"github.com/eminwux/wemu/internal/server/servertest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Test_setupRootCmd_HappyPath(t *testing.T) {
	t.Cleanup(viper.Reset)

	rootCmd := &cobra.Command{Use: "wemu"}
	if err := setupRootCmd(rootCmd); err != nil {
		t.Fatalf("setupRootCmd() error = %v", err)
	}

	flagCases := []struct {
		flagName string
		value    string
		viperKey string
	}{
		{"config", "/tmp/wemu.yaml", env.CONFIG_FILE.ViperKey},
		{"log-level", "debug", env.LOG_LEVEL.ViperKey},
		{"log-file", "/tmp/wemu.log", env.LOG_FILE.ViperKey},
		{"server", "http://wemu:8000", env.SERVER_URL.ViperKey},
	}
	for _, tc := range flagCases {
		t.Run(tc.flagName, func(t *testing.T) {
			if err := rootCmd.PersistentFlags().Set(tc.flagName, tc.value); err != nil {
				t.Fatalf("failed to set flag %s: %v", tc.flagName, err)
			}
			if got := viper.GetString(tc.viperKey); got != tc.value {
				t.Fatalf("viper key %s expected %s, got %s", tc.viperKey, tc.value, got)
			}
		})
	}

	for _, name := range []string{"serve", "sessions", "apps", "workflow", "emulator", "templates", "autocomplete"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand '%v'; got: '%v'", name, err)
		}
	}
}

func newRoot(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	root, err := NewRootCmd()
	if err != nil {
		t.Fatalf("NewRootCmd: %v", err)
	}
	root.SetContext(context.WithValue(context.Background(), logging.CtxLogger, logging.NewNoopLogger()))
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	return root, out
}

func Test_Root_ServerFlag(t *testing.T) {
	ts := servertest.New(t, 1, nil)
	root, out := newRoot(t)

	root.SetArgs([]string{"--server", ts.URL, "sessions", "list"})
	if err := root.Execute(); err != nil {
		t.Fatalf("expected '%v'; got: '%v'", nil, err)
	}
	if !strings.Contains(out.String(), "no sessions found") {
		t.Fatalf("expected '%v'; got: '%v'", "no sessions found", out.String())
	}
}

func Test_Root_LogFile(t *testing.T) {
	ts := servertest.New(t, 1, nil)
	root, _ := newRoot(t)
	logFile := filepath.Join(t.TempDir(), "logs", "wemu.log")

	root.SetArgs([]string{
		"--server", ts.URL,
		"--log-file", logFile,
		"--log-level", "debug",
		"templates",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("expected '%v'; got: '%v'", nil, err)
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `DEBUG "templates command invoked"`) {
		t.Fatalf("expected '%v'; got: '%v'", "templates command invoked", string(data))
	}
}

func Test_Root_MissingConfigFile(t *testing.T) {
	root, _ := newRoot(t)
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "templates"})
	if err := root.Execute(); !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected '%v'; got: '%v'", errdefs.ErrConfig, err)
	}
}

func Test_runWithFactory(t *testing.T) {
	tests := []struct {
		name    string
		factory rootFactory
		want    int
	}{
		{
			name: "factory error",
			factory: func() (*cobra.Command, error) {
				return nil, errors.New("boom")
			},
			want: 1,
		},
		{
			name: "command error",
			factory: func() (*cobra.Command, error) {
				return &cobra.Command{
					Use:           "x",
					SilenceErrors: true,
					RunE:          func(*cobra.Command, []string) error { return errors.New("fail") },
				}, nil
			},
			want: 1,
		},
		{
			name: "ok",
			factory: func() (*cobra.Command, error) {
				c := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
				c.SetArgs([]string{})
				return c, nil
			},
			want: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runWithFactory(context.Background(), tc.factory); got != tc.want {
				t.Fatalf("expected '%v'; got: '%v'", tc.want, got)
			}
		})
	}
}
