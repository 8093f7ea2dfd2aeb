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

package apps

import (
	"fmt"

	"github.com/eminwux/wemu/cmd/wemu/config"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/render"
	"github.com/eminwux/wemu/pkg/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	listSkipInput     = "wemu.apps.list.skip"
	listLimitInput    = "wemu.apps.list.limit"
	listOutputInput   = "wemu.apps.list.output"
	createNameInput   = "wemu.apps.create.name"
	createExeInput    = "wemu.apps.create.exe"
	createDescInput   = "wemu.apps.create.description"
	createPrefixInput = "wemu.apps.create.prefix"
	createArchInput   = "wemu.apps.create.arch"
	createArgsInput   = "wemu.apps.create.args"
	createOutputInput = "wemu.apps.create.output"
)

func NewAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apps",
		Aliases: []string{"app", "applications"},
		Short:   "Manage the application catalog",
		Long: `List and register Windows applications a session can launch.

Examples:
  wemu apps list
  wemu apps create --name Notepad --exe notepad.exe
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Aliases:      []string{"ls", "l"},
		Short:        "List active applications",
		SilenceUsage: true,
		RunE:         listApps,
	}
	cmd.Flags().Int("skip", 0, "Number of applications to skip")
	_ = viper.BindPFlag(listSkipInput, cmd.Flags().Lookup("skip"))
	cmd.Flags().Int("limit", 100, "Maximum number of applications to list")
	_ = viper.BindPFlag(listLimitInput, cmd.Flags().Lookup("limit"))
	config.AddOutputFlag(cmd, listOutputInput)
	return cmd
}

func listApps(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errdefs.ErrTooManyArguments
	}
	format := viper.GetString(listOutputInput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}
	skip, limit := viper.GetInt(listSkipInput), viper.GetInt(listLimitInput)
	if skip < 0 || limit < 0 {
		return fmt.Errorf("%w: --skip and --limit must not be negative", errdefs.ErrInvalidFlag)
	}
	logger.Debug("apps list command invoked", "skip", skip, "limit", limit)

	apps, err := config.Client().ListApplications(cmd.Context(), skip, limit)
	if err != nil {
		return err
	}
	if format == render.FormatHuman {
		return render.Applications(cmd.OutOrStdout(), apps)
	}
	return render.Print(cmd.OutOrStdout(), apps, format)
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "create",
		Aliases:      []string{"add"},
		Short:        "Register an application",
		SilenceUsage: true,
		RunE:         createApp,
	}
	cmd.Flags().String("name", "", "Display name")
	_ = viper.BindPFlag(createNameInput, cmd.Flags().Lookup("name"))
	cmd.Flags().String("exe", "", "Executable path inside the Wine prefix")
	_ = viper.BindPFlag(createExeInput, cmd.Flags().Lookup("exe"))
	cmd.Flags().String("description", "", "Free text description")
	_ = viper.BindPFlag(createDescInput, cmd.Flags().Lookup("description"))
	cmd.Flags().String("prefix", "", "Wine prefix (emulator default if omitted)")
	_ = viper.BindPFlag(createPrefixInput, cmd.Flags().Lookup("prefix"))
	cmd.Flags().String("arch", "", "Prefix architecture: win32|win64")
	_ = viper.BindPFlag(createArchInput, cmd.Flags().Lookup("arch"))
	cmd.Flags().StringSlice("args", nil, "Arguments passed to the executable")
	_ = viper.BindPFlag(createArgsInput, cmd.Flags().Lookup("args"))
	config.AddOutputFlag(cmd, createOutputInput)
	return cmd
}

func createApp(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errdefs.ErrTooManyArguments
	}
	format := viper.GetString(createOutputInput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}

	in := api.ApplicationInput{
		Name:           viper.GetString(createNameInput),
		ExecutablePath: viper.GetString(createExeInput),
		Description:    viper.GetString(createDescInput),
		EmulatorConfig: api.EmulatorConfig{
			WinePrefix: viper.GetString(createPrefixInput),
			Arch:       viper.GetString(createArchInput),
			Args:       viper.GetStringSlice(createArgsInput),
		},
	}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidFlag, err)
	}
	logger.Debug("apps create command invoked", "name", in.Name, "executable", in.ExecutablePath)

	app, err := config.Client().CreateApplication(cmd.Context(), in)
	if err != nil {
		return err
	}
	if format == render.FormatHuman {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "application %d %s created\n", app.ID, app.Name)
		return err
	}
	return render.Print(cmd.OutOrStdout(), app, format)
}
