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

package templates

import (
	"github.com/eminwux/wemu/cmd/wemu/config"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const outputInput = "wemu.templates.output"

func NewTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"tpl"},
		Short:   "List the workflow component catalog",
		Long: `List the component types a workflow may use, grouped as ui, logic and wine.

Examples:
  wemu templates
  wemu templates -o yaml
`,
		SilenceUsage: true,
		RunE:         listTemplates,
	}
	config.AddOutputFlag(cmd, outputInput)
	return cmd
}

func listTemplates(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errdefs.ErrTooManyArguments
	}
	format := viper.GetString(outputInput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}
	logger.Debug("templates command invoked")

	t, err := config.Client().Templates(cmd.Context())
	if err != nil {
		return err
	}
	if format == render.FormatHuman {
		return render.Templates(cmd.OutOrStdout(), t)
	}
	return render.Print(cmd.OutOrStdout(), t, format)
}
