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

package workflows

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/eminwux/wemu/cmd/wemu/config"
	"github.com/eminwux/wemu/internal/dispatcher"
	"github.com/eminwux/wemu/internal/env"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/render"
	"github.com/eminwux/wemu/internal/workflow"
	"github.com/eminwux/wemu/pkg/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	validateFileInput   = "wemu.workflows.validate.file"
	validateOutputInput = "wemu.workflows.validate.output"
	runFileInput        = "wemu.workflows.run.file"
	runRemoteInput      = "wemu.workflows.run.remote"
	runOutputInput      = "wemu.workflows.run.output"
)

func NewWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Validate and run low-code workflows",
		Long: `Validate and run workflow documents (yaml or json).

Examples:
  wemu workflow validate -f install.yaml
  wemu workflow run -f install.yaml
  wemu workflow run -f install.yaml --remote -o json
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}

func addFileFlag(cmd *cobra.Command, viperKey string) {
	cmd.Flags().StringP("file", "f", "", "Workflow file (yaml or json)")
	_ = viper.BindPFlag(viperKey, cmd.Flags().Lookup("file"))
	_ = cmd.MarkFlagFilename("file", "yaml", "yml", "json")
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "validate",
		Short:        "Check a workflow and print its execution order",
		SilenceUsage: true,
		RunE:         validateWorkflow,
	}
	addFileFlag(cmd, validateFileInput)
	config.AddOutputFlag(cmd, validateOutputInput)
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Execute a workflow against the emulator",
		SilenceUsage: true,
		RunE:         runWorkflow,
	}
	addFileFlag(cmd, runFileInput)
	cmd.Flags().Bool("remote", false, "Execute on the wemu server instead of locally")
	_ = viper.BindPFlag(runRemoteInput, cmd.Flags().Lookup("remote"))
	config.AddOutputFlag(cmd, runOutputInput)
	return cmd
}

func loadArgs(cmd *cobra.Command, args []string, fileKey, outputKey string) (*slog.Logger, *api.Workflow, string, error) {
	logger, err := config.Logger(cmd)
	if err != nil {
		return nil, nil, "", err
	}
	if len(args) > 0 {
		return nil, nil, "", errdefs.ErrTooManyArguments
	}
	format := viper.GetString(outputKey)
	if err := render.CheckFormat(format); err != nil {
		return nil, nil, "", err
	}
	file := viper.GetString(fileKey)
	if file == "" {
		return nil, nil, "", fmt.Errorf("%w: --file is required", errdefs.ErrInvalidFlag)
	}
	wf, err := workflow.LoadFile(file)
	if err != nil {
		return nil, nil, "", err
	}
	return logger, wf, format, nil
}

// engine builds a local engine. A nil dispatcher leaves emulator components
// failing, which is enough for validation.
func engine(logger *slog.Logger, disp dispatcher.Dispatcher) (*workflow.Engine, error) {
	maxLoop, err := config.Int(env.MAX_LOOP_ITERATIONS)
	if err != nil {
		return nil, err
	}
	timeout, err := config.Duration(env.WORKFLOW_TIMEOUT)
	if err != nil {
		return nil, err
	}
	return workflow.New(workflow.Config{MaxLoopIterations: maxLoop, Timeout: timeout}, disp, nil, logger, nil), nil
}

func validateWorkflow(cmd *cobra.Command, args []string) error {
	logger, wf, format, err := loadArgs(cmd, args, validateFileInput, validateOutputInput)
	if err != nil {
		return err
	}
	eng, err := engine(logger, nil)
	if err != nil {
		return err
	}
	plan, err := eng.Compile(wf)
	if err != nil {
		logger.Debug("workflow rejected", "error", err)
		return err
	}
	res := api.WorkflowValidation{Valid: true, Order: plan.Order}
	if format != render.FormatHuman {
		return render.Print(cmd.OutOrStdout(), res, format)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "workflow is valid, order: %s\n", strings.Join(plan.Order, " -> "))
	return err
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	logger, wf, format, err := loadArgs(cmd, args, runFileInput, runOutputInput)
	if err != nil {
		return err
	}

	var res *api.WorkflowResult
	if viper.GetBool(runRemoteInput) {
		logger.Debug("running workflow on server", "server", env.SERVER_URL.ValueOrDefault())
		res, err = config.Client().ExecuteWorkflow(cmd.Context(), wf)
	} else {
		timeout, terr := config.Duration(env.EXECUTE_TIMEOUT)
		if terr != nil {
			return terr
		}
		disp := dispatcher.NewHTTP(dispatcher.Config{
			BaseURL:        env.WINE_SERVICE_URL.ValueOrDefault(),
			ExecuteTimeout: timeout,
		}, nil, logger, nil)
		eng, eerr := engine(logger, disp)
		if eerr != nil {
			return eerr
		}
		logger.Debug("running workflow locally", "emulator", env.WINE_SERVICE_URL.ValueOrDefault())
		res, err = eng.Execute(cmd.Context(), wf)
	}
	if err != nil {
		return err
	}

	if format != render.FormatHuman {
		if perr := render.Print(cmd.OutOrStdout(), res, format); perr != nil {
			return perr
		}
	} else if perr := render.WorkflowResult(cmd.OutOrStdout(), res); perr != nil {
		return perr
	}
	if res.Status == api.RunFailed || res.Status == api.RunCancelled {
		return fmt.Errorf("%w: run %s %s", errdefs.ErrWorkflowFailed, res.RunID, res.Status)
	}
	return nil
}
