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

package emulator

import (
	"fmt"

	"github.com/eminwux/wemu/cmd/wemu/config"
	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	statusOutputInput = "wemu.emulator.status.output"
	infoOutputInput   = "wemu.emulator.info.output"
)

func NewEmulatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "emulator",
		Aliases: []string{"emu", "wine"},
		Short:   "Inspect the Wine emulator behind a wemu server",
		Long: `Inspect the Wine emulator behind a wemu server.

Examples:
  wemu emulator status
  wemu emulator info -o json
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInfoCmd())
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show whether the emulator is reachable",
		SilenceUsage: true,
		RunE:         emulatorStatus,
	}
	config.AddOutputFlag(cmd, statusOutputInput)
	return cmd
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "info",
		Short:        "Show static emulator capabilities",
		SilenceUsage: true,
		RunE:         emulatorInfo,
	}
	config.AddOutputFlag(cmd, infoOutputInput)
	return cmd
}

func emulatorStatus(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errdefs.ErrTooManyArguments
	}
	format := viper.GetString(statusOutputInput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}
	logger.Debug("emulator status command invoked")

	st, err := config.Client().EmulatorStatus(cmd.Context())
	if err != nil {
		return err
	}
	if format == render.FormatHuman {
		err = render.EmulatorStatus(cmd.OutOrStdout(), st)
	} else {
		err = render.Print(cmd.OutOrStdout(), st, format)
	}
	if err != nil {
		return err
	}
	if !st.Available() {
		return fmt.Errorf("%w: emulator is %s", errdefs.ErrDispatchFailure, st.Status)
	}
	return nil
}

func emulatorInfo(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errdefs.ErrTooManyArguments
	}
	format := viper.GetString(infoOutputInput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}
	logger.Debug("emulator info command invoked")

	info, err := config.Client().EmulatorInfo(cmd.Context())
	if err != nil {
		return err
	}
	return render.Print(cmd.OutOrStdout(), info, format)
}
