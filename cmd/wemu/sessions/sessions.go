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

package sessions

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
	listAllInput    = "wemu.sessions.list.all"
	listStatusInput = "wemu.sessions.list.status"
	listOutputInput = "wemu.sessions.list.output"
	getOutputInput  = "wemu.sessions.get.output"
	createAppInput  = "wemu.sessions.create.app"
	createUserInput = "wemu.sessions.create.user"
	createDurInput  = "wemu.sessions.create.duration"
	createOutput    = "wemu.sessions.create.output"
	terminateOutput = "wemu.sessions.terminate.output"
)

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "s"},
		Short:   "Manage emulation sessions",
		Long: `Create, inspect and terminate emulation sessions on a wemu server.

Examples:
  wemu sessions list
  wemu sessions create --app 3 --duration 30
  wemu sessions get 0f3c... -o yaml
  wemu sessions terminate 0f3c...
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newTerminateCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Aliases:      []string{"ls", "l"},
		Short:        "List sessions",
		SilenceUsage: true,
		RunE:         listSessions,
	}
	cmd.Flags().BoolP("all", "a", false, "Include expired, terminated and failed sessions")
	_ = viper.BindPFlag(listAllInput, cmd.Flags().Lookup("all"))
	cmd.Flags().StringP("status", "s", "", "Only list sessions in this status")
	_ = viper.BindPFlag(listStatusInput, cmd.Flags().Lookup("status"))
	config.AddOutputFlag(cmd, listOutputInput)
	return cmd
}

func listSessions(cmd *cobra.Command, args []string) error {
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
	status := api.SessionStatus(viper.GetString(listStatusInput))

	logger.Debug("sessions list command invoked", "status", status, "all", viper.GetBool(listAllInput))

	sessions, err := config.Client().ListSessions(cmd.Context(), status)
	if err != nil {
		logger.Debug("error listing sessions", "error", err)
		return err
	}
	if format != render.FormatHuman {
		return render.Print(cmd.OutOrStdout(), sessions, format)
	}
	// an explicit status filter shows terminal sessions too
	return render.Sessions(cmd.OutOrStdout(), sessions, viper.GetBool(listAllInput) || status != "")
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "get SESSION_ID",
		Short:             "Show one session",
		SilenceUsage:      true,
		RunE:              getSession,
		ValidArgsFunction: config.CompleteSessionIDs(true),
	}
	config.AddOutputFlag(cmd, getOutputInput)
	return cmd
}

func sessionArg(args []string) (string, error) {
	switch {
	case len(args) == 0:
		return "", errdefs.ErrNoSessionIdentifier
	case len(args) > 1:
		return "", errdefs.ErrTooManyArguments
	default:
		return args[0], nil
	}
}

func getSession(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	id, err := sessionArg(args)
	if err != nil {
		return err
	}
	format := viper.GetString(getOutputInput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}
	logger.Debug("sessions get command invoked", "session_id", id)

	sess, err := config.Client().GetSession(cmd.Context(), id)
	if err != nil {
		return err
	}
	return render.Print(cmd.OutOrStdout(), sess, format)
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "create",
		Aliases:      []string{"new"},
		Short:        "Start a session, optionally launching an application",
		SilenceUsage: true,
		RunE:         createSession,
	}
	cmd.Flags().Int64("app", 0, "Application ID to launch (none if omitted)")
	_ = viper.BindPFlag(createAppInput, cmd.Flags().Lookup("app"))
	cmd.Flags().String("user", "", "User the session belongs to")
	_ = viper.BindPFlag(createUserInput, cmd.Flags().Lookup("user"))
	cmd.Flags().Int("duration", 0, "Lifetime in minutes (server default if omitted)")
	_ = viper.BindPFlag(createDurInput, cmd.Flags().Lookup("duration"))
	config.AddOutputFlag(cmd, createOutput)
	return cmd
}

func createSession(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errdefs.ErrTooManyArguments
	}
	format := viper.GetString(createOutput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}

	req := api.CreateSessionRequest{
		UserID:          viper.GetString(createUserInput),
		DurationMinutes: viper.GetInt(createDurInput),
	}
	if app := viper.GetInt64(createAppInput); app != 0 {
		req.ApplicationID = &app
	}
	if req.DurationMinutes < 0 {
		return fmt.Errorf("%w: --duration must not be negative", errdefs.ErrInvalidFlag)
	}
	logger.Debug("sessions create command invoked", "application_id", req.ApplicationID, "duration", req.DurationMinutes)

	sess, err := config.Client().CreateSession(cmd.Context(), req)
	if err != nil {
		return err
	}
	if err := render.Print(cmd.OutOrStdout(), sess, format); err != nil {
		return err
	}
	if sess.Status == api.SessionFailed {
		return fmt.Errorf("%w: session %s failed to launch", errdefs.ErrDispatchFailure, sess.ID)
	}
	return nil
}

func newTerminateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "terminate SESSION_ID",
		Aliases:           []string{"stop", "rm"},
		Short:             "Terminate a session and free its slot",
		SilenceUsage:      true,
		RunE:              terminateSession,
		ValidArgsFunction: config.CompleteSessionIDs(false),
	}
	config.AddOutputFlag(cmd, terminateOutput)
	return cmd
}

func terminateSession(cmd *cobra.Command, args []string) error {
	logger, err := config.Logger(cmd)
	if err != nil {
		return err
	}
	id, err := sessionArg(args)
	if err != nil {
		return err
	}
	format := viper.GetString(terminateOutput)
	if err := render.CheckFormat(format); err != nil {
		return err
	}
	logger.Debug("sessions terminate command invoked", "session_id", id)

	sess, err := config.Client().TerminateSession(cmd.Context(), id)
	if err != nil {
		return err
	}
	if format == render.FormatHuman {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "session %s %s\n", sess.ID, sess.Status)
		return err
	}
	return render.Print(cmd.OutOrStdout(), sess, format)
}
