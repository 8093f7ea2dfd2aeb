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
	"log/slog"

	"github.com/eminwux/wemu/internal/logging"
	"github.com/spf13/cobra"
)

// AutoCompleteListSessionIDs asks the configured server for session IDs.
// Terminal sessions are included only when showTerminal is set.
func AutoCompleteListSessionIDs(ctx context.Context, logger *slog.Logger, showTerminal bool) ([]string, error) {
	// logger is not set on autocomplete calls
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	sessions, err := Client().ListSessions(ctx, "")
	if err != nil {
		logger.ErrorContext(ctx, "ListSessions: failed to query server", "error", err)
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, errors.New("no sessions found")
	}

	var ids []string
	for _, s := range sessions {
		if showTerminal || !s.Status.Terminal() {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

// CompleteSessionIDs is a cobra ValidArgsFunction for commands taking one
// session ID.
func CompleteSessionIDs(
	showTerminal bool,
) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		logger, _ := Logger(cmd)
		ids, err := AutoCompleteListSessionIDs(ctx, logger, showTerminal)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	}
}
