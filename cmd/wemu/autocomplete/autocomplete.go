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

package autocomplete

import "github.com/spf13/cobra"

const (
	Command string = "autocomplete"
)

func NewAutoCompleteCmd(root *cobra.Command) *cobra.Command {
	autocompleteCmd := &cobra.Command{
		Use:   Command,
		Short: "Generate shell autocompletion scripts",
		Long: `Generate shell autocompletion scripts for wemu.

To load completions in your current shell session:

Bash:

  $ source <(wemu autocomplete bash)

  # To load completions for each session, execute once:
  $ wemu autocomplete bash > /etc/bash_completion.d/wemu

Zsh:

  $ wemu autocomplete zsh > "${fpath[1]}/_wemu"

Fish:

  $ wemu autocomplete fish > ~/.config/fish/completions/wemu.fish

Session IDs are completed from the configured wemu server.
`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:             []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(cmd.OutOrStdout(), true)
			case "zsh":
				return root.GenZshCompletion(cmd.OutOrStdout())
			default:
				return root.GenFishCompletion(cmd.OutOrStdout(), true)
			}
		},
	}

	return autocompleteCmd
}
