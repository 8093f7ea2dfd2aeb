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

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func Test_AutoComplete(t *testing.T) {
	tests := []struct {
		shell   string
		want    string
		wantErr bool
	}{
		{shell: "bash", want: "__start_wemu"},
		{shell: "zsh", want: "#compdef wemu"},
		{shell: "fish", want: "complete -c wemu"},
		{shell: "powershell", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.shell, func(t *testing.T) {
			root := &cobra.Command{Use: "wemu", SilenceErrors: true}
			root.AddCommand(NewAutoCompleteCmd(root))
			out := &bytes.Buffer{}
			root.SetOut(out)
			root.SetErr(&bytes.Buffer{})
			root.SetArgs([]string{Command, tc.shell})

			err := root.Execute()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s; got: nil", tc.shell)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected '%v'; got: '%v'", nil, err)
			}
			if !strings.Contains(out.String(), tc.want) {
				t.Fatalf("expected '%v' in output", tc.want)
			}
		})
	}
}
