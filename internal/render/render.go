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

// Package render prints API objects as tables, json, yaml or a plain tree.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
	"go.yaml.in/yaml/v3"
	"golang.org/x/term"
)

const (
	FormatHuman = ""
	FormatJSON  = "json"
	FormatYAML  = "yaml"

	NoSessionsString = "no sessions found\n"
)

// CheckFormat rejects anything but json, yaml or the empty human format.
func CheckFormat(format string) error {
	switch format {
	case FormatHuman, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("%w: %q (use json|yaml)", errdefs.ErrInvalidOutputFormat, format)
	}
}

// Print writes v in the given format. The human format is a key/value tree.
func Print(w io.Writer, v any, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatHuman:
		Human(w, v)
		return nil
	default:
		return CheckFormat(format)
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newTable(w io.Writer) *tabwriter.Writer {
	//nolint:mnd // tabwriter padding
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiGrey   = "\x1b[90m"
)

// paint keeps every colored cell the same byte width so tabwriter columns
// stay aligned.
func paint(color bool, code, s string) string {
	if !color {
		return s
	}
	return code + s + ansiReset
}

func sessionColor(s api.SessionStatus) string {
	switch s {
	case api.SessionActive:
		return ansiGreen
	case api.SessionPending:
		return ansiYellow
	case api.SessionFailed:
		return ansiRed
	default:
		return ansiGrey
	}
}

func nodeColor(s api.NodeStatus) string {
	switch s {
	case api.NodeExecuted:
		return ansiGreen
	case api.NodeFailed:
		return ansiRed
	case api.NodeSkipped:
		return ansiYellow
	default:
		return ansiGrey
	}
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// Sessions prints a table of sessions. Terminal sessions are hidden unless
// all is set.
func Sessions(w io.Writer, sessions []*api.Session, all bool) error {
	color := IsTerminal(w)
	tw := newTable(w)

	shown := 0
	for _, s := range sessions {
		if all || !s.Status.Terminal() {
			shown++
		}
	}
	if len(sessions) == 0 {
		fmt.Fprint(tw, NoSessionsString)
		return tw.Flush()
	}
	if shown == 0 {
		fmt.Fprintln(tw, "no live sessions found")
		return tw.Flush()
	}

	fmt.Fprintln(tw, "ID\tAPP\tSLOT\tDISPLAY\tVNC\tSTATUS\tEXPIRES")
	for _, s := range sessions {
		if !all && s.Status.Terminal() {
			continue
		}
		app := "None"
		if s.ApplicationID != nil {
			app = strconv.FormatInt(*s.ApplicationID, 10)
		}
		expires := "None"
		if s.ExpiresAt != nil {
			expires = s.ExpiresAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
			s.ID,
			app,
			s.Slot,
			orNone(s.Metadata.Display),
			s.VNCPort,
			paint(color, sessionColor(s.Status), s.Status.String()),
			expires,
		)
	}
	return tw.Flush()
}

func Applications(w io.Writer, apps []*api.Application) error {
	tw := newTable(w)
	if len(apps) == 0 {
		fmt.Fprintln(tw, "no applications found")
		return tw.Flush()
	}
	fmt.Fprintln(tw, "ID\tNAME\tEXECUTABLE\tPREFIX\tACTIVE")
	for _, a := range apps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n",
			a.ID, a.Name, a.ExecutablePath, orNone(a.EmulatorConfig.WinePrefix), a.Active)
	}
	return tw.Flush()
}

// WorkflowResult prints one line per component in execution order, then a
// summary.
func WorkflowResult(w io.Writer, res *api.WorkflowResult) error {
	color := IsTerminal(w)
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tRUNS\tDURATION\tDETAIL")
	for _, o := range res.Outcomes {
		detail := o.Error
		if detail == "" {
			detail = o.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.ID,
			o.Type,
			paint(color, nodeColor(o.Status), string(o.Status)),
			o.Runs,
			(time.Duration(o.DurationMS) * time.Millisecond).String(),
			detail,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nrun %s (%s): %s, %d executed, %d skipped, %d failed\n",
		res.RunID, orNone(res.Name), res.Status, res.Executed, res.Skipped, res.Failed)
	return err
}

func Templates(w io.Writer, t *api.ComponentTemplates) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "GROUP\tTYPE\tNAME")
	groups := []struct {
		name  string
		items []api.ComponentTemplate
	}{
		{"ui", t.UI},
		{"logic", t.Logic},
		{"wine", t.Wine},
	}
	for _, g := range groups {
		for _, c := range g.items {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", g.name, c.Type, c.Name)
		}
	}
	return tw.Flush()
}

func EmulatorStatus(w io.Writer, st *api.EmulatorStatus) error {
	color := IsTerminal(w)
	code := ansiGreen
	if !st.Available() {
		code = ansiRed
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "STATUS:\t%s\n", paint(color, code, st.Status))
	fmt.Fprintf(tw, "WINE:\t%s\n", orNone(st.WineVersion))
	fmt.Fprintf(tw, "DISPLAY:\t%s\n", orNone(st.Display))
	fmt.Fprintf(tw, "VNC:\t%t\n", st.VNCAvailable)
	if st.Error != "" {
		fmt.Fprintf(tw, "ERROR:\t%s\n", strings.TrimSpace(st.Error))
	}
	return tw.Flush()
}
