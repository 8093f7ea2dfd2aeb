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

package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/eminwux/wemu/internal/errdefs"
	"github.com/eminwux/wemu/pkg/api"
	"go.yaml.in/yaml/v3"
)

// Parse decodes a workflow document. JSON objects are decoded as JSON,
// anything else as YAML.
func Parse(data []byte) (*api.Workflow, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: document is empty", errdefs.ErrDecodeWorkflow)
	}
	var wf api.Workflow
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &wf); err != nil {
			return nil, fmt.Errorf("%w: %w", errdefs.ErrDecodeWorkflow, err)
		}
		return &wf, nil
	}
	if err := yaml.Unmarshal(trimmed, &wf); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrDecodeWorkflow, err)
	}
	return &wf, nil
}

func Load(r io.Reader) (*api.Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrReadWorkflowFile, err)
	}
	return Parse(data)
}

func LoadFile(path string) (*api.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrReadWorkflowFile, err)
	}
	wf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}
