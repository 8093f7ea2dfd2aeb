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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Component config arrives as decoded JSON or YAML, so numbers may be any
// numeric kind and lists are []any.

func configString(cfg map[string]any, key string) string {
	switch v := cfg[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func configBool(cfg map[string]any, key string) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// configInt reports the integer at key and whether it was present.
func configInt(cfg map[string]any, key string) (int, bool, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case uint64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%v is not a whole number", v)
		}
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, true, fmt.Errorf("%q is not a number", v)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("unsupported value %v", raw)
	}
}

// configStrings accepts a list or a whitespace separated string.
func configStrings(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}

func configStringMap(cfg map[string]any, key string) map[string]string {
	m, ok := cfg[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

type registryEntry struct {
	Key  string
	Name string
	Type string
	Data string
}

func registryEntries(cfg map[string]any) ([]registryEntry, error) {
	raw, ok := cfg["registry"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("must be a list")
	}
	out := make([]registryEntry, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d is not an object", i)
		}
		e := registryEntry{
			Key:  configString(m, "key"),
			Name: configString(m, "name"),
			Type: configString(m, "type"),
			Data: configString(m, "data"),
		}
		if e.Key == "" {
			return nil, fmt.Errorf("entry %d has no key", i)
		}
		if e.Type == "" {
			e.Type = "REG_SZ"
		}
		out = append(out, e)
	}
	return out, nil
}

func (e registryEntry) args() []string {
	args := []string{"add", e.Key}
	if e.Name != "" {
		args = append(args, "/v", e.Name)
	}
	return append(args, "/t", e.Type, "/d", e.Data, "/f")
}
