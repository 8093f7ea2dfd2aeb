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

package render

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Human writes v as an indented key/value tree. Struct fields are labelled
// by their json name and zero values are left out.
func Human(w io.Writer, v any) {
	writeValue(w, reflect.ValueOf(v), "")
}

//nolint:gochecknoglobals // reflect type lookup
var timeType = reflect.TypeOf(time.Time{})

func writeValue(w io.Writer, v reflect.Value, indent string) {
	if !v.IsValid() {
		fmt.Fprintf(w, "%s<none>\n", indent)
		return
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			fmt.Fprintf(w, "%s<none>\n", indent)
			return
		}
		writeValue(w, v.Elem(), indent)
	case reflect.Struct:
		if v.Type() == timeType {
			fmt.Fprintf(w, "%s%s\n", indent, v.Interface().(time.Time).Format(time.RFC3339))
			return
		}
		writeStruct(w, v, indent)
	case reflect.Map:
		writeMap(w, v, indent)
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintf(w, "%s[]\n", indent)
			return
		}
		for i := range v.Len() {
			fmt.Fprintf(w, "%s-\n", indent)
			writeValue(w, v.Index(i), indent+"  ")
		}
	case reflect.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			s = `""`
		}
		fmt.Fprintf(w, "%s%s\n", indent, s)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		fmt.Fprintf(w, "%s<%s>\n", indent, v.Kind())
	default:
		fmt.Fprintf(w, "%s%v\n", indent, v.Interface())
	}
}

func writeStruct(w io.Writer, v reflect.Value, indent string) {
	t := v.Type()
	for i := range v.NumField() {
		field := t.Field(i)
		value := v.Field(i)
		if !field.IsExported() || value.IsZero() {
			continue
		}
		label := fieldLabel(field)
		if label == "" {
			continue
		}
		if scalar(value) {
			fmt.Fprintf(w, "%s%s: ", indent, label)
			writeValue(w, value, "")
			continue
		}
		fmt.Fprintf(w, "%s%s:\n", indent, label)
		writeValue(w, value, indent+"  ")
	}
}

func writeMap(w io.Writer, v reflect.Value, indent string) {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	for _, k := range keys {
		val := v.MapIndex(k)
		if scalar(val) {
			fmt.Fprintf(w, "%s%v: ", indent, k.Interface())
			writeValue(w, val, "")
			continue
		}
		fmt.Fprintf(w, "%s%v:\n", indent, k.Interface())
		writeValue(w, val, indent+"  ")
	}
}

func fieldLabel(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return f.Name
}

// scalar reports whether v prints on a single line.
func scalar(v reflect.Value) bool {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return v.Type() == timeType
	case reflect.Map, reflect.Slice, reflect.Array:
		return v.Len() == 0
	default:
		return true
	}
}
