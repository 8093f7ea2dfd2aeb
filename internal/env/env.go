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

package env

import (
	"os"

	"github.com/spf13/viper"
)

const Prefix = "WEMU"

type Var struct {
	Key        string // e.g. "WEMU_STORE_PATH"
	ViperKey   string // optional, e.g. "wemu.store.path"
	Default    string // optional
	HasDefault bool
}

func DefineKV(envName, viperKey string, defaultVal ...string) Var {
	v := Var{Key: Prefix + "_" + envName, ViperKey: viperKey}
	if len(defaultVal) > 0 {
		v.Default = defaultVal[0]
		v.HasDefault = true
	}
	return v
}

func Define(envName string, defaultVal ...string) Var {
	return DefineKV(envName, "", defaultVal...)
}

func (v Var) EnvKey() string               { return v.Key }
func (v Var) DefaultValue() (string, bool) { return v.Default, v.HasDefault }

// Precedence: viper (if ViperKey set and value present) → OS env → default → "".
func (v Var) ValueOrDefault() string {
	if v.ViperKey != "" && viper.IsSet(v.ViperKey) {
		if s := viper.GetString(v.ViperKey); s != "" {
			return s
		}
	}
	if val, ok := os.LookupEnv(v.Key); ok {
		return val
	}
	if v.HasDefault {
		return v.Default
	}
	return ""
}

// Safe if ViperKey is empty: does nothing.
func (v Var) BindEnv() error {
	if v.ViperKey == "" {
		return nil
	}
	return viper.BindEnv(v.ViperKey, v.Key)
}

func (v Var) Set(value string) error { return os.Setenv(v.Key, value) }

func (v *Var) SetDefault(val string) {
	v.Default = val
	v.HasDefault = true
	if v.ViperKey != "" {
		viper.SetDefault(v.ViperKey, val)
	}
}

func KV(v Var, value string) string { return v.Key + "=" + value }

// All returns every declared variable, in declaration order.
func All() []*Var {
	return []*Var{
		&CONFIG_FILE, &LOG_LEVEL, &LOG_FILE,
		&LISTEN_ADDR, &CORS_ORIGINS, &SERVER_URL,
		&STORE_DRIVER, &STORE_PATH,
		&WINE_SERVICE_URL, &STATUS_TIMEOUT, &EXECUTE_TIMEOUT,
		&SLOT_BASE, &SLOT_COUNT, &VNC_BASE_PORT,
		&SWEEP_INTERVAL, &MAX_DURATION,
		&MAX_LOOP_ITERATIONS, &WORKFLOW_TIMEOUT,
	}
}

// ---- Declare statically (Viper key optional per var) ----.
var (
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CONFIG_FILE = DefineKV("CONFIG_FILE", "wemu.global.configFile")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	LOG_LEVEL = DefineKV("LOG_LEVEL", "wemu.global.logLevel", "info")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	LOG_FILE = DefineKV("LOG_FILE", "wemu.global.logFile")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	LISTEN_ADDR = DefineKV("LISTEN_ADDR", "wemu.server.listenAddr", ":8000")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	CORS_ORIGINS = DefineKV(
		"CORS_ORIGINS",
		"wemu.server.corsOrigins",
		"http://localhost:3000,http://frontend:3000,http://localhost",
	)
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	SERVER_URL = DefineKV("SERVER_URL", "wemu.client.serverURL", "http://localhost:8000")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	STORE_DRIVER = DefineKV("STORE_DRIVER", "wemu.store.driver", "bolt")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	STORE_PATH = DefineKV("STORE_PATH", "wemu.store.path")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	WINE_SERVICE_URL = DefineKV("WINE_SERVICE_URL", "wemu.emulator.url", "http://wine-emulator:8080")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	STATUS_TIMEOUT = DefineKV("STATUS_TIMEOUT", "wemu.emulator.statusTimeout", "5s")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	EXECUTE_TIMEOUT = DefineKV("EXECUTE_TIMEOUT", "wemu.emulator.executeTimeout", "30s")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	SLOT_BASE = DefineKV("SLOT_BASE", "wemu.slots.base", "1")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	SLOT_COUNT = DefineKV("SLOT_COUNT", "wemu.slots.count", "10")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	VNC_BASE_PORT = DefineKV("VNC_BASE_PORT", "wemu.slots.vncBasePort", "5900")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	SWEEP_INTERVAL = DefineKV("SWEEP_INTERVAL", "wemu.sessions.sweepInterval", "1m")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	MAX_DURATION = DefineKV("MAX_DURATION", "wemu.sessions.maxDurationMinutes", "1440")

	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	MAX_LOOP_ITERATIONS = DefineKV("MAX_LOOP_ITERATIONS", "wemu.workflow.maxLoopIterations", "100")
	//nolint:revive,gochecknoglobals,staticcheck // ignore linter warning about this variable
	WORKFLOW_TIMEOUT = DefineKV("WORKFLOW_TIMEOUT", "wemu.workflow.timeout", "10m")
)
