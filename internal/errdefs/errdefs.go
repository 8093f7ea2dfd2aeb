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

package errdefs

import (
	"errors"
	"fmt"
)

var (
	ErrResourceExhausted = errors.New("no free emulation slot")
	ErrNotFound          = errors.New("not found")
	ErrCycleDetected     = errors.New("workflow contains a cycle")
	ErrDispatchFailure   = errors.New("emulator command failed")
	ErrInvalid           = errors.New("invalid request")

	ErrSessionNotFound     = fmt.Errorf("session %w", ErrNotFound)
	ErrApplicationNotFound = fmt.Errorf("application %w", ErrNotFound)
	ErrComponentNotFound   = fmt.Errorf("component %w", ErrNotFound)

	ErrSlotOutOfRange      = errors.New("slot is outside the configured range")
	ErrSlotHeld            = errors.New("slot is already held")
	ErrSessionTerminal     = errors.New("session is in a terminal state")
	ErrApplicationInactive = fmt.Errorf("%w: application is inactive", ErrInvalid)

	ErrStore               = errors.New("error in store")
	ErrOpenStore           = errors.New("could not open store")
	ErrStoreDriver         = errors.New("unknown store driver")
	ErrConfig              = errors.New("config error")
	ErrLoggerNotFound      = errors.New("logger not found in context")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrInvalidFlag         = errors.New("invalid flag usage")
	ErrTooManyArguments    = errors.New("too many arguments")
	ErrNoSessionIdentifier = errors.New("no session ID provided")
	ErrReadWorkflowFile    = errors.New("could not read workflow file")
	ErrDecodeWorkflow      = errors.New("could not decode workflow document")
	ErrWorkflowFailed      = errors.New("workflow run did not succeed")
	ErrContextDone         = errors.New("context has been cancelled")
	ErrServerExited        = errors.New("HTTP server exited with error")
	ErrRemote              = errors.New("server returned an error")
)
