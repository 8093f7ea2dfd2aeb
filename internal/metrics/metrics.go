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

// Package metrics holds the prometheus collectors shared by the session
// manager, the dispatcher and the workflow engine. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wemu"

type Metrics struct {
	Registry *prometheus.Registry

	SlotsCapacity      prometheus.Gauge
	SlotsInUse         prometheus.Gauge
	SessionsCreated    *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
	SweepRuns          prometheus.Counter
	DispatchCalls      *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec
	WorkflowRuns       *prometheus.CounterVec
	WorkflowNodes      *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SlotsCapacity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slots",
			Name:      "capacity",
			Help:      "Number of configured emulation slots.",
		}),
		SlotsInUse: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slots",
			Name:      "in_use",
			Help:      "Number of slots held by sessions.",
		}),
		SessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Session create requests by outcome.",
		}, []string{"outcome"}),
		SessionTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "transitions_total",
			Help:      "Session status transitions by target status.",
		}, []string{"status"}),
		SweepRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "sweeps_total",
			Help:      "Expiry sweeps executed.",
		}),
		DispatchCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "calls_total",
			Help:      "Emulator calls by operation and result.",
		}, []string{"op", "result"}),
		DispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "call_duration_seconds",
			Help:      "Emulator call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		WorkflowRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Workflow runs by final status.",
		}, []string{"status"}),
		WorkflowNodes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "nodes_total",
			Help:      "Workflow component outcomes by type and status.",
		}, []string{"type", "status"}),
	}
}

func (m *Metrics) SetSlots(capacity, inUse int) {
	if m == nil {
		return
	}
	m.SlotsCapacity.Set(float64(capacity))
	m.SlotsInUse.Set(float64(inUse))
}

func (m *Metrics) SessionCreated(outcome string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionTransition(status string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Sweep() {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
}

func (m *Metrics) Dispatch(op string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.DispatchCalls.WithLabelValues(op, result).Inc()
	m.DispatchDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) WorkflowRun(status string) {
	if m == nil {
		return
	}
	m.WorkflowRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) WorkflowNode(typ, status string) {
	if m == nil {
		return
	}
	m.WorkflowNodes.WithLabelValues(typ, status).Inc()
}
