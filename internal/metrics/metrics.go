/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsBuilder contains the data and logic needed to create the metrics of the service.
type MetricsBuilder struct {
	registerer prometheus.Registerer
}

// Metrics holds the Prometheus metrics of the service. All the observation methods are safe to call on a nil
// receiver, so components can treat metrics as optional without checking.
type Metrics struct {
	unresolvedInherits prometheus.Counter
	scopedQueries      *prometheus.CounterVec
	participantLookups prometheus.Counter
}

// NewMetrics creates a builder that can then be used to configure and create the metrics.
func NewMetrics() *MetricsBuilder {
	return &MetricsBuilder{}
}

// SetRegisterer sets the Prometheus registerer where the metrics will be registered. This is mandatory. Tests
// should pass their own registry to avoid duplicate registration across specs.
func (b *MetricsBuilder) SetRegisterer(value prometheus.Registerer) *MetricsBuilder {
	b.registerer = value
	return b
}

// Build creates the metrics using the configuration stored in the builder.
func (b *MetricsBuilder) Build() (result *Metrics, err error) {
	// Check parameters:
	if b.registerer == nil {
		err = errors.New("registerer is mandatory")
		return
	}

	// Create and register the metrics:
	factory := promauto.With(b.registerer)
	result = &Metrics{
		unresolvedInherits: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenancy_unresolved_inherits_total",
			Help: "Number of security model resolutions that could not reach a terminal model.",
		}),
		scopedQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenancy_scoped_queries_total",
				Help: "Number of data access operations scoped by the tenancy layer.",
			},
			[]string{"table", "model"},
		),
		participantLookups: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenancy_participant_lookups_total",
			Help: "Number of lookups performed against the participant hierarchy.",
		}),
	}
	return
}

// ObserveUnresolvedInherit counts one security model resolution that fell back to the closed model because the
// hierarchy had no terminal model to offer. This usually indicates a data integrity issue in the hierarchy.
func (m *Metrics) ObserveUnresolvedInherit() {
	if m == nil {
		return
	}
	m.unresolvedInherits.Inc()
}

// ObserveScopedQuery counts one data access operation scoped with the given effective model.
func (m *Metrics) ObserveScopedQuery(table string, model string) {
	if m == nil {
		return
	}
	m.scopedQueries.WithLabelValues(table, model).Inc()
}

// ObserveParticipantLookup counts one lookup against the participant hierarchy.
func (m *Metrics) ObserveParticipantLookup() {
	if m == nil {
		return
	}
	m.participantLookups.Inc()
}
