// Package metrics exposes Prometheus collectors for the reservation
// lifecycle. A nil *Reservations is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
)

const namespace = "reservation"

// Reservations counts lifecycle outcomes.
type Reservations struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// NewReservations creates the collectors and registers them on reg.
func NewReservations(reg prometheus.Registerer) *Reservations {
	m := &Reservations{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Successful reservation lifecycle changes by source and target status.",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Rejected or failed reservation operations by operation and error kind.",
		}, []string{"op", "kind"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events handed to the broker by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.failures, m.published)
	}
	return m
}

// Transition records a successful change. from is empty for creations and
// to is empty for hard deletes.
func (m *Reservations) Transition(from, to model.Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(label(from), label(to)).Inc()
}

// Failure records an operation that returned an error of the given kind.
func (m *Reservations) Failure(op, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op, kind).Inc()
}

// Published records the result of an event publish.
func (m *Reservations) Published(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(result).Inc()
}

func label(s model.Status) string {
	if s == "" {
		return "none"
	}
	return string(s)
}
