package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK = "ok"
)

// Registry agrupa los contadores del registro de reportes.
type Registry struct {
	operations *prometheus.CounterVec
	events     *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
}

// New registra los contadores en reg. Con reg == nil no registra nada
// (útil en tests que crean varios servicios).
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pettrace_registry_operations_total",
			Help: "registry operations by name and result",
		}, []string{"operation", "result"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pettrace_registry_events_total",
			Help: "registry events recorded by type",
		}, []string{"type"}),
		sinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pettrace_event_sink_errors_total",
			Help: "event deliveries that failed, by sink",
		}, []string{"sink"}),
	}
}

// ObserveOperation cuenta una operación; result es "ok" o el kind del error.
func (r *Registry) ObserveOperation(operation, result string) {
	if r == nil {
		return
	}
	if result == "" {
		result = ResultOK
	}
	r.operations.WithLabelValues(operation, result).Inc()
}

func (r *Registry) ObserveEvent(eventType string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(eventType).Inc()
}

func (r *Registry) ObserveSinkError(sink string) {
	if r == nil {
		return
	}
	r.sinkErrors.WithLabelValues(sink).Inc()
}
