package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics публикует Stats шины как Prometheus-метрики.
// Значения читаются при каждом сборе, отдельная горутина не нужна.
func RegisterMetrics(reg prometheus.Registerer, bus EventBus) error {
	stat := func(f func(Stats) float64) func() float64 {
		return func() float64 { return f(bus.Metrics()) }
	}

	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "chunkloader",
			Subsystem: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных событий чанков.",
		}, stat(func(s Stats) float64 { return float64(s.Published) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "chunkloader",
			Subsystem: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных подписчикам событий.",
		}, stat(func(s Stats) float64 { return float64(s.Consumed) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "chunkloader",
			Subsystem: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Событий, отброшенных из-за ошибок или back-pressure.",
		}, stat(func(s Stats) float64 { return float64(s.Dropped) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "chunkloader",
			Subsystem: "eventbus",
			Name:      "messages_inflight",
			Help:      "Событий в очереди, ещё не доставленных.",
		}, stat(func(s Stats) float64 { return float64(s.InFlight) })),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
