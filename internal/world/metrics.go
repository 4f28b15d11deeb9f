package world

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MaxWorldSeries предел числа миров с собственной серией chunkloader_chunks.
// Остальные миры учитываются только в chunkloader_chunks_unlabelled_worlds.
const MaxWorldSeries = 256

// RegistryMetrics Prometheus-метрики реестра наборов чанков.
//
// Метрики:
// * chunkloader_chunks{world} — gauge, чанков в наборе мира
// * chunkloader_chunk_ops_total{op,result} — counter операций add/remove
// * chunkloader_saves_total{result} — counter сохранений
// * chunkloader_chunks_unlabelled_worlds — gauge, миры сверх MaxWorldSeries
type RegistryMetrics struct {
	chunks     *prometheus.GaugeVec
	ops        *prometheus.CounterVec
	saves      *prometheus.CounterVec
	unlabelled prometheus.Gauge

	mu       sync.Mutex
	series   map[string]struct{}
	overflow map[string]struct{}
}

// NewRegistryMetrics создаёт метрики и регистрирует их в reg.
// reg == nil — метрики считаются, но никуда не экспортируются (тесты).
func NewRegistryMetrics(reg prometheus.Registerer) *RegistryMetrics {
	m := &RegistryMetrics{
		chunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chunkloader",
			Name:      "chunks",
			Help:      "Количество чанков в наборе мира.",
		}, []string{"world"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkloader",
			Name:      "chunk_ops_total",
			Help:      "Операции над наборами чанков.",
		}, []string{"op", "result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chunkloader",
			Name:      "saves_total",
			Help:      "Сохранения наборов в хранилище.",
		}, []string{"result"}),
		unlabelled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chunkloader",
			Name:      "chunks_unlabelled_worlds",
			Help:      "Миры без собственной серии chunkloader_chunks.",
		}),
		series:   make(map[string]struct{}),
		overflow: make(map[string]struct{}),
	}

	if reg != nil {
		reg.MustRegister(m.chunks, m.ops, m.saves, m.unlabelled)
	}
	return m
}

func (m *RegistryMetrics) setChunks(world string, n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.series[world]; !ok {
		if len(m.series) >= MaxWorldSeries {
			m.overflow[world] = struct{}{}
			m.unlabelled.Set(float64(len(m.overflow)))
			return
		}
		m.series[world] = struct{}{}
		if _, was := m.overflow[world]; was {
			delete(m.overflow, world)
			m.unlabelled.Set(float64(len(m.overflow)))
		}
	}
	m.chunks.WithLabelValues(world).Set(float64(n))
}

func (m *RegistryMetrics) dropWorld(world string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.series[world]; ok {
		delete(m.series, world)
		m.chunks.DeleteLabelValues(world)
		return
	}
	delete(m.overflow, world)
	m.unlabelled.Set(float64(len(m.overflow)))
}

func (m *RegistryMetrics) op(op, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, result).Inc()
}

func (m *RegistryMetrics) save(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
}
