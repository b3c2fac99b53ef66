// Package observability keeps the pipeline counters and process statistics
// exposed on /api/metrics and refreshed by the health monitor.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SystemStats is the last sampled state of this process.
type SystemStats struct {
	PID        int32   `json:"pid"`
	Status     string  `json:"status"`
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float32 `json:"ram_percent"`
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
	SampledAt  string  `json:"sampled_at,omitempty"`
}

// MetricsSnapshot is a point in time copy of every counter.
type MetricsSnapshot struct {
	MessagesPersisted uint64            `json:"messages_persisted"`
	PersistenceErrors uint64            `json:"persistence_errors"`
	PublishSucceeded  uint64            `json:"publish_succeeded"`
	PublishFailures   uint64            `json:"publish_failures"`
	OutboxRepublished uint64            `json:"outbox_republished"`
	EventsConsumed    uint64            `json:"events_consumed"`
	MalformedEvents   uint64            `json:"malformed_events"`
	Indexed           uint64            `json:"indexed"`
	ValidationDrops   uint64            `json:"validation_drops"`
	IndexFailures     uint64            `json:"index_failures"`
	IndexRetries      uint64            `json:"index_retries"`
	DeadLettered      uint64            `json:"dead_lettered"`
	Searches          uint64            `json:"searches"`
	SearchFailures    uint64            `json:"search_failures"`
	ComponentsHealth  map[string]string `json:"components_health"`
	System            SystemStats       `json:"system"`
}

// Metrics is safe for concurrent use. The zero value is not usable, see NewMetrics.
type Metrics struct {
	log *slog.Logger
	mu  sync.RWMutex

	system     SystemStats
	components map[string]string

	messagesPersisted uint64
	persistenceErrors uint64
	publishSucceeded  uint64
	publishFailures   uint64
	outboxRepublished uint64
	eventsConsumed    uint64
	malformedEvents   uint64
	indexed           uint64
	validationDrops   uint64
	indexFailures     uint64
	indexRetries      uint64
	deadLettered      uint64
	searches          uint64
	searchFailures    uint64
}

func NewMetrics(log *slog.Logger) *Metrics {
	return &Metrics{log: log, components: make(map[string]string)}
}

func (m *Metrics) IncrMessagesPersisted() { atomic.AddUint64(&m.messagesPersisted, 1) }
func (m *Metrics) IncrPersistenceErrors() { atomic.AddUint64(&m.persistenceErrors, 1) }
func (m *Metrics) IncrPublishSucceeded()  { atomic.AddUint64(&m.publishSucceeded, 1) }
func (m *Metrics) IncrPublishFailures()   { atomic.AddUint64(&m.publishFailures, 1) }
func (m *Metrics) IncrOutboxRepublished() { atomic.AddUint64(&m.outboxRepublished, 1) }
func (m *Metrics) IncrEventsConsumed()    { atomic.AddUint64(&m.eventsConsumed, 1) }
func (m *Metrics) IncrMalformedEvents()   { atomic.AddUint64(&m.malformedEvents, 1) }
func (m *Metrics) IncrIndexed()           { atomic.AddUint64(&m.indexed, 1) }
func (m *Metrics) IncrValidationDrops()   { atomic.AddUint64(&m.validationDrops, 1) }
func (m *Metrics) IncrIndexFailures()     { atomic.AddUint64(&m.indexFailures, 1) }
func (m *Metrics) IncrIndexRetries()      { atomic.AddUint64(&m.indexRetries, 1) }
func (m *Metrics) IncrDeadLettered()      { atomic.AddUint64(&m.deadLettered, 1) }
func (m *Metrics) IncrSearches()          { atomic.AddUint64(&m.searches, 1) }
func (m *Metrics) IncrSearchFailures()    { atomic.AddUint64(&m.searchFailures, 1) }

// SetComponentHealth records the last probe result of a dependency.
func (m *Metrics) SetComponentHealth(component, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[component] = status
}

func (m *Metrics) UpdateSystem(stats SystemStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system = stats
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	components := make(map[string]string, len(m.components))
	for k, v := range m.components {
		components[k] = v
	}
	system := m.system
	m.mu.RUnlock()

	return MetricsSnapshot{
		MessagesPersisted: atomic.LoadUint64(&m.messagesPersisted),
		PersistenceErrors: atomic.LoadUint64(&m.persistenceErrors),
		PublishSucceeded:  atomic.LoadUint64(&m.publishSucceeded),
		PublishFailures:   atomic.LoadUint64(&m.publishFailures),
		OutboxRepublished: atomic.LoadUint64(&m.outboxRepublished),
		EventsConsumed:    atomic.LoadUint64(&m.eventsConsumed),
		MalformedEvents:   atomic.LoadUint64(&m.malformedEvents),
		Indexed:           atomic.LoadUint64(&m.indexed),
		ValidationDrops:   atomic.LoadUint64(&m.validationDrops),
		IndexFailures:     atomic.LoadUint64(&m.indexFailures),
		IndexRetries:      atomic.LoadUint64(&m.indexRetries),
		DeadLettered:      atomic.LoadUint64(&m.deadLettered),
		Searches:          atomic.LoadUint64(&m.searches),
		SearchFailures:    atomic.LoadUint64(&m.searchFailures),
		ComponentsHealth:  components,
		System:            system,
	}
}

// SampleProcess reads CPU and RAM usage of the current process with gopsutil,
// completed with the Go runtime memory statistics.
func SampleProcess() (SystemStats, error) {
	pid := int32(os.Getpid())
	p, err := process.NewProcess(pid)
	if err != nil {
		return SystemStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return SystemStats{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return SystemStats{}, err
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		return SystemStats{}, err
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return SystemStats{
		PID:        pid,
		Status:     status,
		CPUPercent: cpu,
		RAMPercent: ram,
		AllocMemMb: mem.Alloc / 1024 / 1024,
		NumGC:      mem.NumGC,
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}
