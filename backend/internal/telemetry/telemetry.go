package telemetry

import (
	"encoding/json"
	"log"
	"runtime"
	"sync"
	"time"
)

// Пороги частоты кадров для подсветки деградации.
const (
	warningFPS  = 45.0
	criticalFPS = 25.0
)

// Sample - показатели одного кадра, собранные системой диагностики.
type Sample struct {
	FPS       float64
	Entities  int
	EntityCap int
	Bodies    int
	FrameWall time.Duration
	Width     float64
	Height    float64
}

// Snapshot - состояние диагностики для внешних потребителей
// (HTTP /stats и сообщение stats по WebSocket).
type Snapshot struct {
	Timestamp   int64   `json:"timestamp"` // Время в миллисекундах
	FPS         float64 `json:"fps"`
	FPSStatus   string  `json:"fps_status"` // ok | warning | critical
	Entities    int     `json:"entities"`
	EntityCap   int     `json:"entity_cap"`
	Bodies      int     `json:"bodies"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	FrameMillis float64 `json:"frame_millis"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// Monitor хранит последний снапшот диагностики и периодически печатает
// сводку. Только наблюдение: обратной связи в симуляцию нет.
type Monitor struct {
	mutex sync.RWMutex
	last  Snapshot

	lastPrint     time.Time
	printInterval time.Duration

	lastHeapSample     time.Time
	heapSampleInterval time.Duration
	heapMB             float64

	logger *log.Logger
}

// NewMonitor создает монитор диагностики.
func NewMonitor(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		printInterval:      2 * time.Second,
		heapSampleInterval: 2 * time.Second,
		logger:             logger,
	}
}

// Record обновляет снапшот по показателям кадра. Использование памяти
// берется из runtime не чаще раза в интервал: ReadMemStats
// останавливает мир и на частоте тика обходится слишком дорого.
func (m *Monitor) Record(s Sample) {
	status := "ok"
	switch {
	case s.FPS > 0 && s.FPS < criticalFPS:
		status = "critical"
	case s.FPS > 0 && s.FPS < warningFPS:
		status = "warning"
	}

	now := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if now.Sub(m.lastHeapSample) >= m.heapSampleInterval {
		m.lastHeapSample = now

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		m.heapMB = float64(mem.HeapAlloc) / (1024 * 1024)
	}

	m.last = Snapshot{
		Timestamp:   now.UnixMilli(),
		FPS:         s.FPS,
		FPSStatus:   status,
		Entities:    s.Entities,
		EntityCap:   s.EntityCap,
		Bodies:      s.Bodies,
		HeapAllocMB: m.heapMB,
		FrameMillis: float64(s.FrameWall.Microseconds()) / 1000.0,
		Width:       s.Width,
		Height:      s.Height,
	}
}

// MaybePrint печатает сводку, если с прошлой печати прошел интервал.
func (m *Monitor) MaybePrint() {
	now := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if now.Sub(m.lastPrint) < m.printInterval {
		return
	}
	m.lastPrint = now

	m.logger.Printf("[Telemetry] fps=%.1f (%s) сущностей=%d/%d тел=%d кадр=%.2fms память=%.1fMB %dx%d",
		m.last.FPS, m.last.FPSStatus,
		m.last.Entities, m.last.EntityCap, m.last.Bodies,
		m.last.FrameMillis, m.last.HeapAllocMB,
		int(m.last.Width), int(m.last.Height))
}

// Snapshot возвращает копию последнего снапшота.
func (m *Monitor) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.last
}

// JSON возвращает снапшот в JSON формате.
func (m *Monitor) JSON() ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return json.MarshalIndent(m.last, "", "  ")
}
