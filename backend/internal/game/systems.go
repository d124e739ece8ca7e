package game

import (
	"log"
	"time"

	"emoji-rain/backend/internal/config"
	"emoji-rain/backend/internal/physics"
	"emoji-rain/backend/internal/telemetry"
)

// PhysicsSystem продвигает физический мир. Выполняется первой: остальные
// системы читают уже обновленные позиции тел.
type PhysicsSystem struct {
	name     string
	priority int
	world    *physics.World
}

// NewPhysicsSystem создает систему шага физики.
func NewPhysicsSystem(world *physics.World) *PhysicsSystem {
	return &PhysicsSystem{
		name:     "PhysicsSystem",
		priority: 5, // Высокий приоритет - физика обновляется первой
		world:    world,
	}
}

// Update продвигает симуляцию. Тикер уже ограничил deltaTime целевым
// интервалом кадра.
func (ps *PhysicsSystem) Update(deltaTime time.Duration) error {
	ps.world.Step(deltaTime.Seconds())
	return nil
}

// GetName возвращает имя системы.
func (ps *PhysicsSystem) GetName() string {
	return ps.name
}

// GetPriority возвращает приоритет системы.
func (ps *PhysicsSystem) GetPriority() int {
	return ps.priority
}

// DiagnosticsSystem собирает показатели симуляции в монитор телеметрии.
// Чисто наблюдательная система: никогда не мутирует состояние симуляции.
type DiagnosticsSystem struct {
	name     string
	priority int

	store   *config.Store
	world   *physics.World
	rain    *RainSystem
	ticker  *RainTicker
	monitor *telemetry.Monitor
	logger  *log.Logger
}

// NewDiagnosticsSystem создает систему диагностики.
func NewDiagnosticsSystem(store *config.Store, world *physics.World, rain *RainSystem,
	ticker *RainTicker, monitor *telemetry.Monitor, logger *log.Logger) *DiagnosticsSystem {

	if logger == nil {
		logger = log.Default()
	}

	return &DiagnosticsSystem{
		name:     "DiagnosticsSystem",
		priority: 100, // Низший приоритет - наблюдаем уже готовый кадр
		store:    store,
		world:    world,
		rain:     rain,
		ticker:   ticker,
		monitor:  monitor,
		logger:   logger,
	}
}

// Update обновляет снапшот телеметрии и периодически печатает сводку,
// когда диагностика включена.
func (ds *DiagnosticsSystem) Update(time.Duration) error {
	cfg := ds.store.Snapshot()
	width, height := ds.world.Bounds()

	ds.monitor.Record(telemetry.Sample{
		FPS:       ds.ticker.FPS(),
		Entities:  ds.rain.Count(),
		EntityCap: cfg.MaxEntities,
		Bodies:    ds.world.BodyCount(),
		FrameWall: ds.ticker.LastFrameWall(),
		Width:     width,
		Height:    height,
	})

	if cfg.DiagnosticsEnabled {
		ds.monitor.MaybePrint()
	}

	return nil
}

// GetName возвращает имя системы.
func (ds *DiagnosticsSystem) GetName() string {
	return ds.name
}

// GetPriority возвращает приоритет системы.
func (ds *DiagnosticsSystem) GetPriority() int {
	return ds.priority
}
