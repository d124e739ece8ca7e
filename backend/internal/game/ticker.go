package game

import (
	"context"
	"log"
	"sync"
	"time"
)

// TickSystem - интерфейс для всех систем игрового цикла.
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// RainTicker - драйвер цикла симуляции с фиксированным логическим шагом.
// Источник колбэков работает чаще целевой частоты, а Advance пропускает
// вызовы, пришедшие раньше целевого интервала кадра: цикл никогда не
// работает быстрее цели, независимо от частоты источника.
//
// Все системы выполняются в одной горутине, тики не перекрываются.
// Мутации от интерфейса управления применяются через очередь команд
// в начале тика - никогда посреди тика.
type RainTicker struct {
	// Конфигурация
	frameInterval time.Duration

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	// Очередь команд от интерфейса управления
	commands chan func()

	// Состояние цикла (только горутина тика)
	lastTick time.Time

	// Источник колбэков запущенного цикла. Nil, пока цикл водится
	// внешним источником кадров (окно предпросмотра, тесты).
	callback *time.Ticker

	// Мониторинг производительности
	perfMonitor *PerformanceMonitor

	// Метрики (защищены metricsMutex: их читает диагностика и /stats)
	metricsMutex  sync.RWMutex
	tickCount     uint64
	currentFPS    float64
	fpsFrames     int
	fpsWindow     time.Time
	lastFrameWall time.Duration
	startTime     time.Time

	// Управление
	ctx     context.Context
	cancel  context.CancelFunc
	running bool

	logger *log.Logger
}

// commandQueueSize - емкость очереди команд. При переполнении команда
// отбрасывается с логированием: очереди под давлением не растут.
const commandQueueSize = 64

// NewRainTicker создает тикер с целевой частотой targetFPS.
func NewRainTicker(targetFPS int, logger *log.Logger) *RainTicker {
	if targetFPS <= 0 {
		targetFPS = 60
	}
	if logger == nil {
		logger = log.Default()
	}

	frameInterval := time.Second / time.Duration(targetFPS)
	ctx, cancel := context.WithCancel(context.Background())

	return &RainTicker{
		frameInterval: frameInterval,
		systems:       make([]TickSystem, 0),
		commands:      make(chan func(), commandQueueSize),
		perfMonitor:   NewPerformanceMonitor(50, frameInterval/4),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
	}
}

// RegisterSystem добавляет систему в цикл с сортировкой по приоритету.
func (rt *RainTicker) RegisterSystem(system TickSystem) {
	rt.systemsMutex.Lock()
	defer rt.systemsMutex.Unlock()

	rt.systems = append(rt.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет)
	for i := len(rt.systems) - 1; i > 0; i-- {
		if rt.systems[i].GetPriority() < rt.systems[i-1].GetPriority() {
			rt.systems[i], rt.systems[i-1] = rt.systems[i-1], rt.systems[i]
		} else {
			break
		}
	}

	rt.perfMonitor.initSystemMetrics(system.GetName())

	rt.logger.Printf("[RainTicker] Зарегистрирована система: %s (приоритет: %d)",
		system.GetName(), system.GetPriority())
}

// Enqueue ставит команду управления в очередь. Команда выполнится в
// горутине тика перед следующим кадром. При переполненной очереди
// команда отбрасывается.
func (rt *RainTicker) Enqueue(cmd func()) {
	select {
	case rt.commands <- cmd:
	default:
		rt.logger.Printf("[RainTicker] Очередь команд переполнена, команда отброшена")
	}
}

// Start запускает цикл. Источник колбэков - тикер с периодом в четверть
// целевого интервала: троттлинг в Advance приводит частоту к цели.
func (rt *RainTicker) Start() {
	if rt.running {
		return
	}
	rt.running = true

	rt.metricsMutex.Lock()
	rt.startTime = time.Now()
	rt.metricsMutex.Unlock()

	rt.logger.Printf("[RainTicker] Запуск цикла симуляции: целевой интервал %v", rt.frameInterval)

	rt.callback = time.NewTicker(rt.frameInterval / 4)

	go func() {
		defer rt.callback.Stop()

		for {
			select {
			case <-rt.ctx.Done():
				return
			case now := <-rt.callback.C:
				rt.Advance(now)
			}
		}
	}()
}

// Stop останавливает цикл.
func (rt *RainTicker) Stop() {
	if !rt.running {
		return
	}
	rt.running = false
	rt.cancel()

	rt.logger.Printf("[RainTicker] Цикл остановлен (выполнено тиков: %d)", rt.TickCount())
}

// Advance - один вызов колбэка цикла. Возвращает true, если тик выполнен,
// и false, если вызов пропущен троттлингом. Экспортирован, чтобы внешние
// источники кадров (окно предпросмотра, тесты) могли управлять циклом сами.
func (rt *RainTicker) Advance(now time.Time) bool {
	rt.drainCommands()

	if rt.lastTick.IsZero() {
		rt.lastTick = now
		return false
	}

	elapsed := now.Sub(rt.lastTick)
	if elapsed < rt.frameInterval {
		// Колбэк пришел раньше целевого интервала - пропускаем всю работу.
		return false
	}

	// Переносим остаток на базу следующего тика, чтобы избежать дрейфа.
	rt.lastTick = now.Add(-(elapsed % rt.frameInterval))

	// Ограничиваем шаг целевым интервалом: одиночная большая пауза
	// не должна дестабилизировать интегрирование.
	dt := elapsed
	if dt > rt.frameInterval {
		dt = rt.frameInterval
	}

	tickStart := time.Now()
	rt.executeAllSystems(dt)
	rt.recordFrame(now, time.Since(tickStart))

	return true
}

// drainCommands выполняет накопленные команды управления.
func (rt *RainTicker) drainCommands() {
	for {
		select {
		case cmd := <-rt.commands:
			cmd()
		default:
			return
		}
	}
}

// executeAllSystems выполняет все зарегистрированные системы.
func (rt *RainTicker) executeAllSystems(deltaTime time.Duration) {
	rt.systemsMutex.RLock()
	systems := make([]TickSystem, len(rt.systems))
	copy(systems, rt.systems)
	rt.systemsMutex.RUnlock()

	for _, system := range systems {
		rt.executeSystem(system, deltaTime)
	}
}

// executeSystem выполняет одну систему с замером времени. Паника или ошибка
// одной системы не останавливает цикл: следующий тик выполнится в любом
// случае.
func (rt *RainTicker) executeSystem(system TickSystem, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			rt.logger.Printf("[RainTicker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", systemName, r)
			rt.perfMonitor.recordError(systemName)
		}
	}()

	err := system.Update(deltaTime)
	rt.perfMonitor.recordExecution(systemName, time.Since(systemStart))

	if err != nil {
		rt.logger.Printf("[RainTicker] Ошибка в системе %s: %v", systemName, err)
		rt.perfMonitor.recordError(systemName)
	}
}

// recordFrame обновляет счетчик тиков и скользящую оценку FPS
// по кадрам за секунду настенного времени.
func (rt *RainTicker) recordFrame(now time.Time, wall time.Duration) {
	rt.metricsMutex.Lock()
	defer rt.metricsMutex.Unlock()

	rt.tickCount++
	rt.lastFrameWall = wall

	if rt.fpsWindow.IsZero() {
		rt.fpsWindow = now
	}
	rt.fpsFrames++
	if window := now.Sub(rt.fpsWindow); window >= time.Second {
		rt.currentFPS = float64(rt.fpsFrames) / window.Seconds()
		rt.fpsFrames = 0
		rt.fpsWindow = now
	}
}

// SetTargetFPS меняет целевую частоту на лету через очередь команд.
// Источник колбэков перенастраивается вместе с целевым интервалом,
// иначе частота выше стартовой осталась бы недостижимой.
func (rt *RainTicker) SetTargetFPS(targetFPS int) {
	if targetFPS <= 0 {
		return
	}
	rt.Enqueue(func() {
		rt.frameInterval = time.Second / time.Duration(targetFPS)
		if rt.callback != nil {
			rt.callback.Reset(rt.frameInterval / 4)
		}
		rt.logger.Printf("[RainTicker] Новый целевой интервал: %v", rt.frameInterval)
	})
}

// FPS возвращает текущую оценку частоты кадров.
func (rt *RainTicker) FPS() float64 {
	rt.metricsMutex.RLock()
	defer rt.metricsMutex.RUnlock()
	return rt.currentFPS
}

// LastFrameWall возвращает настенное время последнего тика.
func (rt *RainTicker) LastFrameWall() time.Duration {
	rt.metricsMutex.RLock()
	defer rt.metricsMutex.RUnlock()
	return rt.lastFrameWall
}

// TickCount возвращает количество выполненных тиков.
func (rt *RainTicker) TickCount() uint64 {
	rt.metricsMutex.RLock()
	defer rt.metricsMutex.RUnlock()
	return rt.tickCount
}

// GetStats возвращает статистику цикла.
func (rt *RainTicker) GetStats() map[string]interface{} {
	rt.metricsMutex.RLock()
	defer rt.metricsMutex.RUnlock()

	uptime := time.Duration(0)
	if !rt.startTime.IsZero() {
		uptime = time.Since(rt.startTime)
	}

	return map[string]interface{}{
		"tick_count":      rt.tickCount,
		"current_fps":     rt.currentFPS,
		"last_frame_wall": rt.lastFrameWall.String(),
		"uptime_seconds":  uptime.Seconds(),
		"systems":         rt.perfMonitor.GetSystemsStats(),
	}
}
