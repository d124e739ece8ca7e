package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"emoji-rain/backend/internal/config"
	"emoji-rain/backend/internal/game"
	"emoji-rain/backend/internal/physics"
	"emoji-rain/backend/internal/telemetry"
)

// statsTimeout - предел ожидания статистики от горутины тика.
const statsTimeout = time.Second

// Controller переводит управляющие сообщения в действия симуляции.
// Все мутации состояния дождя ставятся в очередь команд тикера и
// выполняются между кадрами, никогда посреди шага.
type Controller struct {
	store   *config.Store
	world   *physics.World
	rain    *game.RainSystem
	ticker  *game.RainTicker
	monitor *telemetry.Monitor
	logger  *log.Logger
}

// NewController создает контроллер управляющих сообщений.
func NewController(store *config.Store, world *physics.World, rain *game.RainSystem, ticker *game.RainTicker, monitor *telemetry.Monitor, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		store:   store,
		world:   world,
		rain:    rain,
		ticker:  ticker,
		monitor: monitor,
		logger:  logger,
	}
}

// Handle диспетчеризует разобранное сообщение по типу.
func (c *Controller) Handle(conn *SafeWriter, message interface{}) error {
	switch msg := message.(type) {
	case *SpawnMessage:
		return c.handleSpawn(conn, msg)
	case *ConfigUpdateMessage:
		return c.handleConfigUpdate(conn, msg)
	case *ToggleMessage:
		return c.handleToggle(conn, msg)
	case *PingMessage:
		return conn.WriteJSON(&PongMessage{
			Type:       MessageTypePong,
			ClientTime: msg.ClientTime,
			ServerTime: GetCurrentServerTime(),
		})
	case *StatsRequestMessage:
		return c.handleStats(conn)
	default:
		return fmt.Errorf("неподдерживаемый тип сообщения: %T", message)
	}
}

// handleSpawn ставит в очередь залп эмодзи. Количество берется из
// сообщения, иначе из настроенного счетчика для триггера, иначе 1.
func (c *Controller) handleSpawn(conn *SafeWriter, msg *SpawnMessage) error {
	cfg := c.store.Snapshot()

	count := msg.Count
	if count <= 0 && msg.Trigger != "" {
		count = cfg.SpawnCounts[msg.Trigger]
	}
	if count <= 0 {
		count = 1
	}

	x := rand.Float64()
	if msg.X != nil {
		x = *msg.X
	}
	y := 0.0
	if msg.Y != nil {
		y = *msg.Y
	}

	emoji := msg.Emoji

	c.ticker.Enqueue(func() {
		c.rain.SpawnBurst(count, emoji, x, y)
	})

	c.logger.Printf("[Controller] Залп: count=%d trigger=%q emoji=%q", count, msg.Trigger, emoji)
	return conn.WriteJSON(NewAckMessage(MessageTypeSpawn))
}

// handleConfigUpdate применяет частичное обновление конфигурации.
// Значения клампируются хранилищем, затем затронутые параметры
// проталкиваются в физический мир между кадрами.
func (c *Controller) handleConfigUpdate(conn *SafeWriter, msg *ConfigUpdateMessage) error {
	var patch config.Patch
	if err := json.Unmarshal(msg.Config, &patch); err != nil {
		return fmt.Errorf("неверный формат конфигурации: %w", err)
	}

	c.store.Merge(patch)
	cfg := c.store.Snapshot()

	c.ticker.Enqueue(func() {
		c.world.SetGravity(cfg.Gravity)
		c.world.SetDamping(cfg.AirDrag)
		c.world.SetMaterial(cfg.Friction, cfg.Restitution)
		c.world.Resize(cfg.CanvasWidth, cfg.CanvasHeight)
	})
	c.ticker.SetTargetFPS(cfg.TargetFPS)

	c.logger.Printf("[Controller] Конфигурация обновлена")
	return conn.WriteJSON(NewAckMessage(MessageTypeConfigUpdate))
}

// handleToggle включает или выключает дождь. Выключение не удаляет
// живые эмодзи, оно лишь запрещает новые залпы.
func (c *Controller) handleToggle(conn *SafeWriter, msg *ToggleMessage) error {
	enabled := msg.Enabled
	c.ticker.Enqueue(func() {
		c.rain.SetEnabled(enabled)
	})

	c.logger.Printf("[Controller] Дождь переключен: enabled=%v", enabled)
	return conn.WriteJSON(NewAckMessage(MessageTypeToggle))
}

// handleStats возвращает снимок телеметрии, статистику цикла и дождя.
// Статистика дождя читает состояние, принадлежащее горутине тика, поэтому
// запрашивается через очередь команд; при остановленном цикле поле
// опускается по таймауту.
func (c *Controller) handleStats(conn *SafeWriter) error {
	rainStats := make(chan map[string]interface{}, 1)
	c.ticker.Enqueue(func() {
		rainStats <- c.rain.GetStats()
	})

	reply := &StatsReplyMessage{
		Type:  MessageTypeStatsReply,
		Stats: c.monitor.Snapshot(),
		Loop:  c.ticker.GetStats(),
	}

	select {
	case stats := <-rainStats:
		reply.Rain = stats
	case <-time.After(statsTimeout):
		c.logger.Printf("[Controller] Статистика дождя недоступна: цикл не отвечает")
	}

	return conn.WriteJSON(reply)
}
