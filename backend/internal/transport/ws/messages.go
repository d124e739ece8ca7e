package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"emoji-rain/backend/internal/telemetry"
)

// Типы входящих сообщений (от контроллеров).
const (
	MessageTypeSpawn        = "spawn"
	MessageTypeConfigUpdate = "config_update"
	MessageTypeToggle       = "toggle"
	MessageTypePing         = "ping"
	MessageTypeStats        = "stats"
)

// Типы исходящих сообщений (панелям отображения).
const (
	MessageTypeCreate       = "create"
	MessageTypeUpdate       = "update"
	MessageTypeDestroy      = "destroy"
	MessageTypeParticleShow = "particle_show"
	MessageTypeParticleHide = "particle_hide"
	MessageTypePong         = "pong"
	MessageTypeAck          = "ack"
	MessageTypeError        = "error"
	MessageTypeStatsReply   = "stats_reply"
)

// ErrUnknownMessage возвращается для сообщения с нераспознанным типом.
var ErrUnknownMessage = errors.New("неизвестный тип сообщения")

// SpawnMessage - запрос на спавн сущностей. Все поля кроме типа
// необязательны: отсутствующие получают безопасные значения по умолчанию.
type SpawnMessage struct {
	Type    string   `json:"type"`
	Count   int      `json:"count,omitempty"`
	Emoji   string   `json:"emoji,omitempty"`
	Trigger string   `json:"trigger,omitempty"` // имя триггера для счетчика из конфигурации
	X       *float64 `json:"x,omitempty"`       // доля холста [0..1] или абсолютные пиксели
	Y       *float64 `json:"y,omitempty"`       // обычно 0 - верх холста
}

// ConfigUpdateMessage - частичное обновление конфигурации.
type ConfigUpdateMessage struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// ToggleMessage - переключение приема запросов на спавн.
type ToggleMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// PingMessage - проверка соединения.
type PingMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
}

// StatsRequestMessage - запрос снапшота диагностики.
type StatsRequestMessage struct {
	Type string `json:"type"`
}

// CreateMessage - создание спрайта на панели отображения.
type CreateMessage struct {
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	Emoji      string  `json:"emoji"`
	Size       float64 `json:"size"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ServerTime int64   `json:"server_time"`
}

// UpdateMessage - покадровая трансформация спрайта.
type UpdateMessage struct {
	Type     string  `json:"type"`
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Opacity  float64 `json:"opacity"`
	Bounce   bool    `json:"bounce,omitempty"`
	Glow     bool    `json:"glow,omitempty"`
}

// DestroyMessage - уничтожение спрайта.
type DestroyMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ParticleShowMessage - показ декоративной частицы.
type ParticleShowMessage struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// ParticleHideMessage - скрытие частицы.
type ParticleHideMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PongMessage - ответ на ping.
type PongMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
	ServerTime int64   `json:"server_time"`
}

// AckMessage - подтверждение обработки команды.
type AckMessage struct {
	Type       string `json:"type"`
	Of         string `json:"of"`
	ServerTime int64  `json:"server_time"`
}

// ErrorMessage - сообщение об ошибке обработки.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatsReplyMessage - снапшот диагностики с метриками цикла и дождя.
type StatsReplyMessage struct {
	Type  string                 `json:"type"`
	Stats telemetry.Snapshot     `json:"stats"`
	Loop  map[string]interface{} `json:"loop,omitempty"`
	Rain  map[string]interface{} `json:"rain,omitempty"`
}

// GetCurrentServerTime возвращает текущее время сервера в миллисекундах.
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// NewCreateMessage создает сообщение о создании спрайта.
func NewCreateMessage(id, emoji string, size, x, y float64) *CreateMessage {
	return &CreateMessage{
		Type:       MessageTypeCreate,
		ID:         id,
		Emoji:      emoji,
		Size:       size,
		X:          x,
		Y:          y,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewAckMessage создает подтверждение обработки команды.
func NewAckMessage(of string) *AckMessage {
	return &AckMessage{
		Type:       MessageTypeAck,
		Of:         of,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewErrorMessage создает сообщение об ошибке.
func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MessageTypeError,
		Message: message,
	}
}

// ParseMessage разбирает входящее сообщение в соответствующий тип.
// Отсутствующие поля не являются ошибкой: каждый обработчик применяет
// к ним значения по умолчанию.
func ParseMessage(data []byte) (interface{}, error) {
	var baseMessage struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &baseMessage); err != nil {
		return nil, fmt.Errorf("разбор сообщения: %w", err)
	}

	switch baseMessage.Type {
	case MessageTypeSpawn:
		var msg SpawnMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("разбор сообщения spawn: %w", err)
		}
		return &msg, nil

	case MessageTypeConfigUpdate:
		var msg ConfigUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("разбор сообщения config_update: %w", err)
		}
		return &msg, nil

	case MessageTypeToggle:
		var msg ToggleMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("разбор сообщения toggle: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("разбор сообщения ping: %w", err)
		}
		return &msg, nil

	case MessageTypeStats:
		var msg StatsRequestMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("разбор сообщения stats: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, baseMessage.Type)
	}
}
