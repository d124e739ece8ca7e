package ws

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestGetCurrentServerTime(t *testing.T) {
	// Проверяем, что функция возвращает текущее время в миллисекундах
	now := time.Now().UnixMilli()
	serverTime := GetCurrentServerTime()

	// Допускаем разницу в 100 мс (что более чем достаточно для локального выполнения)
	if serverTime < now-100 || serverTime > now+100 {
		t.Errorf("GetCurrentServerTime() returned time too far from current time. Got %d, expected around %d", serverTime, now)
	}
}

func TestNewCreateMessage(t *testing.T) {
	// Создаем сообщение о появлении спрайта
	msg := NewCreateMessage("sprite1", "🎉", 48.0, 100.0, -24.0)

	// Проверяем все поля
	if msg.Type != MessageTypeCreate {
		t.Errorf("Expected message type %s, got %s", MessageTypeCreate, msg.Type)
	}
	if msg.ID != "sprite1" {
		t.Errorf("Expected ID sprite1, got %s", msg.ID)
	}
	if msg.Emoji != "🎉" {
		t.Errorf("Expected emoji 🎉, got %s", msg.Emoji)
	}
	if msg.Size != 48.0 {
		t.Errorf("Expected size 48.0, got %f", msg.Size)
	}
	if msg.X != 100.0 || msg.Y != -24.0 {
		t.Errorf("Expected position (100.0, -24.0), got (%f, %f)", msg.X, msg.Y)
	}
	if msg.ServerTime == 0 {
		t.Error("Expected ServerTime to be set, got 0")
	}
}

func TestParseMessageSpawn(t *testing.T) {
	// Разбираем сообщение залпа со всеми полями
	data := []byte(`{"type": "spawn", "count": 5, "emoji": "💜", "trigger": "raid", "x": 0.25}`)

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}

	spawn, ok := msg.(*SpawnMessage)
	if !ok {
		t.Fatalf("Expected *SpawnMessage, got %T", msg)
	}
	if spawn.Count != 5 {
		t.Errorf("Expected count 5, got %d", spawn.Count)
	}
	if spawn.Emoji != "💜" {
		t.Errorf("Expected emoji 💜, got %s", spawn.Emoji)
	}
	if spawn.Trigger != "raid" {
		t.Errorf("Expected trigger raid, got %s", spawn.Trigger)
	}
	if spawn.X == nil || *spawn.X != 0.25 {
		t.Errorf("Expected x 0.25, got %v", spawn.X)
	}
	if spawn.Y != nil {
		t.Errorf("Expected y to be nil, got %v", spawn.Y)
	}
}

func TestParseMessageSpawnMinimal(t *testing.T) {
	// Залп без полей: координаты должны остаться nil, а не нулями
	data := []byte(`{"type": "spawn"}`)

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}

	spawn := msg.(*SpawnMessage)
	if spawn.X != nil || spawn.Y != nil {
		t.Errorf("Expected nil coordinates, got x=%v y=%v", spawn.X, spawn.Y)
	}
	if spawn.Count != 0 {
		t.Errorf("Expected count 0, got %d", spawn.Count)
	}
}

func TestParseMessageConfigUpdate(t *testing.T) {
	// Вложенная конфигурация должна сохраниться как сырой JSON
	data := []byte(`{"type": "config_update", "config": {"gravity": 600, "glow_enabled": false}}`)

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}

	update, ok := msg.(*ConfigUpdateMessage)
	if !ok {
		t.Fatalf("Expected *ConfigUpdateMessage, got %T", msg)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(update.Config, &fields); err != nil {
		t.Fatalf("Config payload is not valid JSON: %v", err)
	}
	if fields["gravity"] != 600.0 {
		t.Errorf("Expected gravity 600, got %v", fields["gravity"])
	}
	if fields["glow_enabled"] != false {
		t.Errorf("Expected glow_enabled false, got %v", fields["glow_enabled"])
	}
}

func TestParseMessageToggle(t *testing.T) {
	data := []byte(`{"type": "toggle", "enabled": false}`)

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}

	toggle, ok := msg.(*ToggleMessage)
	if !ok {
		t.Fatalf("Expected *ToggleMessage, got %T", msg)
	}
	if toggle.Enabled {
		t.Error("Expected enabled false, got true")
	}
}

func TestParseMessagePing(t *testing.T) {
	data := []byte(`{"type": "ping", "client_time": 1234567890.0}`)

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}

	ping, ok := msg.(*PingMessage)
	if !ok {
		t.Fatalf("Expected *PingMessage, got %T", msg)
	}
	if ping.ClientTime != 1234567890.0 {
		t.Errorf("Expected client_time 1234567890.0, got %f", ping.ClientTime)
	}
}

func TestParseMessageStats(t *testing.T) {
	data := []byte(`{"type": "stats"}`)

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}

	if _, ok := msg.(*StatsRequestMessage); !ok {
		t.Fatalf("Expected *StatsRequestMessage, got %T", msg)
	}
}

func TestParseMessageUnknownType(t *testing.T) {
	// Неизвестный тип должен вернуть типизированную ошибку
	data := []byte(`{"type": "teleport"}`)

	_, err := ParseMessage(data)
	if err == nil {
		t.Fatal("Expected error for unknown message type, got nil")
	}
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Expected ErrUnknownMessage, got %v", err)
	}
}

func TestParseMessageInvalidJSON(t *testing.T) {
	data := []byte(`{"type": `)

	_, err := ParseMessage(data)
	if err == nil {
		t.Fatal("Expected error for invalid JSON, got nil")
	}
}
