package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"emoji-rain/backend/internal/config"
	"emoji-rain/backend/internal/game"
	"emoji-rain/backend/internal/physics"
	"emoji-rain/backend/internal/pool"
	"emoji-rain/backend/internal/telemetry"
)

// testStack собирает полный стек движка с запущенным циклом и поднимает
// httptest-сервер с WebSocket-эндпоинтом поверх него.
type testStack struct {
	store  *config.Store
	rain   *game.RainSystem
	ticker *game.RainTicker
	server *httptest.Server
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	cfg := config.Default()
	store := config.NewStore(cfg)
	surface := NewBroadcastSurface(nil)
	world := physics.NewWorld(cfg.CanvasWidth, cfg.CanvasHeight, physics.Options{
		Gravity:     cfg.Gravity,
		Damping:     cfg.AirDrag,
		Friction:    cfg.Friction,
		Restitution: cfg.Restitution,
	}, nil)
	particles := pool.NewParticlePool(pool.DefaultMaxPooled, surface, nil)
	rain := game.NewRainSystem(store, world, surface, particles, nil)
	monitor := telemetry.NewMonitor(nil)

	ticker := game.NewRainTicker(cfg.TargetFPS, nil)
	ticker.RegisterSystem(game.NewPhysicsSystem(world))
	ticker.RegisterSystem(rain)
	ticker.Start()

	controller := NewController(store, world, rain, ticker, monitor, nil)
	server := NewServer(controller, surface, nil)
	surface.SetBroadcaster(server)

	httpServer := httptest.NewServer(http.HandlerFunc(server.HandleWS))

	t.Cleanup(func() {
		httpServer.Close()
		ticker.Stop()
	})

	return &testStack{store: store, rain: rain, ticker: ticker, server: httpServer}
}

func dialTestStack(t *testing.T, stack *testStack) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(stack.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilType вычитывает сообщения, пока не встретит ожидаемый тип.
// Попутные кадры (повтор состояния, create/update живых спрайтов)
// пропускаются.
func readUntilType(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()

	for i := 0; i < 50; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Error reading message while waiting for %q: %v", msgType, err)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Invalid JSON frame: %v", err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
	t.Fatalf("Did not receive %q message within 50 frames", msgType)
	return nil
}

func TestStatsReplyIncludesRainStats(t *testing.T) {
	stack := newTestStack(t)
	conn := dialTestStack(t, stack)

	// Спавним через цикл, чтобы счетчики системы дождя были ненулевыми
	if err := conn.WriteJSON(map[string]interface{}{
		"type":  "spawn",
		"count": 3,
		"emoji": "🎉",
	}); err != nil {
		t.Fatalf("Failed to send spawn: %v", err)
	}
	readUntilType(t, conn, "ack")

	if err := conn.WriteJSON(map[string]interface{}{"type": "stats"}); err != nil {
		t.Fatalf("Failed to send stats request: %v", err)
	}
	reply := readUntilType(t, conn, "stats_reply")

	rain, ok := reply["rain"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected rain stats object in stats reply, got %v", reply["rain"])
	}
	if spawned, _ := rain["total_spawned"].(float64); spawned != 3 {
		t.Errorf("Expected 3 total spawned in rain stats, got %v", rain["total_spawned"])
	}
	if _, ok := rain["entities"]; !ok {
		t.Error("Expected entity count in rain stats")
	}
	if _, ok := reply["loop"]; !ok {
		t.Error("Expected loop stats in stats reply")
	}
}
