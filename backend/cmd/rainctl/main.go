package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const usage = `Использование: rainctl [флаги] <команда> [аргументы]

Команды:
  spawn [trigger]      залп эмодзи (trigger: follow, sub, raid, donation, manual)
  toggle <on|off>      включить или выключить дождь
  config <json>        частичное обновление конфигурации, например '{"gravity": 600}'
  stats                запросить снимок диагностики
  ping                 проверить соединение
`

func main() {
	server := flag.String("server", "ws://localhost:3001/ws", "адрес WebSocket сервера")
	count := flag.Int("count", 0, "количество эмодзи в залпе (0 - по триггеру)")
	emoji := flag.String("emoji", "", "конкретный эмодзи для залпа")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	payload, err := buildMessage(args, *count, *emoji)
	if err != nil {
		log.Fatalf("Ошибка: %v", err)
	}

	u, err := url.Parse(*server)
	if err != nil {
		log.Fatalf("Неверный URL: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Ошибка подключения к %s: %v", u.String(), err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(payload); err != nil {
		log.Fatalf("Ошибка отправки: %v", err)
	}

	// Ждем ответ сервера. Сервер также повторяет живые спрайты новым
	// клиентам, их пропускаем.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("Ошибка чтения ответа: %v", err)
		}

		var reply map[string]interface{}
		if err := json.Unmarshal(data, &reply); err != nil {
			log.Fatalf("Ошибка разбора ответа: %v", err)
		}

		msgType, _ := reply["type"].(string)
		switch msgType {
		case "create", "update", "destroy", "particle_show", "particle_hide":
			continue
		case "error":
			log.Fatalf("Сервер вернул ошибку: %v", reply["message"])
		default:
			pretty, _ := json.MarshalIndent(reply, "", "  ")
			fmt.Println(string(pretty))
			return
		}
	}
}

// buildMessage собирает JSON сообщение по команде.
func buildMessage(args []string, count int, emoji string) (map[string]interface{}, error) {
	switch args[0] {
	case "spawn":
		msg := map[string]interface{}{"type": "spawn"}
		if len(args) > 1 {
			msg["trigger"] = args[1]
		}
		if count > 0 {
			msg["count"] = count
		}
		if emoji != "" {
			msg["emoji"] = emoji
		}
		return msg, nil

	case "toggle":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			return nil, fmt.Errorf("toggle требует on или off")
		}
		return map[string]interface{}{"type": "toggle", "enabled": args[1] == "on"}, nil

	case "config":
		if len(args) < 2 {
			return nil, fmt.Errorf("config требует JSON с полями конфигурации")
		}
		var patch json.RawMessage
		if err := json.Unmarshal([]byte(args[1]), &patch); err != nil {
			return nil, fmt.Errorf("неверный JSON конфигурации: %w", err)
		}
		return map[string]interface{}{"type": "config_update", "config": patch}, nil

	case "stats":
		return map[string]interface{}{"type": "stats"}, nil

	case "ping":
		return map[string]interface{}{"type": "ping", "client_time": float64(time.Now().UnixMilli())}, nil

	default:
		return nil, fmt.Errorf("неизвестная команда: %s", args[0])
	}
}
