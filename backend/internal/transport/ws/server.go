package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPingInterval - интервал отправки пингов клиентам.
const DefaultPingInterval = 30 * time.Second

// ControlHandler обрабатывает разобранное входящее сообщение.
type ControlHandler interface {
	Handle(conn *SafeWriter, message interface{}) error
}

// Server - WebSocket сервер с поддержкой потокобезопасной записи.
// Принимает управляющие сообщения (spawn, config_update, toggle) и
// транслирует состояние спрайтов всем подключенным панелям.
type Server struct {
	upgrader   websocket.Upgrader
	controller ControlHandler
	surface    *BroadcastSurface

	clients  map[*SafeWriter]bool
	clientMu sync.RWMutex

	logger *log.Logger
}

// NewServer создает WebSocket сервер дождя.
func NewServer(controller ControlHandler, surface *BroadcastSurface, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	server := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // оверлей живет на localhost, проверка источника не нужна
			},
		},
		controller: controller,
		surface:    surface,
		clients:    make(map[*SafeWriter]bool),
		logger:     logger,
	}
	if surface != nil {
		surface.SetBroadcaster(server)
	}
	return server
}

// HandleWS обрабатывает входящее WebSocket соединение: регистрирует
// клиента, повторяет ему живые спрайты и читает управляющие сообщения
// до закрытия соединения.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[WSServer] Ошибка обновления соединения: %v", err)
		return
	}

	writer := NewSafeWriter(conn)
	s.register(writer)
	defer s.unregister(writer)

	s.logger.Printf("[WSServer] Клиент подключен: %s (всего: %d)", r.RemoteAddr, s.ClientCount())

	if s.surface != nil {
		s.surface.ReplayTo(writer)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("[WSServer] Ошибка чтения: %v", err)
			}
			return
		}

		message, err := ParseMessage(data)
		if err != nil {
			s.logger.Printf("[WSServer] Ошибка разбора сообщения: %v", err)
			if writeErr := writer.WriteJSON(NewErrorMessage(err.Error())); writeErr != nil {
				return
			}
			continue
		}

		if s.controller == nil {
			continue
		}
		if err := s.controller.Handle(writer, message); err != nil {
			s.logger.Printf("[WSServer] Ошибка обработки сообщения: %v", err)
			if writeErr := writer.WriteJSON(NewErrorMessage(err.Error())); writeErr != nil {
				return
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам.
// Клиенты с ошибкой записи отключаются.
func (s *Server) Broadcast(v interface{}) {
	s.clientMu.RLock()
	writers := make([]*SafeWriter, 0, len(s.clients))
	for writer := range s.clients {
		writers = append(writers, writer)
	}
	s.clientMu.RUnlock()

	for _, writer := range writers {
		if err := writer.WriteJSON(v); err != nil {
			s.logger.Printf("[WSServer] Ошибка рассылки, отключаем клиента: %v", err)
			s.unregister(writer)
		}
	}
}

// ClientCount возвращает количество подключенных клиентов.
func (s *Server) ClientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

func (s *Server) register(writer *SafeWriter) {
	s.clientMu.Lock()
	s.clients[writer] = true
	s.clientMu.Unlock()
}

func (s *Server) unregister(writer *SafeWriter) {
	s.clientMu.Lock()
	_, exists := s.clients[writer]
	if exists {
		delete(s.clients, writer)
	}
	s.clientMu.Unlock()

	if exists {
		writer.Close()
	}
}
