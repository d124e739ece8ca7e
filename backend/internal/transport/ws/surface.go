package ws

import (
	"log"
	"sync"

	"emoji-rain/backend/internal/render"
)

// Broadcaster отправляет сообщение всем подключенным клиентам.
type Broadcaster interface {
	Broadcast(v interface{})
}

// spriteRecord - последнее известное состояние спрайта для повтора
// новым клиентам.
type spriteRecord struct {
	info  render.SpriteInfo
	state render.SpriteState
}

// BroadcastSurface - поверхность отображения, транслирующая спрайты
// подключенным панелям по WebSocket. Пишет горутина тика; список живых
// спрайтов читается при подключении нового клиента, поэтому доступ
// защищен мьютексом.
type BroadcastSurface struct {
	mu      sync.RWMutex
	sprites map[string]*spriteRecord
	order   []string // порядок создания для повтора

	broadcaster Broadcaster
	logger      *log.Logger
}

// NewBroadcastSurface создает поверхность трансляции.
func NewBroadcastSurface(logger *log.Logger) *BroadcastSurface {
	if logger == nil {
		logger = log.Default()
	}
	return &BroadcastSurface{
		sprites: make(map[string]*spriteRecord),
		logger:  logger,
	}
}

// SetBroadcaster привязывает отправителя сообщений. Вызывается один раз
// при сборке сервера.
func (s *BroadcastSurface) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CreateSprite запоминает спрайт и рассылает сообщение о создании.
func (s *BroadcastSurface) CreateSprite(info render.SpriteInfo) {
	s.mu.Lock()
	s.sprites[info.ID] = &spriteRecord{
		info: info,
		state: render.SpriteState{
			Pos:     info.Pos,
			Opacity: 1.0,
		},
	}
	s.order = append(s.order, info.ID)
	s.mu.Unlock()

	s.send(NewCreateMessage(info.ID, info.Emoji, info.Size, info.Pos.X(), info.Pos.Y()))
}

// UpdateSprite запоминает трансформацию и рассылает ее панелям.
func (s *BroadcastSurface) UpdateSprite(id string, state render.SpriteState) {
	s.mu.Lock()
	record, exists := s.sprites[id]
	if exists {
		record.state = state
	}
	s.mu.Unlock()

	if !exists {
		return
	}

	s.send(&UpdateMessage{
		Type:     MessageTypeUpdate,
		ID:       id,
		X:        state.Pos.X(),
		Y:        state.Pos.Y(),
		Rotation: state.Rotation,
		Opacity:  state.Opacity,
		Bounce:   state.Bounce,
		Glow:     state.Glow,
	})
}

// DestroySprite забывает спрайт и рассылает сообщение об уничтожении.
// Повторный вызов для уже уничтоженного спрайта игнорируется.
func (s *BroadcastSurface) DestroySprite(id string) {
	s.mu.Lock()
	_, exists := s.sprites[id]
	if exists {
		delete(s.sprites, id)
		for i, spriteID := range s.order {
			if spriteID == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !exists {
		return
	}

	s.send(&DestroyMessage{Type: MessageTypeDestroy, ID: id})
}

// ShowParticle рассылает показ частицы. Частицы короткоживущие,
// для повтора новым клиентам они не запоминаются.
func (s *BroadcastSurface) ShowParticle(info render.ParticleInfo) {
	s.send(&ParticleShowMessage{
		Type: MessageTypeParticleShow,
		ID:   info.ID,
		X:    info.Pos.X(),
		Y:    info.Pos.Y(),
		Size: info.Size,
	})
}

// HideParticle рассылает скрытие частицы.
func (s *BroadcastSurface) HideParticle(id string) {
	s.send(&ParticleHideMessage{Type: MessageTypeParticleHide, ID: id})
}

// ReplayTo отправляет новому клиенту все живые спрайты: создание плюс
// последняя известная трансформация.
func (s *BroadcastSurface) ReplayTo(writer *SafeWriter) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		record, exists := s.sprites[id]
		if !exists {
			continue
		}

		info := record.info
		state := record.state

		if err := writer.WriteJSON(NewCreateMessage(info.ID, info.Emoji, info.Size, info.Pos.X(), info.Pos.Y())); err != nil {
			s.logger.Printf("[Surface] Ошибка повтора спрайта %s: %v", id, err)
			return
		}
		if err := writer.WriteJSON(&UpdateMessage{
			Type:     MessageTypeUpdate,
			ID:       id,
			X:        state.Pos.X(),
			Y:        state.Pos.Y(),
			Rotation: state.Rotation,
			Opacity:  state.Opacity,
			Bounce:   state.Bounce,
			Glow:     state.Glow,
		}); err != nil {
			s.logger.Printf("[Surface] Ошибка повтора состояния %s: %v", id, err)
			return
		}
	}

	s.logger.Printf("[Surface] Повторено спрайтов новому клиенту: %d", len(s.order))
}

// SpriteCount возвращает количество живых спрайтов на поверхности.
func (s *BroadcastSurface) SpriteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sprites)
}

func (s *BroadcastSurface) send(v interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(v)
	}
}
