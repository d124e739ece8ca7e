package pool

import (
	"log"

	"github.com/google/uuid"

	"emoji-rain/backend/internal/render"
)

// DefaultMaxPooled - предел размера пула. Лишние частицы отбрасываются,
// а не возвращаются в пул.
const DefaultMaxPooled = 100

// Particle - переиспользуемый дескриптор декоративной частицы. Собственной
// идентичности частица не имеет: ID служит только ключом поверхности
// отображения и сохраняется между переиспользованиями.
type Particle struct {
	ID   string
	X, Y float64
	Size float64
}

// ParticlePool - ограниченный пул частиц для эффектов удара. Переиспользует
// дескрипторы вместо создания новых. Доступ только из горутины игрового
// цикла, поэтому синхронизация не нужна.
type ParticlePool struct {
	idle    []*Particle
	max     int
	surface render.Surface
	logger  *log.Logger

	// Счетчики для диагностики
	created int
	reused  int
}

// NewParticlePool создает пул с пределом max (0 - значение по умолчанию).
func NewParticlePool(max int, surface render.Surface, logger *log.Logger) *ParticlePool {
	if max <= 0 {
		max = DefaultMaxPooled
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ParticlePool{
		idle:    make([]*Particle, 0, max),
		max:     max,
		surface: surface,
		logger:  logger,
	}
}

// Acquire возвращает свободную частицу из пула либо создает новую,
// если пул пуст. Всегда успешен.
func (p *ParticlePool) Acquire() *Particle {
	if n := len(p.idle); n > 0 {
		particle := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.reused++
		return particle
	}

	p.created++
	return &Particle{ID: uuid.NewString()}
}

// Release снимает частицу с поверхности отображения и возвращает ее в пул,
// если позволяет емкость. При переполнении частица просто отбрасывается.
func (p *ParticlePool) Release(particle *Particle) {
	// Сначала отцепляем от поверхности, чтобы устаревший дескриптор
	// не отрисовался повторно после переиспользования.
	p.surface.HideParticle(particle.ID)

	if len(p.idle) >= p.max {
		return
	}
	p.idle = append(p.idle, particle)
}

// IdleCount возвращает количество свободных частиц в пуле.
func (p *ParticlePool) IdleCount() int {
	return len(p.idle)
}

// Stats возвращает счетчики пула для диагностики.
func (p *ParticlePool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"idle":    len(p.idle),
		"max":     p.max,
		"created": p.created,
		"reused":  p.reused,
	}
}
