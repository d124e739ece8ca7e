package game

import (
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/jakecoffman/cp"

	"emoji-rain/backend/internal/config"
	"emoji-rain/backend/internal/physics"
	"emoji-rain/backend/internal/pool"
	"emoji-rain/backend/internal/render"
)

// Разброс позиций при массовом спавне, чтобы сущности одного запроса
// не совпадали точка в точку.
const (
	burstJitterX = 60.0
	burstJitterY = 30.0
)

// Параметры кольца частиц вокруг точки контакта с полом.
const (
	particleRingRadius = 10.0
	particleRingJitter = 12.0
)

// activeParticle - показанная частица с оставшимся временем отображения.
type activeParticle struct {
	particle *pool.Particle
	ttl      float64
}

// RainSystem владеет множеством живых сущностей дождя: спавнит их, старит,
// затухает и вытесняет старейшие при превышении лимита популяции.
// Коллекция сущностей мутируется только этой системой из горутины тика.
type RainSystem struct {
	name     string
	priority int

	store     *config.Store
	world     *physics.World
	surface   render.Surface
	particles *pool.ParticlePool

	// Живые сущности в порядке вставки: голова списка - старейшая,
	// она же первая на вытеснение.
	entities []*RainEntity
	byBody   map[*cp.Body]*RainEntity

	active []activeParticle

	gust    wind
	enabled bool
	rng     *rand.Rand
	logger  *log.Logger

	// Счетчики для диагностики
	totalSpawned uint64
	totalEvicted uint64
}

// NewRainSystem создает менеджер жизненного цикла сущностей и подписывает
// его на контакты с полом.
func NewRainSystem(store *config.Store, world *physics.World, surface render.Surface,
	particles *pool.ParticlePool, logger *log.Logger) *RainSystem {

	if logger == nil {
		logger = log.Default()
	}

	rs := &RainSystem{
		name:      "RainSystem",
		priority:  10, // После физики (5), до диагностики (100)
		store:     store,
		world:     world,
		surface:   surface,
		particles: particles,
		byBody:    make(map[*cp.Body]*RainEntity),
		gust:      wind{rng: rand.New(rand.NewSource(rand.Int63()))},
		enabled:   true,
		rng:       rand.New(rand.NewSource(rand.Int63())),
		logger:    logger,
	}

	world.OnFloorContact(rs.handleFloorContact)

	return rs
}

// GetName возвращает имя системы.
func (rs *RainSystem) GetName() string {
	return rs.name
}

// GetPriority возвращает приоритет системы.
func (rs *RainSystem) GetPriority() int {
	return rs.priority
}

// SetEnabled переключает прием запросов на спавн. Симуляция продолжает
// работать: уже живые сущности стареют и затухают как обычно.
func (rs *RainSystem) SetEnabled(enabled bool) {
	if rs.enabled != enabled {
		rs.logger.Printf("[RainSystem] Спавн %s", map[bool]string{true: "включен", false: "выключен"}[enabled])
	}
	rs.enabled = enabled
}

// Enabled сообщает, принимаются ли запросы на спавн.
func (rs *RainSystem) Enabled() bool {
	return rs.enabled
}

// SpawnBurst спавнит count сущностей со случайным разбросом позиций.
// Полностью игнорируется, пока система выключена. Доля холста в x
// нормализуется один раз, до джиттера: джиттер работает в пикселях
// и не должен вернуть координату в диапазон долей.
func (rs *RainSystem) SpawnBurst(count int, emoji string, x, y float64) {
	if !rs.enabled {
		return
	}
	if count <= 0 {
		count = 1
	}

	x = rs.normalizeX(x)

	for i := 0; i < count; i++ {
		jx := x
		jy := y
		if i > 0 {
			jx += (rs.rng.Float64()*2 - 1) * burstJitterX
			jy -= rs.rng.Float64() * burstJitterY
		}
		rs.spawnAt(emoji, jx, jy)
	}
}

// Spawn создает одну сущность. Горизонтальная позиция в диапазоне [0..1]
// нормализуется в пиксели по текущей ширине холста.
func (rs *RainSystem) Spawn(emoji string, x, y float64) *RainEntity {
	return rs.spawnAt(emoji, rs.normalizeX(x), y)
}

// normalizeX превращает долю холста [0..1] в пиксели. Значения вне
// диапазона считаются уже пиксельными.
func (rs *RainSystem) normalizeX(x float64) float64 {
	if x >= 0 && x <= 1 {
		width, _ := rs.world.Bounds()
		return x * width
	}
	return x
}

// spawnAt создает сущность в пиксельных координатах: физическое круглое
// тело и спрайт, связанные вместе.
func (rs *RainSystem) spawnAt(emoji string, x, y float64) *RainEntity {
	cfg := rs.store.Snapshot()

	if emoji == "" {
		emoji = cfg.Emojis[rs.rng.Intn(len(cfg.Emojis))]
	}

	size := cfg.MinSize + rs.rng.Float64()*(cfg.MaxSize-cfg.MinSize)

	entity := &RainEntity{
		ID:    uuid.NewString(),
		Emoji: emoji,
		Size:  size,
		Body:  rs.world.AddBody(x, y, size/2),
	}

	rs.entities = append(rs.entities, entity)
	rs.byBody[entity.Body] = entity
	rs.totalSpawned++

	rs.surface.CreateSprite(render.SpriteInfo{
		ID:    entity.ID,
		Emoji: emoji,
		Size:  size,
		Pos:   mgl64.Vec2{x, y},
	})

	return entity
}

// Update - один тик жизненного цикла: отбраковка за границами, ветер,
// синхронизация спрайтов, старение, затухание, счетчики эффектов,
// частицы и в конце - контроль лимита популяции.
func (rs *RainSystem) Update(deltaTime time.Duration) error {
	dt := deltaTime.Seconds()
	cfg := rs.store.Snapshot()
	width, height := rs.world.Bounds()
	margin := cfg.OffscreenMargin

	gust := rs.gust.update(dt, cfg.WindStrength, cfg.WindVariation)

	for _, e := range rs.entities {
		if e.Removed {
			continue
		}

		pos := e.Body.Position()

		// Отбраковка за пределами холста с запасом: сущности, еще
		// влетающие в кадр или взлетевшие дугой, не удаляются раньше
		// времени.
		if pos.X < -margin || pos.X > width+margin ||
			pos.Y > height+margin || pos.Y < -height-margin {
			rs.remove(e)
			continue
		}

		rs.world.ApplyWind(e.Body, gust)

		e.Rotation += cfg.RotationSpeed * dt
		e.Age += dt

		opacity := 1.0
		switch {
		case !e.Fading && e.Age > cfg.Lifetime:
			// Отсчет затухания стартует со следующего тика: кадр, на
			// котором затухание началось, показывается полностью
			// непрозрачным.
			rs.beginFade(e, cfg.FadeDuration)
		case e.Fading:
			e.fadeLeft -= dt
			if e.fadeLeft <= 0 {
				rs.remove(e)
				continue
			}
			opacity = e.fadeLeft / cfg.FadeDuration
		}

		if e.bounceLeft > 0 {
			e.bounceLeft -= dt
		}
		if e.glowLeft > 0 {
			e.glowLeft -= dt
		}

		rs.surface.UpdateSprite(e.ID, render.SpriteState{
			Pos:      mgl64.Vec2{pos.X, pos.Y},
			Rotation: e.Rotation,
			Opacity:  opacity,
			Bounce:   e.bounceLeft > 0,
			Glow:     e.glowLeft > 0,
		})
	}

	rs.tickParticles(dt)
	rs.compact()
	rs.EnforceCap(cfg.MaxEntities)

	return nil
}

// beginFade идемпотентно переводит сущность в состояние затухания.
func (rs *RainSystem) beginFade(e *RainEntity, fadeDuration float64) {
	if e.Fading || e.Removed {
		return
	}
	e.Fading = true
	e.fadeLeft = fadeDuration
}

// remove идемпотентно удаляет сущность: тело, спрайт и счетчики эффектов
// освобождаются ровно один раз.
func (rs *RainSystem) remove(e *RainEntity) {
	if e.Removed {
		return
	}
	e.Removed = true
	e.fadeLeft = 0
	e.bounceLeft = 0
	e.glowLeft = 0

	delete(rs.byBody, e.Body)
	rs.world.RemoveBody(e.Body)
	rs.surface.DestroySprite(e.ID)
}

// compact выбрасывает удаленные сущности из списка, сохраняя порядок
// вставки оставшихся.
func (rs *RainSystem) compact() {
	live := rs.entities[:0]
	for _, e := range rs.entities {
		if !e.Removed {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(rs.entities); i++ {
		rs.entities[i] = nil
	}
	rs.entities = live
}

// EnforceCap вытесняет старейшие сущности (по порядку вставки), пока
// живых больше лимита. Вызывается после каждого тика; лимит - единственный
// механизм сброса давления при шквале входящих запросов.
func (rs *RainSystem) EnforceCap(max int) {
	for len(rs.entities) > max {
		rs.remove(rs.entities[0])
		rs.entities[0] = nil
		rs.entities = rs.entities[1:]
		rs.totalEvicted++
	}
}

// handleFloorContact вызывается физическим миром на каждый контакт тела
// с полом. Визуальный эффект первого отскока срабатывает не более одного
// раза на сущность, даже если событий контакта несколько за тик.
func (rs *RainSystem) handleFloorContact(body *cp.Body) {
	e, ok := rs.byBody[body]
	if !ok || e.Removed || e.HasBouncedEffect {
		return
	}

	cfg := rs.store.Snapshot()

	e.HasBouncedEffect = true
	e.bounceLeft = bounceEffectDuration

	if cfg.GlowEnabled {
		e.glowLeft = glowEffectDuration
	}
	if cfg.ParticlesEnabled && cfg.ParticlesPerBounce > 0 {
		rs.spawnContactParticles(body.Position(), cfg.ParticlesPerBounce)
	}
}

// spawnContactParticles показывает кольцо из count частиц вокруг точки
// контакта со случайным радиусом и фазой.
func (rs *RainSystem) spawnContactParticles(pos cp.Vector, count int) {
	phase := rs.rng.Float64() * 2 * math.Pi

	for i := 0; i < count; i++ {
		angle := phase + 2*math.Pi*float64(i)/float64(count)
		radius := particleRingRadius + rs.rng.Float64()*particleRingJitter

		p := rs.particles.Acquire()
		p.X = pos.X + math.Cos(angle)*radius
		p.Y = pos.Y + math.Sin(angle)*radius
		p.Size = 3 + rs.rng.Float64()*3

		rs.surface.ShowParticle(render.ParticleInfo{
			ID:   p.ID,
			Pos:  mgl64.Vec2{p.X, p.Y},
			Size: p.Size,
		})

		rs.active = append(rs.active, activeParticle{particle: p, ttl: particleLifetime})
	}
}

// tickParticles списывает время отображения частиц и возвращает
// истекшие в пул.
func (rs *RainSystem) tickParticles(dt float64) {
	alive := rs.active[:0]
	for _, ap := range rs.active {
		ap.ttl -= dt
		if ap.ttl <= 0 {
			rs.particles.Release(ap.particle)
			continue
		}
		alive = append(alive, ap)
	}
	rs.active = alive
}

// Count возвращает количество живых сущностей.
func (rs *RainSystem) Count() int {
	return len(rs.entities)
}

// RemoveAll прогоняет все живые сущности через обычный путь удаления.
// Используется при завершении работы для гарантированной очистки пула
// и физического мира.
func (rs *RainSystem) RemoveAll() {
	for _, e := range rs.entities {
		rs.remove(e)
	}
	rs.entities = nil

	for _, ap := range rs.active {
		rs.particles.Release(ap.particle)
	}
	rs.active = nil
}

// GetStats возвращает статистику системы для диагностики.
func (rs *RainSystem) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"entities":      len(rs.entities),
		"enabled":       rs.enabled,
		"wind":          rs.gust.current,
		"total_spawned": rs.totalSpawned,
		"total_evicted": rs.totalEvicted,
		"particles":     rs.particles.Stats(),
	}
}
