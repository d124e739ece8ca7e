package game

import (
	"testing"
	"time"

	"emoji-rain/backend/internal/config"
	"emoji-rain/backend/internal/physics"
	"emoji-rain/backend/internal/pool"
	"emoji-rain/backend/internal/render"
)

// fakeSurface записывает все вызовы поверхности отображения.
type fakeSurface struct {
	created   []render.SpriteInfo
	updated   map[string]render.SpriteState
	destroyed []string
	shown     []render.ParticleInfo
	hidden    []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{updated: make(map[string]render.SpriteState)}
}

func (s *fakeSurface) CreateSprite(info render.SpriteInfo) {
	s.created = append(s.created, info)
}

func (s *fakeSurface) UpdateSprite(id string, state render.SpriteState) {
	s.updated[id] = state
}

func (s *fakeSurface) DestroySprite(id string) {
	s.destroyed = append(s.destroyed, id)
}

func (s *fakeSurface) ShowParticle(info render.ParticleInfo) {
	s.shown = append(s.shown, info)
}

func (s *fakeSurface) HideParticle(id string) {
	s.hidden = append(s.hidden, id)
}

func newTestRain(cfg config.Config) (*RainSystem, *fakeSurface, *config.Store) {
	store := config.NewStore(cfg)
	surface := newFakeSurface()
	world := physics.NewWorld(cfg.CanvasWidth, cfg.CanvasHeight, physics.Options{
		Gravity:     cfg.Gravity,
		Damping:     cfg.AirDrag,
		Friction:    cfg.Friction,
		Restitution: cfg.Restitution,
	}, nil)
	particles := pool.NewParticlePool(50, surface, nil)
	rain := NewRainSystem(store, world, surface, particles, nil)
	return rain, surface, store
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.CanvasWidth = 1000
	cfg.CanvasHeight = 600
	return cfg
}

func TestSpawnNormalizesUnitFraction(t *testing.T) {
	rain, _, _ := newTestRain(testConfig())

	// Доля холста превращается в пиксели по текущей ширине
	entity := rain.Spawn("🎉", 0.5, 0)

	if x := entity.Body.Position().X; x != 500 {
		t.Errorf("Expected x=500 for fraction 0.5 on 1000px canvas, got %f", x)
	}
}

func TestSpawnAbsoluteCoordinates(t *testing.T) {
	rain, surface, _ := newTestRain(testConfig())

	entity := rain.Spawn("🔥", 300, -40)

	if x := entity.Body.Position().X; x != 300 {
		t.Errorf("Expected absolute x=300, got %f", x)
	}
	if len(surface.created) != 1 {
		t.Fatalf("Expected 1 created sprite, got %d", len(surface.created))
	}
	if surface.created[0].Emoji != "🔥" {
		t.Errorf("Expected emoji 🔥, got %s", surface.created[0].Emoji)
	}
}

func TestSpawnDefaultsEmojiAndSize(t *testing.T) {
	cfg := testConfig()
	rain, _, store := newTestRain(cfg)

	entity := rain.Spawn("", 100, 0)

	// Пустой эмодзи заменяется случайным из набора
	found := false
	for _, emoji := range store.Snapshot().Emojis {
		if entity.Emoji == emoji {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected emoji from configured set, got %s", entity.Emoji)
	}

	if entity.Size < cfg.MinSize || entity.Size > cfg.MaxSize {
		t.Errorf("Expected size in [%f, %f], got %f", cfg.MinSize, cfg.MaxSize, entity.Size)
	}
}

func TestSpawnBurstDisabled(t *testing.T) {
	rain, surface, _ := newTestRain(testConfig())

	// Выключенная система полностью игнорирует запросы
	rain.SetEnabled(false)
	rain.SpawnBurst(5, "", 0.5, 0)

	if rain.Count() != 0 {
		t.Errorf("Expected no entities while disabled, got %d", rain.Count())
	}
	if len(surface.created) != 0 {
		t.Errorf("Expected no sprites while disabled, got %d", len(surface.created))
	}

	// После включения спавн снова работает
	rain.SetEnabled(true)
	rain.SpawnBurst(3, "", 0.5, 0)
	if rain.Count() != 3 {
		t.Errorf("Expected 3 entities after enable, got %d", rain.Count())
	}
}

func TestSpawnBurstNormalizesOnce(t *testing.T) {
	rain, _, _ := newTestRain(testConfig())

	// Крошечная доля холста: после нормализации координата снова попадает
	// в [0..1] и не должна масштабироваться повторно
	rain.SpawnBurst(1, "🎉", 0.0005, 0)

	if rain.Count() != 1 {
		t.Fatalf("Expected 1 entity, got %d", rain.Count())
	}
	if x := rain.entities[0].Body.Position().X; x != 0.5 {
		t.Errorf("Expected x=0.5 for fraction 0.0005 on 1000px canvas, got %f", x)
	}
}

func TestSpawnBurstCount(t *testing.T) {
	rain, _, _ := newTestRain(testConfig())

	// Неположительное количество трактуется как одиночный спавн
	rain.SpawnBurst(0, "", 0.5, 0)
	if rain.Count() != 1 {
		t.Errorf("Expected 1 entity for count 0, got %d", rain.Count())
	}

	rain.SpawnBurst(4, "", 0.5, 0)
	if rain.Count() != 5 {
		t.Errorf("Expected 5 entities total, got %d", rain.Count())
	}
}

func TestCapEvictsOldest(t *testing.T) {
	rain, surface, store := newTestRain(testConfig())

	max := 3
	store.Merge(config.Patch{MaxEntities: &max})

	var ids []string
	for i := 0; i < 5; i++ {
		entity := rain.Spawn("🎉", float64(100+i*100), 100)
		ids = append(ids, entity.ID)
	}

	if err := rain.Update(time.Millisecond); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if rain.Count() != max {
		t.Errorf("Expected population capped at %d, got %d", max, rain.Count())
	}

	// Вытесняются старейшие в порядке вставки
	if len(surface.destroyed) != 2 {
		t.Fatalf("Expected 2 evicted sprites, got %d", len(surface.destroyed))
	}
	if surface.destroyed[0] != ids[0] || surface.destroyed[1] != ids[1] {
		t.Errorf("Expected oldest-first eviction %v, got %v", ids[:2], surface.destroyed)
	}
}

func TestLifetimeFadeAndRemoval(t *testing.T) {
	cfg := testConfig()
	cfg.Lifetime = 0.1
	cfg.FadeDuration = 1.0
	rain, surface, _ := newTestRain(cfg)

	entity := rain.Spawn("🎉", 500, 100)

	// Первый тик: возраст превысил время жизни, началось затухание.
	// Кадр начала затухания еще полностью непрозрачен
	if err := rain.Update(200 * time.Millisecond); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !entity.Fading {
		t.Error("Expected entity to start fading after lifetime")
	}
	state, ok := surface.updated[entity.ID]
	if !ok {
		t.Fatal("Expected sprite update on the tick fade begins")
	}
	if state.Opacity != 1.0 {
		t.Errorf("Expected full opacity on the tick fade begins, got %f", state.Opacity)
	}

	// Второй тик: отсчет затухания начался, непрозрачность частичная
	if err := rain.Update(200 * time.Millisecond); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	state = surface.updated[entity.ID]
	if state.Opacity >= 1.0 || state.Opacity <= 0 {
		t.Errorf("Expected partial opacity during fade, got %f", state.Opacity)
	}

	// Третий тик длиннее остатка затухания: сущность удалена ровно один раз
	if err := rain.Update(time.Second); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if rain.Count() != 0 {
		t.Errorf("Expected 0 entities after fade, got %d", rain.Count())
	}
	if len(surface.destroyed) != 1 {
		t.Errorf("Expected exactly 1 destroy, got %d", len(surface.destroyed))
	}
}

func TestFadeFirstTickNotConsumed(t *testing.T) {
	// Тик длиннее всего затухания: сущность обязана пережить тик, на
	// котором затухание началось, и показать хотя бы один кадр
	cfg := testConfig()
	cfg.Lifetime = 0.1
	cfg.FadeDuration = 0.1
	rain, surface, _ := newTestRain(cfg)

	entity := rain.Spawn("🎉", 500, 100)

	if err := rain.Update(200 * time.Millisecond); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if rain.Count() != 1 {
		t.Fatalf("Expected entity to survive the tick fade begins, got %d entities", rain.Count())
	}
	if !entity.Fading {
		t.Error("Expected entity to be fading")
	}
	if _, ok := surface.updated[entity.ID]; !ok {
		t.Error("Expected a visible frame on the tick fade begins")
	}

	if err := rain.Update(200 * time.Millisecond); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if rain.Count() != 0 {
		t.Errorf("Expected entity removed on the next tick, got %d", rain.Count())
	}
}

func TestOffscreenCulling(t *testing.T) {
	rain, surface, _ := newTestRain(testConfig())

	// Далеко за левой границей, дальше запаса
	entity := rain.Spawn("🎉", -500, 100)

	if err := rain.Update(time.Millisecond); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if rain.Count() != 0 {
		t.Errorf("Expected offscreen entity culled, got %d entities", rain.Count())
	}
	if len(surface.destroyed) != 1 || surface.destroyed[0] != entity.ID {
		t.Errorf("Expected destroy of %s, got %v", entity.ID, surface.destroyed)
	}
}

func TestFloorContactEffectOnce(t *testing.T) {
	cfg := testConfig()
	cfg.ParticlesPerBounce = 4
	rain, surface, _ := newTestRain(cfg)

	entity := rain.Spawn("🎉", 500, 100)

	// Несколько событий контакта за один тик - эффект срабатывает один раз
	rain.handleFloorContact(entity.Body)
	rain.handleFloorContact(entity.Body)

	if !entity.HasBouncedEffect {
		t.Error("Expected bounce effect flag set")
	}
	if entity.bounceLeft <= 0 {
		t.Error("Expected bounce countdown started")
	}
	if entity.glowLeft <= 0 {
		t.Error("Expected glow countdown started (glow enabled by default)")
	}
	if len(surface.shown) != cfg.ParticlesPerBounce {
		t.Errorf("Expected %d particles for single effect, got %d", cfg.ParticlesPerBounce, len(surface.shown))
	}
}

func TestFloorContactEffectsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.GlowEnabled = false
	cfg.ParticlesEnabled = false
	rain, surface, _ := newTestRain(cfg)

	entity := rain.Spawn("🎉", 500, 100)
	rain.handleFloorContact(entity.Body)

	if entity.glowLeft > 0 {
		t.Error("Expected no glow when disabled")
	}
	if len(surface.shown) != 0 {
		t.Errorf("Expected no particles when disabled, got %d", len(surface.shown))
	}
	// Отскок не отключается конфигурацией
	if entity.bounceLeft <= 0 {
		t.Error("Expected bounce countdown regardless of visual effect toggles")
	}
}

func TestParticlesExpireBackToPool(t *testing.T) {
	cfg := testConfig()
	cfg.ParticlesPerBounce = 3
	rain, surface, _ := newTestRain(cfg)

	entity := rain.Spawn("🎉", 500, 100)
	rain.handleFloorContact(entity.Body)

	if len(rain.active) != 3 {
		t.Fatalf("Expected 3 active particles, got %d", len(rain.active))
	}

	// Тик длиннее времени жизни частицы: все вернулись в пул
	if err := rain.Update(time.Second); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if len(rain.active) != 0 {
		t.Errorf("Expected no active particles, got %d", len(rain.active))
	}
	if len(surface.hidden) != 3 {
		t.Errorf("Expected 3 hidden particles, got %d", len(surface.hidden))
	}
	if rain.particles.IdleCount() != 3 {
		t.Errorf("Expected 3 pooled particles, got %d", rain.particles.IdleCount())
	}
}

func TestGetStats(t *testing.T) {
	rain, _, store := newTestRain(testConfig())

	max := 2
	store.Merge(config.Patch{MaxEntities: &max})

	for i := 0; i < 4; i++ {
		rain.Spawn("🎉", float64(100+i*100), 100)
	}
	if err := rain.Update(time.Millisecond); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	rain.SetEnabled(false)

	stats := rain.GetStats()
	if stats["entities"] != 2 {
		t.Errorf("Expected 2 live entities in stats, got %v", stats["entities"])
	}
	if stats["total_spawned"] != uint64(4) {
		t.Errorf("Expected 4 total spawned, got %v", stats["total_spawned"])
	}
	if stats["total_evicted"] != uint64(2) {
		t.Errorf("Expected 2 total evicted, got %v", stats["total_evicted"])
	}
	if stats["enabled"] != false {
		t.Errorf("Expected enabled false, got %v", stats["enabled"])
	}
	if _, ok := stats["particles"]; !ok {
		t.Error("Expected particle pool stats to be included")
	}
}

func TestRemoveAll(t *testing.T) {
	rain, surface, _ := newTestRain(testConfig())

	for i := 0; i < 4; i++ {
		rain.Spawn("🎉", float64(100+i*100), 100)
	}
	entity := rain.Spawn("🎉", 500, 100)
	rain.handleFloorContact(entity.Body)

	rain.RemoveAll()

	if rain.Count() != 0 {
		t.Errorf("Expected 0 entities after RemoveAll, got %d", rain.Count())
	}
	if len(surface.destroyed) != 5 {
		t.Errorf("Expected 5 destroyed sprites, got %d", len(surface.destroyed))
	}

	// Повторный вызов безопасен и ничего не уничтожает повторно
	rain.RemoveAll()
	if len(surface.destroyed) != 5 {
		t.Errorf("Expected destroy count unchanged, got %d", len(surface.destroyed))
	}
}
