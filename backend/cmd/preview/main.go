package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"emoji-rain/backend/internal/config"
	"emoji-rain/backend/internal/game"
	"emoji-rain/backend/internal/physics"
	"emoji-rain/backend/internal/pool"
	"emoji-rain/backend/internal/render"
	"emoji-rain/backend/internal/telemetry"
)

// previewSprite - локальное состояние спрайта для отрисовки.
type previewSprite struct {
	emoji string
	size  float64
	state render.SpriteState
}

// previewParticle - видимая частица удара.
type previewParticle struct {
	info render.ParticleInfo
}

// PreviewSurface - поверхность отображения локального предпросмотра.
// Пишет горутина, вызывающая Advance (здесь это Update игры ebiten),
// читает Draw той же горутины, поэтому мьютекс нужен только на случай
// команд из других горутин.
type PreviewSurface struct {
	mu        sync.Mutex
	sprites   map[string]*previewSprite
	order     []string
	particles map[string]*previewParticle
}

// NewPreviewSurface создает пустую поверхность предпросмотра.
func NewPreviewSurface() *PreviewSurface {
	return &PreviewSurface{
		sprites:   make(map[string]*previewSprite),
		particles: make(map[string]*previewParticle),
	}
}

func (s *PreviewSurface) CreateSprite(info render.SpriteInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sprites[info.ID] = &previewSprite{
		emoji: info.Emoji,
		size:  info.Size,
		state: render.SpriteState{Pos: info.Pos, Opacity: 1.0},
	}
	s.order = append(s.order, info.ID)
}

func (s *PreviewSurface) UpdateSprite(id string, state render.SpriteState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sprite, ok := s.sprites[id]; ok {
		sprite.state = state
	}
}

func (s *PreviewSurface) DestroySprite(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sprites[id]; !ok {
		return
	}
	delete(s.sprites, id)
	for i, spriteID := range s.order {
		if spriteID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *PreviewSurface) ShowParticle(info render.ParticleInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.particles[info.ID] = &previewParticle{info: info}
}

func (s *PreviewSurface) HideParticle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.particles, id)
}

// Game - обертка ebiten вокруг симуляции дождя. Update продвигает
// тикер вручную, поэтому внутренняя горутина тикера не запускается.
type Game struct {
	store   *config.Store
	world   *physics.World
	rain    *game.RainSystem
	ticker  *game.RainTicker
	monitor *telemetry.Monitor
	surface *PreviewSurface
	logger  *log.Logger
}

// Update обрабатывает клавиатуру и продвигает симуляцию.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.ticker.Enqueue(func() {
			cfg := g.store.Snapshot()
			g.rain.SpawnBurst(cfg.SpawnCounts["sub"], "", 0.5, 0)
		})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyD) {
		cfg := g.store.Snapshot()
		enabled := !cfg.DiagnosticsEnabled
		g.store.Merge(config.Patch{DiagnosticsEnabled: &enabled})
		g.logger.Printf("Диагностика: %v", enabled)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		enabled := !g.rain.Enabled()
		g.ticker.Enqueue(func() {
			g.rain.SetEnabled(enabled)
		})
		g.logger.Printf("Дождь: %v", enabled)
	}

	g.ticker.Advance(time.Now())
	return nil
}

// Draw рисует эмодзи кругами с меткой символа и частицы точками.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 18, G: 18, B: 24, A: 255})

	g.surface.mu.Lock()
	sprites := make([]*previewSprite, 0, len(g.surface.order))
	for _, id := range g.surface.order {
		if sprite, ok := g.surface.sprites[id]; ok {
			sprites = append(sprites, sprite)
		}
	}
	particles := make([]*previewParticle, 0, len(g.surface.particles))
	for _, particle := range g.surface.particles {
		particles = append(particles, particle)
	}
	g.surface.mu.Unlock()

	for _, sprite := range sprites {
		alpha := uint8(sprite.state.Opacity * 255)
		fill := color.RGBA{R: 240, G: 200, B: 60, A: alpha}
		if sprite.state.Glow {
			fill = color.RGBA{R: 255, G: 255, B: 160, A: alpha}
		}
		x := float32(sprite.state.Pos.X())
		y := float32(sprite.state.Pos.Y())
		vector.DrawFilledCircle(screen, x, y, float32(sprite.size/2), fill, true)
		ebitenutil.DebugPrintAt(screen, sprite.emoji, int(x)-6, int(y)-8)
	}

	for _, particle := range particles {
		x := float32(particle.info.Pos.X())
		y := float32(particle.info.Pos.Y())
		vector.DrawFilledCircle(screen, x, y, float32(particle.info.Size/2), color.RGBA{R: 200, G: 200, B: 220, A: 200}, true)
	}

	cfg := g.store.Snapshot()
	if cfg.DiagnosticsEnabled {
		snapshot := g.monitor.Snapshot()
		hud := fmt.Sprintf("FPS: %.1f (%s)\nЭмодзи: %d/%d\nТела: %d\nКадр: %.2f мс\n\n[Space] залп  [T] вкл/выкл  [D] диагностика",
			snapshot.FPS, snapshot.FPSStatus, snapshot.Entities, snapshot.EntityCap, snapshot.Bodies, snapshot.FrameMillis)
		ebitenutil.DebugPrintAt(screen, hud, 8, 8)
	}
}

// Layout возвращает логический размер холста; ebiten сам масштабирует
// его под окно.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	cfg := g.store.Snapshot()
	return int(cfg.CanvasWidth), int(cfg.CanvasHeight)
}

func main() {
	configPath := flag.String("config", "", "путь к YAML файлу конфигурации")
	flag.Parse()

	logger := log.New(os.Stdout, "[Preview] ", log.LstdFlags)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			logger.Printf("Конфигурация из файла недоступна, используем дефолты: %v", err)
		} else {
			cfg = loaded
		}
	}
	store := config.NewStore(cfg)
	cfg = store.Snapshot()

	world := physics.NewWorld(cfg.CanvasWidth, cfg.CanvasHeight, physics.Options{
		Gravity:     cfg.Gravity,
		Damping:     cfg.AirDrag,
		Friction:    cfg.Friction,
		Restitution: cfg.Restitution,
	}, log.New(os.Stdout, "[Physics] ", log.LstdFlags))

	surface := NewPreviewSurface()
	particles := pool.NewParticlePool(pool.DefaultMaxPooled, surface, log.New(os.Stdout, "[Pool] ", log.LstdFlags))
	rain := game.NewRainSystem(store, world, surface, particles, log.New(os.Stdout, "[RainSystem] ", log.LstdFlags))
	monitor := telemetry.NewMonitor(log.New(os.Stdout, "[Telemetry] ", log.LstdFlags))

	ticker := game.NewRainTicker(cfg.TargetFPS, log.New(os.Stdout, "[RainTicker] ", log.LstdFlags))
	ticker.RegisterSystem(game.NewPhysicsSystem(world))
	ticker.RegisterSystem(rain)
	ticker.RegisterSystem(game.NewDiagnosticsSystem(store, world, rain, ticker, monitor,
		log.New(os.Stdout, "[Diagnostics] ", log.LstdFlags)))

	ebiten.SetWindowSize(int(cfg.CanvasWidth)/2, int(cfg.CanvasHeight)/2)
	ebiten.SetWindowTitle("Emoji Rain - предпросмотр")

	if err := ebiten.RunGame(&Game{
		store:   store,
		world:   world,
		rain:    rain,
		ticker:  ticker,
		monitor: monitor,
		surface: surface,
		logger:  logger,
	}); err != nil {
		logger.Fatalf("Ошибка запуска предпросмотра: %v", err)
	}
}
