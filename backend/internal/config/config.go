package config

import (
	"fmt"
	"math"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config содержит все настраиваемые параметры симуляции дождя.
// Каждое распознаваемое поле перечислено явно - произвольные ключи
// из внешних снапшотов игнорируются при декодировании.
type Config struct {
	// Физика
	Gravity     float64 `json:"gravity" yaml:"gravity"`         // Ускорение вниз, px/s^2
	AirDrag     float64 `json:"air_drag" yaml:"air_drag"`       // Глобальное затухание скорости (0..1]
	Friction    float64 `json:"friction" yaml:"friction"`       // Трение тел и границ
	Restitution float64 `json:"restitution" yaml:"restitution"` // Упругость отскока

	// Ветер
	WindStrength  float64 `json:"wind_strength" yaml:"wind_strength"`   // Максимальная сила ветра
	WindVariation float64 `json:"wind_variation" yaml:"wind_variation"` // Скорость дрейфа ветра

	// Внешний вид
	MinSize       float64 `json:"min_size" yaml:"min_size"`             // Минимальный размер спрайта, px
	MaxSize       float64 `json:"max_size" yaml:"max_size"`             // Максимальный размер спрайта, px
	RotationSpeed float64 `json:"rotation_speed" yaml:"rotation_speed"` // Угловая скорость спрайта, рад/с

	// Жизненный цикл
	Lifetime     float64 `json:"lifetime" yaml:"lifetime"`           // Время жизни до начала затухания, с
	FadeDuration float64 `json:"fade_duration" yaml:"fade_duration"` // Длительность затухания, с
	MaxEntities  int     `json:"max_entities" yaml:"max_entities"`   // Предел одновременно живых сущностей

	// Спавн
	SpawnCounts map[string]int `json:"spawn_counts" yaml:"spawn_counts"` // Количество спавнов на триггер
	Emojis      []string       `json:"emojis" yaml:"emojis"`             // Набор эмодзи по умолчанию

	// Холст
	CanvasWidth  float64 `json:"canvas_width" yaml:"canvas_width"`
	CanvasHeight float64 `json:"canvas_height" yaml:"canvas_height"`
	TargetFPS    int     `json:"target_fps" yaml:"target_fps"`

	// Визуальные эффекты
	GlowEnabled        bool `json:"glow_enabled" yaml:"glow_enabled"`
	ParticlesEnabled   bool `json:"particles_enabled" yaml:"particles_enabled"`
	DepthEnabled       bool `json:"depth_enabled" yaml:"depth_enabled"`
	ParticlesPerBounce int  `json:"particles_per_bounce" yaml:"particles_per_bounce"`

	// Диагностика
	DiagnosticsEnabled bool `json:"diagnostics_enabled" yaml:"diagnostics_enabled"`

	// Отступ за пределами холста до удаления сущности, px
	OffscreenMargin float64 `json:"offscreen_margin" yaml:"offscreen_margin"`
}

// Patch - частичное обновление конфигурации. Поля-указатели: nil означает
// "ключ не передан, оставить текущее значение".
type Patch struct {
	Gravity     *float64 `json:"gravity"`
	AirDrag     *float64 `json:"air_drag"`
	Friction    *float64 `json:"friction"`
	Restitution *float64 `json:"restitution"`

	WindStrength  *float64 `json:"wind_strength"`
	WindVariation *float64 `json:"wind_variation"`

	MinSize       *float64 `json:"min_size"`
	MaxSize       *float64 `json:"max_size"`
	RotationSpeed *float64 `json:"rotation_speed"`

	Lifetime     *float64 `json:"lifetime"`
	FadeDuration *float64 `json:"fade_duration"`
	MaxEntities  *int     `json:"max_entities"`

	SpawnCounts map[string]int `json:"spawn_counts"`
	Emojis      []string       `json:"emojis"`

	CanvasWidth  *float64 `json:"canvas_width"`
	CanvasHeight *float64 `json:"canvas_height"`
	TargetFPS    *int     `json:"target_fps"`

	GlowEnabled        *bool `json:"glow_enabled"`
	ParticlesEnabled   *bool `json:"particles_enabled"`
	DepthEnabled       *bool `json:"depth_enabled"`
	ParticlesPerBounce *int  `json:"particles_per_bounce"`

	DiagnosticsEnabled *bool `json:"diagnostics_enabled"`

	OffscreenMargin *float64 `json:"offscreen_margin"`
}

// Default возвращает встроенную конфигурацию по умолчанию.
// Используется при недоступности внешнего снапшота.
func Default() Config {
	return Config{
		Gravity:     900.0,
		AirDrag:     0.99,
		Friction:    0.4,
		Restitution: 0.45,

		WindStrength:  120.0,
		WindVariation: 80.0,

		MinSize:       24.0,
		MaxSize:       64.0,
		RotationSpeed: 1.5,

		Lifetime:     12.0,
		FadeDuration: 1.5,
		MaxEntities:  80,

		SpawnCounts: map[string]int{
			"follow":   3,
			"sub":      8,
			"raid":     15,
			"donation": 10,
			"manual":   1,
		},
		Emojis: []string{"🎉", "💜", "⭐", "🔥", "🌧️", "❤️", "🎊"},

		CanvasWidth:  1920.0,
		CanvasHeight: 1080.0,
		TargetFPS:    60,

		GlowEnabled:        true,
		ParticlesEnabled:   true,
		DepthEnabled:       false,
		ParticlesPerBounce: 6,

		DiagnosticsEnabled: false,

		OffscreenMargin: 100.0,
	}
}

// Store хранит текущую конфигурацию. Читатели получают копию снапшота,
// записи идут только через Merge.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore создает хранилище с переданной начальной конфигурацией.
func NewStore(initial Config) *Store {
	sanitize(&initial)
	return &Store{cfg: initial}
}

// Snapshot возвращает копию текущей конфигурации.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.cfg
	cfg.SpawnCounts = copyCounts(s.cfg.SpawnCounts)
	cfg.Emojis = append([]string(nil), s.cfg.Emojis...)
	return cfg
}

// Merge накладывает частичное обновление: перезаписываются только переданные
// ключи, остальные сохраняют текущие значения. Значения за пределами
// допустимого диапазона ограничиваются на границе слияния.
func (s *Store) Merge(p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applyFloat(&s.cfg.Gravity, p.Gravity)
	applyFloat(&s.cfg.AirDrag, p.AirDrag)
	applyFloat(&s.cfg.Friction, p.Friction)
	applyFloat(&s.cfg.Restitution, p.Restitution)

	applyFloat(&s.cfg.WindStrength, p.WindStrength)
	applyFloat(&s.cfg.WindVariation, p.WindVariation)

	applyFloat(&s.cfg.MinSize, p.MinSize)
	applyFloat(&s.cfg.MaxSize, p.MaxSize)
	applyFloat(&s.cfg.RotationSpeed, p.RotationSpeed)

	applyFloat(&s.cfg.Lifetime, p.Lifetime)
	applyFloat(&s.cfg.FadeDuration, p.FadeDuration)
	if p.MaxEntities != nil {
		s.cfg.MaxEntities = *p.MaxEntities
	}

	if p.SpawnCounts != nil {
		if s.cfg.SpawnCounts == nil {
			s.cfg.SpawnCounts = make(map[string]int)
		}
		for trigger, count := range p.SpawnCounts {
			if count < 0 {
				count = 0
			}
			s.cfg.SpawnCounts[trigger] = count
		}
	}
	if p.Emojis != nil {
		s.cfg.Emojis = append([]string(nil), p.Emojis...)
	}

	applyFloat(&s.cfg.CanvasWidth, p.CanvasWidth)
	applyFloat(&s.cfg.CanvasHeight, p.CanvasHeight)
	if p.TargetFPS != nil {
		s.cfg.TargetFPS = *p.TargetFPS
	}

	applyBool(&s.cfg.GlowEnabled, p.GlowEnabled)
	applyBool(&s.cfg.ParticlesEnabled, p.ParticlesEnabled)
	applyBool(&s.cfg.DepthEnabled, p.DepthEnabled)
	if p.ParticlesPerBounce != nil {
		s.cfg.ParticlesPerBounce = *p.ParticlesPerBounce
	}

	applyBool(&s.cfg.DiagnosticsEnabled, p.DiagnosticsEnabled)
	applyFloat(&s.cfg.OffscreenMargin, p.OffscreenMargin)

	sanitize(&s.cfg)
}

// sanitize приводит конфигурацию к допустимому виду после слияния.
func sanitize(cfg *Config) {
	def := Default()

	if cfg.MaxEntities < 0 {
		cfg.MaxEntities = 0
	}
	if cfg.MinSize < 1 {
		cfg.MinSize = 1
	}
	if cfg.MaxSize < cfg.MinSize {
		cfg.MaxSize = cfg.MinSize
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = def.TargetFPS
	}
	if cfg.AirDrag <= 0 || cfg.AirDrag > 1 {
		cfg.AirDrag = def.AirDrag
	}
	if cfg.CanvasWidth <= 0 {
		cfg.CanvasWidth = def.CanvasWidth
	}
	if cfg.CanvasHeight <= 0 {
		cfg.CanvasHeight = def.CanvasHeight
	}
	if cfg.FadeDuration <= 0 {
		cfg.FadeDuration = def.FadeDuration
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = def.Lifetime
	}
	if cfg.ParticlesPerBounce < 0 {
		cfg.ParticlesPerBounce = 0
	}
	if cfg.OffscreenMargin < 0 {
		cfg.OffscreenMargin = 0
	}
	if len(cfg.Emojis) == 0 {
		cfg.Emojis = def.Emojis
	}
}

// applyFloat переносит значение указателя, отбрасывая NaN и Inf.
func applyFloat(dst *float64, src *float64) {
	if src == nil {
		return
	}
	if math.IsNaN(*src) || math.IsInf(*src, 0) {
		return
	}
	*dst = *src
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// LoadFile читает YAML-файл конфигурации поверх значений по умолчанию.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("чтение файла конфигурации: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("разбор файла конфигурации: %w", err)
	}

	sanitize(&cfg)
	return cfg, nil
}
