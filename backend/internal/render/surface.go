package render

import "github.com/go-gl/mathgl/mgl64"

// SpriteInfo описывает создаваемый спрайт эмодзи.
type SpriteInfo struct {
	ID    string
	Emoji string
	Size  float64
	Pos   mgl64.Vec2
}

// SpriteState - покадровое состояние спрайта, передаваемое поверхности.
type SpriteState struct {
	Pos      mgl64.Vec2
	Rotation float64 // накопленный поворот, рад
	Opacity  float64 // 1 = непрозрачный, убывает при затухании
	Bounce   bool    // временное состояние "отскок"
	Glow     bool    // временное состояние "свечение"
}

// ParticleInfo описывает декоративную частицу эффекта удара.
type ParticleInfo struct {
	ID   string
	Pos  mgl64.Vec2
	Size float64
}

// Surface - минимальная способность отображения, отделяющая ядро симуляции
// от конкретной графической поверхности. Реализации: WebSocket-трансляция
// подключенным панелям и локальное окно предпросмотра.
//
// Все методы вызываются из горутины игрового цикла и не должны блокировать.
type Surface interface {
	// CreateSprite создает отображаемый спрайт.
	CreateSprite(info SpriteInfo)

	// UpdateSprite обновляет трансформацию существующего спрайта.
	UpdateSprite(id string, state SpriteState)

	// DestroySprite уничтожает спрайт. Повторный вызов для уже
	// уничтоженного спрайта допустим и игнорируется.
	DestroySprite(id string)

	// ShowParticle показывает частицу эффекта удара.
	ShowParticle(info ParticleInfo)

	// HideParticle убирает частицу с поверхности.
	HideParticle(id string)
}

// NopSurface - поверхность-заглушка для безголовых запусков и тестов.
type NopSurface struct{}

func (NopSurface) CreateSprite(SpriteInfo)          {}
func (NopSurface) UpdateSprite(string, SpriteState) {}
func (NopSurface) DestroySprite(string)             {}
func (NopSurface) ShowParticle(ParticleInfo)        {}
func (NopSurface) HideParticle(string)              {}
