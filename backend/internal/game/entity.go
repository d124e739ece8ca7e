package game

import (
	"github.com/jakecoffman/cp"
)

// Длительности временных визуальных состояний, с.
const (
	bounceEffectDuration = 0.45
	glowEffectDuration   = 0.25
	particleLifetime     = 0.6
)

// RainEntity - одна живая падающая эмодзи: физическое тело и спрайт,
// связанные вместе. Жизненный цикл: spawned -> (aging) -> fading -> removed,
// с прямым переходом aging -> removed при выходе за границы мира или
// вытеснении по лимиту популяции.
type RainEntity struct {
	ID    string
	Emoji string
	Size  float64

	// Накопленный поворот спрайта (не угол физического тела)
	Rotation float64

	// Возраст в секундах симуляции
	Age float64

	Body *cp.Body

	// Флаги состояния
	Fading           bool
	Removed          bool
	HasBouncedEffect bool

	// Отложенные эффекты как покадровые счетчики вместо внешних таймеров:
	// нечего отменять при удалении, нет обратных вызовов к уже
	// уничтоженному спрайту.
	fadeLeft   float64
	bounceLeft float64
	glowLeft   float64
}
