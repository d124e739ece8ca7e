package game

import "math/rand"

// wind - медленно дрейфующая горизонтальная сила, приложенная одинаково
// ко всем сущностям каждый тик.
type wind struct {
	current float64
	rng     *rand.Rand
}

// update сдвигает значение ветра случайным блужданием со скоростью
// variation и ограничивает его величиной strength.
func (w *wind) update(dt, strength, variation float64) float64 {
	w.current += (w.rng.Float64()*2 - 1) * variation * dt

	if w.current > strength {
		w.current = strength
	}
	if w.current < -strength {
		w.current = -strength
	}

	return w.current
}
