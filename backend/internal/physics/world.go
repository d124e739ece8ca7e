package physics

import (
	"log"
	"math"
	"math/rand"

	"github.com/jakecoffman/cp"
)

// Типы коллизий для разделения контактов с полом и стенами.
const (
	CollisionTypeRain cp.CollisionType = iota + 1
	CollisionTypeFloor
	CollisionTypeWall
)

// Радиус статических сегментов границ.
const boundaryRadius = 2.0

// Диапазон случайной начальной скорости нового тела,
// чтобы одновременные спавны не выглядели одинаково.
const (
	spawnVelocityX = 40.0 // разброс по горизонтали, ±px/s
	spawnVelocityY = 80.0 // начальная скорость вниз, 0..px/s
	spawnSpin      = 2.0  // разброс угловой скорости, ±рад/с
)

// World владеет физической симуляцией: гравитация, три статические границы
// (пол, левая и правая стены) и динамические круглые тела. Все методы
// вызываются только из горутины игрового цикла - внешняя синхронизация
// обеспечивается тикером.
type World struct {
	space *cp.Space

	floor     *cp.Shape
	leftWall  *cp.Shape
	rightWall *cp.Shape

	width  float64
	height float64

	friction   float64
	elasticity float64
	bodyCount  int
	onFloorHit func(*cp.Body)
	rng        *rand.Rand
	logger     *log.Logger
}

// Options - параметры создания мира.
type Options struct {
	Gravity     float64 // px/s^2, положительное значение направлено вниз
	Damping     float64 // глобальное затухание скорости (сопротивление воздуха)
	Friction    float64
	Restitution float64
}

// NewWorld создает физический мир с границами под размер холста.
// Засыпание тел отключено: визуальное движение не должно останавливаться
// даже для почти покоящихся тел.
func NewWorld(width, height float64, opts Options, logger *log.Logger) *World {
	if logger == nil {
		logger = log.Default()
	}

	space := cp.NewSpace()
	space.Iterations = 10
	space.SetGravity(cp.Vector{X: 0, Y: opts.Gravity})
	space.SetDamping(opts.Damping)
	space.SleepTimeThreshold = math.Inf(1)

	w := &World{
		space:      space,
		width:      width,
		height:     height,
		friction:   opts.Friction,
		elasticity: opts.Restitution,
		rng:        rand.New(rand.NewSource(rand.Int63())),
		logger:     logger,
	}

	w.floor = w.addBoundary(CollisionTypeFloor)
	w.leftWall = w.addBoundary(CollisionTypeWall)
	w.rightWall = w.addBoundary(CollisionTypeWall)
	w.placeBoundaries()

	handler := space.NewCollisionHandler(CollisionTypeRain, CollisionTypeFloor)
	handler.BeginFunc = func(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
		body, _ := arb.Bodies()
		if w.onFloorHit != nil {
			w.onFloorHit(body)
		}
		return true
	}

	logger.Printf("[Physics] Мир создан: %dx%d, гравитация %.1f, затухание %.2f",
		int(width), int(height), opts.Gravity, opts.Damping)

	return w
}

// addBoundary добавляет статический сегмент с нулевой геометрией.
// Реальные координаты выставляет placeBoundaries.
func (w *World) addBoundary(ct cp.CollisionType) *cp.Shape {
	shape := w.space.AddShape(cp.NewSegment(w.space.StaticBody, cp.Vector{}, cp.Vector{X: 1}, boundaryRadius))
	shape.SetFriction(w.friction)
	shape.SetElasticity(w.elasticity)
	shape.SetCollisionType(ct)
	return shape
}

// placeBoundaries выставляет концы сегментов по текущему размеру холста.
// Стены продолжаются выше видимой области, чтобы тела, заспавненные над
// холстом, не вылетали вбок до входа в кадр.
//
// SetEndpoints не обновляет статический пространственный индекс, поэтому
// каждый сегмент снимается и вставляется обратно: AddShape пересчитывает
// его габариты, а сама форма, ее материал и тип коллизии сохраняются.
func (w *World) placeBoundaries() {
	top := -w.height

	w.floor.Class.(*cp.Segment).SetEndpoints(
		cp.Vector{X: -boundaryRadius, Y: w.height},
		cp.Vector{X: w.width + boundaryRadius, Y: w.height},
	)
	w.leftWall.Class.(*cp.Segment).SetEndpoints(
		cp.Vector{X: 0, Y: top},
		cp.Vector{X: 0, Y: w.height},
	)
	w.rightWall.Class.(*cp.Segment).SetEndpoints(
		cp.Vector{X: w.width, Y: top},
		cp.Vector{X: w.width, Y: w.height},
	)

	for _, shape := range []*cp.Shape{w.floor, w.leftWall, w.rightWall} {
		w.space.RemoveShape(shape)
		w.space.AddShape(shape)
	}
}

// Step продвигает симуляцию на dt секунд. Вызывающая сторона ограничивает
// dt целевым интервалом кадра, чтобы пауза вкладки не дестабилизировала
// интегрирование.
func (w *World) Step(dt float64) {
	w.space.Step(dt)
}

// AddBody вставляет динамическое круглое тело со слегка случайной начальной
// скоростью и вращением.
func (w *World) AddBody(x, y, radius float64) *cp.Body {
	mass := radius * radius * 0.01
	moment := cp.MomentForCircle(mass, 0, radius, cp.Vector{})

	body := w.space.AddBody(cp.NewBody(mass, moment))
	body.SetPosition(cp.Vector{X: x, Y: y})
	body.SetVelocityVector(cp.Vector{
		X: (w.rng.Float64()*2 - 1) * spawnVelocityX,
		Y: w.rng.Float64() * spawnVelocityY,
	})
	body.SetAngularVelocity((w.rng.Float64()*2 - 1) * spawnSpin)

	shape := w.space.AddShape(cp.NewCircle(body, radius, cp.Vector{}))
	shape.SetFriction(w.friction)
	shape.SetElasticity(w.elasticity)
	shape.SetCollisionType(CollisionTypeRain)

	w.bodyCount++
	return body
}

// RemoveBody удаляет тело и его форму из мира. Вызывается ровно один раз
// на тело - идемпотентность обеспечивает владелец сущности.
func (w *World) RemoveBody(body *cp.Body) {
	body.EachShape(func(shape *cp.Shape) {
		w.space.RemoveShape(shape)
	})
	w.space.RemoveBody(body)
	w.bodyCount--
}

// OnFloorContact регистрирует обработчик контакта тела с полом. Обработчик
// вызывается на каждое событие контакта - защита от повторного срабатывания
// визуального эффекта лежит на вызывающей стороне.
func (w *World) OnFloorContact(fn func(*cp.Body)) {
	w.onFloorHit = fn
}

// Resize передвигает границы под новый размер холста, не пересоздавая их:
// внешние ссылки на формы и типы коллизий остаются действительными.
func (w *World) Resize(width, height float64) {
	if width == w.width && height == w.height {
		return
	}

	w.logger.Printf("[Physics] Изменение размера мира: %dx%d -> %dx%d",
		int(w.width), int(w.height), int(width), int(height))

	w.width = width
	w.height = height
	w.placeBoundaries()
}

// SetGravity обновляет гравитацию на лету.
func (w *World) SetGravity(gravity float64) {
	w.space.SetGravity(cp.Vector{X: 0, Y: gravity})
}

// SetDamping обновляет глобальное затухание скорости.
func (w *World) SetDamping(damping float64) {
	w.space.SetDamping(damping)
}

// SetMaterial обновляет трение и упругость границ. Уже созданные
// динамические тела сохраняют свой материал.
func (w *World) SetMaterial(friction, restitution float64) {
	w.friction = friction
	w.elasticity = restitution
	for _, shape := range []*cp.Shape{w.floor, w.leftWall, w.rightWall} {
		shape.SetFriction(friction)
		shape.SetElasticity(restitution)
	}
}

// ApplyWind прикладывает горизонтальную силу ветра к телу. Сила
// масштабируется массой, чтобы ускорение было одинаковым для всех тел.
func (w *World) ApplyWind(body *cp.Body, accel float64) {
	body.ApplyForceAtWorldPoint(cp.Vector{X: accel * body.Mass()}, body.Position())
}

// BodyCount возвращает количество динамических тел.
func (w *World) BodyCount() int {
	return w.bodyCount
}

// Bounds возвращает текущий размер холста.
func (w *World) Bounds() (width, height float64) {
	return w.width, w.height
}
