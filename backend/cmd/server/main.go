package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emoji-rain/backend/internal/config"
	"emoji-rain/backend/internal/game"
	"emoji-rain/backend/internal/physics"
	"emoji-rain/backend/internal/pool"
	"emoji-rain/backend/internal/telemetry"
	"emoji-rain/backend/internal/transport/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", ":3001", "адрес HTTP сервера")
	staticDir := flag.String("static", "./frontend", "каталог статических файлов оверлея")
	configPath := flag.String("config", "", "путь к YAML файлу конфигурации")
	configURL := flag.String("config-url", "", "URL снапшота конфигурации панели")
	flag.Parse()

	if *configPath == "" {
		*configPath = os.Getenv("RAIN_CONFIG")
	}
	if *configURL == "" {
		*configURL = os.Getenv("RAIN_CONFIG_URL")
	}

	mainLogger := log.New(os.Stdout, "[Main] ", log.LstdFlags)

	// Загружаем конфигурацию: дефолты, поверх них файл, поверх снапшот
	// панели. Любой недоступный источник логируется и пропускается.
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			mainLogger.Printf("Конфигурация из файла недоступна, используем дефолты: %v", err)
		} else {
			cfg = loaded
			mainLogger.Printf("Конфигурация загружена из %s", *configPath)
		}
	}
	store := config.NewStore(cfg)
	if *configURL != "" {
		patch, err := config.Fetch(*configURL)
		if err != nil {
			mainLogger.Printf("Снапшот конфигурации недоступен, продолжаем без него: %v", err)
		} else {
			store.Merge(patch)
			mainLogger.Printf("Применен снапшот конфигурации из %s", *configURL)
		}
	}
	cfg = store.Snapshot()

	// Собираем симуляцию
	world := physics.NewWorld(cfg.CanvasWidth, cfg.CanvasHeight, physics.Options{
		Gravity:     cfg.Gravity,
		Damping:     cfg.AirDrag,
		Friction:    cfg.Friction,
		Restitution: cfg.Restitution,
	}, log.New(os.Stdout, "[Physics] ", log.LstdFlags))

	surface := ws.NewBroadcastSurface(log.New(os.Stdout, "[Surface] ", log.LstdFlags))
	particles := pool.NewParticlePool(pool.DefaultMaxPooled, surface, log.New(os.Stdout, "[Pool] ", log.LstdFlags))
	rain := game.NewRainSystem(store, world, surface, particles, log.New(os.Stdout, "[RainSystem] ", log.LstdFlags))
	monitor := telemetry.NewMonitor(log.New(os.Stdout, "[Telemetry] ", log.LstdFlags))

	ticker := game.NewRainTicker(cfg.TargetFPS, log.New(os.Stdout, "[RainTicker] ", log.LstdFlags))
	ticker.RegisterSystem(game.NewPhysicsSystem(world))
	ticker.RegisterSystem(rain)
	ticker.RegisterSystem(game.NewDiagnosticsSystem(store, world, rain, ticker, monitor,
		log.New(os.Stdout, "[Diagnostics] ", log.LstdFlags)))

	controller := ws.NewController(store, world, rain, ticker, monitor,
		log.New(os.Stdout, "[Controller] ", log.LstdFlags))
	server := ws.NewServer(controller, surface, log.New(os.Stdout, "[WSServer] ", log.LstdFlags))

	ticker.Start()

	// HTTP маршруты
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		data, err := monitor.JSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.Handle("/", http.FileServer(http.Dir(*staticDir)))

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	go func() {
		mainLogger.Printf("Сервер запущен на %s, статика из %s", *addr, *staticDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mainLogger.Fatalf("Ошибка HTTP сервера: %v", err)
		}
	}()

	// Ждем сигнал завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	mainLogger.Printf("Получен сигнал %v, завершаем работу", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		mainLogger.Printf("Ошибка остановки HTTP сервера: %v", err)
	}

	done := make(chan struct{})
	ticker.Enqueue(func() {
		rain.RemoveAll()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		mainLogger.Printf("Таймаут очистки сцены")
	}
	ticker.Stop()

	mainLogger.Printf("Сервер остановлен")
}
