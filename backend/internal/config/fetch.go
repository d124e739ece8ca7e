package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// fetchTimeout - предел ожидания снапшота конфигурации при старте.
const fetchTimeout = 5 * time.Second

// Fetch выполняет разовую загрузку JSON-снапшота конфигурации с удаленного
// контроллера. Ошибка загрузки не фатальна: вызывающая сторона логирует ее
// и продолжает работу со встроенными значениями.
func Fetch(url string) (Patch, error) {
	client := &http.Client{Timeout: fetchTimeout}

	resp, err := client.Get(url)
	if err != nil {
		return Patch{}, fmt.Errorf("запрос снапшота конфигурации: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Patch{}, fmt.Errorf("снапшот конфигурации: статус %d", resp.StatusCode)
	}

	var patch Patch
	if err := json.NewDecoder(resp.Body).Decode(&patch); err != nil {
		return Patch{}, fmt.Errorf("разбор снапшота конфигурации: %w", err)
	}

	return patch, nil
}
