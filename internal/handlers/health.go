package handlers

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/savekit/internal/engine"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Uptime    string       `json:"uptime"`
	Timestamp time.Time    `json:"timestamp"`
	Save      engine.Info  `json:"save"`
	Dirty     bool         `json:"dirty"`
	System    SystemHealth `json:"system"`
}

type SystemHealth struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_bytes"`
	NumGC       uint32 `json:"num_gc"`
}

// HealthHandler handles health check operations
type HealthHandler struct {
	engine    *engine.Engine
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(e *engine.Engine, version string) *HealthHandler {
	return &HealthHandler{
		engine:    e,
		startTime: time.Now(),
		version:   version,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now(),
		Dirty:     h.engine.Dirty(),
		System: SystemHealth{
			Goroutines:  runtime.NumGoroutine(),
			MemoryAlloc: m.Alloc,
			NumGC:       m.NumGC,
		},
	}
	info, err := h.engine.Inspect()
	if err != nil {
		status.Status = "degraded"
	}
	status.Save = info
	return c.JSON(status)
}

// Liveness is a simple liveness probe
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness reports ready once the save file and its backups can be read.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if _, err := h.engine.Inspect(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}
