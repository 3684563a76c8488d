package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/influxdb"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhome-proxy/internal/infrastructure/redis"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Bridge        BridgeMetrics    `json:"bridge"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	RedisPool     *redis.Stats     `json:"redis_pool,omitempty"`
	HomeBus       *mqtt.Stats      `json:"home_bus,omitempty"`
	Telemetry     *influxdb.Stats  `json:"telemetry,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BridgeMetrics summarises the platform connection.
type BridgeMetrics struct {
	Connected  bool `json:"connected"`
	Channels   int  `json:"channels"`
	Patterns   int  `json:"patterns"`
	Reconnects int  `json:"reconnects"`
	Rebuilds   int  `json:"rebuilds"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns process and bridge metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := s.bridge.Status()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Bridge: BridgeMetrics{
			Connected:  status.Connected,
			Channels:   len(status.Channels),
			Patterns:   len(status.Patterns),
			Reconnects: status.Reconnects,
			Rebuilds:   status.Rebuilds,
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if s.pool != nil {
		poolStats := s.pool.Stats()
		metrics.RedisPool = &poolStats
	}

	if s.homeBus != nil {
		busStats := s.homeBus.Stats()
		metrics.HomeBus = &busStats
	}

	if s.telemetry != nil {
		telemetryStats := s.telemetry.Stats()
		metrics.Telemetry = &telemetryStats
	}

	writeJSON(w, http.StatusOK, metrics)
}
