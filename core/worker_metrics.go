package core

import (
	"context"
	"encoding/json"
	"runtime"
	"time"
)

const (
	WorkerHeartbeatPrefix = "mail:worker:heartbeat:"
	WorkerHeartbeatTTL    = 45 * time.Second
)

// WorkerHeartbeatKey はワーカー ID に対応する Redis キーを返す。
func WorkerHeartbeatKey(id string) string {
	return WorkerHeartbeatPrefix + id
}

// SaveHeartbeat はハートビートを JSON で TTL 付き保存する。
func SaveHeartbeat(ctx context.Context, client RedisClientRaw, hb WorkerHeartbeat) error {
	hb.UpdatedAt = time.Now()
	data, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	return client.Set(ctx, WorkerHeartbeatKey(hb.WorkerID), data, WorkerHeartbeatTTL).Err()
}

// WorkerHeartbeat はメールワーカーが Redis に定期送信する稼働情報。
type WorkerHeartbeat struct {
	WorkerID      string    `json:"worker_id"`
	Hostname      string    `json:"hostname"`
	PID           int       `json:"pid"`
	Concurrency   int       `json:"concurrency"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Status        string    `json:"status"` // idle|busy|starting
	InFlight      int       `json:"in_flight"`
	SentTotal     int64     `json:"sent_total"`
	FailedTotal   int64     `json:"failed_total"`
	LastError     string    `json:"last_error,omitempty"`
	MemoryBytes   uint64    `json:"memory_bytes"`
	NumGoroutine  int       `json:"num_goroutine"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpdateRuntimeStats はメモリ/Goroutine を現在値で上書きする。
func (h *WorkerHeartbeat) UpdateRuntimeStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.MemoryBytes = ms.Sys
	h.NumGoroutine = runtime.NumGoroutine()
}
