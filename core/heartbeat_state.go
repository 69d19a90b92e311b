package core

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// HeartbeatState は単一 worker プロセスの集約メトリクスを保持する。
type HeartbeatState struct {
	mu       sync.Mutex
	hb       WorkerHeartbeat
	interval time.Duration
}

func NewHeartbeatState(workerID, hostname string, concurrency int) *HeartbeatState {
	now := time.Now()
	return &HeartbeatState{
		hb: WorkerHeartbeat{
			WorkerID:    workerID,
			Hostname:    hostname,
			PID:         os.Getpid(),
			Concurrency: concurrency,
			Status:      "starting",
			StartedAt:   now,
			UpdatedAt:   now,
		},
		interval: 5 * time.Second,
	}
}

// Start を呼ぶとバックグラウンドで TTL 更新を行う。ctx が終わるまで戻らない。
func (s *HeartbeatState) Start(ctx context.Context, client RedisClientRaw) {
	s.flush(ctx, client)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx, client)
		}
	}
}

// JobStarted は実行中ジョブを追加し、状態を busy にする。
func (s *HeartbeatState) JobStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.InFlight++
	s.hb.Status = "busy"
}

// JobFinished はジョブ終了時のカウンタ更新を行う。err は送信エラー。
func (s *HeartbeatState) JobFinished(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hb.InFlight > 0 {
		s.hb.InFlight--
	}
	if err != nil {
		s.hb.FailedTotal++
		s.hb.LastError = err.Error()
	} else {
		s.hb.SentTotal++
	}
	if s.hb.InFlight == 0 {
		s.hb.Status = "idle"
	}
}

// Snapshot は現在のハートビートのコピーを返す。
func (s *HeartbeatState) Snapshot() WorkerHeartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hb
}

func (s *HeartbeatState) flush(ctx context.Context, client RedisClientRaw) {
	s.mu.Lock()
	if s.hb.Status == "starting" && s.hb.InFlight == 0 {
		s.hb.Status = "idle"
	}
	s.hb.UptimeSeconds = int64(time.Since(s.hb.StartedAt).Seconds())
	s.hb.UpdateRuntimeStats()
	hbCopy := s.hb
	s.mu.Unlock()
	if err := SaveHeartbeat(ctx, client, hbCopy); err != nil && ctx.Err() == nil {
		slog.WarnContext(ctx, "heartbeat save failed", "worker", hbCopy.WorkerID, "error", err)
	}
}
