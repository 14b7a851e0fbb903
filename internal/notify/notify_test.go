package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/sniper/internal/model"
)

// newTestLogger はテスト用のJSONロガーとその出力先を返す。
func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

// memoryDedupeRepo はテスト用のインメモリ重複排除リポジトリ。
type memoryDedupeRepo struct {
	mu      sync.Mutex
	records map[string]model.DedupeRecord

	findErr   error
	insertErr error
}

func newMemoryDedupeRepo() *memoryDedupeRepo {
	return &memoryDedupeRepo{records: make(map[string]model.DedupeRecord)}
}

func (r *memoryDedupeRepo) FindActive(ctx context.Context, listingID string, now time.Time) (*model.DedupeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[listingID]
	if !ok || rec.IsExpired(now) {
		return nil, nil
	}
	return &rec, nil
}

func (r *memoryDedupeRepo) InsertIfAbsent(ctx context.Context, record model.DedupeRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	if rec, ok := r.records[record.ListingID]; ok && !rec.IsExpired(record.CreatedAt) {
		return false, nil
	}
	r.records[record.ListingID] = record
	return true, nil
}

func (r *memoryDedupeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if rec.IsExpired(now) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

// recordingNotifier は送信した通知を記録するテスト用Notifier。
// failFor に含まれる件名の送信は失敗させる。
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []model.Notification
	failFor map[string]bool
}

func (n *recordingNotifier) Publish(ctx context.Context, msg model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[msg.Subject] {
		return errors.New("publish failed")
	}
	n.sent = append(n.sent, msg)
	return nil
}
